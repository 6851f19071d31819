package kelvin

import "fmt"

// Outcome is the terminal state of a submit.
type Outcome int

const (
	// Success means Kelvin accepted the upload and created a submit.
	Success Outcome = iota
	// Rejected means Kelvin answered with a non-OK status.
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Submission is the server-side record created by a successful upload.
type Submission struct {
	ID       uint64
	URL      string
	TaskName string
}

// Result is the outcome of a single submit attempt.
type Result struct {
	Outcome Outcome

	// Set when Outcome is Success.
	Submission *Submission

	// Set when Outcome is Rejected.
	StatusCode int
	Status     string
	Body       string
}

// submitResponse is the wire format of a successful upload.
type submitResponse struct {
	Submit *struct {
		ID  *uint64 `json:"id"`
		URL *string `json:"url"`
	} `json:"submit"`
	Task *struct {
		Name *string `json:"name"`
	} `json:"task"`
}

// submission validates that every field is present.
func (r *submitResponse) submission() (*Submission, error) {
	switch {
	case r.Submit == nil:
		return nil, fmt.Errorf("missing field `submit`")
	case r.Submit.ID == nil:
		return nil, fmt.Errorf("missing field `submit.id`")
	case r.Submit.URL == nil:
		return nil, fmt.Errorf("missing field `submit.url`")
	case r.Task == nil:
		return nil, fmt.Errorf("missing field `task`")
	case r.Task.Name == nil:
		return nil, fmt.Errorf("missing field `task.name`")
	}
	return &Submission{
		ID:       *r.Submit.ID,
		URL:      *r.Submit.URL,
		TaskName: *r.Task.Name,
	}, nil
}
