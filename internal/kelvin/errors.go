package kelvin

import "fmt"

// SendError is returned when no HTTP response was received.
type SendError struct {
	URL   string
	Cause error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("sending submit to Kelvin (%s): %v", e.URL, e.Cause)
}
func (e *SendError) Unwrap() error { return e.Cause }

// RequestError is returned when the upload request cannot be constructed.
type RequestError struct {
	Cause error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("building submit request: %v", e.Cause)
}
func (e *RequestError) Unwrap() error { return e.Cause }

// ResponseReadError is returned when the body of a rejected submit cannot be read.
type ResponseReadError struct {
	StatusCode int
	Cause      error
}

func (e *ResponseReadError) Error() string {
	return fmt.Sprintf("getting content of HTTP response (status %d): %v", e.StatusCode, e.Cause)
}
func (e *ResponseReadError) Unwrap() error { return e.Cause }

// DecodeError is returned when a successful response does not carry the expected JSON.
type DecodeError struct {
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("deserializing response: %v", e.Cause)
}
func (e *DecodeError) Unwrap() error { return e.Cause }
