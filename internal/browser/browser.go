// Package browser opens URLs in the user's default browser.
package browser

import (
	"context"
	"fmt"
	"runtime"

	"github.com/Cyclone1070/cargo-kelvin/internal/service/executor"
)

// OpenError is returned when the platform opener fails.
type OpenError struct {
	URL   string
	Cause error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("opening browser for %s: %v", e.URL, e.Cause)
}
func (e *OpenError) Unwrap() error { return e.Cause }

// commandRunner defines the interface for executing the platform opener.
type commandRunner interface {
	RunDetached(ctx context.Context, cmd []string, dir string, env []string) (*executor.Result, error)
}

// Opener launches the platform's URL handler.
type Opener struct {
	runner commandRunner
	goos   string
}

// NewOpener creates an Opener for the running platform.
func NewOpener(runner commandRunner) *Opener {
	return NewOpenerForOS(runner, runtime.GOOS)
}

// NewOpenerForOS creates an Opener for goos.
func NewOpenerForOS(runner commandRunner, goos string) *Opener {
	if runner == nil {
		panic("runner is required")
	}
	return &Opener{runner: runner, goos: goos}
}

// Command returns the argv used to open url.
func (o *Opener) Command(url string) []string {
	switch o.goos {
	case "darwin":
		return []string{"open", url}
	case "windows":
		return []string{"rundll32", "url.dll,FileProtocolHandler", url}
	default:
		return []string{"xdg-open", url}
	}
}

// Open opens url and waits for the opener to exit. The opener's output is
// discarded.
func (o *Opener) Open(ctx context.Context, url string) error {
	if _, err := o.runner.RunDetached(ctx, o.Command(url), "", nil); err != nil {
		return &OpenError{URL: url, Cause: err}
	}
	return nil
}
