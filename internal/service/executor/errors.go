package executor

import (
	"errors"
	"fmt"
	"strings"
)

// CommandError is returned when a command cannot be started.
type CommandError struct {
	Cmd   string
	Stage string
	Cause error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Stage, e.Cmd, e.Cause)
}
func (e *CommandError) Unwrap() error { return e.Cause }

// ExitError is returned when a command ran but exited non-zero.
type ExitError struct {
	Cmd      []string
	ExitCode int
	Stderr   string
	Cause    error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", strings.Join(e.Cmd, " "), e.ExitCode)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}
func (e *ExitError) Unwrap() error { return e.Cause }

// -- Sentinels --

var (
	ErrEmptyCommand = errors.New("empty command")
)
