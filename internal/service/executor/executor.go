package executor

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"sync"

	"github.com/Cyclone1070/cargo-kelvin/internal/config"
)

// Result represents the outcome of a command execution.
type Result struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	Truncated bool
}

// OSCommandExecutor implements command execution using os/exec for real system commands.
type OSCommandExecutor struct {
	config *config.Config
}

// NewOSCommandExecutor creates a new OSCommandExecutor with injected config.
func NewOSCommandExecutor(cfg *config.Config) *OSCommandExecutor {
	if cfg == nil {
		panic("cfg is required")
	}
	return &OSCommandExecutor{config: cfg}
}

// Run executes a command and returns the result. It buffers output internally.
// A nil env inherits the environment of the current process.
// A non-zero exit yields both a Result and an *ExitError.
func (f *OSCommandExecutor) Run(ctx context.Context, command []string, dir string, env []string) (*Result, error) {
	if len(command) == 0 {
		return nil, ErrEmptyCommand
	}

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Dir = dir
	cmd.Env = env
	cmd.Stdin = nil

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &CommandError{Cmd: command[0], Cause: err, Stage: "start"}
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, &CommandError{Cmd: command[0], Cause: err, Stage: "start"}
	}

	if err := cmd.Start(); err != nil {
		return nil, &CommandError{Cmd: command[0], Cause: err, Stage: "start"}
	}

	stdoutStr, stderrStr, truncated := f.collectOutput(stdoutPipe, stderrPipe)

	result := &Result{
		Stdout:    stdoutStr,
		Stderr:    stderrStr,
		Truncated: truncated,
	}

	if err := cmd.Wait(); err != nil {
		result.ExitCode = exitCode(err)
		return result, &ExitError{Cmd: command, ExitCode: result.ExitCode, Stderr: stderrStr, Cause: err}
	}

	return result, nil
}

// RunDetached executes a command with its standard streams attached to the
// null device and waits for it to exit. Output is discarded, so long-lived
// children that inherit the streams (a browser launched by xdg-open) do not
// hold up the return.
func (f *OSCommandExecutor) RunDetached(ctx context.Context, command []string, dir string, env []string) (*Result, error) {
	if len(command) == 0 {
		return nil, ErrEmptyCommand
	}

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Dir = dir
	cmd.Env = env

	if err := cmd.Start(); err != nil {
		return nil, &CommandError{Cmd: command[0], Cause: err, Stage: "start"}
	}

	result := &Result{}
	if err := cmd.Wait(); err != nil {
		result.ExitCode = exitCode(err)
		return result, &ExitError{Cmd: command, ExitCode: result.ExitCode, Cause: err}
	}

	return result, nil
}

func (f *OSCommandExecutor) collectOutput(stdout, stderr io.Reader) (string, string, bool) {
	maxBytes := int(f.config.Executor.MaxOutputSize)

	stdoutCollector := newCollector(maxBytes)
	stderrCollector := newCollector(maxBytes)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		_, _ = io.Copy(stdoutCollector, stdout)
	}()

	go func() {
		defer wg.Done()
		_, _ = io.Copy(stderrCollector, stderr)
	}()

	wg.Wait()

	truncated := stdoutCollector.Truncated() || stderrCollector.Truncated()
	return stdoutCollector.String(), stderrCollector.String(), truncated
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
