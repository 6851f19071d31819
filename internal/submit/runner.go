// Package submit ties the workspace locator, archive builder, Kelvin client
// and browser opener into one submit run.
package submit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Cyclone1070/cargo-kelvin/internal/archive"
	"github.com/Cyclone1070/cargo-kelvin/internal/kelvin"
)

// locator finds the workspace root for a directory.
type locator interface {
	Root(ctx context.Context, dir string) (string, error)
}

// builder packs a workspace into an archive.
type builder interface {
	Build(ctx context.Context, root string) (*archive.Archive, error)
}

// submitter uploads an archive to Kelvin.
type submitter interface {
	Submit(ctx context.Context, archive []byte, assignmentID uint64) (*kelvin.Result, error)
}

// opener shows a URL to the user.
type opener interface {
	Open(ctx context.Context, url string) error
}

// Options describes one submit run.
type Options struct {
	Dir          string
	AssignmentID uint64
	NoOpen       bool
}

// Runner performs submit runs.
type Runner struct {
	locator   locator
	builder   builder
	submitter submitter
	opener    opener
	logger    *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(l locator, b builder, s submitter, o opener, logger *slog.Logger) *Runner {
	if l == nil {
		panic("locator is required")
	}
	if b == nil {
		panic("builder is required")
	}
	if s == nil {
		panic("submitter is required")
	}
	if o == nil {
		panic("opener is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Runner{locator: l, builder: b, submitter: s, opener: o, logger: logger}
}

// Run locates the workspace containing opts.Dir, archives it and submits the
// archive. A submit rejected by Kelvin is returned as a Result, not an error.
func (r *Runner) Run(ctx context.Context, opts Options) (*kelvin.Result, error) {
	root, err := r.locator.Root(ctx, opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("getting cargo metadata: %w", err)
	}
	r.logger.Debug("Located workspace", "root", root)

	arc, err := r.builder.Build(ctx, root)
	if err != nil {
		return nil, err
	}

	result, err := r.submitter.Submit(ctx, arc.Data, opts.AssignmentID)
	if err != nil {
		return nil, err
	}
	if result.Outcome != kelvin.Success || opts.NoOpen {
		return result, nil
	}

	if err := r.opener.Open(ctx, result.Submission.URL); err != nil {
		return result, err
	}
	return result, nil
}
