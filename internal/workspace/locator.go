// Package workspace locates the root of the Cargo workspace to submit.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Cyclone1070/cargo-kelvin/internal/service/executor"
	"github.com/Cyclone1070/cargo-kelvin/internal/service/path"
)

// ManifestFile is the project manifest marking a workspace.
const ManifestFile = "Cargo.toml"

var workspaceTable = regexp.MustCompile(`(?m)^\s*\[workspace\]`)

// ManifestNotFoundError is returned when no manifest exists in dir or its parents.
type ManifestNotFoundError struct {
	Dir string
}

func (e *ManifestNotFoundError) Error() string {
	return fmt.Sprintf("could not find `%s` in `%s` or any parent directory", ManifestFile, e.Dir)
}

var errUnexpectedOutput = errors.New("unexpected cargo output")

// commandRunner defines the interface for running cargo.
type commandRunner interface {
	Run(ctx context.Context, cmd []string, dir string, env []string) (*executor.Result, error)
}

// fileSystem defines the filesystem operations used by the manifest search.
type fileSystem interface {
	Stat(path string) (os.FileInfo, error)
	ReadFile(path string, limit int64) ([]byte, error)
}

// Locator finds the workspace root for a directory.
type Locator struct {
	runner commandRunner
	fs     fileSystem
	logger *slog.Logger
}

// NewLocator creates a Locator.
func NewLocator(runner commandRunner, fs fileSystem, logger *slog.Logger) *Locator {
	if runner == nil {
		panic("runner is required")
	}
	if fs == nil {
		panic("fs is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Locator{runner: runner, fs: fs, logger: logger}
}

// Root returns the canonical workspace root containing dir. Cargo is asked
// first; the manifest is searched for directly only when cargo cannot be
// started or prints something other than a manifest path. A failing cargo
// (a malformed manifest, no manifest at all) is returned as an
// *executor.ExitError.
func (l *Locator) Root(ctx context.Context, dir string) (string, error) {
	root, err := l.fromCargo(ctx, dir)
	if err != nil {
		var cmdErr *executor.CommandError
		if !errors.As(err, &cmdErr) && !errors.Is(err, errUnexpectedOutput) {
			return "", err
		}
		l.logger.Debug("cargo locate-project unavailable, searching for the manifest", "error", err)
		root, err = l.search(dir)
		if err != nil {
			return "", err
		}
	}
	return path.CanonicaliseRoot(root)
}

func (l *Locator) fromCargo(ctx context.Context, dir string) (string, error) {
	cmd := []string{"cargo", "locate-project", "--workspace", "--message-format", "plain"}
	res, err := l.runner.Run(ctx, cmd, dir, nil)
	if err != nil {
		return "", err
	}

	manifest := strings.TrimSpace(res.Stdout)
	if !filepath.IsAbs(manifest) || filepath.Base(manifest) != ManifestFile {
		return "", fmt.Errorf("%w: %q", errUnexpectedOutput, manifest)
	}
	return filepath.Dir(manifest), nil
}

// search walks up from dir. The nearest manifest declaring [workspace] wins;
// otherwise the nearest manifest does.
func (l *Locator) search(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	var nearest string
	for current := abs; ; {
		manifest := filepath.Join(current, ManifestFile)
		if _, err := l.fs.Stat(manifest); err == nil {
			if nearest == "" {
				nearest = current
			}
			content, err := l.fs.ReadFile(manifest, 0)
			if err != nil {
				l.logger.Warn("Cannot read manifest", "path", manifest, "error", err)
			} else if workspaceTable.Match(content) {
				return current, nil
			}
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	if nearest == "" {
		return "", &ManifestNotFoundError{Dir: abs}
	}
	return nearest, nil
}
