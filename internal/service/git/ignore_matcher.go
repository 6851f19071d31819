package git

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Cyclone1070/cargo-kelvin/internal/service/path"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

const (
	gitDir          = ".git"
	gitignoreFile   = ".gitignore"
	ignoreFile      = ".ignore"
	infoExcludeFile = ".git/info/exclude"
)

// GitignoreReadError is returned when an ignore file exists but cannot be read.
type GitignoreReadError struct {
	Path  string
	Cause error
}

func (e *GitignoreReadError) Error() string {
	return fmt.Sprintf("failed to read ignore file at %s: %v", e.Path, e.Cause)
}
func (e *GitignoreReadError) Unwrap() error { return e.Cause }

// fileSystem defines the minimal filesystem interface needed by the matcher.
type fileSystem interface {
	Stat(path string) (os.FileInfo, error)
	ReadFile(path string, limit int64) ([]byte, error)
}

// IgnoreMatcher implements ignore-file matching using go-git's gitignore matcher.
//
// Patterns accumulate while a walk descends: LoadDir must be called for a
// directory before any of its children are checked. Patterns carry their
// directory as domain, so patterns from sibling directories never interfere.
//
// .ignore files always apply. Git sources (.gitignore files, .git/info/exclude
// and the user/system excludes passed as base) only apply when the workspace
// lives inside a git repository.
type IgnoreMatcher struct {
	root     string
	fs       fileSystem
	inRepo   bool
	patterns []gitignore.Pattern
}

// NewIgnoreMatcher creates a matcher rooted at workspaceRoot. It loads
// .git/info/exclude when the workspace root is itself a repository root.
func NewIgnoreMatcher(workspaceRoot string, fs fileSystem, base []gitignore.Pattern) (*IgnoreMatcher, error) {
	if workspaceRoot == "" {
		panic("workspaceRoot is required")
	}
	if fs == nil {
		panic("fs is required")
	}

	m := &IgnoreMatcher{
		root:   workspaceRoot,
		fs:     fs,
		inRepo: insideRepository(workspaceRoot, fs),
	}
	if !m.inRepo {
		return m, nil
	}

	m.patterns = append(m.patterns, base...)

	excludePath := filepath.Join(workspaceRoot, filepath.FromSlash(infoExcludeFile))
	patterns, err := m.readPatterns(excludePath, nil)
	if err != nil {
		return nil, err
	}
	m.patterns = append(m.patterns, patterns...)

	return m, nil
}

// InRepository reports whether git ignore sources are in effect.
func (m *IgnoreMatcher) InRepository() bool {
	return m.inRepo
}

// LoadDir reads the ignore files of the directory at rel (forward-slash,
// relative to the workspace root; "" for the root itself). Unreadable files
// are reported but do not prevent the remaining ones from loading.
func (m *IgnoreMatcher) LoadDir(rel string) error {
	names := []string{ignoreFile}
	if m.inRepo {
		names = []string{gitignoreFile, ignoreFile}
	}

	domain := path.Segments(rel)
	dir := filepath.Join(m.root, filepath.FromSlash(rel))

	var errs []error
	for _, name := range names {
		patterns, err := m.readPatterns(filepath.Join(dir, name), domain)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		m.patterns = append(m.patterns, patterns...)
	}
	return errors.Join(errs...)
}

// ShouldIgnore checks if a relative path matches the loaded patterns.
func (m *IgnoreMatcher) ShouldIgnore(relativePath string, isDir bool) bool {
	if len(m.patterns) == 0 {
		return false
	}

	segments := path.Segments(relativePath)
	if len(segments) == 0 {
		return false
	}
	return gitignore.NewMatcher(m.patterns).Match(segments, isDir)
}

// readPatterns returns nothing for a missing file.
func (m *IgnoreMatcher) readPatterns(file string, domain []string) ([]gitignore.Pattern, error) {
	if _, err := m.fs.Stat(file); err != nil {
		return nil, nil
	}

	content, err := m.fs.ReadFile(file, 0)
	if err != nil {
		return nil, &GitignoreReadError{Path: file, Cause: err}
	}
	return ParsePatterns(string(content), domain), nil
}

// ParsePatterns parses ignore-file content. Blank lines and comments are skipped.
func ParsePatterns(content string, domain []string) []gitignore.Pattern {
	var patterns []gitignore.Pattern
	for _, line := range splitLines(content) {
		line = strings.TrimRight(line, " \t")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, domain))
	}
	return patterns
}

// LoadUserPatterns loads the system-wide and per-user git excludes
// (core.excludesfile) from fs, which should be rooted at "/".
// Patterns that could be read are returned even when the other source failed.
func LoadUserPatterns(fs billy.Filesystem) ([]gitignore.Pattern, error) {
	system, systemErr := gitignore.LoadSystemPatterns(fs)
	global, globalErr := gitignore.LoadGlobalPatterns(fs)
	return append(system, global...), errors.Join(systemErr, globalErr)
}

// insideRepository reports whether dir or one of its ancestors holds a .git entry.
func insideRepository(dir string, fs fileSystem) bool {
	for {
		if _, err := fs.Stat(filepath.Join(dir, gitDir)); err == nil {
			return true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return false
		}
		dir = parent
	}
}

// splitLines splits content into lines, handling both \n and \r\n line endings.
func splitLines(content string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			lines = append(lines, content[start:i])
			start = i + 1
		} else if content[i] == '\r' && i+1 < len(content) && content[i+1] == '\n' {
			lines = append(lines, content[start:i])
			start = i + 2
			i++
		}
	}
	if start < len(content) {
		lines = append(lines, content[start:])
	}
	return lines
}

// NoOpMatcher is an ignore matcher that never ignores any files.
// It is used when the ignore matcher fails to initialize.
type NoOpMatcher struct{}

// LoadDir does nothing for NoOpMatcher.
func (m *NoOpMatcher) LoadDir(rel string) error {
	return nil
}

// ShouldIgnore always returns false for NoOpMatcher.
func (m *NoOpMatcher) ShouldIgnore(relativePath string, isDir bool) bool {
	return false
}
