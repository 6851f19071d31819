package archive

import (
	"strings"

	"github.com/Cyclone1070/cargo-kelvin/internal/service/path"
)

// Filter holds the two inclusion predicates applied to walked entries.
// Paths are forward-slash and relative to the workspace root.
type Filter struct {
	extensions   map[string]struct{}
	excludedDirs map[string]struct{}
}

// NewFilter creates a filter accepting files with one of extensions (case-sensitive,
// without the dot) outside the top-level excludedDirs.
func NewFilter(extensions, excludedDirs []string) *Filter {
	f := &Filter{
		extensions:   make(map[string]struct{}, len(extensions)),
		excludedDirs: make(map[string]struct{}, len(excludedDirs)),
	}
	for _, ext := range extensions {
		f.extensions[ext] = struct{}{}
	}
	for _, dir := range excludedDirs {
		f.excludedDirs[dir] = struct{}{}
	}
	return f
}

// ShouldDescend reports whether the walk enters the directory at rel.
// Every directory is entered; excluded directories are filtered per file
// by ShouldInclude, so their contents never reach the archive.
func (f *Filter) ShouldDescend(rel string) bool {
	return true
}

// ShouldInclude reports whether the regular file at rel belongs in the archive.
func (f *Filter) ShouldInclude(rel string) bool {
	segments := path.Segments(rel)
	if len(segments) == 0 {
		return false
	}
	if _, excluded := f.excludedDirs[segments[0]]; excluded {
		return false
	}

	ext, ok := extension(segments[len(segments)-1])
	if !ok {
		return false
	}
	_, included := f.extensions[ext]
	return included
}

// extension returns the text after the last dot of name. Names without a dot
// and dotfiles such as ".toml" have no extension.
func extension(name string) (string, bool) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return "", false
	}
	return name[i+1:], true
}
