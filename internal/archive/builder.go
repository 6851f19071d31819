// Package archive packs the files of a workspace into an in-memory ZIP container.
package archive

import (
	"context"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Cyclone1070/cargo-kelvin/internal/config"
	"github.com/Cyclone1070/cargo-kelvin/internal/service/git"
	"github.com/Cyclone1070/cargo-kelvin/internal/service/path"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/zeebo/blake3"
)

// Archive is a finished ZIP container held in memory.
type Archive struct {
	Data    []byte
	Entries []string // archive names, in the order they were written
	Digest  string   // BLAKE3 hex digest of Data
}

// fileSystem defines the filesystem operations needed to build an archive.
type fileSystem interface {
	Stat(path string) (os.FileInfo, error)
	ReadFile(path string, limit int64) ([]byte, error)
	DeviceID(path string) (uint64, error)
}

// ignoreMatcher decides which walked entries the ignore files exclude.
type ignoreMatcher interface {
	LoadDir(rel string) error
	ShouldIgnore(rel string, isDir bool) bool
}

// Builder walks a workspace and compresses the files its Filter accepts.
type Builder struct {
	fs           fileSystem
	filter       *Filter
	maxFileSize  int64
	userPatterns []gitignore.Pattern
	logger       *slog.Logger
}

// NewBuilder creates a Builder. userPatterns are the user's and system's git
// excludes, applied when the workspace is inside a git repository.
func NewBuilder(fs fileSystem, cfg *config.Config, userPatterns []gitignore.Pattern, logger *slog.Logger) *Builder {
	if fs == nil {
		panic("fs is required")
	}
	if cfg == nil {
		panic("cfg is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Builder{
		fs:           fs,
		filter:       NewFilter(cfg.Archive.Extensions, cfg.Archive.ExcludedDirs),
		maxFileSize:  cfg.Archive.MaxFileSize,
		userPatterns: userPatterns,
		logger:       logger,
	}
}

// Build archives the workspace at root, which must be canonical.
//
// Problems with individual files or directories are logged as warnings and
// the offending entry is left out. Only finalizing the container can fail.
func (b *Builder) Build(ctx context.Context, root string) (*Archive, error) {
	v := &visitor{
		Builder:  b,
		resolver: path.NewResolver(root),
		matcher:  b.newMatcher(root),
		writer:   newEntryWriter(),
	}

	rootDev, err := b.fs.DeviceID(root)
	if err != nil {
		b.logger.Warn("Cannot determine filesystem of workspace root", "path", root, "error", err)
	} else {
		v.rootDev = &rootDev
	}

	if err := filepath.WalkDir(root, v.visit(ctx)); err != nil {
		return nil, err
	}

	data, err := v.writer.finish()
	if err != nil {
		return nil, err
	}

	count := len(v.writer.names)
	plural := "s"
	if count == 1 {
		plural = ""
	}
	b.logger.Info(fmt.Sprintf("Compressed %d file%s, total size: %dB", count, plural, len(data)))

	sum := blake3.Sum256(data)
	archive := &Archive{
		Data:    data,
		Entries: v.writer.names,
		Digest:  hex.EncodeToString(sum[:]),
	}
	b.logger.Debug("Archive digest", "blake3", archive.Digest)

	return archive, nil
}

func (b *Builder) newMatcher(root string) ignoreMatcher {
	m, err := git.NewIgnoreMatcher(root, b.fs, b.userPatterns)
	if err != nil {
		b.logger.Warn("Cannot load ignore rules, archiving without them", "error", err)
		return &git.NoOpMatcher{}
	}
	return m
}

// visitor carries the state of one Build walk.
type visitor struct {
	*Builder
	resolver *path.Resolver
	matcher  ignoreMatcher
	writer   *entryWriter
	rootDev  *uint64
}

func (v *visitor) visit(ctx context.Context) fs.WalkDirFunc {
	return func(p string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			v.logger.Warn("Cannot include file", "path", p, "error", err)
			return nil
		}

		rel, err := v.resolver.Rel(p)
		if err != nil {
			v.logger.Warn("Cannot include file", "path", p, "error", err)
			return nil
		}

		if d.IsDir() {
			return v.visitDir(p, rel, d)
		}
		v.visitFile(p, rel, d)
		return nil
	}
}

func (v *visitor) visitDir(p, rel string, d fs.DirEntry) error {
	// The workspace root is never an entry and never filtered.
	if rel == "" {
		v.loadIgnoreRules(rel)
		return nil
	}

	if isHidden(d.Name()) || v.matcher.ShouldIgnore(rel, true) {
		return filepath.SkipDir
	}

	if v.rootDev != nil {
		dev, err := v.fs.DeviceID(p)
		if err != nil {
			v.logger.Warn("Cannot include directory", "path", p, "error", err)
			return filepath.SkipDir
		}
		if dev != *v.rootDev {
			v.logger.Debug("Skipping directory on another filesystem", "path", p)
			return filepath.SkipDir
		}
	}

	if !v.filter.ShouldDescend(rel) {
		return filepath.SkipDir
	}

	v.loadIgnoreRules(rel)
	return nil
}

func (v *visitor) visitFile(p, rel string, d fs.DirEntry) {
	if isHidden(d.Name()) {
		return
	}
	if d.Type()&fs.ModeSymlink != 0 {
		v.logger.Debug("Skipping symlink", "path", p)
		return
	}
	if !d.Type().IsRegular() {
		return
	}
	if v.matcher.ShouldIgnore(rel, false) {
		return
	}

	info, err := d.Info()
	if err != nil {
		v.logger.Warn("Cannot include file", "path", p, "error", err)
		return
	}
	if info.Size() > v.maxFileSize {
		v.logger.Debug("Skipping large file", "path", p, "size", info.Size())
		return
	}

	if !v.filter.ShouldInclude(rel) {
		return
	}

	// Read before creating the entry so a failed read leaves no trace in the archive.
	data, err := v.fs.ReadFile(p, v.maxFileSize)
	if err != nil {
		v.logger.Warn("Cannot write file to ZIP archive", "path", p, "error", &ReadError{Path: p, Cause: err})
		return
	}
	if err := v.writer.add(rel, data, info); err != nil {
		v.logger.Warn("Cannot write file to ZIP archive", "path", p, "error", err)
	}
}

func (v *visitor) loadIgnoreRules(rel string) {
	if err := v.matcher.LoadDir(rel); err != nil {
		v.logger.Warn("Cannot read ignore file", "error", err)
	}
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
