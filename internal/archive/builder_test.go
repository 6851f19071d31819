package archive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"

	"github.com/Cyclone1070/cargo-kelvin/internal/config"
	servicefs "github.com/Cyclone1070/cargo-kelvin/internal/service/fs"
	"github.com/Cyclone1070/cargo-kelvin/internal/service/path"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testFS wraps the OS filesystem with injectable failures.
type testFS struct {
	*servicefs.OSFileSystem
	readErrs map[string]error
	devices  map[string]uint64
}

func newTestFS() *testFS {
	return &testFS{
		OSFileSystem: servicefs.NewOSFileSystem(),
		readErrs:     map[string]error{},
		devices:      map[string]uint64{},
	}
}

func (f *testFS) ReadFile(p string, limit int64) ([]byte, error) {
	if err, ok := f.readErrs[p]; ok {
		return nil, err
	}
	return f.OSFileSystem.ReadFile(p, limit)
}

func (f *testFS) DeviceID(p string) (uint64, error) {
	if dev, ok := f.devices[p]; ok {
		return dev, nil
	}
	return 1, nil
}

// workspace creates a canonical temp directory holding files.
func workspace(t *testing.T, files map[string][]byte) string {
	t.Helper()
	root, err := path.CanonicaliseRoot(t.TempDir())
	require.NoError(t, err)
	for name, content := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, content, 0o644))
	}
	return root
}

func newTestBuilder(fs fileSystem, cfg *config.Config) (*Builder, *bytes.Buffer) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return NewBuilder(fs, cfg, nil, logger), &logs
}

// unpack opens data as a ZIP container and returns its entries by name.
func unpack(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err, "archive must be a valid ZIP container")

	entries := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		assert.Equal(t, zip.Deflate, f.Method, "entry %s must be deflated", f.Name)
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		entries[f.Name] = content
	}
	return entries
}

func names(entries map[string][]byte) []string {
	out := make([]string, 0, len(entries))
	for name := range entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func TestBuild_CargoProjectScenario(t *testing.T) {
	root := workspace(t, map[string][]byte{
		"Cargo.toml":           bytes.Repeat([]byte("a"), 50),
		"src/main.rs":          bytes.Repeat([]byte("b"), 200),
		"target/debug/out.bin": bytes.Repeat([]byte("c"), 10),
		"notes.jpg":            bytes.Repeat([]byte("d"), 30),
	})
	builder, logs := newTestBuilder(newTestFS(), nil)

	archive, err := builder.Build(context.Background(), root)

	require.NoError(t, err)
	entries := unpack(t, archive.Data)
	assert.Equal(t, []string{"Cargo.toml", "src/main.rs"}, names(entries))
	assert.Equal(t, []string{"Cargo.toml", "src/main.rs"}, archive.Entries)
	assert.Contains(t, logs.String(), "Compressed 2 files, total size: ")
	assert.Len(t, archive.Digest, 64)
}

func TestBuild_OnlyExcludedExtensions_EmptyValidContainer(t *testing.T) {
	root := workspace(t, map[string][]byte{
		"photo.jpg":   []byte("jpeg"),
		"build.sh":    []byte("#!/bin/sh"),
		"src/main.py": []byte("print()"),
	})
	builder, logs := newTestBuilder(newTestFS(), nil)

	archive, err := builder.Build(context.Background(), root)

	require.NoError(t, err)
	assert.Empty(t, unpack(t, archive.Data))
	assert.Empty(t, archive.Entries)
	assert.Contains(t, logs.String(), "Compressed 0 files")
}

func TestBuild_SingularFileCount(t *testing.T) {
	root := workspace(t, map[string][]byte{"README.md": []byte("# hw1\n")})
	builder, logs := newTestBuilder(newTestFS(), nil)

	_, err := builder.Build(context.Background(), root)

	require.NoError(t, err)
	assert.Contains(t, logs.String(), "Compressed 1 file, total size: ")
}

func TestBuild_FileSizeLimit(t *testing.T) {
	const mib = 1024 * 1024
	root := workspace(t, map[string][]byte{
		"exact.txt": bytes.Repeat([]byte("x"), mib),
		"huge.rs":   bytes.Repeat([]byte("y"), mib+1),
	})
	builder, _ := newTestBuilder(newTestFS(), nil)

	archive, err := builder.Build(context.Background(), root)

	require.NoError(t, err)
	entries := unpack(t, archive.Data)
	assert.Equal(t, []string{"exact.txt"}, names(entries))
	assert.Len(t, entries["exact.txt"], mib)
}

func TestBuild_TargetDirectoryNeverArchived(t *testing.T) {
	root := workspace(t, map[string][]byte{
		"target/release/build/out.rs": []byte("generated"),
		"target/CACHEDIR.TAG.txt":     []byte("tag"),
		"crates/target/lib.rs":        []byte("nested target dir is fine"),
		"targets.md":                  []byte("not the build dir"),
	})
	builder, _ := newTestBuilder(newTestFS(), nil)

	archive, err := builder.Build(context.Background(), root)

	require.NoError(t, err)
	assert.Equal(t, []string{"crates/target/lib.rs", "targets.md"}, names(unpack(t, archive.Data)))
}

func TestBuild_RoundTripAndIdempotence(t *testing.T) {
	files := map[string][]byte{
		"Cargo.toml":       []byte("[package]\nname = \"hw1\"\n"),
		"Cargo.lock":       []byte("# lock\n"),
		"src/lib.rs":       []byte("pub fn answer() -> u32 { 42 }\n"),
		"src/bin/cli.rs":   {0x00, 0xff, 0x10, 'r', 's', '\r', '\n'},
		"docs/ZPRAVA.txt":  []byte("příliš žluťoučký kůň\n"),
		"tests/it/main.rs": []byte(""),
	}
	root := workspace(t, files)
	builder, _ := newTestBuilder(newTestFS(), nil)

	first, err := builder.Build(context.Background(), root)
	require.NoError(t, err)
	second, err := builder.Build(context.Background(), root)
	require.NoError(t, err)

	firstEntries := unpack(t, first.Data)
	assert.Len(t, firstEntries, len(files))
	for name, content := range files {
		assert.Equal(t, content, firstEntries[name], "entry %s must round-trip byte for byte", name)
	}
	assert.Equal(t, firstEntries, unpack(t, second.Data))
}

func TestBuild_ExtensionMatchIsCaseSensitive(t *testing.T) {
	root := workspace(t, map[string][]byte{
		"README.MD":  []byte("upper"),
		"Cargo.TOML": []byte("upper"),
		"notes.txt":  []byte("lower"),
	})
	builder, _ := newTestBuilder(newTestFS(), nil)

	archive, err := builder.Build(context.Background(), root)

	require.NoError(t, err)
	assert.Equal(t, []string{"notes.txt"}, names(unpack(t, archive.Data)))
}

func TestBuild_HiddenEntriesSkipped(t *testing.T) {
	root := workspace(t, map[string][]byte{
		".secrets.toml":      []byte("token = 1"),
		".cargo/config.toml": []byte("[build]"),
		"src/main.rs":        []byte("fn main() {}"),
	})
	builder, _ := newTestBuilder(newTestFS(), nil)

	archive, err := builder.Build(context.Background(), root)

	require.NoError(t, err)
	assert.Equal(t, []string{"src/main.rs"}, names(unpack(t, archive.Data)))
}

func TestBuild_GitignoreInsideRepository(t *testing.T) {
	root := workspace(t, map[string][]byte{
		".gitignore":        []byte("generated/\n*.lock\n"),
		"Cargo.toml":        []byte("[package]"),
		"Cargo.lock":        []byte("# lock"),
		"generated/api.rs":  []byte("// generated"),
		"src/main.rs":       []byte("fn main() {}"),
		"src/.gitignore":    []byte("scratch.rs\n"),
		"src/scratch.rs":    []byte("// scratch"),
		"tests/scratch.rs":  []byte("// kept, rule is scoped to src"),
		"docs/.ignore":      []byte("draft.md\n"),
		"docs/draft.md":     []byte("draft"),
		"docs/published.md": []byte("published"),
	})
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	builder, _ := newTestBuilder(newTestFS(), nil)

	archive, err := builder.Build(context.Background(), root)

	require.NoError(t, err)
	assert.Equal(t,
		[]string{"Cargo.toml", "docs/published.md", "src/main.rs", "tests/scratch.rs"},
		names(unpack(t, archive.Data)))
}

func TestBuild_GitignoreOutsideRepositoryIgnored(t *testing.T) {
	root := workspace(t, map[string][]byte{
		".gitignore": []byte("*.lock\n"),
		"Cargo.lock": []byte("# lock"),
	})
	builder, _ := newTestBuilder(newTestFS(), nil)

	archive, err := builder.Build(context.Background(), root)

	require.NoError(t, err)
	assert.Equal(t, []string{"Cargo.lock"}, names(unpack(t, archive.Data)))
}

func TestBuild_UnreadableFileSkippedWithWarning(t *testing.T) {
	root := workspace(t, map[string][]byte{
		"src/main.rs": []byte("fn main() {}"),
		"src/bad.rs":  []byte("unreadable"),
	})
	fs := newTestFS()
	fs.readErrs[filepath.Join(root, "src", "bad.rs")] = os.ErrPermission
	builder, logs := newTestBuilder(fs, nil)

	archive, err := builder.Build(context.Background(), root)

	require.NoError(t, err)
	assert.Equal(t, []string{"src/main.rs"}, names(unpack(t, archive.Data)))
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "bad.rs")
	assert.Contains(t, logs.String(), "permission denied")
	assert.Contains(t, logs.String(), "Compressed 1 file,")
}

func TestBuild_UnreadableDirectorySkippedWithWarning(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("directory permissions are POSIX-only")
	}
	if os.Geteuid() == 0 {
		t.Skip("root can read any directory")
	}
	root := workspace(t, map[string][]byte{
		"README.md":        []byte("# hw1"),
		"private/notes.md": []byte("hidden by permissions"),
		"src/main.rs":      []byte("fn main() {}"),
	})
	private := filepath.Join(root, "private")
	require.NoError(t, os.Chmod(private, 0o000))
	t.Cleanup(func() { _ = os.Chmod(private, 0o755) })
	builder, logs := newTestBuilder(newTestFS(), nil)

	archive, err := builder.Build(context.Background(), root)

	require.NoError(t, err)
	assert.Equal(t, []string{"README.md", "src/main.rs"}, names(unpack(t, archive.Data)))
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "private")
	assert.Contains(t, logs.String(), "Compressed 2 files,")
}

func TestBuild_OtherFilesystemNotEntered(t *testing.T) {
	root := workspace(t, map[string][]byte{
		"src/main.rs":     []byte("fn main() {}"),
		"mnt/shared.rs":   []byte("on another device"),
		"mnt/deep/lib.rs": []byte("also on another device"),
	})
	fs := newTestFS()
	fs.devices[filepath.Join(root, "mnt")] = 2
	builder, _ := newTestBuilder(fs, nil)

	archive, err := builder.Build(context.Background(), root)

	require.NoError(t, err)
	assert.Equal(t, []string{"src/main.rs"}, names(unpack(t, archive.Data)))
}

func TestBuild_SymlinksNotFollowed(t *testing.T) {
	outside := workspace(t, map[string][]byte{"secret.txt": []byte("outside the workspace")})
	root := workspace(t, map[string][]byte{"src/main.rs": []byte("fn main() {}")})
	if err := os.Symlink(filepath.Join(outside, "secret.txt"), filepath.Join(root, "leak.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "linked")))
	builder, _ := newTestBuilder(newTestFS(), nil)

	archive, err := builder.Build(context.Background(), root)

	require.NoError(t, err)
	assert.Equal(t, []string{"src/main.rs"}, names(unpack(t, archive.Data)))
}

func TestBuild_ConfiguredRules(t *testing.T) {
	root := workspace(t, map[string][]byte{
		"main.go":       []byte("package main"),
		"vendor/dep.go": []byte("package dep"),
		"Cargo.toml":    []byte("[package]"),
	})
	cfg := config.DefaultConfig()
	cfg.Archive.Extensions = []string{"go"}
	cfg.Archive.ExcludedDirs = []string{"vendor"}
	builder, _ := newTestBuilder(newTestFS(), cfg)

	archive, err := builder.Build(context.Background(), root)

	require.NoError(t, err)
	assert.Equal(t, []string{"main.go"}, names(unpack(t, archive.Data)))
}

func TestBuild_MissingRootYieldsEmptyArchive(t *testing.T) {
	root := filepath.Join(t.TempDir(), "gone")
	builder, logs := newTestBuilder(newTestFS(), nil)

	archive, err := builder.Build(context.Background(), root)

	require.NoError(t, err)
	assert.Empty(t, unpack(t, archive.Data))
	assert.True(t, strings.Contains(logs.String(), "level=WARN"))
}

func TestBuild_CancelledContext(t *testing.T) {
	root := workspace(t, map[string][]byte{"src/main.rs": []byte("fn main() {}")})
	builder, _ := newTestBuilder(newTestFS(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := builder.Build(ctx, root)

	assert.True(t, errors.Is(err, context.Canceled))
}
