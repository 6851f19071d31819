package archive

import (
	"bytes"
	"fmt"
	"io/fs"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/zip"
)

// entryWriter appends deflate entries to an in-memory ZIP container.
type entryWriter struct {
	buf   *bytes.Buffer
	zw    *zip.Writer
	seen  map[string]struct{}
	names []string
}

func newEntryWriter() *entryWriter {
	buf := new(bytes.Buffer)
	return &entryWriter{
		buf:  buf,
		zw:   zip.NewWriter(buf),
		seen: make(map[string]struct{}),
	}
}

// add stores data under name. An existing entry with the same name is never replaced.
func (w *entryWriter) add(name string, data []byte, info fs.FileInfo) error {
	if err := validateName(name); err != nil {
		return &EntryError{Name: name, Cause: err}
	}
	if _, dup := w.seen[name]; dup {
		return &EntryError{Name: name, Cause: ErrDuplicateEntry}
	}

	header := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: info.ModTime(),
	}
	header.SetMode(info.Mode())

	fw, err := w.zw.CreateHeader(header)
	if err != nil {
		return &EntryError{Name: name, Cause: err}
	}
	if _, err := fw.Write(data); err != nil {
		return &EntryError{Name: name, Cause: fmt.Errorf("cannot write bytes into ZIP archive: %w", err)}
	}

	w.seen[name] = struct{}{}
	w.names = append(w.names, name)
	return nil
}

// finish writes the central directory and returns the container bytes.
func (w *entryWriter) finish() ([]byte, error) {
	if err := w.zw.Close(); err != nil {
		return nil, &FinalizeError{Cause: err}
	}
	return w.buf.Bytes(), nil
}

// validateName enforces relative forward-slash names without traversal segments.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidEntryName)
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("%w: %q is not valid UTF-8", ErrInvalidEntryName, name)
	}
	if strings.HasPrefix(name, "/") || strings.Contains(name, `\`) {
		return fmt.Errorf("%w: %q is not a relative forward-slash path", ErrInvalidEntryName, name)
	}
	for _, segment := range strings.Split(name, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return fmt.Errorf("%w: %q contains segment %q", ErrInvalidEntryName, name, segment)
		}
	}
	return nil
}
