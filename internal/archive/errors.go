package archive

import (
	"errors"
	"fmt"
)

// -- Errors --

// ReadError is returned when an included file cannot be read.
type ReadError struct {
	Path  string
	Cause error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("cannot read file at %s: %v", e.Path, e.Cause)
}
func (e *ReadError) Unwrap() error { return e.Cause }

// EntryError is returned when a file cannot be stored into the archive.
type EntryError struct {
	Name  string
	Cause error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("cannot store %q into ZIP archive: %v", e.Name, e.Cause)
}
func (e *EntryError) Unwrap() error { return e.Cause }

// FinalizeError is returned when the archive's central directory cannot be written.
// It is the only error that aborts a build.
type FinalizeError struct {
	Cause error
}

func (e *FinalizeError) Error() string {
	return fmt.Sprintf("cannot create ZIP archive: %v", e.Cause)
}
func (e *FinalizeError) Unwrap() error { return e.Cause }

// -- Sentinels --

var (
	ErrInvalidEntryName = errors.New("invalid entry name")
	ErrDuplicateEntry   = errors.New("duplicate entry")
)
