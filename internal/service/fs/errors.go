package fs

import (
	"errors"
	"fmt"
)

// -- Errors --

// FileTooLargeError is returned when a file grows past the read limit.
type FileTooLargeError struct {
	Path  string
	Limit int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("file %s exceeds %d bytes", e.Path, e.Limit)
}

// DeviceError is returned when the device of a path cannot be determined.
type DeviceError struct {
	Path  string
	Cause error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("failed to stat device of %s: %v", e.Path, e.Cause)
}
func (e *DeviceError) Unwrap() error { return e.Cause }

// -- Sentinels --

var (
	ErrInvalidLimit = errors.New("invalid limit")
)
