package config

import "fmt"

// FileError is returned when a config file exists but cannot be read or parsed.
type FileError struct {
	Path  string
	Cause error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("failed to load config %s: %v", e.Path, e.Cause)
}
func (e *FileError) Unwrap() error { return e.Cause }
