package fs

import (
	"fmt"
	"io"
	"os"
)

// OSFileSystem implements filesystem operations using the local OS filesystem primitives.
type OSFileSystem struct{}

// NewOSFileSystem creates a new OSFileSystem.
func NewOSFileSystem() *OSFileSystem {
	return &OSFileSystem{}
}

// Stat returns file info for a path (follows symlinks).
func (fs *OSFileSystem) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

// ReadFile reads a whole file. A zero limit reads without bound; otherwise a
// file holding more than limit bytes at read time yields a FileTooLargeError.
func (fs *OSFileSystem) ReadFile(path string, limit int64) ([]byte, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if limit == 0 {
		return io.ReadAll(file)
	}

	// One byte past the limit tells a file that grew since it was stat'ed.
	content, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(content)) > limit {
		return nil, &FileTooLargeError{Path: path, Limit: limit}
	}

	return content, nil
}

// DeviceID returns the identifier of the device holding path.
func (fs *OSFileSystem) DeviceID(path string) (uint64, error) {
	return deviceID(path)
}
