//go:build !unix

package fs

// Mount boundaries are not detected on this platform; every path reports the same device.
func deviceID(path string) (uint64, error) {
	return 0, nil
}
