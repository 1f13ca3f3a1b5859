//go:build !unix

package mmfile

import "os"

// Map reads the entire file when mmap is not available. The copy is private
// to the process, matching the unix mapping.
func Map(path string) ([]byte, func() error, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, func() error { return nil }, err
	}
	return data, func() error { return nil }, nil
}
