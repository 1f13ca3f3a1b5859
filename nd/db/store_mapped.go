package db

import (
	"context"
	"fmt"

	"github.com/joshuapare/ndkit/internal/format"
	"github.com/joshuapare/ndkit/internal/mmfile"
)

// MappedStore opens a file-store image through a private memory mapping.
// Pages load on first touch and in-memory writes never reach the file, so
// it only serves databases opened with Options.ReadOnly.
type MappedStore struct {
	path    string
	data    []byte
	cleanup func() error
}

// OpenMappedStore maps the file at path. The file must exist.
func OpenMappedStore(path string) (*MappedStore, error) {
	data, cleanup, err := mmfile.Map(path)
	if err != nil {
		return nil, err
	}
	if len(data)%format.ChunkSize != 0 {
		_ = cleanup()
		return nil, fmt.Errorf("%w: file size %d is not a multiple of %d", ErrCorrupt, len(data), format.ChunkSize)
	}
	return &MappedStore{path: path, data: data, cleanup: cleanup}, nil
}

// Path returns the mapped file path.
func (s *MappedStore) Path() string { return s.path }

// Load returns the mapping itself rather than a copy.
func (s *MappedStore) Load() ([]byte, error) {
	if s.cleanup == nil {
		return nil, ErrClosed
	}
	return s.data, nil
}

func (s *MappedStore) WriteChunk(int, []byte) error { return ErrReadOnly }

func (s *MappedStore) Sync(context.Context, int) error { return ErrReadOnly }

func (s *MappedStore) Close() error {
	if s.cleanup == nil {
		return nil
	}
	err := s.cleanup()
	s.cleanup = nil
	s.data = nil
	return err
}
