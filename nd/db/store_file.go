package db

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/joshuapare/ndkit/internal/format"
)

// FileStore persists the image as a flat file, one chunk per 4 KiB page.
type FileStore struct {
	f    *os.File
	path string
}

// OpenFileStore opens or creates the file at path.
func OpenFileStore(path string) (*FileStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileStore{f: f, path: path}, nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load() ([]byte, error) {
	st, err := s.f.Stat()
	if err != nil {
		return nil, err
	}
	size := st.Size()
	if size%format.ChunkSize != 0 {
		return nil, fmt.Errorf("%w: file size %d is not a multiple of %d", ErrCorrupt, size, format.ChunkSize)
	}
	if size > maxImageSize {
		return nil, fmt.Errorf("%w: file size %d", ErrCorrupt, size)
	}
	data := make([]byte, size)
	if _, err := s.f.ReadAt(data, 0); err != nil && err != io.EOF {
		return nil, err
	}
	return data, nil
}

func (s *FileStore) WriteChunk(index int, data []byte) error {
	_, err := s.f.WriteAt(data, int64(index)*format.ChunkSize)
	return err
}

func (s *FileStore) Sync(ctx context.Context, chunkCount int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	st, err := s.f.Stat()
	if err != nil {
		return err
	}
	if want := int64(chunkCount) * format.ChunkSize; st.Size() > want {
		if err := s.f.Truncate(want); err != nil {
			return err
		}
	}
	return fdatasync(s.f)
}

func (s *FileStore) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
