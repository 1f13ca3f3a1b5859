package db

import (
	"context"

	"github.com/joshuapare/ndkit/internal/format"
)

// MemStore keeps the flushed image in memory. Reopening a Database on the
// same MemStore sees exactly what was flushed.
type MemStore struct {
	image []byte
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Load() ([]byte, error) {
	out := make([]byte, len(s.image))
	copy(out, s.image)
	return out, nil
}

func (s *MemStore) WriteChunk(index int, data []byte) error {
	end := (index + 1) * format.ChunkSize
	if end > len(s.image) {
		s.image = append(s.image, make([]byte, end-len(s.image))...)
	}
	copy(s.image[index*format.ChunkSize:end], data)
	return nil
}

func (s *MemStore) Sync(_ context.Context, chunkCount int) error {
	if n := chunkCount * format.ChunkSize; n < len(s.image) {
		s.image = s.image[:n]
	}
	return nil
}

func (s *MemStore) Close() error { return nil }
