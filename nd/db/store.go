package db

import "context"

// Store persists database chunks. The Database writes only the chunks that
// changed since the last flush, then calls Sync once.
type Store interface {
	// Load returns the whole image, or an empty slice for a new store.
	Load() ([]byte, error)

	// WriteChunk stages chunk index. data is exactly one chunk and must not
	// be retained after the call returns.
	WriteChunk(index int, data []byte) error

	// Sync makes every staged chunk durable. chunkCount is the image size
	// in chunks at the time of the flush.
	Sync(ctx context.Context, chunkCount int) error

	// Close releases the store.
	Close() error
}
