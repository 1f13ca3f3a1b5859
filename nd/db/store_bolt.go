package db

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"

	"github.com/joshuapare/ndkit/internal/format"
)

var (
	boltChunksBucket = []byte("chunks")
	boltMetaBucket   = []byte("meta")
	boltMetaKey      = []byte("image")
)

// boltMeta is the msgpack-encoded description of the stored image.
type boltMeta struct {
	Version    int    `msgpack:"v"`
	ChunkCount int    `msgpack:"chunks"`
	Syncs      uint64 `msgpack:"syncs"`
}

// BoltStore keeps each chunk as a value in a bbolt bucket, keyed by the
// big-endian chunk index. A Sync is a single bolt transaction, so a flush is
// applied atomically.
type BoltStore struct {
	bdb     *bbolt.DB
	pending map[int][]byte
	meta    boltMeta
}

// OpenBoltStore opens or creates a bolt file at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	bdb, err := bbolt.Open(path, 0o644, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	s := &BoltStore{bdb: bdb, pending: make(map[int][]byte)}
	err = bdb.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(boltChunksBucket); err != nil {
			return err
		}
		mb, err := tx.CreateBucketIfNotExists(boltMetaBucket)
		if err != nil {
			return err
		}
		if raw := mb.Get(boltMetaKey); raw != nil {
			return msgpack.Unmarshal(raw, &s.meta)
		}
		return nil
	})
	if err != nil {
		_ = bdb.Close()
		return nil, fmt.Errorf("db: bolt store: %w", err)
	}
	return s, nil
}

func chunkKey(index int) []byte {
	var k [4]byte
	binary.BigEndian.PutUint32(k[:], uint32(index))
	return k[:]
}

func (s *BoltStore) Load() ([]byte, error) {
	if s.meta.ChunkCount == 0 {
		return nil, nil
	}
	if s.meta.Version != format.Version {
		return nil, fmt.Errorf("%w: %d", format.ErrVersion, s.meta.Version)
	}
	data := make([]byte, s.meta.ChunkCount*format.ChunkSize)
	err := s.bdb.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(boltChunksBucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			idx := int(binary.BigEndian.Uint32(k))
			if idx >= s.meta.ChunkCount || len(v) != format.ChunkSize {
				return fmt.Errorf("%w: bolt chunk %d", ErrCorrupt, idx)
			}
			copy(data[idx*format.ChunkSize:], v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *BoltStore) WriteChunk(index int, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	s.pending[index] = cp
	return nil
}

func (s *BoltStore) Sync(ctx context.Context, chunkCount int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	meta := s.meta
	meta.Version = format.Version
	meta.ChunkCount = chunkCount
	meta.Syncs++
	raw, err := msgpack.Marshal(&meta)
	if err != nil {
		return err
	}
	err = s.bdb.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(boltChunksBucket)
		for idx, v := range s.pending {
			if err := b.Put(chunkKey(idx), v); err != nil {
				return err
			}
		}
		return tx.Bucket(boltMetaBucket).Put(boltMetaKey, raw)
	})
	if err != nil {
		return err
	}
	s.meta = meta
	clear(s.pending)
	return nil
}

// Syncs returns how many flushes the store has committed.
func (s *BoltStore) Syncs() uint64 { return s.meta.Syncs }

func (s *BoltStore) Close() error {
	return s.bdb.Close()
}
