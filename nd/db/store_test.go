package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/ndkit/internal/format"
)

func TestStores_FlushAndReopen(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		open func(t *testing.T) Store
	}{
		{"mem", func() func(t *testing.T) Store {
			s := NewMemStore()
			return func(t *testing.T) Store { return s }
		}()},
		{"file", func(t *testing.T) Store {
			s, err := OpenFileStore(filepath.Join(dir, "index.db"))
			require.NoError(t, err)
			return s
		}},
		{"bolt", func(t *testing.T) Store {
			s, err := OpenBoltStore(filepath.Join(dir, "index.bolt"))
			require.NoError(t, err)
			return s
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Open(Options{Store: tt.open(t)})
			require.NoError(t, err)
			id := d.ID()

			str, err := d.NewString("persisted")
			require.NoError(t, err)
			big, err := d.Malloc(2*format.ChunkSize, format.PoolMisc)
			require.NoError(t, err)
			require.NoError(t, d.PutU64(big+format.ChunkSize, 0x1122334455667788))
			d.SetRoot(str.Address())
			require.NoError(t, d.Flush(context.Background()))
			require.NoError(t, d.Close())

			d2, err := Open(Options{Store: tt.open(t)})
			require.NoError(t, err)
			defer d2.Close()

			require.Equal(t, id, d2.ID())
			require.Equal(t, d.ChunkCount(), d2.ChunkCount())
			require.Equal(t, uint64(1), d2.WriteNumber())
			got, err := d2.GetString(d2.Root()).Value()
			require.NoError(t, err)
			require.Equal(t, "persisted", got)
			v, err := d2.GetU64(big + format.ChunkSize)
			require.NoError(t, err)
			require.Equal(t, uint64(0x1122334455667788), v)

			_, err = d2.ValidateFreeSpace()
			require.NoError(t, err)
		})
	}
}

func TestBoltStore_CountsSyncs(t *testing.T) {
	s, err := OpenBoltStore(filepath.Join(t.TempDir(), "x.bolt"))
	require.NoError(t, err)
	d, err := Open(Options{Store: s})
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Flush(context.Background()))
	_, err = d.Malloc(10, format.PoolMisc)
	require.NoError(t, err)
	require.NoError(t, d.Flush(context.Background()))
	require.NoError(t, d.Flush(context.Background()), "nothing dirty")
	require.Equal(t, uint64(2), s.Syncs())
}

func TestOpen_ReadOnlyRejectsFlush(t *testing.T) {
	d, err := Open(Options{ReadOnly: true})
	require.NoError(t, err)
	require.ErrorIs(t, d.Flush(context.Background()), ErrReadOnly)
}

func TestMappedStore_ReadsFileImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	fs, err := OpenFileStore(path)
	require.NoError(t, err)
	d, err := Open(Options{Store: fs})
	require.NoError(t, err)
	str, err := d.NewString("mapped")
	require.NoError(t, err)
	d.SetRoot(str.Address())
	require.NoError(t, d.Flush(context.Background()))
	require.NoError(t, d.Close())
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	ms, err := OpenMappedStore(path)
	require.NoError(t, err)
	m, err := Open(Options{Store: ms, ReadOnly: true})
	require.NoError(t, err)

	require.Equal(t, d.ID(), m.ID())
	got, err := m.GetString(m.Root()).Value()
	require.NoError(t, err)
	require.Equal(t, "mapped", got)

	// In-memory edits are allowed but never persisted.
	require.NoError(t, m.PutI32(m.Root(), 0))
	_, err = m.Malloc(3*format.ChunkSize, format.PoolMisc)
	require.NoError(t, err)
	require.ErrorIs(t, m.Flush(context.Background()), ErrReadOnly)
	require.NoError(t, m.Close())

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestMappedStore_RejectsWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "odd.db")
	require.NoError(t, os.WriteFile(path, make([]byte, 100), 0o644))
	_, err := OpenMappedStore(path)
	require.ErrorIs(t, err, ErrCorrupt)

	require.NoError(t, os.WriteFile(path, make([]byte, format.ChunkSize), 0o644))
	ms, err := OpenMappedStore(path)
	require.NoError(t, err)
	require.ErrorIs(t, ms.WriteChunk(0, make([]byte, format.ChunkSize)), ErrReadOnly)
	require.ErrorIs(t, ms.Sync(context.Background(), 1), ErrReadOnly)
	require.NoError(t, ms.Close())
	require.NoError(t, ms.Close())
}
