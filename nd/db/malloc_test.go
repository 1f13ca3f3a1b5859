package db

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/ndkit/internal/format"
)

func TestMalloc_ZeroedAndAligned(t *testing.T) {
	d := New()
	a, err := d.Malloc(13, format.PoolMisc)
	require.NoError(t, err)
	require.Zero(t, int(a)%format.BlockAlignment)

	require.NoError(t, d.PutBytes(a, []byte("dirty bytes!!")))
	require.NoError(t, d.Free(a, format.PoolMisc))

	b, err := d.Malloc(13, format.PoolMisc)
	require.NoError(t, err)
	require.Equal(t, a, b, "freed block of the same class is reused")
	got, err := d.GetBytes(b, 13)
	require.NoError(t, err)
	require.Equal(t, make([]byte, 13), got)
}

func TestMalloc_SmallBlocksNeverCrossChunks(t *testing.T) {
	d := New()
	for i := 0; i < 500; i++ {
		size := 1 + (i*37)%format.MaxSingleBlockMallocSize
		a, err := d.Malloc(size, format.PoolMisc)
		require.NoError(t, err)
		first := format.ChunkOf(int(a) - format.BlockHeaderSize)
		last := format.ChunkOf(int(a) + size - 1)
		require.Equal(t, first, last, "size %d at %s", size, a)
	}
	_, err := d.ValidateFreeSpace()
	require.NoError(t, err)
}

func TestMalloc_LargeRunsAndReuse(t *testing.T) {
	d := New()
	a, err := d.Malloc(3*format.ChunkSize, format.PoolStringLong)
	require.NoError(t, err)
	size, err := d.BlockSize(a)
	require.NoError(t, err)
	require.Equal(t, 4*format.ChunkSize, size)

	require.NoError(t, d.Free(a, format.PoolStringLong))
	b, err := d.Malloc(2*format.ChunkSize, format.PoolStringLong)
	require.NoError(t, err)
	require.Equal(t, a, b, "first-fit reuses the freed run")

	rep, err := d.ValidateFreeSpace()
	require.NoError(t, err)
	require.Equal(t, 1, rep.UsedBlocks)
	require.Equal(t, 1, rep.FreeBlocks)
}

func TestFree_MergesAdjacentLargeRuns(t *testing.T) {
	d := New()
	var runs [3]Address
	for i := range runs {
		a, err := d.Malloc(2*format.ChunkSize-format.BlockHeaderSize, format.PoolMisc)
		require.NoError(t, err)
		runs[i] = a
	}
	_, err := d.Malloc(16, format.PoolMisc)
	require.NoError(t, err)
	chunks := d.ChunkCount()

	require.NoError(t, d.Free(runs[0], format.PoolMisc))
	require.NoError(t, d.Free(runs[2], format.PoolMisc))
	require.NoError(t, d.Free(runs[1], format.PoolMisc))

	var free []BlockInfo
	require.NoError(t, d.Walk(func(b BlockInfo) error {
		if !b.InUse && b.Size > format.MaxSmallBlockSize {
			free = append(free, b)
		}
		return nil
	}))
	require.Len(t, free, 1)
	require.Equal(t, runs[0], free[0].Addr)
	require.Equal(t, 6*format.ChunkSize, free[0].Size)
	_, err = d.ValidateFreeSpace()
	require.NoError(t, err)

	big, err := d.Malloc(6*format.ChunkSize-format.BlockHeaderSize, format.PoolMisc)
	require.NoError(t, err)
	require.Equal(t, runs[0], big, "merged run satisfies the request")
	require.Equal(t, chunks, d.ChunkCount())
	_, err = d.ValidateFreeSpace()
	require.NoError(t, err)
}

func TestFree_Errors(t *testing.T) {
	d := New()
	a, err := d.Malloc(8, format.PoolBTree)
	require.NoError(t, err)

	require.ErrorIs(t, d.Free(a, format.PoolMisc), ErrPoolMismatch)
	require.NoError(t, d.Free(a, format.PoolBTree))
	require.ErrorIs(t, d.Free(a, format.PoolBTree), ErrNotAllocated)
	require.ErrorIs(t, d.Free(0, format.PoolBTree), ErrNullAddress)
}

func TestHandle_DetectsReuse(t *testing.T) {
	d := New()
	a, err := d.Malloc(40, format.PoolMisc)
	require.NoError(t, err)
	h, err := d.HandleOf(a)
	require.NoError(t, err)
	require.NoError(t, d.Validate(h))
	require.True(t, d.IsLive(a))

	require.NoError(t, d.Free(a, format.PoolMisc))
	require.ErrorIs(t, d.Validate(h), ErrStaleHandle)
	require.False(t, d.IsLive(a))

	b, err := d.Malloc(40, format.PoolMisc)
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.ErrorIs(t, d.Validate(h), ErrStaleHandle, "reused block has a new generation")

	h2, err := d.HandleOf(b)
	require.NoError(t, err)
	require.Equal(t, h.Gen+1, h2.Gen)
}

func TestCheckLive_HonorsOption(t *testing.T) {
	d, err := Open(Options{CheckHandles: true})
	require.NoError(t, err)
	a, err := d.Malloc(16, format.PoolMisc)
	require.NoError(t, err)
	require.NoError(t, d.CheckLive(a))
	require.Error(t, d.CheckLive(a+8), "interior address is not a block payload")

	lax := New()
	b, err := lax.Malloc(16, format.PoolMisc)
	require.NoError(t, err)
	require.NoError(t, lax.CheckLive(b+8))
	require.ErrorIs(t, lax.CheckLive(0), ErrNullAddress)
}

func TestPoolStats_TrackAllocations(t *testing.T) {
	d := New()
	a, err := d.Malloc(100, format.PoolBTree)
	require.NoError(t, err)
	_, err = d.Malloc(100, format.PoolFirstNodeType+3)
	require.NoError(t, err)

	stats := map[uint16]PoolStats{}
	for _, s := range d.PoolStats() {
		stats[s.Pool] = s
	}
	require.Equal(t, uint32(1), stats[format.PoolBTree].Count)
	require.Equal(t, uint64(112), stats[format.PoolBTree].Bytes)
	require.Equal(t, uint32(1), stats[format.PoolFirstNodeType+3].Count)

	require.NoError(t, d.Free(a, format.PoolBTree))
	for _, s := range d.PoolStats() {
		require.NotEqual(t, format.PoolBTree, s.Pool)
	}
}

func TestMalloc_RandomWorkloadKeepsFreeListsConsistent(t *testing.T) {
	d := New()
	rng := rand.New(rand.NewSource(42))
	live := map[Address]uint16{}

	for i := 0; i < 2000; i++ {
		if len(live) > 0 && rng.Intn(3) == 0 {
			for a, pool := range live {
				require.NoError(t, d.Free(a, pool))
				delete(live, a)
				break
			}
			continue
		}
		size := 1 + rng.Intn(2*format.ChunkSize)
		pool := uint16(rng.Intn(8))
		a, err := d.Malloc(size, pool)
		require.NoError(t, err)
		_, dup := live[a]
		require.False(t, dup, "address %s handed out twice", a)
		live[a] = pool
	}

	rep, err := d.ValidateFreeSpace()
	require.NoError(t, err)
	require.Equal(t, len(live), rep.UsedBlocks)
	require.Equal(t, d.BytesAllocated(), uint64(rep.UsedBytes))
}
