package format

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAlign(t *testing.T) {
	require.Equal(t, 8, Align8(1))
	require.Equal(t, 8, Align8(8))
	require.Equal(t, 16, Align8(9))
	require.Equal(t, ChunkSize, AlignChunk(1))
	require.Equal(t, 2*ChunkSize, AlignChunk(ChunkSize+1))
	require.Equal(t, 3, ChunksForBytes(2*ChunkSize+1))
	require.Equal(t, 1, ChunkOf(ChunkSize))
}

func TestSizeClass(t *testing.T) {
	require.Equal(t, 0, SizeClass(MinBlockSize))
	require.Equal(t, NumSizeClasses-1, SizeClass(MaxSmallBlockSize))
	require.Equal(t, -1, SizeClass(MinBlockSize-BlockAlignment))
	require.Equal(t, -1, SizeClass(MaxSmallBlockSize+BlockAlignment))
	for c := 0; c < NumSizeClasses; c++ {
		require.Equal(t, c, SizeClass(ClassSize(c)))
	}
}

func TestHeaderFitsInHeaderChunks(t *testing.T) {
	require.LessOrEqual(t, HeaderEnd, DataAreaOffset)
}

func TestCodecs(t *testing.T) {
	b := make([]byte, 16)
	PutU16(b, 0, 0xBEEF)
	PutI32(b, 2, -5)
	PutU64(b, 8, 0x0102030405060708)
	require.Equal(t, uint16(0xBEEF), ReadU16(b, 0))
	require.Equal(t, int32(-5), ReadI32(b, 2))
	require.Equal(t, uint64(0x0102030405060708), ReadU64(b, 8))
	require.Equal(t, byte(0x08), b[8], "little-endian")

	PutF64(b, 0, 2.5)
	require.Equal(t, 2.5, ReadF64(b, 0))
	PutF32(b, 8, -1.25)
	require.Equal(t, float32(-1.25), ReadF32(b, 8))
}

func TestPoolName(t *testing.T) {
	require.Equal(t, "btree", PoolName(PoolBTree))
	require.Equal(t, "growable-array", PoolName(PoolGrowableArray))
	require.Equal(t, "node-type-3", PoolName(PoolFirstNodeType+3))
	require.Equal(t, "pool-9", PoolName(9))
}
