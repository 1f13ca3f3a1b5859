// Package format houses the low-level layout of an nd database file: the
// header chunk, block headers, and the fixed-width codecs every other package
// uses to touch arena bytes. Nothing here knows about structs or fields.
package format

import "fmt"

var (
	// Magic is the four-byte signature at the start of every database.
	// Layout:
	//   0x00  'n' 'd' 'd' 'b'
	Magic = []byte{'n', 'd', 'd', 'b'}
)

const (
	// Version is the current on-disk layout version.
	Version = 1

	// ChunkSize is the unit of growth, caching and flushing. Small blocks
	// never cross a chunk boundary.
	ChunkSize = 4096

	// ChunkMask extracts the offset within a chunk.
	ChunkMask = ChunkSize - 1

	// NumHeaderChunks is the number of chunks reserved for the header.
	// Address 0 lives in the header, so no record can ever be allocated there.
	NumHeaderChunks = 1

	// DataAreaOffset is the address of the first data chunk.
	DataAreaOffset = NumHeaderChunks * ChunkSize

	// PtrSize is the width of a stored address.
	PtrSize = 4

	// BlockAlignment is the granularity of every allocation.
	BlockAlignment = 8

	// BlockAlignmentMask is BlockAlignment - 1.
	BlockAlignmentMask = BlockAlignment - 1

	// BlockHeaderSize precedes every block, free or in use:
	//   0x00  int32  size (negative while in use, positive when free)
	//   0x04  uint16 pool id
	//   0x06  uint16 generation
	BlockHeaderSize = 8

	BlockSizeOffset = 0x00
	BlockPoolOffset = 0x04
	BlockGenOffset  = 0x06

	// Free blocks reuse their payload for list links.
	FreeNextOffset = BlockHeaderSize
	FreePrevOffset = BlockHeaderSize + PtrSize

	// MinBlockSize is the smallest block that can hold free-list links.
	MinBlockSize = BlockHeaderSize + 2*PtrSize

	// MaxSmallBlockSize is the largest block that fits in a single chunk.
	MaxSmallBlockSize = ChunkSize

	// MaxSingleBlockMallocSize is the largest payload that is guaranteed not
	// to span a chunk boundary.
	MaxSingleBlockMallocSize = MaxSmallBlockSize - BlockHeaderSize

	// NumSizeClasses is the number of small free lists, one per 8-byte step
	// from MinBlockSize up to MaxSmallBlockSize.
	NumSizeClasses = (MaxSmallBlockSize-MinBlockSize)/BlockAlignment + 1

	// MaxPools is the number of pools whose usage is tracked individually.
	// Pool ids at or beyond it share the last slot.
	MaxPools = 64

	// PoolStatsEntrySize is count (uint32), reserved (uint32), bytes (uint64).
	PoolStatsEntrySize = 16
)

// Header field offsets within chunk 0.
const (
	HeaderMagicOffset       = 0x00 // 4
	HeaderVersionOffset     = 0x04 // uint32
	HeaderIDOffset          = 0x08 // 16-byte database id
	HeaderChunkCountOffset  = 0x18 // uint32
	HeaderWriteNumberOffset = 0x1C // uint64
	HeaderRootOffset        = 0x24 // ptr
	HeaderLargeFreeOffset   = 0x28 // ptr, head of the free run list
	HeaderFlagsOffset       = 0x2C // uint32
	HeaderMallocTableOffset = 0x40
	HeaderPoolStatsOffset   = HeaderMallocTableOffset + NumSizeClasses*PtrSize
	HeaderEnd               = HeaderPoolStatsOffset + MaxPools*PoolStatsEntrySize
)

// Pool ids. Node types allocate from PoolFirstNodeType + type id.
const (
	PoolMisc          uint16 = 0x0000
	PoolBTree         uint16 = 0x0001
	PoolDBProperties  uint16 = 0x0002
	PoolStringLong    uint16 = 0x0003
	PoolStringShort   uint16 = 0x0004
	PoolLinkedList    uint16 = 0x0005
	PoolStringSet     uint16 = 0x0006
	PoolGrowableArray uint16 = 0x0007
	PoolFirstNodeType uint16 = 0x0010
)

// PoolName returns a short label for a pool id.
func PoolName(p uint16) string {
	switch p {
	case PoolMisc:
		return "misc"
	case PoolBTree:
		return "btree"
	case PoolDBProperties:
		return "db-properties"
	case PoolStringLong:
		return "string-long"
	case PoolStringShort:
		return "string-short"
	case PoolLinkedList:
		return "linked-list"
	case PoolStringSet:
		return "string-set"
	case PoolGrowableArray:
		return "growable-array"
	}
	if p >= PoolFirstNodeType {
		return fmt.Sprintf("node-type-%d", p-PoolFirstNodeType)
	}
	return fmt.Sprintf("pool-%d", p)
}
