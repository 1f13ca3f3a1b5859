package db

import (
	"fmt"

	"github.com/joshuapare/ndkit/internal/format"
)

// BlockInfo describes one block found by Walk.
type BlockInfo struct {
	Addr  Address // payload address
	Size  int     // total size, header included
	InUse bool
	Pool  uint16
	Gen   uint16
}

// Walk visits every block in address order. Blocks tile the data area
// exactly, so a size that does not land on the next header is corruption.
func (d *Database) Walk(fn func(BlockInfo) error) error {
	off := format.DataAreaOffset
	for off < len(d.data) {
		if off+format.BlockHeaderSize > len(d.data) {
			return fmt.Errorf("%w: truncated block header at 0x%x", ErrCorrupt, off)
		}
		raw := format.ReadI32(d.data, off+format.BlockSizeOffset)
		size := int(raw)
		inUse := raw < 0
		if inUse {
			size = -size
		}
		if size < format.MinBlockSize || size%format.BlockAlignment != 0 || off+size > len(d.data) {
			return fmt.Errorf("%w: bad block size %d at 0x%x", ErrCorrupt, size, off)
		}
		if size <= format.MaxSmallBlockSize && format.ChunkOf(off) != format.ChunkOf(off+size-1) {
			return fmt.Errorf("%w: small block at 0x%x crosses a chunk boundary", ErrCorrupt, off)
		}
		info := BlockInfo{
			Addr:  Address(off + format.BlockHeaderSize),
			Size:  size,
			InUse: inUse,
			Pool:  format.ReadU16(d.data, off+format.BlockPoolOffset),
			Gen:   format.ReadU16(d.data, off+format.BlockGenOffset),
		}
		if err := fn(info); err != nil {
			return err
		}
		off += size
	}
	return nil
}

// FreeSpaceReport summarizes ValidateFreeSpace.
type FreeSpaceReport struct {
	FreeBlocks int
	FreeBytes  int64
	UsedBlocks int
	UsedBytes  int64
}

// ValidateFreeSpace cross-checks the free lists against a full block walk:
// every free block must be on exactly the list its size selects, list links
// must be symmetric, and pool statistics must match the in-use blocks.
func (d *Database) ValidateFreeSpace() (FreeSpaceReport, error) {
	var rep FreeSpaceReport
	walked := make(map[Address]int)
	usedByPool := make(map[int]int64)
	err := d.Walk(func(b BlockInfo) error {
		blk := b.Addr - format.BlockHeaderSize
		if b.InUse {
			rep.UsedBlocks++
			rep.UsedBytes += int64(b.Size)
			slot := int(b.Pool)
			if slot >= format.MaxPools {
				slot = format.MaxPools - 1
			}
			usedByPool[slot] += int64(b.Size)
			return nil
		}
		rep.FreeBlocks++
		rep.FreeBytes += int64(b.Size)
		walked[blk] = b.Size
		return nil
	})
	if err != nil {
		return rep, err
	}

	listed := 0
	check := func(headOff int, accept func(size int) bool) error {
		prev := Address(0)
		for blk := Address(format.ReadU32(d.data, headOff)); blk != 0; {
			size, ok := walked[blk]
			if !ok {
				return fmt.Errorf("%w: free list entry 0x%x is not a free block", ErrCorrupt, uint32(blk))
			}
			if !accept(size) {
				return fmt.Errorf("%w: free block 0x%x of size %d on the wrong list", ErrCorrupt, uint32(blk), size)
			}
			if got := Address(format.ReadU32(d.data, int(blk)+format.FreePrevOffset)); got != prev {
				return fmt.Errorf("%w: free block 0x%x has prev 0x%x, want 0x%x", ErrCorrupt, uint32(blk), uint32(got), uint32(prev))
			}
			delete(walked, blk)
			listed++
			prev = blk
			blk = Address(format.ReadU32(d.data, int(blk)+format.FreeNextOffset))
		}
		return nil
	}

	for c := 0; c < format.NumSizeClasses; c++ {
		want := format.ClassSize(c)
		if err := check(d.classHeadOffset(c), func(size int) bool { return size == want }); err != nil {
			return rep, err
		}
	}
	if err := check(format.HeaderLargeFreeOffset, func(size int) bool {
		return size > format.MaxSmallBlockSize && size%format.ChunkSize == 0
	}); err != nil {
		return rep, err
	}
	if len(walked) != 0 {
		return rep, fmt.Errorf("%w: %d free blocks are not on any free list", ErrCorrupt, len(walked))
	}

	for _, s := range d.PoolStats() {
		if usedByPool[int(s.Pool)] != int64(s.Bytes) {
			return rep, fmt.Errorf("%w: pool %d records %d bytes, blocks hold %d",
				ErrCorrupt, s.Pool, s.Bytes, usedByPool[int(s.Pool)])
		}
		delete(usedByPool, int(s.Pool))
	}
	if len(usedByPool) != 0 {
		return rep, fmt.Errorf("%w: in-use blocks in pools without statistics", ErrCorrupt)
	}
	return rep, nil
}
