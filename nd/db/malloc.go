package db

import (
	"fmt"

	"github.com/joshuapare/ndkit/internal/format"
)

// Allocation uses segregated free lists kept inside the header chunk:
//
//   - Small blocks (up to one chunk) live in one list per 8-byte size class.
//     A request takes the first non-empty class at or above its size and
//     splits off the remainder. Small blocks never cross a chunk boundary.
//   - Large blocks are runs of whole chunks, kept in a single first-fit list.
//
// Every block starts with the 8-byte header described in format. Free blocks
// reuse their first payload bytes for doubly linked list pointers.
//
// Small free blocks are not coalesced. A freed large run is merged with any
// free large runs directly before or after it.

// PoolStats is the usage recorded for one pool.
type PoolStats struct {
	Pool  uint16
	Count uint32
	Bytes uint64
}

// Malloc allocates a zeroed block with at least size payload bytes from the
// given pool and returns the payload address.
func (d *Database) Malloc(size int, pool uint16) (Address, error) {
	if d.closed {
		return 0, indexErr("malloc", 0, ErrClosed)
	}
	if size <= 0 || int64(size) >= maxImageSize {
		return 0, indexErr("malloc", 0, fmt.Errorf("%w: %d", ErrBadSize, size))
	}
	need := format.Align8(size + format.BlockHeaderSize)
	if need < format.MinBlockSize {
		need = format.MinBlockSize
	}

	var (
		blk       Address
		blockSize int
		err       error
	)
	if need <= format.MaxSmallBlockSize {
		blk, blockSize, err = d.allocSmall(need)
	} else {
		blk, blockSize, err = d.allocLarge(need)
	}
	if err != nil {
		return 0, err
	}

	gen := format.ReadU16(d.data, int(blk)+format.BlockGenOffset)
	d.writeBlockHeader(blk, -int32(blockSize), pool, gen)
	payload := blk + format.BlockHeaderSize
	clear(d.data[payload : int(blk)+blockSize])
	d.dirty.Add(int(blk), blockSize)

	d.adjustPool(pool, 1, int64(blockSize))
	d.counters.Mallocs++
	return payload, nil
}

// Free returns the block whose payload starts at addr to its free list.
// pool must match the pool the block was allocated from.
func (d *Database) Free(addr Address, pool uint16) error {
	blk, size, err := d.inUseBlock("free", addr)
	if err != nil {
		return err
	}
	if got := format.ReadU16(d.data, int(blk)+format.BlockPoolOffset); got != pool {
		return indexErr("free", addr, fmt.Errorf("%w: allocated from %d, freed to %d", ErrPoolMismatch, got, pool))
	}

	gen := format.ReadU16(d.data, int(blk)+format.BlockGenOffset) + 1
	d.writeBlockHeader(blk, int32(size), 0, gen)
	if size <= format.MaxSmallBlockSize {
		d.linkFree(d.classHeadOffset(format.SizeClass(size)), blk)
	} else {
		run, _ := d.coalesceLarge(blk, size)
		d.linkFree(format.HeaderLargeFreeOffset, run)
	}

	d.adjustPool(pool, -1, -int64(size))
	d.counters.Frees++
	return nil
}

// BlockSize returns the total size (header included) of the in-use block at addr.
func (d *Database) BlockSize(addr Address) (int, error) {
	_, size, err := d.inUseBlock("blockSize", addr)
	return size, err
}

// HandleOf pins addr to its current generation.
func (d *Database) HandleOf(addr Address) (Handle, error) {
	if addr == 0 {
		return Handle{}, nil
	}
	blk, _, err := d.inUseBlock("handle", addr)
	if err != nil {
		return Handle{}, err
	}
	return Handle{Addr: addr, Gen: format.ReadU16(d.data, int(blk)+format.BlockGenOffset)}, nil
}

// Validate reports ErrStaleHandle when the block behind h was freed since
// the handle was taken.
func (d *Database) Validate(h Handle) error {
	if h.Addr == 0 {
		return nil
	}
	cur, err := d.HandleOf(h.Addr)
	if err != nil {
		return indexErr("validate", h.Addr, ErrStaleHandle)
	}
	if cur.Gen != h.Gen {
		return indexErr("validate", h.Addr, ErrStaleHandle)
	}
	return nil
}

// IsLive reports whether addr is the payload of an in-use block.
func (d *Database) IsLive(addr Address) bool {
	_, _, err := d.inUseBlock("isLive", addr)
	return err == nil
}

// CheckLive is IsLive with an error, honoring Options.CheckHandles.
// With the option off it only rejects the null address.
func (d *Database) CheckLive(addr Address) error {
	if addr == 0 {
		return indexErr("checkLive", addr, ErrNullAddress)
	}
	if !d.opts.CheckHandles {
		return nil
	}
	_, _, err := d.inUseBlock("checkLive", addr)
	return err
}

// PoolStats returns the usage of every pool that has ever allocated.
func (d *Database) PoolStats() []PoolStats {
	var out []PoolStats
	for p := 0; p < format.MaxPools; p++ {
		off := format.HeaderPoolStatsOffset + p*format.PoolStatsEntrySize
		count := format.ReadU32(d.data, off)
		bytes := format.ReadU64(d.data, off+8)
		if count == 0 && bytes == 0 {
			continue
		}
		out = append(out, PoolStats{Pool: uint16(p), Count: count, Bytes: bytes})
	}
	return out
}

// BytesAllocated returns the total size of all in-use blocks.
func (d *Database) BytesAllocated() uint64 {
	var total uint64
	for _, s := range d.PoolStats() {
		total += s.Bytes
	}
	return total
}

func (d *Database) inUseBlock(op string, addr Address) (Address, int, error) {
	if addr == 0 {
		return 0, 0, indexErr(op, addr, ErrNullAddress)
	}
	if int(addr) < format.DataAreaOffset+format.BlockHeaderSize || int(addr) > len(d.data) {
		return 0, 0, indexErr(op, addr, ErrOutOfRange)
	}
	blk := addr - format.BlockHeaderSize
	size := format.ReadI32(d.data, int(blk)+format.BlockSizeOffset)
	if size >= 0 {
		return 0, 0, indexErr(op, addr, ErrNotAllocated)
	}
	n := int(-size)
	if n < format.MinBlockSize || int(blk)+n > len(d.data) {
		return 0, 0, indexErr(op, addr, fmt.Errorf("%w: block size %d", ErrCorrupt, n))
	}
	return blk, n, nil
}

func (d *Database) allocSmall(need int) (Address, int, error) {
	for c := format.SizeClass(need); c < format.NumSizeClasses; c++ {
		headOff := d.classHeadOffset(c)
		blk := Address(format.ReadU32(d.data, headOff))
		if blk == 0 {
			continue
		}
		d.unlinkFree(headOff, blk)
		return blk, d.splitSmall(blk, format.ClassSize(c), need), nil
	}

	blk, err := d.grow(1)
	if err != nil {
		return 0, 0, err
	}
	return blk, d.splitSmall(blk, format.MaxSmallBlockSize, need), nil
}

// splitSmall carves need bytes off the front of a detached free block and
// returns the remainder to its list. It returns the size handed out.
func (d *Database) splitSmall(blk Address, have, need int) int {
	rem := have - need
	if rem < format.MinBlockSize {
		return have
	}
	tail := blk + Address(need)
	gen := format.ReadU16(d.data, int(tail)+format.BlockGenOffset)
	d.writeBlockHeader(tail, int32(rem), 0, gen)
	d.linkFree(d.classHeadOffset(format.SizeClass(rem)), tail)
	return need
}

func (d *Database) allocLarge(need int) (Address, int, error) {
	want := format.AlignChunk(need)
	for blk := Address(format.ReadU32(d.data, format.HeaderLargeFreeOffset)); blk != 0; {
		size := int(format.ReadI32(d.data, int(blk)))
		next := Address(format.ReadU32(d.data, int(blk)+format.FreeNextOffset))
		if size >= want {
			d.unlinkFree(format.HeaderLargeFreeOffset, blk)
			if rem := size - want; rem > 0 {
				tail := blk + Address(want)
				gen := format.ReadU16(d.data, int(tail)+format.BlockGenOffset)
				d.writeBlockHeader(tail, int32(rem), 0, gen)
				if rem > format.MaxSmallBlockSize {
					d.linkFree(format.HeaderLargeFreeOffset, tail)
				} else {
					d.linkFree(d.classHeadOffset(format.SizeClass(rem)), tail)
				}
			}
			return blk, want, nil
		}
		blk = next
	}

	blk, err := d.grow(want / format.ChunkSize)
	if err != nil {
		return 0, 0, err
	}
	return blk, want, nil
}

// coalesceLarge merges the detached free run at blk with its free large
// neighbours, unlinking them, and returns the combined run.
func (d *Database) coalesceLarge(blk Address, size int) (Address, int) {
	for cur := Address(format.ReadU32(d.data, format.HeaderLargeFreeOffset)); cur != 0; {
		next := Address(format.ReadU32(d.data, int(cur)+format.FreeNextOffset))
		curSize := int(format.ReadI32(d.data, int(cur)+format.BlockSizeOffset))
		switch {
		case cur+Address(curSize) == blk:
			d.unlinkFree(format.HeaderLargeFreeOffset, cur)
			blk, size = cur, size+curSize
		case blk+Address(size) == cur:
			d.unlinkFree(format.HeaderLargeFreeOffset, cur)
			size += curSize
		}
		cur = next
	}
	gen := format.ReadU16(d.data, int(blk)+format.BlockGenOffset)
	d.writeBlockHeader(blk, int32(size), 0, gen)
	return blk, size
}

func (d *Database) classHeadOffset(class int) int {
	return format.HeaderMallocTableOffset + class*format.PtrSize
}

func (d *Database) writeBlockHeader(blk Address, size int32, pool, gen uint16) {
	format.PutI32(d.data, int(blk)+format.BlockSizeOffset, size)
	format.PutU16(d.data, int(blk)+format.BlockPoolOffset, pool)
	format.PutU16(d.data, int(blk)+format.BlockGenOffset, gen)
	d.dirty.Add(int(blk), format.BlockHeaderSize)
}

// linkFree pushes blk on the list whose head lives at headOff.
func (d *Database) linkFree(headOff int, blk Address) {
	head := format.ReadU32(d.data, headOff)
	format.PutU32(d.data, int(blk)+format.FreeNextOffset, head)
	format.PutU32(d.data, int(blk)+format.FreePrevOffset, 0)
	if head != 0 {
		format.PutU32(d.data, int(head)+format.FreePrevOffset, uint32(blk))
		d.dirty.Add(int(head)+format.FreePrevOffset, 4)
	}
	format.PutU32(d.data, headOff, uint32(blk))
	d.dirty.Add(headOff, 4)
	d.dirty.Add(int(blk)+format.FreeNextOffset, 8)
}

// unlinkFree removes blk from the list whose head lives at headOff.
func (d *Database) unlinkFree(headOff int, blk Address) {
	next := format.ReadU32(d.data, int(blk)+format.FreeNextOffset)
	prev := format.ReadU32(d.data, int(blk)+format.FreePrevOffset)
	if prev == 0 {
		format.PutU32(d.data, headOff, next)
		d.dirty.Add(headOff, 4)
	} else {
		format.PutU32(d.data, int(prev)+format.FreeNextOffset, next)
		d.dirty.Add(int(prev)+format.FreeNextOffset, 4)
	}
	if next != 0 {
		format.PutU32(d.data, int(next)+format.FreePrevOffset, prev)
		d.dirty.Add(int(next)+format.FreePrevOffset, 4)
	}
}

func (d *Database) adjustPool(pool uint16, count int32, bytes int64) {
	slot := int(pool)
	if slot >= format.MaxPools {
		slot = format.MaxPools - 1
	}
	off := format.HeaderPoolStatsOffset + slot*format.PoolStatsEntrySize
	format.PutU32(d.data, off, uint32(int32(format.ReadU32(d.data, off))+count))
	format.PutU64(d.data, off+8, uint64(int64(format.ReadU64(d.data, off+8))+bytes))
	d.dirty.Add(off, format.PoolStatsEntrySize)
}
