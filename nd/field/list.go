package field

import (
	"fmt"

	"github.com/joshuapare/ndkit/internal/format"
	"github.com/joshuapare/ndkit/nd"
	"github.com/joshuapare/ndkit/nd/db"
)

// List layout.
//
// Header embedded in the record:
//
//	0x00  ptr  first block
//	0x04  ptr  last block that had free space at the previous append
//
// Block, from PoolLinkedList:
//
//	0x00  ptr  next block
//	0x04  u16  capacity in elements
//	0x06  u16  elements in use
//	0x08  ...  elements
const (
	listFirstOff = 0
	listLastOff  = format.PtrSize
	listSize     = 2 * format.PtrSize

	blockNextOff  = 0
	blockCapOff   = 4
	blockCountOff = 6
	blockHeader   = 8
)

// List is a chunked list of fixed-size elements laid out by an element
// StructDef. Blocks are appended as the list grows; existing blocks are never
// resized, and no block crosses a chunk boundary.
type List[T any] struct {
	base
	elem   *StructDef
	wrap   func(n *nd.Nd, addr db.Address) T
	growBy int
	maxCap int
}

// NewList declares a list of elem records. wrap turns an element address
// into a T. Lists grow one element per block unless GrowBy says otherwise.
func NewList[T any](sd *StructDef, name string, elem *StructDef, wrap func(*nd.Nd, db.Address) T) *List[T] {
	if !elem.done {
		configPanic(sd, name, "element struct %s is not done", elem.name)
	}
	if elem.size <= 0 {
		configPanic(sd, name, "element struct %s is empty", elem.name)
	}
	f := &List[T]{
		base:   sd.add(name, listSize),
		elem:   elem,
		wrap:   wrap,
		growBy: 1,
		maxCap: max(1, min((format.MaxSingleBlockMallocSize-blockHeader)/elem.size, 0xFFFF)),
	}
	if blockHeader+elem.size > format.MaxSingleBlockMallocSize {
		configPanic(sd, name, "element struct %s does not fit in a chunk", elem.name)
	}
	sd.addDestructable(f)
	return f
}

// GrowBy sets how many elements a block allocated by Append can hold.
func (f *List[T]) GrowBy(k int) *List[T] {
	if k < 1 {
		configPanic(f.owner, f.name, "grow-by %d", k)
	}
	f.growBy = min(k, f.maxCap)
	return f
}

// MaxBlockCapacity returns the most elements one block can hold.
func (f *List[T]) MaxBlockCapacity() int { return f.maxCap }

type listBlock struct {
	addr       db.Address
	next       db.Address
	cap, count int
}

func (f *List[T]) block(d *db.Database, addr db.Address) (listBlock, error) {
	raw, err := d.GetBytes(addr, blockHeader)
	if err != nil {
		return listBlock{}, err
	}
	return listBlock{
		addr:  addr,
		next:  db.Address(format.ReadU32(raw, blockNextOff)),
		cap:   int(format.ReadU16(raw, blockCapOff)),
		count: int(format.ReadU16(raw, blockCountOff)),
	}, nil
}

func (f *List[T]) newBlock(d *db.Database, capacity int) (db.Address, error) {
	addr, err := d.Malloc(blockHeader+capacity*f.elem.size, format.PoolLinkedList)
	if err != nil {
		return 0, err
	}
	return addr, d.PutU16(addr.Add(blockCapOff), uint16(capacity))
}

func (f *List[T]) slot(b db.Address, i int) db.Address {
	return b.Add(blockHeader + i*f.elem.size)
}

// Append reserves the next element of the list at addr and returns it,
// zeroed and ready to be written.
func (f *List[T]) Append(n *nd.Nd, addr db.Address) (T, error) {
	var zero T
	a, err := f.AppendAddress(n, addr)
	if err != nil {
		return zero, err
	}
	return f.wrap(n, a), nil
}

// AppendAddress is Append returning the element address.
func (f *List[T]) AppendAddress(n *nd.Nd, addr db.Address) (db.Address, error) {
	defer f.begin(n)()
	d := n.DB()
	last, err := d.GetPtr(f.at(addr).Add(listLastOff))
	if err != nil {
		return 0, err
	}

	if last == 0 {
		if last, err = f.newBlock(d, f.growBy); err != nil {
			return 0, err
		}
		if err := d.PutPtr(f.at(addr).Add(listFirstOff), last); err != nil {
			return 0, err
		}
	}
	b, err := f.block(d, last)
	if err != nil {
		return 0, err
	}
	if b.count == b.cap {
		next := b.next
		if next == 0 {
			if next, err = f.newBlock(d, f.growBy); err != nil {
				return 0, err
			}
			if err := d.PutPtr(b.addr.Add(blockNextOff), next); err != nil {
				return 0, err
			}
		}
		if b, err = f.block(d, next); err != nil {
			return 0, err
		}
	}

	if err := d.PutU16(b.addr.Add(blockCountOff), uint16(b.count+1)); err != nil {
		return 0, err
	}
	if err := d.PutPtr(f.at(addr).Add(listLastOff), b.addr); err != nil {
		return 0, err
	}
	return f.slot(b.addr, b.count), nil
}

// Allocate makes room for k more appends using as few new blocks as
// possible. Space already free at the tail of the list counts towards k.
// Existing elements are not moved.
func (f *List[T]) Allocate(n *nd.Nd, addr db.Address, k int) error {
	if k <= 0 {
		return nil
	}
	defer f.begin(n)()
	d := n.DB()
	last, err := d.GetPtr(f.at(addr).Add(listLastOff))
	if err != nil {
		return err
	}

	need := k
	tail := db.Address(0)
	for b := last; b != 0; {
		blk, err := f.block(d, b)
		if err != nil {
			return err
		}
		need -= blk.cap - blk.count
		tail, b = b, blk.next
	}

	for need > 0 {
		c := min(need, f.maxCap)
		blk, err := f.newBlock(d, c)
		if err != nil {
			return err
		}
		if tail == 0 {
			if err := d.PutPtr(f.at(addr).Add(listFirstOff), blk); err != nil {
				return err
			}
			if err := d.PutPtr(f.at(addr).Add(listLastOff), blk); err != nil {
				return err
			}
		} else if err := d.PutPtr(tail.Add(blockNextOff), blk); err != nil {
			return err
		}
		tail = blk
		need -= c
	}
	return nil
}

func (f *List[T]) blocks(d *db.Database, addr db.Address) ([]listBlock, error) {
	var out []listBlock
	p, err := d.GetPtr(f.at(addr).Add(listFirstOff))
	if err != nil {
		return nil, err
	}
	for p != 0 {
		b, err := f.block(d, p)
		if err != nil {
			return nil, err
		}
		if b.count > b.cap {
			return nil, fmt.Errorf("%w: %s block %s holds %d of %d", db.ErrCorrupt, f.tag, p, b.count, b.cap)
		}
		out = append(out, b)
		p = b.next
	}
	return out, nil
}

// Addresses returns the element addresses in append order.
func (f *List[T]) Addresses(n *nd.Nd, addr db.Address) ([]db.Address, error) {
	blocks, err := f.blocks(n.DB(), addr)
	if err != nil {
		return nil, err
	}
	var out []db.Address
	for _, b := range blocks {
		for i := 0; i < b.count; i++ {
			out = append(out, f.slot(b.addr, i))
		}
	}
	return out, nil
}

// AsList returns every element in append order.
func (f *List[T]) AsList(n *nd.Nd, addr db.Address) ([]T, error) {
	addrs, err := f.Addresses(n, addr)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(addrs))
	for i, a := range addrs {
		out[i] = f.wrap(n, a)
	}
	return out, nil
}

// Size returns the number of elements.
func (f *List[T]) Size(n *nd.Nd, addr db.Address) (int, error) {
	blocks, err := f.blocks(n.DB(), addr)
	total := 0
	for _, b := range blocks {
		total += b.count
	}
	return total, err
}

// BlockCount returns the number of blocks, including empty reserved ones.
func (f *List[T]) BlockCount(n *nd.Nd, addr db.Address) (int, error) {
	blocks, err := f.blocks(n.DB(), addr)
	return len(blocks), err
}

// Validate walks the blocks and validates every element.
func (f *List[T]) Validate(n *nd.Nd, addr db.Address) error {
	blocks, err := f.blocks(n.DB(), addr)
	if err != nil {
		return err
	}
	for _, b := range blocks {
		for i := 0; i < b.count; i++ {
			if err := f.elem.Validate(n, f.slot(b.addr, i)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Destruct destructs every element, frees every block and clears the header.
func (f *List[T]) Destruct(n *nd.Nd, addr db.Address) error {
	defer f.begin(n)()
	d := n.DB()
	blocks, err := f.blocks(d, addr)
	if err != nil {
		return err
	}
	for _, b := range blocks {
		for i := 0; i < b.count; i++ {
			if err := f.elem.Destruct(n, f.slot(b.addr, i)); err != nil {
				return err
			}
		}
		if err := d.Free(b.addr, format.PoolLinkedList); err != nil {
			return err
		}
	}
	return d.ClearRange(f.at(addr), listSize)
}
