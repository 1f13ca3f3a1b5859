package field

import (
	"fmt"

	"github.com/joshuapare/ndkit/internal/buf"
	"github.com/joshuapare/ndkit/internal/format"
	"github.com/joshuapare/ndkit/nd"
	"github.com/joshuapare/ndkit/nd/db"
)

// OneToMany header layout. The entries live in a separate array from
// PoolGrowableArray that doubles when full.
const (
	oneToManySizeOff  = 0
	oneToManyCapOff   = 4
	oneToManyArrayOff = 8
	oneToManySize     = 8 + format.PtrSize

	oneToManyMinCap = 2
)

// BackPointers is implemented by OneToMany fields so that a ManyToOne can be
// declared against any of them.
type BackPointers interface {
	backPointers() backPointers
}

type backPointers interface {
	bind(fwd forwardLink) forwardLink
	label() string
	add(n *nd.Nd, target, fwd db.Address) (int, error)
	remove(n *nd.Nd, target db.Address, idx int, fwd db.Address) error
	entry(n *nd.Nd, target db.Address, idx int) (db.Address, error)
}

type forwardLink interface {
	label() string
	setIndex(n *nd.Nd, fwd db.Address, idx int) error
	clearedByBackPointer(n *nd.Nd, fwd db.Address) error
}

// OneToMany is the back-pointer side of a ManyToOne: the unordered set of T
// records pointing at this one.
type OneToMany[T nd.Node] struct {
	base
	forward forwardLink
}

// NewOneToMany declares a back-pointer collection. It is bound to its
// forward field when that field is declared.
func NewOneToMany[T nd.Node](sd *StructDef, name string) *OneToMany[T] {
	f := &OneToMany[T]{base: sd.add(name, oneToManySize)}
	sd.addDestructable(f)
	sd.addRefCounter(f)
	return f
}

func (f *OneToMany[T]) backPointers() backPointers { return f }

func (f *OneToMany[T]) label() string { return f.tag }

func (f *OneToMany[T]) bind(fwd forwardLink) forwardLink {
	if f.forward != nil && f.forward != fwd {
		return f.forward
	}
	f.forward = fwd
	return nil
}

type oneToManyHeader struct {
	size, cap int
	array     db.Address
}

func (f *OneToMany[T]) header(n *nd.Nd, addr db.Address) (oneToManyHeader, error) {
	raw, err := n.DB().GetBytes(f.at(addr), oneToManySize)
	if err != nil {
		return oneToManyHeader{}, err
	}
	h := oneToManyHeader{
		size:  int(format.ReadU32(raw, oneToManySizeOff)),
		cap:   int(format.ReadU32(raw, oneToManyCapOff)),
		array: db.Address(format.ReadU32(raw, oneToManyArrayOff)),
	}
	if h.size > h.cap || (h.array == 0) != (h.cap == 0) {
		return h, fmt.Errorf("%w: %s at %s holds %d of %d", db.ErrCorrupt, f.tag, addr, h.size, h.cap)
	}
	if h.array != 0 {
		blockSize, err := n.DB().BlockSize(h.array)
		if err != nil {
			return h, err
		}
		if _, err := buf.CheckListBounds(blockSize-format.BlockHeaderSize, 0, h.cap, format.PtrSize); err != nil {
			return h, fmt.Errorf("%w: %s array %s: %v", db.ErrCorrupt, f.tag, h.array, err)
		}
	}
	return h, nil
}

func (f *OneToMany[T]) putHeader(n *nd.Nd, addr db.Address, h oneToManyHeader) error {
	var raw [oneToManySize]byte
	format.PutU32(raw[:], oneToManySizeOff, uint32(h.size))
	format.PutU32(raw[:], oneToManyCapOff, uint32(h.cap))
	format.PutU32(raw[:], oneToManyArrayOff, uint32(h.array))
	return n.DB().PutBytes(f.at(addr), raw[:])
}

func slot(array db.Address, i int) db.Address {
	return array.Add(i * format.PtrSize)
}

func (f *OneToMany[T]) add(n *nd.Nd, target, fwd db.Address) (int, error) {
	defer f.begin(n)()
	d := n.DB()
	h, err := f.header(n, target)
	if err != nil {
		return 0, err
	}
	if h.size == h.cap {
		newCap := max(oneToManyMinCap, h.cap*2)
		array, err := d.Malloc(newCap*format.PtrSize, format.PoolGrowableArray)
		if err != nil {
			return 0, err
		}
		if h.size > 0 {
			if err := d.Memcpy(array, h.array, h.size*format.PtrSize); err != nil {
				return 0, err
			}
		}
		if h.array != 0 {
			if err := d.Free(h.array, format.PoolGrowableArray); err != nil {
				return 0, err
			}
		}
		h.cap, h.array = newCap, array
	}
	if err := d.PutPtr(slot(h.array, h.size), fwd); err != nil {
		return 0, err
	}
	idx := h.size
	h.size++
	return idx, f.putHeader(n, target, h)
}

func (f *OneToMany[T]) entry(n *nd.Nd, target db.Address, idx int) (db.Address, error) {
	h, err := f.header(n, target)
	if err != nil {
		return 0, err
	}
	if idx < 0 || idx >= h.size {
		return 0, fmt.Errorf("%w: %s of %s has %d entries, index %d", ErrInconsistent, f.tag, target, h.size, idx)
	}
	return n.DB().GetPtr(slot(h.array, idx))
}

// remove drops entry idx, which must hold fwd, by moving the last entry into
// its place and telling the moved record its new index.
func (f *OneToMany[T]) remove(n *nd.Nd, target db.Address, idx int, fwd db.Address) error {
	defer f.begin(n)()
	d := n.DB()
	h, err := f.header(n, target)
	if err != nil {
		return err
	}
	got, err := f.entry(n, target, idx)
	if err != nil {
		return err
	}
	if got != fwd {
		return fmt.Errorf("%w: %s of %s holds %s at %d, want %s", ErrInconsistent, f.tag, target, got, idx, fwd)
	}

	last := h.size - 1
	if idx != last {
		moved, err := d.GetPtr(slot(h.array, last))
		if err != nil {
			return err
		}
		if err := d.PutPtr(slot(h.array, idx), moved); err != nil {
			return err
		}
		if err := f.forward.setIndex(n, moved, idx); err != nil {
			return err
		}
	}
	if err := d.PutPtr(slot(h.array, last), 0); err != nil {
		return err
	}
	h.size = last
	if h.size == 0 {
		if err := d.Free(h.array, format.PoolGrowableArray); err != nil {
			return err
		}
		h.cap, h.array = 0, 0
	}
	return f.putHeader(n, target, h)
}

// Size returns the number of records pointing at addr.
func (f *OneToMany[T]) Size(n *nd.Nd, addr db.Address) (int, error) {
	h, err := f.header(n, addr)
	return h.size, err
}

// IsEmpty reports whether nothing points at addr.
func (f *OneToMany[T]) IsEmpty(n *nd.Nd, addr db.Address) (bool, error) {
	size, err := f.Size(n, addr)
	return size == 0, err
}

// HasReferences is !IsEmpty.
func (f *OneToMany[T]) HasReferences(n *nd.Nd, addr db.Address) (bool, error) {
	size, err := f.Size(n, addr)
	return size > 0, err
}

// GetAddress returns the address of entry i.
func (f *OneToMany[T]) GetAddress(n *nd.Nd, addr db.Address, i int) (db.Address, error) {
	return f.entry(n, addr, i)
}

// Get loads entry i.
func (f *OneToMany[T]) Get(n *nd.Nd, addr db.Address, i int) (T, error) {
	p, err := f.entry(n, addr, i)
	if err != nil {
		var zero T
		return zero, err
	}
	return nd.LoadAs[T](n, p)
}

// Addresses returns every entry. Order is not meaningful: removals move the
// last entry into the freed slot.
func (f *OneToMany[T]) Addresses(n *nd.Nd, addr db.Address) ([]db.Address, error) {
	h, err := f.header(n, addr)
	if err != nil || h.size == 0 {
		return nil, err
	}
	raw, err := n.DB().GetBytes(h.array, h.size*format.PtrSize)
	if err != nil {
		return nil, err
	}
	out := make([]db.Address, h.size)
	for i := range out {
		out[i] = db.Address(format.ReadU32(raw, i*format.PtrSize))
	}
	return out, nil
}

// AsList loads every entry.
func (f *OneToMany[T]) AsList(n *nd.Nd, addr db.Address) ([]T, error) {
	addrs, err := f.Addresses(n, addr)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(addrs))
	for _, a := range addrs {
		v, err := nd.LoadAs[T](n, a)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Validate checks the collection header and its array.
func (f *OneToMany[T]) Validate(n *nd.Nd, addr db.Address) error {
	_, err := f.Addresses(n, addr)
	return err
}

// Destruct clears the forward pointer of every entry, scheduling the ones
// that were owned through it, and frees the array.
func (f *OneToMany[T]) Destruct(n *nd.Nd, addr db.Address) error {
	defer f.begin(n)()
	addrs, err := f.Addresses(n, addr)
	if err != nil {
		return err
	}
	h, err := f.header(n, addr)
	if err != nil {
		return err
	}
	if len(addrs) > 0 && f.forward == nil {
		configPanic(f.owner, f.name, "back-pointer field has entries but no forward field")
	}
	for _, fwd := range addrs {
		if err := f.forward.clearedByBackPointer(n, fwd); err != nil {
			return err
		}
	}
	if h.array != 0 {
		if err := n.DB().Free(h.array, format.PoolGrowableArray); err != nil {
			return err
		}
	}
	return n.DB().ClearRange(f.at(addr), oneToManySize)
}
