package field

import (
	"fmt"

	"github.com/joshuapare/ndkit/internal/format"
	"github.com/joshuapare/ndkit/nd"
	"github.com/joshuapare/ndkit/nd/db"
)

// ManyToOne record layout: target pointer, then the index of this record in
// the target's back-pointer collection.
const (
	manyToOnePtr   = 0
	manyToOneIndex = format.PtrSize
	manyToOneSize  = format.PtrSize + 4
)

// ManyToOne links a record to one T. The target keeps the inverse links in
// the OneToMany field the ManyToOne was declared with.
type ManyToOne[T nd.Node] struct {
	base
	ownership Ownership
	back      backPointers
}

// NewManyToOne declares a many-to-one field whose back-pointers live in back,
// a OneToMany field on T. Each OneToMany serves exactly one forward field.
func NewManyToOne[T nd.Node](sd *StructDef, name string, back BackPointers, own Ownership) *ManyToOne[T] {
	f := &ManyToOne[T]{base: sd.add(name, manyToOneSize), ownership: own}
	if back == nil {
		configPanic(sd, name, "many-to-one field needs a back-pointer field")
	}
	f.back = back.backPointers()
	if prev := f.back.bind(f); prev != nil {
		configPanic(sd, name, "back-pointer %s is already bound to %s", f.back.label(), prev.label())
	}
	sd.addDestructable(f)
	return f
}

// Ownership returns the declared ownership.
func (f *ManyToOne[T]) Ownership() Ownership { return f.ownership }

func (f *ManyToOne[T]) label() string { return f.tag }

// GetAddress returns the target address.
func (f *ManyToOne[T]) GetAddress(n *nd.Nd, addr db.Address) (db.Address, error) {
	return n.DB().GetPtr(f.at(addr).Add(manyToOnePtr))
}

// Get loads the target. A missing link yields the zero T.
func (f *ManyToOne[T]) Get(n *nd.Nd, addr db.Address) (T, error) {
	p, err := f.GetAddress(n, addr)
	if err != nil {
		var zero T
		return zero, err
	}
	return nd.LoadAs[T](n, p)
}

// Index returns the position of the record in the target's back-pointer
// collection. It is meaningless while the field is null.
func (f *ManyToOne[T]) Index(n *nd.Nd, addr db.Address) (int, error) {
	v, err := n.DB().GetU32(f.at(addr).Add(manyToOneIndex))
	return int(v), err
}

// Put links the record at addr to target; a nil target breaks the link.
func (f *ManyToOne[T]) Put(n *nd.Nd, addr db.Address, target T) error {
	return f.PutAddress(n, addr, addressOf(target))
}

// PutAddress re-links the record at addr to target. Re-linking the current
// target is a no-op. Clearing an owning link schedules the record itself.
func (f *ManyToOne[T]) PutAddress(n *nd.Nd, addr, target db.Address) error {
	defer f.begin(n)()
	cur, err := f.GetAddress(n, addr)
	if err != nil || cur == target {
		return err
	}
	if err := f.detach(n, addr, cur); err != nil {
		return err
	}

	d := n.DB()
	if target == 0 {
		if f.ownership == Owning {
			return n.ScheduleDeletion(addr)
		}
		return nil
	}
	idx, err := f.back.add(n, target, addr)
	if err != nil {
		return err
	}
	if err := d.PutPtr(f.at(addr).Add(manyToOnePtr), target); err != nil {
		return err
	}
	return d.PutU32(f.at(addr).Add(manyToOneIndex), uint32(idx))
}

// detach removes the record from the back-pointers of cur, clears the field
// and releases cur if that was its last reference.
func (f *ManyToOne[T]) detach(n *nd.Nd, addr, cur db.Address) error {
	if cur == 0 {
		return nil
	}
	idx, err := f.Index(n, addr)
	if err != nil {
		return err
	}
	if err := f.back.remove(n, cur, idx, addr); err != nil {
		return err
	}
	if err := n.DB().ClearRange(f.at(addr), manyToOneSize); err != nil {
		return err
	}
	return n.ReleaseIfUnreferenced(cur)
}

// Destruct detaches the record from its target without scheduling the
// record itself.
func (f *ManyToOne[T]) Destruct(n *nd.Nd, addr db.Address) error {
	defer f.begin(n)()
	cur, err := f.GetAddress(n, addr)
	if err != nil {
		return err
	}
	return f.detach(n, addr, cur)
}

// Validate checks that the target's back-pointer collection holds the record
// at the stored index.
func (f *ManyToOne[T]) Validate(n *nd.Nd, addr db.Address) error {
	cur, err := f.GetAddress(n, addr)
	if err != nil || cur == 0 {
		return err
	}
	idx, err := f.Index(n, addr)
	if err != nil {
		return err
	}
	got, err := f.back.entry(n, cur, idx)
	if err != nil {
		return err
	}
	if got != addr {
		return fmt.Errorf("%w: %s of %s has index %d, back-pointer holds %s",
			ErrInconsistent, f.tag, addr, idx, got)
	}
	return nil
}

func (f *ManyToOne[T]) setIndex(n *nd.Nd, fwd db.Address, idx int) error {
	return n.DB().PutU32(f.at(fwd).Add(manyToOneIndex), uint32(idx))
}

func (f *ManyToOne[T]) clearedByBackPointer(n *nd.Nd, fwd db.Address) error {
	if err := n.DB().ClearRange(f.at(fwd), manyToOneSize); err != nil {
		return err
	}
	if f.ownership == Owning {
		return n.ScheduleDeletion(fwd)
	}
	return nil
}
