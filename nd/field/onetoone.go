package field

import (
	"fmt"

	"github.com/joshuapare/ndkit/internal/format"
	"github.com/joshuapare/ndkit/nd"
	"github.com/joshuapare/ndkit/nd/db"
)

// OneToOneLink is implemented by every OneToOne field, whatever its target
// type, so that two fields can be paired.
type OneToOneLink interface {
	oneToOne() *oneToOneState
}

type oneToOneState struct {
	base
	ownership Ownership
	partner   *oneToOneState
}

// OneToOne links a record to at most one T, whose partner field links back.
type OneToOne[T nd.Node] struct {
	oneToOneState
}

// NewOneToOne declares a one-to-one field. partner is the field on T that
// holds the inverse pointer; pass nil for the side declared first, which is
// bound when its partner is declared. A partner that is already paired with
// another field is a configuration error.
func NewOneToOne[T nd.Node](sd *StructDef, name string, partner OneToOneLink, own Ownership) *OneToOne[T] {
	f := &OneToOne[T]{oneToOneState{base: sd.add(name, format.PtrSize), ownership: own}}
	if partner != nil {
		p := partner.oneToOne()
		if p.partner != nil && p.partner != &f.oneToOneState {
			configPanic(sd, name, "partner %s is already paired with %s", p.tag, p.partner.tag)
		}
		p.partner = &f.oneToOneState
		f.partner = p
	}
	sd.addDestructable(f)
	sd.addRefCounter(f)
	return f
}

func (f *oneToOneState) oneToOne() *oneToOneState { return f }

// Ownership returns the declared ownership.
func (f *oneToOneState) Ownership() Ownership { return f.ownership }

func (f *oneToOneState) mustPartner() *oneToOneState {
	if f.partner == nil {
		configPanic(f.owner, f.name, "one-to-one field used without a partner")
	}
	return f.partner
}

// GetAddress returns the target address.
func (f *oneToOneState) GetAddress(n *nd.Nd, addr db.Address) (db.Address, error) {
	return n.DB().GetPtr(f.at(addr))
}

// HasReferences reports whether the field links to anything.
func (f *oneToOneState) HasReferences(n *nd.Nd, addr db.Address) (bool, error) {
	p, err := f.GetAddress(n, addr)
	return p != 0, err
}

// PutAddress links the record at addr to target, breaking any previous link
// on either side. Re-linking the current target is a no-op.
func (f *oneToOneState) PutAddress(n *nd.Nd, addr, target db.Address) error {
	defer f.begin(n)()
	p := f.mustPartner()
	d := n.DB()

	cur, err := d.GetPtr(f.at(addr))
	if err != nil || cur == target {
		return err
	}
	var displaced db.Address
	if target != 0 {
		if displaced, err = d.GetPtr(target.Add(p.off)); err != nil {
			return err
		}
	}

	if err := f.cleanup(n, cur); err != nil {
		return err
	}
	if target == 0 {
		if err := d.PutPtr(f.at(addr), 0); err != nil {
			return err
		}
		if f.ownership == Owning {
			return n.ScheduleDeletion(addr)
		}
		return nil
	}

	if displaced != 0 {
		// target was paired elsewhere; that record loses its link.
		if err := d.PutPtr(displaced.Add(f.off), 0); err != nil {
			return err
		}
		if f.ownership == Owning {
			if err := n.ScheduleDeletion(displaced); err != nil {
				return err
			}
		} else if err := n.ReleaseIfUnreferenced(displaced); err != nil {
			return err
		}
	}
	if err := d.PutPtr(f.at(addr), target); err != nil {
		return err
	}
	return d.PutPtr(target.Add(p.off), addr)
}

// cleanup detaches the old target cur.
func (f *oneToOneState) cleanup(n *nd.Nd, cur db.Address) error {
	if cur == 0 {
		return nil
	}
	p := f.mustPartner()
	if err := n.DB().PutPtr(cur.Add(p.off), 0); err != nil {
		return err
	}
	if p.ownership == Owning {
		return n.ScheduleDeletion(cur)
	}
	return n.ReleaseIfUnreferenced(cur)
}

// Validate checks that the target points back at the record.
func (f *oneToOneState) Validate(n *nd.Nd, addr db.Address) error {
	cur, err := f.GetAddress(n, addr)
	if err != nil || cur == 0 {
		return err
	}
	back, err := n.DB().GetPtr(cur.Add(f.mustPartner().off))
	if err != nil {
		return err
	}
	if back != addr {
		return fmt.Errorf("%w: %s of %s points at %s, which points back at %s",
			ErrInconsistent, f.tag, addr, cur, back)
	}
	return nil
}

// Destruct breaks the link without scheduling the record itself.
func (f *oneToOneState) Destruct(n *nd.Nd, addr db.Address) error {
	defer f.begin(n)()
	cur, err := f.GetAddress(n, addr)
	if err != nil || cur == 0 {
		return err
	}
	if err := f.cleanup(n, cur); err != nil {
		return err
	}
	return n.DB().PutPtr(f.at(addr), 0)
}

// Get loads the target. A missing link yields the zero T.
func (f *OneToOne[T]) Get(n *nd.Nd, addr db.Address) (T, error) {
	p, err := f.GetAddress(n, addr)
	if err != nil {
		var zero T
		return zero, err
	}
	return nd.LoadAs[T](n, p)
}

// Put links the record at addr to target; a nil target breaks the link.
func (f *OneToOne[T]) Put(n *nd.Nd, addr db.Address, target T) error {
	return f.PutAddress(n, addr, addressOf(target))
}
