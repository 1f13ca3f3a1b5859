package field

import (
	"fmt"

	"github.com/joshuapare/ndkit/internal/format"
	"github.com/joshuapare/ndkit/nd"
	"github.com/joshuapare/ndkit/nd/db"
)

// String stores a pointer to an interned string owned by the record. The
// empty string is stored as a null pointer.
type String struct {
	base
}

// NewString declares a string field.
func NewString(sd *StructDef, name string) *String {
	f := &String{base: sd.add(name, format.PtrSize)}
	sd.addDestructable(f)
	return f
}

// GetInterned returns the stored record, or nil when empty.
func (f *String) GetInterned(n *nd.Nd, addr db.Address) (*db.InternedString, error) {
	p, err := n.DB().GetPtr(f.at(addr))
	if err != nil {
		return nil, err
	}
	return n.DB().GetString(p), nil
}

// Get returns the stored text.
func (f *String) Get(n *nd.Nd, addr db.Address) (string, error) {
	s, err := f.GetInterned(n, addr)
	if err != nil || s == nil {
		return "", err
	}
	return s.Value()
}

// Put stores s. Nothing is written when the stored text already equals s;
// otherwise the previous string record is freed.
func (f *String) Put(n *nd.Nd, addr db.Address, s string) error {
	defer f.begin(n)()
	if err := db.ValidateString(s); err != nil {
		return fmt.Errorf("%s: %w", f.tag, err)
	}
	old, err := f.GetInterned(n, addr)
	if err != nil {
		return err
	}
	if old == nil && s == "" {
		return nil
	}
	if old != nil {
		eq, err := old.Equals(s)
		if err != nil || eq {
			return err
		}
	}

	var p db.Address
	if s != "" {
		rec, err := n.DB().NewString(s)
		if err != nil {
			return err
		}
		p = rec.Address()
	}
	if err := n.DB().PutPtr(f.at(addr), p); err != nil {
		return err
	}
	if old != nil {
		return old.Delete()
	}
	return nil
}

// Validate checks that a stored pointer names a live string record.
func (f *String) Validate(n *nd.Nd, addr db.Address) error {
	return validateStringPtr(n, f.at(addr))
}

func validateStringPtr(n *nd.Nd, at db.Address) error {
	p, err := n.DB().GetPtr(at)
	if err != nil || p == 0 {
		return err
	}
	_, err = n.DB().BlockSize(p)
	return err
}

// Destruct frees the string and clears the field.
func (f *String) Destruct(n *nd.Nd, addr db.Address) error {
	defer f.begin(n)()
	old, err := f.GetInterned(n, addr)
	if err != nil || old == nil {
		return err
	}
	if err := n.DB().PutPtr(f.at(addr), 0); err != nil {
		return err
	}
	return old.Delete()
}
