package field

import (
	"github.com/joshuapare/ndkit/nd"
	"github.com/joshuapare/ndkit/nd/db"
)

// Layout is the placement of one field inside a struct.
type Layout struct {
	Name   string
	Offset int
	Size   int
}

// End returns the first offset past the field.
func (l Layout) End() int { return l.Offset + l.Size }

type destructable interface {
	Destruct(n *nd.Nd, addr db.Address) error
}

// validator is implemented by fields that can check their stored state
// without changing it.
type validator interface {
	Validate(n *nd.Nd, addr db.Address) error
}

type refCounter interface {
	HasReferences(n *nd.Nd, addr db.Address) (bool, error)
}

// StructDef is a record layout under construction. Fields append themselves
// in declaration order; Done freezes the layout.
type StructDef struct {
	name      string
	parent    *StructDef
	size      int
	done      bool
	node      bool
	semantics nd.DeletionSemantics

	layout        []Layout
	destructables []destructable
	refs          []refCounter
}

// NewStruct starts a layout. A non-nil parent must already be done; its
// fields come first and its destructors and reference fields are inherited.
func NewStruct(name string, parent *StructDef) *StructDef {
	sd := &StructDef{name: name, parent: parent}
	if parent == nil {
		return sd
	}
	if !parent.done {
		configPanic(sd, "", "parent %s is not done", parent.name)
	}
	sd.size = parent.size
	sd.node = parent.node
	sd.semantics = parent.semantics
	sd.layout = append(sd.layout, parent.layout...)
	sd.destructables = append(sd.destructables, parent.destructables...)
	sd.refs = append(sd.refs, parent.refs...)
	return sd
}

// NewNodeStruct starts a node layout. Offset 0 holds the node-type tag.
func NewNodeStruct(name string) *StructDef {
	sd := NewStruct(name, nil)
	sd.node = true
	sd.add("type", nd.TypeTagSize)
	return sd
}

// Name returns the struct name.
func (sd *StructDef) Name() string { return sd.name }

// Size returns the record size. It is final once Done has been called.
func (sd *StructDef) Size() int { return sd.size }

// IsNode reports whether records carry a node-type tag.
func (sd *StructDef) IsNode() bool { return sd.node }

// Done freezes the layout.
func (sd *StructDef) Done() *StructDef {
	sd.done = true
	return sd
}

// IsDone reports whether the layout is frozen.
func (sd *StructDef) IsDone() bool { return sd.done }

// UseDeletionSemantics sets when records of this layout may be deleted.
func (sd *StructDef) UseDeletionSemantics(s nd.DeletionSemantics) *StructDef {
	if sd.done {
		configPanic(sd, "", "deletion semantics changed after Done")
	}
	sd.semantics = s
	return sd
}

// Deletion returns the deletion semantics.
func (sd *StructDef) Deletion() nd.DeletionSemantics { return sd.semantics }

// Fields returns the placement of every field, inherited ones first.
func (sd *StructDef) Fields() []Layout {
	out := make([]Layout, len(sd.layout))
	copy(out, sd.layout)
	return out
}

func (sd *StructDef) add(name string, size int) base {
	if sd.done {
		configPanic(sd, name, "field added after Done")
	}
	for _, l := range sd.layout {
		if l.Name == name {
			configPanic(sd, name, "duplicate field name")
		}
	}
	b := base{owner: sd, name: name, off: sd.size, size: size, tag: sd.name + "." + name}
	sd.layout = append(sd.layout, Layout{Name: name, Offset: b.off, Size: size})
	sd.size += size
	return b
}

func (sd *StructDef) addDestructable(d destructable) {
	sd.destructables = append(sd.destructables, d)
}

func (sd *StructDef) addRefCounter(r refCounter) {
	sd.refs = append(sd.refs, r)
}

// Validate checks every field of the record at addr that can be checked.
// Nothing is written.
func (sd *StructDef) Validate(n *nd.Nd, addr db.Address) error {
	for _, d := range sd.destructables {
		v, ok := d.(validator)
		if !ok {
			continue
		}
		if err := v.Validate(n, addr); err != nil {
			return err
		}
	}
	return nil
}

// Destruct runs every field destructor of the record at addr in declaration
// order. It does not free the record itself. The record is validated first,
// so a corrupt field leaves every field untouched.
func (sd *StructDef) Destruct(n *nd.Nd, addr db.Address) error {
	if err := sd.Validate(n, addr); err != nil {
		return err
	}
	for _, d := range sd.destructables {
		if err := d.Destruct(n, addr); err != nil {
			return err
		}
	}
	return nil
}

// HasReferences reports whether any reference-bearing field of the record
// holds a reference.
func (sd *StructDef) HasReferences(n *nd.Nd, addr db.Address) (bool, error) {
	for _, r := range sd.refs {
		has, err := r.HasReferences(n, addr)
		if err != nil || has {
			return has, err
		}
	}
	return false, nil
}

// IsReadyForDeletion reports whether a refcounted record has lost its last
// reference.
func (sd *StructDef) IsReadyForDeletion(n *nd.Nd, addr db.Address) (bool, error) {
	if sd.semantics != nd.Refcounted {
		return false, nil
	}
	has, err := sd.HasReferences(n, addr)
	return !has, err
}

// base is the state shared by every field.
type base struct {
	owner *StructDef
	name  string
	off   int
	size  int
	tag   string
}

// Name returns the field name.
func (b *base) Name() string { return b.name }

// Offset returns the field offset inside its struct.
func (b *base) Offset() int { return b.off }

// Size returns the field footprint in bytes.
func (b *base) Size() int { return b.size }

func (b *base) at(addr db.Address) db.Address { return addr.Add(b.off) }

// begin opens the field's log tag and returns the matching close.
func (b *base) begin(n *nd.Nd) func() {
	log := n.DB().Log()
	log.Start(b.tag)
	return func() { log.End(b.tag) }
}
