package nd

import (
	"fmt"
	"sort"

	"github.com/joshuapare/ndkit/nd/db"
)

// DeletionSemantics says when a node may be deleted.
type DeletionSemantics uint8

const (
	// Explicit nodes are only deleted when someone schedules them. This
	// includes nodes held through an Owning link, which schedules them when
	// the link is broken.
	Explicit DeletionSemantics = iota

	// Refcounted nodes are deleted once no reference-bearing field reports a
	// reference.
	Refcounted
)

func (s DeletionSemantics) String() string {
	switch s {
	case Explicit:
		return "explicit"
	case Refcounted:
		return "refcounted"
	default:
		return fmt.Sprintf("DeletionSemantics(%d)", uint8(s))
	}
}

// Node is a loaded record.
type Node interface {
	Address() db.Address
}

// Record is embedded by node types to satisfy Node.
type Record struct {
	Nd   *Nd
	Addr db.Address
}

// Address returns the record address.
func (r Record) Address() db.Address { return r.Addr }

// TypeFactory describes one node type.
type TypeFactory interface {
	Name() string
	Size() int
	Deletion() DeletionSemantics

	// Load wraps the record at addr.
	Load(n *Nd, addr db.Address) (Node, error)

	// Destruct releases everything the record owns. The record's own block
	// is freed by the caller afterwards.
	Destruct(n *Nd, addr db.Address) error

	// HasReferences reports whether any reference-bearing field of the
	// record still holds a reference.
	HasReferences(n *Nd, addr db.Address) (bool, error)
}

// Layout is the size contract of the root record.
type Layout interface {
	Size() int
}

// Registry maps node type ids to factories. It is filled once, before New,
// and is read-only afterwards.
type Registry struct {
	types  map[uint16]TypeFactory
	root   Layout
	frozen bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[uint16]TypeFactory)}
}

// Register binds typeID to f. It panics on a duplicate id or after the
// registry has been handed to New.
func (r *Registry) Register(typeID uint16, f TypeFactory) *Registry {
	if r.frozen {
		panic(fmt.Sprintf("nd: register %q after the registry was frozen", f.Name()))
	}
	if prev, ok := r.types[typeID]; ok {
		panic(fmt.Sprintf("nd: type id %d used by both %q and %q", typeID, prev.Name(), f.Name()))
	}
	r.types[typeID] = f
	return r
}

// SetRoot declares the layout of the root record.
func (r *Registry) SetRoot(l Layout) *Registry {
	if r.frozen {
		panic("nd: set root after the registry was frozen")
	}
	r.root = l
	return r
}

// Factory returns the factory registered for typeID.
func (r *Registry) Factory(typeID uint16) (TypeFactory, bool) {
	f, ok := r.types[typeID]
	return f, ok
}

// TypeIDs returns the registered ids in ascending order.
func (r *Registry) TypeIDs() []uint16 {
	ids := make([]uint16, 0, len(r.types))
	for id := range r.types {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
