package field

import (
	"github.com/joshuapare/ndkit/nd"
	"github.com/joshuapare/ndkit/nd/db"
)

// NodeType adapts a node layout to nd.TypeFactory.
type NodeType[T nd.Node] struct {
	sd   *StructDef
	load func(*nd.Nd, db.Address) T
}

var _ nd.TypeFactory = (*NodeType[nd.Record])(nil)

// NewNodeType wraps a finished node layout. load turns an address into a T.
func NewNodeType[T nd.Node](sd *StructDef, load func(*nd.Nd, db.Address) T) *NodeType[T] {
	if !sd.node {
		configPanic(sd, "", "not a node struct")
	}
	if !sd.done {
		configPanic(sd, "", "node type registered before Done")
	}
	return &NodeType[T]{sd: sd, load: load}
}

// Struct returns the layout.
func (t *NodeType[T]) Struct() *StructDef { return t.sd }

func (t *NodeType[T]) Name() string                   { return t.sd.name }
func (t *NodeType[T]) Size() int                      { return t.sd.size }
func (t *NodeType[T]) Deletion() nd.DeletionSemantics { return t.sd.semantics }

func (t *NodeType[T]) Load(n *nd.Nd, addr db.Address) (nd.Node, error) {
	return t.load(n, addr), nil
}

func (t *NodeType[T]) Destruct(n *nd.Nd, addr db.Address) error {
	return t.sd.Destruct(n, addr)
}

func (t *NodeType[T]) HasReferences(n *nd.Nd, addr db.Address) (bool, error) {
	return t.sd.HasReferences(n, addr)
}
