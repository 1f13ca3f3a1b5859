package nd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/joshuapare/ndkit/internal/format"
	"github.com/joshuapare/ndkit/nd/db"
)

// TypeTagSize is the size of the node-type tag at offset 0 of every node.
const TypeTagSize = 2

// Nd is the typed view of a database.
type Nd struct {
	d   *db.Database
	reg *Registry
	lg  *slog.Logger

	root db.Address

	// queue holds pending deletions in FIFO order; queued covers both
	// pending entries and the one being destructed.
	queue  []db.Handle
	queued map[db.Address]struct{}

	deleted uint64
	skipped uint64
}

// New binds reg to d and freezes it. A fresh database gets a zeroed root
// record sized by the registry's root layout.
func New(d *db.Database, reg *Registry, opts Options) (*Nd, error) {
	if reg.root == nil {
		return nil, ErrNoRoot
	}
	opts = opts.withDefaults(d.Logger())
	reg.frozen = true

	n := &Nd{
		d:      d,
		reg:    reg,
		lg:     opts.Logger,
		queued: make(map[db.Address]struct{}),
	}

	n.root = d.Root()
	if n.root == 0 {
		size := max(reg.root.Size(), format.PtrSize)
		root, err := d.Malloc(size, format.PoolDBProperties)
		if err != nil {
			return nil, fmt.Errorf("nd: allocate root: %w", err)
		}
		d.SetRoot(root)
		n.root = root
		n.lg.Debug("nd: root created", "addr", root.String(), "size", size)
	}
	return n, nil
}

// DB returns the underlying database.
func (n *Nd) DB() *db.Database { return n.d }

// Registry returns the frozen node-type registry.
func (n *Nd) Registry() *Registry { return n.reg }

// Logger returns the logger.
func (n *Nd) Logger() *slog.Logger { return n.lg }

// Root returns the root record address.
func (n *Nd) Root() db.Address { return n.root }

// CreateNode allocates a zeroed node of the given type and writes its tag.
func (n *Nd) CreateNode(typeID uint16) (db.Address, error) {
	f, ok := n.reg.Factory(typeID)
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownType, typeID)
	}
	addr, err := n.d.Malloc(max(f.Size(), TypeTagSize), PoolFor(typeID))
	if err != nil {
		return 0, err
	}
	if err := n.d.PutU16(addr, typeID); err != nil {
		return 0, err
	}
	return addr, nil
}

// PoolFor returns the allocation pool of a node type.
func PoolFor(typeID uint16) uint16 {
	return format.PoolFirstNodeType + typeID
}

// NodeType reads the type tag of the node at addr.
func (n *Nd) NodeType(addr db.Address) (uint16, error) {
	return n.d.GetU16(addr)
}

func (n *Nd) factoryAt(addr db.Address) (uint16, TypeFactory, error) {
	if err := n.d.CheckLive(addr); err != nil {
		return 0, nil, err
	}
	typeID, err := n.NodeType(addr)
	if err != nil {
		return 0, nil, err
	}
	f, ok := n.reg.Factory(typeID)
	if !ok {
		return 0, nil, fmt.Errorf("%w: %d at %s", ErrUnknownType, typeID, addr)
	}
	return typeID, f, nil
}

// Load wraps the node at addr using its registered factory. A null address
// yields a nil Node and no error.
func (n *Nd) Load(addr db.Address) (Node, error) {
	if addr == 0 {
		return nil, nil
	}
	_, f, err := n.factoryAt(addr)
	if err != nil {
		return nil, err
	}
	return f.Load(n, addr)
}

// LoadAs loads the node at addr and asserts it to T. A null address yields
// the zero T.
func LoadAs[T Node](n *Nd, addr db.Address) (T, error) {
	var zero T
	node, err := n.Load(addr)
	if err != nil || node == nil {
		return zero, err
	}
	t, ok := node.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %T at %s", ErrWrongType, node, addr)
	}
	return t, nil
}

// ScheduleDeletion queues the node at addr for deletion. Scheduling the same
// node twice before it is processed has no further effect. It never
// destructs anything itself, so it is safe to call from inside field code.
func (n *Nd) ScheduleDeletion(addr db.Address) error {
	if addr == 0 {
		return nil
	}
	if _, ok := n.queued[addr]; ok {
		return nil
	}
	h, err := n.d.HandleOf(addr)
	if err != nil {
		return fmt.Errorf("nd: schedule deletion: %w", err)
	}
	n.queued[addr] = struct{}{}
	n.queue = append(n.queue, h)
	return nil
}

// IsScheduled reports whether addr is queued or being deleted.
func (n *Nd) IsScheduled(addr db.Address) bool {
	_, ok := n.queued[addr]
	return ok
}

// PendingDeletions returns the number of queued deletions.
func (n *Nd) PendingDeletions() int { return len(n.queue) }

// ProcessDeletions drains the queue, including deletions scheduled by the
// destructors it runs. Each node is validated (live, same generation, known
// type) before any of its fields are touched; a request whose node was
// already freed is skipped. A node that fails to delete is dropped from the
// queue so it can be scheduled again.
func (n *Nd) ProcessDeletions() error {
	for len(n.queue) > 0 {
		h := n.queue[0]
		n.queue = n.queue[1:]
		if err := n.deleteOne(h); err != nil {
			delete(n.queued, h.Addr)
			return err
		}
	}
	return nil
}

func (n *Nd) deleteOne(h db.Handle) error {
	if err := n.d.Validate(h); err != nil {
		if !errors.Is(err, db.ErrStaleHandle) {
			return err
		}
		delete(n.queued, h.Addr)
		n.skipped++
		n.lg.Warn("nd: skipping stale deletion", "handle", h.String())
		return nil
	}
	typeID, f, err := n.factoryAt(h.Addr)
	if err != nil {
		return err
	}

	if err := f.Destruct(n, h.Addr); err != nil {
		return fmt.Errorf("nd: destruct %s at %s: %w", f.Name(), h.Addr, err)
	}
	if err := n.d.Free(h.Addr, PoolFor(typeID)); err != nil {
		return err
	}
	delete(n.queued, h.Addr)
	n.deleted++
	n.lg.Debug("nd: deleted", "type", f.Name(), "addr", h.Addr.String(), "pending", len(n.queue))
	return nil
}

// Delete schedules addr and drains the queue.
func (n *Nd) Delete(addr db.Address) error {
	if err := n.ScheduleDeletion(addr); err != nil {
		return err
	}
	return n.ProcessDeletions()
}

// ReleaseIfUnreferenced schedules the node at addr when its type is
// refcounted and none of its reference-bearing fields holds a reference.
// It is the single place where refcounted deletability is decided.
func (n *Nd) ReleaseIfUnreferenced(addr db.Address) error {
	if addr == 0 || n.IsScheduled(addr) {
		return nil
	}
	_, f, err := n.factoryAt(addr)
	if err != nil {
		return err
	}
	if f.Deletion() != Refcounted {
		return nil
	}
	has, err := f.HasReferences(n, addr)
	if err != nil || has {
		return err
	}
	return n.ScheduleDeletion(addr)
}

// DeletionStats reports how many nodes were deleted and how many stale
// requests were skipped.
func (n *Nd) DeletionStats() (deleted, skipped uint64) {
	return n.deleted, n.skipped
}
