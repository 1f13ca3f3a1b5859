package nd

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/ndkit/internal/format"
	"github.com/joshuapare/ndkit/nd/db"
)

type fakeNode struct{ Record }

type otherNode struct{ Record }

type fakeType struct {
	name       string
	size       int
	semantics  DeletionSemantics
	referenced map[db.Address]bool
	destructed []db.Address
	onDestruct func(n *Nd, addr db.Address) error
}

func (f *fakeType) Name() string                { return f.name }
func (f *fakeType) Size() int                   { return f.size }
func (f *fakeType) Deletion() DeletionSemantics { return f.semantics }

func (f *fakeType) Load(n *Nd, addr db.Address) (Node, error) {
	return &fakeNode{Record{Nd: n, Addr: addr}}, nil
}

func (f *fakeType) Destruct(n *Nd, addr db.Address) error {
	f.destructed = append(f.destructed, addr)
	if f.onDestruct != nil {
		return f.onDestruct(n, addr)
	}
	return nil
}

func (f *fakeType) HasReferences(_ *Nd, addr db.Address) (bool, error) {
	return f.referenced[addr], nil
}

type rootLayout int

func (r rootLayout) Size() int { return int(r) }

func newTestNd(t *testing.T, types map[uint16]TypeFactory) *Nd {
	t.Helper()
	reg := NewRegistry().SetRoot(rootLayout(16))
	for id, f := range types {
		reg.Register(id, f)
	}
	n, err := New(db.New(), reg, Options{})
	require.NoError(t, err)
	return n
}

func TestNew_CreatesRootOnce(t *testing.T) {
	d := db.New()
	reg := NewRegistry().SetRoot(rootLayout(64))
	n, err := New(d, reg, Options{})
	require.NoError(t, err)
	require.NotEqual(t, db.Null, n.Root())
	require.Equal(t, n.Root(), d.Root())

	again, err := New(d, reg, Options{})
	require.NoError(t, err)
	require.Equal(t, n.Root(), again.Root())

	_, err = New(db.New(), NewRegistry(), Options{})
	require.ErrorIs(t, err, ErrNoRoot)
}

func TestRegistry_Panics(t *testing.T) {
	reg := NewRegistry().SetRoot(rootLayout(4))
	reg.Register(1, &fakeType{name: "a"})
	require.Panics(t, func() { reg.Register(1, &fakeType{name: "b"}) })

	_, err := New(db.New(), reg, Options{})
	require.NoError(t, err)
	require.Panics(t, func() { reg.Register(2, &fakeType{name: "c"}) })
	require.Equal(t, []uint16{1}, reg.TypeIDs())
}

func TestCreateNode_WritesTag(t *testing.T) {
	ft := &fakeType{name: "fake", size: 12}
	n := newTestNd(t, map[uint16]TypeFactory{3: ft})

	a, err := n.CreateNode(3)
	require.NoError(t, err)
	typeID, err := n.NodeType(a)
	require.NoError(t, err)
	require.Equal(t, uint16(3), typeID)

	node, err := LoadAs[*fakeNode](n, a)
	require.NoError(t, err)
	require.Equal(t, a, node.Address())

	_, err = LoadAs[*otherNode](n, a)
	require.ErrorIs(t, err, ErrWrongType)

	empty, err := LoadAs[*fakeNode](n, db.Null)
	require.NoError(t, err)
	require.Nil(t, empty)

	_, err = n.CreateNode(9)
	require.ErrorIs(t, err, ErrUnknownType)

	var found bool
	for _, s := range n.DB().PoolStats() {
		if s.Pool == PoolFor(3) {
			found = true
			require.Equal(t, uint32(1), s.Count)
		}
	}
	require.True(t, found)
}

func TestLoad_UnknownTag(t *testing.T) {
	n := newTestNd(t, nil)
	a, err := n.DB().Malloc(8, format.PoolMisc)
	require.NoError(t, err)
	require.NoError(t, n.DB().PutU16(a, 77))
	_, err = n.Load(a)
	require.ErrorIs(t, err, ErrUnknownType)
}

func TestProcessDeletions_Cascades(t *testing.T) {
	parent := &fakeType{name: "parent", size: 8}
	child := &fakeType{name: "child", size: 8}
	n := newTestNd(t, map[uint16]TypeFactory{1: parent, 2: child})

	c, err := n.CreateNode(2)
	require.NoError(t, err)
	p, err := n.CreateNode(1)
	require.NoError(t, err)
	require.NoError(t, n.DB().PutPtr(p+4, c))

	parent.onDestruct = func(n *Nd, addr db.Address) error {
		kid, err := n.DB().GetPtr(addr + 4)
		if err != nil {
			return err
		}
		// Scheduling twice must not destruct twice.
		require.NoError(t, n.ScheduleDeletion(kid))
		return n.ScheduleDeletion(kid)
	}

	require.NoError(t, n.ScheduleDeletion(p))
	require.NoError(t, n.ScheduleDeletion(p))
	require.Equal(t, 1, n.PendingDeletions())
	require.True(t, n.IsScheduled(p))

	require.NoError(t, n.ProcessDeletions())
	require.Equal(t, []db.Address{p}, parent.destructed)
	require.Equal(t, []db.Address{c}, child.destructed)
	require.False(t, n.DB().IsLive(p))
	require.False(t, n.DB().IsLive(c))
	require.False(t, n.IsScheduled(p))

	deleted, skipped := n.DeletionStats()
	require.Equal(t, uint64(2), deleted)
	require.Equal(t, uint64(0), skipped)
}

func TestProcessDeletions_SkipsStaleRequests(t *testing.T) {
	ft := &fakeType{name: "fake", size: 8}
	n := newTestNd(t, map[uint16]TypeFactory{1: ft})

	a, err := n.CreateNode(1)
	require.NoError(t, err)
	require.NoError(t, n.ScheduleDeletion(a))

	// Freed and reallocated behind the queue's back.
	require.NoError(t, n.DB().Free(a, PoolFor(1)))
	b, err := n.CreateNode(1)
	require.NoError(t, err)
	require.Equal(t, a, b)

	require.NoError(t, n.ProcessDeletions())
	require.Empty(t, ft.destructed)
	require.True(t, n.DB().IsLive(b))
	_, skipped := n.DeletionStats()
	require.Equal(t, uint64(1), skipped)
}

func TestProcessDeletions_FailedNodeCanBeRescheduled(t *testing.T) {
	ft := &fakeType{name: "fake", size: 8}
	n := newTestNd(t, map[uint16]TypeFactory{1: ft})
	a, err := n.CreateNode(1)
	require.NoError(t, err)

	boom := errors.New("boom")
	ft.onDestruct = func(*Nd, db.Address) error { return boom }
	require.ErrorIs(t, n.Delete(a), boom)
	require.False(t, n.IsScheduled(a))
	require.Zero(t, n.PendingDeletions())
	require.True(t, n.DB().IsLive(a))

	ft.onDestruct = nil
	require.NoError(t, n.Delete(a))
	require.False(t, n.DB().IsLive(a))
	require.Equal(t, []db.Address{a, a}, ft.destructed)
}

func TestReleaseIfUnreferenced(t *testing.T) {
	counted := &fakeType{name: "counted", size: 8, semantics: Refcounted, referenced: map[db.Address]bool{}}
	explicit := &fakeType{name: "explicit", size: 8}
	n := newTestNd(t, map[uint16]TypeFactory{1: counted, 2: explicit})

	a, err := n.CreateNode(1)
	require.NoError(t, err)
	counted.referenced[a] = true
	require.NoError(t, n.ReleaseIfUnreferenced(a))
	require.Zero(t, n.PendingDeletions())

	counted.referenced[a] = false
	require.NoError(t, n.ReleaseIfUnreferenced(a))
	require.Equal(t, 1, n.PendingDeletions())

	e, err := n.CreateNode(2)
	require.NoError(t, err)
	require.NoError(t, n.ReleaseIfUnreferenced(e))
	require.Equal(t, 1, n.PendingDeletions())

	require.NoError(t, n.ProcessDeletions())
	require.False(t, n.DB().IsLive(a))
	require.True(t, n.DB().IsLive(e))
}
