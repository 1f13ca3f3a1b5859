package field

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/ndkit/nd"
	"github.com/joshuapare/ndkit/nd/db"
)

type testNode struct{ nd.Record }

func loadTestNode(n *nd.Nd, addr db.Address) *testNode {
	return &testNode{nd.Record{Nd: n, Addr: addr}}
}

const (
	typeSample uint16 = iota + 1
	typeKey
	typeValue
	typeParent
	typeChild
	typeDir
	typeFile
	typeTarget
	typeRef
	typeClass
	typeMethod
	typeHolder
)

// schema is a small index layout exercising every field kind.
type schema struct {
	root      *StructDef
	nameIndex *SearchIndex[*testNode]

	sample   *StructDef
	sU8      *Scalar[uint8]
	sI16     *Scalar[int16]
	sU16     *Scalar[uint16]
	sI32     *Scalar[int32]
	sU32     *Scalar[uint32]
	sI64     *Scalar[int64]
	sU64     *Scalar[uint64]
	sF32     *Scalar[float32]
	sF64     *Scalar[float64]
	sPtr     *Scalar[db.Address]
	sComment *String

	key      *StructDef
	keyValue *OneToOne[*testNode]
	value    *StructDef
	valueKey *OneToOne[*testNode]
	valueRaw *Scalar[uint32]

	parent         *StructDef
	parentChildren *OneToMany[*testNode]
	child          *StructDef
	childParent    *ManyToOne[*testNode]

	dir      *StructDef
	dirFiles *OneToMany[*testNode]
	file     *StructDef
	fileName *String
	fileDir  *ManyToOne[*testNode]

	target     *StructDef
	targetRefs *OneToMany[*testNode]
	ref        *StructDef
	refTarget  *ManyToOne[*testNode]

	named   *StructDef
	nameKey *SearchKey
	class   *StructDef
	method  *StructDef

	entry      *StructDef
	entryValue *Scalar[uint32]
	entryLabel *String
	holder     *StructDef
	entries    *List[db.Address]
	batched    *List[db.Address]
}

func newSchema() *schema {
	s := &schema{}

	s.root = NewStruct("Root", nil)
	s.nameIndex = NewSearchIndex[*testNode](s.root, "names")
	s.root.Done()

	s.sample = NewNodeStruct("Sample")
	s.sU8 = NewUint8(s.sample, "u8")
	s.sI16 = NewInt16(s.sample, "i16")
	s.sU16 = NewUint16(s.sample, "u16")
	s.sI32 = NewInt32(s.sample, "i32")
	s.sU32 = NewUint32(s.sample, "u32")
	s.sI64 = NewInt64(s.sample, "i64")
	s.sU64 = NewUint64(s.sample, "u64")
	s.sF32 = NewFloat32(s.sample, "f32")
	s.sF64 = NewFloat64(s.sample, "f64")
	s.sPtr = NewPointer(s.sample, "ptr")
	s.sComment = NewString(s.sample, "comment")
	s.sample.Done()

	// A Key owns its Value: the Value's link points at its owner.
	s.key = NewNodeStruct("Key")
	s.keyValue = NewOneToOne[*testNode](s.key, "value", nil, NonOwning)
	s.key.Done()
	s.value = NewNodeStruct("Value")
	s.valueKey = NewOneToOne[*testNode](s.value, "key", s.keyValue, Owning)
	s.valueRaw = NewUint32(s.value, "raw")
	s.value.Done()

	s.parent = NewNodeStruct("Parent")
	s.parentChildren = NewOneToMany[*testNode](s.parent, "children")
	s.parent.Done()
	s.child = NewNodeStruct("Child")
	s.childParent = NewManyToOne[*testNode](s.child, "parent", s.parentChildren, NonOwning)
	s.child.Done()

	s.dir = NewNodeStruct("Dir")
	s.dirFiles = NewOneToMany[*testNode](s.dir, "files")
	s.dir.Done()
	s.file = NewNodeStruct("File")
	s.fileName = NewString(s.file, "name")
	s.fileDir = NewManyToOne[*testNode](s.file, "dir", s.dirFiles, Owning)
	s.file.Done()

	s.target = NewNodeStruct("Target").UseDeletionSemantics(nd.Refcounted)
	s.targetRefs = NewOneToMany[*testNode](s.target, "refs")
	s.target.Done()
	s.ref = NewNodeStruct("Ref")
	s.refTarget = NewManyToOne[*testNode](s.ref, "target", s.targetRefs, NonOwning)
	s.ref.Done()

	s.named = NewNodeStruct("Named")
	s.nameKey = NewSearchKey(s.named, "name", s.nameIndex)
	s.named.Done()
	s.class = NewStruct("Class", s.named)
	NewUint32(s.class, "flags")
	s.class.Done()
	s.method = NewStruct("Method", s.named)
	NewUint16(s.method, "arity")
	s.method.Done()

	s.entry = NewStruct("Entry", nil)
	s.entryValue = NewUint32(s.entry, "value")
	s.entryLabel = NewString(s.entry, "label")
	s.entry.Done()
	wrap := func(_ *nd.Nd, a db.Address) db.Address { return a }
	s.holder = NewNodeStruct("Holder")
	s.entries = NewList(s.holder, "entries", s.entry, wrap)
	s.batched = NewList(s.holder, "batched", s.entry, wrap).GrowBy(4)
	s.holder.Done()

	return s
}

func (s *schema) registry() *nd.Registry {
	reg := nd.NewRegistry().SetRoot(s.root)
	for id, sd := range map[uint16]*StructDef{
		typeSample: s.sample,
		typeKey:    s.key,
		typeValue:  s.value,
		typeParent: s.parent,
		typeChild:  s.child,
		typeDir:    s.dir,
		typeFile:   s.file,
		typeTarget: s.target,
		typeRef:    s.ref,
		typeClass:  s.class,
		typeMethod: s.method,
		typeHolder: s.holder,
	} {
		reg.Register(id, NewNodeType(sd, loadTestNode))
	}
	return reg
}

func newFixture(t *testing.T) (*schema, *nd.Nd) {
	t.Helper()
	s := newSchema()
	n, err := nd.New(db.New(), s.registry(), nd.Options{})
	require.NoError(t, err)
	return s, n
}

func create(t *testing.T, n *nd.Nd, typeID uint16) db.Address {
	t.Helper()
	a, err := n.CreateNode(typeID)
	require.NoError(t, err)
	return a
}

// requireReclaimed checks that no node of the given types is still allocated
// and that the allocator is consistent.
func requireReclaimed(t *testing.T, n *nd.Nd, typeIDs ...uint16) {
	t.Helper()
	for _, s := range n.DB().PoolStats() {
		for _, id := range typeIDs {
			require.NotEqual(t, nd.PoolFor(id), s.Pool, "type %d still holds %d blocks", id, s.Count)
		}
	}
	_, err := n.DB().ValidateFreeSpace()
	require.NoError(t, err)
}

func requireConfigPanic(t *testing.T, fn func()) *ConfigError {
	t.Helper()
	var got *ConfigError
	func() {
		defer func() {
			r := recover()
			require.NotNil(t, r, "expected a configuration panic")
			ce, ok := r.(*ConfigError)
			require.True(t, ok, "panic value %T is not *ConfigError", r)
			got = ce
		}()
		fn()
	}()
	return got
}
