// Package btree implements an ordered set of record addresses stored inside
// a db.Database. The tree holds addresses only; ordering is supplied by a
// Comparator that reads whatever the records contain.
package btree

import (
	"errors"
	"fmt"

	"github.com/joshuapare/ndkit/internal/format"
	"github.com/joshuapare/ndkit/nd/db"
)

const (
	// Degree is the minimum branching factor. Non-root nodes hold between
	// Degree-1 and 2*Degree-1 records.
	Degree = 8

	MaxRecords  = 2*Degree - 1
	MaxChildren = 2 * Degree
	MinRecords  = Degree - 1

	// Node layout: MaxRecords record pointers, then MaxChildren child pointers.
	childOffset = MaxRecords * format.PtrSize
	NodeSize    = childOffset + MaxChildren*format.PtrSize
)

var (
	// ErrNotFound is returned by Delete when the record is not in the tree.
	ErrNotFound = errors.New("btree: record not found")

	// ErrCorrupt is returned by Validate.
	ErrCorrupt = errors.New("btree: corrupt tree")
)

// Comparator orders two records.
type Comparator interface {
	Compare(a, b db.Address) (int, error)
}

// ComparatorFunc adapts a function to Comparator.
type ComparatorFunc func(a, b db.Address) (int, error)

func (f ComparatorFunc) Compare(a, b db.Address) (int, error) { return f(a, b) }

// Visitor drives Accept. Compare reports where a record lies relative to the
// visitor's key: negative if before, zero if it matches, positive if after.
// Matching records must be contiguous in tree order. Visit is called for
// every matching record in ascending order; returning false stops the walk.
type Visitor interface {
	Compare(record db.Address) (int, error)
	Visit(record db.Address) (bool, error)
}

// BTree is a view over a tree whose root pointer lives at rootPtr. The view
// holds no state of its own and may be recreated freely.
type BTree struct {
	d       *db.Database
	rootPtr db.Address
	cmp     Comparator
}

// New returns a tree rooted at the pointer stored at rootPtr.
func New(d *db.Database, rootPtr db.Address, cmp Comparator) *BTree {
	return &BTree{d: d, rootPtr: rootPtr, cmp: cmp}
}

type node struct {
	addr db.Address
	n    int
	recs [MaxRecords]db.Address
	kids [MaxChildren]db.Address
}

func (nd *node) leaf() bool { return nd.kids[0] == 0 }

func (t *BTree) read(addr db.Address) (*node, error) {
	raw, err := t.d.GetBytes(addr, NodeSize)
	if err != nil {
		return nil, err
	}
	nd := &node{addr: addr}
	for i := range nd.recs {
		nd.recs[i] = db.Address(format.ReadU32(raw, i*format.PtrSize))
		if nd.recs[i] != 0 {
			nd.n = i + 1
		}
	}
	for i := range nd.kids {
		nd.kids[i] = db.Address(format.ReadU32(raw, childOffset+i*format.PtrSize))
	}
	return nd, nil
}

func (t *BTree) write(nd *node) error {
	var raw [NodeSize]byte
	for i, r := range nd.recs {
		format.PutU32(raw[:], i*format.PtrSize, uint32(r))
	}
	for i, k := range nd.kids {
		format.PutU32(raw[:], childOffset+i*format.PtrSize, uint32(k))
	}
	return t.d.PutBytes(nd.addr, raw[:])
}

func (t *BTree) alloc() (*node, error) {
	addr, err := t.d.Malloc(NodeSize, format.PoolBTree)
	if err != nil {
		return nil, err
	}
	return &node{addr: addr}, nil
}

func (t *BTree) root() (db.Address, error) {
	return t.d.GetPtr(t.rootPtr)
}

func (t *BTree) setRoot(a db.Address) error {
	return t.d.PutPtr(t.rootPtr, a)
}

// search returns the first slot whose record is not less than rec, and
// whether that record is equal to rec.
func (t *BTree) search(nd *node, rec db.Address) (int, bool, error) {
	lo, hi := 0, nd.n
	for lo < hi {
		mid := (lo + hi) / 2
		c, err := t.cmp.Compare(rec, nd.recs[mid])
		if err != nil {
			return 0, false, err
		}
		switch {
		case c == 0:
			return mid, true, nil
		case c < 0:
			hi = mid
		default:
			lo = mid + 1
		}
	}
	return lo, false, nil
}

// Insert adds rec and returns it. If a record comparing equal is already
// present, the tree is unchanged and that record is returned instead.
func (t *BTree) Insert(rec db.Address) (db.Address, error) {
	if rec == 0 {
		return 0, fmt.Errorf("btree: insert: %w", db.ErrNullAddress)
	}
	rootAddr, err := t.root()
	if err != nil {
		return 0, err
	}
	if rootAddr == 0 {
		nd, err := t.alloc()
		if err != nil {
			return 0, err
		}
		nd.recs[0] = rec
		if err := t.write(nd); err != nil {
			return 0, err
		}
		return rec, t.setRoot(nd.addr)
	}

	nd, err := t.read(rootAddr)
	if err != nil {
		return 0, err
	}
	if nd.n == MaxRecords {
		top, err := t.alloc()
		if err != nil {
			return 0, err
		}
		top.kids[0] = nd.addr
		if err := t.splitChild(top, 0, nd); err != nil {
			return 0, err
		}
		if err := t.setRoot(top.addr); err != nil {
			return 0, err
		}
		nd = top
	}

	for {
		i, found, err := t.search(nd, rec)
		if err != nil {
			return 0, err
		}
		if found {
			return nd.recs[i], nil
		}
		if nd.leaf() {
			copy(nd.recs[i+1:nd.n+1], nd.recs[i:nd.n])
			nd.recs[i] = rec
			nd.n++
			return rec, t.write(nd)
		}
		child, err := t.read(nd.kids[i])
		if err != nil {
			return 0, err
		}
		if child.n == MaxRecords {
			if err := t.splitChild(nd, i, child); err != nil {
				return 0, err
			}
			c, err := t.cmp.Compare(rec, nd.recs[i])
			if err != nil {
				return 0, err
			}
			if c == 0 {
				return nd.recs[i], nil
			}
			if c > 0 {
				if child, err = t.read(nd.kids[i+1]); err != nil {
					return 0, err
				}
			}
		}
		nd = child
	}
}

// splitChild moves the upper half of the full child at parent.kids[i] into
// a new sibling and lifts the median into parent, which must not be full.
func (t *BTree) splitChild(parent *node, i int, child *node) error {
	sib, err := t.alloc()
	if err != nil {
		return err
	}
	median := child.recs[MinRecords]
	copy(sib.recs[:], child.recs[Degree:])
	copy(sib.kids[:], child.kids[Degree:])
	sib.n = MinRecords
	for j := MinRecords; j < MaxRecords; j++ {
		child.recs[j] = 0
	}
	for j := Degree; j < MaxChildren; j++ {
		child.kids[j] = 0
	}
	child.n = MinRecords

	copy(parent.recs[i+1:parent.n+1], parent.recs[i:parent.n])
	copy(parent.kids[i+2:parent.n+2], parent.kids[i+1:parent.n+1])
	parent.recs[i] = median
	parent.kids[i+1] = sib.addr
	parent.n++

	if err := t.write(sib); err != nil {
		return err
	}
	if err := t.write(child); err != nil {
		return err
	}
	return t.write(parent)
}

// Delete removes rec. It returns ErrNotFound if no record compares equal.
func (t *BTree) Delete(rec db.Address) error {
	rootAddr, err := t.root()
	if err != nil {
		return err
	}
	if rootAddr == 0 {
		return ErrNotFound
	}
	nd, err := t.read(rootAddr)
	if err != nil {
		return err
	}
	delErr := t.deleteFrom(nd, rec)

	// A merge at the top can empty the root even when rec was absent.
	top, err := t.read(rootAddr)
	if err != nil {
		return err
	}
	if top.n == 0 {
		if err := t.d.Free(top.addr, format.PoolBTree); err != nil {
			return err
		}
		if err := t.setRoot(top.kids[0]); err != nil {
			return err
		}
	}
	return delErr
}

// deleteFrom removes rec from the subtree at nd. Every node it descends into
// holds at least Degree records, so removal never underflows.
func (t *BTree) deleteFrom(nd *node, rec db.Address) error {
	for {
		i, found, err := t.search(nd, rec)
		if err != nil {
			return err
		}

		if found {
			if nd.leaf() {
				copy(nd.recs[i:], nd.recs[i+1:nd.n])
				nd.recs[nd.n-1] = 0
				nd.n--
				return t.write(nd)
			}
			left, err := t.read(nd.kids[i])
			if err != nil {
				return err
			}
			if left.n >= Degree {
				pred, err := t.last(left)
				if err != nil {
					return err
				}
				nd.recs[i] = pred
				if err := t.write(nd); err != nil {
					return err
				}
				nd, rec = left, pred
				continue
			}
			right, err := t.read(nd.kids[i+1])
			if err != nil {
				return err
			}
			if right.n >= Degree {
				succ, err := t.first(right)
				if err != nil {
					return err
				}
				nd.recs[i] = succ
				if err := t.write(nd); err != nil {
					return err
				}
				nd, rec = right, succ
				continue
			}
			if err := t.merge(nd, i, left, right); err != nil {
				return err
			}
			nd = left
			continue
		}

		if nd.leaf() {
			return ErrNotFound
		}
		child, err := t.read(nd.kids[i])
		if err != nil {
			return err
		}
		if child.n < Degree {
			if child, err = t.fill(nd, i, child); err != nil {
				return err
			}
		}
		nd = child
	}
}

// fill brings the child at parent.kids[i] up to at least Degree records by
// borrowing from a sibling or merging with one. It returns the node that now
// covers the child's key range.
func (t *BTree) fill(parent *node, i int, child *node) (*node, error) {
	if i > 0 {
		left, err := t.read(parent.kids[i-1])
		if err != nil {
			return nil, err
		}
		if left.n >= Degree {
			copy(child.recs[1:child.n+1], child.recs[:child.n])
			copy(child.kids[1:child.n+2], child.kids[:child.n+1])
			child.recs[0] = parent.recs[i-1]
			child.kids[0] = left.kids[left.n]
			child.n++
			parent.recs[i-1] = left.recs[left.n-1]
			left.recs[left.n-1] = 0
			left.kids[left.n] = 0
			left.n--
			return child, t.writeAll(left, child, parent)
		}
	}
	if i < parent.n {
		right, err := t.read(parent.kids[i+1])
		if err != nil {
			return nil, err
		}
		if right.n >= Degree {
			child.recs[child.n] = parent.recs[i]
			child.kids[child.n+1] = right.kids[0]
			child.n++
			parent.recs[i] = right.recs[0]
			copy(right.recs[:], right.recs[1:right.n])
			right.recs[right.n-1] = 0
			copy(right.kids[:], right.kids[1:right.n+1])
			right.kids[right.n] = 0
			right.n--
			return child, t.writeAll(right, child, parent)
		}
		return child, t.merge(parent, i, child, right)
	}
	left, err := t.read(parent.kids[i-1])
	if err != nil {
		return nil, err
	}
	return left, t.merge(parent, i-1, left, child)
}

// merge folds parent.recs[i] and right into left and frees right.
func (t *BTree) merge(parent *node, i int, left, right *node) error {
	left.recs[left.n] = parent.recs[i]
	copy(left.recs[left.n+1:], right.recs[:right.n])
	copy(left.kids[left.n+1:], right.kids[:right.n+1])
	left.n += right.n + 1

	copy(parent.recs[i:], parent.recs[i+1:parent.n])
	parent.recs[parent.n-1] = 0
	copy(parent.kids[i+1:], parent.kids[i+2:parent.n+1])
	parent.kids[parent.n] = 0
	parent.n--

	if err := t.writeAll(left, parent); err != nil {
		return err
	}
	return t.d.Free(right.addr, format.PoolBTree)
}

func (t *BTree) writeAll(nodes ...*node) error {
	for _, nd := range nodes {
		if err := t.write(nd); err != nil {
			return err
		}
	}
	return nil
}

func (t *BTree) first(nd *node) (db.Address, error) {
	for !nd.leaf() {
		next, err := t.read(nd.kids[0])
		if err != nil {
			return 0, err
		}
		nd = next
	}
	return nd.recs[0], nil
}

func (t *BTree) last(nd *node) (db.Address, error) {
	for !nd.leaf() {
		next, err := t.read(nd.kids[nd.n])
		if err != nil {
			return 0, err
		}
		nd = next
	}
	return nd.recs[nd.n-1], nil
}

// Accept walks the records matching v in ascending order. Subtrees that lie
// entirely before or after the match range are skipped.
func (t *BTree) Accept(v Visitor) error {
	rootAddr, err := t.root()
	if err != nil || rootAddr == 0 {
		return err
	}
	_, err = t.accept(rootAddr, v)
	return err
}

func (t *BTree) accept(addr db.Address, v Visitor) (bool, error) {
	nd, err := t.read(addr)
	if err != nil {
		return false, err
	}
	for i := 0; i < nd.n; i++ {
		c, err := v.Compare(nd.recs[i])
		if err != nil {
			return false, err
		}
		if c >= 0 && !nd.leaf() {
			more, err := t.accept(nd.kids[i], v)
			if err != nil || !more {
				return false, err
			}
		}
		if c > 0 {
			return true, nil
		}
		if c == 0 {
			more, err := v.Visit(nd.recs[i])
			if err != nil || !more {
				return false, err
			}
		}
	}
	if nd.leaf() {
		return true, nil
	}
	return t.accept(nd.kids[nd.n], v)
}

// Len returns the number of records.
func (t *BTree) Len() (int, error) {
	n := 0
	err := t.Accept(all(func(db.Address) (bool, error) {
		n++
		return true, nil
	}))
	return n, err
}

// Destruct frees every node and clears the root pointer. Records are not
// touched.
func (t *BTree) Destruct() error {
	rootAddr, err := t.root()
	if err != nil || rootAddr == 0 {
		return err
	}
	if err := t.destruct(rootAddr); err != nil {
		return err
	}
	return t.setRoot(0)
}

func (t *BTree) destruct(addr db.Address) error {
	nd, err := t.read(addr)
	if err != nil {
		return err
	}
	if !nd.leaf() {
		for i := 0; i <= nd.n; i++ {
			if err := t.destruct(nd.kids[i]); err != nil {
				return err
			}
		}
	}
	return t.d.Free(addr, format.PoolBTree)
}

// Validate checks node occupancy, uniform leaf depth and strict ordering.
func (t *BTree) Validate() error {
	rootAddr, err := t.root()
	if err != nil || rootAddr == 0 {
		return err
	}
	var (
		prev      db.Address
		leafDepth = -1
	)
	var walk func(addr db.Address, depth int, isRoot bool) error
	walk = func(addr db.Address, depth int, isRoot bool) error {
		nd, err := t.read(addr)
		if err != nil {
			return err
		}
		if nd.n == 0 || (!isRoot && nd.n < MinRecords) {
			return fmt.Errorf("%w: node %s holds %d records", ErrCorrupt, addr, nd.n)
		}
		for i := nd.n; i < MaxRecords; i++ {
			if nd.recs[i] != 0 {
				return fmt.Errorf("%w: node %s has a gap at slot %d", ErrCorrupt, addr, i)
			}
		}
		if nd.leaf() {
			if leafDepth == -1 {
				leafDepth = depth
			} else if leafDepth != depth {
				return fmt.Errorf("%w: leaf %s at depth %d, want %d", ErrCorrupt, addr, depth, leafDepth)
			}
		}
		for i := 0; i <= nd.n; i++ {
			if !nd.leaf() {
				if nd.kids[i] == 0 {
					return fmt.Errorf("%w: node %s missing child %d", ErrCorrupt, addr, i)
				}
				if err := walk(nd.kids[i], depth+1, false); err != nil {
					return err
				}
			}
			if i == nd.n {
				break
			}
			if prev != 0 {
				c, err := t.cmp.Compare(prev, nd.recs[i])
				if err != nil {
					return err
				}
				if c >= 0 {
					return fmt.Errorf("%w: %s not after %s", ErrCorrupt, nd.recs[i], prev)
				}
			}
			prev = nd.recs[i]
		}
		return nil
	}
	return walk(rootAddr, 0, true)
}

type all func(db.Address) (bool, error)

func (all) Compare(db.Address) (int, error)      { return 0, nil }
func (f all) Visit(rec db.Address) (bool, error) { return f(rec) }

// VisitAll returns a Visitor that matches every record.
func VisitAll(fn func(db.Address) (bool, error)) Visitor { return all(fn) }
