package field

import (
	"fmt"
	"strings"

	"github.com/joshuapare/ndkit/internal/format"
	"github.com/joshuapare/ndkit/nd"
	"github.com/joshuapare/ndkit/nd/btree"
	"github.com/joshuapare/ndkit/nd/db"
)

// SearchKey stores the interned name a record is indexed under. The record
// is in the index exactly when the field is non-null.
type SearchKey struct {
	base
	index *searchIndexState
}

// SearchIndexLink is implemented by SearchIndex fields.
type SearchIndexLink interface {
	indexState() *searchIndexState
}

// NewSearchKey declares a key field indexed by index, a SearchIndex field of
// the root record. An index serves exactly one key field.
func NewSearchKey(sd *StructDef, name string, index SearchIndexLink) *SearchKey {
	f := &SearchKey{base: sd.add(name, format.PtrSize)}
	if index == nil {
		configPanic(sd, name, "search key needs an index")
	}
	idx := index.indexState()
	if idx.key != nil && idx.key != f {
		configPanic(sd, name, "index %s already serves %s", idx.tag, idx.key.tag)
	}
	idx.key = f
	f.index = idx
	sd.addDestructable(f)
	return f
}

// GetInterned returns the stored key record, or nil.
func (f *SearchKey) GetInterned(n *nd.Nd, addr db.Address) (*db.InternedString, error) {
	p, err := n.DB().GetPtr(f.at(addr))
	if err != nil {
		return nil, err
	}
	return n.DB().GetString(p), nil
}

// Get returns the key text, or "" when the record is not indexed.
func (f *SearchKey) Get(n *nd.Nd, addr db.Address) (string, error) {
	s, err := f.GetInterned(n, addr)
	if err != nil || s == nil {
		return "", err
	}
	return s.Value()
}

// InIndex reports whether the record has a key.
func (f *SearchKey) InIndex(n *nd.Nd, addr db.Address) (bool, error) {
	p, err := n.DB().GetPtr(f.at(addr))
	return p != 0, err
}

// Put re-keys the record. The old entry is removed first; an empty key
// leaves the record out of the index.
func (f *SearchKey) Put(n *nd.Nd, addr db.Address, key string) error {
	defer f.begin(n)()
	if err := db.ValidateString(key); err != nil {
		return fmt.Errorf("%s: %w", f.tag, err)
	}
	old, err := f.GetInterned(n, addr)
	if err != nil {
		return err
	}
	if old != nil {
		eq, err := old.Equals(key)
		if err != nil || eq {
			return err
		}
		if err := f.remove(n, addr, old); err != nil {
			return err
		}
	}
	if key == "" {
		return nil
	}

	s, err := n.DB().NewString(key)
	if err != nil {
		return err
	}
	if err := n.DB().PutPtr(f.at(addr), s.Address()); err != nil {
		return err
	}
	_, err = f.index.tree(n).Insert(addr)
	return err
}

// RemoveFromIndex drops the record from the index and frees its key.
func (f *SearchKey) RemoveFromIndex(n *nd.Nd, addr db.Address) error {
	defer f.begin(n)()
	old, err := f.GetInterned(n, addr)
	if err != nil || old == nil {
		return err
	}
	return f.remove(n, addr, old)
}

// Validate checks that a stored key names a live string record.
func (f *SearchKey) Validate(n *nd.Nd, addr db.Address) error {
	return validateStringPtr(n, f.at(addr))
}

// Destruct is RemoveFromIndex.
func (f *SearchKey) Destruct(n *nd.Nd, addr db.Address) error {
	return f.RemoveFromIndex(n, addr)
}

// remove deletes the tree entry while the key is still readable, then
// releases the key.
func (f *SearchKey) remove(n *nd.Nd, addr db.Address, old *db.InternedString) error {
	if err := f.index.tree(n).Delete(addr); err != nil {
		return fmt.Errorf("%s: %w", f.tag, err)
	}
	if err := n.DB().PutPtr(f.at(addr), 0); err != nil {
		return err
	}
	return old.Delete()
}

func (f *SearchKey) text(n *nd.Nd, addr db.Address) (string, error) {
	s, err := f.GetInterned(n, addr)
	if err != nil {
		return "", err
	}
	if s == nil {
		return "", fmt.Errorf("%w: %s of %s is indexed without a key", ErrInconsistent, f.tag, addr)
	}
	return s.Value()
}

// compare orders two indexed records: key ignoring case, then address.
func (f *SearchKey) compare(n *nd.Nd, a, b db.Address) (int, error) {
	ka, err := f.text(n, a)
	if err != nil {
		return 0, err
	}
	kb, err := f.text(n, b)
	if err != nil {
		return 0, err
	}
	if c := strings.Compare(db.Fold(ka), db.Fold(kb)); c != 0 {
		return c, nil
	}
	switch {
	case a < b:
		return -1, nil
	case a > b:
		return 1, nil
	}
	return 0, nil
}

type searchIndexState struct {
	base
	key *SearchKey
}

func (s *searchIndexState) indexState() *searchIndexState { return s }

func (s *searchIndexState) tree(n *nd.Nd) *btree.BTree {
	if s.key == nil {
		configPanic(s.owner, s.name, "search index used without a key field")
	}
	return btree.New(n.DB(), s.at(n.Root()), btree.ComparatorFunc(func(a, b db.Address) (int, error) {
		return s.key.compare(n, a, b)
	}))
}

// SearchIndex is the B-tree of every record with a non-null key, stored in
// the root record.
type SearchIndex[T nd.Node] struct {
	searchIndexState
}

// NewSearchIndex declares an index field on the root layout.
func NewSearchIndex[T nd.Node](root *StructDef, name string) *SearchIndex[T] {
	f := &SearchIndex[T]{searchIndexState{base: root.add(name, format.PtrSize)}}
	root.addDestructable(f)
	return f
}

// Destruct frees the tree nodes. Indexed records keep their keys.
func (f *SearchIndex[T]) Destruct(n *nd.Nd, addr db.Address) error {
	defer f.begin(n)()
	return f.tree(n).Destruct()
}

// Validate checks the ordering of the tree.
func (f *SearchIndex[T]) Validate(n *nd.Nd) error {
	return f.tree(n).Validate()
}

type searchVisitor struct {
	n     *nd.Nd
	key   *SearchKey
	c     SearchCriteria
	visit func(rec db.Address) (bool, error)
}

func (v *searchVisitor) Compare(rec db.Address) (int, error) {
	k, err := v.key.text(v.n, rec)
	if err != nil {
		return 0, err
	}
	return v.c.order(k), nil
}

func (v *searchVisitor) Visit(rec db.Address) (bool, error) {
	if v.c.caseSensitive {
		k, err := v.key.text(v.n, rec)
		if err != nil {
			return false, err
		}
		if !v.c.matchesCase(k) {
			return true, nil
		}
	}
	if !v.c.anyType {
		t, err := v.n.NodeType(rec)
		if err != nil {
			return false, err
		}
		if t != v.c.nodeType {
			return true, nil
		}
	}
	return v.visit(rec)
}

func (f *SearchIndex[T]) accept(n *nd.Nd, c SearchCriteria, visit func(db.Address) (bool, error)) error {
	return f.tree(n).Accept(&searchVisitor{n: n, key: f.key, c: c, visit: visit})
}

// FindFirst returns the first match in index order, or the zero T.
func (f *SearchIndex[T]) FindFirst(n *nd.Nd, c SearchCriteria) (T, error) {
	var found db.Address
	err := f.accept(n, c, func(rec db.Address) (bool, error) {
		found = rec
		return false, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return nd.LoadAs[T](n, found)
}

// FindBest returns the match with the highest rank. Ties keep the match
// found first.
func (f *SearchIndex[T]) FindBest(n *nd.Nd, c SearchCriteria, rank func(T) (int, error)) (T, error) {
	var (
		best     T
		bestRank int
		have     bool
	)
	err := f.accept(n, c, func(rec db.Address) (bool, error) {
		v, err := nd.LoadAs[T](n, rec)
		if err != nil {
			return false, err
		}
		r, err := rank(v)
		if err != nil {
			return false, err
		}
		if !have || r > bestRank {
			best, bestRank, have = v, r, true
		}
		return true, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return best, nil
}

// FindAll returns every match in index order.
func (f *SearchIndex[T]) FindAll(n *nd.Nd, c SearchCriteria) ([]T, error) {
	return f.FindAllLimit(n, c, 0)
}

// FindAllLimit returns at most limit matches; limit <= 0 means no bound.
func (f *SearchIndex[T]) FindAllLimit(n *nd.Nd, c SearchCriteria, limit int) ([]T, error) {
	var out []T
	err := f.accept(n, c, func(rec db.Address) (bool, error) {
		v, err := nd.LoadAs[T](n, rec)
		if err != nil {
			return false, err
		}
		out = append(out, v)
		return limit <= 0 || len(out) < limit, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AsList returns every indexed record in index order.
func (f *SearchIndex[T]) AsList(n *nd.Nd) ([]T, error) {
	var out []T
	err := f.tree(n).Accept(btree.VisitAll(func(rec db.Address) (bool, error) {
		v, err := nd.LoadAs[T](n, rec)
		if err != nil {
			return false, err
		}
		out = append(out, v)
		return true, nil
	}))
	if err != nil {
		return nil, err
	}
	return out, nil
}
