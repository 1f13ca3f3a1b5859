package field

import (
	"fmt"
	"math/rand"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/ndkit/nd"
	"github.com/joshuapare/ndkit/nd/db"
)

func named(t *testing.T, s *schema, n *nd.Nd, typeID uint16, key string) db.Address {
	t.Helper()
	a := create(t, n, typeID)
	require.NoError(t, s.nameKey.Put(n, a, key))
	return a
}

func addrs(nodes []*testNode) []db.Address {
	out := make([]db.Address, 0, len(nodes))
	for _, x := range nodes {
		out = append(out, x.Address())
	}
	return out
}

func find(t *testing.T, s *schema, n *nd.Nd, c SearchCriteria) []db.Address {
	t.Helper()
	got, err := s.nameIndex.FindAll(n, c)
	require.NoError(t, err)
	return addrs(got)
}

func TestSearchIndex_CaseInsensitiveAndPrefix(t *testing.T) {
	s, n := newFixture(t)
	foo := named(t, s, n, typeClass, "Foo")
	lower := named(t, s, n, typeClass, "foo")
	fooBar := named(t, s, n, typeClass, "FooBar")
	named(t, s, n, typeClass, "Bar")

	require.ElementsMatch(t, []db.Address{foo, lower}, find(t, s, n, Criteria("foo")))
	require.ElementsMatch(t, []db.Address{foo, lower, fooBar}, find(t, s, n, Criteria("foo").Prefix(true)))
	require.Equal(t, []db.Address{lower}, find(t, s, n, Criteria("foo").CaseSensitive(true)))
	require.ElementsMatch(t, []db.Address{foo, fooBar}, find(t, s, n, Criteria("Foo").Prefix(true).CaseSensitive(true)))
	require.Empty(t, find(t, s, n, Criteria("fo")))
	require.Empty(t, find(t, s, n, Criteria("zzz").Prefix(true)))
}

func TestSearchCriteria_IsImmutable(t *testing.T) {
	base := Criteria("x")
	derived := base.Prefix(true).CaseSensitive(true).RequireNodeType(typeClass)
	require.False(t, base.IsPrefix())
	require.False(t, base.IsCaseSensitive())
	_, ok := base.NodeType()
	require.False(t, ok)

	id, ok := derived.NodeType()
	require.True(t, ok)
	require.Equal(t, typeClass, id)
	_, ok = derived.AnyNodeType().NodeType()
	require.False(t, ok)
}

func TestSearchIndex_NodeTypeFilter(t *testing.T) {
	s, n := newFixture(t)
	class := named(t, s, n, typeClass, "run")
	method := named(t, s, n, typeMethod, "Run")

	require.Equal(t, []db.Address{method}, find(t, s, n, Criteria("run").RequireNodeType(typeMethod)))
	require.Equal(t, []db.Address{class}, find(t, s, n, Criteria("RUN").RequireNodeType(typeClass)))
	require.ElementsMatch(t, []db.Address{class, method}, find(t, s, n, Criteria("run").AnyNodeType()))
}

func TestSearchIndex_FindFirstBestAndLimit(t *testing.T) {
	s, n := newFixture(t)
	named(t, s, n, typeClass, "Foo")
	named(t, s, n, typeClass, "foo")
	long := named(t, s, n, typeClass, "FooBarBaz")
	named(t, s, n, typeClass, "FooBar")

	c := Criteria("foo").Prefix(true)
	first, err := s.nameIndex.FindFirst(n, c)
	require.NoError(t, err)
	require.NotNil(t, first)

	byLength := func(x *testNode) (int, error) {
		k, err := s.nameKey.Get(n, x.Address())
		return len(k), err
	}
	best, err := s.nameIndex.FindBest(n, c, byLength)
	require.NoError(t, err)
	require.Equal(t, long, best.Address())

	tie, err := s.nameIndex.FindBest(n, c, func(*testNode) (int, error) { return 1, nil })
	require.NoError(t, err)
	require.Equal(t, first.Address(), tie.Address(), "ties keep the first match")

	limited, err := s.nameIndex.FindAllLimit(n, c, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)

	none, err := s.nameIndex.FindFirst(n, Criteria("missing"))
	require.NoError(t, err)
	require.Nil(t, none)
	none, err = s.nameIndex.FindBest(n, Criteria("missing"), byLength)
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestSearchIndex_Consistency(t *testing.T) {
	s, n := newFixture(t)
	rng := rand.New(rand.NewSource(3))
	words := []string{"alpha", "Alpha", "alphabet", "beta", "BETA", "betamax", "gamma", "Gam", "ga", "delta"}

	keys := map[db.Address]string{}
	for i := 0; i < 120; i++ {
		w := words[rng.Intn(len(words))]
		if rng.Intn(3) == 0 {
			w = fmt.Sprintf("%s%d", w, rng.Intn(5))
		}
		keys[named(t, s, n, typeClass, w)] = w
	}
	require.NoError(t, s.nameIndex.Validate(n))

	for a, k := range keys {
		require.Contains(t, find(t, s, n, Criteria(k)), a, k)
	}

	for _, prefix := range []string{"al", "BET", "g", "gam", "x", ""} {
		var want []db.Address
		for a, k := range keys {
			if strings.HasPrefix(strings.ToLower(k), strings.ToLower(prefix)) {
				want = append(want, a)
			}
		}
		require.ElementsMatch(t, want, find(t, s, n, Criteria(prefix).Prefix(true)), prefix)
	}

	removed := 0
	for a, k := range keys {
		if removed == 40 {
			break
		}
		require.NoError(t, s.nameKey.RemoveFromIndex(n, a))
		in, err := s.nameKey.InIndex(n, a)
		require.NoError(t, err)
		require.False(t, in)
		require.NotContains(t, find(t, s, n, Criteria(k)), a)
		delete(keys, a)
		removed++
	}
	all, err := s.nameIndex.AsList(n)
	require.NoError(t, err)
	require.Len(t, all, len(keys))
	require.NoError(t, s.nameIndex.Validate(n))
}

func TestSearchIndex_AsListOrder(t *testing.T) {
	s, n := newFixture(t)
	for _, k := range []string{"delta", "Alpha", "charlie", "bravo"} {
		named(t, s, n, typeMethod, k)
	}
	all, err := s.nameIndex.AsList(n)
	require.NoError(t, err)
	var got []string
	for _, x := range all {
		k, err := s.nameKey.Get(n, x.Address())
		require.NoError(t, err)
		got = append(got, k)
	}
	require.True(t, slices.IsSortedFunc(got, func(a, b string) int {
		return strings.Compare(db.Fold(a), db.Fold(b))
	}), "%v", got)
}

func TestSearchKey_RekeyAndDelete(t *testing.T) {
	s, n := newFixture(t)
	a := named(t, s, n, typeClass, "Old")

	mallocs := n.DB().Counters().Mallocs
	require.NoError(t, s.nameKey.Put(n, a, "Old"))
	require.Equal(t, mallocs, n.DB().Counters().Mallocs, "unchanged key is not re-inserted")

	require.NoError(t, s.nameKey.Put(n, a, "New"))
	require.Empty(t, find(t, s, n, Criteria("old")))
	require.Equal(t, []db.Address{a}, find(t, s, n, Criteria("new")))

	require.NoError(t, s.nameKey.Put(n, a, ""))
	in, err := s.nameKey.InIndex(n, a)
	require.NoError(t, err)
	require.False(t, in)

	require.NoError(t, s.nameKey.Put(n, a, "Again"))
	require.NoError(t, n.Delete(a))
	require.Empty(t, find(t, s, n, Criteria("again")))
	requireReclaimed(t, n, typeClass)
}

func TestSearchKey_InvalidUTF8KeepsOldKey(t *testing.T) {
	s, n := newFixture(t)
	a := named(t, s, n, typeClass, "Keep")

	require.ErrorIs(t, s.nameKey.Put(n, a, "\xfe\xff"), db.ErrInvalidString)
	require.Equal(t, []db.Address{a}, find(t, s, n, Criteria("keep")))
	got, err := s.nameKey.Get(n, a)
	require.NoError(t, err)
	require.Equal(t, "Keep", got)
}
