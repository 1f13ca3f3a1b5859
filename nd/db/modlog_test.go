package db

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/ndkit/internal/format"
)

func TestModificationLog_AttributesWritesToTags(t *testing.T) {
	d, err := Open(Options{LogWrites: true})
	require.NoError(t, err)
	a, err := d.Malloc(16, format.PoolMisc)
	require.NoError(t, err)
	d.Log().Clear()

	d.Log().Start("Key.flags")
	require.NoError(t, d.PutU32(a, 1))
	d.Log().Start("Key.name")
	require.NoError(t, d.PutU32(a+4, 2))
	d.Log().End("Key.name")
	require.NoError(t, d.PutU32(a+8, 3))
	d.Log().End("Key.flags")

	got := d.Log().Describe(a + 4)
	require.Len(t, got, 1)
	require.Equal(t, "Key.name", got[0].Tag)

	got = d.Log().Describe(a + 9)
	require.Len(t, got, 1)
	require.Equal(t, "Key.flags", got[0].Tag)

	var kinds []EntryKind
	for _, e := range d.Log().Entries() {
		kinds = append(kinds, e.Kind)
	}
	require.Equal(t, []EntryKind{
		EntryStart, EntryWrite, EntryStart, EntryWrite, EntryEnd, EntryWrite, EntryEnd,
	}, kinds)
}

func TestModificationLog_IsObservationalOnly(t *testing.T) {
	run := func(logging bool) []byte {
		d, err := Open(Options{LogWrites: logging})
		require.NoError(t, err)
		a, err := d.Malloc(16, format.PoolMisc)
		require.NoError(t, err)
		d.Log().Start("tag")
		require.NoError(t, d.PutU64(a, 0xABCDEF))
		d.Log().End("tag")
		out := make([]byte, len(d.Bytes()))
		copy(out, d.Bytes())
		// The header carries a random id; compare data chunks only.
		return out[format.DataAreaOffset:]
	}
	require.Equal(t, run(false), run(true))
}

func TestModificationLog_RingAndExport(t *testing.T) {
	d, err := Open(Options{LogWrites: true, LogCapacity: 4})
	require.NoError(t, err)
	a, err := d.Malloc(64, format.PoolMisc)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.NoError(t, d.PutU8(a+Address(i), uint8(i)))
	}

	entries := d.Log().Entries()
	require.Len(t, entries, 4)
	require.Equal(t, a+9, entries[3].Addr)
	require.Less(t, entries[0].Seq, entries[3].Seq)

	var buf bytes.Buffer
	require.NoError(t, d.Log().Export(&buf))
	back, err := ImportLog(&buf)
	require.NoError(t, err)
	require.Equal(t, entries, back)
}
