package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/ndkit/internal/format"
	"github.com/joshuapare/ndkit/nd/db"
)

// testDatabasePath builds a small flushed database in a temp dir and
// returns its path. kind selects the store, as --store does.
func testDatabasePath(t *testing.T, kind string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test."+kind)
	var (
		store db.Store
		err   error
	)
	switch kind {
	case "bolt":
		store, err = db.OpenBoltStore(path)
	default:
		store, err = db.OpenFileStore(path)
	}
	require.NoError(t, err)

	d, err := db.Open(db.Options{Store: store})
	require.NoError(t, err)

	root, err := d.Malloc(64, format.PoolDBProperties)
	require.NoError(t, err)
	d.SetRoot(root)

	s, err := d.NewString("hello ndctl")
	require.NoError(t, err)
	require.NoError(t, d.PutPtr(root, s.Address()))

	_, err = d.Malloc(40, format.PoolFirstNodeType+1)
	require.NoError(t, err)
	tmp, err := d.Malloc(40, format.PoolFirstNodeType+1)
	require.NoError(t, err)
	require.NoError(t, d.Free(tmp, format.PoolFirstNodeType+1))

	require.NoError(t, d.Flush(context.Background()))
	require.NoError(t, d.Close())
	return path
}

// resetFlags restores every global flag to its default.
func resetFlags() {
	verbose = false
	quiet = false
	jsonOut = false
	storeKind = "file"
	dumpChunk = 0
	dumpBlocks = false
	logAddr = ""
	logTag = ""
}

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		t.Fatalf("failed to read output: %v", err)
	}

	return buf.String(), fnErr
}

// decodeJSON unmarshals captured output into v.
func decodeJSON(t *testing.T, output string, v interface{}) {
	t.Helper()
	if err := json.Unmarshal([]byte(output), v); err != nil {
		t.Fatalf("invalid JSON output: %v\nOutput: %s", err, output)
	}
}

// assertContains checks that output contains all expected strings
func assertContains(t *testing.T, output string, expected []string) {
	t.Helper()
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("output missing expected string %q\nGot: %s", want, output)
		}
	}
}
