package main

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDumpCommand(t *testing.T) {
	tests := []struct {
		name        string
		chunk       int
		blocks      bool
		wantErr     bool
		wantContain []string
	}{
		{
			name:        "header chunk",
			chunk:       0,
			wantContain: []string{"Chunk 0 of", "offset 0x0", "|nddb"},
		},
		{
			name:        "data chunk",
			chunk:       1,
			wantContain: []string{"Chunk 1 of", "offset 0x1000", "hello ndctl"},
		},
		{
			name:        "blocks",
			chunk:       1,
			blocks:      true,
			wantContain: []string{"Blocks in chunk 1", "0x1008", "db-properties", "string-short", "node-type-1", "free"},
		},
		{
			name:        "header chunk has no blocks",
			chunk:       0,
			blocks:      true,
			wantContain: []string{"(no block headers in this chunk)"},
		},
		{
			name:    "out of range",
			chunk:   2,
			wantErr: true,
		},
		{
			name:    "negative",
			chunk:   -1,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			dumpChunk = tt.chunk
			dumpBlocks = tt.blocks
			path := testDatabasePath(t, "file")

			output, err := captureOutput(t, func() error {
				return runDump([]string{path})
			})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assertContains(t, output, tt.wantContain)
		})
	}
}

func TestDumpCommand_JSON(t *testing.T) {
	resetFlags()
	jsonOut = true
	dumpChunk = 0
	path := testDatabasePath(t, "file")

	output, err := captureOutput(t, func() error {
		return runDump([]string{path})
	})
	require.NoError(t, err)

	var result struct {
		Chunk int    `json:"chunk"`
		Data  string `json:"data"`
	}
	decodeJSON(t, output, &result)
	raw, err := hex.DecodeString(result.Data)
	require.NoError(t, err)
	require.Len(t, raw, 4096)
	require.Equal(t, []byte("nddb"), raw[:4])
}

func TestDumpCommand_BlocksJSON(t *testing.T) {
	resetFlags()
	jsonOut = true
	dumpChunk = 1
	dumpBlocks = true
	path := testDatabasePath(t, "file")

	output, err := captureOutput(t, func() error {
		return runDump([]string{path})
	})
	require.NoError(t, err)

	var result struct {
		Blocks []BlockEntry `json:"blocks"`
	}
	decodeJSON(t, output, &result)
	require.Equal(t, []BlockEntry{
		{Addr: "0x1008", Size: 72, InUse: true, Pool: "db-properties"},
		{Addr: "0x1050", Size: 24, InUse: true, Pool: "string-short"},
		{Addr: "0x1068", Size: 48, InUse: true, Pool: "node-type-1"},
		{Addr: "0x1098", Size: 48, Gen: 1},
		{Addr: "0x10c8", Size: 4096 - 192},
	}, result.Blocks)
}
