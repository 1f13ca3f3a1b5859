package db

import (
	"io"
	"log/slog"
)

const defaultLogCapacity = 4096

// Options configures Open.
type Options struct {
	// Store persists chunks. If nil, an in-memory store is used.
	Store Store

	// Logger receives growth and flush diagnostics. If nil, output is discarded.
	Logger *slog.Logger

	// LogWrites enables the modification log from the start.
	LogWrites bool

	// LogCapacity bounds the number of retained log entries. Default: 4096.
	LogCapacity int

	// CheckHandles makes record loads verify that the address is the payload
	// of a live block. Costs one header read per load.
	CheckHandles bool

	// ReadOnly rejects Flush.
	ReadOnly bool
}

func (o Options) withDefaults() Options {
	if o.Store == nil {
		o.Store = NewMemStore()
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.LogCapacity <= 0 {
		o.LogCapacity = defaultLogCapacity
	}
	return o
}
