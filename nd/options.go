package nd

import (
	"io"
	"log/slog"
)

// Options configures New.
type Options struct {
	// Logger receives deletion diagnostics. If nil, the database's logger is used.
	Logger *slog.Logger
}

func (o Options) withDefaults(fallback *slog.Logger) Options {
	if o.Logger == nil {
		o.Logger = fallback
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}
