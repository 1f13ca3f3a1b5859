package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/ndkit/nd/db"
)

var (
	// Global flags
	verbose   bool
	quiet     bool
	jsonOut   bool
	storeKind string
)

var rootCmd = &cobra.Command{
	Use:   "ndctl",
	Short: "Inspect nd database files",
	Long: `ndctl opens an nd database read-only and reports on its header,
allocation pools, free space and raw chunk contents. It also decodes
modification logs exported by an application.`,
	Version: "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().
		StringVar(&storeKind, "store", "file", "Backing store of the database (file, mmap, bolt)")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger returns a stderr debug logger in verbose mode, otherwise a
// discarding one.
func newLogger() *slog.Logger {
	if verbose && !quiet {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// openDatabase opens path read-only using the store selected by --store.
// Missing files are an error rather than an empty database.
func openDatabase(path string) (*db.Database, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	var (
		store db.Store
		err   error
	)
	switch storeKind {
	case "file", "":
		store, err = db.OpenFileStore(path)
	case "mmap":
		store, err = db.OpenMappedStore(path)
	case "bolt":
		store, err = db.OpenBoltStore(path)
	default:
		return nil, fmt.Errorf("unknown store: %s (must be file, mmap or bolt)", storeKind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", storeKind, err)
	}

	d, err := db.Open(db.Options{
		Store:        store,
		Logger:       newLogger(),
		CheckHandles: true,
		ReadOnly:     true,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	printVerbose("Opened %s (%s store, %d chunks)\n", path, storeKind, d.ChunkCount())
	return d, nil
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// formatBytes renders a byte count the way info and pools print sizes.
func formatBytes(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d bytes", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	}
}
