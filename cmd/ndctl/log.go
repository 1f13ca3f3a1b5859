package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuapare/ndkit/nd/db"
)

var (
	logAddr string
	logTag  string
)

func init() {
	cmd := newLogCmd()
	cmd.Flags().StringVar(&logAddr, "addr", "", "Only show writes covering this address (hex or decimal)")
	cmd.Flags().StringVar(&logTag, "tag", "", "Only show entries whose tag starts with this prefix")
	rootCmd.AddCommand(cmd)
}

func newLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log <export>",
		Short: "Decode an exported modification log",
		Long: `The log command reads a modification log written by
ModificationLog.Export and prints its entries, oldest first.

Example:
  ndctl log writes.msgpack
  ndctl log writes.msgpack --addr 0x1010
  ndctl log writes.msgpack --tag Method. --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(args)
		},
	}
	return cmd
}

func runLog(args []string) error {
	path := args[0]

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	defer f.Close()

	entries, err := db.ImportLog(f)
	if err != nil {
		return fmt.Errorf("failed to decode log: %w", err)
	}
	printVerbose("Decoded %d entries from %s\n", len(entries), path)

	filtered, err := filterLog(entries, logAddr, logTag)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(filtered)
	}

	if len(filtered) == 0 {
		printInfo("(no entries)\n")
		return nil
	}
	for _, e := range filtered {
		switch e.Kind {
		case db.EntryWrite:
			printInfo("%8d  write  %-10s %6d  %s\n", e.Seq, e.Addr, e.Size, e.Tag)
		default:
			printInfo("%8d  %-5s  %s\n", e.Seq, e.Kind, e.Tag)
		}
	}
	return nil
}

// filterLog applies the --addr and --tag filters. An address filter keeps
// only writes whose range covers it.
func filterLog(entries []db.LogEntry, addr, tag string) ([]db.LogEntry, error) {
	var want db.Address
	if addr != "" {
		v, err := strconv.ParseUint(addr, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q: %w", addr, err)
		}
		want = db.Address(v)
	}

	out := make([]db.LogEntry, 0, len(entries))
	for _, e := range entries {
		if tag != "" && !strings.HasPrefix(e.Tag, tag) {
			continue
		}
		if addr != "" {
			if e.Kind != db.EntryWrite {
				continue
			}
			if want < e.Addr || int(want) >= int(e.Addr)+e.Size {
				continue
			}
		}
		out = append(out, e)
	}
	return out, nil
}
