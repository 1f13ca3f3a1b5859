package main

import (
	"github.com/spf13/cobra"

	"github.com/joshuapare/ndkit/internal/format"
)

func init() {
	rootCmd.AddCommand(newPoolsCmd())
}

func newPoolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pools <db>",
		Short: "Show per-pool allocation statistics",
		Long: `The pools command lists every allocation pool that currently holds
blocks, with its live block count and bytes. Node types allocate from
their own pool, so this is also a per-type census.

Example:
  ndctl pools index.nd
  ndctl pools index.nd --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPools(args)
		},
	}
	return cmd
}

// PoolInfo is one row of ndctl pools.
type PoolInfo struct {
	Pool   uint16 `json:"pool"`
	Name   string `json:"name"`
	Blocks uint32 `json:"blocks"`
	Bytes  uint64 `json:"bytes"`
}

func runPools(args []string) error {
	path := args[0]

	d, err := openDatabase(path)
	if err != nil {
		return err
	}
	defer d.Close()

	var pools []PoolInfo
	var total uint64
	for _, s := range d.PoolStats() {
		if s.Count == 0 {
			continue
		}
		pools = append(pools, PoolInfo{
			Pool:   s.Pool,
			Name:   format.PoolName(s.Pool),
			Blocks: s.Count,
			Bytes:  s.Bytes,
		})
		total += s.Bytes
	}

	if jsonOut {
		return printJSON(map[string]interface{}{
			"file":  path,
			"pools": pools,
			"total": total,
		})
	}

	printInfo("\nPools: %s\n\n", path)
	if len(pools) == 0 {
		printInfo("  (no allocations)\n")
		return nil
	}
	printInfo("  %-6s %-18s %10s %14s\n", "ID", "NAME", "BLOCKS", "BYTES")
	for _, p := range pools {
		printInfo("  %-6d %-18s %10d %14d\n", p.Pool, p.Name, p.Blocks, p.Bytes)
	}
	printInfo("\n  Total: %s\n", formatBytes(int64(total)))
	return nil
}
