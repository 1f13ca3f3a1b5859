package main

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newValidateCmd())
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <db>",
		Short: "Validate block layout and free lists",
		Long: `The validate command walks every block in the database and checks
that the free lists, block headers and pool statistics agree.

Example:
  ndctl validate index.nd
  ndctl validate index.nd --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(args)
		},
	}
	return cmd
}

func runValidate(args []string) error {
	path := args[0]

	d, err := openDatabase(path)
	if err != nil {
		return err
	}
	defer d.Close()

	rep, err := d.ValidateFreeSpace()

	result := map[string]interface{}{
		"file":        path,
		"valid":       err == nil,
		"used_blocks": rep.UsedBlocks,
		"used_bytes":  rep.UsedBytes,
		"free_blocks": rep.FreeBlocks,
		"free_bytes":  rep.FreeBytes,
	}
	if err != nil {
		result["error"] = err.Error()
	}

	if jsonOut {
		if perr := printJSON(result); perr != nil {
			return perr
		}
		return err
	}

	printInfo("\nValidating %s...\n\n", path)
	printInfo("  Used: %d blocks, %s\n", rep.UsedBlocks, formatBytes(rep.UsedBytes))
	printInfo("  Free: %d blocks, %s\n", rep.FreeBlocks, formatBytes(rep.FreeBytes))

	if err != nil {
		printInfo("  ✗ Validation failed: %v\n", err)
		printInfo("\nResult: ✗ INVALID\n")
		return err
	}

	printInfo("  ✓ Free lists consistent\n")
	printInfo("  ✓ Pool statistics match\n")
	printInfo("\nResult: ✓ VALID\n")
	return nil
}
