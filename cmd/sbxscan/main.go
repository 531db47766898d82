// Command sbxscan brute-force scans arbitrary files or devices for
// candidate SBX blocks and records every hit into a SQLite database.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sbxfs/sbxfs/internal/block"
	"github.com/sbxfs/sbxfs/internal/scanner"
)

var (
	flagDB      string
	flagVersion int
)

var rootCmd = &cobra.Command{
	Use:   "sbxscan <files...>",
	Short: "Scan files or raw devices for candidate SBX blocks",
	Long: `sbxscan slides a byte cursor across each input file, testing every
offset against the "SBx" signature before paying for a CRC or
Reed-Solomon check, and records every verified block into a SQLite
database for later reassembly with sbxreco.

This is a recovery tool of last resort: it is meant for a device whose
sidecar names and offsets have been lost, not for routine integrity
checking (use sbxcheck for that).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.Flags().StringVarP(&flagDB, "db", "d", "sbxscan.db", "path to the scan database")
	rootCmd.Flags().IntVar(&flagVersion, "sv", 0, "restrict the scan to one container version (0 = try both)")
}

func runScan(cmd *cobra.Command, args []string) error {
	db, err := scanner.OpenDB(flagDB)
	if err != nil {
		return err
	}
	defer db.Close()

	var totalBlocks, totalUIDs int
	for _, path := range args {
		res, err := scanner.Scan(db, path, block.Version(flagVersion))
		if err != nil {
			fmt.Fprintf(os.Stderr, "scanning %s: %v\n", path, err)
			continue
		}
		fmt.Printf("%s: %d block(s), %d new uid(s)\n", path, res.BlocksFound, res.UIDsFound)
		totalBlocks += res.BlocksFound
		totalUIDs += res.UIDsFound
	}

	fmt.Printf("total: %d block(s), %d uid(s) recorded in %s\n", totalBlocks, totalUIDs, flagDB)
	return nil
}

func main() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
