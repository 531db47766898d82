// Command sbxreco reassembles sidecars from a sbxscan database.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sbxfs/sbxfs/internal/reco"
	"github.com/sbxfs/sbxfs/internal/scanner"
)

var (
	flagAll         bool
	flagUIDs        []string
	flagSBXNames    []string
	flagFileNames   []string
	flagFillMissing bool
	flagInteractive bool
	flagOverwrite   bool
)

var rootCmd = &cobra.Command{
	Use:   "sbxreco <db> [<destdir>]",
	Short: "Reassemble sidecars from a sbxscan database",
	Long: `sbxreco reads the database a sbxscan run produced and reassembles one
or more sidecars from the recorded block locations, writing each to
<destdir> (the current directory by default).

Select which sidecars to rebuild with exactly one of --all, --uid,
--sbx, or --file. Use -f to fill any block sbxscan never found with a
zeroed data block instead of failing outright.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runReco,
}

func init() {
	rootCmd.Flags().BoolVar(&flagAll, "all", false, "reconstruct every uid found in the database")
	rootCmd.Flags().StringArrayVar(&flagUIDs, "uid", nil, "reconstruct this hex uid (repeatable)")
	rootCmd.Flags().StringArrayVar(&flagSBXNames, "sbx", nil, "reconstruct uids whose recorded sidecar name matches (repeatable)")
	rootCmd.Flags().StringArrayVar(&flagFileNames, "file", nil, "reconstruct uids whose recorded source file name matches (repeatable)")
	rootCmd.Flags().BoolVarP(&flagFillMissing, "fill", "f", false, "fill missing blocks with zeroed data blocks")
	rootCmd.Flags().BoolVarP(&flagInteractive, "interactive", "i", false, "has no effect: no confirmation is asked, and an existing sidecar is refused unless -o is given")
	rootCmd.Flags().BoolVarP(&flagOverwrite, "overwrite", "o", false, "overwrite an existing sidecar without asking")
}

func runReco(cmd *cobra.Command, args []string) error {
	dbPath := args[0]
	destdir := "."
	if len(args) == 2 {
		destdir = args[1]
	}

	db, err := scanner.OpenDB(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	sel := reco.Selection{All: flagAll, SBX: flagSBXNames, File: flagFileNames}
	for _, u := range flagUIDs {
		raw, err := hex.DecodeString(strings.TrimSpace(u))
		if err != nil {
			return fmt.Errorf("invalid --uid %q: %w", u, err)
		}
		sel.UIDs = append(sel.UIDs, raw)
	}

	targets, err := reco.Resolve(db, sel)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		fmt.Println("no matching uids found in database")
		return nil
	}

	opts := reco.Options{FillMissing: flagFillMissing, Interactive: flagInteractive, Overwrite: flagOverwrite}
	var failed int
	for _, t := range targets {
		if err := reco.Reconstruct(db, t, destdir, opts); err != nil {
			fmt.Fprintf(os.Stderr, "reconstructing %x: %v\n", t.UID, err)
			failed++
			continue
		}
		fmt.Printf("reconstructed %s (uid %x)\n", t.SidecarName, t.UID)
	}
	if failed > 0 {
		return fmt.Errorf("%d reconstruction(s) failed", failed)
	}
	return nil
}

func main() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
