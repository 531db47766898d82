// Command sbxcheck walks a folder, verifying every file against its SBX
// sidecar and optionally repairing drift.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sbxfs/sbxfs/internal/block"
	"github.com/sbxfs/sbxfs/internal/checker"
)

var (
	flagRecursive bool
	flagVersion   int
	flagRAID      bool
	flagAuto      bool
	flagPassword  string
)

var rootCmd = &cobra.Command{
	Use:   "sbxcheck <folder>",
	Short: "Verify files against their SBX sidecars and optionally repair them",
	Long: `sbxcheck walks a folder pairing each plain file with its sidecar
(<file>.sbx), comparing the live content's hash against the hash stored
in the sidecar, and reports every mismatch it finds.

Without -auto, mismatches are listed and a single y/N confirmation
repairs all of them at once. With -auto, repair happens immediately
without prompting.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.Flags().BoolVarP(&flagRecursive, "recursive", "r", false, "descend into subdirectories")
	rootCmd.Flags().IntVar(&flagVersion, "sv", 1, "container version: 1 or 2")
	rootCmd.Flags().BoolVar(&flagRAID, "raid", false, "consult <sidecar>.raid twins when repairing")
	rootCmd.Flags().BoolVar(&flagAuto, "auto", false, "repair mismatches without prompting")
	rootCmd.Flags().StringVarP(&flagPassword, "password", "p", "", "obfuscation password used at encode time (obfuscation only, not encryption)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	root := args[0]
	ver := block.Version(flagVersion)
	if _, err := block.ParamsFor(ver); err != nil {
		return fmt.Errorf("invalid -sv %d: %w", flagVersion, err)
	}

	opts := checker.Options{
		Recursive: flagRecursive,
		Version:   ver,
		RAID:      flagRAID,
		Password:  flagPassword,
	}

	mismatches, err := checker.Scan(root, opts)
	if err != nil {
		return err
	}

	if len(mismatches) == 0 {
		fmt.Println("no mismatches found")
		return nil
	}

	fmt.Printf("%d mismatch(es) found:\n", len(mismatches))
	for _, m := range mismatches {
		fmt.Printf("  %s (%v)\n", m.FilePath, m.Err)
	}

	if !flagAuto {
		fmt.Print("repair all? [y/N]: ")
		reader := bufio.NewReader(os.Stdin)
		response, _ := reader.ReadString('\n')
		if strings.TrimSpace(strings.ToLower(response)) != "y" {
			return nil
		}
	}

	var failed int
	for _, m := range mismatches {
		if err := checker.Repair(m, opts); err != nil {
			fmt.Fprintf(os.Stderr, "repair of %s failed: %v\n", m.FilePath, err)
			failed++
			continue
		}
		fmt.Printf("repaired %s\n", m.FilePath)
	}
	if failed > 0 {
		return fmt.Errorf("%d repair(s) failed", failed)
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
