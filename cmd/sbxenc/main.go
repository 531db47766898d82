// Command sbxenc builds an SBX sidecar container from a plain file.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sbxfs/sbxfs/internal/block"
	"github.com/sbxfs/sbxfs/internal/cliutil"
	"github.com/sbxfs/sbxfs/internal/container"
)

var (
	flagVersion   int
	flagOverwrite bool
	flagUID       string
	flagRAID      bool
	flagPassword  string
	flagQuiet     bool
)

var rootCmd = &cobra.Command{
	Use:   "sbxenc <file> [<sidecar>]",
	Short: "Encode a file into a Reed-Solomon-protected SBX sidecar",
	Long: `sbxenc builds a redundant sidecar container next to a plain file.

The sidecar is split into fixed-size blocks, each protected by a CRC-16
check and a Reed-Solomon error-correcting code, so that scattered bit rot
in the sidecar can usually be repaired without needing a backup.

If -p is given, the payload of every data block is additionally XORed
with a password-derived keystream. This hides the "SBx" signature from a
casual byte scan, but is NOT encryption: the keystream is static and
unauthenticated, and offers no confidentiality against a motivated
attacker.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runEncode,
}

func init() {
	rootCmd.Flags().IntVar(&flagVersion, "sv", 1, "container version: 1 (512-byte blocks) or 2 (4096-byte blocks)")
	rootCmd.Flags().BoolVarP(&flagOverwrite, "overwrite", "o", false, "overwrite an existing sidecar")
	rootCmd.Flags().StringVar(&flagUID, "uid", "r", "12 hex digit container UID, or 'r' for random")
	rootCmd.Flags().BoolVar(&flagRAID, "raid", false, "also write a byte-identical <sidecar>.raid twin")
	rootCmd.Flags().StringVarP(&flagPassword, "password", "p", "", "obfuscation password (see above; not encryption)")
	rootCmd.Flags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress progress output")
}

func runEncode(cmd *cobra.Command, args []string) error {
	source := args[0]
	sidecar := source + ".sbx"
	if len(args) == 2 {
		sidecar = args[1]
	}

	ver := block.Version(flagVersion)
	if _, err := block.ParamsFor(ver); err != nil {
		return fmt.Errorf("invalid -sv %d: %w", flagVersion, err)
	}

	uid, err := cliutil.ParseUID(flagUID)
	if err != nil {
		return err
	}

	reporter := cliutil.NewReporter(flagQuiet)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		reporter.RequestCancel()
	}()

	err = container.Encode(&container.EncodeRequest{
		SourcePath:  source,
		SidecarPath: sidecar,
		Version:     ver,
		UID:         uid,
		Overwrite:   flagOverwrite,
		RAID:        flagRAID,
		Password:    flagPassword,
		Progress:    reporter.Progress,
		Cancel:      reporter.Cancel,
	})
	reporter.Finish()
	if err != nil {
		reporter.PrintError("%v", err)
		return err
	}

	reporter.PrintSuccess("encoded %s -> %s", source, sidecar)
	return nil
}

func main() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
