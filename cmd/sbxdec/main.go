// Command sbxdec decodes an SBX sidecar container back into a plain file.
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
	flagVersion     int
	flagOverwrite   bool
	flagTestOnly    bool
	flagInfoOnly    bool
	flagContinue    bool
	flagRAID        bool
	flagPassword    string
	flagQuiet       bool
)

var rootCmd = &cobra.Command{
	Use:   "sbxdec <sidecar> [<out>]",
	Short: "Decode an SBX sidecar back into its original file",
	Long: `sbxdec reverses sbxenc: it reads a sidecar container, Reed-Solomon
corrects any damaged blocks, optionally falls back to a ".raid" twin per
block, and writes the reassembled file.

-p supplies the same obfuscation password used at encode time; this only
undoes the XOR keystream hiding the container's signature and is not a
cryptographic guarantee.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runDecode,
}

func init() {
	rootCmd.Flags().IntVar(&flagVersion, "sv", 1, "container version: 1 or 2")
	rootCmd.Flags().BoolVarP(&flagOverwrite, "overwrite", "o", false, "overwrite an existing output file")
	rootCmd.Flags().BoolVarP(&flagTestOnly, "test", "t", false, "verify integrity only, write no output")
	rootCmd.Flags().BoolVarP(&flagInfoOnly, "info", "i", false, "print stored metadata and exit")
	rootCmd.Flags().BoolVarP(&flagContinue, "continue", "c", false, "continue past unrecoverable blocks, zero-filling them")
	rootCmd.Flags().BoolVar(&flagRAID, "raid", false, "also consult <sidecar>.raid on block failure")
	rootCmd.Flags().StringVarP(&flagPassword, "password", "p", "", "obfuscation password used at encode time")
	rootCmd.Flags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress progress output")
}

func runDecode(cmd *cobra.Command, args []string) error {
	sidecar := args[0]
	out := sidecarBaseName(sidecar)
	if len(args) == 2 {
		out = args[1]
	}

	ver := block.Version(flagVersion)
	if _, err := block.ParamsFor(ver); err != nil {
		return fmt.Errorf("invalid -sv %d: %w", flagVersion, err)
	}

	reporter := cliutil.NewReporter(flagQuiet)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		reporter.RequestCancel()
	}()

	result, err := container.Decode(&container.DecodeRequest{
		SidecarPath:     sidecar,
		OutputPath:      out,
		Version:         ver,
		Overwrite:       flagOverwrite,
		RAID:            flagRAID,
		Password:        flagPassword,
		ContinueOnError: flagContinue,
		InfoOnly:        flagInfoOnly,
		TestOnly:        flagTestOnly,
		Progress:        reporter.Progress,
		Cancel:          reporter.Cancel,
	})
	reporter.Finish()
	if err != nil {
		reporter.PrintError("%v", err)
		return err
	}

	if flagInfoOnly {
		fmt.Printf("file name:      %s\n", result.Metadata.FileName)
		fmt.Printf("sidecar name:   %s\n", result.Metadata.SidecarName)
		fmt.Printf("file size:      %d\n", result.Metadata.FileSize)
		return nil
	}

	if len(result.RepairedBlocks) > 0 {
		reporter.PrintSuccess("recovered %d block(s) from the RAID twin", len(result.RepairedBlocks))
	}
	reporter.PrintSuccess("decoded %s -> %s", sidecar, out)
	return nil
}

func sidecarBaseName(sidecar string) string {
	const suffix = ".sbx"
	if len(sidecar) > len(suffix) && sidecar[len(sidecar)-len(suffix):] == suffix {
		return sidecar[:len(sidecar)-len(suffix)]
	}
	return sidecar + ".out"
}

func main() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
