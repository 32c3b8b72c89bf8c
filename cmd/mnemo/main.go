// Command mnemo is the local CLI entry point: enough to install the
// data directory, ingest a transcript from stdin/args, and run a
// one-off search, without going through the HTTP seam.
//
// Grounded on theRebelliousNerd-codenerd/cmd/nerd/main.go's rootCmd +
// subcommand-file layout, logging set up the way
// thebtf-engram/cmd/mcp-sse/main.go does it (zerolog console writer to
// stderr).
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	debug   bool
	dataDir string
)

var rootCmd = &cobra.Command{
	Use:     "mnemo",
	Short:   "mnemo - persistent memory for a coding-assistant plugin",
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		if debug {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (default: config default / ~/.mnemo)")

	rootCmd.AddCommand(installCmd, ingestCmd, searchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
