package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spc-dev/spc/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.PrintError(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "spc",
		Short: "Mirror a running simulation to remote viewers",
		Long: `spc streams a host's rendered frames and state to browser viewers
over a websocket, replays their pointer and key input on the host, and
serves a small HTTP API for the level's embedded data.

The serve command runs the built-in demo host. The level commands read
and write the data embedded in a level's guideline field.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		levelCmd(),
		versionCmd(),
	)
	return rootCmd
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Printf("\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}
