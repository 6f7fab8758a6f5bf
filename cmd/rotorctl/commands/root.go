package commands

import (
	"os"

	"github.com/btcsuite/btclog"
	btclogv2 "github.com/btcsuite/btclog/v2"
	"github.com/spf13/cobra"

	"github.com/roasbeef/rotorgo/internal/build"
	"github.com/roasbeef/rotorgo/internal/rotorlog"
)

var verbose bool

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "rotorctl",
	Short: "Drives rotorgo's actor runtime through concrete scenarios",
	Long: `rotorctl is a demo CLI for the rotorgo actor runtime.

Each subcommand spins up its own actor system and supervisor, runs one of
the runtime's documented end-to-end scenarios to completion, and reports
the observed outcome.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		console := btclogv2.NewDefaultHandler(os.Stderr)

		handlers := build.NewHandlerSet(console)
		level := btclog.LevelInfo
		if verbose {
			level = btclog.LevelDebug
		}
		handlers.SetLevel(level)

		rotorlog.SetHandler(handlers)
		return nil
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(
		&verbose, "verbose", false,
		"Enable debug-level logging",
	)

	rootCmd.AddCommand(pingPongCmd)
	rootCmd.AddCommand(timeoutCmd)
	rootCmd.AddCommand(registryCmd)
	rootCmd.AddCommand(linkedCmd)
	rootCmd.AddCommand(spawnerCmd)
}
