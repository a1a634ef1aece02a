package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vigil",
		Short: "Vigil - verify recorded UI test sessions against their plans",
		Long: `Vigil verifies recorded UI test sessions against a written test plan.

It samples frames from a session video, reconstructs the observed event
timeline, and checks every planned step against what actually happened on
screen, producing a step-by-step verdict report.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	// Add subcommands
	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newNewCommand())
	cmd.AddCommand(newCheckCommand())
	cmd.AddCommand(newCompareCommand())
	cmd.AddCommand(newCacheCommand())
	cmd.AddCommand(newMetadataCommand(cmd))

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
