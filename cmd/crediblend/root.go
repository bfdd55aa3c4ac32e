package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crediblend",
		Short: "crediblend - blend model predictions and diagnose the result",
		Long: `crediblend combines out-of-fold predictions from several models.

It aligns the prediction files by id, scores every base model, drops
near-duplicate models, tries a set of blending strategies including a
weight search and a stacked meta-learner, and reports whether the best
blend beats the best single model. Time-sliced diagnostics flag unstable
models and likely target leakage.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newInitCommand())
	cmd.AddCommand(newCacheCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
