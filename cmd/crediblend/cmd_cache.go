package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/crediblend/crediblend/internal/cache"
	"github.com/crediblend/crediblend/internal/projectconfig"
)

func newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the weight search cache",
		Long: `Manage the weight search cache.

run --cache stores each weight search result keyed by the aligned
predictions, the metric, the seed and the search budget, so a repeated
run over the same inputs skips the search.`,
	}

	cmd.AddCommand(newCacheClearCommand())

	return cmd
}

func newCacheClearCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached weight search results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("cache-dir") {
				wd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("resolving working directory: %w", err)
				}
				cfg, err := projectconfig.Load(wd)
				if err != nil {
					return err
				}
				dir = cfg.Cache.Dir
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving cache directory: %w", err)
			}
			if err := cache.New(absDir).Clear(); err != nil {
				return fmt.Errorf("clearing cache: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Cache cleared: %s\n", absDir) //nolint:errcheck
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "cache-dir", projectconfig.DefaultCacheDir, "Cache directory to clear (default: from "+projectconfig.FileName+")")

	return cmd
}
