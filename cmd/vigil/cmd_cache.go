package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/richardpark-msft/vigil/internal/cache"
	"github.com/richardpark-msft/vigil/internal/projectconfig"
)

var cacheDir string

func newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the timeline cache",
		Long: `Manage the timeline cache.

The cache stores analyzed timelines so re-verifying an unchanged session
skips sampling and provider calls. Entries are keyed by plan content, video
file contents, provider, and model.`,
	}

	cmd.AddCommand(newCacheClearCommand())

	return cmd
}

func newCacheClearCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the timeline cache",
		Long: `Clear all cached timelines.

The next verification run will re-sample and re-analyze the session video
from scratch.`,
		RunE: cacheClearE,
	}

	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "Cache directory to clear (default from project config)")

	return cmd
}

func cacheClearE(cmd *cobra.Command, args []string) error {
	dir := cacheDir
	if dir == "" {
		cfg, err := projectconfig.Load(".")
		if err != nil {
			return fmt.Errorf("loading project config: %w", err)
		}
		dir = cfg.Cache.Dir
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving cache directory: %w", err)
	}

	c := cache.New(absDir)
	if err := c.Clear(); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}

	fmt.Printf("Cache cleared: %s\n", absDir)
	return nil
}
