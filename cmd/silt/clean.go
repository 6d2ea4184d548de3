package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"silt/internal/driver"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the silt report cache",
	Long:  "Remove every cached report from the per-user cache directory.",
	Args:  cobra.NoArgs,
	RunE:  runClean,
}

func runClean(_ *cobra.Command, _ []string) error {
	cache, err := driver.OpenCache("silt")
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	if err := cache.DropAll(); err != nil {
		return fmt.Errorf("failed to remove %q: %w", cache.Dir(), err)
	}
	_, _ = fmt.Fprintf(os.Stdout, "removed %s\n", cache.Dir())
	return nil
}
