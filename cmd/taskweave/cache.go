package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/taskweave/internal/config"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the subtask result cache",
	Long: `Manage the result cache used when cache.enabled is true.

Only the sqlite backend persists between runs; the memory backend lives
for a single run and needs no maintenance.`,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached result",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPersistentCache(cmd, func(cfg *config.Config) error {
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			printStatus(cmd, "✓", "Cache cleared", color.FgGreen)
			return nil
		})
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove expired results",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPersistentCache(cmd, func(cfg *config.Config) error {
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			n, err := store.Prune(cmd.Context())
			if err != nil {
				return fmt.Errorf("prune cache: %w", err)
			}
			printStatus(cmd, "✓", fmt.Sprintf("Pruned %d expired result(s)", n), color.FgGreen)
			return nil
		})
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cachePruneCmd)
}

func withPersistentCache(cmd *cobra.Command, fn func(*config.Config) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Cache.Backend != "sqlite" {
		printStatus(cmd, "⚠", "cache.backend is not sqlite, nothing is persisted", color.FgYellow)
		return nil
	}
	return fn(cfg)
}

// printStatus prints a status line with a colored symbol.
func printStatus(cmd *cobra.Command, symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", c.Sprint(symbol), message)
}
