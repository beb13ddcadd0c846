package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/taskweave/internal/config"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "taskweave",
	Short: "Dependency-aware parallel task orchestrator",
	Long: `taskweave breaks a request into capability-tagged subtasks, orders them
by their dependencies and dispatches each level in parallel against a
reasoning service. The results are aggregated into one answer together
with a cost and confidence report.

Configuration is read from ~/.config/taskweave/config.yaml, a project
.taskweave.yaml and TASKWEAVE_* environment variables.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: user and project config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads the configuration and applies the persistent flags.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = strings.ToLower(logLevel)
	}
	return cfg, nil
}
