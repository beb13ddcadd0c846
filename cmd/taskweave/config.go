package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/taskweave/internal/config"
)

// configKeys lists the keys shown by 'taskweave config', in display order.
var configKeys = []string{
	"anthropic.api_key",
	"anthropic.model",
	"anthropic.max_tokens",
	"anthropic.use_bedrock",
	"anthropic.aws_region",
	"anthropic.aws_profile",
	"orchestrator.max_concurrency",
	"orchestrator.failure_policy",
	"orchestrator.run_timeout",
	"orchestrator.max_cost",
	"orchestrator.budget_warning",
	"dispatch.max_attempts",
	"dispatch.backoff",
	"dispatch.retry_transport",
	"dispatch.task_timeout",
	"decompose.analyze_complexity",
	"cache.enabled",
	"cache.backend",
	"cache.path",
	"cache.ttl",
	"logging.level",
	"logging.format",
	"metrics.textfile",
}

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify taskweave configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/taskweave/config.yaml
Project-specific overrides can be placed in .taskweave.yaml`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch len(args) {
		case 0:
			return displayAllConfig(out, cfg)
		case 1:
			value, err := getConfigValue(cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out, value)
			return nil
		default:
			if err := setConfigValue(cfg, args[0], args[1]); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(cfg); err != nil {
				return fmt.Errorf("saving config: %w", err)
			}
			fmt.Fprintf(out, "Set %s in %s\n", strings.ToLower(args[0]), config.GetUserConfigPath())
			return nil
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(w io.Writer, cfg *config.Config) error {
	for _, key := range configKeys {
		value, err := getConfigValue(cfg, key)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: %s\n", key, value)
	}
	if p := config.GetProjectConfigPath(); p != "" {
		fmt.Fprintf(w, "\nproject overrides: %s\n", p)
	}
	return nil
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		return config.MaskAPIKey(cfg.Anthropic.APIKey), nil
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "anthropic.max_tokens":
		return strconv.FormatInt(cfg.Anthropic.MaxTokens, 10), nil
	case "anthropic.use_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseBedrock), nil
	case "anthropic.aws_region":
		return cfg.Anthropic.AWSRegion, nil
	case "anthropic.aws_profile":
		return cfg.Anthropic.AWSProfile, nil
	case "orchestrator.max_concurrency":
		return strconv.Itoa(cfg.Orchestrator.MaxConcurrency), nil
	case "orchestrator.failure_policy":
		return cfg.Orchestrator.FailurePolicy, nil
	case "orchestrator.run_timeout":
		return cfg.Orchestrator.RunTimeout.String(), nil
	case "orchestrator.max_cost":
		return strconv.FormatFloat(cfg.Orchestrator.MaxCost, 'f', -1, 64), nil
	case "orchestrator.budget_warning":
		return strconv.FormatFloat(cfg.Orchestrator.BudgetWarning, 'f', -1, 64), nil
	case "dispatch.max_attempts":
		return strconv.Itoa(cfg.Dispatch.MaxAttempts), nil
	case "dispatch.backoff":
		parts := make([]string, len(cfg.Dispatch.Backoff))
		for i, d := range cfg.Dispatch.Backoff {
			parts[i] = d.String()
		}
		return strings.Join(parts, ","), nil
	case "dispatch.retry_transport":
		return strconv.FormatBool(cfg.Dispatch.RetryTransport), nil
	case "dispatch.task_timeout":
		return cfg.Dispatch.TaskTimeout.String(), nil
	case "decompose.analyze_complexity":
		return strconv.FormatBool(cfg.Decompose.AnalyzeComplexity), nil
	case "cache.enabled":
		return strconv.FormatBool(cfg.Cache.Enabled), nil
	case "cache.backend":
		return cfg.Cache.Backend, nil
	case "cache.path":
		return cfg.Cache.Path, nil
	case "cache.ttl":
		return cfg.Cache.TTL.String(), nil
	case "logging.level":
		return cfg.Logging.Level, nil
	case "logging.format":
		return cfg.Logging.Format, nil
	case "metrics.textfile":
		return cfg.Metrics.Textfile, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	var err error
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "anthropic.max_tokens":
		cfg.Anthropic.MaxTokens, err = strconv.ParseInt(value, 10, 64)
	case "anthropic.use_bedrock":
		cfg.Anthropic.UseBedrock, err = strconv.ParseBool(value)
	case "anthropic.aws_region":
		cfg.Anthropic.AWSRegion = value
	case "anthropic.aws_profile":
		cfg.Anthropic.AWSProfile = value
	case "orchestrator.max_concurrency":
		cfg.Orchestrator.MaxConcurrency, err = strconv.Atoi(value)
	case "orchestrator.failure_policy":
		cfg.Orchestrator.FailurePolicy = strings.ToLower(value)
	case "orchestrator.run_timeout":
		cfg.Orchestrator.RunTimeout, err = time.ParseDuration(value)
	case "orchestrator.max_cost":
		cfg.Orchestrator.MaxCost, err = strconv.ParseFloat(value, 64)
	case "orchestrator.budget_warning":
		cfg.Orchestrator.BudgetWarning, err = strconv.ParseFloat(value, 64)
	case "dispatch.max_attempts":
		cfg.Dispatch.MaxAttempts, err = strconv.Atoi(value)
	case "dispatch.backoff":
		cfg.Dispatch.Backoff, err = parseDurations(value)
	case "dispatch.retry_transport":
		cfg.Dispatch.RetryTransport, err = strconv.ParseBool(value)
	case "dispatch.task_timeout":
		cfg.Dispatch.TaskTimeout, err = time.ParseDuration(value)
	case "decompose.analyze_complexity":
		cfg.Decompose.AnalyzeComplexity, err = strconv.ParseBool(value)
	case "cache.enabled":
		cfg.Cache.Enabled, err = strconv.ParseBool(value)
	case "cache.backend":
		cfg.Cache.Backend = strings.ToLower(value)
	case "cache.path":
		cfg.Cache.Path = value
	case "cache.ttl":
		cfg.Cache.TTL, err = time.ParseDuration(value)
	case "logging.level":
		cfg.Logging.Level = strings.ToLower(value)
	case "logging.format":
		cfg.Logging.Format = strings.ToLower(value)
	case "metrics.textfile":
		cfg.Metrics.Textfile = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", strings.ToLower(key), err)
	}
	return nil
}

// parseDurations parses a comma separated list such as "250ms,1s".
func parseDurations(s string) ([]time.Duration, error) {
	var out []time.Duration
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := time.ParseDuration(part)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
