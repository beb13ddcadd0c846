// Package config loads taskweave settings from the user config, a project
// override file and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for taskweave.
type Config struct {
	Anthropic    AnthropicConfig    `mapstructure:"anthropic"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Dispatch     DispatchConfig     `mapstructure:"dispatch"`
	Decompose    DecomposeConfig    `mapstructure:"decompose"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
}

// AnthropicConfig holds reasoning service settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	MaxTokens  int64  `mapstructure:"max_tokens"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// OrchestratorConfig holds run limits.
type OrchestratorConfig struct {
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	FailurePolicy  string        `mapstructure:"failure_policy"`
	RunTimeout     time.Duration `mapstructure:"run_timeout"`
	// MaxCost is in dollars. Zero means unlimited.
	MaxCost       float64 `mapstructure:"max_cost"`
	BudgetWarning float64 `mapstructure:"budget_warning"`
}

// DispatchConfig holds retry and timeout settings for subtasks.
type DispatchConfig struct {
	MaxAttempts    int             `mapstructure:"max_attempts"`
	Backoff        []time.Duration `mapstructure:"backoff"`
	RetryTransport bool            `mapstructure:"retry_transport"`
	TaskTimeout    time.Duration   `mapstructure:"task_timeout"`
}

// DecomposeConfig holds decomposition settings.
type DecomposeConfig struct {
	AnalyzeComplexity bool `mapstructure:"analyze_complexity"`
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Backend is "memory" or "sqlite".
	Backend string        `mapstructure:"backend"`
	Path    string        `mapstructure:"path"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	// Format is "text" or "json".
	Format string `mapstructure:"format"`
}

// MetricsConfig holds metrics export settings.
type MetricsConfig struct {
	// Textfile, when set, receives the metrics after each run.
	Textfile string `mapstructure:"textfile"`
}

const (
	appName           = "taskweave"
	projectConfigName = ".taskweave.yaml"
	envPrefix         = "TASKWEAVE"
)

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, TASKWEAVE_<SECTION>_<KEY>)
// 2. Project config (.taskweave.yaml in current directory or parent)
// 3. User config (~/.config/taskweave/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	return decode(v)
}

// LoadFromPath loads configuration from a single file, still honouring
// defaults and environment overrides.
func LoadFromPath(path string) (*Config, error) {
	v := newViper()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY", envPrefix+"_ANTHROPIC_API_KEY")
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.Cache.Path = expandEnv(cfg.Cache.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Orchestrator.FailurePolicy) {
	case "", "continue", "abort":
	default:
		return fmt.Errorf("orchestrator.failure_policy: unknown value %q", c.Orchestrator.FailurePolicy)
	}
	if c.Orchestrator.MaxConcurrency < 0 {
		return fmt.Errorf("orchestrator.max_concurrency must not be negative")
	}
	if c.Orchestrator.MaxCost < 0 {
		return fmt.Errorf("orchestrator.max_cost must not be negative")
	}
	if w := c.Orchestrator.BudgetWarning; w < 0 || w > 1 {
		return fmt.Errorf("orchestrator.budget_warning must be within [0, 1], got %v", w)
	}
	switch c.Cache.Backend {
	case "", "memory", "sqlite":
	default:
		return fmt.Errorf("cache.backend: unknown value %q", c.Cache.Backend)
	}
	return nil
}

// Save writes cfg to the user config file. The API key is only written
// when it was set in cfg.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(userConfigDir, "config.yaml"))

	for key, value := range settings(cfg) {
		v.Set(key, value)
	}
	return v.WriteConfig()
}

// settings flattens cfg into viper keys. Durations are written as strings.
func settings(cfg *Config) map[string]any {
	backoff := make([]string, len(cfg.Dispatch.Backoff))
	for i, d := range cfg.Dispatch.Backoff {
		backoff[i] = d.String()
	}
	s := map[string]any{
		"anthropic.model":              cfg.Anthropic.Model,
		"anthropic.max_tokens":         cfg.Anthropic.MaxTokens,
		"anthropic.use_bedrock":        cfg.Anthropic.UseBedrock,
		"anthropic.aws_region":         cfg.Anthropic.AWSRegion,
		"anthropic.aws_profile":        cfg.Anthropic.AWSProfile,
		"orchestrator.max_concurrency": cfg.Orchestrator.MaxConcurrency,
		"orchestrator.failure_policy":  cfg.Orchestrator.FailurePolicy,
		"orchestrator.run_timeout":     cfg.Orchestrator.RunTimeout.String(),
		"orchestrator.max_cost":        cfg.Orchestrator.MaxCost,
		"orchestrator.budget_warning":  cfg.Orchestrator.BudgetWarning,
		"dispatch.max_attempts":        cfg.Dispatch.MaxAttempts,
		"dispatch.backoff":             backoff,
		"dispatch.retry_transport":     cfg.Dispatch.RetryTransport,
		"dispatch.task_timeout":        cfg.Dispatch.TaskTimeout.String(),
		"decompose.analyze_complexity": cfg.Decompose.AnalyzeComplexity,
		"cache.enabled":                cfg.Cache.Enabled,
		"cache.backend":                cfg.Cache.Backend,
		"cache.path":                   cfg.Cache.Path,
		"cache.ttl":                    cfg.Cache.TTL.String(),
		"logging.level":                cfg.Logging.Level,
		"logging.format":               cfg.Logging.Format,
		"metrics.textfile":             cfg.Metrics.Textfile,
	}
	if cfg.Anthropic.APIKey != "" {
		s["anthropic.api_key"] = cfg.Anthropic.APIKey
	}
	return s
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults mirrors Default.
func setDefaults(v *viper.Viper) {
	d := Default()
	for key, value := range settings(d) {
		v.SetDefault(key, value)
	}
	v.SetDefault("anthropic.api_key", "")
}

// getUserConfigDir returns the XDG config directory for taskweave.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, appName)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", appName)
	}
	return filepath.Join(home, ".config", appName)
}

// findProjectConfig searches for .taskweave.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, projectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 4096,
		},
		Orchestrator: OrchestratorConfig{
			MaxConcurrency: 8,
			FailurePolicy:  "continue",
			BudgetWarning:  0.8,
		},
		Dispatch: DispatchConfig{
			MaxAttempts:    3,
			Backoff:        []time.Duration{250 * time.Millisecond, time.Second},
			RetryTransport: true,
			TaskTimeout:    2 * time.Minute,
		},
		Decompose: DecomposeConfig{
			AnalyzeComplexity: true,
		},
		Cache: CacheConfig{
			Enabled: false,
			Backend: "memory",
			TTL:     time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
