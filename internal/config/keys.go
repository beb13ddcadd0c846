package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

const (
	apiKeyEnv    = "ANTHROPIC_API_KEY"
	apiKeyPrefix = "sk-ant-"
	minKeyLength = 20
)

var (
	// ErrNoAPIKey means neither the environment nor the config holds a key.
	ErrNoAPIKey = errors.New("no Anthropic API key configured")
	// ErrMalformedAPIKey means a key is present but cannot be an Anthropic key.
	ErrMalformedAPIKey = errors.New("malformed Anthropic API key")
)

// KeySource is where ResolveAPIKey found the key.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// ResolveAPIKey returns the Anthropic API key and where it came from.
// ANTHROPIC_API_KEY wins over anthropic.api_key. A config value that still
// reads ${VAR} after expansion counts as unset.
func ResolveAPIKey(cfg *Config) (string, KeySource, error) {
	if key := strings.TrimSpace(os.Getenv(apiKeyEnv)); key != "" {
		return key, KeySourceEnv, nil
	}
	if cfg == nil {
		return "", KeySourceNone, ErrNoAPIKey
	}
	key := strings.TrimSpace(os.ExpandEnv(cfg.Anthropic.APIKey))
	if key == "" || strings.HasPrefix(key, "${") {
		return "", KeySourceNone, ErrNoAPIKey
	}
	return key, KeySourceConfig, nil
}

// ValidateAPIKey checks the shape of a key without contacting the API.
func ValidateAPIKey(key string) error {
	switch {
	case key == "":
		return ErrNoAPIKey
	case !strings.HasPrefix(key, apiKeyPrefix):
		return fmt.Errorf("%w: expected %q prefix", ErrMalformedAPIKey, apiKeyPrefix)
	case len(key) < minKeyLength:
		return fmt.Errorf("%w: %d characters is too short", ErrMalformedAPIKey, len(key))
	}
	return nil
}

// MaskAPIKey keeps the prefix and the last four characters of a key.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 15 {
		return "***"
	}
	return key[:len(apiKeyPrefix)] + "..." + key[len(key)-4:]
}
