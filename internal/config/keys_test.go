package config

import (
	"errors"
	"testing"
)

func TestResolveAPIKey(t *testing.T) {
	tests := []struct {
		name       string
		env        string
		configured string
		wantKey    string
		wantSource KeySource
		wantErr    error
	}{
		{"environment wins", "sk-ant-env-key", "sk-ant-config-key", "sk-ant-env-key", KeySourceEnv, nil},
		{"from config", "", "sk-ant-config-key", "sk-ant-config-key", KeySourceConfig, nil},
		{"unexpanded reference", "", "${TASKWEAVE_TEST_UNSET_KEY}", "", KeySourceNone, ErrNoAPIKey},
		{"nothing configured", "", "", "", KeySourceNone, ErrNoAPIKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ANTHROPIC_API_KEY", tt.env)

			cfg := &Config{Anthropic: AnthropicConfig{APIKey: tt.configured}}
			key, source, err := ResolveAPIKey(cfg)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if key != tt.wantKey || source != tt.wantSource {
				t.Errorf("got %q from %s, want %q from %s", key, source, tt.wantKey, tt.wantSource)
			}
		})
	}
}

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid key", "sk-ant-REDACTED", false},
		{"empty key", "", true},
		{"wrong prefix", "sk-openai-12345678901234567890", true},
		{"too short", "sk-ant-abc", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAPIKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAPIKey() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	tests := map[string]string{
		"sk-ant-REDACTED": "sk-ant-...wxyz",
		"":                                  "(not set)",
		"short":                             "***",
	}
	for key, want := range tests {
		if got := MaskAPIKey(key); got != want {
			t.Errorf("MaskAPIKey(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestValidateAPIKey_Malformed(t *testing.T) {
	err := ValidateAPIKey("sk-openai-12345678901234567890")
	if !errors.Is(err, ErrMalformedAPIKey) {
		t.Errorf("err = %v, want ErrMalformedAPIKey", err)
	}
	if err := ValidateAPIKey(""); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("err = %v, want ErrNoAPIKey", err)
	}
}
