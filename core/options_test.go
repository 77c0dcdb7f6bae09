package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func validRuntimeConfig() Config {
	return Config{
		Environment: "test",
		Provider: ProviderConfig{
			BaseURL:       "https://stationapi.veriff.com/v1",
			APIKey:        "key",
			APISecret:     "secret",
			WebhookSecret: "hook",
		},
	}
}

func TestResolveConfig_RuntimeOverridesLoadedOverridesDefaults(t *testing.T) {
	loader := StaticRawConfigLoader{Values: map[string]any{
		"environment": "staging",
		"retry": map[string]any{
			"max_retries": 5,
		},
		"monitoring": map[string]any{
			"schedule": "@every 5m",
		},
	}}
	runtime := validRuntimeConfig()
	runtime.Environment = "production"

	cfg, err := ResolveConfig(context.Background(), NewCfgxConfigProvider(loader), nil, runtime)
	if err != nil {
		t.Fatalf("resolve config: %v", err)
	}
	if cfg.Environment != "production" {
		t.Fatalf("expected runtime environment to win, got %q", cfg.Environment)
	}
	if cfg.Retry.MaxRetries != 5 {
		t.Fatalf("expected loaded max_retries, got %d", cfg.Retry.MaxRetries)
	}
	if cfg.Monitoring.Schedule != "@every 5m" {
		t.Fatalf("expected loaded schedule, got %q", cfg.Monitoring.Schedule)
	}
	if cfg.Retry.BaseDelay != time.Second || cfg.Provider.Timeout != 30*time.Second {
		t.Fatalf("expected defaults for unset values, got %+v", cfg)
	}
}

func TestResolveConfig_MissingSecretsAreConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"environment", func(c *Config) { c.Environment = "" }},
		{"base url", func(c *Config) { c.Provider.BaseURL = "" }},
		{"api key", func(c *Config) { c.Provider.APIKey = " " }},
		{"api secret", func(c *Config) { c.Provider.APISecret = "" }},
		{"webhook secret", func(c *Config) { c.Provider.WebhookSecret = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runtime := validRuntimeConfig()
			tt.mutate(&runtime)
			_, err := ResolveConfig(context.Background(), nil, nil, runtime)
			if KindOf(err) != KindConfiguration {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestConfigValidate_StuckThresholdOrdering(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Environment = "test"
	cfg.Provider = validRuntimeConfig().Provider
	cfg.Monitoring.StuckWarningAfter = 48 * time.Hour
	if err := cfg.Validate(); KindOf(err) != KindConfiguration {
		t.Fatalf("expected warning threshold above error threshold to fail, got %v", err)
	}
}

type failingLoader struct{}

func (failingLoader) LoadRaw(context.Context) (map[string]any, error) {
	return nil, errors.New("vault unreachable")
}

func TestResolveConfig_LoaderErrorPropagates(t *testing.T) {
	_, err := ResolveConfig(context.Background(), NewCfgxConfigProvider(failingLoader{}), nil, validRuntimeConfig())
	if err == nil || err.Error() != "vault unreachable" {
		t.Fatalf("expected loader error, got %v", err)
	}
}

func TestStaticRawConfigLoader_ReturnsCopy(t *testing.T) {
	values := map[string]any{"environment": "dev"}
	raw, err := StaticRawConfigLoader{Values: values}.LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("load raw: %v", err)
	}
	raw["environment"] = "changed"
	if values["environment"] != "dev" {
		t.Fatalf("expected loader to return a copy")
	}
}
