package main

import (
	"context"
	"strings"

	"github.com/goliatone/go-config/config"
	"github.com/goliatone/go-verification/core"
)

// Nested keys use a double underscore: VERIFICATION_PROVIDER__BASE_URL
// lands on provider.base_url.
const (
	envPrefix    = "VERIFICATION_"
	envDelimiter = "__"
)

// monitorSettings are the process knobs that stay outside core.Config.
type monitorSettings struct {
	DatabaseDSN string `koanf:"database_dsn"`
	CallbackURL string `koanf:"callback_url"`
	MetricsAddr string `koanf:"metrics_addr"`
	LogLevel    string `koanf:"log_level"`
}

func defaultMonitorSettings() *monitorSettings {
	return &monitorSettings{
		MetricsAddr: ":9090",
		LogLevel:    "info",
	}
}

func (s *monitorSettings) Validate() error {
	if s == nil || strings.TrimSpace(s.DatabaseDSN) == "" {
		return core.NewConfigurationError("verification-monitor: " + envPrefix + "DATABASE_DSN is required")
	}
	return nil
}

// envConfig is one snapshot of the VERIFICATION_* environment. It serves the
// nested tree to core.NewCfgxConfigProvider and keeps the monitor settings.
type envConfig struct {
	settings *monitorSettings
	raw      map[string]any
}

func loadEnv(ctx context.Context) (*envConfig, error) {
	container := config.New(defaultMonitorSettings()).
		WithConfigPath("").
		WithProvider(config.EnvProvider[*monitorSettings](envPrefix, envDelimiter))
	if err := container.Load(ctx); err != nil {
		return nil, core.WrapError(err, core.KindConfiguration, "verification-monitor: load environment")
	}

	settings := container.Raw()
	defaults := defaultMonitorSettings()
	if settings.MetricsAddr == "" {
		settings.MetricsAddr = defaults.MetricsAddr
	}
	if settings.LogLevel == "" {
		settings.LogLevel = defaults.LogLevel
	}
	return &envConfig{
		settings: settings,
		raw:      withoutBlankValues(container.K.Raw()),
	}, nil
}

func (e *envConfig) LoadRaw(context.Context) (map[string]any, error) {
	if e == nil {
		return map[string]any{}, nil
	}
	return e.raw, nil
}

// withoutBlankValues drops whitespace-only strings so an exported but empty
// variable keeps the default.
func withoutBlankValues(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case string:
			if strings.TrimSpace(v) == "" {
				continue
			}
			out[key] = strings.TrimSpace(v)
		case map[string]any:
			if nested := withoutBlankValues(v); len(nested) > 0 {
				out[key] = nested
			}
		default:
			out[key] = value
		}
	}
	return out
}
