package core

import (
	"strings"
	"time"
)

type ProviderConfig struct {
	BaseURL       string        `koanf:"base_url" mapstructure:"base_url"`
	APIKey        string        `koanf:"api_key" mapstructure:"api_key"`
	APISecret     string        `koanf:"api_secret" mapstructure:"api_secret"`
	WebhookSecret string        `koanf:"webhook_secret" mapstructure:"webhook_secret"`
	Timeout       time.Duration `koanf:"timeout" mapstructure:"timeout"`
}

type RetryConfig struct {
	MaxRetries int           `koanf:"max_retries" mapstructure:"max_retries"`
	BaseDelay  time.Duration `koanf:"base_delay" mapstructure:"base_delay"`
	MaxDelay   time.Duration `koanf:"max_delay" mapstructure:"max_delay"`
	Multiplier float64       `koanf:"multiplier" mapstructure:"multiplier"`
}

type MonitoringConfig struct {
	Schedule                string        `koanf:"schedule" mapstructure:"schedule"`
	SuccessRateThreshold    float64       `koanf:"success_rate_threshold" mapstructure:"success_rate_threshold"`
	ProcessingTimeThreshold time.Duration `koanf:"processing_time_threshold" mapstructure:"processing_time_threshold"`
	StuckWarningAfter       time.Duration `koanf:"stuck_warning_after" mapstructure:"stuck_warning_after"`
	StuckErrorAfter         time.Duration `koanf:"stuck_error_after" mapstructure:"stuck_error_after"`
	WindowHours             int           `koanf:"window_hours" mapstructure:"window_hours"`
}

type CacheConfig struct {
	StatusTTL time.Duration `koanf:"status_ttl" mapstructure:"status_ttl"`
}

type Config struct {
	ServiceName   string           `koanf:"service_name" mapstructure:"service_name"`
	Environment   string           `koanf:"environment" mapstructure:"environment"`
	Provider      ProviderConfig   `koanf:"provider" mapstructure:"provider"`
	Retry         RetryConfig      `koanf:"retry" mapstructure:"retry"`
	DispatchRetry RetryConfig      `koanf:"dispatch_retry" mapstructure:"dispatch_retry"`
	Monitoring    MonitoringConfig `koanf:"monitoring" mapstructure:"monitoring"`
	Cache         CacheConfig      `koanf:"cache" mapstructure:"cache"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "verification",
		Provider: ProviderConfig{
			Timeout: 30 * time.Second,
		},
		Retry: RetryConfig{
			MaxRetries: 3,
			BaseDelay:  time.Second,
			MaxDelay:   10 * time.Second,
			Multiplier: 2,
		},
		DispatchRetry: RetryConfig{
			MaxRetries: 3,
			BaseDelay:  time.Second,
			MaxDelay:   5 * time.Second,
			Multiplier: 2,
		},
		Monitoring: MonitoringConfig{
			Schedule:                "@every 15m",
			SuccessRateThreshold:    80,
			ProcessingTimeThreshold: 30 * time.Minute,
			StuckWarningAfter:       2 * time.Hour,
			StuckErrorAfter:         24 * time.Hour,
			WindowHours:             24,
		},
		Cache: CacheConfig{
			StatusTTL: 5 * time.Minute,
		},
	}
}

// Validate rejects configurations that cannot authenticate with the provider.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return NewConfigurationError("core: service_name is required")
	}
	if strings.TrimSpace(c.Environment) == "" {
		return NewConfigurationError("core: environment is required")
	}
	if err := c.Provider.Validate(); err != nil {
		return err
	}
	if c.Retry.MaxRetries < 0 || c.DispatchRetry.MaxRetries < 0 {
		return NewConfigurationError("core: max_retries must not be negative")
	}
	if c.Monitoring.StuckErrorAfter > 0 && c.Monitoring.StuckWarningAfter > c.Monitoring.StuckErrorAfter {
		return NewConfigurationError("core: stuck_warning_after must not exceed stuck_error_after")
	}
	return nil
}

func (c ProviderConfig) Validate() error {
	switch {
	case strings.TrimSpace(c.BaseURL) == "":
		return NewConfigurationError("core: provider base_url is required")
	case strings.TrimSpace(c.APIKey) == "":
		return NewConfigurationError("core: provider api_key is required")
	case strings.TrimSpace(c.APISecret) == "":
		return NewConfigurationError("core: provider api_secret is required")
	case strings.TrimSpace(c.WebhookSecret) == "":
		return NewConfigurationError("core: provider webhook_secret is required")
	}
	return nil
}
