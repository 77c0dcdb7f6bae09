package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

// StaticRawConfigLoader serves a fixed nested map.
type StaticRawConfigLoader struct {
	Values map[string]any
}

func (l StaticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

// Load decodes raw values over defaults. Validation is deferred to the
// resolver because required secrets may only arrive with runtime config.
func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = StaticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
	)
	if err != nil {
		return Config{}, WrapError(err, KindConfiguration, "core: config decode failed")
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, WrapError(err, KindConfiguration, "core: config resolve failed")
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// ResolveConfig loads file/env values and layers runtime overrides on top.
func ResolveConfig(ctx context.Context, provider ConfigProvider, resolver OptionsResolver, runtime Config) (Config, error) {
	if provider == nil {
		provider = NewCfgxConfigProvider(nil)
	}
	if resolver == nil {
		resolver = GoOptionsResolver{}
	}
	defaults := DefaultConfig()
	loaded, err := provider.Load(ctx, defaults)
	if err != nil {
		return Config{}, err
	}
	return resolver.Resolve(defaults, loaded, runtime)
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	setString(layer, "service_name", cfg.ServiceName, includeZero)
	setString(layer, "environment", cfg.Environment, includeZero)

	provider := map[string]any{}
	setString(provider, "base_url", cfg.Provider.BaseURL, includeZero)
	setString(provider, "api_key", cfg.Provider.APIKey, includeZero)
	setString(provider, "api_secret", cfg.Provider.APISecret, includeZero)
	setString(provider, "webhook_secret", cfg.Provider.WebhookSecret, includeZero)
	if includeZero || cfg.Provider.Timeout > 0 {
		provider["timeout"] = cfg.Provider.Timeout
	}
	if len(provider) > 0 {
		layer["provider"] = provider
	}

	if retry := retryToLayerMap(cfg.Retry, includeZero); len(retry) > 0 {
		layer["retry"] = retry
	}
	if retry := retryToLayerMap(cfg.DispatchRetry, includeZero); len(retry) > 0 {
		layer["dispatch_retry"] = retry
	}

	monitoring := map[string]any{}
	setString(monitoring, "schedule", cfg.Monitoring.Schedule, includeZero)
	if includeZero || cfg.Monitoring.SuccessRateThreshold > 0 {
		monitoring["success_rate_threshold"] = cfg.Monitoring.SuccessRateThreshold
	}
	if includeZero || cfg.Monitoring.ProcessingTimeThreshold > 0 {
		monitoring["processing_time_threshold"] = cfg.Monitoring.ProcessingTimeThreshold
	}
	if includeZero || cfg.Monitoring.StuckWarningAfter > 0 {
		monitoring["stuck_warning_after"] = cfg.Monitoring.StuckWarningAfter
	}
	if includeZero || cfg.Monitoring.StuckErrorAfter > 0 {
		monitoring["stuck_error_after"] = cfg.Monitoring.StuckErrorAfter
	}
	if includeZero || cfg.Monitoring.WindowHours > 0 {
		monitoring["window_hours"] = cfg.Monitoring.WindowHours
	}
	if len(monitoring) > 0 {
		layer["monitoring"] = monitoring
	}

	if includeZero || cfg.Cache.StatusTTL > 0 {
		layer["cache"] = map[string]any{"status_ttl": cfg.Cache.StatusTTL}
	}
	return layer
}

func retryToLayerMap(cfg RetryConfig, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || cfg.MaxRetries > 0 {
		layer["max_retries"] = cfg.MaxRetries
	}
	if includeZero || cfg.BaseDelay > 0 {
		layer["base_delay"] = cfg.BaseDelay
	}
	if includeZero || cfg.MaxDelay > 0 {
		layer["max_delay"] = cfg.MaxDelay
	}
	if includeZero || cfg.Multiplier > 0 {
		layer["multiplier"] = cfg.Multiplier
	}
	return layer
}

func setString(layer map[string]any, key string, value string, includeZero bool) {
	if includeZero || strings.TrimSpace(value) != "" {
		layer[key] = value
	}
}
