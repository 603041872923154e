package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

// ConfigProvider loads a complete config seeded from defaults, so zero
// values it returns are deliberate.
type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

// ResolveConfig layers defaults, provider-loaded values and runtime
// overrides, in that order of precedence.
func ResolveConfig(
	ctx context.Context,
	provider ConfigProvider,
	resolver OptionsResolver,
	runtime Config,
) (Config, error) {
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
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, true)
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
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// configToLayerMap drops zero values unless includeZero is set, so a layer
// only overrides the keys it actually carries.
func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	putString(layer, "service_name", cfg.ServiceName, includeZero)
	putString(layer, "default_session", cfg.DefaultSession, includeZero)

	webhook := map[string]any{}
	putString(webhook, "url", cfg.Webhook.URL, includeZero)
	putString(webhook, "secret", cfg.Webhook.Secret, includeZero)
	putString(webhook, "user_agent", cfg.Webhook.UserAgent, includeZero)
	putString(webhook, "source", cfg.Webhook.Source, includeZero)
	if includeZero || cfg.Webhook.Timeout != 0 {
		webhook["timeout"] = cfg.Webhook.Timeout
	}
	if includeZero || cfg.Webhook.MaxRetries != 0 {
		webhook["max_retries"] = cfg.Webhook.MaxRetries
	}
	if includeZero || cfg.Webhook.RetryWindow != 0 {
		webhook["retry_window"] = cfg.Webhook.RetryWindow
	}
	if includeZero || cfg.Webhook.SweepInterval != 0 {
		webhook["sweep_interval"] = cfg.Webhook.SweepInterval
	}
	if includeZero || len(cfg.Webhook.RelayEvents) > 0 {
		webhook["relay_events"] = append([]string(nil), cfg.Webhook.RelayEvents...)
	}
	putSection(layer, "webhook", webhook)

	session := map[string]any{}
	if includeZero || cfg.Session.SendRatePerMinute != 0 {
		session["send_rate_per_minute"] = cfg.Session.SendRatePerMinute
	}
	if includeZero || cfg.Session.DirectoryTTL != 0 {
		session["directory_ttl"] = cfg.Session.DirectoryTTL
	}
	if includeZero || cfg.Session.MessageBuffer != 0 {
		session["message_buffer"] = cfg.Session.MessageBuffer
	}
	if includeZero || cfg.Session.MaxAuthFailures != 0 {
		session["max_auth_failures"] = cfg.Session.MaxAuthFailures
	}
	putString(session, "data_dir", cfg.Session.DataDir, includeZero)
	putSection(layer, "session", session)

	httpSection := map[string]any{}
	putString(httpSection, "addr", cfg.HTTP.Addr, includeZero)
	putSection(layer, "http", httpSection)

	store := map[string]any{}
	putString(store, "driver", cfg.Store.Driver, includeZero)
	putString(store, "dsn", cfg.Store.DSN, includeZero)
	putString(store, "secret_key", cfg.Store.SecretKey, includeZero)
	putSection(layer, "store", store)
	return layer
}

func putString(target map[string]any, key string, value string, includeZero bool) {
	if includeZero || strings.TrimSpace(value) != "" {
		target[key] = value
	}
}

func putSection(target map[string]any, key string, section map[string]any) {
	if len(section) > 0 {
		target[key] = section
	}
}
