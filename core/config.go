package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultServiceName       = "wabridge"
	DefaultSessionName       = "default"
	DefaultWebhookTimeout    = 10 * time.Second
	DefaultWebhookMaxRetries = 3
	DefaultRetryWindow       = 5 * time.Minute
	DefaultSweepInterval     = 30 * time.Second
	DefaultWebhookSource     = "whatsapp-mcp-sse"
	DefaultWebhookUserAgent  = "WhatsApp-MCP-SSE/1.0.0"
	DefaultHTTPAddr          = ":3000"
	DefaultDirectoryTTL      = 30 * time.Second
	DefaultMessageBuffer     = 100
	DefaultSessionDataDir    = ".wabridge"

	// RelayAllEvents subscribes to or relays every event kind.
	RelayAllEvents = "*"
)

type WebhookConfig struct {
	URL           string        `koanf:"url" mapstructure:"url"`
	Secret        string        `koanf:"secret" mapstructure:"secret"`
	Timeout       time.Duration `koanf:"timeout" mapstructure:"timeout"`
	MaxRetries    int           `koanf:"max_retries" mapstructure:"max_retries"`
	RetryWindow   time.Duration `koanf:"retry_window" mapstructure:"retry_window"`
	SweepInterval time.Duration `koanf:"sweep_interval" mapstructure:"sweep_interval"`
	RelayEvents   []string      `koanf:"relay_events" mapstructure:"relay_events"`
	UserAgent     string        `koanf:"user_agent" mapstructure:"user_agent"`
	Source        string        `koanf:"source" mapstructure:"source"`
}

type SessionConfig struct {
	SendRatePerMinute int           `koanf:"send_rate_per_minute" mapstructure:"send_rate_per_minute"`
	DirectoryTTL      time.Duration `koanf:"directory_ttl" mapstructure:"directory_ttl"`
	MessageBuffer     int           `koanf:"message_buffer" mapstructure:"message_buffer"`
	MaxAuthFailures   int           `koanf:"max_auth_failures" mapstructure:"max_auth_failures"`
	DataDir           string        `koanf:"data_dir" mapstructure:"data_dir"`
}

type HTTPConfig struct {
	Addr string `koanf:"addr" mapstructure:"addr"`
}

type StoreConfig struct {
	Driver    string `koanf:"driver" mapstructure:"driver"`
	DSN       string `koanf:"dsn" mapstructure:"dsn"`
	SecretKey string `koanf:"secret_key" mapstructure:"secret_key"`
}

type Config struct {
	ServiceName    string        `koanf:"service_name" mapstructure:"service_name"`
	DefaultSession string        `koanf:"default_session" mapstructure:"default_session"`
	Webhook        WebhookConfig `koanf:"webhook" mapstructure:"webhook"`
	Session        SessionConfig `koanf:"session" mapstructure:"session"`
	HTTP           HTTPConfig    `koanf:"http" mapstructure:"http"`
	Store          StoreConfig   `koanf:"store" mapstructure:"store"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:    DefaultServiceName,
		DefaultSession: DefaultSessionName,
		Webhook: WebhookConfig{
			Timeout:       DefaultWebhookTimeout,
			MaxRetries:    DefaultWebhookMaxRetries,
			RetryWindow:   DefaultRetryWindow,
			SweepInterval: DefaultSweepInterval,
			RelayEvents:   []string{EventMessage.String()},
			UserAgent:     DefaultWebhookUserAgent,
			Source:        DefaultWebhookSource,
		},
		Session: SessionConfig{
			DirectoryTTL:  DefaultDirectoryTTL,
			MessageBuffer: DefaultMessageBuffer,
			DataDir:       DefaultSessionDataDir,
		},
		HTTP: HTTPConfig{Addr: DefaultHTTPAddr},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.DefaultSession) == "" {
		return fmt.Errorf("core: default_session is required")
	}
	if err := c.Webhook.Validate(); err != nil {
		return err
	}
	if err := c.Session.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return fmt.Errorf("core: http.addr is required")
	}
	return c.Store.Validate()
}

func (c WebhookConfig) Validate() error {
	if raw := strings.TrimSpace(c.URL); raw != "" {
		if _, err := ParseWebhookURL(raw); err != nil {
			return fmt.Errorf("core: webhook.url is invalid: %w", err)
		}
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("core: webhook.timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("core: webhook.max_retries must not be negative")
	}
	if c.RetryWindow <= 0 {
		return fmt.Errorf("core: webhook.retry_window must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("core: webhook.sweep_interval must be positive")
	}
	if _, err := ParseEventFilter(c.RelayEvents); err != nil {
		return fmt.Errorf("core: webhook.relay_events: %w", err)
	}
	return nil
}

func (c SessionConfig) Validate() error {
	if c.SendRatePerMinute < 0 {
		return fmt.Errorf("core: session.send_rate_per_minute must not be negative")
	}
	if c.DirectoryTTL < 0 {
		return fmt.Errorf("core: session.directory_ttl must not be negative")
	}
	if c.MessageBuffer < 0 {
		return fmt.Errorf("core: session.message_buffer must not be negative")
	}
	if c.MaxAuthFailures < 0 {
		return fmt.Errorf("core: session.max_auth_failures must not be negative")
	}
	return nil
}

func (c StoreConfig) Validate() error {
	switch NormalizeStoreDriver(c.Driver) {
	case "":
		return nil
	case "sqlite3", "postgres":
		if strings.TrimSpace(c.DSN) == "" {
			return fmt.Errorf("core: store.dsn is required when store.driver is set")
		}
		return nil
	default:
		return fmt.Errorf("core: store.driver %q is not supported", c.Driver)
	}
}

// NormalizeStoreDriver maps driver aliases to database/sql driver names.
func NormalizeStoreDriver(driver string) string {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "":
		return ""
	case "sqlite", "sqlite3":
		return "sqlite3"
	case "postgres", "postgresql", "pg":
		return "postgres"
	default:
		return strings.ToLower(strings.TrimSpace(driver))
	}
}

// ParseWebhookURL accepts absolute http(s) URLs with a host.
func ParseWebhookURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("url %q is not absolute", raw)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return nil, fmt.Errorf("url scheme %q is not supported", parsed.Scheme)
	}
	if strings.TrimSpace(parsed.Host) == "" {
		return nil, fmt.Errorf("url %q has no host", raw)
	}
	return parsed, nil
}
