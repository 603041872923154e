package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type envConfig struct {
	ServiceName          string         `env:"WABRIDGE_SERVICE_NAME"`
	SessionName          string         `env:"SESSION_NAME"`
	SessionDataDir       string         `env:"SESSION_DATA_DIR"`
	SessionSendRate      *int           `env:"SESSION_SEND_RATE_PER_MINUTE"`
	SessionDirectoryTTL  *time.Duration `env:"SESSION_DIRECTORY_TTL"`
	SessionMessageBuffer *int           `env:"SESSION_MESSAGE_BUFFER"`
	SessionMaxAuthFails  *int           `env:"SESSION_MAX_AUTH_FAILURES"`
	WebhookURL           string         `env:"WEBHOOK_URL"`
	WebhookSecret        string         `env:"WEBHOOK_SECRET"`
	WebhookTimeout       *time.Duration `env:"WEBHOOK_TIMEOUT"`
	WebhookMaxRetries    *int           `env:"WEBHOOK_MAX_RETRIES"`
	WebhookRetryWindow   *time.Duration `env:"WEBHOOK_RETRY_WINDOW"`
	WebhookSweepInterval *time.Duration `env:"WEBHOOK_SWEEP_INTERVAL"`
	WebhookRelayEvents   []string       `env:"WEBHOOK_RELAY_EVENTS" envSeparator:","`
	Port                 string         `env:"PORT"`
	HTTPAddr             string         `env:"HTTP_ADDR"`
	StoreDriver          string         `env:"STORE_DRIVER"`
	StoreDSN             string         `env:"STORE_DSN"`
	StoreSecretKey       string         `env:"STORE_SECRET_KEY"`
}

// EnvConfigLoader reads the process environment into a raw config map.
// Environment replaces os.Environ when set.
type EnvConfigLoader struct {
	Environment map[string]string
}

func (l EnvConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	var parsed envConfig
	var err error
	if l.Environment != nil {
		err = env.ParseWithOptions(&parsed, env.Options{Environment: l.Environment})
	} else {
		err = env.Parse(&parsed)
	}
	if err != nil {
		return nil, fmt.Errorf("core: parse env: %w", err)
	}
	return parsed.toRaw(), nil
}

// toRaw drops unset variables. Numeric variables that are set keep their
// value even when it is zero.
func (e envConfig) toRaw() map[string]any {
	cfg := Config{
		ServiceName:    strings.TrimSpace(e.ServiceName),
		DefaultSession: strings.TrimSpace(e.SessionName),
		Webhook: WebhookConfig{
			URL:         strings.TrimSpace(e.WebhookURL),
			Secret:      e.WebhookSecret,
			RelayEvents: trimAll(e.WebhookRelayEvents),
		},
		Session: SessionConfig{
			DataDir: strings.TrimSpace(e.SessionDataDir),
		},
		HTTP: HTTPConfig{Addr: httpAddr(e.HTTPAddr, e.Port)},
		Store: StoreConfig{
			Driver:    strings.TrimSpace(e.StoreDriver),
			DSN:       strings.TrimSpace(e.StoreDSN),
			SecretKey: e.StoreSecretKey,
		},
	}
	layer := configToLayerMap(cfg, false)

	webhook := sectionOf(layer, "webhook")
	putSet(webhook, "timeout", e.WebhookTimeout)
	putSet(webhook, "max_retries", e.WebhookMaxRetries)
	putSet(webhook, "retry_window", e.WebhookRetryWindow)
	putSet(webhook, "sweep_interval", e.WebhookSweepInterval)
	putSection(layer, "webhook", webhook)

	session := sectionOf(layer, "session")
	putSet(session, "send_rate_per_minute", e.SessionSendRate)
	putSet(session, "directory_ttl", e.SessionDirectoryTTL)
	putSet(session, "message_buffer", e.SessionMessageBuffer)
	putSet(session, "max_auth_failures", e.SessionMaxAuthFails)
	putSection(layer, "session", session)
	return layer
}

func sectionOf(layer map[string]any, key string) map[string]any {
	if section, ok := layer[key].(map[string]any); ok {
		return section
	}
	return map[string]any{}
}

func putSet[T any](target map[string]any, key string, value *T) {
	if value != nil {
		target[key] = *value
	}
}

func httpAddr(addr string, port string) string {
	if addr = strings.TrimSpace(addr); addr != "" {
		return addr
	}
	port = strings.TrimSpace(port)
	if port == "" {
		return ""
	}
	if strings.Contains(port, ":") {
		return port
	}
	return ":" + port
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, value)
		}
	}
	return out
}
