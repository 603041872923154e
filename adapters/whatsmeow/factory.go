package whatsmeow

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/goliatone/go-wabridge/core"
	"github.com/goliatone/go-wabridge/session"
)

const (
	loggerName = "wabridge.whatsmeow"

	DefaultDeviceName = "wabridge"
)

// Config controls where device state is kept and how much message history
// each adapter retains in memory.
type Config struct {
	DataDir       string
	MessageBuffer int
	DeviceName    string
}

func ConfigFromCore(cfg core.SessionConfig) Config {
	return Config{
		DataDir:       cfg.DataDir,
		MessageBuffer: cfg.MessageBuffer,
		DeviceName:    DefaultDeviceName,
	}
}

func (c Config) normalized() Config {
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = core.DefaultSessionDataDir
	}
	if c.MessageBuffer <= 0 {
		c.MessageBuffer = core.DefaultMessageBuffer
	}
	if strings.TrimSpace(c.DeviceName) == "" {
		c.DeviceName = DefaultDeviceName
	}
	return c
}

// StorePath is the sqlite file holding the device keys of one session.
func (c Config) StorePath(name string) string {
	return filepath.Join(c.normalized().DataDir, "whatsapp-"+safeFileName(name)+".db")
}

func (c Config) storeDSN(name string) string {
	return fmt.Sprintf("file:%s?_foreign_keys=on", c.StorePath(name))
}

type factoryBuilder struct {
	logger         core.Logger
	loggerProvider core.LoggerProvider
}

type Option func(*factoryBuilder)

func WithLogger(logger core.Logger) Option {
	return func(b *factoryBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(b *factoryBuilder) {
		b.loggerProvider = provider
	}
}

// Factory builds one whatsmeow backed adapter per session. Every session
// gets its own device store so sessions never share keys.
type Factory struct {
	config Config
	logger core.Logger
}

func NewFactory(cfg Config, opts ...Option) *Factory {
	builder := factoryBuilder{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}
	_, logger := core.ResolveLogger(loggerName, builder.loggerProvider, builder.logger)
	return &Factory{config: cfg.normalized(), logger: logger}
}

func (f *Factory) Config() Config {
	return f.config
}

func (f *Factory) NewAdapter(name string, listener session.Listener) (session.Adapter, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("whatsmeow: session name is required")
	}
	if listener == nil {
		return nil, fmt.Errorf("whatsmeow: listener is required")
	}
	return newAdapter(name, f.config, listener, f.logger), nil
}

func safeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "session"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
