package session

import (
	"github.com/goliatone/go-wabridge/core"
)

const loggerName = "wabridge.session"

type registryBuilder struct {
	publisher      Publisher
	directory      Directory
	logger         core.Logger
	loggerProvider core.LoggerProvider
	metrics        core.MetricsRecorder
	clock          core.Clock
}

type Option func(*registryBuilder)

// WithPublisher sets the sink for session events.
func WithPublisher(publisher Publisher) Option {
	return func(b *registryBuilder) {
		b.publisher = publisher
	}
}

// WithDirectory replaces the contact/chat read-through cache.
func WithDirectory(directory Directory) Option {
	return func(b *registryBuilder) {
		b.directory = directory
	}
}

func WithLogger(logger core.Logger) Option {
	return func(b *registryBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(b *registryBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(b *registryBuilder) {
		b.metrics = recorder
	}
}

func WithClock(clock core.Clock) Option {
	return func(b *registryBuilder) {
		b.clock = clock
	}
}
