package webhooks

import (
	"context"
	"time"

	"github.com/goliatone/go-wabridge/core"
	"github.com/goliatone/go-wabridge/transport"
)

const loggerName = "wabridge.webhooks"

type engineBuilder struct {
	store          SubscriptionStore
	sender         transport.Sender
	logger         core.Logger
	loggerProvider core.LoggerProvider
	metrics        core.MetricsRecorder
	clock          core.Clock
	newID          func() string
	throttle       Throttle
}

// Throttle gates deliveries to receivers that asked the bridge to back off.
type Throttle interface {
	BeforeDelivery(ctx context.Context, url string) error
	AfterDelivery(ctx context.Context, url string, statusCode int, headers map[string]string) error
}

type Option func(*engineBuilder)

func WithSubscriptionStore(store SubscriptionStore) Option {
	return func(b *engineBuilder) {
		b.store = store
	}
}

// WithSender replaces the outbound HTTP adapter.
func WithSender(sender transport.Sender) Option {
	return func(b *engineBuilder) {
		b.sender = sender
	}
}

func WithLogger(logger core.Logger) Option {
	return func(b *engineBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(b *engineBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(b *engineBuilder) {
		b.metrics = recorder
	}
}

func WithClock(clock core.Clock) Option {
	return func(b *engineBuilder) {
		b.clock = clock
	}
}

// WithIDGenerator sets the generator for delivery ids.
func WithIDGenerator(fn func() string) Option {
	return func(b *engineBuilder) {
		b.newID = fn
	}
}

// WithThrottle enables receiver backoff. Throttled entries stay queued and
// are not charged a retry attempt.
func WithThrottle(throttle Throttle) Option {
	return func(b *engineBuilder) {
		b.throttle = throttle
	}
}

type SubscriptionOption func(*Subscription)

func WithSecret(secret string) SubscriptionOption {
	return func(s *Subscription) {
		s.Secret = secret
	}
}

func WithMaxRetries(maxRetries int) SubscriptionOption {
	return func(s *Subscription) {
		if maxRetries >= 0 {
			s.MaxRetries = maxRetries
		}
	}
}

func WithTimeout(timeout time.Duration) SubscriptionOption {
	return func(s *Subscription) {
		if timeout > 0 {
			s.Timeout = timeout
		}
	}
}
