package wabridge

import (
	"github.com/goliatone/go-wabridge/core"
	"github.com/goliatone/go-wabridge/router"
	"github.com/goliatone/go-wabridge/session"
	"github.com/goliatone/go-wabridge/transport"
	"github.com/goliatone/go-wabridge/webhooks"
)

type eventHandler struct {
	handler router.Handler
	kinds   []core.EventKind
}

type bridgeOptions struct {
	adapterFactory    session.AdapterFactory
	subscriptionStore webhooks.SubscriptionStore
	sender            transport.Sender
	directory         session.Directory
	logger            core.Logger
	loggerProvider    core.LoggerProvider
	metrics           core.MetricsRecorder
	clock             core.Clock
	throttle          webhooks.Throttle
	handlers          []eventHandler
}

type Option func(*bridgeOptions)

// WithAdapterFactory sets the messaging adapter backend. Required.
func WithAdapterFactory(factory session.AdapterFactory) Option {
	return func(o *bridgeOptions) {
		o.adapterFactory = factory
	}
}

// WithSubscriptionStore makes webhook subscriptions durable.
func WithSubscriptionStore(store webhooks.SubscriptionStore) Option {
	return func(o *bridgeOptions) {
		o.subscriptionStore = store
	}
}

func WithSender(sender transport.Sender) Option {
	return func(o *bridgeOptions) {
		o.sender = sender
	}
}

// WithReceiverThrottle replaces the in-memory Retry-After policy applied to
// webhook receivers.
func WithReceiverThrottle(throttle webhooks.Throttle) Option {
	return func(o *bridgeOptions) {
		o.throttle = throttle
	}
}

func WithDirectory(directory session.Directory) Option {
	return func(o *bridgeOptions) {
		o.directory = directory
	}
}

func WithLogger(logger core.Logger) Option {
	return func(o *bridgeOptions) {
		o.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(o *bridgeOptions) {
		o.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(o *bridgeOptions) {
		o.metrics = recorder
	}
}

func WithClock(clock core.Clock) Option {
	return func(o *bridgeOptions) {
		o.clock = clock
	}
}

// WithEventHandler subscribes an extra handler to the event router.
func WithEventHandler(handler router.Handler, kinds ...core.EventKind) Option {
	return func(o *bridgeOptions) {
		o.handlers = append(o.handlers, eventHandler{
			handler: handler,
			kinds:   append([]core.EventKind(nil), kinds...),
		})
	}
}
