package wabridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-wabridge/core"
	"github.com/goliatone/go-wabridge/ratelimit"
	"github.com/goliatone/go-wabridge/router"
	"github.com/goliatone/go-wabridge/session"
	"github.com/goliatone/go-wabridge/webhooks"
)

const loggerName = "wabridge"

// Bridge wires the session registry to the webhook engine through the
// event router and owns the retry sweeper.
type Bridge struct {
	config   core.Config
	registry *session.Registry
	engine   *webhooks.Engine
	router   *router.Router
	relay    *router.WebhookRelay
	sweeper  *webhooks.Sweeper
	observer *core.Observer

	mu      sync.Mutex
	started bool
}

func New(cfg core.Config, opts ...Option) (*Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	options := bridgeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&options)
	}
	if options.adapterFactory == nil {
		return nil, fmt.Errorf("wabridge: adapter factory is required")
	}
	provider, logger := core.ResolveLogger(loggerName, options.loggerProvider, options.logger)
	if options.throttle == nil {
		policy := ratelimit.NewAdaptivePolicy(ratelimit.NewMemoryStateStore())
		policy.Now = options.clock.Now
		options.throttle = policy
	}

	engine := webhooks.NewEngine(webhooks.ConfigFromCore(cfg.Webhook),
		webhooks.WithSubscriptionStore(options.subscriptionStore),
		webhooks.WithSender(options.sender),
		webhooks.WithLogger(logger),
		webhooks.WithLoggerProvider(provider),
		webhooks.WithMetricsRecorder(options.metrics),
		webhooks.WithClock(options.clock),
		webhooks.WithThrottle(options.throttle),
	)

	eventRouter := router.New(router.WithLogger(logger), router.WithLoggerProvider(provider))
	policy, err := core.ParseEventFilter(cfg.Webhook.RelayEvents)
	if err != nil {
		return nil, core.NewBadInputError("webhook.relay_events", err.Error())
	}
	relay := router.NewWebhookRelay(engine, policy, 2*cfg.Webhook.Timeout, logger)
	if err := relay.Attach(eventRouter); err != nil {
		return nil, err
	}
	for _, extra := range options.handlers {
		if err := eventRouter.Subscribe(extra.handler, extra.kinds...); err != nil {
			return nil, err
		}
	}

	registry, err := session.NewRegistry(options.adapterFactory, cfg.DefaultSession, cfg.Session,
		session.WithPublisher(eventRouter),
		session.WithDirectory(options.directory),
		session.WithLogger(logger),
		session.WithLoggerProvider(provider),
		session.WithMetricsRecorder(options.metrics),
		session.WithClock(options.clock),
	)
	if err != nil {
		return nil, err
	}

	return &Bridge{
		config:   cfg,
		registry: registry,
		engine:   engine,
		router:   eventRouter,
		relay:    relay,
		sweeper:  webhooks.NewSweeper(engine, cfg.Webhook.SweepInterval, logger),
		observer: core.NewObserver(loggerName, logger, options.metrics, options.clock),
	}, nil
}

func (b *Bridge) Config() core.Config {
	return b.config
}

func (b *Bridge) Registry() *session.Registry {
	return b.registry
}

func (b *Bridge) Engine() *webhooks.Engine {
	return b.engine
}

func (b *Bridge) Router() *router.Router {
	return b.router
}

func (b *Bridge) Sweeper() *webhooks.Sweeper {
	return b.sweeper
}

// Start registers the configured webhook URL, creates the default session
// and starts the retry sweeper. An adapter init failure is returned as is
// and leaves the bridge startable again.
func (b *Bridge) Start(ctx context.Context) (err error) {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return nil
	}
	b.started = true
	b.mu.Unlock()
	defer func() {
		if err != nil {
			b.mu.Lock()
			b.started = false
			b.mu.Unlock()
		}
	}()

	if rawURL := strings.TrimSpace(b.config.Webhook.URL); rawURL != "" {
		result, err := b.engine.SetWebhook(ctx, rawURL, []string{core.EventMessage.String()})
		if err != nil {
			return err
		}
		if !result.TestDelivery.Delivered {
			b.observer.Warn(ctx, "startup webhook probe failed", map[string]any{
				"url":    rawURL,
				"status": result.TestDelivery.StatusCode,
			})
		}
	}

	if _, err := b.registry.CreateSession(ctx, b.registry.DefaultSession()); err != nil {
		return err
	}
	if err := b.sweeper.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	b.observer.Info(ctx, "bridge started", map[string]any{
		"session":        b.registry.DefaultSession(),
		"relay_events":   strings.Join(b.relay.Policy().Strings(), ","),
		"sweep_interval": b.sweeper.Interval().String(),
	})
	return nil
}

// Close stops the sweeper, disconnects every session and waits for
// in-flight webhook relays.
func (b *Bridge) Close(ctx context.Context) error {
	var errs []error
	if err := b.sweeper.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := b.registry.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	b.relay.Wait()
	b.mu.Lock()
	b.started = false
	b.mu.Unlock()
	return errors.Join(errs...)
}

func (b *Bridge) CreateSession(ctx context.Context, name string) (session.Snapshot, error) {
	s, err := b.registry.CreateSession(ctx, name)
	if err != nil {
		return session.Snapshot{}, err
	}
	return s.Snapshot(), nil
}

func (b *Bridge) GetQRCode(ctx context.Context, name string) (session.QRResult, error) {
	return b.registry.GetQRCode(ctx, name)
}

func (b *Bridge) GetStatus(ctx context.Context, name string) (session.Snapshot, error) {
	return b.registry.GetStatus(ctx, name)
}

func (b *Bridge) ListSessions(context.Context) ([]session.Snapshot, error) {
	return b.registry.GetAllSessions(), nil
}

func (b *Bridge) SendMessage(ctx context.Context, to string, body string, name string) (session.SendResult, error) {
	return b.registry.SendMessage(ctx, to, body, name)
}

func (b *Bridge) GetContacts(ctx context.Context, name string) ([]session.Contact, error) {
	return b.registry.GetContacts(ctx, name)
}

func (b *Bridge) GetChats(ctx context.Context, name string) ([]session.Chat, error) {
	return b.registry.GetChats(ctx, name)
}

func (b *Bridge) FetchMessages(ctx context.Context, chatID string, limit int, name string) ([]core.MessageRecord, error) {
	return b.registry.FetchMessages(ctx, chatID, limit, name)
}

func (b *Bridge) Disconnect(ctx context.Context, name string) (session.DisconnectResult, error) {
	return b.registry.Disconnect(ctx, name)
}

func (b *Bridge) SetWebhook(
	ctx context.Context,
	url string,
	events []string,
	opts ...webhooks.SubscriptionOption,
) (webhooks.SetWebhookResult, error) {
	return b.engine.SetWebhook(ctx, url, events, opts...)
}

func (b *Bridge) RemoveWebhook(ctx context.Context, url string) (webhooks.RemoveWebhookResult, error) {
	return b.engine.RemoveWebhook(ctx, url)
}

func (b *Bridge) ListWebhooks(ctx context.Context) ([]webhooks.Subscription, error) {
	return b.engine.ListWebhooks(ctx)
}

func (b *Bridge) ProcessRetryQueue(ctx context.Context) (webhooks.SweepReport, error) {
	return b.sweeper.RunOnce(ctx)
}
