package router

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-wabridge/core"
	"github.com/goliatone/go-wabridge/webhooks"
)

// Dispatcher is the delivery side of the relay.
type Dispatcher interface {
	Dispatch(ctx context.Context, kind core.EventKind, data map[string]any) (webhooks.DispatchReport, error)
}

// deliveryTimeouter is implemented by dispatchers whose receivers carry
// their own timeouts.
type deliveryTimeouter interface {
	DeliveryTimeout(ctx context.Context) time.Duration
}

// WebhookRelay forwards events allowed by its policy to the webhook engine
// without blocking the publisher.
type WebhookRelay struct {
	dispatcher Dispatcher
	policy     core.EventFilter
	timeout    time.Duration
	observer   *core.Observer

	wg sync.WaitGroup
}

// NewWebhookRelay builds a relay. An empty policy relays message events
// only. timeout bounds one dispatch round; zero means no bound. The bound
// grows to twice the longest receiver timeout the dispatcher reports.
func NewWebhookRelay(dispatcher Dispatcher, policy core.EventFilter, timeout time.Duration, logger core.Logger) *WebhookRelay {
	if policy.Empty() {
		policy = core.NewEventFilter(core.EventMessage)
	}
	return &WebhookRelay{
		dispatcher: dispatcher,
		policy:     policy,
		timeout:    timeout,
		observer:   core.NewObserver(loggerName, logger, nil, nil),
	}
}

func (w *WebhookRelay) Policy() core.EventFilter {
	return w.policy
}

// Attach subscribes the relay to every kind its policy allows.
func (w *WebhookRelay) Attach(r *Router) error {
	kinds := make([]core.EventKind, 0, len(core.AllEventKinds()))
	for _, kind := range core.AllEventKinds() {
		if w.policy.Matches(kind) {
			kinds = append(kinds, kind)
		}
	}
	if len(kinds) == 0 {
		return nil
	}
	return r.Subscribe(w, kinds...)
}

func (w *WebhookRelay) Handle(_ context.Context, event core.Event) {
	if w.dispatcher == nil || !w.policy.Matches(event.Kind) {
		return
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ctx := context.Background()
		if bound := w.roundTimeout(ctx); bound > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, bound)
			defer cancel()
		}
		report, err := w.dispatcher.Dispatch(ctx, event.Kind, event.Data())
		if err != nil {
			w.observer.Warn(ctx, "webhook relay failed", map[string]any{
				"event":   event.Kind.String(),
				"session": event.Session,
				"error":   err.Error(),
			})
			return
		}
		if report.Failed() > 0 {
			w.observer.Debug(ctx, "webhook relay queued failures", map[string]any{
				"event":   event.Kind.String(),
				"session": event.Session,
				"failed":  report.Failed(),
			})
		}
	}()
}

func (w *WebhookRelay) roundTimeout(ctx context.Context) time.Duration {
	if w.timeout <= 0 {
		return 0
	}
	timeouter, ok := w.dispatcher.(deliveryTimeouter)
	if !ok {
		return w.timeout
	}
	return max(w.timeout, 2*timeouter.DeliveryTimeout(ctx))
}

// Wait blocks until every in-flight relay has finished.
func (w *WebhookRelay) Wait() {
	w.wg.Wait()
}
