// Package router connects session events to their consumers through a
// typed table of handlers keyed by event kind.
package router

import (
	"context"
	"fmt"
	"sync"

	"github.com/goliatone/go-wabridge/core"
)

const loggerName = "wabridge.router"

type Handler interface {
	Handle(ctx context.Context, event core.Event)
}

type HandlerFunc func(ctx context.Context, event core.Event)

func (f HandlerFunc) Handle(ctx context.Context, event core.Event) {
	if f != nil {
		f(ctx, event)
	}
}

// Router calls every handler subscribed to an event's kind, in
// subscription order, on the publishing goroutine.
type Router struct {
	observer *core.Observer

	mu       sync.RWMutex
	handlers map[core.EventKind][]Handler
}

type Option func(*routerBuilder)

type routerBuilder struct {
	logger         core.Logger
	loggerProvider core.LoggerProvider
}

func WithLogger(logger core.Logger) Option {
	return func(b *routerBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(b *routerBuilder) {
		b.loggerProvider = provider
	}
}

func New(opts ...Option) *Router {
	builder := routerBuilder{}
	for _, opt := range opts {
		if opt != nil {
			opt(&builder)
		}
	}
	_, logger := core.ResolveLogger(loggerName, builder.loggerProvider, builder.logger)
	return &Router{
		observer: core.NewObserver(loggerName, logger, nil, nil),
		handlers: map[core.EventKind][]Handler{},
	}
}

// Subscribe registers handler for each of kinds.
func (r *Router) Subscribe(handler Handler, kinds ...core.EventKind) error {
	if handler == nil {
		return fmt.Errorf("router: handler is required")
	}
	if len(kinds) == 0 {
		return fmt.Errorf("router: at least one event kind is required")
	}
	for _, kind := range kinds {
		if !kind.Valid() {
			return fmt.Errorf("router: unknown event kind %d", kind)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, kind := range kinds {
		r.handlers[kind] = append(r.handlers[kind], handler)
	}
	return nil
}

// Subscribers reports how many handlers listen for kind.
func (r *Router) Subscribers(kind core.EventKind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[kind])
}

// Publish implements session.Publisher. A panicking handler is logged and
// does not stop the remaining handlers.
func (r *Router) Publish(ctx context.Context, event core.Event) {
	r.mu.RLock()
	handlers := append([]Handler(nil), r.handlers[event.Kind]...)
	r.mu.RUnlock()

	for _, handler := range handlers {
		r.invoke(ctx, handler, event)
	}
}

func (r *Router) invoke(ctx context.Context, handler Handler, event core.Event) {
	defer func() {
		if recovered := recover(); recovered != nil {
			r.observer.Error(ctx, "event handler panicked", map[string]any{
				"event":   event.Kind.String(),
				"session": event.Session,
				"panic":   fmt.Sprint(recovered),
			})
		}
	}()
	handler.Handle(ctx, event)
}
