// Package wabridge bridges messaging-account sessions to HTTP webhook
// subscribers. New wires a session registry, an event router and a webhook
// delivery engine with a bounded retry queue; Facade exposes the same
// operations as go-command commands and queries.
package wabridge

import (
	"context"

	"github.com/goliatone/go-wabridge/core"
	"github.com/goliatone/go-wabridge/session"
	"github.com/goliatone/go-wabridge/webhooks"
)

type Config = core.Config

type EventKind = core.EventKind

type Event = core.Event

type MessageRecord = core.MessageRecord

type Adapter = session.Adapter

type AdapterFactory = session.AdapterFactory

type AdapterFactoryFunc = session.AdapterFactoryFunc

type Listener = session.Listener

type Snapshot = session.Snapshot

type Subscription = webhooks.Subscription

type SubscriptionStore = webhooks.SubscriptionStore

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// LoadConfig resolves defaults, the process environment and runtime
// overrides into a validated config.
func LoadConfig(ctx context.Context, runtime Config) (Config, error) {
	return core.ResolveConfig(ctx,
		core.NewCfgxConfigProvider(core.EnvConfigLoader{}),
		core.GoOptionsResolver{},
		runtime,
	)
}

var _ CommandQueryService = (*Bridge)(nil)
