package sqlstore

import (
	"github.com/goliatone/go-wabridge/ratelimit"
	"github.com/goliatone/go-wabridge/webhooks"
)

var (
	_ ratelimit.StateStore       = (*ReceiverThrottleStore)(nil)
	_ webhooks.SubscriptionStore = (*SubscriptionStore)(nil)
	_ webhooks.SubscriptionStore = (*CachedSubscriptionStore)(nil)
)
