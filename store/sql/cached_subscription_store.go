package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-wabridge/webhooks"
)

const subscriptionCacheKeyPrefix = "wabridge::webhook_subscription::v1"

// CachedSubscriptionStore serves Get from a read-through cache. The retry
// sweep calls Get once per queued URL, so lookups dominate writes.
type CachedSubscriptionStore struct {
	base  webhooks.SubscriptionStore
	cache repositorycache.CacheService
}

type cachedSubscription struct {
	Subscription webhooks.Subscription
	Found        bool
}

func NewCachedSubscriptionStore(
	base webhooks.SubscriptionStore,
	cacheService repositorycache.CacheService,
) (*CachedSubscriptionStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base subscription store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: subscription cache service is required")
	}
	return &CachedSubscriptionStore{base: base, cache: cacheService}, nil
}

// SubscriptionCacheKey returns wabridge::webhook_subscription::v1::<url>
// with the url path escaped.
func SubscriptionCacheKey(rawURL string) string {
	return subscriptionCacheKeyPrefix + "::" + url.PathEscape(strings.TrimSpace(rawURL))
}

func (s *CachedSubscriptionStore) Get(ctx context.Context, rawURL string) (webhooks.Subscription, bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return webhooks.Subscription{}, false, fmt.Errorf("sqlstore: cached subscription store is not configured")
	}
	rawURL = strings.TrimSpace(rawURL)
	entry, err := repositorycache.GetOrFetch(ctx, s.cache, SubscriptionCacheKey(rawURL), func(ctx context.Context) (cachedSubscription, error) {
		sub, found, fetchErr := s.base.Get(ctx, rawURL)
		if fetchErr != nil {
			return cachedSubscription{}, fetchErr
		}
		return cachedSubscription{Subscription: sub, Found: found}, nil
	})
	if err != nil {
		return webhooks.Subscription{}, false, err
	}
	sub := entry.Subscription
	sub.Events = append([]string(nil), sub.Events...)
	return sub, entry.Found, nil
}

func (s *CachedSubscriptionStore) Upsert(ctx context.Context, sub webhooks.Subscription) (webhooks.Subscription, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return webhooks.Subscription{}, fmt.Errorf("sqlstore: cached subscription store is not configured")
	}
	out, err := s.base.Upsert(ctx, sub)
	if err != nil {
		return webhooks.Subscription{}, err
	}
	if err := s.cache.Delete(ctx, SubscriptionCacheKey(out.URL)); err != nil {
		return webhooks.Subscription{}, err
	}
	return out, nil
}

func (s *CachedSubscriptionStore) Delete(ctx context.Context, rawURL string) (bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return false, fmt.Errorf("sqlstore: cached subscription store is not configured")
	}
	removed, err := s.base.Delete(ctx, rawURL)
	if err != nil {
		return false, err
	}
	if err := s.cache.Delete(ctx, SubscriptionCacheKey(rawURL)); err != nil {
		return removed, err
	}
	return removed, nil
}

func (s *CachedSubscriptionStore) List(ctx context.Context) ([]webhooks.Subscription, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached subscription store is not configured")
	}
	return s.base.List(ctx)
}
