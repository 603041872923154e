package webhooks

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-wabridge/core"
)

// Subscription is one registered webhook endpoint, keyed by URL.
type Subscription struct {
	URL        string
	Events     []string
	Secret     string
	Timeout    time.Duration
	MaxRetries int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Filter returns the event filter of the subscription. Events are validated
// on registration, unknown names are ignored here.
func (s Subscription) Filter() core.EventFilter {
	filter, err := core.ParseEventFilter(s.Events)
	if err != nil {
		kinds := make([]core.EventKind, 0, len(s.Events))
		for _, name := range s.Events {
			if kind, parseErr := core.ParseEventKind(name); parseErr == nil {
				kinds = append(kinds, kind)
			}
		}
		return core.NewEventFilter(kinds...)
	}
	return filter
}

func (s Subscription) clone() Subscription {
	s.Events = append([]string(nil), s.Events...)
	return s
}

type SubscriptionStore interface {
	Upsert(ctx context.Context, sub Subscription) (Subscription, error)
	Delete(ctx context.Context, url string) (bool, error)
	Get(ctx context.Context, url string) (Subscription, bool, error)
	List(ctx context.Context) ([]Subscription, error)
}

type MemorySubscriptionStore struct {
	mu   sync.RWMutex
	subs map[string]Subscription
}

func NewMemorySubscriptionStore() *MemorySubscriptionStore {
	return &MemorySubscriptionStore{subs: map[string]Subscription{}}
}

func (s *MemorySubscriptionStore) Upsert(_ context.Context, sub Subscription) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.subs[sub.URL]; ok && !existing.CreatedAt.IsZero() {
		sub.CreatedAt = existing.CreatedAt
	}
	s.subs[sub.URL] = sub.clone()
	return sub.clone(), nil
}

func (s *MemorySubscriptionStore) Delete(_ context.Context, url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	url = strings.TrimSpace(url)
	if _, ok := s.subs[url]; !ok {
		return false, nil
	}
	delete(s.subs, url)
	return true, nil
}

func (s *MemorySubscriptionStore) Get(_ context.Context, url string) (Subscription, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subs[strings.TrimSpace(url)]
	if !ok {
		return Subscription{}, false, nil
	}
	return sub.clone(), true, nil
}

func (s *MemorySubscriptionStore) List(context.Context) ([]Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, sub.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out, nil
}

var _ SubscriptionStore = (*MemorySubscriptionStore)(nil)
