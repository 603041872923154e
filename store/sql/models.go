package sqlstore

import (
	"strings"
	"time"

	"github.com/goliatone/go-wabridge/ratelimit"
	"github.com/goliatone/go-wabridge/webhooks"
	"github.com/uptrace/bun"
)

type webhookSubscriptionRecord struct {
	bun.BaseModel `bun:"table:wabridge_webhook_subscriptions,alias:wws"`

	ID         string    `bun:"id,pk"`
	URL        string    `bun:"url,notnull"`
	Events     []string  `bun:"events,type:jsonb,notnull"`
	Secret     string    `bun:"secret,notnull"`
	TimeoutMS  int64     `bun:"timeout_ms,notnull"`
	MaxRetries int       `bun:"max_retries,notnull"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newWebhookSubscriptionRecord(sub webhooks.Subscription, now time.Time) *webhookSubscriptionRecord {
	record := &webhookSubscriptionRecord{CreatedAt: now}
	record.apply(sub, now)
	return record
}

func (r *webhookSubscriptionRecord) apply(sub webhooks.Subscription, now time.Time) {
	r.URL = strings.TrimSpace(sub.URL)
	r.Events = append([]string{}, sub.Events...)
	r.Secret = sub.Secret
	r.TimeoutMS = sub.Timeout.Milliseconds()
	r.MaxRetries = sub.MaxRetries
	r.UpdatedAt = now
}

func (r *webhookSubscriptionRecord) toDomain() webhooks.Subscription {
	if r == nil {
		return webhooks.Subscription{}
	}
	return webhooks.Subscription{
		URL:        r.URL,
		Events:     append([]string(nil), r.Events...),
		Secret:     r.Secret,
		Timeout:    time.Duration(r.TimeoutMS) * time.Millisecond,
		MaxRetries: r.MaxRetries,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}

type receiverThrottleRecord struct {
	bun.BaseModel `bun:"table:wabridge_receiver_throttles,alias:wrt"`

	ID             string     `bun:"id,pk"`
	URL            string     `bun:"url,notnull"`
	Attempts       int        `bun:"attempts,notnull"`
	LastStatus     int        `bun:"last_status,notnull"`
	RetryAfterMS   *int64     `bun:"retry_after_ms,nullzero"`
	ThrottledUntil *time.Time `bun:"throttled_until,nullzero"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *receiverThrottleRecord) apply(state ratelimit.State) {
	r.URL = strings.TrimSpace(state.Key)
	r.Attempts = state.Attempts
	r.LastStatus = state.LastStatus
	r.RetryAfterMS = nil
	if state.RetryAfter != nil && *state.RetryAfter > 0 {
		ms := state.RetryAfter.Milliseconds()
		r.RetryAfterMS = &ms
	}
	r.ThrottledUntil = nil
	if state.ThrottledUntil != nil {
		until := state.ThrottledUntil.UTC()
		r.ThrottledUntil = &until
	}
	r.UpdatedAt = state.UpdatedAt.UTC()
}

func (r *receiverThrottleRecord) toDomain() ratelimit.State {
	if r == nil {
		return ratelimit.State{}
	}
	state := ratelimit.State{
		Key:        r.URL,
		Attempts:   r.Attempts,
		LastStatus: r.LastStatus,
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
	if r.RetryAfterMS != nil && *r.RetryAfterMS > 0 {
		value := time.Duration(*r.RetryAfterMS) * time.Millisecond
		state.RetryAfter = &value
	}
	if r.ThrottledUntil != nil {
		until := r.ThrottledUntil.UTC()
		state.ThrottledUntil = &until
	}
	return state
}
