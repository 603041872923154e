package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-wabridge/core"
	"github.com/goliatone/go-wabridge/ratelimit"
	"github.com/goliatone/go-wabridge/transport"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	HeaderSecret    = "X-Webhook-Secret"
	HeaderEvent     = "X-Webhook-Event"
	HeaderDelivery  = "X-Webhook-Delivery"
	HeaderSignature = "X-Webhook-Signature"

	webhookTestMessage = "Webhook configured successfully"
)

// Payload is the JSON body posted to subscribers.
type Payload struct {
	Event     string         `json:"event"`
	Data      map[string]any `json:"data"`
	Timestamp string         `json:"timestamp"`
	Source    string         `json:"source"`
}

// RetryEntry is a failed delivery parked on its URL's queue.
type RetryEntry struct {
	ID           string
	Payload      Payload
	EnqueuedAt   time.Time
	AttemptCount int
}

type DeliveryResult struct {
	URL        string
	DeliveryID string
	Event      string
	Delivered  bool
	StatusCode int
	Queued     bool
	Throttled  bool
	Err        error
}

type SetWebhookResult struct {
	Subscription Subscription
	TestDelivery DeliveryResult
}

type RemoveWebhookResult struct {
	URL     string
	Removed bool
}

type DispatchReport struct {
	Event      string
	Deliveries []DeliveryResult
}

func (r DispatchReport) Delivered() int {
	count := 0
	for _, delivery := range r.Deliveries {
		if delivery.Delivered {
			count++
		}
	}
	return count
}

func (r DispatchReport) Failed() int {
	return len(r.Deliveries) - r.Delivered()
}

type SweepReport struct {
	Attempted     int
	Delivered     int
	Failed        int
	Evicted       int
	DroppedQueues int
	Deferred      int
}

func (r *SweepReport) add(other SweepReport) {
	r.Attempted += other.Attempted
	r.Delivered += other.Delivered
	r.Failed += other.Failed
	r.Evicted += other.Evicted
	r.DroppedQueues += other.DroppedQueues
	r.Deferred += other.Deferred
}

type Config struct {
	Timeout     time.Duration
	MaxRetries  int
	RetryWindow time.Duration
	Secret      string
	UserAgent   string
	Source      string
}

// ConfigFromCore extracts the engine settings from the bridge config.
func ConfigFromCore(cfg core.WebhookConfig) Config {
	return Config{
		Timeout:     cfg.Timeout,
		MaxRetries:  cfg.MaxRetries,
		RetryWindow: cfg.RetryWindow,
		Secret:      cfg.Secret,
		UserAgent:   cfg.UserAgent,
		Source:      cfg.Source,
	}
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = core.DefaultWebhookTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = core.DefaultWebhookMaxRetries
	}
	if c.RetryWindow <= 0 {
		c.RetryWindow = core.DefaultRetryWindow
	}
	if strings.TrimSpace(c.UserAgent) == "" {
		c.UserAgent = core.DefaultWebhookUserAgent
	}
	if strings.TrimSpace(c.Source) == "" {
		c.Source = core.DefaultWebhookSource
	}
	return c
}

type retryQueue struct {
	mu      sync.Mutex
	entries []*RetryEntry
}

// Engine owns webhook subscriptions and their retry queues.
type Engine struct {
	config   Config
	store    SubscriptionStore
	sender   transport.Sender
	observer *core.Observer
	clock    core.Clock
	newID    func() string
	throttle Throttle

	queuesMu sync.Mutex
	queues   map[string]*retryQueue

	sweepMu sync.Mutex
}

func NewEngine(cfg Config, opts ...Option) *Engine {
	builder := engineBuilder{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}
	if builder.store == nil {
		builder.store = NewMemorySubscriptionStore()
	}
	if builder.sender == nil {
		builder.sender = transport.NewRESTAdapter(nil)
	}
	if builder.newID == nil {
		builder.newID = uuid.NewString
	}
	_, logger := core.ResolveLogger(loggerName, builder.loggerProvider, builder.logger)
	return &Engine{
		config:   cfg.withDefaults(),
		store:    builder.store,
		sender:   builder.sender,
		observer: core.NewObserver(loggerName, logger, builder.metrics, builder.clock),
		clock:    builder.clock,
		newID:    builder.newID,
		throttle: builder.throttle,
		queues:   map[string]*retryQueue{},
	}
}

// SetWebhook registers or replaces the subscription for rawURL and sends a
// webhook_test probe. A failed probe is reported in the result and queued
// for retry; it does not undo the registration.
func (e *Engine) SetWebhook(
	ctx context.Context,
	rawURL string,
	events []string,
	opts ...SubscriptionOption,
) (result SetWebhookResult, err error) {
	startedAt := e.clock.Now()
	rawURL = strings.TrimSpace(rawURL)
	defer func() {
		e.observer.ObserveOperation(ctx, startedAt, "set_webhook", err, map[string]any{
			"url":       rawURL,
			"events":    strings.Join(result.Subscription.Events, ","),
			"delivered": result.TestDelivery.Delivered,
		})
	}()

	if _, parseErr := core.ParseWebhookURL(rawURL); parseErr != nil {
		return SetWebhookResult{}, core.NewInvalidURLError(rawURL, parseErr)
	}
	if len(events) == 0 {
		events = []string{core.EventMessage.String()}
	}
	filter, parseErr := core.ParseEventFilter(events)
	if parseErr != nil {
		return SetWebhookResult{}, core.NewBadInputError("events", parseErr.Error())
	}
	if filter.Empty() {
		return SetWebhookResult{}, core.NewBadInputError("events", "at least one event kind is required")
	}

	now := e.clock.Now()
	sub := Subscription{
		URL:        rawURL,
		Events:     filter.Strings(),
		Secret:     e.config.Secret,
		Timeout:    e.config.Timeout,
		MaxRetries: e.config.MaxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&sub)
		}
	}

	stored, err := e.store.Upsert(ctx, sub)
	if err != nil {
		return SetWebhookResult{}, err
	}

	payload := e.newPayload(core.WebhookTestEvent, map[string]any{"message": webhookTestMessage})
	delivery := e.attempt(ctx, stored, payload, e.newID(), true)
	return SetWebhookResult{Subscription: stored, TestDelivery: delivery}, nil
}

// RemoveWebhook deletes the subscription. Its queued retries are dropped by
// the next sweep.
func (e *Engine) RemoveWebhook(ctx context.Context, rawURL string) (RemoveWebhookResult, error) {
	startedAt := e.clock.Now()
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return RemoveWebhookResult{}, core.NewBadInputError("url", "url is required")
	}
	removed, err := e.store.Delete(ctx, rawURL)
	e.observer.ObserveOperation(ctx, startedAt, "remove_webhook", err, map[string]any{
		"url":     rawURL,
		"removed": removed,
	})
	if err != nil {
		return RemoveWebhookResult{}, err
	}
	return RemoveWebhookResult{URL: rawURL, Removed: removed}, nil
}

func (e *Engine) ListWebhooks(ctx context.Context) ([]Subscription, error) {
	return e.store.List(ctx)
}

// Dispatch delivers one event to every matching subscription concurrently
// and returns once every attempt has finished. Failed attempts are queued.
func (e *Engine) Dispatch(ctx context.Context, kind core.EventKind, data map[string]any) (DispatchReport, error) {
	if !kind.Valid() {
		return DispatchReport{}, core.NewBadInputError("event", fmt.Sprintf("event kind %d is not valid", kind))
	}
	subs, err := e.store.List(ctx)
	if err != nil {
		return DispatchReport{}, err
	}

	matching := make([]Subscription, 0, len(subs))
	for _, sub := range subs {
		if sub.Filter().Matches(kind) {
			matching = append(matching, sub)
		}
	}
	report := DispatchReport{Event: kind.String(), Deliveries: make([]DeliveryResult, len(matching))}
	if len(matching) == 0 {
		return report, nil
	}

	payload := e.newPayload(kind.String(), data)
	var group errgroup.Group
	for index, sub := range matching {
		group.Go(func() error {
			report.Deliveries[index] = e.attempt(ctx, sub, payload, e.newID(), true)
			return nil
		})
	}
	_ = group.Wait()

	e.observer.IncCounter(ctx, "dispatch.total", 1, map[string]string{
		"event":  kind.String(),
		"failed": fmt.Sprint(report.Failed() > 0),
	})
	return report, nil
}

// ProcessRetryQueue runs one sweep over every retry queue. Queues of
// different URLs are processed in parallel; entries of one URL in order.
func (e *Engine) ProcessRetryQueue(ctx context.Context) (SweepReport, error) {
	e.sweepMu.Lock()
	defer e.sweepMu.Unlock()

	startedAt := e.clock.Now()
	urls := e.queueURLs()
	reports := make([]SweepReport, len(urls))
	var group errgroup.Group
	for index, url := range urls {
		group.Go(func() error {
			reports[index] = e.sweepQueue(ctx, url)
			return nil
		})
	}
	_ = group.Wait()

	var total SweepReport
	for _, report := range reports {
		total.add(report)
	}
	e.observer.ObserveOperation(ctx, startedAt, "process_retry_queue", nil, map[string]any{
		"queues":         len(urls),
		"attempted":      total.Attempted,
		"delivered":      total.Delivered,
		"failed":         total.Failed,
		"evicted":        total.Evicted,
		"dropped_queues": total.DroppedQueues,
		"deferred":       total.Deferred,
	})
	return total, nil
}

// DeliveryTimeout returns the longest receiver timeout across the
// engine default and every subscription.
func (e *Engine) DeliveryTimeout(ctx context.Context) time.Duration {
	longest := e.config.Timeout
	subs, err := e.store.List(ctx)
	if err != nil {
		return longest
	}
	for _, sub := range subs {
		longest = max(longest, sub.Timeout)
	}
	return longest
}

// PendingRetries returns the number of queued entries for url.
func (e *Engine) PendingRetries(url string) int {
	e.queuesMu.Lock()
	queue, ok := e.queues[strings.TrimSpace(url)]
	e.queuesMu.Unlock()
	if !ok {
		return 0
	}
	queue.mu.Lock()
	defer queue.mu.Unlock()
	return len(queue.entries)
}

// RetryQueueURLs lists the URLs that currently have a retry queue.
func (e *Engine) RetryQueueURLs() []string {
	return e.queueURLs()
}

func (e *Engine) sweepQueue(ctx context.Context, url string) SweepReport {
	var report SweepReport
	orphans := e.queuedEntries(url)
	sub, ok, err := e.store.Get(ctx, url)
	if err != nil {
		e.observer.Warn(ctx, "retry sweep could not load subscription", map[string]any{
			"url":   url,
			"error": err.Error(),
		})
		return report
	}
	if !ok {
		evicted, dropped := e.dropEntries(url, orphans)
		report.Evicted += evicted
		if dropped {
			report.DroppedQueues++
		}
		return report
	}

	e.queuesMu.Lock()
	queue, exists := e.queues[url]
	e.queuesMu.Unlock()
	if !exists {
		return report
	}

	queue.mu.Lock()
	now := e.clock.Now()
	selected := make([]RetryEntry, 0, len(queue.entries))
	for _, entry := range queue.entries {
		if e.eligible(*entry, sub, now) {
			selected = append(selected, *entry)
		}
	}
	queue.mu.Unlock()

	outcomes := make(map[string]bool, len(selected))
	for index, entry := range selected {
		result := e.attempt(ctx, sub, entry.Payload, entry.ID, false)
		if result.Throttled {
			report.Deferred += len(selected) - index
			break
		}
		outcomes[entry.ID] = result.Delivered
		report.Attempted++
		if result.Delivered {
			report.Delivered++
		} else {
			report.Failed++
		}
	}

	e.queuesMu.Lock()
	defer e.queuesMu.Unlock()
	queue.mu.Lock()
	defer queue.mu.Unlock()

	now = e.clock.Now()
	kept := queue.entries[:0]
	for _, entry := range queue.entries {
		if delivered, attempted := outcomes[entry.ID]; attempted {
			if delivered {
				continue
			}
			entry.AttemptCount++
		}
		if !e.eligible(*entry, sub, now) {
			report.Evicted++
			continue
		}
		kept = append(kept, entry)
	}
	for index := len(kept); index < len(queue.entries); index++ {
		queue.entries[index] = nil
	}
	queue.entries = kept
	if len(queue.entries) == 0 && e.queues[url] == queue {
		delete(e.queues, url)
	}
	return report
}

// queuedEntries snapshots the entries queued for url.
func (e *Engine) queuedEntries(url string) map[*RetryEntry]struct{} {
	e.queuesMu.Lock()
	defer e.queuesMu.Unlock()
	queue, ok := e.queues[url]
	if !ok {
		return nil
	}
	queue.mu.Lock()
	defer queue.mu.Unlock()
	out := make(map[*RetryEntry]struct{}, len(queue.entries))
	for _, entry := range queue.entries {
		out[entry] = struct{}{}
	}
	return out
}

// dropEntries removes the given entries of a removed subscription. Entries
// queued since, by a new registration of the same URL, stay. The queue is
// deleted once empty.
func (e *Engine) dropEntries(url string, entries map[*RetryEntry]struct{}) (int, bool) {
	e.queuesMu.Lock()
	defer e.queuesMu.Unlock()
	queue, ok := e.queues[url]
	if !ok {
		return 0, false
	}
	queue.mu.Lock()
	defer queue.mu.Unlock()

	evicted := 0
	kept := queue.entries[:0]
	for _, entry := range queue.entries {
		if _, orphaned := entries[entry]; orphaned {
			evicted++
			continue
		}
		kept = append(kept, entry)
	}
	for index := len(kept); index < len(queue.entries); index++ {
		queue.entries[index] = nil
	}
	queue.entries = kept
	if len(kept) > 0 {
		return evicted, false
	}
	delete(e.queues, url)
	return evicted, true
}

func (e *Engine) eligible(entry RetryEntry, sub Subscription, now time.Time) bool {
	return entry.AttemptCount < sub.MaxRetries && now.Sub(entry.EnqueuedAt) < e.config.RetryWindow
}

// attempt posts payload to sub. With enqueueOnFailure a failed attempt is
// parked on the URL's retry queue.
func (e *Engine) attempt(
	ctx context.Context,
	sub Subscription,
	payload Payload,
	deliveryID string,
	enqueueOnFailure bool,
) DeliveryResult {
	startedAt := e.clock.Now()
	result := DeliveryResult{URL: sub.URL, DeliveryID: deliveryID, Event: payload.Event}

	var statusCode int
	err := e.beforeDelivery(ctx, sub.URL)
	if err != nil {
		result.Throttled = true
	} else {
		var headers map[string]string
		statusCode, headers, err = e.post(ctx, sub, payload, deliveryID)
		e.afterDelivery(ctx, sub.URL, statusCode, headers)
	}
	result.StatusCode = statusCode
	if err == nil {
		result.Delivered = true
	} else {
		result.Err = core.NewDeliveryFailedError(sub.URL, err)
		if enqueueOnFailure {
			e.enqueue(sub.URL, RetryEntry{
				ID:         deliveryID,
				Payload:    payload,
				EnqueuedAt: e.clock.Now(),
			})
			result.Queued = true
		}
	}

	e.observer.ObserveOperation(ctx, startedAt, "deliver", result.Err, map[string]any{
		"url":         sub.URL,
		"event":       payload.Event,
		"delivery_id": deliveryID,
		"status_code": statusCode,
		"queued":      result.Queued,
		"throttled":   result.Throttled,
	})
	return result
}

// beforeDelivery returns an error only when the receiver is backing off.
func (e *Engine) beforeDelivery(ctx context.Context, url string) error {
	if e.throttle == nil {
		return nil
	}
	err := e.throttle.BeforeDelivery(ctx, url)
	if err == nil || ratelimit.IsThrottled(err) {
		return err
	}
	e.observer.Warn(ctx, "receiver throttle lookup failed", map[string]any{
		"url":   url,
		"error": err.Error(),
	})
	return nil
}

func (e *Engine) afterDelivery(ctx context.Context, url string, statusCode int, headers map[string]string) {
	if e.throttle == nil {
		return
	}
	if err := e.throttle.AfterDelivery(ctx, url, statusCode, headers); err != nil {
		e.observer.Warn(ctx, "receiver throttle update failed", map[string]any{
			"url":   url,
			"error": err.Error(),
		})
	}
}

func (e *Engine) post(ctx context.Context, sub Subscription, payload Payload, deliveryID string) (int, map[string]string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("webhooks: encode payload: %w", err)
	}
	headers := map[string]string{
		"Content-Type": "application/json",
		"User-Agent":   e.config.UserAgent,
		HeaderEvent:    payload.Event,
		HeaderDelivery: deliveryID,
	}
	if sub.Secret != "" {
		headers[HeaderSecret] = sub.Secret
		headers[HeaderSignature] = Sign(sub.Secret, body)
	}
	timeout := sub.Timeout
	if timeout <= 0 {
		timeout = e.config.Timeout
	}

	res, err := e.sender.Do(ctx, transport.Request{
		Method:  http.MethodPost,
		URL:     sub.URL,
		Headers: headers,
		Body:    body,
		Timeout: timeout,
	})
	if err != nil {
		return 0, nil, err
	}
	if !res.Success() {
		return res.StatusCode, res.Headers, fmt.Errorf("webhooks: endpoint responded with status %d", res.StatusCode)
	}
	return res.StatusCode, res.Headers, nil
}

func (e *Engine) enqueue(url string, entry RetryEntry) {
	e.queuesMu.Lock()
	defer e.queuesMu.Unlock()
	queue, ok := e.queues[url]
	if !ok {
		queue = &retryQueue{}
		e.queues[url] = queue
	}
	queue.mu.Lock()
	queue.entries = append(queue.entries, &entry)
	queue.mu.Unlock()
}

func (e *Engine) queueURLs() []string {
	e.queuesMu.Lock()
	defer e.queuesMu.Unlock()
	urls := make([]string, 0, len(e.queues))
	for url := range e.queues {
		urls = append(urls, url)
	}
	return urls
}

func (e *Engine) newPayload(event string, data map[string]any) Payload {
	if data == nil {
		data = map[string]any{}
	}
	return Payload{
		Event:     event,
		Data:      data,
		Timestamp: e.clock.Now().UTC().Format(time.RFC3339Nano),
		Source:    e.config.Source,
	}
}
