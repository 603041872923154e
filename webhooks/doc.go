// Package webhooks contains the webhook registry and the outbound delivery
// engine.
//
// A delivery that fails is parked on the retry queue of its URL and is only
// re-attempted by a sweep:
// queued -> (attempt ok) removed | (attempt failed) attemptCount++ ->
// evicted once attemptCount reaches the subscription's maxRetries or the
// entry is older than the retry window. Queues of removed subscriptions are
// dropped by the next sweep.
package webhooks
