// Package session owns the registry of messaging sessions and drives each
// session's state machine from adapter callbacks:
//
//	initializing -> qr_pending -> ready
//	qr_pending | ready -> disconnected
//
// authenticated is a notification only and leaves the state unchanged.
// A session is removed from the registry only by Disconnect.
package session
