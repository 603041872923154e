package core

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// EventKind enumerates the session events emitted by adapters.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventQR
	EventReady
	EventAuthenticated
	EventAuthFailure
	EventDisconnected
	EventMessage
	EventMessageCreate
)

// WebhookTestEvent is the event name of the probe sent on registration.
const WebhookTestEvent = "webhook_test"

var eventKindNames = map[EventKind]string{
	EventQR:            "qr",
	EventReady:         "ready",
	EventAuthenticated: "authenticated",
	EventAuthFailure:   "auth_failure",
	EventDisconnected:  "disconnected",
	EventMessage:       "message",
	EventMessageCreate: "message_create",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return "unknown"
}

func (k EventKind) Valid() bool {
	_, ok := eventKindNames[k]
	return ok
}

func ParseEventKind(value string) (EventKind, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	for kind, name := range eventKindNames {
		if name == value {
			return kind, nil
		}
	}
	return EventUnknown, fmt.Errorf("unknown event kind %q", value)
}

// AllEventKinds returns every valid kind in declaration order.
func AllEventKinds() []EventKind {
	return []EventKind{
		EventQR,
		EventReady,
		EventAuthenticated,
		EventAuthFailure,
		EventDisconnected,
		EventMessage,
		EventMessageCreate,
	}
}

// EventFilter is a set of event kinds or the wildcard.
type EventFilter struct {
	all   bool
	kinds map[EventKind]struct{}
}

func ParseEventFilter(values []string) (EventFilter, error) {
	filter := EventFilter{kinds: map[EventKind]struct{}{}}
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if value == RelayAllEvents {
			filter.all = true
			continue
		}
		kind, err := ParseEventKind(value)
		if err != nil {
			return EventFilter{}, err
		}
		filter.kinds[kind] = struct{}{}
	}
	return filter, nil
}

func NewEventFilter(kinds ...EventKind) EventFilter {
	filter := EventFilter{kinds: map[EventKind]struct{}{}}
	for _, kind := range kinds {
		if kind.Valid() {
			filter.kinds[kind] = struct{}{}
		}
	}
	return filter
}

func WildcardEventFilter() EventFilter {
	return EventFilter{all: true, kinds: map[EventKind]struct{}{}}
}

func (f EventFilter) Matches(kind EventKind) bool {
	if f.all {
		return kind.Valid()
	}
	_, ok := f.kinds[kind]
	return ok
}

func (f EventFilter) Wildcard() bool {
	return f.all
}

func (f EventFilter) Empty() bool {
	return !f.all && len(f.kinds) == 0
}

// Strings renders the filter as sorted event names, wildcard first.
func (f EventFilter) Strings() []string {
	out := make([]string, 0, len(f.kinds)+1)
	if f.all {
		out = append(out, RelayAllEvents)
	}
	names := make([]string, 0, len(f.kinds))
	for kind := range f.kinds {
		names = append(names, kind.String())
	}
	sort.Strings(names)
	return append(out, names...)
}

// MessageRecord is the canonical form of a chat message.
type MessageRecord struct {
	ID          string `json:"id"`
	Body        string `json:"body"`
	Kind        string `json:"type"`
	Timestamp   int64  `json:"timestamp"`
	From        string `json:"from"`
	To          string `json:"to"`
	IsOutgoing  bool   `json:"fromMe"`
	HasMedia    bool   `json:"hasMedia"`
	IsForwarded bool   `json:"isForwarded"`
}

// Event is one session notification routed to handlers.
type Event struct {
	Kind       EventKind
	Session    string
	QR         string
	Reason     string
	Message    *MessageRecord
	OccurredAt time.Time
}

// Data renders the event-specific fields of a webhook payload.
func (e Event) Data() map[string]any {
	data := map[string]any{
		"sessionName": e.Session,
		"timestamp":   e.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
	switch e.Kind {
	case EventQR:
		data["qr"] = e.QR
	case EventAuthFailure:
		data["message"] = e.Reason
	case EventDisconnected:
		data["reason"] = e.Reason
	case EventMessage, EventMessageCreate:
		if e.Message != nil {
			data["message"] = *e.Message
		}
	}
	return data
}
