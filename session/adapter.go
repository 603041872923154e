package session

import (
	"context"
	"time"
)

// Listener receives adapter callbacks for one session, in causal order.
type Listener interface {
	OnQR(code string)
	OnAuthenticated()
	OnReady()
	OnAuthFailure(reason string)
	OnDisconnected(reason string)
	OnMessage(msg RawMessage)
	OnMessageCreate(msg RawMessage)
}

// Adapter wraps the messaging-protocol client of one session. Initialize
// returns once the connection attempt is under way; progress is reported
// through the Listener.
type Adapter interface {
	Initialize(ctx context.Context) error
	SendMessage(ctx context.Context, chatID string, body string) (SendReceipt, error)
	GetContacts(ctx context.Context) ([]Contact, error)
	GetChats(ctx context.Context) ([]Chat, error)
	FetchMessages(ctx context.Context, chatID string, limit int) ([]RawMessage, error)
	Identity() (Identity, bool)
	Destroy(ctx context.Context) error
}

type AdapterFactory interface {
	NewAdapter(name string, listener Listener) (Adapter, error)
}

type AdapterFactoryFunc func(name string, listener Listener) (Adapter, error)

func (f AdapterFactoryFunc) NewAdapter(name string, listener Listener) (Adapter, error) {
	return f(name, listener)
}

// RawMessage is a message as reported by the adapter.
type RawMessage struct {
	ID          string
	Body        string
	Type        string
	Timestamp   time.Time
	From        string
	To          string
	FromMe      bool
	HasMedia    bool
	IsForwarded bool
}

type SendReceipt struct {
	MessageID string
	Timestamp time.Time
}

type Identity struct {
	ID       string `json:"wid"`
	PushName string `json:"pushname"`
	Platform string `json:"platform"`
}

type Contact struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Number      string `json:"number"`
	IsUser      bool   `json:"isUser"`
	IsGroup     bool   `json:"isGroup"`
	IsWAContact bool   `json:"isWAContact"`
}

type Chat struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IsGroup     bool   `json:"isGroup"`
	IsReadOnly  bool   `json:"isReadOnly"`
	UnreadCount int    `json:"unreadCount"`
	Timestamp   int64  `json:"timestamp"`
}
