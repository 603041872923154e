package query

import "strings"

const (
	TypeGetQRCode     = "wabridge.query.session.qr"
	TypeGetStatus     = "wabridge.query.session.status"
	TypeListSessions  = "wabridge.query.session.list"
	TypeGetContacts   = "wabridge.query.session.contacts"
	TypeGetChats      = "wabridge.query.session.chats"
	TypeFetchMessages = "wabridge.query.session.messages"
	TypeListWebhooks  = "wabridge.query.webhook.list"
)

// GetQRCodeMessage creates the session when it does not exist yet.
type GetQRCodeMessage struct {
	Session string
}

func (GetQRCodeMessage) Type() string { return TypeGetQRCode }

type GetStatusMessage struct {
	Session string
}

func (GetStatusMessage) Type() string { return TypeGetStatus }

type ListSessionsMessage struct{}

func (ListSessionsMessage) Type() string { return TypeListSessions }

type GetContactsMessage struct {
	Session string
}

func (GetContactsMessage) Type() string { return TypeGetContacts }

type GetChatsMessage struct {
	Session string
}

func (GetChatsMessage) Type() string { return TypeGetChats }

type FetchMessagesMessage struct {
	Session string
	ChatID  string
	Limit   int
}

func (FetchMessagesMessage) Type() string { return TypeFetchMessages }

func (m FetchMessagesMessage) Validate() error {
	if strings.TrimSpace(m.ChatID) == "" {
		return queryValidationError("chatId", "chat id is required")
	}
	if m.Limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	return nil
}

type ListWebhooksMessage struct{}

func (ListWebhooksMessage) Type() string { return TypeListWebhooks }
