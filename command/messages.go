package command

import (
	"strings"
	"time"
)

const (
	TypeCreateSession     = "wabridge.command.session.create"
	TypeSendMessage       = "wabridge.command.session.send_message"
	TypeDisconnectSession = "wabridge.command.session.disconnect"
	TypeSetWebhook        = "wabridge.command.webhook.set"
	TypeRemoveWebhook     = "wabridge.command.webhook.remove"
	TypeProcessRetryQueue = "wabridge.command.webhook.process_retry_queue"
)

// CreateSessionMessage starts a session. An empty Session means the
// default session.
type CreateSessionMessage struct {
	Session string
}

func (CreateSessionMessage) Type() string { return TypeCreateSession }

type SendMessageMessage struct {
	Session string
	To      string
	Body    string
}

func (SendMessageMessage) Type() string { return TypeSendMessage }

func (m SendMessageMessage) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return commandValidationError("to", "recipient is required")
	}
	if strings.TrimSpace(m.Body) == "" {
		return commandValidationError("message", "message body is required")
	}
	return nil
}

type DisconnectSessionMessage struct {
	Session string
}

func (DisconnectSessionMessage) Type() string { return TypeDisconnectSession }

// SetWebhookMessage registers a subscription. A nil MaxRetries keeps the
// engine default.
type SetWebhookMessage struct {
	URL        string
	Events     []string
	Secret     string
	MaxRetries *int
	Timeout    time.Duration
}

func (SetWebhookMessage) Type() string { return TypeSetWebhook }

func (m SetWebhookMessage) Validate() error {
	if strings.TrimSpace(m.URL) == "" {
		return commandValidationError("url", "url is required")
	}
	if m.MaxRetries != nil && *m.MaxRetries < 0 {
		return commandValidationError("maxRetries", "max retries must be >= 0")
	}
	if m.Timeout < 0 {
		return commandValidationError("timeout", "timeout must be >= 0")
	}
	return nil
}

type RemoveWebhookMessage struct {
	URL string
}

func (RemoveWebhookMessage) Type() string { return TypeRemoveWebhook }

func (m RemoveWebhookMessage) Validate() error {
	if strings.TrimSpace(m.URL) == "" {
		return commandValidationError("url", "url is required")
	}
	return nil
}

type ProcessRetryQueueMessage struct{}

func (ProcessRetryQueueMessage) Type() string { return TypeProcessRetryQueue }
