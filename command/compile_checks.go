package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[CreateSessionMessage]     = (*CreateSessionCommand)(nil)
	_ gocmd.Commander[SendMessageMessage]       = (*SendMessageCommand)(nil)
	_ gocmd.Commander[DisconnectSessionMessage] = (*DisconnectSessionCommand)(nil)
	_ gocmd.Commander[SetWebhookMessage]        = (*SetWebhookCommand)(nil)
	_ gocmd.Commander[RemoveWebhookMessage]     = (*RemoveWebhookCommand)(nil)
	_ gocmd.Commander[ProcessRetryQueueMessage] = (*ProcessRetryQueueCommand)(nil)
)
