package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-wabridge/session"
	"github.com/goliatone/go-wabridge/webhooks"
)

type SessionService interface {
	CreateSession(ctx context.Context, name string) (session.Snapshot, error)
	SendMessage(ctx context.Context, to string, body string, name string) (session.SendResult, error)
	Disconnect(ctx context.Context, name string) (session.DisconnectResult, error)
}

type WebhookService interface {
	SetWebhook(
		ctx context.Context,
		url string,
		events []string,
		opts ...webhooks.SubscriptionOption,
	) (webhooks.SetWebhookResult, error)
	RemoveWebhook(ctx context.Context, url string) (webhooks.RemoveWebhookResult, error)
	ProcessRetryQueue(ctx context.Context) (webhooks.SweepReport, error)
}

type MutatingService interface {
	SessionService
	WebhookService
}

type CreateSessionCommand struct {
	service SessionService
}

func NewCreateSessionCommand(service SessionService) *CreateSessionCommand {
	return &CreateSessionCommand{service: service}
}

func (c *CreateSessionCommand) Execute(ctx context.Context, msg CreateSessionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: session service is required")
	}
	out, err := c.service.CreateSession(ctx, msg.Session)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SendMessageCommand struct {
	service SessionService
}

func NewSendMessageCommand(service SessionService) *SendMessageCommand {
	return &SendMessageCommand{service: service}
}

func (c *SendMessageCommand) Execute(ctx context.Context, msg SendMessageMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: session service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.SendMessage(ctx, msg.To, msg.Body, msg.Session)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DisconnectSessionCommand struct {
	service SessionService
}

func NewDisconnectSessionCommand(service SessionService) *DisconnectSessionCommand {
	return &DisconnectSessionCommand{service: service}
}

func (c *DisconnectSessionCommand) Execute(ctx context.Context, msg DisconnectSessionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: session service is required")
	}
	out, err := c.service.Disconnect(ctx, msg.Session)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SetWebhookCommand struct {
	service WebhookService
}

func NewSetWebhookCommand(service WebhookService) *SetWebhookCommand {
	return &SetWebhookCommand{service: service}
}

func (c *SetWebhookCommand) Execute(ctx context.Context, msg SetWebhookMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: webhook service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	opts := []webhooks.SubscriptionOption{webhooks.WithSecret(msg.Secret)}
	if msg.MaxRetries != nil {
		opts = append(opts, webhooks.WithMaxRetries(*msg.MaxRetries))
	}
	if msg.Timeout > 0 {
		opts = append(opts, webhooks.WithTimeout(msg.Timeout))
	}
	out, err := c.service.SetWebhook(ctx, msg.URL, msg.Events, opts...)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RemoveWebhookCommand struct {
	service WebhookService
}

func NewRemoveWebhookCommand(service WebhookService) *RemoveWebhookCommand {
	return &RemoveWebhookCommand{service: service}
}

func (c *RemoveWebhookCommand) Execute(ctx context.Context, msg RemoveWebhookMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: webhook service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.RemoveWebhook(ctx, msg.URL)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ProcessRetryQueueCommand struct {
	service WebhookService
}

func NewProcessRetryQueueCommand(service WebhookService) *ProcessRetryQueueCommand {
	return &ProcessRetryQueueCommand{service: service}
}

func (c *ProcessRetryQueueCommand) Execute(ctx context.Context, _ ProcessRetryQueueMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: webhook service is required")
	}
	out, err := c.service.ProcessRetryQueue(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
