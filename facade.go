package wabridge

import (
	"fmt"

	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-wabridge/adapters/gocommand"
	bridgecommand "github.com/goliatone/go-wabridge/command"
	"github.com/goliatone/go-wabridge/core"
	bridgequery "github.com/goliatone/go-wabridge/query"
	"github.com/goliatone/go-wabridge/session"
	"github.com/goliatone/go-wabridge/webhooks"
)

type CommandQueryService interface {
	bridgecommand.MutatingService
	bridgequery.SessionReader
	bridgequery.DirectoryReader
	bridgequery.WebhookReader
}

type Commands struct {
	CreateSession     *bridgecommand.CreateSessionCommand
	SendMessage       *bridgecommand.SendMessageCommand
	DisconnectSession *bridgecommand.DisconnectSessionCommand
	SetWebhook        *bridgecommand.SetWebhookCommand
	RemoveWebhook     *bridgecommand.RemoveWebhookCommand
	ProcessRetryQueue *bridgecommand.ProcessRetryQueueCommand
}

type Queries struct {
	GetQRCode     *bridgequery.GetQRCodeQuery
	GetStatus     *bridgequery.GetStatusQuery
	ListSessions  *bridgequery.ListSessionsQuery
	GetContacts   *bridgequery.GetContactsQuery
	GetChats      *bridgequery.GetChatsQuery
	FetchMessages *bridgequery.FetchMessagesQuery
	ListWebhooks  *bridgequery.ListWebhooksQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("wabridge: command/query service is required")
	}
	facade := &Facade{service: service}
	facade.commands = Commands{
		CreateSession:     bridgecommand.NewCreateSessionCommand(service),
		SendMessage:       bridgecommand.NewSendMessageCommand(service),
		DisconnectSession: bridgecommand.NewDisconnectSessionCommand(service),
		SetWebhook:        bridgecommand.NewSetWebhookCommand(service),
		RemoveWebhook:     bridgecommand.NewRemoveWebhookCommand(service),
		ProcessRetryQueue: bridgecommand.NewProcessRetryQueueCommand(service),
	}
	facade.queries = Queries{
		GetQRCode:     bridgequery.NewGetQRCodeQuery(service),
		GetStatus:     bridgequery.NewGetStatusQuery(service),
		ListSessions:  bridgequery.NewListSessionsQuery(service),
		GetContacts:   bridgequery.NewGetContactsQuery(service),
		GetChats:      bridgequery.NewGetChatsQuery(service),
		FetchMessages: bridgequery.NewFetchMessagesQuery(service),
		ListWebhooks:  bridgequery.NewListWebhooksQuery(service),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

// Register adds every command and query to the registry and subscribes
// them on the global dispatcher. Unsubscribe the returned set on shutdown.
func (f *Facade) Register(adapter *gocommand.RegistryAdapter) (*gocommand.Subscriptions, error) {
	if f == nil {
		return nil, fmt.Errorf("wabridge: facade is nil")
	}
	subs := &gocommand.Subscriptions{}
	steps := []func() error{
		func() error {
			return track(subs)(gocommand.RegisterAndSubscribe[bridgecommand.CreateSessionMessage](adapter, f.commands.CreateSession))
		},
		func() error {
			return track(subs)(gocommand.RegisterAndSubscribe[bridgecommand.SendMessageMessage](adapter, f.commands.SendMessage))
		},
		func() error {
			return track(subs)(gocommand.RegisterAndSubscribe[bridgecommand.DisconnectSessionMessage](adapter, f.commands.DisconnectSession))
		},
		func() error {
			return track(subs)(gocommand.RegisterAndSubscribe[bridgecommand.SetWebhookMessage](adapter, f.commands.SetWebhook))
		},
		func() error {
			return track(subs)(gocommand.RegisterAndSubscribe[bridgecommand.RemoveWebhookMessage](adapter, f.commands.RemoveWebhook))
		},
		func() error {
			return track(subs)(gocommand.RegisterAndSubscribe[bridgecommand.ProcessRetryQueueMessage](adapter, f.commands.ProcessRetryQueue))
		},
		func() error {
			return track(subs)(gocommand.RegisterAndSubscribeQuery[bridgequery.GetQRCodeMessage, session.QRResult](adapter, f.queries.GetQRCode))
		},
		func() error {
			return track(subs)(gocommand.RegisterAndSubscribeQuery[bridgequery.GetStatusMessage, session.Snapshot](adapter, f.queries.GetStatus))
		},
		func() error {
			return track(subs)(gocommand.RegisterAndSubscribeQuery[bridgequery.ListSessionsMessage, []session.Snapshot](adapter, f.queries.ListSessions))
		},
		func() error {
			return track(subs)(gocommand.RegisterAndSubscribeQuery[bridgequery.GetContactsMessage, []session.Contact](adapter, f.queries.GetContacts))
		},
		func() error {
			return track(subs)(gocommand.RegisterAndSubscribeQuery[bridgequery.GetChatsMessage, []session.Chat](adapter, f.queries.GetChats))
		},
		func() error {
			return track(subs)(gocommand.RegisterAndSubscribeQuery[bridgequery.FetchMessagesMessage, []core.MessageRecord](adapter, f.queries.FetchMessages))
		},
		func() error {
			return track(subs)(gocommand.RegisterAndSubscribeQuery[bridgequery.ListWebhooksMessage, []webhooks.Subscription](adapter, f.queries.ListWebhooks))
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			subs.Unsubscribe()
			return nil, err
		}
	}
	return subs, nil
}

func track(subs *gocommand.Subscriptions) func(subscription commanddispatcher.Subscription, err error) error {
	return func(subscription commanddispatcher.Subscription, err error) error {
		if err != nil {
			return err
		}
		subs.Add(subscription)
		return nil
	}
}
