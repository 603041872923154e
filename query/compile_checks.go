package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-wabridge/core"
	"github.com/goliatone/go-wabridge/session"
	"github.com/goliatone/go-wabridge/webhooks"
)

var (
	_ gocmd.Querier[GetQRCodeMessage, session.QRResult]           = (*GetQRCodeQuery)(nil)
	_ gocmd.Querier[GetStatusMessage, session.Snapshot]           = (*GetStatusQuery)(nil)
	_ gocmd.Querier[ListSessionsMessage, []session.Snapshot]      = (*ListSessionsQuery)(nil)
	_ gocmd.Querier[GetContactsMessage, []session.Contact]        = (*GetContactsQuery)(nil)
	_ gocmd.Querier[GetChatsMessage, []session.Chat]              = (*GetChatsQuery)(nil)
	_ gocmd.Querier[FetchMessagesMessage, []core.MessageRecord]   = (*FetchMessagesQuery)(nil)
	_ gocmd.Querier[ListWebhooksMessage, []webhooks.Subscription] = (*ListWebhooksQuery)(nil)
)
