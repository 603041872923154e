package query

import (
	"context"

	"github.com/goliatone/go-wabridge/core"
	"github.com/goliatone/go-wabridge/session"
	"github.com/goliatone/go-wabridge/webhooks"
)

type SessionReader interface {
	GetQRCode(ctx context.Context, name string) (session.QRResult, error)
	GetStatus(ctx context.Context, name string) (session.Snapshot, error)
	ListSessions(ctx context.Context) ([]session.Snapshot, error)
}

type DirectoryReader interface {
	GetContacts(ctx context.Context, name string) ([]session.Contact, error)
	GetChats(ctx context.Context, name string) ([]session.Chat, error)
	FetchMessages(ctx context.Context, chatID string, limit int, name string) ([]core.MessageRecord, error)
}

type WebhookReader interface {
	ListWebhooks(ctx context.Context) ([]webhooks.Subscription, error)
}

type GetQRCodeQuery struct {
	reader SessionReader
}

func NewGetQRCodeQuery(reader SessionReader) *GetQRCodeQuery {
	return &GetQRCodeQuery{reader: reader}
}

func (q *GetQRCodeQuery) Query(ctx context.Context, msg GetQRCodeMessage) (session.QRResult, error) {
	if q == nil || q.reader == nil {
		return session.QRResult{}, queryDependencyError("query: session reader is required")
	}
	return q.reader.GetQRCode(ctx, msg.Session)
}

type GetStatusQuery struct {
	reader SessionReader
}

func NewGetStatusQuery(reader SessionReader) *GetStatusQuery {
	return &GetStatusQuery{reader: reader}
}

func (q *GetStatusQuery) Query(ctx context.Context, msg GetStatusMessage) (session.Snapshot, error) {
	if q == nil || q.reader == nil {
		return session.Snapshot{}, queryDependencyError("query: session reader is required")
	}
	return q.reader.GetStatus(ctx, msg.Session)
}

type ListSessionsQuery struct {
	reader SessionReader
}

func NewListSessionsQuery(reader SessionReader) *ListSessionsQuery {
	return &ListSessionsQuery{reader: reader}
}

func (q *ListSessionsQuery) Query(ctx context.Context, _ ListSessionsMessage) ([]session.Snapshot, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: session reader is required")
	}
	return q.reader.ListSessions(ctx)
}

type GetContactsQuery struct {
	reader DirectoryReader
}

func NewGetContactsQuery(reader DirectoryReader) *GetContactsQuery {
	return &GetContactsQuery{reader: reader}
}

func (q *GetContactsQuery) Query(ctx context.Context, msg GetContactsMessage) ([]session.Contact, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: directory reader is required")
	}
	return q.reader.GetContacts(ctx, msg.Session)
}

type GetChatsQuery struct {
	reader DirectoryReader
}

func NewGetChatsQuery(reader DirectoryReader) *GetChatsQuery {
	return &GetChatsQuery{reader: reader}
}

func (q *GetChatsQuery) Query(ctx context.Context, msg GetChatsMessage) ([]session.Chat, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: directory reader is required")
	}
	return q.reader.GetChats(ctx, msg.Session)
}

type FetchMessagesQuery struct {
	reader DirectoryReader
}

func NewFetchMessagesQuery(reader DirectoryReader) *FetchMessagesQuery {
	return &FetchMessagesQuery{reader: reader}
}

func (q *FetchMessagesQuery) Query(ctx context.Context, msg FetchMessagesMessage) ([]core.MessageRecord, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: directory reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return q.reader.FetchMessages(ctx, msg.ChatID, msg.Limit, msg.Session)
}

type ListWebhooksQuery struct {
	reader WebhookReader
}

func NewListWebhooksQuery(reader WebhookReader) *ListWebhooksQuery {
	return &ListWebhooksQuery{reader: reader}
}

func (q *ListWebhooksQuery) Query(ctx context.Context, _ ListWebhooksMessage) ([]webhooks.Subscription, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: webhook reader is required")
	}
	return q.reader.ListWebhooks(ctx)
}
