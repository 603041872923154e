package query

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-wabridge/core"
	"github.com/goliatone/go-wabridge/session"
	"github.com/goliatone/go-wabridge/webhooks"
)

type stubReader struct {
	qrFn       func(ctx context.Context, name string) (session.QRResult, error)
	statusFn   func(ctx context.Context, name string) (session.Snapshot, error)
	messagesFn func(ctx context.Context, chatID string, limit int, name string) ([]core.MessageRecord, error)
	sessions   []session.Snapshot
	contacts   []session.Contact
	chats      []session.Chat
	hooks      []webhooks.Subscription
}

func (s stubReader) GetQRCode(ctx context.Context, name string) (session.QRResult, error) {
	return s.qrFn(ctx, name)
}

func (s stubReader) GetStatus(ctx context.Context, name string) (session.Snapshot, error) {
	return s.statusFn(ctx, name)
}

func (s stubReader) ListSessions(context.Context) ([]session.Snapshot, error) {
	return s.sessions, nil
}

func (s stubReader) GetContacts(context.Context, string) ([]session.Contact, error) {
	return s.contacts, nil
}

func (s stubReader) GetChats(context.Context, string) ([]session.Chat, error) {
	return s.chats, nil
}

func (s stubReader) FetchMessages(ctx context.Context, chatID string, limit int, name string) ([]core.MessageRecord, error) {
	return s.messagesFn(ctx, chatID, limit, name)
}

func (s stubReader) ListWebhooks(context.Context) ([]webhooks.Subscription, error) {
	return s.hooks, nil
}

func TestGetQRCodeQuery_QueryDelegates(t *testing.T) {
	reader := stubReader{
		qrFn: func(_ context.Context, name string) (session.QRResult, error) {
			if name != "default" {
				t.Fatalf("unexpected session %q", name)
			}
			return session.QRResult{Session: name, Kind: session.QRAvailable, QRCode: "2@abc"}, nil
		},
	}
	result, err := NewGetQRCodeQuery(reader).Query(context.Background(), GetQRCodeMessage{Session: "default"})
	if err != nil {
		t.Fatalf("query qr: %v", err)
	}
	if result.QRCode != "2@abc" || result.Kind != session.QRAvailable {
		t.Fatalf("unexpected qr result: %#v", result)
	}
}

func TestGetStatusQuery_PropagatesNotFound(t *testing.T) {
	reader := stubReader{
		statusFn: func(_ context.Context, name string) (session.Snapshot, error) {
			return session.Snapshot{}, core.NewSessionNotFoundError(name)
		},
	}
	_, err := NewGetStatusQuery(reader).Query(context.Background(), GetStatusMessage{Session: "ghost"})
	if !core.IsErrorCode(err, core.ErrorSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFetchMessagesQuery_ValidatesBeforeDelegating(t *testing.T) {
	reader := stubReader{
		messagesFn: func(_ context.Context, chatID string, limit int, name string) ([]core.MessageRecord, error) {
			if chatID != "1@c.us" || limit != 10 || name != "default" {
				t.Fatalf("unexpected fetch payload: %q %d %q", chatID, limit, name)
			}
			return []core.MessageRecord{{ID: "m1"}}, nil
		},
	}
	qry := NewFetchMessagesQuery(reader)
	if _, err := qry.Query(context.Background(), FetchMessagesMessage{Session: "default"}); err == nil {
		t.Fatalf("expected validation error for empty chat id")
	}
	messages, err := qry.Query(context.Background(), FetchMessagesMessage{Session: "default", ChatID: "1@c.us", Limit: 10})
	if err != nil {
		t.Fatalf("fetch messages: %v", err)
	}
	if len(messages) != 1 || messages[0].ID != "m1" {
		t.Fatalf("unexpected messages: %#v", messages)
	}
}

func TestListQueries_Delegate(t *testing.T) {
	reader := stubReader{
		sessions: []session.Snapshot{{Name: "default"}},
		contacts: []session.Contact{{ID: "1@c.us"}},
		chats:    []session.Chat{{ID: "1@c.us"}},
		hooks:    []webhooks.Subscription{{URL: "https://hooks.example/in"}},
	}
	sessions, err := NewListSessionsQuery(reader).Query(context.Background(), ListSessionsMessage{})
	if err != nil || len(sessions) != 1 {
		t.Fatalf("list sessions: %v %#v", err, sessions)
	}
	contacts, err := NewGetContactsQuery(reader).Query(context.Background(), GetContactsMessage{})
	if err != nil || len(contacts) != 1 {
		t.Fatalf("get contacts: %v %#v", err, contacts)
	}
	chats, err := NewGetChatsQuery(reader).Query(context.Background(), GetChatsMessage{})
	if err != nil || len(chats) != 1 {
		t.Fatalf("get chats: %v %#v", err, chats)
	}
	hooks, err := NewListWebhooksQuery(reader).Query(context.Background(), ListWebhooksMessage{})
	if err != nil || len(hooks) != 1 {
		t.Fatalf("list webhooks: %v %#v", err, hooks)
	}
}

func TestListWebhooksQuery_NilReaderReturnsRichError(t *testing.T) {
	var qry *ListWebhooksQuery
	_, err := qry.Query(context.Background(), ListWebhooksMessage{})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.TextCode != core.ErrorInternal {
		t.Fatalf("expected %q text code, got %q", core.ErrorInternal, rich.TextCode)
	}
}
