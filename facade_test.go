package wabridge

import (
	"context"
	"testing"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-wabridge/adapters/gocommand"
	bridgecommand "github.com/goliatone/go-wabridge/command"
	"github.com/goliatone/go-wabridge/core"
	bridgequery "github.com/goliatone/go-wabridge/query"
	"github.com/goliatone/go-wabridge/session"
	"github.com/goliatone/go-wabridge/webhooks"
)

func TestNewFacade_WiresCommandsAndQueries(t *testing.T) {
	bridge, _ := newTestBridge(t, core.DefaultConfig())

	facade, err := NewFacade(bridge)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.SendMessage == nil || commands.SetWebhook == nil || commands.ProcessRetryQueue == nil {
		t.Fatalf("expected command handlers to be wired")
	}
	queries := facade.Queries()
	if queries.GetQRCode == nil || queries.FetchMessages == nil || queries.ListWebhooks == nil {
		t.Fatalf("expected query handlers to be wired")
	}
	if facade.Service() != bridge {
		t.Fatalf("expected facade to expose the bridge")
	}
}

func TestFacade_CommandAndQueryDelegation(t *testing.T) {
	bridge, _ := newTestBridge(t, core.DefaultConfig())
	facade, err := NewFacade(bridge)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	ctx := context.Background()

	collector := gocmd.NewResult[session.Snapshot]()
	if err := facade.Commands().CreateSession.Execute(
		gocmd.ContextWithResult(ctx, collector),
		bridgecommand.CreateSessionMessage{Session: "alt"},
	); err != nil {
		t.Fatalf("execute create session: %v", err)
	}
	snapshot, ok := collector.Load()
	if !ok || snapshot.Name != "alt" {
		t.Fatalf("unexpected create session result: %#v", snapshot)
	}

	qr, err := facade.Queries().GetQRCode.Query(ctx, bridgequery.GetQRCodeMessage{Session: "alt"})
	if err != nil {
		t.Fatalf("query qr code: %v", err)
	}
	if qr.Kind != session.QRInitializing {
		t.Fatalf("expected initializing qr result, got %q", qr.Kind)
	}

	_, err = facade.Queries().GetStatus.Query(ctx, bridgequery.GetStatusMessage{Session: "missing"})
	if !core.IsErrorCode(err, core.ErrorSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
}

func TestFacade_RegisterRoutesThroughDispatcher(t *testing.T) {
	hook := newHookRecorder(t)
	bridge, _ := newTestBridge(t, core.DefaultConfig())
	facade, err := NewFacade(bridge)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	subs, err := facade.Register(gocommand.NewRegistryAdapter(nil))
	if err != nil {
		t.Fatalf("register facade: %v", err)
	}
	defer subs.Unsubscribe()
	if subs.Len() != 13 {
		t.Fatalf("expected 13 subscriptions, got %d", subs.Len())
	}

	ctx := context.Background()
	result, err := gocommand.DispatchWithResult[bridgecommand.SetWebhookMessage, webhooks.SetWebhookResult](ctx,
		bridgecommand.SetWebhookMessage{URL: hook.URL, Events: []string{"message"}})
	if err != nil {
		t.Fatalf("dispatch set webhook: %v", err)
	}
	if result.Subscription.URL != hook.URL || !result.TestDelivery.Delivered {
		t.Fatalf("unexpected set webhook result: %#v", result)
	}

	listed, err := gocommand.Query[bridgequery.ListWebhooksMessage, []webhooks.Subscription](ctx, bridgequery.ListWebhooksMessage{})
	if err != nil {
		t.Fatalf("query list webhooks: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected one subscription, got %d", len(listed))
	}
}

func TestNewFacade_RequiresService(t *testing.T) {
	facade, err := NewFacade(nil)
	if err == nil {
		t.Fatalf("expected nil service error")
	}
	if facade != nil {
		t.Fatalf("expected nil facade on error")
	}
}
