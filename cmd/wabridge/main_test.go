package main

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/goliatone/go-wabridge/adapters/gologger"
	"github.com/goliatone/go-wabridge/core"
	"github.com/goliatone/go-wabridge/ratelimit"
	"github.com/goliatone/go-wabridge/webhooks"
)

func memorySQLiteStore() core.StoreConfig {
	return core.StoreConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:wabridge-cmd-%d?mode=memory&cache=shared&_foreign_keys=on", time.Now().UnixNano()),
	}
}

func TestRootCommandFlagsFeedRuntimeConfig(t *testing.T) {
	root := newRootCommand()
	if err := root.ParseFlags([]string{
		"--addr=:8080",
		"--session=sales",
		"--webhook-url=http://x/hook",
		"--store-driver=sqlite3",
		"--store-dsn=file:test.db",
		"--no-terminal-qr",
	}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if root.Commands()[0].Name() != "migrate" {
		t.Fatalf("expected migrate subcommand")
	}

	noQR, err := root.PersistentFlags().GetBool("no-terminal-qr")
	if err != nil || !noQR {
		t.Fatalf("expected no-terminal-qr flag to be set, got %v %v", noQR, err)
	}
	ttl, err := root.PersistentFlags().GetDuration("subscription-cache-ttl")
	if err != nil || ttl != 30*time.Second {
		t.Fatalf("expected default cache ttl, got %v %v", ttl, err)
	}

	opts := rootOptions{
		addr:        ":8080",
		sessionName: "sales",
		webhookURL:  "http://x/hook",
		storeDriver: "sqlite3",
		storeDSN:    "file:test.db",
	}
	cfg := opts.runtimeConfig()
	if cfg.HTTP.Addr != ":8080" || cfg.DefaultSession != "sales" || cfg.Webhook.URL != "http://x/hook" {
		t.Fatalf("unexpected runtime config %+v", cfg)
	}
	if cfg.Store.Driver != "sqlite3" || cfg.Store.DSN != "file:test.db" {
		t.Fatalf("unexpected store config %+v", cfg.Store)
	}
}

func TestOpenStoresWithoutDriver(t *testing.T) {
	stores, closeStore, err := openStores(context.Background(), core.StoreConfig{}, time.Minute, false)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if stores.subscriptions != nil || stores.throttles != nil {
		t.Fatalf("expected in-memory state without a driver")
	}
	if err := closeStore(); err != nil {
		t.Fatalf("close noop store: %v", err)
	}
}

func TestOpenStoresSQLite(t *testing.T) {
	ctx := context.Background()
	stores, closeStore, err := openStores(ctx, memorySQLiteStore(), time.Minute, false)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer closeStore()
	if stores.throttles == nil {
		t.Fatalf("expected durable receiver throttle store")
	}
	store := stores.subscriptions

	if _, err := store.Upsert(ctx, webhooks.Subscription{URL: "http://x/hook", Events: []string{"message"}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, found, err := store.Get(ctx, "http://x/hook")
	if err != nil || !found {
		t.Fatalf("expected stored subscription, got found=%v err=%v", found, err)
	}
	if got.Events[0] != "message" {
		t.Fatalf("unexpected stored events %v", got.Events)
	}
}

func TestOpenStoresSealsSecrets(t *testing.T) {
	ctx := context.Background()
	cfg := memorySQLiteStore()
	cfg.SecretKey = "cmd-test-key"
	stores, closeStore, err := openStores(ctx, cfg, 0, false)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer closeStore()
	store := stores.subscriptions

	if _, err := store.Upsert(ctx, webhooks.Subscription{URL: "http://x/hook", Secret: "s3cret"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, _, err := store.Get(ctx, "http://x/hook")
	if err != nil || got.Secret != "s3cret" {
		t.Fatalf("expected opened secret, got %q err=%v", got.Secret, err)
	}
}

func TestDialectForRejectsUnknownDriver(t *testing.T) {
	if _, _, err := dialectFor("mysql"); err == nil {
		t.Fatalf("expected unsupported driver to fail")
	}
	if _, name, err := dialectFor("postgres"); err != nil || name != "postgres" {
		t.Fatalf("expected postgres dialect, got %q %v", name, err)
	}
}

func TestBridgeOptionsIncludeStoreAndQRHandler(t *testing.T) {
	provider := gologger.NewSlogProvider(nil, gologger.LevelTrace)
	cfg := core.DefaultConfig()

	stores := bridgeStores{
		subscriptions: webhooks.NewMemorySubscriptionStore(),
		throttles:     ratelimit.NewMemoryStateStore(),
	}
	withQR := bridgeOptions(cfg, rootOptions{}, provider, stores)
	if len(withQR) != 5 {
		t.Fatalf("expected factory, logger, store, throttle and qr options, got %d", len(withQR))
	}
	plain := bridgeOptions(cfg, rootOptions{disableTerminalQR: true}, provider, bridgeStores{})
	if len(plain) != 2 {
		t.Fatalf("expected factory and logger options, got %d", len(plain))
	}
}

func TestRunMigrateRequiresDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("STORE_DSN", "")
	if err := runMigrate(context.Background(), rootOptions{}); err == nil {
		t.Fatalf("expected migrate without a store driver to fail")
	}
}

func TestRunMigrateSQLite(t *testing.T) {
	store := memorySQLiteStore()
	if err := runMigrate(context.Background(), rootOptions{storeDriver: store.Driver, storeDSN: store.DSN}); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
}
