package sqlstore_test

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sync/atomic"
	"testing"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	bridgemigrations "github.com/goliatone/go-wabridge/migrations"
	"github.com/goliatone/go-wabridge/security"
	sqlstore "github.com/goliatone/go-wabridge/store/sql"
	"github.com/goliatone/go-wabridge/webhooks"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return ""
}

func TestSubscriptionStore_UpsertGetListDelete(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	store := factory.SubscriptionStore()

	created, err := store.Upsert(ctx, webhooks.Subscription{
		URL:        "https://b.example.test/hook",
		Events:     []string{"message"},
		Secret:     "s3cret",
		Timeout:    10 * time.Second,
		MaxRetries: 3,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if created.CreatedAt.IsZero() {
		t.Fatalf("expected created_at to be set")
	}
	if _, err := store.Upsert(ctx, webhooks.Subscription{
		URL:    "https://a.example.test/hook",
		Events: []string{"*"},
	}); err != nil {
		t.Fatalf("upsert second: %v", err)
	}

	got, found, err := store.Get(ctx, "https://b.example.test/hook")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found {
		t.Fatalf("expected subscription to be found")
	}
	if got.Secret != "s3cret" || got.Timeout != 10*time.Second || got.MaxRetries != 3 {
		t.Fatalf("unexpected subscription: %#v", got)
	}
	if len(got.Events) != 1 || got.Events[0] != "message" {
		t.Fatalf("expected events [message], got %v", got.Events)
	}

	listed, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 subscriptions, got %d", len(listed))
	}
	if listed[0].URL != "https://a.example.test/hook" {
		t.Fatalf("expected list ordered by url, got %q first", listed[0].URL)
	}

	removed, err := store.Delete(ctx, "https://b.example.test/hook")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !removed {
		t.Fatalf("expected delete to report removal")
	}
	removed, err = store.Delete(ctx, "https://b.example.test/hook")
	if err != nil {
		t.Fatalf("delete again: %v", err)
	}
	if removed {
		t.Fatalf("expected second delete to report nothing removed")
	}
	if _, found, err := store.Get(ctx, "https://b.example.test/hook"); err != nil || found {
		t.Fatalf("expected deleted subscription to be gone, found=%v err=%v", found, err)
	}
}

func TestSubscriptionStore_UpsertReplacesByURL(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	store, err := sqlstore.NewSubscriptionStore(client.DB())
	if err != nil {
		t.Fatalf("new subscription store: %v", err)
	}

	first, err := store.Upsert(ctx, webhooks.Subscription{
		URL:    "https://example.test/hook",
		Events: []string{"message"},
	})
	if err != nil {
		t.Fatalf("upsert first: %v", err)
	}
	second, err := store.Upsert(ctx, webhooks.Subscription{
		URL:        "https://example.test/hook",
		Events:     []string{"qr", "ready"},
		MaxRetries: 5,
	})
	if err != nil {
		t.Fatalf("upsert second: %v", err)
	}
	if !second.CreatedAt.Truncate(time.Millisecond).Equal(first.CreatedAt.Truncate(time.Millisecond)) {
		t.Fatalf("expected created_at to survive replace, got %v and %v", first.CreatedAt, second.CreatedAt)
	}

	listed, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected one subscription per url, got %d", len(listed))
	}
	if listed[0].MaxRetries != 5 || len(listed[0].Events) != 2 {
		t.Fatalf("expected replaced subscription, got %#v", listed[0])
	}
}

func TestSubscriptionStore_RejectsEmptyURL(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	store, err := sqlstore.NewSubscriptionStore(client.DB())
	if err != nil {
		t.Fatalf("new subscription store: %v", err)
	}
	if _, err := store.Upsert(context.Background(), webhooks.Subscription{URL: "  "}); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestSubscriptionStore_SealsSecretsAtRest(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	provider, err := security.NewAppKeySecretProviderFromString("store-test-key")
	if err != nil {
		t.Fatalf("new secret provider: %v", err)
	}
	factory, err := sqlstore.NewRepositoryFactoryFromDB(client.DB(), sqlstore.WithSecretProvider(provider))
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	store := factory.SubscriptionStore()

	created, err := store.Upsert(ctx, webhooks.Subscription{URL: "https://example.test/hook", Secret: "s3cret"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if created.Secret != "s3cret" {
		t.Fatalf("expected plaintext secret in result, got %q", created.Secret)
	}

	var stored string
	if err := client.DB().NewRaw("SELECT secret FROM wabridge_webhook_subscriptions WHERE url = ?", "https://example.test/hook").Scan(ctx, &stored); err != nil {
		t.Fatalf("read raw secret: %v", err)
	}
	if !security.IsSealed([]byte(stored)) {
		t.Fatalf("expected sealed secret column, got %q", stored)
	}

	got, found, err := store.Get(ctx, "https://example.test/hook")
	if err != nil || !found {
		t.Fatalf("get: found=%v err=%v", found, err)
	}
	if got.Secret != "s3cret" {
		t.Fatalf("expected opened secret, got %q", got.Secret)
	}

	plain, err := sqlstore.NewSubscriptionStore(client.DB())
	if err != nil {
		t.Fatalf("new plain store: %v", err)
	}
	if _, _, err := plain.Get(ctx, "https://example.test/hook"); err == nil {
		t.Fatalf("expected sealed secret without provider to fail")
	}
}

func TestCachedSubscriptionStore_ServesGetFromCacheUntilWrite(t *testing.T) {
	ctx := context.Background()
	base := &countingSubscriptionStore{SubscriptionStore: webhooks.NewMemorySubscriptionStore()}

	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	cacheService, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	store, err := sqlstore.NewCachedSubscriptionStore(base, cacheService)
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}

	if _, err := store.Upsert(ctx, webhooks.Subscription{URL: "https://example.test/hook", MaxRetries: 1}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	for range 3 {
		sub, found, err := store.Get(ctx, "https://example.test/hook")
		if err != nil || !found {
			t.Fatalf("expected cached get to find subscription, found=%v err=%v", found, err)
		}
		if sub.MaxRetries != 1 {
			t.Fatalf("expected max retries 1, got %d", sub.MaxRetries)
		}
	}
	if got := base.gets.Load(); got != 1 {
		t.Fatalf("expected one backing get, got %d", got)
	}

	if _, err := store.Upsert(ctx, webhooks.Subscription{URL: "https://example.test/hook", MaxRetries: 4}); err != nil {
		t.Fatalf("upsert replace: %v", err)
	}
	sub, _, err := store.Get(ctx, "https://example.test/hook")
	if err != nil {
		t.Fatalf("get after replace: %v", err)
	}
	if sub.MaxRetries != 4 {
		t.Fatalf("expected cache invalidated on upsert, got max retries %d", sub.MaxRetries)
	}

	if _, err := store.Delete(ctx, "https://example.test/hook"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, found, err := store.Get(ctx, "https://example.test/hook"); err != nil || found {
		t.Fatalf("expected cache invalidated on delete, found=%v err=%v", found, err)
	}
}

func TestRepositoryFactory_WithCacheTTLReturnsCachedStore(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromDB(client.DB(), sqlstore.WithSubscriptionCacheTTL(time.Minute))
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	if _, ok := factory.SubscriptionStore().(*sqlstore.CachedSubscriptionStore); !ok {
		t.Fatalf("expected cached subscription store, got %T", factory.SubscriptionStore())
	}
}

func TestRepositoryFactory_RejectsUnsupportedClient(t *testing.T) {
	if _, err := sqlstore.NewRepositoryFactoryFromDB(nil); err == nil {
		t.Fatalf("expected error for nil db")
	}
}

func TestSubscriptionCacheKey_EscapesURL(t *testing.T) {
	key := sqlstore.SubscriptionCacheKey(" https://example.test/a b ")
	if key != "wabridge::webhook_subscription::v1::https:%2F%2Fexample.test%2Fa%20b" {
		t.Fatalf("unexpected cache key %q", key)
	}
}

type countingSubscriptionStore struct {
	webhooks.SubscriptionStore
	gets atomic.Int64
}

func (s *countingSubscriptionStore) Get(ctx context.Context, url string) (webhooks.Subscription, bool, error) {
	s.gets.Add(1)
	return s.SubscriptionStore.Get(ctx, url)
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:wabridge-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	err = bridgemigrations.Register(ctx, func(_ context.Context, _ string, fsys fs.FS) error {
		client.RegisterSQLMigrations(fsys)
		return nil
	}, bridgemigrations.DialectSQLite)
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}
