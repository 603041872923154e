package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"

	"github.com/goliatone/go-wabridge/core"
	bridgemigrations "github.com/goliatone/go-wabridge/migrations"
	"github.com/goliatone/go-wabridge/ratelimit"
	"github.com/goliatone/go-wabridge/security"
	sqlstore "github.com/goliatone/go-wabridge/store/sql"
	"github.com/goliatone/go-wabridge/webhooks"
)

const pingTimeout = 5 * time.Second

type persistenceConfig struct {
	driver string
	server string
	debug  bool
}

func (c persistenceConfig) GetDebug() bool {
	return c.debug
}

func (c persistenceConfig) GetDriver() string {
	return c.driver
}

func (c persistenceConfig) GetServer() string {
	return c.server
}

func (c persistenceConfig) GetPingTimeout() time.Duration {
	return pingTimeout
}

func (c persistenceConfig) GetOtelIdentifier() string {
	return ""
}

func dialectFor(driver string) (schema.Dialect, string, error) {
	switch driver {
	case "sqlite3":
		return sqlitedialect.New(), bridgemigrations.DialectSQLite, nil
	case "postgres":
		return pgdialect.New(), bridgemigrations.DialectPostgres, nil
	default:
		return nil, "", fmt.Errorf("store driver %q is not supported", driver)
	}
}

// openPersistence connects the configured store and applies the bridge
// migrations for its dialect. A nil client means no store is configured.
func openPersistence(ctx context.Context, cfg core.StoreConfig, debug bool) (*persistence.Client, error) {
	driver := core.NormalizeStoreDriver(cfg.Driver)
	if driver == "" {
		return nil, nil
	}
	dialect, migrationDialect, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	sqlDB, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	if driver == "sqlite3" {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(persistenceConfig{driver: driver, server: cfg.DSN, debug: debug}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connect %s store: %w", driver, err)
	}

	err = bridgemigrations.Register(ctx, func(_ context.Context, _ string, fsys fs.FS) error {
		client.RegisterSQLMigrations(fsys)
		return nil
	}, migrationDialect)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("migrate %s store: %w", driver, err)
	}
	return client, nil
}

type bridgeStores struct {
	subscriptions webhooks.SubscriptionStore
	throttles     ratelimit.StateStore
}

// openStores returns the durable stores, or zero stores when everything
// stays in memory. The returned close func is never nil.
func openStores(ctx context.Context, cfg core.StoreConfig, cacheTTL time.Duration, debug bool) (bridgeStores, func() error, error) {
	noop := func() error { return nil }
	client, err := openPersistence(ctx, cfg, debug)
	if err != nil {
		return bridgeStores{}, noop, err
	}
	if client == nil {
		return bridgeStores{}, noop, nil
	}
	var opts []sqlstore.FactoryOption
	if cacheTTL > 0 {
		opts = append(opts, sqlstore.WithSubscriptionCacheTTL(cacheTTL))
	}
	if cfg.SecretKey != "" {
		provider, err := security.NewAppKeySecretProviderFromString(cfg.SecretKey)
		if err != nil {
			_ = client.Close()
			return bridgeStores{}, noop, err
		}
		opts = append(opts, sqlstore.WithSecretProvider(provider))
	}
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client, opts...)
	if err != nil {
		_ = client.Close()
		return bridgeStores{}, noop, err
	}
	stores := bridgeStores{
		subscriptions: factory.SubscriptionStore(),
		throttles:     factory.ThrottleStore(),
	}
	return stores, client.Close, nil
}
