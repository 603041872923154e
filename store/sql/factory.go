package sqlstore

import (
	"fmt"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-wabridge/core"
	"github.com/goliatone/go-wabridge/webhooks"
	"github.com/uptrace/bun"
)

// RepositoryFactory builds the SQL-backed stores from one bun connection.
type RepositoryFactory struct {
	db       *bun.DB
	cacheTTL time.Duration
	secrets  core.SecretProvider

	subscriptionStore *SubscriptionStore
	cachedStore       *CachedSubscriptionStore
	throttleStore     *ReceiverThrottleStore
}

type FactoryOption func(*RepositoryFactory)

// WithSubscriptionCacheTTL enables the read-through subscription cache.
func WithSubscriptionCacheTTL(ttl time.Duration) FactoryOption {
	return func(f *RepositoryFactory) {
		f.cacheTTL = ttl
	}
}

// WithSecretProvider seals subscription secrets at rest.
func WithSecretProvider(provider core.SecretProvider) FactoryOption {
	return func(f *RepositoryFactory) {
		f.secrets = provider
	}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	return newRepositoryFactory(client, opts...)
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	return newRepositoryFactory(db, opts...)
}

func newRepositoryFactory(candidate any, opts ...FactoryOption) (*RepositoryFactory, error) {
	db, err := resolveBunDB(candidate)
	if err != nil {
		return nil, err
	}
	factory := &RepositoryFactory{db: db}
	for _, opt := range opts {
		if opt != nil {
			opt(factory)
		}
	}
	if err := factory.initStores(); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

// SubscriptionStore returns the cached store when a cache TTL is set.
func (f *RepositoryFactory) SubscriptionStore() webhooks.SubscriptionStore {
	if f == nil {
		return nil
	}
	if f.cachedStore != nil {
		return f.cachedStore
	}
	return f.subscriptionStore
}

// ThrottleStore returns the durable receiver backoff state.
func (f *RepositoryFactory) ThrottleStore() *ReceiverThrottleStore {
	if f == nil {
		return nil
	}
	return f.throttleStore
}

func (f *RepositoryFactory) initStores() error {
	throttleStore, err := NewReceiverThrottleStore(f.db)
	if err != nil {
		return err
	}
	f.throttleStore = throttleStore

	subscriptionStore, err := NewSubscriptionStore(f.db, WithSealedSecrets(f.secrets))
	if err != nil {
		return err
	}
	f.subscriptionStore = subscriptionStore
	if f.cacheTTL <= 0 {
		return nil
	}

	config := repositorycache.DefaultConfig()
	config.TTL = f.cacheTTL
	cacheService, err := repositorycache.NewCacheService(config)
	if err != nil {
		return fmt.Errorf("sqlstore: build subscription cache: %w", err)
	}
	cachedStore, err := NewCachedSubscriptionStore(subscriptionStore, cacheService)
	if err != nil {
		return err
	}
	f.cachedStore = cachedStore
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		if typed == nil {
			return nil, fmt.Errorf("sqlstore: bun db is required")
		}
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
