package session

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const directoryCacheKeyPrefix = "wabridge::directory::v1"

// Directory reads contacts and chats for a session, possibly from a cache.
type Directory interface {
	Contacts(ctx context.Context, session string, fetch func(context.Context) ([]Contact, error)) ([]Contact, error)
	Chats(ctx context.Context, session string, fetch func(context.Context) ([]Chat, error)) ([]Chat, error)
	Invalidate(ctx context.Context, session string) error
}

// PassthroughDirectory always calls the adapter.
type PassthroughDirectory struct{}

func (PassthroughDirectory) Contacts(ctx context.Context, _ string, fetch func(context.Context) ([]Contact, error)) ([]Contact, error) {
	return fetch(ctx)
}

func (PassthroughDirectory) Chats(ctx context.Context, _ string, fetch func(context.Context) ([]Chat, error)) ([]Chat, error) {
	return fetch(ctx)
}

func (PassthroughDirectory) Invalidate(context.Context, string) error {
	return nil
}

// CachedDirectory keeps contact and chat lists in a TTL cache keyed by
// session name.
type CachedDirectory struct {
	cache repositorycache.CacheService
}

func NewCachedDirectory(cacheService repositorycache.CacheService) (*CachedDirectory, error) {
	if cacheService == nil {
		return nil, fmt.Errorf("session: directory cache service is required")
	}
	return &CachedDirectory{cache: cacheService}, nil
}

// NewDirectory returns a CachedDirectory with the given TTL, or a
// PassthroughDirectory when ttl is not positive.
func NewDirectory(ttl time.Duration) (Directory, error) {
	if ttl <= 0 {
		return PassthroughDirectory{}, nil
	}
	config := repositorycache.DefaultConfig()
	config.TTL = ttl
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		return nil, fmt.Errorf("session: build directory cache: %w", err)
	}
	return NewCachedDirectory(service)
}

// DirectoryCacheKey returns wabridge::directory::v1::<session>::<kind> with
// the session segment path escaped.
func DirectoryCacheKey(session string, kind string) string {
	return strings.Join([]string{
		directoryCacheKeyPrefix,
		url.PathEscape(strings.TrimSpace(session)),
		kind,
	}, "::")
}

func (d *CachedDirectory) Contacts(
	ctx context.Context,
	session string,
	fetch func(context.Context) ([]Contact, error),
) ([]Contact, error) {
	if d == nil || d.cache == nil {
		return fetch(ctx)
	}
	contacts, err := repositorycache.GetOrFetch(ctx, d.cache, DirectoryCacheKey(session, "contacts"), fetch)
	if err != nil {
		return nil, err
	}
	return append([]Contact(nil), contacts...), nil
}

func (d *CachedDirectory) Chats(
	ctx context.Context,
	session string,
	fetch func(context.Context) ([]Chat, error),
) ([]Chat, error) {
	if d == nil || d.cache == nil {
		return fetch(ctx)
	}
	chats, err := repositorycache.GetOrFetch(ctx, d.cache, DirectoryCacheKey(session, "chats"), fetch)
	if err != nil {
		return nil, err
	}
	return append([]Chat(nil), chats...), nil
}

func (d *CachedDirectory) Invalidate(ctx context.Context, session string) error {
	if d == nil || d.cache == nil {
		return nil
	}
	for _, kind := range []string{"contacts", "chats"} {
		if err := d.cache.Delete(ctx, DirectoryCacheKey(session, kind)); err != nil {
			return fmt.Errorf("session: invalidate %s cache: %w", kind, err)
		}
	}
	return nil
}
