package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-wabridge/core"
	"github.com/goliatone/go-wabridge/security"
	"github.com/goliatone/go-wabridge/webhooks"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SubscriptionStore persists webhook subscriptions keyed by URL. Secrets
// are sealed at rest when a secret provider is set.
type SubscriptionStore struct {
	db      *bun.DB
	repo    repository.Repository[*webhookSubscriptionRecord]
	secrets core.SecretProvider
	now     func() time.Time
}

type SubscriptionStoreOption func(*SubscriptionStore)

// WithSealedSecrets encrypts subscription secrets before they are written.
func WithSealedSecrets(provider core.SecretProvider) SubscriptionStoreOption {
	return func(s *SubscriptionStore) {
		s.secrets = provider
	}
}

func NewSubscriptionStore(db *bun.DB, opts ...SubscriptionStoreOption) (*SubscriptionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*webhookSubscriptionRecord](db, webhookSubscriptionHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid webhook subscription repository wiring: %w", err)
		}
	}
	store := &SubscriptionStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

func (s *SubscriptionStore) Upsert(ctx context.Context, sub webhooks.Subscription) (webhooks.Subscription, error) {
	if s == nil || s.db == nil || s.repo == nil {
		return webhooks.Subscription{}, fmt.Errorf("sqlstore: subscription store is not configured")
	}
	sub.URL = strings.TrimSpace(sub.URL)
	if sub.URL == "" {
		return webhooks.Subscription{}, fmt.Errorf("sqlstore: webhook url is required")
	}
	now := s.now()
	plainSecret := sub.Secret
	sealed, err := s.sealSecret(ctx, sub.Secret)
	if err != nil {
		return webhooks.Subscription{}, err
	}
	sub.Secret = sealed

	var out webhooks.Subscription
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := s.findByURLTx(ctx, tx, sub.URL)
		if err != nil {
			return err
		}
		if existing == nil {
			record := newWebhookSubscriptionRecord(sub, now)
			record.ID = uuid.NewString()
			if _, createErr := tx.NewInsert().Model(record).Exec(ctx); createErr != nil {
				return createErr
			}
			out = record.toDomain()
			return nil
		}

		existing.apply(sub, now)
		if _, updateErr := tx.NewUpdate().
			Model(existing).
			Where("id = ?", existing.ID).
			Exec(ctx); updateErr != nil {
			return updateErr
		}
		out = existing.toDomain()
		return nil
	})
	if err != nil {
		return webhooks.Subscription{}, err
	}
	out.Secret = plainSecret
	return out, nil
}

func (s *SubscriptionStore) Delete(ctx context.Context, url string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: subscription store is not configured")
	}
	result, err := s.db.NewDelete().
		Model((*webhookSubscriptionRecord)(nil)).
		Where("url = ?", strings.TrimSpace(url)).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *SubscriptionStore) Get(ctx context.Context, url string) (webhooks.Subscription, bool, error) {
	if s == nil || s.repo == nil {
		return webhooks.Subscription{}, false, fmt.Errorf("sqlstore: subscription store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("url", "=", strings.TrimSpace(url)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return webhooks.Subscription{}, false, err
	}
	if len(records) == 0 {
		return webhooks.Subscription{}, false, nil
	}
	sub, err := s.openRecord(ctx, records[0])
	if err != nil {
		return webhooks.Subscription{}, false, err
	}
	return sub, true, nil
}

func (s *SubscriptionStore) List(ctx context.Context) ([]webhooks.Subscription, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: subscription store is not configured")
	}
	records, _, err := s.repo.List(ctx, repository.OrderBy("url ASC"))
	if err != nil {
		return nil, err
	}
	out := make([]webhooks.Subscription, 0, len(records))
	for _, record := range records {
		sub, err := s.openRecord(ctx, record)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, nil
}

func (s *SubscriptionStore) sealSecret(ctx context.Context, secret string) (string, error) {
	if s.secrets == nil || secret == "" {
		return secret, nil
	}
	sealed, err := s.secrets.Encrypt(ctx, []byte(secret))
	if err != nil {
		return "", fmt.Errorf("sqlstore: seal webhook secret: %w", err)
	}
	return string(sealed), nil
}

// openRecord decrypts sealed secrets. Rows written without a provider are
// returned as stored.
func (s *SubscriptionStore) openRecord(ctx context.Context, record *webhookSubscriptionRecord) (webhooks.Subscription, error) {
	sub := record.toDomain()
	if !security.IsSealed([]byte(sub.Secret)) {
		return sub, nil
	}
	if s.secrets == nil {
		return webhooks.Subscription{}, fmt.Errorf("sqlstore: webhook %s has a sealed secret but no secret provider is configured", sub.URL)
	}
	plain, err := s.secrets.Decrypt(ctx, []byte(sub.Secret))
	if err != nil {
		return webhooks.Subscription{}, fmt.Errorf("sqlstore: open webhook secret for %s: %w", sub.URL, err)
	}
	sub.Secret = string(plain)
	return sub, nil
}

func (s *SubscriptionStore) findByURLTx(ctx context.Context, tx bun.Tx, url string) (*webhookSubscriptionRecord, error) {
	record := &webhookSubscriptionRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.url = ?", url).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}
