package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-wabridge/ratelimit"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ReceiverThrottleStore persists receiver backoff so a restart does not
// hammer an endpoint that asked for a pause.
type ReceiverThrottleStore struct {
	db   *bun.DB
	repo repository.Repository[*receiverThrottleRecord]
}

func NewReceiverThrottleStore(db *bun.DB) (*ReceiverThrottleStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*receiverThrottleRecord](db, receiverThrottleHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid receiver throttle repository wiring: %w", err)
		}
	}
	return &ReceiverThrottleStore{db: db, repo: repo}, nil
}

func (s *ReceiverThrottleStore) Get(ctx context.Context, key string) (ratelimit.State, error) {
	if s == nil || s.repo == nil {
		return ratelimit.State{}, fmt.Errorf("sqlstore: receiver throttle store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return ratelimit.State{}, fmt.Errorf("sqlstore: receiver url is required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("url", "=", key),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return ratelimit.State{}, err
	}
	if len(records) == 0 {
		return ratelimit.State{}, ratelimit.ErrStateNotFound
	}
	return records[0].toDomain(), nil
}

func (s *ReceiverThrottleStore) Upsert(ctx context.Context, state ratelimit.State) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: receiver throttle store is not configured")
	}
	state.Key = strings.TrimSpace(state.Key)
	if state.Key == "" {
		return fmt.Errorf("sqlstore: receiver url is required")
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now().UTC()
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := findReceiverThrottleTx(ctx, tx, state.Key)
		if err != nil {
			return err
		}
		if record == nil {
			record = &receiverThrottleRecord{
				ID:        uuid.NewString(),
				CreatedAt: state.UpdatedAt.UTC(),
			}
			record.apply(state)
			_, err = tx.NewInsert().Model(record).Exec(ctx)
			return err
		}
		record.apply(state)
		_, err = tx.NewUpdate().
			Model(record).
			Where("id = ?", record.ID).
			Exec(ctx)
		return err
	})
}

func findReceiverThrottleTx(ctx context.Context, tx bun.Tx, url string) (*receiverThrottleRecord, error) {
	record := &receiverThrottleRecord{}
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
