package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	wabridge "github.com/goliatone/go-wabridge"
	_ "github.com/mattn/go-sqlite3"
)

func TestDialects_ReturnsPostgresAndSQLite(t *testing.T) {
	dialects, err := Dialects(nil)
	if err != nil {
		t.Fatalf("dialects: %v", err)
	}
	if len(dialects) != 2 {
		t.Fatalf("expected 2 dialects, got %d", len(dialects))
	}
	if dialects[0].Name != DialectPostgres || dialects[1].Name != DialectSQLite {
		t.Fatalf("unexpected dialect order %q %q", dialects[0].Name, dialects[1].Name)
	}
	for _, dialect := range dialects {
		if _, err := fs.Stat(dialect.FS, "00002_wabridge_receiver_throttles.up.sql"); err != nil {
			t.Fatalf("expected %s throttle migration: %v", dialect.Name, err)
		}
	}
}

func TestDialects_RejectsSourceWithoutUpMigrations(t *testing.T) {
	source := fstest.MapFS{
		"data/sql/migrations/00001_x.down.sql":        {Data: []byte("SELECT 1;")},
		"data/sql/migrations/sqlite/00001_x.down.sql": {Data: []byte("SELECT 1;")},
	}
	if _, err := Dialects(source); err == nil {
		t.Fatalf("expected error for a tree without up migrations")
	}
}

func TestRegister_OnlyNamedDialects(t *testing.T) {
	var calls []string
	err := Register(context.Background(), func(_ context.Context, dialect string, _ fs.FS) error {
		calls = append(calls, dialect)
		return nil
	}, "SQLite")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(calls) != 1 || calls[0] != DialectSQLite {
		t.Fatalf("expected only sqlite registration, got %v", calls)
	}
}

func TestRegister_AllDialectsByDefault(t *testing.T) {
	var calls []string
	err := Register(context.Background(), func(_ context.Context, dialect string, _ fs.FS) error {
		calls = append(calls, dialect)
		return nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("expected both dialects, got %v", calls)
	}
}

func TestRegister_RejectsUnknownDialect(t *testing.T) {
	err := Register(context.Background(), func(context.Context, string, fs.FS) error { return nil }, "mysql")
	if err == nil {
		t.Fatalf("expected unknown dialect to be rejected")
	}
}

func TestRegister_PropagatesRegisterError(t *testing.T) {
	err := Register(context.Background(), func(context.Context, string, fs.FS) error {
		return fmt.Errorf("boom")
	})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected register error to propagate, got %v", err)
	}
}

func TestRegister_RequiresRegisterFunc(t *testing.T) {
	if err := Register(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil register function")
	}
}

func TestMigrationPairs_ExistForBothDialects(t *testing.T) {
	root := wabridge.GetMigrationsFS()
	paths := []string{
		"data/sql/migrations/00001_wabridge_webhook_subscriptions.up.sql",
		"data/sql/migrations/00001_wabridge_webhook_subscriptions.down.sql",
		"data/sql/migrations/sqlite/00001_wabridge_webhook_subscriptions.up.sql",
		"data/sql/migrations/sqlite/00001_wabridge_webhook_subscriptions.down.sql",
		"data/sql/migrations/00002_wabridge_receiver_throttles.up.sql",
		"data/sql/migrations/00002_wabridge_receiver_throttles.down.sql",
		"data/sql/migrations/sqlite/00002_wabridge_receiver_throttles.up.sql",
		"data/sql/migrations/sqlite/00002_wabridge_receiver_throttles.down.sql",
	}
	for _, migrationPath := range paths {
		content, err := fs.ReadFile(root, migrationPath)
		if err != nil {
			t.Fatalf("read migration %s: %v", migrationPath, err)
		}
		if strings.TrimSpace(string(content)) == "" {
			t.Fatalf("expected migration %s to have SQL content", migrationPath)
		}
	}
}

func TestSQLiteWebhookSubscriptionsMigration_ApplyAndRollback(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:migrations-webhook-subscriptions?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()

	root := wabridge.GetMigrationsFS()
	sqliteMigrations, err := fs.Sub(root, "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}

	if err := execSQLMigration(
		context.Background(),
		db,
		sqliteMigrations,
		"00001_wabridge_webhook_subscriptions.up.sql",
	); err != nil {
		t.Fatalf("apply webhook subscriptions migration up: %v", err)
	}

	insertStatement := `
		INSERT INTO wabridge_webhook_subscriptions (
			id,
			url,
			events,
			secret,
			timeout_ms,
			max_retries
		) VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := db.ExecContext(
		context.Background(),
		insertStatement,
		"sub-1",
		"https://example.test/hook",
		`["message"]`,
		"",
		10000,
		3,
	); err != nil {
		t.Fatalf("insert subscription: %v", err)
	}
	if _, err := db.ExecContext(
		context.Background(),
		insertStatement,
		"sub-2",
		"https://example.test/hook",
		`["ready"]`,
		"",
		10000,
		3,
	); err == nil {
		t.Fatalf("expected unique url violation")
	}

	if err := execSQLMigration(
		context.Background(),
		db,
		sqliteMigrations,
		"00001_wabridge_webhook_subscriptions.down.sql",
	); err != nil {
		t.Fatalf("apply webhook subscriptions migration down: %v", err)
	}

	var count int
	if err := db.QueryRowContext(
		context.Background(),
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`,
		"wabridge_webhook_subscriptions",
	).Scan(&count); err != nil {
		t.Fatalf("query sqlite_master after down migration: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected wabridge_webhook_subscriptions to be dropped after down migration")
	}
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filepath.Clean(filename))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
