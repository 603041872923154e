package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	wabridge "github.com/goliatone/go-wabridge"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const rootPath = "data/sql/migrations"

// Dialect is the migration directory for one SQL dialect.
type Dialect struct {
	Name string
	Path string
	FS   fs.FS
}

// RegisterFunc receives one dialect directory, typically
// persistence.Client.RegisterSQLMigrations behind a closure.
type RegisterFunc func(ctx context.Context, dialect string, fsys fs.FS) error

// Dialects resolves the postgres tree and its sqlite subdirectory from the
// embedded migrations, or from source when it is not nil. Each directory
// must hold at least one *.up.sql file.
func Dialects(source fs.FS) ([]Dialect, error) {
	if source == nil {
		source = wabridge.GetMigrationsFS()
	}
	base, err := fs.Sub(source, rootPath)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", rootPath, err)
	}
	sqliteFS, err := fs.Sub(base, DialectSQLite)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite directory: %w", err)
	}

	dialects := []Dialect{
		{Name: DialectPostgres, Path: rootPath, FS: base},
		{Name: DialectSQLite, Path: rootPath + "/" + DialectSQLite, FS: sqliteFS},
	}
	for _, dialect := range dialects {
		matches, err := fs.Glob(dialect.FS, "*.up.sql")
		if err != nil {
			return nil, fmt.Errorf("migrations: glob %s: %w", dialect.Path, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("migrations: %s has no *.up.sql files", dialect.Path)
		}
	}
	return dialects, nil
}

// Register hands the embedded directory of every named dialect to
// registerFn. No names registers both dialects.
func Register(ctx context.Context, registerFn RegisterFunc, names ...string) error {
	if registerFn == nil {
		return fmt.Errorf("migrations: register function is required")
	}
	dialects, err := Dialects(nil)
	if err != nil {
		return err
	}

	wanted := map[string]bool{}
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != DialectPostgres && name != DialectSQLite {
			return fmt.Errorf("migrations: dialect %q is not supported", name)
		}
		wanted[name] = true
	}

	for _, dialect := range dialects {
		if len(wanted) > 0 && !wanted[dialect.Name] {
			continue
		}
		if err := registerFn(ctx, dialect.Name, dialect.FS); err != nil {
			return fmt.Errorf("migrations: register %s: %w", dialect.Name, err)
		}
	}
	return nil
}
