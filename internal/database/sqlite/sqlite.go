// Package sqlite provides the default SQLite-backed identity store.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/database/sqlstore"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// dsnPragmas make every committed write durable and let readers proceed
// while the single writer holds the lock.
const dsnPragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=foreign_keys(ON)"

func init() {
	database.RegisterBackend("sqlite", func(ctx context.Context, opts database.OpenOptions) (database.IdentityStore, error) {
		return Open(ctx, PathFromURL(opts.URL), opts.Dim)
	})
}

// Store is the SQLite identity store.
type Store struct {
	*sqlstore.Store
}

// PathFromURL strips an optional sqlite:// or file: prefix from a database URL.
func PathFromURL(rawURL string) string {
	path := strings.TrimPrefix(rawURL, "sqlite://")
	return strings.TrimPrefix(path, "file:")
}

// Open opens (creating if needed) a SQLite database and applies migrations.
func Open(ctx context.Context, path string, dim int) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", "file:"+filepath.ToSlash(path)+"?"+dsnPragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	// One writer at a time keeps duplicate checks and deletes serialized.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite store: %w", err)
	}

	migrations, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	if err := sqlstore.Migrate(ctx, db, migrations, dim, false); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite store: %w", err)
	}

	return &Store{Store: sqlstore.New(db, sqlstore.Dialect{
		Name:              "sqlite",
		IsUniqueViolation: isUniqueViolation,
	}, dim)}, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") &&
		strings.Contains(message, "identities.identity_id")
}

var _ database.IdentityStore = (*Store)(nil)
