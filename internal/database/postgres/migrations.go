package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/kozaktomas/facegate/internal/database/sqlstore"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrate applies all pending migrations automatically on startup.
func migrate(ctx context.Context, db *sql.DB, dim int) error {
	migrations, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	return sqlstore.Migrate(ctx, db, migrations, dim, true)
}

// MigrationsApplied returns the list of applied migrations
func (s *Store) MigrationsApplied(ctx context.Context) ([]string, error) {
	return sqlstore.MigrationsApplied(ctx, s.DB())
}
