// Package postgres provides a PostgreSQL identity store. Descriptors are kept
// as a byte-exact blob and mirrored into a pgvector column for nearest-neighbour
// queries.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/database/sqlstore"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

func init() {
	database.RegisterBackend("postgres", func(ctx context.Context, opts database.OpenOptions) (database.IdentityStore, error) {
		return Open(ctx, opts)
	})
}

// Store is the PostgreSQL identity store.
type Store struct {
	*sqlstore.Store
}

// NewPool opens and verifies a PostgreSQL connection pool.
func NewPool(opts database.OpenOptions) (*sql.DB, error) {
	if opts.URL == "" {
		return nil, errors.New("database URL is required")
	}

	db, err := sql.Open("postgres", opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool.
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	// Verify connection.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Open connects to PostgreSQL and applies pending migrations.
func Open(ctx context.Context, opts database.OpenOptions) (*Store, error) {
	db, err := NewPool(opts)
	if err != nil {
		return nil, err
	}

	if err := migrate(ctx, db, opts.Dim); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{Store: sqlstore.New(db, sqlstore.Dialect{
		Name:              "postgres",
		Numbered:          true,
		IsUniqueViolation: isUniqueViolation,
		ExtraInsertColumn: "embedding",
		ExtraInsertValue: func(desc []float32) any {
			return pgvector.NewVector(desc)
		},
	}, opts.Dim)}, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

var (
	_ database.IdentityStore   = (*Store)(nil)
	_ database.NearestSearcher = (*Store)(nil)
)
