// Package sqlstore implements database.IdentityStore on top of database/sql.
// Backend packages supply a Dialect describing placeholders, constraint errors
// and any extra columns they keep next to the descriptor blob.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/facegate/internal/database"
)

// Dialect describes the SQL differences between backends.
type Dialect struct {
	// Name is used in error messages
	Name string
	// Numbered switches ? placeholders to $1, $2, ... (PostgreSQL)
	Numbered bool
	// IsUniqueViolation reports whether err is a primary key / unique constraint failure
	IsUniqueViolation func(err error) bool
	// ExtraInsertColumn optionally stores a derived column alongside the blob
	// (the pgvector embedding column on PostgreSQL).
	ExtraInsertColumn string
	ExtraInsertValue  func(desc []float32) any
}

// Store is a database/sql backed identity store.
type Store struct {
	db      *sql.DB
	dialect Dialect
	dim     int
}

// New wraps an open connection pool.
func New(db *sql.DB, dialect Dialect, dim int) *Store {
	return &Store{db: db, dialect: dialect, dim: dim}
}

// DB returns the underlying sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Rebind converts ? placeholders to the dialect's placeholder style.
func (s *Store) Rebind(query string) string {
	return Rebind(query, s.dialect.Numbered)
}

// Rebind converts ? placeholders to $n when numbered is true.
func Rebind(query string, numbered bool) string {
	if !numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) unavailable(op string, err error) error {
	return fmt.Errorf("%s %s: %w: %w", s.dialect.Name, op, database.ErrStoreUnavailable, err)
}

const selectColumns = "identity_id, display_name, descriptor, created_at"

// Get retrieves an identity by ID.
func (s *Store) Get(ctx context.Context, id int64) (*database.Identity, error) {
	row := s.db.QueryRowContext(ctx, s.Rebind("SELECT "+selectColumns+" FROM identities WHERE identity_id = ?"), id)
	identity, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("identity %d: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return nil, s.unavailable("get identity", err)
	}
	return identity, nil
}

// ListAll returns every identity ordered by ID.
func (s *Store) ListAll(ctx context.Context) ([]database.Identity, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+selectColumns+" FROM identities ORDER BY identity_id")
	if err != nil {
		return nil, s.unavailable("query identities", err)
	}
	defer rows.Close()

	var identities []database.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, s.unavailable("scan identity", err)
		}
		identities = append(identities, *identity)
	}
	if err := rows.Err(); err != nil {
		return nil, s.unavailable("iterate identities", err)
	}
	return identities, nil
}

// Count returns the number of identities.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM identities").Scan(&count); err != nil {
		return 0, s.unavailable("count identities", err)
	}
	return count, nil
}

// Insert stores a new identity. The statement runs in autocommit mode, so the
// row is committed before Insert returns. Concurrent inserts of the same ID
// are resolved by the primary key constraint.
func (s *Store) Insert(ctx context.Context, identity database.Identity) error {
	if err := database.ValidateDescriptor(identity.Descriptor, s.dim); err != nil {
		return err
	}

	createdAt := identity.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	columns := "identity_id, display_name, descriptor, created_at"
	placeholders := "?, ?, ?, ?"
	args := []any{identity.ID, identity.Name, database.EncodeDescriptor(identity.Descriptor), createdAt.UTC().UnixMilli()}
	if s.dialect.ExtraInsertColumn != "" {
		columns += ", " + s.dialect.ExtraInsertColumn
		placeholders += ", ?"
		args = append(args, s.dialect.ExtraInsertValue(identity.Descriptor))
	}

	query := s.Rebind("INSERT INTO identities (" + columns + ") VALUES (" + placeholders + ")")
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if s.dialect.IsUniqueViolation != nil && s.dialect.IsUniqueViolation(err) {
			return fmt.Errorf("identity %d: %w", identity.ID, database.ErrDuplicateIdentity)
		}
		return s.unavailable("insert identity", err)
	}
	return nil
}

// Delete removes an identity inside a transaction and returns the removed row.
func (s *Store) Delete(ctx context.Context, id int64) (*database.Identity, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, s.unavailable("begin transaction", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, s.Rebind("SELECT "+selectColumns+" FROM identities WHERE identity_id = ?"), id)
	identity, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("identity %d: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return nil, s.unavailable("get identity", err)
	}

	if _, err := tx.ExecContext(ctx, s.Rebind("DELETE FROM identities WHERE identity_id = ?"), id); err != nil {
		return nil, s.unavailable("delete identity", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, s.unavailable("commit delete", err)
	}
	return identity, nil
}

// Dim returns the enforced descriptor length.
func (s *Store) Dim() int {
	return s.dim
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (*database.Identity, error) {
	var (
		identity  database.Identity
		blob      []byte
		createdAt int64
	)
	if err := row.Scan(&identity.ID, &identity.Name, &blob, &createdAt); err != nil {
		return nil, err
	}
	desc, err := database.DecodeDescriptor(blob)
	if err != nil {
		return nil, fmt.Errorf("identity %d: %w", identity.ID, err)
	}
	identity.Descriptor = desc
	identity.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &identity, nil
}

// ScanIdentity exposes the shared row decoding to backends with extra queries.
func ScanIdentity(row rowScanner) (*database.Identity, error) {
	return scanIdentity(row)
}

var _ database.IdentityStore = (*Store)(nil)
