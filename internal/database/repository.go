package database

import (
	"context"
)

// IdentityReader provides read-only access to enrolled identities
type IdentityReader interface {
	// Get retrieves an identity by ID, returns ErrNotFound if absent
	Get(ctx context.Context, id int64) (*Identity, error)
	// ListAll returns a snapshot copy of every identity ordered by ID.
	// The snapshot is read from durable state and is not affected by later writes.
	ListAll(ctx context.Context) ([]Identity, error)
	// Count returns the total number of identities stored
	Count(ctx context.Context) (int, error)
}

// IdentityWriter provides write access to enrolled identities
type IdentityWriter interface {
	IdentityReader

	// Insert stores a new identity. The record is durable when Insert returns.
	// Fails with ErrDuplicateIdentity or ErrInvalidDescriptor.
	Insert(ctx context.Context, identity Identity) error

	// Delete removes an identity and returns the removed record so the caller
	// can clean up auxiliary artifacts. Fails with ErrNotFound if absent.
	Delete(ctx context.Context, id int64) (*Identity, error)
}

// IdentityStore is a complete descriptor store backend.
type IdentityStore interface {
	IdentityWriter

	// Dim returns the descriptor length enforced by the store
	Dim() int
	// Close releases the underlying connection pool
	Close() error
}

// NearestSearcher is implemented by backends that can rank identities server-side
// (pgvector). Used for operator ranking only; verification always scans a snapshot.
type NearestSearcher interface {
	NearestN(ctx context.Context, probe []float32, limit int) ([]ScoredIdentity, error)
}
