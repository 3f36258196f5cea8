package postgres

import (
	"context"
	"fmt"

	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/database/sqlstore"
	"github.com/pgvector/pgvector-go"
)

// NearestN returns up to limit identities ordered by cosine distance to the
// probe, using the pgvector HNSW index.
func (s *Store) NearestN(ctx context.Context, probe []float32, limit int) ([]database.ScoredIdentity, error) {
	if err := database.ValidateDescriptor(probe, s.Dim()); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	query := `
		SELECT identity_id, display_name, descriptor, created_at, embedding <=> $1 AS distance
		FROM identities
		ORDER BY embedding <=> $1
		LIMIT $2
	`
	rows, err := s.DB().QueryContext(ctx, query, pgvector.NewVector(probe), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres nearest identities: %w: %w", database.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var results []database.ScoredIdentity
	for rows.Next() {
		var distance float64
		identity, err := sqlstore.ScanIdentity(scanWithDistance{rows: rows, distance: &distance})
		if err != nil {
			return nil, fmt.Errorf("postgres scan nearest identity: %w", err)
		}
		results = append(results, database.ScoredIdentity{Identity: *identity, Distance: distance})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres iterate nearest identities: %w: %w", database.ErrStoreUnavailable, err)
	}
	return results, nil
}

// scanWithDistance appends the trailing distance column to the shared scan.
type scanWithDistance struct {
	rows interface {
		Scan(dest ...any) error
	}
	distance *float64
}

func (s scanWithDistance) Scan(dest ...any) error {
	return s.rows.Scan(append(dest, s.distance)...)
}
