package database

import (
	"slices"
	"time"
)

// Identity represents an enrolled person stored in the database
type Identity struct {
	ID         int64
	Name       string
	Descriptor []float32
	CreatedAt  time.Time
}

// Clone returns a deep copy so callers can hold it past later store writes.
func (i Identity) Clone() Identity {
	i.Descriptor = slices.Clone(i.Descriptor)
	return i
}

// ScoredIdentity pairs an identity with its cosine distance to a probe.
type ScoredIdentity struct {
	Identity Identity
	Distance float64
}
