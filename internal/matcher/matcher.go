// Package matcher compares a probe descriptor against enrolled identities.
package matcher

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/kozaktomas/facegate/internal/constants"
	"github.com/kozaktomas/facegate/internal/database"
)

// Decision is the outcome of a match.
type Decision int

const (
	Deny Decision = iota
	Admit
)

func (d Decision) String() string {
	if d == Admit {
		return "admit"
	}
	return "deny"
}

// Result is the best candidate for a probe. Best is only set on Admit.
// Score is the smallest distance seen and is meaningless when HasScore is false.
type Result struct {
	Best     *database.Identity
	Score    float64
	HasScore bool
	Decision Decision
}

// Matcher decides whether a probe belongs to an enrolled identity.
type Matcher struct {
	// Threshold is the exclusive upper bound on distance for Admit.
	Threshold float64
	// Dim is the required probe length. Zero accepts any non-empty probe.
	Dim int
}

// New returns a matcher with the given threshold, falling back to the default
// when threshold is not positive.
func New(threshold float64, dim int) *Matcher {
	if threshold <= 0 {
		threshold = constants.DefaultMatchThreshold
	}
	return &Matcher{Threshold: threshold, Dim: dim}
}

func (m *Matcher) validate(probe []float32) error {
	if m.Dim > 0 {
		return database.ValidateDescriptor(probe, m.Dim)
	}
	if len(probe) == 0 {
		return fmt.Errorf("%w: empty probe", database.ErrInvalidDescriptor)
	}
	return database.ValidateDescriptor(probe, len(probe))
}

// FindBest scans all candidates and returns the closest one. Ties keep the
// first candidate seen. Candidates whose length differs from the probe are skipped.
func (m *Matcher) FindBest(probe []float32, candidates []database.Identity) (Result, error) {
	if err := m.validate(probe); err != nil {
		return Result{Decision: Deny}, err
	}

	best := -1
	bestScore := 0.0
	for i := range candidates {
		if len(candidates[i].Descriptor) != len(probe) {
			continue
		}
		score := CosineDistance(probe, candidates[i].Descriptor)
		if best < 0 || score < bestScore {
			best = i
			bestScore = score
		}
	}

	if best < 0 {
		return Result{Decision: Deny}, nil
	}

	result := Result{Score: bestScore, HasScore: true, Decision: Deny}
	if bestScore < m.Threshold {
		identity := candidates[best]
		result.Best = &identity
		result.Decision = Admit
	}
	return result, nil
}

// Rank returns up to k candidates ordered by ascending distance. Equal
// distances keep candidate order.
func (m *Matcher) Rank(probe []float32, candidates []database.Identity, k int) ([]database.ScoredIdentity, error) {
	if err := m.validate(probe); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	scored := make([]database.ScoredIdentity, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Descriptor) != len(probe) {
			continue
		}
		scored = append(scored, database.ScoredIdentity{Identity: c, Distance: CosineDistance(probe, c.Descriptor)})
	}
	slices.SortStableFunc(scored, func(a, b database.ScoredIdentity) int {
		return cmp.Compare(a.Distance, b.Distance)
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}
