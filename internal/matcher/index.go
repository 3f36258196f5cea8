package matcher

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/facegate/internal/database"
)

// hnswMaxNeighbors is the M parameter of the graph.
const hnswMaxNeighbors = 16

// ErrIndexEmpty is returned when searching an index with no identities.
var ErrIndexEmpty = errors.New("index not initialized")

// Index wraps an HNSW graph for approximate nearest-identity search.
// Deleted identities stay in the graph as tombstones and are filtered out
// through the identities map.
type Index struct {
	graph      *hnsw.Graph[int64]
	identities map[int64]database.Identity
	fixedDim   int
	dim        int
	mu         sync.RWMutex
}

// NewIndex creates a new empty index for descriptors of length dim. With
// dim 0 the first indexed descriptor decides the length.
func NewIndex(dim int) *Index {
	return &Index{
		identities: make(map[int64]database.Identity),
		fixedDim:   dim,
		dim:        dim,
	}
}

func newGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.CosineDistance
	return g
}

// Build replaces the index contents with the given identities.
func (x *Index) Build(identities []database.Identity) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.resetLocked()
	x.addLocked(identities)
}

func (x *Index) resetLocked() {
	x.graph = nil
	x.dim = x.fixedDim
	x.identities = make(map[int64]database.Identity)
}

// addLocked indexes identities, skipping descriptors of the wrong length.
func (x *Index) addLocked(identities []database.Identity) {
	for _, identity := range identities {
		n := len(identity.Descriptor)
		if n == 0 {
			continue
		}
		if x.dim == 0 {
			x.dim = n
		}
		if n != x.dim {
			continue
		}

		x.identities[identity.ID] = identity.Clone()
		if x.graph == nil {
			x.graph = newGraph()
		}
		if _, ok := x.graph.Lookup(identity.ID); ok {
			// Re-enrolled id: its old node is still in the graph.
			x.rebuildGraphLocked()
			continue
		}
		x.graph.Add(hnsw.MakeNode(identity.ID, identity.Descriptor))
	}
}

// rebuildGraphLocked recreates the graph from the live identities, dropping tombstones.
func (x *Index) rebuildGraphLocked() {
	ids := make([]int64, 0, len(x.identities))
	for id := range x.identities {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	x.graph = newGraph()
	for _, id := range ids {
		x.graph.Add(hnsw.MakeNode(id, x.identities[id].Descriptor))
	}
}

// Add inserts a single identity.
func (x *Index) Add(identity database.Identity) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.addLocked([]database.Identity{identity})
}

// Delete removes an identity from search results. The graph node is kept
// because the graph cannot drop its last node safely.
func (x *Index) Delete(id int64) {
	x.mu.Lock()
	defer x.mu.Unlock()

	delete(x.identities, id)
	if len(x.identities) == 0 {
		x.resetLocked()
	}
}

// Len returns the number of indexed identities.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.identities)
}

// Search returns up to k identities closest to the probe, ordered by exact
// cosine distance.
func (x *Index) Search(probe []float32, k int) ([]database.ScoredIdentity, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.graph == nil || len(x.identities) == 0 {
		return nil, ErrIndexEmpty
	}
	if len(probe) != x.dim {
		return nil, fmt.Errorf("%w: probe has %d components, index holds %d",
			database.ErrInvalidDescriptor, len(probe), x.dim)
	}
	if k <= 0 {
		return nil, nil
	}

	// Ask for extra neighbors so tombstones do not crowd out live identities.
	tombstones := max(x.graph.Len()-len(x.identities), 0)
	neighbors := x.graph.Search(probe, k+tombstones)
	results := make([]database.ScoredIdentity, 0, k)
	for _, n := range neighbors {
		identity, ok := x.identities[n.Key]
		if !ok {
			continue
		}
		results = append(results, database.ScoredIdentity{
			Identity: identity.Clone(),
			Distance: CosineDistance(probe, n.Value),
		})
	}
	slices.SortStableFunc(results, func(a, b database.ScoredIdentity) int {
		return cmp.Compare(a.Distance, b.Distance)
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Save persists the graph to path with a temp file and rename.
func (x *Index) Save(path string) error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if path == "" {
		return nil
	}
	if x.graph == nil {
		// Remove existing file if index is empty (best-effort cleanup).
		_ = os.Remove(path)
		return nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := x.graph.Export(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("exporting HNSW graph: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync HNSW index file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close HNSW index file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename HNSW index file: %w", err)
	}
	return nil
}

// Load restores a saved graph and attaches the given identities to it.
// A missing or stale file falls back to building from identities; the
// returned bool reports whether the saved graph was used.
func (x *Index) Load(path string, identities []database.Identity) (bool, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		x.Build(identities)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load HNSW index: %w", err)
	}
	defer f.Close()

	g := newGraph()
	if err := g.Import(f); err != nil {
		return false, fmt.Errorf("importing HNSW graph: %w", err)
	}

	if g.Len() != len(identities) {
		x.Build(identities)
		return false, nil
	}
	for _, identity := range identities {
		if _, ok := g.Lookup(identity.ID); !ok {
			x.Build(identities)
			return false, nil
		}
	}

	dim := x.fixedDim
	for _, identity := range identities {
		if dim == 0 {
			dim = len(identity.Descriptor)
		}
		if len(identity.Descriptor) != dim {
			x.Build(identities)
			return false, nil
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.graph = g
	x.dim = dim
	x.identities = make(map[int64]database.Identity, len(identities))
	for _, identity := range identities {
		x.identities[identity.ID] = identity.Clone()
	}
	return true, nil
}
