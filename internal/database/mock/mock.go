// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/facegate/internal/database"
)

// MockIdentityStore is an in-memory implementation of database.IdentityStore
type MockIdentityStore struct {
	mu         sync.RWMutex
	identities map[int64]database.Identity
	dim        int

	// Error injection
	GetError     error
	ListAllError error
	CountError   error
	InsertError  error
	DeleteError  error
}

// NewMockIdentityStore creates a new mock store enforcing the given descriptor length
func NewMockIdentityStore(dim int) *MockIdentityStore {
	return &MockIdentityStore{
		identities: make(map[int64]database.Identity),
		dim:        dim,
	}
}

// Get retrieves an identity by ID
func (m *MockIdentityStore) Get(ctx context.Context, id int64) (*database.Identity, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	identity, ok := m.identities[id]
	if !ok {
		return nil, fmt.Errorf("identity %d: %w", id, database.ErrNotFound)
	}
	cp := identity.Clone()
	return &cp, nil
}

// ListAll returns a deep copy of all identities ordered by ID
func (m *MockIdentityStore) ListAll(ctx context.Context) ([]database.Identity, error) {
	if m.ListAllError != nil {
		return nil, m.ListAllError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]database.Identity, 0, len(m.identities))
	for _, identity := range m.identities {
		result = append(result, identity.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Count returns the number of identities
func (m *MockIdentityStore) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.identities), nil
}

// Insert stores an identity; the map write happens under the lock so concurrent
// inserts of the same ID resolve to exactly one winner.
func (m *MockIdentityStore) Insert(ctx context.Context, identity database.Identity) error {
	if m.InsertError != nil {
		return m.InsertError
	}
	if err := database.ValidateDescriptor(identity.Descriptor, m.dim); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.identities[identity.ID]; exists {
		return fmt.Errorf("identity %d: %w", identity.ID, database.ErrDuplicateIdentity)
	}
	stored := identity.Clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	m.identities[identity.ID] = stored
	return nil
}

// Delete removes an identity and returns it
func (m *MockIdentityStore) Delete(ctx context.Context, id int64) (*database.Identity, error) {
	if m.DeleteError != nil {
		return nil, m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.identities[id]
	if !ok {
		return nil, fmt.Errorf("identity %d: %w", id, database.ErrNotFound)
	}
	delete(m.identities, id)
	return &identity, nil
}

// Dim returns the enforced descriptor length
func (m *MockIdentityStore) Dim() int {
	return m.dim
}

// Close is a no-op
func (m *MockIdentityStore) Close() error {
	return nil
}

// AddIdentity adds an identity directly, bypassing validation
func (m *MockIdentityStore) AddIdentity(identity database.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identities[identity.ID] = identity.Clone()
}

var _ database.IdentityStore = (*MockIdentityStore)(nil)
