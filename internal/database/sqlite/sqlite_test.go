package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/facegate/internal/database"
)

const testDim = 4

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "facegate.db")
	store, err := Open(context.Background(), path, testDim)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, path
}

func TestInsertGetRoundTrip(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	desc := []float32{0.1, -0.25, 1e-7, 3.5}
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := store.Insert(ctx, database.Identity{ID: 1, Name: "Alice", Descriptor: desc, CreatedAt: created}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := store.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "Alice" {
		t.Errorf("Name = %q, want Alice", got.Name)
	}
	for i := range desc {
		if got.Descriptor[i] != desc[i] {
			t.Errorf("Descriptor[%d] = %v, want %v", i, got.Descriptor[i], desc[i])
		}
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}
}

func TestInsertDuplicate(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	if err := store.Insert(ctx, database.Identity{ID: 7, Name: "Bob", Descriptor: make([]float32, testDim)}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	err := store.Insert(ctx, database.Identity{ID: 7, Name: "Other", Descriptor: make([]float32, testDim)})
	if !errors.Is(err, database.ErrDuplicateIdentity) {
		t.Fatalf("expected ErrDuplicateIdentity, got %v", err)
	}

	got, err := store.Get(ctx, 7)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "Bob" {
		t.Errorf("existing record changed: Name = %q", got.Name)
	}
}

func TestInsertInvalidDescriptor(t *testing.T) {
	store, _ := openTestStore(t)

	err := store.Insert(context.Background(), database.Identity{ID: 1, Name: "Short", Descriptor: []float32{1, 2}})
	if !errors.Is(err, database.ErrInvalidDescriptor) {
		t.Fatalf("expected ErrInvalidDescriptor, got %v", err)
	}
	count, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Errorf("Count = %d, want 0", count)
	}
}

func TestGetAndDeleteNotFound(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Get(ctx, 99); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("Get: expected ErrNotFound, got %v", err)
	}
	if _, err := store.Delete(ctx, 99); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("Delete: expected ErrNotFound, got %v", err)
	}
}

func TestDeleteReturnsRemovedIdentity(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	for _, id := range []int64{3, 1, 2} {
		if err := store.Insert(ctx, database.Identity{ID: id, Name: "user", Descriptor: make([]float32, testDim)}); err != nil {
			t.Fatalf("Insert %d: %v", id, err)
		}
	}

	removed, err := store.Delete(ctx, 2)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if removed.ID != 2 {
		t.Errorf("removed ID = %d, want 2", removed.ID)
	}

	all, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 2 || all[0].ID != 1 || all[1].ID != 3 {
		t.Errorf("ListAll = %+v, want IDs [1 3]", all)
	}
}

func TestReopenKeepsCommittedRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facegate.db")
	ctx := context.Background()

	store, err := Open(ctx, path, testDim)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Insert(ctx, database.Identity{ID: 1, Name: "Alice", Descriptor: []float32{1, 0, 0, 0}}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	store.Close()

	reopened, err := Open(ctx, path, testDim)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	count, err := reopened.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Errorf("Count after reopen = %d, want 1", count)
	}
}

func TestConcurrentDuplicateInsert(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	const workers = 8
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		ok, dupes  int
		unexpected []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Insert(ctx, database.Identity{ID: 42, Name: "race", Descriptor: make([]float32, testDim)})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, database.ErrDuplicateIdentity):
				dupes++
			default:
				unexpected = append(unexpected, err)
			}
		}()
	}
	wg.Wait()

	if len(unexpected) > 0 {
		t.Fatalf("unexpected errors: %v", unexpected)
	}
	if ok != 1 || dupes != workers-1 {
		t.Errorf("ok = %d, dupes = %d; want 1 and %d", ok, dupes, workers-1)
	}
}

func TestOpenViaRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")
	store, err := database.Open(context.Background(), database.OpenOptions{URL: "sqlite://" + path, Dim: testDim})
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}
	defer store.Close()

	if store.Dim() != testDim {
		t.Errorf("Dim = %d, want %d", store.Dim(), testDim)
	}
}

func TestPathFromURL(t *testing.T) {
	tests := map[string]string{
		"facegate.db":               "facegate.db",
		"sqlite:///var/lib/f.db":    "/var/lib/f.db",
		"file:data/facegate.db":     "data/facegate.db",
		"sqlite://relative/path.db": "relative/path.db",
	}
	for in, want := range tests {
		if got := PathFromURL(in); got != want {
			t.Errorf("PathFromURL(%q) = %q, want %q", in, got, want)
		}
	}
}
