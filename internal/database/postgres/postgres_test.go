//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kozaktomas/facegate/internal/database"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const testDim = 8

func setupTestContainer(t *testing.T) (*Store, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	store, err := Open(ctx, database.OpenOptions{URL: dbURL, Dim: testDim, MaxOpenConns: 5, MaxIdleConns: 2})
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to open store: %v", err)
	}

	cleanup := func() {
		store.Close()
		container.Terminate(ctx)
	}

	return store, cleanup
}

func unit(axis int) []float32 {
	v := make([]float32, testDim)
	v[axis] = 1
	return v
}

func TestIdentityStore(t *testing.T) {
	store, cleanup := setupTestContainer(t)
	if store == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()

	t.Run("InsertAndGet", func(t *testing.T) {
		desc := unit(0)
		desc[3] = 0.123456789
		if err := store.Insert(ctx, database.Identity{ID: 1, Name: "Alice", Descriptor: desc}); err != nil {
			t.Fatalf("Failed to insert identity: %v", err)
		}

		got, err := store.Get(ctx, 1)
		if err != nil {
			t.Fatalf("Failed to get identity: %v", err)
		}
		if got.Name != "Alice" {
			t.Errorf("Expected name 'Alice', got '%s'", got.Name)
		}
		for i := range desc {
			if got.Descriptor[i] != desc[i] {
				t.Errorf("Descriptor[%d] = %v, want %v", i, got.Descriptor[i], desc[i])
			}
		}
	})

	t.Run("Duplicate", func(t *testing.T) {
		err := store.Insert(ctx, database.Identity{ID: 1, Name: "Again", Descriptor: unit(1)})
		if !errors.Is(err, database.ErrDuplicateIdentity) {
			t.Errorf("Expected ErrDuplicateIdentity, got %v", err)
		}
	})

	t.Run("NearestN", func(t *testing.T) {
		if err := store.Insert(ctx, database.Identity{ID: 2, Name: "Bob", Descriptor: unit(1)}); err != nil {
			t.Fatalf("Failed to insert identity: %v", err)
		}

		results, err := store.NearestN(ctx, unit(1), 2)
		if err != nil {
			t.Fatalf("NearestN failed: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("Expected 2 results, got %d", len(results))
		}
		if results[0].Identity.ID != 2 {
			t.Errorf("Expected Bob first, got %d", results[0].Identity.ID)
		}
		if results[0].Distance > 1e-6 {
			t.Errorf("Expected distance ~0, got %f", results[0].Distance)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		removed, err := store.Delete(ctx, 2)
		if err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if removed.Name != "Bob" {
			t.Errorf("Expected removed 'Bob', got '%s'", removed.Name)
		}
		if _, err := store.Delete(ctx, 2); !errors.Is(err, database.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("MigrationsApplied", func(t *testing.T) {
		versions, err := store.MigrationsApplied(ctx)
		if err != nil {
			t.Fatalf("MigrationsApplied failed: %v", err)
		}
		if len(versions) == 0 {
			t.Error("Expected at least one applied migration")
		}
	})
}
