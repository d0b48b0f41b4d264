package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/fieldservice/internal/persistence"
)

func openTestPool(t *testing.T) *ConnectionPool {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	pool, err := Open("file:" + dbPath)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		_ = pool.Close()
	})

	if err := pool.Migrate(context.Background()); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return pool
}

func seedUser(t *testing.T, pool *ConnectionPool, id string) {
	t.Helper()

	repo := NewUserRepository(pool)
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	err := repo.CreateUser(context.Background(), persistence.User{
		ID:           id,
		Email:        id + "@example.com",
		DisplayName:  "User " + id,
		Role:         "technician",
		PasswordHash: "hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("Failed to seed user %s: %v", id, err)
	}
}

func seedWorkOrder(t *testing.T, pool *ConnectionPool, id, status string) {
	t.Helper()

	repo := NewWorkOrderRepository(pool)
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	err := repo.CreateWorkOrder(context.Background(), persistence.WorkOrder{
		ID:        id,
		Title:     "Order " + id,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("Failed to seed work order %s: %v", id, err)
	}
}

func TestConnectionPool_MigrateIsIdempotent(t *testing.T) {
	pool := openTestPool(t)

	if err := pool.Migrate(context.Background()); err != nil {
		t.Fatalf("Second migrate failed: %v", err)
	}
}
