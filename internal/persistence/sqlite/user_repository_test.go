package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/fieldservice/internal/persistence"
)

func TestUserRepository_CreateAndGet(t *testing.T) {
	pool := openTestPool(t)
	repo := NewUserRepository(pool)

	ctx := context.Background()
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	user := persistence.User{
		ID:           "user1",
		Email:        "Tech@Example.com",
		DisplayName:  "Test Tech",
		Role:         "technician",
		PasswordHash: "hashed_password",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	retrieved, err := repo.GetUser(ctx, "user1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if retrieved.Email != "tech@example.com" {
		t.Errorf("Expected lowercased email, got %q", retrieved.Email)
	}
	if retrieved.Role != "technician" {
		t.Errorf("Expected role technician, got %s", retrieved.Role)
	}
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	pool := openTestPool(t)
	repo := NewUserRepository(pool)

	ctx := context.Background()
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	user := persistence.User{
		ID:           "user1",
		Email:        "tech@example.com",
		DisplayName:  "Test Tech",
		Role:         "technician",
		PasswordHash: "hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	user.ID = "user2"
	user.Email = "TECH@example.com"
	if err := repo.CreateUser(ctx, user); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("Expected ErrDuplicate, got %v", err)
	}
}

func TestUserRepository_GetUserByEmail_CaseInsensitive(t *testing.T) {
	pool := openTestPool(t)
	seedUser(t, pool, "tech1")
	repo := NewUserRepository(pool)

	retrieved, err := repo.GetUserByEmail(context.Background(), "TECH1@EXAMPLE.COM")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if retrieved.ID != "tech1" {
		t.Errorf("Expected ID tech1, got %s", retrieved.ID)
	}
}

func TestUserRepository_DeleteUser(t *testing.T) {
	pool := openTestPool(t)
	seedUser(t, pool, "tech1")
	repo := NewUserRepository(pool)

	ctx := context.Background()
	if err := repo.DeleteUser(ctx, "tech1"); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}
	if _, err := repo.GetUser(ctx, "tech1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.DeleteUser(ctx, "tech1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for second delete, got %v", err)
	}
}
