package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/fieldservice/internal/persistence"
)

func newTestSession(id, userID, token string, expiresAt time.Time) persistence.Session {
	return persistence.Session{
		ID:        id,
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: expiresAt.Add(-24 * time.Hour),
	}
}

func TestSessionRepository_CreateAndGet(t *testing.T) {
	pool := openTestPool(t)
	seedUser(t, pool, "tech1")
	repo := NewSessionRepository(pool)

	ctx := context.Background()
	expires := time.Date(2025, 3, 2, 8, 0, 0, 0, time.UTC)

	if _, err := repo.CreateSession(ctx, newTestSession("s1", "tech1", "token-1", expires)); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	session, err := repo.GetSession(ctx, "token-1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if session.UserID != "tech1" {
		t.Errorf("Expected user tech1, got %s", session.UserID)
	}
	if session.RevokedAt != nil {
		t.Errorf("Expected no revocation, got %v", session.RevokedAt)
	}
}

func TestSessionRepository_RevokeSession(t *testing.T) {
	pool := openTestPool(t)
	seedUser(t, pool, "tech1")
	repo := NewSessionRepository(pool)

	ctx := context.Background()
	expires := time.Date(2025, 3, 2, 8, 0, 0, 0, time.UTC)
	if _, err := repo.CreateSession(ctx, newTestSession("s1", "tech1", "token-1", expires)); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	revokedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	revoked, err := repo.RevokeSession(ctx, "token-1", revokedAt)
	if err != nil {
		t.Fatalf("RevokeSession failed: %v", err)
	}
	if revoked.RevokedAt == nil || !revoked.RevokedAt.Equal(revokedAt) {
		t.Errorf("Expected revoked at %v, got %v", revokedAt, revoked.RevokedAt)
	}

	if _, err := repo.RevokeSession(ctx, "token-1", revokedAt); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for already revoked session, got %v", err)
	}
}

func TestSessionRepository_DeleteExpiredSessions(t *testing.T) {
	pool := openTestPool(t)
	seedUser(t, pool, "tech1")
	repo := NewSessionRepository(pool)

	ctx := context.Background()
	expired := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	live := time.Date(2025, 3, 9, 8, 0, 0, 0, time.UTC)

	if _, err := repo.CreateSession(ctx, newTestSession("s1", "tech1", "token-old", expired)); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if _, err := repo.CreateSession(ctx, newTestSession("s2", "tech1", "token-new", live)); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	reference := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	if err := repo.DeleteExpiredSessions(ctx, reference); err != nil {
		t.Fatalf("DeleteExpiredSessions failed: %v", err)
	}

	if _, err := repo.GetSession(ctx, "token-old"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("Expected expired session to be deleted, got %v", err)
	}
	if _, err := repo.GetSession(ctx, "token-new"); err != nil {
		t.Fatalf("Expected live session to remain: %v", err)
	}
}
