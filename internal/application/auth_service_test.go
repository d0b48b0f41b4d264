package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type fakeCredentialStore struct {
	byEmail map[string]UserCredentials
	byID    map[string]User
}

func (s *fakeCredentialStore) GetUserCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error) {
	creds, ok := s.byEmail[email]
	if !ok {
		return UserCredentials{}, ErrNotFound
	}
	return creds, nil
}

func (s *fakeCredentialStore) GetUser(ctx context.Context, id string) (User, error) {
	user, ok := s.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

type fakeSessionRepo struct {
	sessions map[string]Session
	expired  int
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]Session)}
}

func (r *fakeSessionRepo) CreateSession(ctx context.Context, session Session) (Session, error) {
	r.sessions[session.Token] = session
	return session, nil
}

func (r *fakeSessionRepo) GetSession(ctx context.Context, token string) (Session, error) {
	session, ok := r.sessions[token]
	if !ok {
		return Session{}, ErrNotFound
	}
	return session, nil
}

func (r *fakeSessionRepo) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error) {
	session, ok := r.sessions[token]
	if !ok || session.RevokedAt != nil {
		return Session{}, ErrNotFound
	}
	revoked := revokedAt
	session.RevokedAt = &revoked
	r.sessions[token] = session
	return session, nil
}

func (r *fakeSessionRepo) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	for token, session := range r.sessions {
		if !session.ExpiresAt.After(reference) {
			delete(r.sessions, token)
			r.expired++
		}
	}
	return nil
}

func plainVerifier(hashedPassword, password string) error {
	if hashedPassword != password {
		return ErrInvalidCredentials
	}
	return nil
}

func newAuthServiceFixture() (*AuthService, *fakeSessionRepo, *time.Time) {
	user := User{ID: "tech1", Email: "tech1@example.com", Role: RoleTechnician}
	store := &fakeCredentialStore{
		byEmail: map[string]UserCredentials{
			"tech1@example.com": {User: user, PasswordHash: "correct horse"},
		},
		byID: map[string]User{"tech1": user},
	}
	sessions := newFakeSessionRepo()
	current := testBase
	counter := 0
	tokenGen := func() string {
		counter++
		return fmt.Sprintf("token-%d", counter)
	}
	svc := NewAuthService(store, sessions, plainVerifier, tokenGen, func() time.Time { return current }, 8*time.Hour, nil)
	return svc, sessions, &current
}

func TestAuthService_Authenticate(t *testing.T) {
	t.Parallel()

	svc, _, _ := newAuthServiceFixture()
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{name: "success", email: "tech1@example.com", password: "correct horse"},
		{name: "case-insensitive email", email: "Tech1@Example.com", password: "correct horse"},
		{name: "wrong password", email: "tech1@example.com", password: "nope", wantErr: ErrInvalidCredentials},
		{name: "unknown email", email: "ghost@example.com", password: "correct horse", wantErr: ErrInvalidCredentials},
		{name: "empty password", email: "tech1@example.com", wantErr: ErrInvalidCredentials},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			result, err := svc.Authenticate(ctx, AuthenticateParams{Email: tc.email, Password: tc.password})
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("authenticate failed: %v", err)
			}
			if result.User.ID != "tech1" {
				t.Fatalf("expected tech1, got %s", result.User.ID)
			}
			if result.Session.Token == "" {
				t.Fatal("expected a session token")
			}
			if want := testBase.Add(8 * time.Hour); !result.Session.ExpiresAt.Equal(want) {
				t.Fatalf("expected expiry %v, got %v", want, result.Session.ExpiresAt)
			}
		})
	}
}

func TestAuthService_ValidateSession(t *testing.T) {
	t.Parallel()

	svc, sessions, current := newAuthServiceFixture()
	ctx := context.Background()

	result, err := svc.Authenticate(ctx, AuthenticateParams{Email: "tech1@example.com", Password: "correct horse"})
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	token := result.Session.Token

	principal, err := svc.ValidateSession(ctx, token)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if principal.UserID != "tech1" || principal.Role != RoleTechnician {
		t.Fatalf("unexpected principal: %+v", principal)
	}

	if _, err := svc.ValidateSession(ctx, "unknown"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown token, got %v", err)
	}

	*current = testBase.Add(9 * time.Hour)
	if _, err := svc.ValidateSession(ctx, token); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}

	*current = testBase
	revoked := testBase
	session := sessions.sessions[token]
	session.RevokedAt = &revoked
	sessions.sessions[token] = session
	if _, err := svc.ValidateSession(ctx, token); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked, got %v", err)
	}
}

func TestAuthService_RevokeSession(t *testing.T) {
	t.Parallel()

	svc, _, _ := newAuthServiceFixture()
	ctx := context.Background()

	result, err := svc.Authenticate(ctx, AuthenticateParams{Email: "tech1@example.com", Password: "correct horse"})
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}

	if err := svc.RevokeSession(ctx, result.Session.Token); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if _, err := svc.ValidateSession(ctx, result.Session.Token); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked after revoke, got %v", err)
	}
	if err := svc.RevokeSession(ctx, result.Session.Token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double revoke, got %v", err)
	}
}

func TestAuthService_AuthenticatePurgesExpiredSessions(t *testing.T) {
	t.Parallel()

	svc, sessions, _ := newAuthServiceFixture()
	ctx := context.Background()
	sessions.sessions["stale"] = Session{Token: "stale", UserID: "tech1", ExpiresAt: testBase.Add(-time.Hour)}

	if _, err := svc.Authenticate(ctx, AuthenticateParams{Email: "tech1@example.com", Password: "correct horse"}); err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if sessions.expired != 1 {
		t.Fatalf("expected one expired session purged, got %d", sessions.expired)
	}
	if _, ok := sessions.sessions["stale"]; ok {
		t.Fatal("expected the stale session to be gone")
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	t.Parallel()

	params := Argon2idParams{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	hash, err := CreatePasswordHash("hunter22", params)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}

	if err := VerifyPassword(hash, "hunter22"); err != nil {
		t.Fatalf("expected matching password to verify, got %v", err)
	}
	if err := VerifyPassword(hash, "hunter23"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := VerifyPassword("not-a-hash", "hunter22"); !errors.Is(err, ErrInvalidPasswordHash) {
		t.Fatalf("expected ErrInvalidPasswordHash, got %v", err)
	}
}
