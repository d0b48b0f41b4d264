package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/example/fieldservice/internal/persistence"
)

type fakeUserRepo struct {
	users  map[string]User
	hashes map[string]string
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]User), hashes: make(map[string]string)}
}

func (r *fakeUserRepo) CreateUser(ctx context.Context, user User, passwordHash string) error {
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return persistence.ErrDuplicate
		}
	}
	r.users[user.ID] = user
	r.hashes[user.ID] = passwordHash
	return nil
}

func (r *fakeUserRepo) GetUser(ctx context.Context, id string) (User, error) {
	user, ok := r.users[id]
	if !ok {
		return User{}, persistence.ErrNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) ListUsers(ctx context.Context) ([]User, error) {
	var out []User
	for _, user := range r.users {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeUserRepo) DeleteUser(ctx context.Context, id string) error {
	if _, ok := r.users[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func newUserServiceFixture() (*UserService, *fakeUserRepo) {
	repo := newFakeUserRepo()
	counter := 0
	idGen := func() string {
		counter++
		return fmt.Sprintf("user-%d", counter)
	}
	svc := NewUserService(repo, idGen, func() time.Time { return testBase }, nil)
	return svc, repo
}

func admin(id string) Principal {
	return Principal{UserID: id, Role: RoleAdmin}
}

func TestUserService_CreateUser(t *testing.T) {
	t.Parallel()

	svc, repo := newUserServiceFixture()
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, CreateUserParams{
		Principal: advisor("adv1"),
		Input:     UserInput{Email: "new@example.com", DisplayName: "New Tech", Password: "longenough"},
	}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for advisor, got %v", err)
	}

	user, err := svc.CreateUser(ctx, CreateUserParams{
		Principal: admin("admin1"),
		Input:     UserInput{Email: "Tech3@Example.com", DisplayName: "Tech Three", Password: "longenough"},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if user.Email != "tech3@example.com" {
		t.Fatalf("expected lowercased email, got %s", user.Email)
	}
	if user.Role != RoleTechnician {
		t.Fatalf("expected default technician role, got %s", user.Role)
	}
	if hash := repo.hashes[user.ID]; hash == "" || hash == "longenough" {
		t.Fatalf("expected a derived password hash, got %q", hash)
	}

	if _, err := svc.CreateUser(ctx, CreateUserParams{
		Principal: admin("admin1"),
		Input:     UserInput{Email: "tech3@example.com", DisplayName: "Duplicate", Password: "longenough"},
	}); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestUserService_CreateUser_Validation(t *testing.T) {
	t.Parallel()

	svc, _ := newUserServiceFixture()
	ctx := context.Background()
	actor := admin("admin1")

	tests := []struct {
		name  string
		input UserInput
		field string
	}{
		{name: "missing email", input: UserInput{DisplayName: "A", Password: "longenough"}, field: "email"},
		{name: "invalid email", input: UserInput{Email: "not-an-email", DisplayName: "A", Password: "longenough"}, field: "email"},
		{name: "missing display name", input: UserInput{Email: "a@example.com", Password: "longenough"}, field: "display_name"},
		{name: "unknown role", input: UserInput{Email: "a@example.com", DisplayName: "A", Role: Role("boss"), Password: "longenough"}, field: "role"},
		{name: "short password", input: UserInput{Email: "a@example.com", DisplayName: "A", Password: "short"}, field: "password"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateUser(ctx, CreateUserParams{Principal: actor, Input: tc.input})
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if _, ok := vErr.FieldErrors[tc.field]; !ok {
				t.Fatalf("expected a %s field error, got %v", tc.field, vErr.FieldErrors)
			}
		})
	}
}

func TestUserService_ListUsers_PrivilegedOnly(t *testing.T) {
	t.Parallel()

	svc, repo := newUserServiceFixture()
	repo.users["tech1"] = User{ID: "tech1", Role: RoleTechnician}
	ctx := context.Background()

	if _, err := svc.ListUsers(ctx, technician("tech1")); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for technician, got %v", err)
	}
	users, err := svc.ListUsers(ctx, advisor("adv1"))
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected one user, got %d", len(users))
	}
}

func TestUserService_DeleteUser(t *testing.T) {
	t.Parallel()

	svc, repo := newUserServiceFixture()
	repo.users["tech1"] = User{ID: "tech1", Role: RoleTechnician}
	ctx := context.Background()

	if err := svc.DeleteUser(ctx, advisor("adv1"), "tech1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for advisor, got %v", err)
	}

	var vErr *ValidationError
	if err := svc.DeleteUser(ctx, admin("admin1"), "admin1"); !errors.As(err, &vErr) {
		t.Fatalf("expected validation error for self-deletion, got %v", err)
	}

	if err := svc.DeleteUser(ctx, admin("admin1"), "tech1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := svc.DeleteUser(ctx, admin("admin1"), "tech1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
