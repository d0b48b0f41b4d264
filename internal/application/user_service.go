package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/example/fieldservice/internal/persistence"
)

// UserRepository captures the persistence interactions needed by the service.
type UserRepository interface {
	CreateUser(ctx context.Context, user User, passwordHash string) error
	GetUser(ctx context.Context, id string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id string) error
}

// UserService manages the employee directory. Creation and deletion are
// restricted to admins; every punch and work order references these accounts.
type UserService struct {
	users       UserRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewUserService wires dependencies for user operations.
func NewUserService(users UserRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *UserService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{
		users:       users,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// CreateUser validates and stores a new account. Admin only.
func (s *UserService) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	if s == nil || s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}

	if params.Principal.Role != RoleAdmin {
		return User{}, ErrForbidden
	}

	input := params.Input
	vErr := &ValidationError{}

	email := strings.TrimSpace(strings.ToLower(input.Email))
	if email == "" {
		vErr.add("email", "email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		vErr.add("email", "email is invalid")
	}

	if strings.TrimSpace(input.DisplayName) == "" {
		vErr.add("display_name", "display name is required")
	}

	role := input.Role
	if role == "" {
		role = RoleTechnician
	}
	if !ValidRole(role) {
		vErr.add("role", "role must be technician, technical_advisor, or admin")
	}

	if len(input.Password) < 8 {
		vErr.add("password", "password must be at least 8 characters")
	}

	if vErr.HasErrors() {
		return User{}, vErr
	}

	hash, err := CreatePasswordHash(input.Password, DefaultArgon2idParams)
	if err != nil {
		return User{}, err
	}

	now := s.now()
	user := User{
		ID:          s.idGenerator(),
		Email:       email,
		DisplayName: strings.TrimSpace(input.DisplayName),
		Role:        role,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.users.CreateUser(ctx, user, hash); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			return User{}, ErrAlreadyExists
		}
		return User{}, err
	}

	serviceLogger(ctx, s.logger, "user", "create").
		InfoContext(ctx, "user created", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// GetUser retrieves a single account.
func (s *UserService) GetUser(ctx context.Context, id string) (User, error) {
	if s == nil || s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}
	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return user, nil
}

// ListUsers enumerates all accounts. Privileged roles only.
func (s *UserService) ListUsers(ctx context.Context, principal Principal) ([]User, error) {
	if s == nil || s.users == nil {
		return nil, fmt.Errorf("user repository not configured")
	}
	if !principal.Privileged() {
		return nil, ErrForbidden
	}
	return s.users.ListUsers(ctx)
}

// DeleteUser removes an account. Admin only; self-deletion is rejected.
func (s *UserService) DeleteUser(ctx context.Context, principal Principal, id string) error {
	if s == nil || s.users == nil {
		return fmt.Errorf("user repository not configured")
	}
	if principal.Role != RoleAdmin {
		return ErrForbidden
	}
	if principal.UserID == id {
		vErr := &ValidationError{}
		vErr.add("user_id", "cannot delete your own account")
		return vErr
	}
	if err := s.users.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
