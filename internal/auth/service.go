// Package auth registers users, checks their passwords and issues the
// session tokens every API call carries.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"budgetplaner/internal/core"
	"budgetplaner/internal/ports"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	minNameLen     = 2
	minPasswordLen = 6
	// bcrypt ignores input beyond 72 bytes.
	maxPasswordLen = 72
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrShortName          = fmt.Errorf("name must have at least %d characters", minNameLen)
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrShortPassword      = fmt.Errorf("password must have at least %d characters", minPasswordLen)
	ErrLongPassword       = fmt.Errorf("password must not exceed %d bytes", maxPasswordLen)
	ErrInvalidRole        = errors.New("role must be ADMIN or USER")
)

type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r Registration) normalize() Registration {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	return r
}

func (r Registration) Validate() error {
	if utf8.RuneCountInString(r.Name) < minNameLen {
		return ErrShortName
	}
	addr, err := mail.ParseAddress(r.Email)
	if err != nil || addr.Address != r.Email {
		return ErrInvalidEmail
	}
	if len(r.Password) < minPasswordLen {
		return ErrShortPassword
	}
	if len(r.Password) > maxPasswordLen {
		return ErrLongPassword
	}
	return nil
}

// Session is the result of a successful login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      core.User `json:"user"`
}

type Service struct {
	users  ports.UserStore
	tokens *Tokens
	cost   int
	now    func() time.Time
}

// NewService hashes with cost, or bcrypt.DefaultCost when cost is out of
// range.
func NewService(users ports.UserStore, tokens *Tokens, cost int) *Service {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Service{users: users, tokens: tokens, cost: cost, now: time.Now}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Register creates a user with role USER.
func (s *Service) Register(ctx context.Context, r Registration) (core.User, error) {
	return s.CreateUser(ctx, r, core.RoleUser)
}

// CreateUser creates a user with the given role. A taken email is a
// conflict.
func (s *Service) CreateUser(ctx context.Context, r Registration, role core.Role) (core.User, error) {
	r = r.normalize()
	if err := r.Validate(); err != nil {
		return core.User{}, core.Invalid(err)
	}
	if !role.Valid() {
		return core.User{}, core.Invalid(ErrInvalidRole)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), s.cost)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}

	u := core.User{
		ID:           uuid.NewString(),
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return core.User{}, core.StoreFailure(err)
	}

	slog.InfoContext(ctx, "User created", "owner_id", u.ID, "role", u.Role)
	return u, nil
}

// Login checks the password and issues a session token. Unknown emails and
// wrong passwords fail alike.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if core.IsNotFound(err) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, core.StoreFailure(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		slog.WarnContext(ctx, "Failed login", "owner_id", u.ID)
		return Session{}, ErrInvalidCredentials
	}

	token, expires, err := s.tokens.Issue(u)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: expires, User: u}, nil
}

// Promote grants ADMIN to the user with email.
func (s *Service) Promote(ctx context.Context, email string) (core.User, error) {
	u, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return core.User{}, core.StoreFailure(err)
	}
	if u.Role == core.RoleAdmin {
		return u, nil
	}
	if err := s.users.UpdateUserRole(ctx, u.ID, core.RoleAdmin); err != nil {
		return core.User{}, core.StoreFailure(err)
	}
	u.Role = core.RoleAdmin
	slog.InfoContext(ctx, "User promoted", "owner_id", u.ID)
	return u, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]core.UserSummary, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, core.StoreFailure(err)
	}
	return users, nil
}

// Tokens returns the issuer used to verify sessions.
func (s *Service) Tokens() *Tokens { return s.tokens }
