package identity

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

var (
	ErrInvalidCredentials  = errors.New("Invalid credentials")
	ErrInvalidRegistration = errors.New("username, email and password are required")
	ErrWeakPassword        = errors.New("password must be at least 6 characters")
)

// Service manages the account lifecycle.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a new identity service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Register creates a user with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, reg Registration) (User, error) {
	username := strings.TrimSpace(reg.Username)
	email := strings.TrimSpace(strings.ToLower(reg.Email))
	if username == "" || email == "" || reg.Password == "" {
		return User{}, ErrInvalidRegistration
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return User{}, ErrInvalidRegistration
	}
	if len(reg.Password) < minPasswordLength {
		return User{}, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	now := s.now().UTC()
	user := User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		LastActive:   now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

// Authenticate verifies the password and records the login.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (User, error) {
	user, err := s.repo.FindByUsername(ctx, strings.TrimSpace(creds.Username))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(creds.Password)); err != nil {
		return User{}, ErrInvalidCredentials
	}

	user.LastActive = s.now().UTC()
	if err := s.repo.TouchLogin(ctx, user.ID, user.LastActive); err != nil {
		return User{}, err
	}
	return user, nil
}

// Get returns the user with id.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}
