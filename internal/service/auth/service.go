package auth

import (
	"context"
	"errors"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/PPRAMANIK62/e-commerce-modified/internal/domain"
	"github.com/PPRAMANIK62/e-commerce-modified/internal/repository"
	"github.com/PPRAMANIK62/e-commerce-modified/pkg/config"
	"github.com/PPRAMANIK62/e-commerce-modified/pkg/crypto"
	jwtpkg "github.com/PPRAMANIK62/e-commerce-modified/pkg/jwt"
)

var (
	// ErrInvalidCredentials covers every login failure mode: unknown
	// email, wrong password, missing record. Callers must surface it
	// identically so account existence cannot be probed.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("user already exists")
)

// Service handles registration, login and token authorization.
type Service struct {
	users  repository.UserRepository
	logger *slog.Logger
	cfg    config.Config
}

// New constructs a Service.
func New(users repository.UserRepository, logger *slog.Logger, cfg config.Config) Service {
	return Service{users: users, logger: logger, cfg: cfg}
}

// Register creates an account and issues a session token for it.
func (s Service) Register(ctx context.Context, username, email, password string) (*domain.User, string, error) {
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, "", ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, "", err
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, "", err
	}
	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Lost the race against a concurrent registration; the
			// unique constraint is the authority.
			return nil, "", ErrEmailTaken
		}
		return nil, "", err
	}
	token, err := jwtpkg.GenerateToken(user.ID, s.cfg.JWTSecret, s.cfg.SessionTTL)
	if err != nil {
		return nil, "", err
	}
	s.logger.Info("user registered", "user_id", user.ID)
	return user, token, nil
}

// Login authenticates credentials and issues a session token.
func (s Service) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if err := crypto.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", ErrInvalidCredentials
	}
	token, err := jwtpkg.GenerateToken(user.ID, s.cfg.JWTSecret, s.cfg.SessionTTL)
	if err != nil {
		return nil, "", err
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return user, token, nil
}

// Authorize validates a session token and loads the referenced user.
// Every request re-verifies and re-loads; a deleted account loses access
// on its next request.
func (s Service) Authorize(ctx context.Context, token string) (*domain.User, error) {
	claims, err := jwtpkg.Parse(token, s.cfg.JWTSecret)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// SessionTTL exposes the configured token validity window so the cookie
// lifetime can match it.
func (s Service) SessionTTL() time.Duration {
	return s.cfg.SessionTTL
}
