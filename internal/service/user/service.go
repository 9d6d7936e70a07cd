package user

import (
	"context"
	"errors"
	"time"

	"log/slog"

	"github.com/PPRAMANIK62/e-commerce-modified/internal/domain"
	"github.com/PPRAMANIK62/e-commerce-modified/internal/repository"
	"github.com/PPRAMANIK62/e-commerce-modified/pkg/crypto"
)

// ErrAdminProtected indicates the target account is admin-flagged and
// cannot be deleted through the admin endpoint.
var ErrAdminProtected = errors.New("cannot delete admin user")

// Service handles profile self-service and admin user management.
type Service struct {
	users  repository.UserRepository
	logger *slog.Logger
}

// New constructs a Service.
func New(users repository.UserRepository, logger *slog.Logger) Service {
	return Service{users: users, logger: logger}
}

// Get returns a user by identifier.
func (s Service) Get(ctx context.Context, id string) (*domain.User, error) {
	return s.users.GetUserByID(ctx, id)
}

// List returns all user records.
func (s Service) List(ctx context.Context) ([]domain.User, error) {
	return s.users.ListUsers(ctx)
}

// UpdateProfileInput carries optional self-update fields. Empty strings
// keep the stored value.
type UpdateProfileInput struct {
	Username string
	Email    string
	Password string
}

// UpdateProfile applies a self-update. A new password is re-hashed.
func (s Service) UpdateProfile(ctx context.Context, id string, in UpdateProfileInput) (*domain.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Username != "" {
		user.Username = in.Username
	}
	if in.Email != "" {
		user.Email = in.Email
	}
	if in.Password != "" {
		hash, err := crypto.HashPassword(in.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	user.UpdatedAt = time.Now().UTC()
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("profile updated", "user_id", user.ID)
	return user, nil
}

// AdminUpdateInput carries optional admin-update fields. There is no
// password path at this endpoint. A nil IsAdmin keeps the stored flag.
type AdminUpdateInput struct {
	Username string
	Email    string
	IsAdmin  *bool
}

// AdminUpdate applies an admin edit to another account.
func (s Service) AdminUpdate(ctx context.Context, id string, in AdminUpdateInput) (*domain.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Username != "" {
		user.Username = in.Username
	}
	if in.Email != "" {
		user.Email = in.Email
	}
	if in.IsAdmin != nil {
		user.IsAdmin = *in.IsAdmin
	}
	user.UpdatedAt = time.Now().UTC()
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user updated by admin", "user_id", user.ID)
	return user, nil
}

// Delete removes an account. Admin-flagged accounts are refused.
func (s Service) Delete(ctx context.Context, id string) error {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if user.IsAdmin {
		return ErrAdminProtected
	}
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user removed", "user_id", id)
	return nil
}
