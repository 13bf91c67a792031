// Package service holds the authentication business logic: local
// credential verification and federated identity resolution. It sits between
// the HTTP handlers and the repository:
//
//	handler (HTTP) → service (rules) → repository (storage)
//
// Services return typed apperror failures and never touch HTTP concerns;
// the handler layer owns status codes and redirects.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/study-assistant/internal/apperror"
	"github.com/sakif/study-assistant/internal/auth"
	"github.com/sakif/study-assistant/internal/model"
	"github.com/sakif/study-assistant/internal/repository"
)

// CredentialService implements local email/password authentication.
type CredentialService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewCredentialService creates a CredentialService.
func NewCredentialService(
	users repository.UserRepository,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *CredentialService {
	return &CredentialService{
		users:     users,
		passwords: passwords,
		logger:    logger,
	}
}

// Register creates a local account with a derived password hash and the
// default user role. A taken email returns apperror.ErrConflict.
func (s *CredentialService) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	if name == "" {
		return nil, apperror.ValidationFailed("name", "Name is required")
	}
	if email == "" {
		return nil, apperror.ValidationFailed("email", "Email is required")
	}
	if password == "" {
		return nil, apperror.ValidationFailed("password", "Password is required")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/credentials: hashing password: %w", err)
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleUser,
	}

	// The store's UNIQUE constraint on email is the duplicate check — no
	// racy lookup-then-insert here.
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("service/credentials: creating user (email=%s): %w", email, err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)

	return user, nil
}

// Login verifies an email/password pair.
//
// Unknown email, federated-only account (no password set), and wrong
// password all return the identical apperror.ErrInvalidCredentials — the
// response gives no hint which field was wrong, so it can't be used to
// enumerate accounts.
func (s *CredentialService) Login(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.InvalidCredentials()
		}
		return nil, fmt.Errorf("service/credentials: looking up user by email: %w", err)
	}

	if user.PasswordHash == "" {
		return nil, apperror.InvalidCredentials()
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, apperror.InvalidCredentials()
	}

	s.logger.Info("user logged in",
		slog.String("userID", user.ID),
	)

	return user, nil
}
