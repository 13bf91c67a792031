// Package repository declares the storage interfaces the services depend on.
// Concrete implementations live in subpackages (sqlite).
package repository

import (
	"context"

	"github.com/sakif/study-assistant/internal/model"
)

// UserRepository is the identity store.
//
// Uniqueness of email, google_id, and github_id is enforced by the store
// itself, not by callers — a Create or LinkProviderID that loses a race
// against a concurrent request returns apperror.ErrConflict, and the caller
// re-resolves from the lookup path. Lookup misses return apperror.ErrNotFound.
type UserRepository interface {
	// Create inserts a new user, assigning ID and timestamps in place.
	Create(ctx context.Context, user *model.User) error

	// GetByID returns the user with the given internal ID.
	GetByID(ctx context.Context, id string) (*model.User, error)

	// GetByEmail returns the user with the given email, matched exactly as
	// stored (no case normalization).
	GetByEmail(ctx context.Context, email string) (*model.User, error)

	// GetByProviderID returns the user holding the given provider-scoped
	// identifier ("google" or "github").
	GetByProviderID(ctx context.Context, provider, providerUserID string) (*model.User, error)

	// LinkProviderID sets the provider-ID field on the user matching email,
	// in a single conditional update that only applies while the field is
	// still unset. Returns the updated user, or ErrNotFound when no row
	// matched (unknown email, or another request linked first).
	LinkProviderID(ctx context.Context, email, provider, providerUserID string) (*model.User, error)

	// List returns all users, newest first.
	List(ctx context.Context) ([]model.User, error)

	// Delete removes the user with the given ID.
	Delete(ctx context.Context, id string) error

	// Count returns the total number of users.
	Count(ctx context.Context) (int, error)
}
