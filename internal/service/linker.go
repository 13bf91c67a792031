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

// IdentityLinker resolves a federated identity assertion to exactly one
// user record, creating or linking as needed.
//
// Resolution order, first match wins:
//
//  1. Provider-ID match — the returning-user fast path. The record comes
//     back unchanged, so repeated sign-ins are idempotent.
//  2. Email link — the provider asserted an email that belongs to an
//     existing (local or other-provider) account; attach the provider ID to
//     that account. The attach is a single conditional update at the store,
//     applied only while the field is still unset.
//  3. Create — nothing matched; create a fresh account with the profile's
//     name (display name, else username, else a provider literal) and email
//     (else a synthesized "{provider}_{id}@noemail.com" placeholder).
//
// The store's UNIQUE constraints arbitrate races: when a concurrent request
// creates or links the same identity first, this request's write fails with
// ErrConflict and resolution restarts from step 1, where the lookup now
// succeeds.
type IdentityLinker struct {
	users  repository.UserRepository
	logger *slog.Logger
}

// NewIdentityLinker creates an IdentityLinker.
func NewIdentityLinker(users repository.UserRepository, logger *slog.Logger) *IdentityLinker {
	return &IdentityLinker{
		users:  users,
		logger: logger,
	}
}

// Resolve maps the profile to a user, creating or linking as needed.
func (l *IdentityLinker) Resolve(ctx context.Context, profile *auth.Profile) (*model.User, error) {
	if profile == nil {
		return nil, fmt.Errorf("service/linker: profile must not be nil")
	}
	if profile.Provider != auth.ProviderGoogle && profile.Provider != auth.ProviderGithub {
		return nil, fmt.Errorf("service/linker: unknown provider %q", profile.Provider)
	}
	if profile.ProviderUserID == "" {
		return nil, fmt.Errorf("service/linker: profile has no provider user ID")
	}

	// One retry: a conflict means a concurrent request won a create or link
	// race, so the lookups are guaranteed to see its row on the next pass.
	const maxAttempts = 2
	for attempt := 1; ; attempt++ {
		user, err := l.resolveOnce(ctx, profile)
		if err == nil {
			return user, nil
		}
		if errors.Is(err, apperror.ErrConflict) && attempt < maxAttempts {
			l.logger.Info("identity resolution lost a race, retrying",
				slog.String("provider", profile.Provider),
				slog.String("providerUserID", profile.ProviderUserID),
			)
			continue
		}
		return nil, err
	}
}

// resolveOnce walks the three resolution steps a single time.
func (l *IdentityLinker) resolveOnce(ctx context.Context, profile *auth.Profile) (*model.User, error) {
	// Step 1: provider-ID match.
	user, err := l.users.GetByProviderID(ctx, profile.Provider, profile.ProviderUserID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/linker: provider-ID lookup: %w", err)
	}

	// Step 2: email link.
	if profile.Email != "" {
		user, err = l.users.LinkProviderID(ctx, profile.Email, profile.Provider, profile.ProviderUserID)
		if err == nil {
			l.logger.Info("linked provider to existing account",
				slog.String("userID", user.ID),
				slog.String("provider", profile.Provider),
			)
			return user, nil
		}
		if !errors.Is(err, apperror.ErrNotFound) {
			// ErrConflict included: the provider ID landed on another
			// account between our lookup and the update. Caller retries.
			return nil, fmt.Errorf("service/linker: linking by email: %w", err)
		}
		// No linkable account with that email — fall through to create.
	}

	// Step 3: create.
	user = &model.User{
		Name:  fallbackName(profile),
		Email: profile.Email,
		Role:  model.RoleUser,
	}
	if user.Email == "" {
		// GitHub lets users hide their email. The placeholder keeps the
		// unique-email invariant; it is non-deliverable on purpose, and
		// collision-free because provider user IDs are unique per provider.
		user.Email = fmt.Sprintf("%s_%s@noemail.com", profile.Provider, profile.ProviderUserID)
	}
	switch profile.Provider {
	case auth.ProviderGoogle:
		user.GoogleID = profile.ProviderUserID
	case auth.ProviderGithub:
		user.GithubID = profile.ProviderUserID
	}

	if err := l.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("service/linker: creating user: %w", err)
	}

	l.logger.Info("created account from federated sign-in",
		slog.String("userID", user.ID),
		slog.String("provider", profile.Provider),
	)

	return user, nil
}

// fallbackName picks the account display name from the profile.
// Never empty: display name, else username, else a provider literal.
func fallbackName(profile *auth.Profile) string {
	if profile.DisplayName != "" {
		return profile.DisplayName
	}
	if profile.Username != "" {
		return profile.Username
	}
	if profile.Provider == auth.ProviderGithub {
		return "GitHub User"
	}
	return "Google User"
}
