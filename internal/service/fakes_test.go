package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/sakif/study-assistant/internal/apperror"
	"github.com/sakif/study-assistant/internal/model"
)

// fakeUserRepo is an in-memory repository.UserRepository. A hand-written
// fake (not a mock framework) keeps the tests readable — what it does is
// exactly what you see. It mirrors the store's contract including the
// uniqueness conflicts and the conditional link, because the linker's race
// handling depends on those semantics.
type fakeUserRepo struct {
	users  map[string]*model.User // keyed by internal ID
	nextID int

	// set to simulate a storage failure
	failWith error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User), nextID: 1}
}

func (f *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	if f.failWith != nil {
		return f.failWith
	}
	for _, u := range f.users {
		if u.Email == user.Email {
			return apperror.Conflict("User already exists")
		}
		if user.GoogleID != "" && u.GoogleID == user.GoogleID {
			return apperror.Conflict("User already exists")
		}
		if user.GithubID != "" && u.GithubID == user.GithubID {
			return apperror.Conflict("User already exists")
		}
	}
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	f.nextID++
	if user.Role == "" {
		user.Role = model.RoleUser
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	if u, ok := f.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, apperror.NotFound("user", id)
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, u := range f.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUserRepo) GetByProviderID(ctx context.Context, provider, providerUserID string) (*model.User, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, u := range f.users {
		switch provider {
		case "google":
			if u.GoogleID == providerUserID {
				copied := *u
				return &copied, nil
			}
		case "github":
			if u.GithubID == providerUserID {
				copied := *u
				return &copied, nil
			}
		}
	}
	return nil, apperror.NotFound("user", providerUserID)
}

func (f *fakeUserRepo) LinkProviderID(ctx context.Context, email, provider, providerUserID string) (*model.User, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, u := range f.users {
		if u.Email != email {
			continue
		}
		// Conditional: only applies while the field is unset.
		switch provider {
		case "google":
			if u.GoogleID != "" {
				return nil, apperror.NotFound("user", email)
			}
			u.GoogleID = providerUserID
		case "github":
			if u.GithubID != "" {
				return nil, apperror.NotFound("user", email)
			}
			u.GithubID = providerUserID
		}
		u.UpdatedAt = time.Now()
		copied := *u
		return &copied, nil
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUserRepo) List(ctx context.Context) ([]model.User, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []model.User
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeUserRepo) Delete(ctx context.Context, id string) error {
	if f.failWith != nil {
		return f.failWith
	}
	if _, ok := f.users[id]; !ok {
		return apperror.NotFound("user", id)
	}
	delete(f.users, id)
	return nil
}

func (f *fakeUserRepo) Count(ctx context.Context) (int, error) {
	if f.failWith != nil {
		return 0, f.failWith
	}
	return len(f.users), nil
}

// testLogger returns a logger that only emits errors, keeping test output quiet.
func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}
