package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/study-assistant/internal/apperror"
	"github.com/sakif/study-assistant/internal/auth"
	"github.com/sakif/study-assistant/internal/model"
)

func newTestLinker(t *testing.T) (*IdentityLinker, *fakeUserRepo) {
	t.Helper()
	repo := newFakeUserRepo()
	return NewIdentityLinker(repo, testLogger(t)), repo
}

func googleProfile(id, email, name string) *auth.Profile {
	return &auth.Profile{
		Provider:       auth.ProviderGoogle,
		ProviderUserID: id,
		Email:          email,
		DisplayName:    name,
	}
}

func githubProfile(id, email, name, username string) *auth.Profile {
	return &auth.Profile{
		Provider:       auth.ProviderGithub,
		ProviderUserID: id,
		Email:          email,
		DisplayName:    name,
		Username:       username,
	}
}

// =========================================================================
// CREATION PATH
// =========================================================================

func TestResolve_CreatesNewUser(t *testing.T) {
	linker, _ := newTestLinker(t)

	user, err := linker.Resolve(context.Background(), googleProfile("g-1", "ann@x.com", "Ann"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if user.ID == "" {
		t.Error("Resolve() did not assign an ID")
	}
	if user.GoogleID != "g-1" {
		t.Errorf("GoogleID = %q, want %q", user.GoogleID, "g-1")
	}
	if user.Email != "ann@x.com" {
		t.Errorf("Email = %q, want %q", user.Email, "ann@x.com")
	}
	if user.Role != model.RoleUser {
		t.Errorf("Role = %q, want %q", user.Role, model.RoleUser)
	}
}

func TestResolve_NameFallbacks(t *testing.T) {
	tests := []struct {
		name     string
		profile  *auth.Profile
		wantName string
	}{
		{"display name wins", githubProfile("1", "a@x.com", "Display", "login"), "Display"},
		{"username when no display name", githubProfile("2", "b@x.com", "", "login"), "login"},
		{"github literal when nothing", githubProfile("3", "c@x.com", "", ""), "GitHub User"},
		{"google literal when nothing", googleProfile("4", "d@x.com", ""), "Google User"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			linker, _ := newTestLinker(t)
			user, err := linker.Resolve(context.Background(), tt.profile)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if user.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", user.Name, tt.wantName)
			}
		})
	}
}

// Two distinct GitHub users who both withhold email get two distinct
// accounts with distinct synthesized placeholder emails.
func TestResolve_SynthesizedEmailUniqueness(t *testing.T) {
	linker, _ := newTestLinker(t)

	user1, err := linker.Resolve(context.Background(), githubProfile("111", "", "", "first"))
	if err != nil {
		t.Fatalf("Resolve() #1 error = %v", err)
	}
	user2, err := linker.Resolve(context.Background(), githubProfile("222", "", "", "second"))
	if err != nil {
		t.Fatalf("Resolve() #2 error = %v", err)
	}

	if user1.ID == user2.ID {
		t.Fatal("two distinct GitHub users resolved to the same account")
	}
	if user1.Email != "github_111@noemail.com" {
		t.Errorf("Email = %q, want %q", user1.Email, "github_111@noemail.com")
	}
	if user2.Email != "github_222@noemail.com" {
		t.Errorf("Email = %q, want %q", user2.Email, "github_222@noemail.com")
	}
}

// =========================================================================
// IDEMPOTENCE AND LINKING
// =========================================================================

// Resolving the same provider identity twice yields the same account and
// creates no duplicate.
func TestResolve_Idempotent(t *testing.T) {
	linker, repo := newTestLinker(t)

	first, err := linker.Resolve(context.Background(), githubProfile("42", "", "", "octocat"))
	if err != nil {
		t.Fatalf("Resolve() #1 error = %v", err)
	}
	second, err := linker.Resolve(context.Background(), githubProfile("42", "", "", "octocat"))
	if err != nil {
		t.Fatalf("Resolve() #2 error = %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("IDs differ: %q vs %q", first.ID, second.ID)
	}
	if n, _ := repo.Count(context.Background()); n != 1 {
		t.Errorf("user count = %d, want 1", n)
	}
}

// A federated sign-in asserting an email that belongs to an existing local
// account links into that account: same ID, provider field now populated.
func TestResolve_MergeByEmail(t *testing.T) {
	linker, repo := newTestLinker(t)

	local := &model.User{
		Name:         "Ann",
		Email:        "ann@x.com",
		PasswordHash: "$2a$04$fakehash",
	}
	if err := repo.Create(context.Background(), local); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	user, err := linker.Resolve(context.Background(), googleProfile("g-9", "ann@x.com", "Ann G"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if user.ID != local.ID {
		t.Errorf("Resolve() ID = %q, want the local account's %q", user.ID, local.ID)
	}
	if user.GoogleID != "g-9" {
		t.Errorf("GoogleID = %q, want %q", user.GoogleID, "g-9")
	}
	// The local credential survives the link.
	if user.PasswordHash == "" {
		t.Error("linking wiped the password hash")
	}
	if n, _ := repo.Count(context.Background()); n != 1 {
		t.Errorf("user count = %d, want 1", n)
	}
}

// After the email link has happened once, later sign-ins resolve on the
// provider-ID fast path and leave the record untouched.
func TestResolve_ProviderIDBeatsEmail(t *testing.T) {
	linker, repo := newTestLinker(t)

	if err := repo.Create(context.Background(), &model.User{
		Name:         "Ann",
		Email:        "ann@x.com",
		PasswordHash: "$2a$04$fakehash",
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	linked, err := linker.Resolve(context.Background(), googleProfile("g-9", "ann@x.com", "Ann G"))
	if err != nil {
		t.Fatalf("Resolve() link error = %v", err)
	}

	// Same provider ID but a different asserted email: the provider-ID
	// match wins and nothing merges on the new email.
	again, err := linker.Resolve(context.Background(), googleProfile("g-9", "other@x.com", "Ann G"))
	if err != nil {
		t.Fatalf("Resolve() repeat error = %v", err)
	}

	if again.ID != linked.ID {
		t.Errorf("IDs differ: %q vs %q", again.ID, linked.ID)
	}
	if again.Email != "ann@x.com" {
		t.Errorf("Email = %q, want the original %q", again.Email, "ann@x.com")
	}
}

// =========================================================================
// FAILURES AND RACES
// =========================================================================

func TestResolve_RejectsBadProfiles(t *testing.T) {
	linker, _ := newTestLinker(t)

	if _, err := linker.Resolve(context.Background(), nil); err == nil {
		t.Error("Resolve(nil) should fail")
	}
	if _, err := linker.Resolve(context.Background(), &auth.Profile{Provider: "fakebook", ProviderUserID: "1"}); err == nil {
		t.Error("Resolve() should reject an unknown provider")
	}
	if _, err := linker.Resolve(context.Background(), &auth.Profile{Provider: auth.ProviderGoogle}); err == nil {
		t.Error("Resolve() should reject a profile without a provider user ID")
	}
}

func TestResolve_StoreErrorSurfaces(t *testing.T) {
	linker, repo := newTestLinker(t)
	repo.failWith = errors.New("disk on fire")

	_, err := linker.Resolve(context.Background(), googleProfile("g-1", "ann@x.com", "Ann"))
	if err == nil {
		t.Fatal("Resolve() should surface the storage failure")
	}
	if errors.Is(err, apperror.ErrNotFound) {
		t.Error("storage failure should not be reported as not-found")
	}
}

// conflictOnceRepo simulates losing a creation race: the first Create
// conflicts (as if a concurrent request inserted the same identity), after
// which the lookup finds the winner's row.
type conflictOnceRepo struct {
	*fakeUserRepo
	conflicted bool
}

func (c *conflictOnceRepo) Create(ctx context.Context, user *model.User) error {
	if !c.conflicted {
		c.conflicted = true
		// The "concurrent" request's row appears...
		winner := &model.User{
			Name:     "Winner",
			Email:    user.Email,
			GithubID: user.GithubID,
			GoogleID: user.GoogleID,
		}
		if err := c.fakeUserRepo.Create(ctx, winner); err != nil {
			return err
		}
		// ...and our insert hits the constraint.
		return apperror.Conflict("User already exists")
	}
	return c.fakeUserRepo.Create(ctx, user)
}

// Losing the create race retries resolution from the top, where the
// provider-ID lookup now finds the winner's row.
func TestResolve_RetriesAfterLostCreateRace(t *testing.T) {
	repo := &conflictOnceRepo{fakeUserRepo: newFakeUserRepo()}
	linker := NewIdentityLinker(repo, testLogger(t))

	user, err := linker.Resolve(context.Background(), githubProfile("42", "", "", "octocat"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if user.Name != "Winner" {
		t.Errorf("Name = %q, want the concurrent winner's record", user.Name)
	}
	if n, _ := repo.Count(context.Background()); n != 1 {
		t.Errorf("user count = %d, want 1", n)
	}
}
