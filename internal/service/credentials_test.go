package service

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/study-assistant/internal/apperror"
	"github.com/sakif/study-assistant/internal/auth"
	"github.com/sakif/study-assistant/internal/model"
)

func newTestCredentialService(t *testing.T) (*CredentialService, *fakeUserRepo) {
	t.Helper()
	repo := newFakeUserRepo()
	passwords := auth.NewPasswordServiceForTest(bcrypt.MinCost)
	return NewCredentialService(repo, passwords, testLogger(t)), repo
}

// =========================================================================
// REGISTER TESTS
// =========================================================================

func TestRegister_CreatesUser(t *testing.T) {
	svc, _ := newTestCredentialService(t)

	user, err := svc.Register(context.Background(), "Ann", "ann@x.com", "secret123")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if user.ID == "" {
		t.Error("Register() did not assign an ID")
	}
	if user.Role != model.RoleUser {
		t.Errorf("Role = %q, want %q", user.Role, model.RoleUser)
	}
	if user.PasswordHash == "" {
		t.Error("Register() did not store a password hash")
	}
	if user.PasswordHash == "secret123" {
		t.Error("Register() stored the plaintext password")
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _ := newTestCredentialService(t)

	if _, err := svc.Register(context.Background(), "Ann", "ann@x.com", "secret123"); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}

	_, err := svc.Register(context.Background(), "Other Ann", "ann@x.com", "different")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("second Register() error = %v, want ErrConflict", err)
	}
}

func TestRegister_MissingFields(t *testing.T) {
	svc, _ := newTestCredentialService(t)

	tests := []struct {
		name, userName, email, password string
	}{
		{"no name", "", "ann@x.com", "secret123"},
		{"no email", "Ann", "", "secret123"},
		{"no password", "Ann", "ann@x.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.userName, tt.email, tt.password)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("Register() error = %v, want ErrValidation", err)
			}
		})
	}
}

// =========================================================================
// LOGIN TESTS
// =========================================================================

func TestLogin_Succeeds(t *testing.T) {
	svc, _ := newTestCredentialService(t)

	registered, err := svc.Register(context.Background(), "Ann", "ann@x.com", "secret123")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	user, err := svc.Login(context.Background(), "ann@x.com", "secret123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if user.ID != registered.ID {
		t.Errorf("Login() user ID = %q, want %q", user.ID, registered.ID)
	}
	if user.Name != "Ann" {
		t.Errorf("Name = %q, want %q", user.Name, "Ann")
	}
}

// Unknown email and wrong password must be indistinguishable: same error
// kind, same message.
func TestLogin_UniformFailure(t *testing.T) {
	svc, _ := newTestCredentialService(t)

	if _, err := svc.Register(context.Background(), "Ann", "ann@x.com", "secret123"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	_, unknownErr := svc.Login(context.Background(), "unknown@x.com", "anything")
	_, wrongErr := svc.Login(context.Background(), "ann@x.com", "wrongpassword")

	if !errors.Is(unknownErr, apperror.ErrInvalidCredentials) {
		t.Errorf("unknown email error = %v, want ErrInvalidCredentials", unknownErr)
	}
	if !errors.Is(wrongErr, apperror.ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v, want ErrInvalidCredentials", wrongErr)
	}
	if unknownErr.Error() != wrongErr.Error() {
		t.Errorf("failure messages differ: %q vs %q", unknownErr.Error(), wrongErr.Error())
	}
}

// A federated-only account has no password hash; a password login against
// it fails with the same uniform error.
func TestLogin_FederatedOnlyAccount(t *testing.T) {
	svc, repo := newTestCredentialService(t)

	federated := &model.User{
		Name:     "Gabe",
		Email:    "gabe@x.com",
		GithubID: "777",
	}
	if err := repo.Create(context.Background(), federated); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err := svc.Login(context.Background(), "gabe@x.com", "anything")
	if !errors.Is(err, apperror.ErrInvalidCredentials) {
		t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
	}
}
