// Package model defines the data structures used throughout the application.
package model

import "time"

// Role is the authorization level of a user account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User represents a single identity record.
//
// A user may authenticate locally (email + password) or through a federated
// provider (Google or GitHub), or both. The email is the merge key across
// providers: exactly one account per distinct email, and a federated sign-in
// asserting an email already on file links into that account instead of
// creating a second one.
//
// GoogleID and GithubID hold the provider's stable user identifier. They are
// empty until the corresponding provider has been linked; once set they never
// change. The database enforces uniqueness on email, google_id, and
// github_id, so linking code can treat a constraint violation as "someone
// else got there first" and re-resolve.
//
// PasswordHash is empty for accounts created purely through a federated
// sign-in. It is never serialized to JSON.
type User struct {
	ID           string    `json:"id"        db:"id"`
	Name         string    `json:"name"      db:"name"`
	Email        string    `json:"email"     db:"email"`
	PasswordHash string    `json:"-"         db:"password_hash"`
	GoogleID     string    `json:"googleId,omitempty" db:"google_id"`
	GithubID     string    `json:"githubId,omitempty" db:"github_id"`
	Role         Role      `json:"role"      db:"role"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
