package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/study-assistant/internal/apperror"
	"github.com/sakif/study-assistant/internal/model"
	"github.com/sakif/study-assistant/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, name, email, password_hash, google_id, github_id, role, created_at, updated_at`

// providerColumn maps a provider name to its ID column. The column name is
// interpolated into SQL, so the allow-list here is load-bearing.
func providerColumn(provider string) (string, error) {
	switch provider {
	case "google":
		return "google_id", nil
	case "github":
		return "github_id", nil
	default:
		return "", fmt.Errorf("sqlite: unknown provider %q", provider)
	}
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
// modernc.org/sqlite surfaces these as "constraint failed: UNIQUE constraint
// failed: users.email (2067)".
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// nullable converts "" to NULL so UNIQUE columns don't collide on the
// empty string.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Create inserts a new user, assigning the internal ID and timestamps.
// A duplicate email or provider ID comes back as apperror.ErrConflict.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.ID = xid.New().String()
	if user.Role == "" {
		user.Role = model.RoleUser
	}
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, google_id, github_id, role, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Name,
		user.Email,
		nullable(user.PasswordHash),
		nullable(user.GoogleID),
		nullable(user.GithubID),
		user.Role,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("User already exists")
		}
		return fmt.Errorf("sqlite: inserting user (email=%s): %w", user.Email, err)
	}

	return nil
}

// GetByID retrieves a user by their internal ID.
func (db *DB) GetByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetByEmail retrieves a user by email, matched exactly as stored.
func (db *DB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUser(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

// GetByProviderID retrieves the user holding the given provider-scoped ID.
func (db *DB) GetByProviderID(ctx context.Context, provider, providerUserID string) (*model.User, error) {
	col, err := providerColumn(provider)
	if err != nil {
		return nil, err
	}
	return db.getUser(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+col+` = ?`, providerUserID)
}

// LinkProviderID attaches a provider ID to the user with the given email.
//
// The UPDATE only matches while the provider column is still NULL, making
// the email-match-and-link step a single conditional write: two concurrent
// sign-ins for the same previously-unlinked email can both pass the lookup,
// but only one UPDATE applies. The loser sees zero rows affected and the
// linker re-resolves from the provider-ID path.
func (db *DB) LinkProviderID(ctx context.Context, email, provider, providerUserID string) (*model.User, error) {
	col, err := providerColumn(provider)
	if err != nil {
		return nil, err
	}

	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET `+col+` = ?, updated_at = ? WHERE email = ? AND `+col+` IS NULL`,
		providerUserID, time.Now(), email,
	)
	if err != nil {
		if isUniqueViolation(err) {
			// providerUserID is already attached to some other account.
			return nil, apperror.Conflict("provider already linked")
		}
		return nil, fmt.Errorf("sqlite: linking %s id to %s: %w", provider, email, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: linking %s id to %s: %w", provider, email, err)
	}
	if affected == 0 {
		return nil, apperror.NotFound("user", email)
	}

	return db.GetByEmail(ctx, email)
}

// List returns all users, newest first.
func (db *DB) List(ctx context.Context) ([]model.User, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}

	return users, nil
}

// Delete removes the user with the given ID.
func (db *DB) Delete(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %s: %w", id, err)
	}
	if affected == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

// Count returns the total number of users.
func (db *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting users: %w", err)
	}
	return n, nil
}

// getUser runs a single-row query and translates sql.ErrNoRows.
func (db *DB) getUser(ctx context.Context, query string, args ...any) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx, query, args...)
	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", fmt.Sprint(args[0]))
		}
		return nil, fmt.Errorf("sqlite: getting user: %w", err)
	}
	return u, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*model.User, error) {
	var (
		u                       model.User
		passwordHash, gID, ghID sql.NullString
	)
	err := s.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&passwordHash,
		&gID,
		&ghID,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = passwordHash.String
	u.GoogleID = gID.String
	u.GithubID = ghID.String
	return &u, nil
}
