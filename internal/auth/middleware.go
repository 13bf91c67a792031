package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sakif/study-assistant/internal/model"
)

var errNoToken = errors.New("auth: no bearer token")

// contextKey is an unexported type for context keys in this package.
// A package-private key type means only this package can read or write the
// userID value — no collisions with other packages' context values.
type contextKey string

const userIDKey contextKey = "userID"

// UserLoader is the slice of the repository the role middleware needs.
// Declared here so the auth package doesn't depend on the repository package.
type UserLoader interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// RequireAuth enforces authentication on protected routes.
//
// The SPA receives its token in a redirect query parameter and keeps it
// client-side, so protected calls carry it in an Authorization: Bearer
// header rather than a cookie. The middleware validates the token and stores
// the userID in the request context; missing or invalid tokens end the
// request with 401.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			if err != nil {
				http.Error(w, `{"error":"unauthorized","message":"valid authentication required"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin enforces the admin role. It must run after RequireAuth —
// it reads the userID from the context and loads the user to check the role.
// Non-admins get 403.
func RequireAdmin(users UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				http.Error(w, `{"error":"unauthorized","message":"valid authentication required"}`, http.StatusUnauthorized)
				return
			}

			user, err := users.GetByID(r.Context(), userID)
			if err != nil || !user.IsAdmin() {
				http.Error(w, `{"error":"forbidden","message":"Access denied. Admin only."}`, http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// UserIDFromContext retrieves the authenticated user's ID from the request
// context. Returns ("", false) if the request is anonymous.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// extractUserID reads the Authorization header and validates the bearer token.
func extractUserID(r *http.Request, tokens *TokenService) (string, error) {
	if tokens == nil {
		return "", errNoToken
	}

	header := r.Header.Get("Authorization")
	tokenStr, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || tokenStr == "" {
		return "", errNoToken
	}

	return tokens.Validate(tokenStr)
}
