package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/study-assistant/internal/auth"
	"github.com/sakif/study-assistant/internal/repository"
)

// UserHandler serves the authenticated user's own profile.
type UserHandler struct {
	users  repository.UserRepository
	logger *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users repository.UserRepository, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		logger: logger,
	}
}

// HandleProfile returns the logged-in user's record (the password hash is
// excluded at the model level). The SPA calls this on load to restore
// session state from a stored token.
//
// HTTP: GET /api/user/profile
// Auth: required (RequireAuth sets the userID in context)
func (h *UserHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		// Unreachable behind RequireAuth, but don't assume the wiring.
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		h.logger.Error("profile: user lookup failed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
