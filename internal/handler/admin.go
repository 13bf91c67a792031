package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sakif/study-assistant/internal/model"
	"github.com/sakif/study-assistant/internal/repository"
)

// AdminHandler serves the administrative user-management endpoints.
// All of its routes sit behind RequireAuth + RequireAdmin.
type AdminHandler struct {
	users  repository.UserRepository
	logger *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(users repository.UserRepository, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		users:  users,
		logger: logger,
	}
}

// HandleListUsers returns every user account, newest first.
//
// HTTP: GET /api/admin/users
func (h *AdminHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		h.logger.Error("admin: listing users failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleDeleteUser removes a user account. Deletion is an administrative
// action only — nothing in the auth flows ever deletes a record.
//
// HTTP: DELETE /api/admin/users/{id}
func (h *AdminHandler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.users.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("admin deleted user", slog.String("userID", id))
	writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted"})
}

// HandleStats returns aggregate counts for the admin dashboard.
//
// HTTP: GET /api/admin/stats
func (h *AdminHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	count, err := h.users.Count(r.Context())
	if err != nil {
		h.logger.Error("admin: counting users failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"userCount": count})
}
