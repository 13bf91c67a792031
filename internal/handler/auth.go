package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/xid"
	"github.com/sakif/study-assistant/internal/auth"
	"github.com/sakif/study-assistant/internal/model"
	"github.com/sakif/study-assistant/internal/service"
)

// errNoTokenService marks the missing-signing-secret configuration fault.
// It carries no AppError, so JSON endpoints surface it as a generic 500.
var errNoTokenService = errors.New("handler: token service not configured")

// AuthHandler is the HTTP boundary of the auth subsystem.
//
// It exposes two protocols over the same services: JSON request/response for
// local register/login, and the OAuth redirect dance for federated sign-in.
// JSON endpoints answer with a body; callback endpoints always answer with a
// redirect to the frontend, success and failure alike, because the browser
// arrives there by top-level navigation from the provider.
//
// tokens may be nil when no signing secret is configured. The server still
// runs, and every flow that would issue a token reports the configuration
// fault instead of crashing.
type AuthHandler struct {
	credentials *service.CredentialService
	linker      *service.IdentityLinker
	tokens      *auth.TokenService
	providers   map[string]auth.Provider
	frontendURL string
	logger      *slog.Logger
}

// NewAuthHandler creates an AuthHandler. All dependencies are injected;
// the handler has no knowledge of how they're constructed.
func NewAuthHandler(
	credentials *service.CredentialService,
	linker *service.IdentityLinker,
	tokens *auth.TokenService,
	providers []auth.Provider,
	frontendURL string,
	logger *slog.Logger,
) *AuthHandler {
	byName := make(map[string]auth.Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &AuthHandler{
		credentials: credentials,
		linker:      linker,
		tokens:      tokens,
		providers:   byName,
		frontendURL: frontendURL,
		logger:      logger,
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegister creates a local account.
//
// HTTP: POST /auth/register
// Success: 201 {token, role}. Taken email: 400 {message}.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid request body",
		})
		return
	}

	user, err := h.credentials.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := h.issueToken(user)
	if err != nil {
		h.logger.Error("register: token issuance failed",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"token": token,
		"role":  user.Role,
	})
}

// HandleLogin authenticates a local account.
//
// HTTP: POST /auth/login
// Success: 200 {token, role, name}. Any credential failure: 400 {message},
// with no hint whether the email or the password was wrong.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid request body",
		})
		return
	}

	user, err := h.credentials.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := h.issueToken(user)
	if err != nil {
		h.logger.Error("login: token issuance failed",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"role":  user.Role,
		"name":  user.Name,
	})
}

// HandleOAuthLogin redirects the browser to the provider's consent page.
//
// HTTP: GET /auth/{provider}
//
// The random state value goes into a short-lived HttpOnly cookie; the
// callback verifies the provider echoed it back, which proves the flow was
// started by this server and not forged cross-site.
func (h *AuthHandler) HandleOAuthLogin(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.providers[chi.URLParam(r, "provider")]
	if !ok {
		http.NotFound(w, r)
		return
	}

	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, provider.AuthURL(state), http.StatusFound)
}

// HandleOAuthCallback completes a federated sign-in.
//
// HTTP: GET /auth/{provider}/callback?code=xxx&state=yyy
//
// Every outcome is a redirect to the frontend:
//
//	handshake failed (denied, bad state, no code)  → /login?error={provider}_failed
//	exchange or resolution error                   → /login?error={provider}_server_error
//	no signing secret configured                   → /login?error=server_config_error
//	success                                        → /auth/callback?token=...&role=...
//
// The token rides in a query parameter because the navigation crosses from
// the API origin to the SPA origin, where a cookie can't be relied on. The
// SPA stores it and drops the URL; the callback URL itself is never reused.
func (h *AuthHandler) HandleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	provider, ok := h.providers[name]
	if !ok {
		http.NotFound(w, r)
		return
	}

	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("oauth callback: state missing or mismatched",
			slog.String("provider", name),
		)
		h.redirectLoginError(w, r, name+"_failed")
		return
	}

	// The state cookie is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   "oauth_state",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	// The provider reports denial (or any handshake failure) via the error
	// query parameter instead of a code.
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("oauth callback: provider returned error",
			slog.String("provider", name),
			slog.String("error", errParam),
		)
		h.redirectLoginError(w, r, name+"_failed")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.redirectLoginError(w, r, name+"_failed")
		return
	}

	profile, err := provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("oauth callback: exchange failed",
			slog.String("provider", name),
			slog.String("error", err.Error()),
		)
		h.redirectLoginError(w, r, name+"_server_error")
		return
	}

	user, err := h.linker.Resolve(r.Context(), profile)
	if err != nil {
		// Full detail stays in the log; the browser only sees the code.
		h.logger.Error("oauth callback: identity resolution failed",
			slog.String("provider", name),
			slog.String("providerUserID", profile.ProviderUserID),
			slog.String("error", err.Error()),
		)
		h.redirectLoginError(w, r, name+"_server_error")
		return
	}

	if h.tokens == nil {
		h.logger.Error("oauth callback: no signing secret configured")
		h.redirectLoginError(w, r, "server_config_error")
		return
	}

	token, err := h.tokens.Generate(user.ID)
	if err != nil {
		h.logger.Error("oauth callback: token generation failed",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		h.redirectLoginError(w, r, name+"_server_error")
		return
	}

	h.logger.Info("user authenticated via oauth",
		slog.String("userID", user.ID),
		slog.String("provider", name),
	)

	q := url.Values{}
	q.Set("token", token)
	q.Set("role", string(user.Role))
	http.Redirect(w, r, h.frontendURL+"/auth/callback?"+q.Encode(), http.StatusFound)
}

// issueToken mints a session token, failing with the configuration fault
// when no signing secret was configured.
func (h *AuthHandler) issueToken(user *model.User) (string, error) {
	if h.tokens == nil {
		return "", errNoTokenService
	}
	return h.tokens.Generate(user.ID)
}

// redirectLoginError sends the browser back to the frontend login page with
// a machine-readable error code. Internal error detail never travels here.
func (h *AuthHandler) redirectLoginError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, h.frontendURL+"/login?error="+url.QueryEscape(code), http.StatusFound)
}
