package auth

import (
	"context"
)

// Provider name constants. These values appear in URLs
// (/auth/{provider}/callback), in redirect error codes
// ({provider}_failed), and in synthesized placeholder emails, so they are
// part of the external contract — do not rename.
const (
	ProviderGoogle = "google"
	ProviderGithub = "github"
)

// Profile is a normalized identity assertion extracted from a completed
// OAuth handshake, reduced to the facts the linker cares about. Each
// provider adapter maps its own API response shape into this struct; nothing
// downstream knows about provider SDK types.
//
// Email may be empty: GitHub users can hide their address, in which case the
// linker synthesizes a placeholder. DisplayName and Username are both
// optional; the linker falls back through them for the account name.
type Profile struct {
	Provider       string // ProviderGoogle or ProviderGithub
	ProviderUserID string // provider-scoped stable user identifier
	Email          string // primary email, "" if withheld
	DisplayName    string // human display name, "" if unset
	Username       string // provider login/handle, "" if unset
}

// Provider is one federated identity provider (Google, GitHub).
//
// AuthURL returns the consent-screen URL to redirect the browser to;
// Exchange completes the flow server-side, trading the callback code for a
// normalized Profile. The handshake plumbing (state round-trip, code
// exchange) lives here; all identity decisions live in the linker.
type Provider interface {
	Name() string
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*Profile, error)
}
