package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// githubUser is the portion of the GitHub /user API response we care about.
// GitHub returns a much larger object — we only unmarshal the fields we need.
//
// GitHub API docs: https://docs.github.com/en/rest/users/users#get-the-authenticated-user
type githubUser struct {
	ID    int64  `json:"id"`    // GitHub's numeric user ID — stable, never changes
	Login string `json:"login"` // GitHub username, e.g. "sakif"
	Name  string `json:"name"`  // Display name (may be empty)
	Email string `json:"email"` // Primary email (empty if hidden in GitHub settings)
}

// githubEmail is one entry of the /user/emails response.
type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// GitHubProvider implements Provider using the GitHub Authorization Code
// flow via golang.org/x/oauth2.
//
// The code-for-token exchange happens server-to-server with the client
// secret; the access token never reaches the browser.
type GitHubProvider struct {
	config *oauth2.Config

	// apiBase is "https://api.github.com" in production; tests point it at
	// an httptest server.
	apiBase string
}

// NewGitHubProvider creates a GitHubProvider with the given credentials.
//
// callbackURL must exactly match the "Authorization callback URL" configured
// on the GitHub OAuth App, e.g. "http://localhost:8080/auth/github/callback".
//
// Scopes requested:
//   - "read:user" — the user's public profile (ID, login, name)
//   - "user:email" — the user's email addresses, including private ones
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		apiBase: "https://api.github.com",
	}
}

// Name returns ProviderGithub.
func (p *GitHubProvider) Name() string { return ProviderGithub }

// AuthURL returns the GitHub consent URL carrying the CSRF state parameter.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the authorization code for a normalized Profile.
//
// GitHub's /user endpoint omits the email when the user has marked it
// private, even with the user:email scope. In that case we fall back to
// /user/emails and take the primary verified address. If that also yields
// nothing, the Profile goes out with an empty Email and the linker
// synthesizes a placeholder.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*Profile, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// oauth2.Config.Client returns an *http.Client that adds the
	// Authorization header to every request.
	client := p.config.Client(ctx, oauthToken)

	resp, err := client.Get(p.apiBase + "/user")
	if err != nil {
		return nil, fmt.Errorf("auth: calling GitHub /user API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: GitHub /user API returned status %d", resp.StatusCode)
	}

	var ghUser githubUser
	if err := json.NewDecoder(resp.Body).Decode(&ghUser); err != nil {
		return nil, fmt.Errorf("auth: decoding GitHub /user response: %w", err)
	}

	if ghUser.ID == 0 {
		return nil, fmt.Errorf("auth: GitHub returned an invalid user (ID = 0)")
	}

	email := ghUser.Email
	if email == "" {
		// Best effort — a hidden email is a legitimate state, not an error.
		email = p.primaryEmail(ctx, client)
	}

	return &Profile{
		Provider:       ProviderGithub,
		ProviderUserID: strconv.FormatInt(ghUser.ID, 10),
		Email:          email,
		DisplayName:    ghUser.Name,
		Username:       ghUser.Login,
	}, nil
}

// primaryEmail fetches /user/emails and returns the primary verified
// address, or "" if the call fails or no such address exists.
func (p *GitHubProvider) primaryEmail(ctx context.Context, client *http.Client) string {
	resp, err := client.Get(p.apiBase + "/user/emails")
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var emails []githubEmail
	if err := json.NewDecoder(resp.Body).Decode(&emails); err != nil {
		return ""
	}

	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	return ""
}
