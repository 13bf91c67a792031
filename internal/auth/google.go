package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// googleUser is the portion of the Google userinfo response we care about.
//
// API docs: https://developers.google.com/identity/protocols/oauth2
type googleUser struct {
	ID    string `json:"id"`    // Google's stable account identifier
	Email string `json:"email"` // Primary email (Google always returns one for the email scope)
	Name  string `json:"name"`  // Display name
}

// GoogleProvider implements Provider using the Google Authorization Code
// flow via golang.org/x/oauth2. Structurally identical to GitHubProvider;
// only the endpoints and the response shape differ.
type GoogleProvider struct {
	config *oauth2.Config

	// userinfoURL is overridable in tests.
	userinfoURL string
}

// NewGoogleProvider creates a GoogleProvider with the given credentials.
//
// callbackURL must exactly match an authorized redirect URI of the OAuth
// client in the Google Cloud console.
func NewGoogleProvider(clientID, clientSecret, callbackURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     google.Endpoint,
		},
		userinfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
	}
}

// Name returns ProviderGoogle.
func (p *GoogleProvider) Name() string { return ProviderGoogle }

// AuthURL returns the Google consent URL carrying the CSRF state parameter.
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the authorization code for a normalized Profile.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*Profile, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	client := p.config.Client(ctx, oauthToken)

	resp, err := client.Get(p.userinfoURL)
	if err != nil {
		return nil, fmt.Errorf("auth: calling Google userinfo API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: Google userinfo API returned status %d", resp.StatusCode)
	}

	var gUser googleUser
	if err := json.NewDecoder(resp.Body).Decode(&gUser); err != nil {
		return nil, fmt.Errorf("auth: decoding Google userinfo response: %w", err)
	}

	if gUser.ID == "" {
		return nil, fmt.Errorf("auth: Google returned an invalid user (empty ID)")
	}

	return &Profile{
		Provider:       ProviderGoogle,
		ProviderUserID: gUser.ID,
		Email:          gUser.Email,
		DisplayName:    gUser.Name,
	}, nil
}
