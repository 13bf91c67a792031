// Package config loads the application configuration from environment
// variables.
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config is the full runtime configuration.
//
// JWTSecret may legitimately be empty: the server still starts, but token
// issuance is unavailable and OAuth callbacks redirect with
// error=server_config_error so operators can tell a misconfigured deployment
// apart from user-caused failures.
type Config struct {
	Port   int    `env:"PORT" envDefault:"8080"`
	DBPath string `env:"DB_PATH" envDefault:"data/study.db"`

	// JWTSecret signs session tokens. Generate with: openssl rand -hex 32
	JWTSecret string `env:"JWT_SECRET"`

	// FrontendURL is the SPA origin the OAuth callbacks redirect back to.
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`

	// CallbackBaseURL is the public base URL of this API, used to build the
	// per-provider OAuth callback URLs. Defaults to localhost on Port.
	CallbackBaseURL string `env:"CALLBACK_BASE_URL"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GithubClientID     string `env:"GITHUB_CLIENT_ID"`
	GithubClientSecret string `env:"GITHUB_CLIENT_SECRET"`

	// ExtraCORSOrigins are allowed browser origins beyond FrontendURL.
	ExtraCORSOrigins []string `env:"ADDITIONAL_CORS_ORIGINS" envSeparator:","`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing environment: %w", err)
	}

	if cfg.CallbackBaseURL == "" {
		cfg.CallbackBaseURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	cfg.FrontendURL = normalizeOrigin(cfg.FrontendURL)

	return cfg, nil
}

// CORSOrigins returns the normalized allow-list for browser requests:
// the frontend origin plus any additionally configured origins.
func (c Config) CORSOrigins() []string {
	origins := []string{c.FrontendURL}
	for _, o := range c.ExtraCORSOrigins {
		if n := normalizeOrigin(o); n != "" {
			origins = append(origins, n)
		}
	}
	return origins
}

// GoogleCallbackURL returns the redirect URI registered with Google.
func (c Config) GoogleCallbackURL() string {
	return c.CallbackBaseURL + "/auth/google/callback"
}

// GithubCallbackURL returns the redirect URI registered with GitHub.
func (c Config) GithubCallbackURL() string {
	return c.CallbackBaseURL + "/auth/github/callback"
}

// normalizeOrigin trims whitespace and trailing slashes so configured
// origins compare equal to the browser's Origin header.
func normalizeOrigin(origin string) string {
	return strings.TrimRight(strings.TrimSpace(origin), "/")
}
