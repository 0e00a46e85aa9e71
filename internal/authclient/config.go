package authclient

import (
	"fmt"
	"net/url"
	"time"
)

// Config contains the OAuth 2.1 configuration for the client flow.
type Config struct {
	// ServerURL is the authorization server's base URL
	ServerURL string

	// Endpoint is the protected MCP endpoint URL (must end with /mcp)
	Endpoint string

	// ClientID is the OAuth client identifier (optional - will use DCR if not provided)
	ClientID string

	// ClientSecret is the OAuth client secret (optional for public clients)
	ClientSecret string

	// ClientName is the name announced during dynamic registration
	ClientName string

	// Scopes are the OAuth scopes to request
	Scopes []string

	// RedirectURL is the callback URL for the OAuth flow
	// (default: http://localhost:3000/callback)
	RedirectURL string

	// AuthorizationTimeout bounds the wait for the authorization redirect
	// (default: 5 minutes)
	AuthorizationTimeout time.Duration
}

// WithDefaults fills in zero-valued fields with defaults.
func (c *Config) WithDefaults() *Config {
	if c.ClientName == "" {
		c.ClientName = "mcp-oauth-probe"
	}
	if len(c.Scopes) == 0 {
		c.Scopes = []string{"read", "write"}
	}
	if c.RedirectURL == "" {
		c.RedirectURL = "http://localhost:3000/callback"
	}
	if c.AuthorizationTimeout == 0 {
		c.AuthorizationTimeout = 5 * time.Minute
	}
	return c
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("authorization server URL is required")
	}
	if c.RedirectURL == "" {
		return fmt.Errorf("OAuth redirect URL is required")
	}

	parsedURL, err := url.Parse(c.RedirectURL)
	if err != nil {
		return fmt.Errorf("invalid OAuth redirect URL: %w", err)
	}

	// Security: Only allow HTTP for localhost/loopback addresses
	if parsedURL.Scheme == "http" {
		hostname := parsedURL.Hostname()
		// Note: Hostname() strips brackets from IPv6 addresses, so [::1] becomes ::1
		if hostname != "localhost" && hostname != "127.0.0.1" && hostname != "::1" {
			return fmt.Errorf("HTTP redirect URIs are only allowed for localhost/127.0.0.1/[::1], use HTTPS for other hosts")
		}
	} else if parsedURL.Scheme != "https" {
		return fmt.Errorf("redirect URI scheme must be http (localhost only) or https, got: %s", parsedURL.Scheme)
	}

	return nil
}
