package authserver

import (
	"crypto/subtle"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/giantswarm/mcp-oauth-probe/internal/logger"
)

// Grant type constants.
const (
	grantTypeAuthorizationCode = "authorization_code"
	grantTypeRefreshToken      = "refresh_token"
)

// responseTypeCode is the only supported OAuth response type.
const responseTypeCode = "code"

// tokenTypeBearer is the token type returned by every successful exchange.
const tokenTypeBearer = "Bearer"

// Config holds the authorization server configuration.
type Config struct {
	// Issuer is the server's issuer identifier URL, e.g. http://localhost:8003
	Issuer string

	// ScopesSupported lists the scopes advertised in the metadata document
	ScopesSupported []string

	// AuthorizationCodeTTL is the lifetime of issued authorization codes
	AuthorizationCodeTTL time.Duration

	// AccessTokenTTL is the lifetime of issued access tokens
	AccessTokenTTL time.Duration
}

// WithDefaults fills in zero-valued fields with defaults.
func (c *Config) WithDefaults() *Config {
	if len(c.ScopesSupported) == 0 {
		c.ScopesSupported = []string{"read", "write"}
	}
	if c.AuthorizationCodeTTL == 0 {
		c.AuthorizationCodeTTL = 10 * time.Minute
	}
	if c.AccessTokenTTL == 0 {
		c.AccessTokenTTL = time.Hour
	}
	return c
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Issuer == "" {
		return fmt.Errorf("issuer is required")
	}
	parsed, err := url.Parse(c.Issuer)
	if err != nil {
		return fmt.Errorf("invalid issuer URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("issuer URL scheme must be http or https, got: %s", parsed.Scheme)
	}
	return nil
}

// Server implements the authorization server state machine: client
// registration, authorization code issuance, and code exchange. It owns the
// token/code store; the HTTP layer is a thin adapter on top (see Handler).
type Server struct {
	config *Config
	store  *Store
	logger *logger.Logger
}

// NewServer creates an authorization server backed by the given store.
func NewServer(config *Config, store *Store, log *logger.Logger) (*Server, error) {
	config = config.WithDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}
	if log == nil {
		log = logger.NewLogger(false, false, false)
	}

	return &Server{
		config: config,
		store:  store,
		logger: log,
	}, nil
}

// Store returns the server's backing store. Used by the Resource Guard to
// look up bearer tokens.
func (s *Server) Store() *Store {
	return s.store
}

// Config returns the server configuration.
func (s *Server) Config() *Config {
	return s.config
}

// SeedClient pre-provisions a client, bypassing dynamic registration.
// Used to install the well-known test client.
func (s *Server) SeedClient(client *Client) error {
	if err := s.store.SaveClient(client); err != nil {
		return fmt.Errorf("failed to seed client: %w", err)
	}
	s.logger.InfoVerbose("Seeded client: %s", client.ClientID)
	return nil
}

// ClientMetadata is the dynamic registration input (RFC 7591).
type ClientMetadata struct {
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
	ClientName              string   `json:"client_name,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
}

// RegisterClient registers a new OAuth client and returns the full record,
// including the generated secret (RFC 7591).
func (s *Server) RegisterClient(metadata ClientMetadata) (*Client, error) {
	if len(metadata.RedirectURIs) == 0 {
		return nil, invalidRequest("redirect_uris is required")
	}

	client := &Client{
		ClientID:                fmt.Sprintf("dynamic-client-%s", uuid.NewString()),
		ClientSecret:            oauth2.GenerateVerifier(),
		RedirectURIs:            metadata.RedirectURIs,
		GrantTypes:              metadata.GrantTypes,
		ResponseTypes:           metadata.ResponseTypes,
		ClientName:              metadata.ClientName,
		TokenEndpointAuthMethod: metadata.TokenEndpointAuthMethod,
	}

	if len(client.GrantTypes) == 0 {
		client.GrantTypes = []string{grantTypeAuthorizationCode}
	}
	if len(client.ResponseTypes) == 0 {
		client.ResponseTypes = []string{responseTypeCode}
	}
	if metadata.Scope != "" {
		client.Scopes = strings.Fields(metadata.Scope)
	} else {
		client.Scopes = []string{"read", "write"}
	}
	if client.ClientName == "" {
		client.ClientName = "Dynamic MCP Client"
	}
	if client.TokenEndpointAuthMethod == "" {
		client.TokenEndpointAuthMethod = "client_secret_post"
	}

	if err := s.store.SaveClient(client); err != nil {
		return nil, invalidRequest("registration failed: %v", err)
	}

	s.logger.Info("Registered new client: %s (%s)", client.ClientID, client.ClientName)
	return client, nil
}

// AuthorizeRequest carries the query parameters of an authorization request.
type AuthorizeRequest struct {
	ResponseType        string
	ClientID            string
	RedirectURI         string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// Authorize validates an authorization request and mints a single-use
// authorization code bound to the supplied PKCE challenge. On success it
// returns the redirect URL carrying the code and the caller's state
// unchanged. Every well-formed request auto-approves; no consent screen is
// modeled.
func (s *Server) Authorize(req AuthorizeRequest) (string, error) {
	client, err := s.store.GetClient(req.ClientID)
	if err != nil {
		return "", invalidRequest("invalid client_id")
	}

	if !client.HasRedirectURI(req.RedirectURI) {
		return "", invalidRequest("invalid redirect_uri")
	}

	// Only S256 is advertised; reject anything else up front instead of
	// deferring the failure to the token exchange.
	if req.CodeChallenge != "" && req.CodeChallengeMethod != pkceMethodS256 {
		return "", invalidRequest("unsupported code_challenge_method: %s (only S256 is supported)", req.CodeChallengeMethod)
	}

	code := &AuthorizationCode{
		Code:                fmt.Sprintf("code_%s", oauth2.GenerateVerifier()),
		ClientID:            req.ClientID,
		RedirectURI:         req.RedirectURI,
		Scope:               req.Scope,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		ExpiresAt:           time.Now().Add(s.config.AuthorizationCodeTTL),
	}
	if err := s.store.SaveAuthorizationCode(code); err != nil {
		return "", invalidRequest("failed to issue authorization code: %v", err)
	}

	s.logger.InfoVerbose("Issued authorization code for client %s", req.ClientID)

	redirectURL, err := url.Parse(req.RedirectURI)
	if err != nil {
		return "", invalidRequest("invalid redirect_uri")
	}
	params := url.Values{}
	params.Set("code", code.Code)
	if req.State != "" {
		params.Set("state", req.State)
	}
	redirectURL.RawQuery = params.Encode()

	return redirectURL.String(), nil
}

// TokenRequest carries the form parameters of a token request.
type TokenRequest struct {
	GrantType    string
	ClientID     string
	ClientSecret string
	Code         string
	RedirectURI  string
	CodeVerifier string
}

// TokenResponse is the JSON body of a successful token exchange.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope"`
}

// Exchange validates a token request and exchanges an authorization code for
// an access token. The code's mark-used transition is atomic: under
// concurrent exchange attempts for the same code, at most one succeeds.
func (s *Server) Exchange(req TokenRequest) (*TokenResponse, error) {
	client, err := s.store.GetClient(req.ClientID)
	if err != nil {
		return nil, invalidClient("invalid client credentials")
	}
	if subtle.ConstantTimeCompare([]byte(client.ClientSecret), []byte(req.ClientSecret)) != 1 {
		return nil, invalidClient("invalid client credentials")
	}

	if req.GrantType != grantTypeAuthorizationCode {
		return nil, newError(ErrorCodeUnsupportedGrantType, 400, "unsupported grant type: %s", req.GrantType)
	}

	code, err := s.store.ConsumeAuthorizationCode(req.Code, func(ac *AuthorizationCode) error {
		if ac.ClientID != req.ClientID {
			return invalidGrant("client mismatch")
		}
		if ac.RedirectURI != req.RedirectURI {
			return invalidGrant("redirect URI mismatch")
		}
		if ac.CodeChallenge != "" {
			if err := verifyPKCE(ac.CodeChallenge, ac.CodeChallengeMethod, req.CodeVerifier); err != nil {
				return invalidGrant("PKCE validation failed: %v", err)
			}
		}
		return nil
	})
	if err != nil {
		switch err {
		case ErrCodeNotFound:
			return nil, invalidGrant("invalid authorization code")
		case ErrCodeUsed:
			return nil, invalidGrant("authorization code already used")
		case ErrCodeExpired:
			return nil, invalidGrant("authorization code expired")
		}
		if oauthErr, ok := err.(*Error); ok {
			return nil, oauthErr
		}
		return nil, invalidGrant("%v", err)
	}

	token := &AccessToken{
		Token:     fmt.Sprintf("token_%s", oauth2.GenerateVerifier()),
		ClientID:  req.ClientID,
		Scope:     code.Scope,
		TokenType: tokenTypeBearer,
		ExpiresAt: time.Now().Add(s.config.AccessTokenTTL),
	}
	if err := s.store.SaveAccessToken(token); err != nil {
		return nil, invalidGrant("failed to issue access token: %v", err)
	}

	s.logger.Success("Issued access token for client %s", req.ClientID)

	// The refresh token is returned for contract completeness; this server
	// does not implement the refresh_token grant.
	return &TokenResponse{
		AccessToken:  token.Token,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    int(s.config.AccessTokenTTL / time.Second),
		RefreshToken: fmt.Sprintf("refresh_%s", oauth2.GenerateVerifier()),
		Scope:        code.Scope,
	}, nil
}

// Metadata is the RFC 8414 Authorization Server Metadata document.
type Metadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RegistrationEndpoint              string   `json:"registration_endpoint"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	ScopesSupported                   []string `json:"scopes_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
}

// Metadata returns the server's capability description. The document is
// static and side-effect free.
func (s *Server) Metadata() *Metadata {
	issuer := s.config.Issuer
	return &Metadata{
		Issuer:                            issuer,
		AuthorizationEndpoint:             issuer + "/authorize",
		TokenEndpoint:                     issuer + "/token",
		RegistrationEndpoint:              issuer + "/register",
		ResponseTypesSupported:            []string{responseTypeCode},
		GrantTypesSupported:               []string{grantTypeAuthorizationCode, grantTypeRefreshToken},
		CodeChallengeMethodsSupported:     []string{pkceMethodS256},
		ScopesSupported:                   s.config.ScopesSupported,
		TokenEndpointAuthMethodsSupported: []string{"client_secret_post"},
	}
}
