package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/client"

	"golang.org/x/oauth2"

	"github.com/giantswarm/mcp-oauth-probe/internal/logger"
)

// wellKnownMetadataPath is where authorization server metadata is published.
const wellKnownMetadataPath = "/.well-known/oauth-authorization-server"

const pkceMethodS256 = "S256"

// serverMetadata is the authorization server's capability document.
type serverMetadata struct {
	Issuer                        string   `json:"issuer"`
	AuthorizationEndpoint         string   `json:"authorization_endpoint"`
	TokenEndpoint                 string   `json:"token_endpoint"`
	RegistrationEndpoint          string   `json:"registration_endpoint"`
	ResponseTypesSupported        []string `json:"response_types_supported"`
	GrantTypesSupported           []string `json:"grant_types_supported"`
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported"`
	ScopesSupported               []string `json:"scopes_supported"`
	AuthMethodsSupported          []string `json:"token_endpoint_auth_methods_supported"`
}

type registrationRequest struct {
	RedirectURIs            []string `json:"redirect_uris"`
	ClientName              string   `json:"client_name,omitempty"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
}

type registrationResponse struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	RedirectURIs []string `json:"redirect_uris"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

type tokenErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// Flow drives the full authorization code flow with PKCE: discover the
// server's metadata, obtain client credentials, send the user agent to the
// authorization endpoint, capture the redirect, and exchange the code for
// tokens.
type Flow struct {
	config  *Config
	storage TokenStorage
	logger  *logger.Logger

	httpClient *http.Client

	// redirectHandler sends the user agent to the authorization URL.
	// Defaults to opening a browser; tests substitute a direct GET.
	redirectHandler func(authURL string) error
}

// NewFlow creates a flow orchestrator. The config is defaulted and must
// validate; the storage decides where tokens and client credentials live
// between runs.
func NewFlow(config *Config, storage TokenStorage, log *logger.Logger) (*Flow, error) {
	config = config.WithDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flow config: %w", err)
	}
	if storage == nil {
		storage = NewMemoryStorage()
	}

	f := &Flow{
		config:     config,
		storage:    storage,
		logger:     log,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	f.redirectHandler = f.openInBrowser
	return f, nil
}

// SetRedirectHandler replaces the default browser-opening redirect handler.
func (f *Flow) SetRedirectHandler(handler func(authURL string) error) {
	f.redirectHandler = handler
}

// Storage returns the flow's token storage.
func (f *Flow) Storage() TokenStorage {
	return f.storage
}

// Authorize runs the complete flow and returns the resulting token. Stored
// tokens are reused when still valid. The callback listener is torn down on
// every exit path.
func (f *Flow) Authorize(ctx context.Context) (*oauth2.Token, error) {
	if token, err := f.storage.GetTokens(); err == nil && token != nil && token.Valid() {
		f.logger.InfoVerbose("Reusing stored access token")
		return token, nil
	}

	metadata, err := f.discoverMetadata(ctx)
	if err != nil {
		return nil, err
	}

	info, err := f.ensureClient(ctx, metadata)
	if err != nil {
		return nil, err
	}

	codeVerifier, err := client.GenerateCodeVerifier()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}
	codeChallenge := client.GenerateCodeChallenge(codeVerifier)

	state, err := client.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}

	callbackServer := NewCallbackServer(f.callbackPort())
	if _, err := callbackServer.Start(); err != nil {
		return nil, err
	}
	defer callbackServer.Shutdown()
	f.logger.InfoVerbose("Callback server listening on %s", callbackServer.RedirectURL())

	authURL := f.buildAuthorizationURL(metadata, info, state, codeChallenge)

	f.logger.Info("Opening browser for authorization...")
	f.logger.Info("Authorization URL: %s", authURL)
	if err := f.redirectHandler(authURL); err != nil {
		f.logger.Warning("Could not open browser automatically: %v", err)
		f.logger.Info("Please open this URL in your browser:")
		f.logger.Info("%s", authURL)
	}

	f.logger.Info("Waiting for authorization...")
	result, err := callbackServer.WaitForResult(ctx, f.config.AuthorizationTimeout)
	if err != nil {
		return nil, err
	}

	// State must match exactly, including the empty string case.
	if result.State != state {
		return nil, fmt.Errorf("state mismatch (CSRF protection)")
	}
	if result.Code == "" {
		return nil, fmt.Errorf("no authorization code received")
	}

	f.logger.Success("Authorization code received")
	f.logger.Info("Exchanging code for access token...")

	token, err := f.exchangeCode(ctx, metadata, info, result.Code, codeVerifier)
	if err != nil {
		return nil, err
	}

	if err := f.storage.SetTokens(token); err != nil {
		return nil, fmt.Errorf("failed to store tokens: %w", err)
	}

	f.logger.Success("Access token obtained successfully!")
	return token, nil
}

// HTTPClient returns an HTTP client that attaches the stored access token as
// a bearer credential to every request.
func (f *Flow) HTTPClient() *http.Client {
	return &http.Client{
		Transport: newBearerRoundTripper(func() string {
			token, err := f.storage.GetTokens()
			if err != nil || token == nil {
				return ""
			}
			return token.AccessToken
		}, nil),
		Timeout: 30 * time.Second,
	}
}

// discoverMetadata fetches and sanity-checks the server's well-known
// metadata document.
func (f *Flow) discoverMetadata(ctx context.Context) (*serverMetadata, error) {
	metadataURL := strings.TrimSuffix(f.config.ServerURL, "/") + wellKnownMetadataPath
	f.logger.InfoVerbose("Discovering server metadata from %s", metadataURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metadataURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("metadata discovery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata discovery failed: unexpected status %d", resp.StatusCode)
	}

	var metadata serverMetadata
	if err := json.NewDecoder(resp.Body).Decode(&metadata); err != nil {
		return nil, fmt.Errorf("failed to decode server metadata: %w", err)
	}

	if metadata.AuthorizationEndpoint == "" || metadata.TokenEndpoint == "" {
		return nil, fmt.Errorf("server metadata is missing required endpoints")
	}

	supported := false
	for _, method := range metadata.CodeChallengeMethodsSupported {
		if method == pkceMethodS256 {
			supported = true
			break
		}
	}
	if !supported {
		return nil, fmt.Errorf("server does not support the S256 code challenge method")
	}

	return &metadata, nil
}

// ensureClient returns usable client credentials: stored ones first, then
// configured ones, then dynamic registration.
func (f *Flow) ensureClient(ctx context.Context, metadata *serverMetadata) (*ClientInfo, error) {
	if info, err := f.storage.GetClientInfo(); err == nil && info != nil && info.ClientID != "" {
		f.logger.InfoVerbose("Reusing registered client %s", info.ClientID)
		return info, nil
	}

	if f.config.ClientID != "" {
		info := &ClientInfo{
			ClientID:     f.config.ClientID,
			ClientSecret: f.config.ClientSecret,
			RedirectURIs: []string{f.config.RedirectURL},
		}
		if err := f.storage.SetClientInfo(info); err != nil {
			return nil, fmt.Errorf("failed to store client info: %w", err)
		}
		return info, nil
	}

	if metadata.RegistrationEndpoint == "" {
		return nil, fmt.Errorf("no client credentials configured and the server does not support dynamic registration")
	}

	f.logger.Info("No client ID configured, attempting dynamic client registration...")
	info, err := f.registerClient(ctx, metadata.RegistrationEndpoint)
	if err != nil {
		return nil, fmt.Errorf("client registration failed: %w", err)
	}
	f.logger.Success("Client registered successfully with ID: %s", info.ClientID)

	if err := f.storage.SetClientInfo(info); err != nil {
		return nil, fmt.Errorf("failed to store client info: %w", err)
	}
	return info, nil
}

func (f *Flow) registerClient(ctx context.Context, registrationEndpoint string) (*ClientInfo, error) {
	body, err := json.Marshal(registrationRequest{
		RedirectURIs:            []string{f.config.RedirectURL},
		ClientName:              f.config.ClientName,
		GrantTypes:              []string{"authorization_code", "refresh_token"},
		ResponseTypes:           []string{"code"},
		Scope:                   strings.Join(f.config.Scopes, " "),
		TokenEndpointAuthMethod: "client_secret_post",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, registrationEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var reg registrationResponse
	if err := json.NewDecoder(resp.Body).Decode(&reg); err != nil {
		return nil, fmt.Errorf("failed to decode registration response: %w", err)
	}
	if reg.ClientID == "" {
		return nil, fmt.Errorf("registration response is missing client_id")
	}

	return &ClientInfo{
		ClientID:     reg.ClientID,
		ClientSecret: reg.ClientSecret,
		RedirectURIs: reg.RedirectURIs,
	}, nil
}

func (f *Flow) buildAuthorizationURL(metadata *serverMetadata, info *ClientInfo, state, codeChallenge string) string {
	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("client_id", info.ClientID)
	params.Set("redirect_uri", f.config.RedirectURL)
	params.Set("scope", strings.Join(f.config.Scopes, " "))
	params.Set("state", state)
	params.Set("code_challenge", codeChallenge)
	params.Set("code_challenge_method", pkceMethodS256)

	separator := "?"
	if strings.Contains(metadata.AuthorizationEndpoint, "?") {
		separator = "&"
	}
	return metadata.AuthorizationEndpoint + separator + params.Encode()
}

// exchangeCode trades the authorization code and PKCE verifier for tokens at
// the token endpoint.
func (f *Flow) exchangeCode(ctx context.Context, metadata *serverMetadata, info *ClientInfo, code, codeVerifier string) (*oauth2.Token, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", info.ClientID)
	form.Set("client_secret", info.ClientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", f.config.RedirectURL)
	form.Set("code_verifier", codeVerifier)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, metadata.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var tokenErr tokenErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&tokenErr); err == nil && tokenErr.Error != "" {
			return nil, fmt.Errorf("token exchange failed: %s: %s", tokenErr.Error, tokenErr.Description)
		}
		return nil, fmt.Errorf("token exchange failed: unexpected status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("token response is missing access_token")
	}

	token := &oauth2.Token{
		AccessToken:  tr.AccessToken,
		TokenType:    tr.TokenType,
		RefreshToken: tr.RefreshToken,
	}
	if tr.ExpiresIn > 0 {
		token.Expiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return token, nil
}

// callbackPort extracts the listen port from the configured redirect URL.
func (f *Flow) callbackPort() int {
	parsed, err := url.Parse(f.config.RedirectURL)
	if err != nil {
		return DefaultCallbackPort
	}
	port, err := strconv.Atoi(parsed.Port())
	if err != nil {
		return DefaultCallbackPort
	}
	return port
}

func (f *Flow) openInBrowser(authURL string) error {
	return openBrowser(authURL)
}
