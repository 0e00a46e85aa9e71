package authserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/giantswarm/mcp-oauth-probe/internal/logger"
)

// Well-known metadata path (RFC 8414).
const MetadataPath = "/.well-known/oauth-authorization-server"

// Handler is a thin HTTP adapter for the authorization Server. It parses
// requests, delegates to the Server for the protocol logic, and renders
// OAuth errors as RFC 6749 JSON bodies.
type Handler struct {
	server *Server
	logger *logger.Logger
}

// NewHandler creates an HTTP handler for the given server.
func NewHandler(server *Server, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewLogger(false, false, false)
	}
	return &Handler{
		server: server,
		logger: log,
	}
}

// Routes registers the OAuth endpoints plus the info and health endpoints
// on the given mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc(MetadataPath, h.handleMetadata)
	mux.HandleFunc("/authorize", h.handleAuthorize)
	mux.HandleFunc("/register", h.handleRegister)
	mux.HandleFunc("/token", h.handleToken)
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/", h.handleInfo)
}

// handleMetadata serves the RFC 8414 Authorization Server Metadata document.
func (h *Handler) handleMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, h.server.Metadata())
}

// handleAuthorize handles GET /authorize and redirects back to the client
// with an authorization code.
func (h *Handler) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	req := AuthorizeRequest{
		ResponseType:        query.Get("response_type"),
		ClientID:            query.Get("client_id"),
		RedirectURI:         query.Get("redirect_uri"),
		Scope:               query.Get("scope"),
		State:               query.Get("state"),
		CodeChallenge:       query.Get("code_challenge"),
		CodeChallengeMethod: query.Get("code_challenge_method"),
	}

	redirectURL, err := h.server.Authorize(req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// registrationResponse is the RFC 7591 client registration response body.
type registrationResponse struct {
	ClientID                string   `json:"client_id"`
	ClientSecret            string   `json:"client_secret"`
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	Scope                   string   `json:"scope"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	ClientName              string   `json:"client_name"`
}

// handleRegister handles POST /register (RFC 7591 Dynamic Client
// Registration).
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var metadata ClientMetadata
	if err := json.NewDecoder(r.Body).Decode(&metadata); err != nil {
		h.writeError(w, invalidRequest("invalid JSON: %v", err))
		return
	}

	client, err := h.server.RegisterClient(metadata)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, registrationResponse{
		ClientID:                client.ClientID,
		ClientSecret:            client.ClientSecret,
		RedirectURIs:            client.RedirectURIs,
		GrantTypes:              client.GrantTypes,
		ResponseTypes:           client.ResponseTypes,
		Scope:                   joinScopes(client.Scopes),
		TokenEndpointAuthMethod: client.TokenEndpointAuthMethod,
		ClientName:              client.ClientName,
	})
}

// handleToken handles POST /token (form-encoded code exchange).
func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.writeError(w, invalidRequest("invalid form body: %v", err))
		return
	}

	req := TokenRequest{
		GrantType:    r.Form.Get("grant_type"),
		ClientID:     r.Form.Get("client_id"),
		ClientSecret: r.Form.Get("client_secret"),
		Code:         r.Form.Get("code"),
		RedirectURI:  r.Form.Get("redirect_uri"),
		CodeVerifier: r.Form.Get("code_verifier"),
	}

	resp, err := h.server.Exchange(req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleHealth serves the health check endpoint.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"auth":   "oauth2",
	})
}

// handleInfo serves server information at the root path.
func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name": "OAuth 2.1 MCP test server",
		"oauth_endpoints": map[string]string{
			"authorization": "/authorize",
			"token":         "/token",
			"registration":  "/register",
			"metadata":      MetadataPath,
		},
		"mcp_endpoint": "/mcp",
	})
}

// writeError renders an error as an RFC 6749 JSON error body. Unexpected
// non-OAuth errors are masked as a generic invalid_request so internal
// details do not leak to the client.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var oauthErr *Error
	if !errors.As(err, &oauthErr) {
		oauthErr = invalidRequest("request failed")
		h.logger.Error("Unexpected error: %v", err)
	}

	writeJSON(w, oauthErr.Status, oauthErr)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// joinScopes space-joins a scope list for wire representation.
func joinScopes(scopes []string) string {
	return strings.Join(scopes, " ")
}
