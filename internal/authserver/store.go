package authserver

import (
	"errors"
	"sync"
	"time"
)

// Store lookup errors. The server maps these onto OAuth error codes at its
// boundary; the store itself stays protocol-agnostic.
var (
	ErrClientNotFound = errors.New("client not found")
	ErrCodeNotFound   = errors.New("authorization code not found")
	ErrCodeUsed       = errors.New("authorization code already used")
	ErrCodeExpired    = errors.New("authorization code expired")
	ErrTokenNotFound  = errors.New("access token not found")
	ErrTokenExpired   = errors.New("access token expired")
)

// Client is a registered OAuth client. Records are immutable once stored.
type Client struct {
	ClientID                string
	ClientSecret            string
	RedirectURIs            []string
	GrantTypes              []string
	ResponseTypes           []string
	Scopes                  []string
	ClientName              string
	TokenEndpointAuthMethod string
}

// HasRedirectURI reports whether uri is one of the client's registered
// redirect URIs.
func (c *Client) HasRedirectURI(uri string) bool {
	for _, u := range c.RedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}

// AuthorizationCode is a single-use grant bound to a client, a redirect URI,
// and a PKCE challenge.
type AuthorizationCode struct {
	Code                string
	ClientID            string
	RedirectURI         string
	Scope               string
	CodeChallenge       string
	CodeChallengeMethod string
	ExpiresAt           time.Time
	Used                bool
}

// AccessToken is an issued bearer credential. Tokens expire by time
// comparison and are never explicitly deleted outside the expiry sweep.
type AccessToken struct {
	Token     string
	ClientID  string
	Scope     string
	TokenType string
	ExpiresAt time.Time
}

// Store is a mutex-guarded in-memory store for clients, authorization codes,
// and access tokens. All mutations are serialized under a single lock, which
// is sufficient for the expected low concurrency of a test server and makes
// the single-use code transition trivially atomic.
type Store struct {
	mu sync.RWMutex

	clients map[string]*Client
	codes   map[string]*AuthorizationCode
	tokens  map[string]*AccessToken

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

// NewStore creates a store with the default expiry sweep interval (1 minute).
func NewStore() *Store {
	return NewStoreWithInterval(time.Minute)
}

// NewStoreWithInterval creates a store with a custom expiry sweep interval.
func NewStoreWithInterval(cleanupInterval time.Duration) *Store {
	s := &Store{
		clients:         make(map[string]*Client),
		codes:           make(map[string]*AuthorizationCode),
		tokens:          make(map[string]*AccessToken),
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
	}

	go s.cleanupLoop()

	return s
}

// Stop terminates the background expiry sweep. Safe to call more than once.
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCleanup)
	})
}

// SaveClient stores a registered client.
func (s *Store) SaveClient(client *Client) error {
	if client == nil || client.ClientID == "" {
		return errors.New("client ID cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.clients[client.ClientID] = client
	return nil
}

// GetClient retrieves a registered client by ID.
func (s *Store) GetClient(clientID string) (*Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.clients[clientID]
	if !ok {
		return nil, ErrClientNotFound
	}
	return client, nil
}

// SaveAuthorizationCode stores a freshly minted authorization code.
func (s *Store) SaveAuthorizationCode(code *AuthorizationCode) error {
	if code == nil || code.Code == "" {
		return errors.New("authorization code cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.codes[code.Code] = code
	return nil
}

// ConsumeAuthorizationCode atomically validates and consumes an authorization
// code. The lifecycle checks (exists, unused, unexpired) and the caller's
// check callback all run under the store lock; the code is marked used only
// when every check passes. Under concurrent exchange attempts for the same
// code, exactly one caller observes success; the rest see ErrCodeUsed.
//
// A failed check leaves the code untouched so the error reported to the
// caller reflects the real reason, not a burned code.
func (s *Store) ConsumeAuthorizationCode(code string, check func(*AuthorizationCode) error) (*AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ac, ok := s.codes[code]
	if !ok {
		return nil, ErrCodeNotFound
	}
	if ac.Used {
		return nil, ErrCodeUsed
	}
	if time.Now().After(ac.ExpiresAt) {
		return nil, ErrCodeExpired
	}
	if check != nil {
		if err := check(ac); err != nil {
			return nil, err
		}
	}

	ac.Used = true

	// Return a copy so callers cannot mutate stored state.
	consumed := *ac
	return &consumed, nil
}

// SaveAccessToken stores an issued access token.
func (s *Store) SaveAccessToken(token *AccessToken) error {
	if token == nil || token.Token == "" {
		return errors.New("access token cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[token.Token] = token
	return nil
}

// GetAccessToken retrieves a valid access token. Expired tokens are reported
// as ErrTokenExpired.
func (s *Store) GetAccessToken(token string) (*AccessToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	at, ok := s.tokens[token]
	if !ok {
		return nil, ErrTokenNotFound
	}
	if time.Now().After(at.ExpiresAt) {
		return nil, ErrTokenExpired
	}
	return at, nil
}

// ClientCount returns the number of registered clients.
func (s *Store) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// CodeCount returns the number of outstanding authorization codes.
func (s *Store) CodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.codes)
}

// cleanupLoop periodically sweeps expired codes and tokens.
func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// cleanup removes expired authorization codes and access tokens. Used codes
// are kept until expiry so that replay attempts keep failing with the
// "already used" reason rather than "not found".
func (s *Store) cleanup() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for code, ac := range s.codes {
		if now.After(ac.ExpiresAt) {
			delete(s.codes, code)
		}
	}
	for token, at := range s.tokens {
		if now.After(at.ExpiresAt) {
			delete(s.tokens, token)
		}
	}
}
