package authclient

import (
	"sync"

	"golang.org/x/oauth2"
)

// ClientInfo holds the credentials of a registered OAuth client as returned
// by dynamic registration or provided up front.
type ClientInfo struct {
	ClientID     string
	ClientSecret string
	RedirectURIs []string
}

// TokenStorage is the pluggable persistence capability for the flow
// orchestrator. Implementations return (nil, nil) when nothing is stored
// yet. The in-memory variant ships with this package; persistent backings
// can be substituted without touching the flow.
type TokenStorage interface {
	GetTokens() (*oauth2.Token, error)
	SetTokens(tokens *oauth2.Token) error
	GetClientInfo() (*ClientInfo, error)
	SetClientInfo(info *ClientInfo) error
}

// MemoryStorage is a thread-safe in-memory TokenStorage implementation.
type MemoryStorage struct {
	mu         sync.RWMutex
	tokens     *oauth2.Token
	clientInfo *ClientInfo
}

// NewMemoryStorage creates an empty in-memory token storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// GetTokens returns the stored tokens, or nil when none are stored.
func (s *MemoryStorage) GetTokens() (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens, nil
}

// SetTokens stores the given tokens.
func (s *MemoryStorage) SetTokens(tokens *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = tokens
	return nil
}

// GetClientInfo returns the stored client credentials, or nil when none are
// stored.
func (s *MemoryStorage) GetClientInfo() (*ClientInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientInfo, nil
}

// SetClientInfo stores the given client credentials.
func (s *MemoryStorage) SetClientInfo(info *ClientInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientInfo = info
	return nil
}
