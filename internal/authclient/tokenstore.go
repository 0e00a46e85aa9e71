package authclient

import (
	"context"

	"github.com/mark3labs/mcp-go/client/transport"

	"golang.org/x/oauth2"
)

// storageTokenStore adapts a TokenStorage to mcp-go's transport.TokenStore
// interface. It has no storage of its own; all reads and writes go through
// the underlying TokenStorage, so the flow orchestrator and the MCP
// transport always see the same token.
type storageTokenStore struct {
	storage TokenStorage
}

// NewTransportTokenStore wraps a TokenStorage so it can back an MCP
// streamable HTTP transport.
func NewTransportTokenStore(storage TokenStorage) transport.TokenStore {
	return &storageTokenStore{storage: storage}
}

// GetToken returns the current OAuth token. Returns transport.ErrNoToken
// when nothing is stored yet, which signals mcp-go that authorization is
// still required.
func (s *storageTokenStore) GetToken(ctx context.Context) (*transport.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stored, err := s.storage.GetTokens()
	if err != nil {
		return nil, err
	}
	if stored == nil || stored.AccessToken == "" {
		return nil, transport.ErrNoToken
	}

	return &transport.Token{
		AccessToken:  stored.AccessToken,
		TokenType:    stored.TokenType,
		RefreshToken: stored.RefreshToken,
		ExpiresAt:    stored.Expiry,
	}, nil
}

// SaveToken persists a token written back by mcp-go, typically after a
// refresh.
func (s *storageTokenStore) SaveToken(ctx context.Context, token *transport.Token) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if token == nil {
		return nil
	}

	return s.storage.SetTokens(&oauth2.Token{
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		RefreshToken: token.RefreshToken,
		Expiry:       token.ExpiresAt,
	})
}

var _ transport.TokenStore = (*storageTokenStore)(nil)
