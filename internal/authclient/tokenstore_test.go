package authclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client/transport"

	"golang.org/x/oauth2"
)

func TestTransportTokenStoreEmpty(t *testing.T) {
	store := NewTransportTokenStore(NewMemoryStorage())

	_, err := store.GetToken(context.Background())
	if !errors.Is(err, transport.ErrNoToken) {
		t.Errorf("expected ErrNoToken from empty store, got %v", err)
	}
}

func TestTransportTokenStoreRoundTrip(t *testing.T) {
	storage := NewMemoryStorage()
	store := NewTransportTokenStore(storage)
	ctx := context.Background()

	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	err := store.SaveToken(ctx, &transport.Token{
		AccessToken:  "access-123",
		TokenType:    "Bearer",
		RefreshToken: "refresh-456",
		ExpiresAt:    expiry,
	})
	if err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}

	got, err := store.GetToken(ctx)
	if err != nil {
		t.Fatalf("GetToken failed: %v", err)
	}
	if got.AccessToken != "access-123" {
		t.Errorf("unexpected access token: %q", got.AccessToken)
	}
	if got.TokenType != "Bearer" {
		t.Errorf("unexpected token type: %q", got.TokenType)
	}
	if got.RefreshToken != "refresh-456" {
		t.Errorf("unexpected refresh token: %q", got.RefreshToken)
	}
	if !got.ExpiresAt.Equal(expiry) {
		t.Errorf("unexpected expiry: %v", got.ExpiresAt)
	}

	// The write must be visible through the underlying storage as well.
	stored, err := storage.GetTokens()
	if err != nil {
		t.Fatalf("GetTokens failed: %v", err)
	}
	if stored == nil || stored.AccessToken != "access-123" {
		t.Errorf("expected token in underlying storage, got %+v", stored)
	}
}

func TestTransportTokenStoreSharesStorage(t *testing.T) {
	storage := NewMemoryStorage()
	store := NewTransportTokenStore(storage)

	// A token written by the flow is visible to the transport.
	err := storage.SetTokens(&oauth2.Token{AccessToken: "flow-token", TokenType: "Bearer"})
	if err != nil {
		t.Fatalf("SetTokens failed: %v", err)
	}

	got, err := store.GetToken(context.Background())
	if err != nil {
		t.Fatalf("GetToken failed: %v", err)
	}
	if got.AccessToken != "flow-token" {
		t.Errorf("unexpected access token: %q", got.AccessToken)
	}
}

func TestTransportTokenStoreCanceledContext(t *testing.T) {
	store := NewTransportTokenStore(NewMemoryStorage())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.GetToken(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled from GetToken, got %v", err)
	}
	if err := store.SaveToken(ctx, &transport.Token{AccessToken: "x"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled from SaveToken, got %v", err)
	}
}
