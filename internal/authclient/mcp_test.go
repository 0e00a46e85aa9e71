package authclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/giantswarm/mcp-oauth-probe/internal/authserver"
)

func TestNewToolClient(t *testing.T) {
	c := NewToolClient(ToolClientConfig{
		Endpoint: "http://localhost:8003/mcp",
		Logger:   quietLogger(),
		Version:  "test",
	})
	if c == nil {
		t.Fatal("expected client to be created")
	}
	if tools := c.Tools(); len(tools) != 0 {
		t.Errorf("expected empty tool cache before connect, got %d", len(tools))
	}
}

func TestToolClientCloseWithoutConnect(t *testing.T) {
	c := NewToolClient(ToolClientConfig{Endpoint: "http://localhost:8003/mcp", Logger: quietLogger()})
	if err := c.Close(); err != nil {
		t.Errorf("Close on unconnected client failed: %v", err)
	}
}

// newProtectedMCPServer stands up the tool server behind the resource guard
// and returns its base URL plus a token accepted by the guard.
func newProtectedMCPServer(t *testing.T) (string, string) {
	t.Helper()

	log := quietLogger()
	store := authserver.NewStoreWithInterval(time.Hour)
	t.Cleanup(store.Stop)

	srv, err := authserver.NewServer(&authserver.Config{Issuer: "http://localhost:8003"}, store, log)
	if err != nil {
		t.Fatalf("failed to create authorization server: %v", err)
	}
	handler := authserver.NewHandler(srv, log)

	token := &authserver.AccessToken{
		Token:     "integration-token",
		ClientID:  "integration-client",
		Scope:     "read write",
		TokenType: "Bearer",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := store.SaveAccessToken(token); err != nil {
		t.Fatalf("failed to seed token: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/mcp", handler.NewProtectedHandler(authserver.NewToolServer("test")))

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	return ts.URL, token.Token
}

func TestToolClientEndToEnd(t *testing.T) {
	baseURL, token := newProtectedMCPServer(t)
	ctx := context.Background()

	httpClient := &http.Client{
		Transport: newBearerRoundTripper(func() string { return token }, nil),
	}

	c := NewToolClient(ToolClientConfig{
		Endpoint: baseURL + "/mcp",
		Logger:   quietLogger(),
		Version:  "test",
	})
	if err := c.Connect(ctx, httpClient); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Close()

	tools := c.Tools()
	if len(tools) == 0 {
		t.Fatal("expected tools from the protected server")
	}
	names := make(map[string]bool, len(tools))
	for _, tool := range tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"get_current_user", "list_user_documents", "create_document"} {
		if !names[want] {
			t.Errorf("expected tool %q in listing, got %v", want, names)
		}
	}

	result, err := c.CallTool(ctx, "get_current_user", nil)
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if len(result.Content) == 0 {
		t.Fatal("expected content from get_current_user")
	}
	text, ok := mcp.AsTextContent(result.Content[0])
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	if !strings.Contains(text.Text, "test-user@example.com") {
		t.Errorf("unexpected tool output: %q", text.Text)
	}
}

func TestToolClientRejectedWithoutToken(t *testing.T) {
	baseURL, _ := newProtectedMCPServer(t)

	c := NewToolClient(ToolClientConfig{
		Endpoint: baseURL + "/mcp",
		Logger:   quietLogger(),
		Version:  "test",
	})
	if err := c.Connect(context.Background(), &http.Client{}); err == nil {
		c.Close()
		t.Fatal("expected connect to fail without a bearer token")
	}
}
