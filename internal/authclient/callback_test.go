package authclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

// startCallbackServer binds an ephemeral port and registers cleanup.
func startCallbackServer(t *testing.T) (*CallbackServer, string) {
	t.Helper()

	cs := NewCallbackServer(0)
	redirectURL, err := cs.Start()
	if err != nil {
		t.Fatalf("failed to start callback server: %v", err)
	}
	t.Cleanup(cs.Shutdown)

	return cs, redirectURL
}

func TestCallbackServerSuccess(t *testing.T) {
	cs, redirectURL := startCallbackServer(t)

	resp, err := http.Get(redirectURL + "?code=auth-code-1&state=abc123")
	if err != nil {
		t.Fatalf("callback request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Authorization Successful") {
		t.Errorf("expected success page, got %q", string(body))
	}

	result, err := cs.WaitForResult(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("WaitForResult failed: %v", err)
	}
	if result.Code != "auth-code-1" {
		t.Errorf("unexpected code: %q", result.Code)
	}
	if result.State != "abc123" {
		t.Errorf("unexpected state: %q", result.State)
	}
}

func TestCallbackServerError(t *testing.T) {
	cs, redirectURL := startCallbackServer(t)

	resp, err := http.Get(redirectURL + "?error=access_denied&error_description=user+said+no")
	if err != nil {
		t.Fatalf("callback request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 on error redirect, got %d", resp.StatusCode)
	}

	_, err = cs.WaitForResult(context.Background(), time.Second)
	if err == nil {
		t.Fatal("expected error from WaitForResult")
	}
	var flowErr *FlowError
	if !errors.As(err, &flowErr) {
		t.Fatalf("expected *FlowError, got %T: %v", err, err)
	}
	if flowErr.Code != "access_denied" {
		t.Errorf("unexpected error code: %q", flowErr.Code)
	}
	if flowErr.Description != "user said no" {
		t.Errorf("unexpected description: %q", flowErr.Description)
	}
}

func TestCallbackServerFirstRequestWins(t *testing.T) {
	cs, redirectURL := startCallbackServer(t)

	first, err := http.Get(redirectURL + "?code=winner&state=s1")
	if err != nil {
		t.Fatalf("first callback failed: %v", err)
	}
	first.Body.Close()

	second, err := http.Get(redirectURL + "?code=loser&state=s2")
	if err != nil {
		t.Fatalf("second callback failed: %v", err)
	}
	defer second.Body.Close()

	if second.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for second callback, got %d", second.StatusCode)
	}

	result, err := cs.WaitForResult(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("WaitForResult failed: %v", err)
	}
	if result.Code != "winner" {
		t.Errorf("expected first code to win, got %q", result.Code)
	}
}

func TestCallbackServerIgnoresUnrelatedRequests(t *testing.T) {
	cs, redirectURL := startCallbackServer(t)

	resp, err := http.Get(redirectURL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for request without code or error, got %d", resp.StatusCode)
	}

	// The request must not complete the wait.
	_, err = cs.WaitForResult(context.Background(), 50*time.Millisecond)
	if !errors.Is(err, ErrCallbackTimeout) {
		t.Errorf("expected ErrCallbackTimeout, got %v", err)
	}
}

func TestCallbackServerWaitTimeout(t *testing.T) {
	cs, _ := startCallbackServer(t)

	start := time.Now()
	_, err := cs.WaitForResult(context.Background(), 50*time.Millisecond)
	if !errors.Is(err, ErrCallbackTimeout) {
		t.Fatalf("expected ErrCallbackTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("wait returned before the deadline: %v", elapsed)
	}
}

func TestCallbackServerWaitContextCancel(t *testing.T) {
	cs, _ := startCallbackServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := cs.WaitForResult(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCallbackServerShutdownReleasesPort(t *testing.T) {
	cs := NewCallbackServer(0)
	if _, err := cs.Start(); err != nil {
		t.Fatalf("failed to start callback server: %v", err)
	}
	port := cs.Port()
	cs.Shutdown()
	cs.Shutdown() // safe to call again

	replacement := NewCallbackServer(port)
	if _, err := replacement.Start(); err != nil {
		t.Fatalf("expected port %d to be free after shutdown: %v", port, err)
	}
	replacement.Shutdown()
}
