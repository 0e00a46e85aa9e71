package authclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"
)

// DefaultCallbackPort is the port the authorization redirect is expected on.
const DefaultCallbackPort = 3000

// ErrCallbackTimeout is returned by WaitForResult when no redirect arrives
// within the deadline.
var ErrCallbackTimeout = errors.New("timeout waiting for authorization callback")

//go:embed templates/callback_success.html
var callbackSuccessHTML string

//go:embed templates/callback_error.html
var callbackErrorHTML string

// FlowError is an error reported by the authorization server through the
// redirect, for example access_denied.
type FlowError struct {
	Code        string
	Description string
}

func (e *FlowError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("authorization failed: %s (%s)", e.Code, e.Description)
	}
	return fmt.Sprintf("authorization failed: %s", e.Code)
}

// CallbackResult is the terminal outcome of one authorization redirect.
type CallbackResult struct {
	// Code is the authorization code issued by the server.
	Code string

	// State echoes the state parameter of the original request.
	State string

	// Err is the server-reported error, nil on success.
	Err *FlowError
}

// CallbackServer is a single-use local HTTP listener that captures the
// authorization redirect. It accepts exactly one qualifying request as the
// flow's result; later requests get a 400 and are ignored.
//
// The handler holds an explicit reference to the shared result slot instead
// of closing over it, so the capture path is visible in one place.
type CallbackServer struct {
	port     int
	server   *http.Server
	listener net.Listener

	mu     sync.Mutex
	result *CallbackResult
	done   chan struct{}
}

// NewCallbackServer creates a callback server for the given port. Port 0
// lets the listener pick a free port; Start reports the bound address.
func NewCallbackServer(port int) *CallbackServer {
	return &CallbackServer{
		port: port,
		done: make(chan struct{}),
	}
}

// Start binds the listener and begins serving. Returns the redirect URL to
// use in the authorization request.
func (s *CallbackServer) Start() (string, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to start callback server on %s: %w", addr, err)
	}

	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", s.handleCallback)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		_ = s.server.Serve(listener)
	}()

	return s.RedirectURL(), nil
}

// RedirectURL returns the callback URL the server is listening on.
func (s *CallbackServer) RedirectURL() string {
	return fmt.Sprintf("http://localhost:%d/callback", s.port)
}

// Port returns the bound port.
func (s *CallbackServer) Port() int {
	return s.port
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	query := r.URL.Query()
	code := query.Get("code")
	errCode := query.Get("error")

	if code == "" && errCode == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	result := &CallbackResult{
		Code:  code,
		State: query.Get("state"),
	}
	if errCode != "" {
		result.Err = &FlowError{
			Code:        errCode,
			Description: query.Get("error_description"),
		}
	}

	s.mu.Lock()
	if s.result != nil {
		s.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	s.result = result
	close(s.done)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if result.Err != nil {
		w.WriteHeader(http.StatusBadRequest)
		tmpl := template.Must(template.New("error").Parse(callbackErrorHTML))
		_ = tmpl.Execute(w, map[string]string{
			"Error":       result.Err.Code,
			"Description": result.Err.Description,
		})
		return
	}

	tmpl := template.Must(template.New("success").Parse(callbackSuccessHTML))
	_ = tmpl.Execute(w, nil)
}

// WaitForResult blocks until the redirect arrives, the timeout elapses, or
// the context is cancelled. On a server-reported error the returned error is
// a *FlowError; on deadline it wraps ErrCallbackTimeout.
func (s *CallbackServer) WaitForResult(ctx context.Context, timeout time.Duration) (*CallbackResult, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.done:
		s.mu.Lock()
		result := s.result
		s.mu.Unlock()
		if result.Err != nil {
			return nil, result.Err
		}
		return result, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w after %s", ErrCallbackTimeout, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown releases the bound port. Safe to call more than once and on every
// exit path.
func (s *CallbackServer) Shutdown() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}
