package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/giantswarm/mcp-oauth-probe/internal/authserver"
	"github.com/giantswarm/mcp-oauth-probe/internal/logger"
)

var (
	serveListenAddr string
	serveIssuer     string
	serveNoSeed     bool
)

// Pre-provisioned test client, so the flow can be exercised without dynamic
// registration.
const (
	seedClientID     = "test-mcp-client-123"
	seedClientSecret = "secret-456"
	seedRedirectURI  = "http://localhost:3000/callback"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the OAuth 2.1 authorization server with a protected MCP endpoint",
		Long: `Runs an OAuth 2.1 authorization server with dynamic client registration,
PKCE enforcement, and server metadata discovery, plus a bearer-protected
MCP endpoint at /mcp exposing demo tools.

A test client (` + seedClientID + `) is pre-registered so the flow can be
exercised without dynamic registration; disable it with --no-seed-client.`,
		RunE: runServe,
	}

	cmd.Flags().StringVar(&serveListenAddr, "listen-addr", ":8003", "Listen address for the authorization server")
	cmd.Flags().StringVar(&serveIssuer, "issuer", "", "Issuer URL announced in server metadata (default: http://localhost<listen-addr>)")
	cmd.Flags().BoolVar(&serveNoSeed, "no-seed-client", false, "Do not pre-register the test client")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	setupSignalHandler(cancel)

	log := logger.NewLogger(verbose, !noColor, jsonRPC)

	issuer := serveIssuer
	if issuer == "" {
		issuer = "http://localhost" + serveListenAddr
	}

	store := authserver.NewStore()
	defer store.Stop()

	srv, err := authserver.NewServer(&authserver.Config{Issuer: issuer}, store, log)
	if err != nil {
		return fmt.Errorf("failed to create authorization server: %w", err)
	}

	if !serveNoSeed {
		if err := srv.SeedClient(&authserver.Client{
			ClientID:                seedClientID,
			ClientSecret:            seedClientSecret,
			RedirectURIs:            []string{seedRedirectURI},
			GrantTypes:              []string{"authorization_code", "refresh_token"},
			ResponseTypes:           []string{"code"},
			Scopes:                  []string{"read", "write"},
			ClientName:              "Test MCP Client",
			TokenEndpointAuthMethod: "client_secret_post",
		}); err != nil {
			return fmt.Errorf("failed to seed test client: %w", err)
		}
		log.Info("Pre-registered test client: %s", seedClientID)
	}

	handler := authserver.NewHandler(srv, log)

	mux := http.NewServeMux()
	handler.Routes(mux)
	mux.Handle("/mcp", handler.NewProtectedHandler(authserver.NewToolServer(version)))

	httpServer := &http.Server{
		Addr:              serveListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("OAuth 2.1 authorization server listening on %s", serveListenAddr)
		log.Info("Metadata: %s%s", issuer, authserver.MetadataPath)
		log.Info("Protected MCP endpoint: %s/mcp", issuer)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
