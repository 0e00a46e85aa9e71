package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"

	"github.com/giantswarm/mcp-oauth-probe/internal/authclient"
	"github.com/giantswarm/mcp-oauth-probe/internal/logger"
)

var (
	connectServerURL    string
	connectEndpoint     string
	connectClientID     string
	connectClientSecret string
	connectScopes       []string
	connectRedirectURL  string
	connectTimeout      time.Duration
	connectREPL         bool
)

func newConnectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Authorize against the server and call the protected MCP endpoint",
		Long: `Runs the client side of the OAuth 2.1 flow: discover the authorization
server's metadata, register a client (or reuse configured credentials),
open the browser for authorization, capture the redirect on the local
callback listener, exchange the authorization code for an access token,
and connect to the protected MCP endpoint with the bearer token.

By default the discovered tools are listed and the session ends. With
--repl an interactive loop is started for exploring and calling tools.`,
		RunE: runConnect,
	}

	cmd.Flags().StringVar(&connectServerURL, "server-url", "http://localhost:8003", "Authorization server base URL")
	cmd.Flags().StringVar(&connectEndpoint, "endpoint", "", "Protected MCP endpoint URL (default: <server-url>/mcp)")
	cmd.Flags().StringVar(&connectClientID, "client-id", "", "OAuth client ID (optional - will use Dynamic Client Registration if not provided)")
	cmd.Flags().StringVar(&connectClientSecret, "client-secret", "", "OAuth client secret (optional)")
	cmd.Flags().StringSliceVar(&connectScopes, "scopes", []string{"read", "write"}, "OAuth scopes to request")
	cmd.Flags().StringVar(&connectRedirectURL, "redirect-url", "http://localhost:3000/callback", "OAuth redirect URL for the local callback listener")
	cmd.Flags().DurationVar(&connectTimeout, "auth-timeout", 5*time.Minute, "Maximum time to wait for the authorization redirect")
	cmd.Flags().BoolVar(&connectREPL, "repl", false, "Start interactive REPL mode after authorization")

	return cmd
}

func runConnect(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	setupSignalHandler(cancel)

	log := logger.NewLogger(verbose, !noColor, jsonRPC)

	if connectClientSecret != "" && cmd.Flags().Changed("client-secret") {
		log.Warning("Security Warning: Client secret passed via CLI flag is visible in process listings")
	}

	endpoint := connectEndpoint
	if endpoint == "" {
		endpoint = strings.TrimSuffix(connectServerURL, "/") + "/mcp"
	}

	flow, err := authclient.NewFlow(&authclient.Config{
		ServerURL:            connectServerURL,
		Endpoint:             endpoint,
		ClientID:             connectClientID,
		ClientSecret:         connectClientSecret,
		Scopes:               connectScopes,
		RedirectURL:          connectRedirectURL,
		AuthorizationTimeout: connectTimeout,
	}, authclient.NewMemoryStorage(), log)
	if err != nil {
		return err
	}

	if _, err := flow.Authorize(ctx); err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}

	toolClient := authclient.NewToolClient(authclient.ToolClientConfig{
		Endpoint: endpoint,
		Logger:   log,
		Version:  version,
	})
	defer func() { _ = toolClient.Close() }()

	if err := toolClient.Connect(ctx, flow.HTTPClient()); err != nil {
		return fmt.Errorf("failed to connect to protected MCP endpoint: %w", err)
	}
	log.Success("Connected to protected MCP endpoint")

	if connectREPL {
		repl := authclient.NewREPL(toolClient, log)
		if err := repl.Run(ctx); err != nil {
			return fmt.Errorf("REPL error: %w", err)
		}
		return nil
	}

	return probeTools(ctx, toolClient, log)
}

// probeTools lists the protected tools and exercises the first one that
// takes no arguments, proving the bearer token is accepted.
func probeTools(ctx context.Context, toolClient *authclient.ToolClient, log *logger.Logger) error {
	tools := toolClient.Tools()
	if len(tools) == 0 {
		log.Warning("Server exposes no tools")
		return nil
	}

	log.Info("Available tools (%d):", len(tools))
	for _, tool := range tools {
		log.Info("  - %s: %s", tool.Name, tool.Description)
	}

	result, err := toolClient.CallTool(ctx, tools[0].Name, nil)
	if err != nil {
		return fmt.Errorf("tool call failed: %w", err)
	}

	for _, content := range result.Content {
		if textContent, ok := mcp.AsTextContent(content); ok {
			log.Info("%s", textContent.Text)
		}
	}

	log.Success("Protected tool call succeeded")
	return nil
}
