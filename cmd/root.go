package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version string
	verbose bool
	noColor bool
	jsonRPC bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mcp-oauth-probe",
	Short: "OAuth 2.1 test harness for MCP servers",
	Long: `mcp-oauth-probe exercises the OAuth 2.1 authorization code flow with PKCE
against MCP (Model Context Protocol) servers.

It ships both sides of the flow:

- 'serve' runs an OAuth 2.1 authorization server with dynamic client
  registration, server metadata discovery, and a bearer-protected MCP
  endpoint exposing demo tools.
- 'connect' runs the client side: discover the server, register a client,
  drive the browser-based authorization flow, exchange the code for a
  token, and call the protected tools.

This is useful for verifying that an OAuth-protected MCP deployment
enforces PKCE, redirect URI binding, single-use authorization codes, and
bearer token expiry the way a client expects.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// SetVersion sets the version for the application
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&jsonRPC, "json-rpc", false, "Enable full JSON-RPC message logging")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newConnectCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}

// setupSignalHandler sets up graceful shutdown on interrupt signals
func setupSignalHandler(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal, shutting down gracefully...")
		cancel()
	}()
}
