// Package authclient drives the client half of the OAuth 2.1 authorization
// code flow against an MCP server protected by bearer tokens.
//
// The flow orchestrator registers (or reuses) an OAuth client, generates a
// PKCE challenge, starts a loopback callback listener, sends the user agent
// to the authorization endpoint, waits for the redirect, exchanges the code
// for tokens, and hands back a bearer-authenticated HTTP client for the
// protected MCP endpoint.
//
// Token and client-credential persistence goes through the pluggable
// TokenStorage interface; the in-memory implementation is the default.
package authclient
