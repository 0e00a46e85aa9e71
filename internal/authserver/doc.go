// Package authserver implements a minimal OAuth 2.1 authorization server for
// exercising MCP clients, together with the bearer-token guard for the
// protected MCP endpoint.
//
// The server follows OAuth 2.1 security practices within the limits of a
// single-process test harness:
//   - Authorization code flow only (no implicit or password grants)
//   - PKCE with the S256 challenge method
//   - Dynamic Client Registration (RFC 7591)
//   - Authorization Server Metadata (RFC 8414)
//   - Short-lived, single-use authorization codes
//
// Storage is in-memory and process-scoped. Every authorization request is
// auto-approved; there is no consent screen. This is a deliberate
// simplification for testing OAuth control flow, not a production server.
package authserver
