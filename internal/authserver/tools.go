package authserver

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewToolServer creates the MCP server whose tools sit behind the resource
// guard. The tools return canned data; the point of this server is
// exercising the OAuth flow in front of them, not the tools themselves.
func NewToolServer(version string) *server.MCPServer {
	mcpServer := server.NewMCPServer(
		"oauth-test-server",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	registerDemoTools(mcpServer)

	return mcpServer
}

// NewProtectedHandler wraps the MCP server in a streamable HTTP transport
// guarded by the bearer-token middleware.
func (h *Handler) NewProtectedHandler(mcpServer *server.MCPServer) http.Handler {
	httpServer := server.NewStreamableHTTPServer(
		mcpServer,
		server.WithEndpointPath("/mcp"),
	)
	return h.RequireToken(httpServer)
}

// registerDemoTools registers the demo tools and the user profile resource.
func registerDemoTools(s *server.MCPServer) {
	getCurrentUserTool := mcp.NewTool("get_current_user",
		mcp.WithDescription("Get authenticated user information"),
	)
	s.AddTool(getCurrentUserTool, handleGetCurrentUser)

	listDocumentsTool := mcp.NewTool("list_user_documents",
		mcp.WithDescription("List user's documents"),
	)
	s.AddTool(listDocumentsTool, handleListUserDocuments)

	createDocumentTool := mcp.NewTool("create_document",
		mcp.WithDescription("Create a new document"),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Title of the document to create"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Content of the document"),
		),
	)
	s.AddTool(createDocumentTool, handleCreateDocument)

	profileResource := mcp.NewResource("user://profile", "User Profile",
		mcp.WithResourceDescription("Profile information of the authenticated user"),
		mcp.WithMIMEType("text/plain"),
	)
	s.AddResource(profileResource, handleUserProfile)
}

// handleGetCurrentUser handles the get_current_user tool request.
func handleGetCurrentUser(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText("Authenticated user: test-user@example.com (OAuth verified)"), nil
}

// handleListUserDocuments handles the list_user_documents tool request.
func handleListUserDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText("User documents: document1.pdf, document2.txt, report.xlsx (OAuth authenticated)"), nil
}

// handleCreateDocument handles the create_document tool request.
func handleCreateDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("invalid arguments type"), nil
	}

	title, ok := args["title"].(string)
	if !ok || title == "" {
		return mcp.NewToolResultError("missing or invalid 'title' argument"), nil
	}

	content, _ := args["content"].(string)
	if len(content) > 50 {
		content = content[:50] + "..."
	}

	return mcp.NewToolResultText(fmt.Sprintf("Created document %q with content: %s (OAuth authenticated)", title, content)), nil
}

// handleUserProfile serves the user://profile resource.
func handleUserProfile(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "user://profile",
			MIMEType: "text/plain",
			Text:     "User profile: John Doe, john@example.com, Premium Account (OAuth authenticated)",
		},
	}, nil
}
