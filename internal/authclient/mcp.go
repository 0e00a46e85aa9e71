package authclient

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/giantswarm/mcp-oauth-probe/internal/logger"
)

// ToolClient is an MCP client for the protected endpoint. It speaks
// streamable HTTP over a bearer-authenticated HTTP client obtained from the
// flow orchestrator.
type ToolClient struct {
	endpoint string
	logger   *logger.Logger
	version  string

	client *client.Client

	mu            sync.RWMutex
	toolCache     []mcp.Tool
	resourceCache []mcp.Resource
}

// ToolClientConfig holds configuration for creating a new ToolClient
type ToolClientConfig struct {
	// Endpoint is the protected MCP endpoint URL
	Endpoint string

	// HTTPClient carries the bearer credential; typically Flow.HTTPClient()
	HTTPClient *http.Client

	Logger  *logger.Logger
	Version string
}

// NewToolClient creates a client for the protected MCP endpoint.
func NewToolClient(cfg ToolClientConfig) *ToolClient {
	return &ToolClient{
		endpoint:  cfg.Endpoint,
		logger:    cfg.Logger,
		version:   cfg.Version,
		toolCache: []mcp.Tool{},
	}
}

// Connect establishes the transport and performs the MCP handshake. The
// bearer token must already be present in the HTTP client's transport or
// every request will be rejected by the resource guard.
func (c *ToolClient) Connect(ctx context.Context, httpClient *http.Client) error {
	c.logger.Info("Connecting to MCP server at %s...", c.endpoint)

	var opts []transport.StreamableHTTPCOption
	if httpClient != nil {
		opts = append(opts, transport.WithHTTPBasicClient(httpClient))
	}

	mcpClient, err := client.NewStreamableHttpClient(c.endpoint, opts...)
	if err != nil {
		return fmt.Errorf("failed to create streamable HTTP client: %w", err)
	}
	c.client = mcpClient

	if err := mcpClient.Start(ctx); err != nil {
		return fmt.Errorf("failed to start client: %w", err)
	}

	if err := c.initialize(ctx); err != nil {
		return err
	}

	if err := c.listTools(ctx); err != nil {
		return fmt.Errorf("initial tool listing failed: %w", err)
	}

	return nil
}

// initialize performs the MCP protocol handshake
func (c *ToolClient) initialize(ctx context.Context) error {
	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.Capabilities = mcp.ClientCapabilities{}
	req.Params.ClientInfo = mcp.Implementation{
		Name:    "mcp-oauth-probe",
		Version: c.version,
	}

	c.logger.Request("initialize", req.Params)

	result, err := c.client.Initialize(ctx, req)
	if err != nil {
		c.logger.Error("Initialize failed: %v", err)
		return err
	}

	c.logger.Response("initialize", result)
	return nil
}

// listTools refreshes the tool cache
func (c *ToolClient) listTools(ctx context.Context) error {
	req := mcp.ListToolsRequest{}

	c.logger.Request("tools/list", req.Params)

	result, err := c.client.ListTools(ctx, req)
	if err != nil {
		c.logger.Error("ListTools failed: %v", err)
		return err
	}

	c.logger.Response("tools/list", result)

	c.mu.Lock()
	c.toolCache = result.Tools
	c.mu.Unlock()

	return nil
}

// Tools returns the cached tool list from the last listing.
func (c *ToolClient) Tools() []mcp.Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tools := make([]mcp.Tool, len(c.toolCache))
	copy(tools, c.toolCache)
	return tools
}

// CallTool executes a tool with the given arguments.
func (c *ToolClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	req := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}

	c.logger.Request("tools/call", req.Params)

	result, err := c.client.CallTool(ctx, req)
	if err != nil {
		c.logger.Error("CallTool failed: %v", err)
		return nil, err
	}

	c.logger.Response("tools/call", result)
	return result, nil
}

// ListResources lists the server's resources.
func (c *ToolClient) ListResources(ctx context.Context) ([]mcp.Resource, error) {
	req := mcp.ListResourcesRequest{}

	c.logger.Request("resources/list", req.Params)

	result, err := c.client.ListResources(ctx, req)
	if err != nil {
		c.logger.Error("ListResources failed: %v", err)
		return nil, err
	}

	c.logger.Response("resources/list", result)

	c.mu.Lock()
	c.resourceCache = result.Resources
	c.mu.Unlock()

	return result.Resources, nil
}

// ReadResource retrieves a resource by URI.
func (c *ToolClient) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	req := mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}

	c.logger.Request("resources/read", req.Params)

	result, err := c.client.ReadResource(ctx, req)
	if err != nil {
		c.logger.Error("ReadResource failed: %v", err)
		return nil, err
	}

	c.logger.Response("resources/read", result)
	return result, nil
}

// Close shuts down the underlying transport.
func (c *ToolClient) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
