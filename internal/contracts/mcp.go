package contracts

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"mcpbox/internal/domain"
)

// MCPClient is the subset of the mcp-go client surface the session manager
// uses. *client.Client satisfies it; tests substitute fakes.
type MCPClient interface {
	Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	Ping(ctx context.Context) error
	ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// MCPHealthMonitor provides a way to interact with the health status of MCP servers.
type MCPHealthMonitor interface {
	// Status returns the health status for a single tracked server.
	Status(name string) (domain.ServerHealth, error)

	// List returns a copy of all known server health records.
	List() []domain.ServerHealth

	// Update records a health check observation for a tracked server.
	// Latency can be nil if the probe failed or was not measured.
	Update(name string, healthy bool, latency *time.Duration) error
}

// MCPClientAccessor provides a way to interact with MCP servers through a client.
type MCPClientAccessor interface {
	// Add registers a client and its advertised tools by server name.
	// It fails if any advertised tool name is already routed to another server.
	Add(name string, c MCPClient, tools []mcp.Tool) error

	// Client returns the client for the given server name.
	// It returns a boolean to indicate whether the client was found.
	Client(name string) (MCPClient, bool)

	// Tools returns the cached tools for the given server name.
	// It returns a boolean to indicate whether the tools were found.
	Tools(name string) ([]mcp.Tool, bool)

	// ServerForTool resolves a tool name to the server that advertises it.
	ServerForTool(tool string) (string, bool)

	// List returns all known server names.
	List() []string

	// Remove deletes the client and its tools by server name.
	Remove(name string)
}

// ToolCaller is what the orchestration client needs from the session manager.
type ToolCaller interface {
	// Tools returns the merged tool descriptors across all healthy servers.
	Tools() []domain.ToolDescriptor

	// CallTool routes a tool invocation to the owning server and returns the
	// raw structured result text, unmodified.
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
}
