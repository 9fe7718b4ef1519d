package session

import (
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"mcpbox/internal/contracts"
	"mcpbox/internal/errors"
)

// ClientManager holds active client connections, their cached tool lists, and
// the tool-name routing table. It is safe for concurrent use by multiple
// goroutines.
type ClientManager struct {
	mu          sync.RWMutex
	clients     map[string]contracts.MCPClient
	serverTools map[string][]mcp.Tool
	toolIndex   map[string]string // tool name -> owning server name
}

// NewClientManager creates an empty, concurrency-safe ClientManager.
func NewClientManager() *ClientManager {
	return &ClientManager{
		clients:     make(map[string]contracts.MCPClient),
		serverTools: make(map[string][]mcp.Tool),
		toolIndex:   make(map[string]string),
	}
}

// Add registers a client and its tools by server name. Tool names must be
// unique across all registered servers; a collision is a configuration error
// and leaves the manager unchanged.
func (cm *ClientManager) Add(name string, c contracts.MCPClient, tools []mcp.Tool) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for _, tool := range tools {
		if owner, exists := cm.toolIndex[tool.Name]; exists && owner != name {
			return fmt.Errorf("%w: %q advertised by both %q and %q", errors.ErrDuplicateTool, tool.Name, owner, name)
		}
	}

	cm.clients[name] = c
	cm.serverTools[name] = tools
	for _, tool := range tools {
		cm.toolIndex[tool.Name] = name
	}

	return nil
}

// Client returns the client for the given server name.
// It returns a boolean to indicate whether the client was found.
func (cm *ClientManager) Client(name string) (contracts.MCPClient, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	c, ok := cm.clients[name]
	return c, ok
}

// Tools returns the cached tools for the given server name.
// It returns a boolean to indicate whether the tools were found.
func (cm *ClientManager) Tools(name string) ([]mcp.Tool, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	t, ok := cm.serverTools[name]
	return t, ok
}

// ServerForTool resolves a tool name to the server that advertises it.
func (cm *ClientManager) ServerForTool(tool string) (string, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	name, ok := cm.toolIndex[tool]
	return name, ok
}

// List returns all known server names.
func (cm *ClientManager) List() []string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	names := make([]string, 0, len(cm.clients))
	for name := range cm.clients {
		names = append(names, name)
	}
	return names
}

// Remove deletes the client, its tools and its routing entries by server name.
func (cm *ClientManager) Remove(name string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.clients, name)
	delete(cm.serverTools, name)
	for tool, owner := range cm.toolIndex {
		if owner == name {
			delete(cm.toolIndex, tool)
		}
	}
}
