// Package session owns the lifecycle of connections to configured MCP tool
// servers: launch, handshake, tool-call dispatch, periodic health probing and
// teardown.
package session

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/sync/errgroup"

	"mcpbox/internal/config"
	"mcpbox/internal/contracts"
	"mcpbox/internal/domain"
	"mcpbox/internal/errors"
)

const defaultPingTimeout = 3 * time.Second

// Launcher starts the process for one configured server and returns a client
// speaking MCP over its stdio. Tests substitute in-memory fakes.
type Launcher func(ctx context.Context, entry config.ServerEntry) (contracts.MCPClient, error)

// Manager maintains one connection per configured, enabled tool server,
// routes tool invocations by name, and detects unhealthy servers.
//
// Transport handles are exclusively owned by the Manager; all calls to a
// given server are serialized through its routing.
type Manager struct {
	logger      hclog.Logger
	entries     map[string]config.ServerEntry
	order       []string // enabled server names in config order
	clients     *ClientManager
	health      *HealthTracker
	launch      Launcher
	pingTimeout time.Duration

	mu sync.Mutex // serializes Initialize/Shutdown
}

// Option configures a Manager.
type Option func(*Manager)

// WithLauncher replaces the stdio process launcher.
func WithLauncher(l Launcher) Option {
	return func(m *Manager) { m.launch = l }
}

// WithPingTimeout bounds each liveness probe.
func WithPingTimeout(d time.Duration) Option {
	return func(m *Manager) { m.pingTimeout = d }
}

// NewManager creates a session manager for the enabled servers in cfg.
// Connections are not established until Initialize is called.
func NewManager(logger hclog.Logger, servers []config.ServerEntry, opt ...Option) *Manager {
	entries := make(map[string]config.ServerEntry, len(servers))
	order := make([]string, 0, len(servers))
	for _, s := range servers {
		if !s.IsEnabled() {
			continue
		}
		entries[s.Name] = s
		order = append(order, s.Name)
	}

	m := &Manager{
		logger:      logger.Named("session"),
		entries:     entries,
		order:       order,
		clients:     NewClientManager(),
		health:      NewHealthTracker(order, DefaultDisableThreshold),
		launch:      stdioLauncher,
		pingTimeout: defaultPingTimeout,
	}
	for _, o := range opt {
		o(m)
	}
	return m
}

func stdioLauncher(_ context.Context, entry config.ServerEntry) (contracts.MCPClient, error) {
	return client.NewStdioMCPClient(entry.Command, nil, entry.Args...)
}

// Initialize launches every enabled server and performs the MCP handshake,
// bounded by each server's configured timeout. A single server failing to
// come up does not abort the others; it is logged and the server is left
// unavailable. Initialize fails with ErrSessionInit when no server came up,
// and with ErrDuplicateTool when two servers advertise the same tool name.
//
// Calling Initialize again tears down existing connections first and clears
// any disabled state.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.shutdownLocked()
	m.health.Reset(m.order)

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range m.order {
		entry := m.entries[name]
		g.Go(func() error {
			if err := m.launchServer(gctx, entry); err != nil {
				// A tool-name collision poisons routing for everyone;
				// anything else degrades gracefully to the surviving servers.
				if stdErrors.Is(err, errors.ErrDuplicateTool) {
					return err
				}
				m.logger.Error("failed to launch server", "name", entry.Name, "error", err)
				_ = m.health.Update(entry.Name, false, nil)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		m.shutdownLocked()
		return err
	}

	if len(m.clients.List()) == 0 && len(m.order) > 0 {
		return fmt.Errorf("%w: all %d server(s) failed to initialize", errors.ErrSessionInit, len(m.order))
	}

	return nil
}

func (m *Manager) launchServer(ctx context.Context, entry config.ServerEntry) error {
	attempts := entry.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		tools, mcpClient, err := m.handshake(ctx, entry)
		if err != nil {
			lastErr = err
			m.logger.Warn("server handshake failed",
				"name", entry.Name, "attempt", attempt+1, "error", err)
			continue
		}

		if err := m.clients.Add(entry.Name, mcpClient, tools); err != nil {
			_ = mcpClient.Close()
			return err
		}
		_ = m.health.Update(entry.Name, true, nil)

		m.logger.Info("server ready", "name", entry.Name, "tools", len(tools))
		return nil
	}

	return lastErr
}

// callTimeout returns the per-call bound for a server, guarding against
// entries that never went through config defaulting.
func callTimeout(entry config.ServerEntry) time.Duration {
	if d := entry.Timeout(); d > 0 {
		return d
	}
	return 30 * time.Second
}

// handshake launches the process, initializes the MCP session and discovers
// the advertised tools, all within the server's configured timeout.
func (m *Manager) handshake(ctx context.Context, entry config.ServerEntry) ([]mcp.Tool, contracts.MCPClient, error) {
	hctx, cancel := context.WithTimeout(ctx, callTimeout(entry))
	defer cancel()

	mcpClient, err := m.launch(hctx, entry)
	if err != nil {
		return nil, nil, fmt.Errorf("launching %q (%s): %w", entry.Name, entry.Command, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "mcpbox", Version: "0.1.0"}

	if _, err := mcpClient.Initialize(hctx, initReq); err != nil {
		_ = mcpClient.Close()
		return nil, nil, fmt.Errorf("initializing %q: %w", entry.Name, err)
	}

	toolsResult, err := mcpClient.ListTools(hctx, mcp.ListToolsRequest{})
	if err != nil {
		_ = mcpClient.Close()
		return nil, nil, fmt.Errorf("listing tools on %q: %w", entry.Name, err)
	}

	return toolsResult.Tools, mcpClient, nil
}

// Tools returns the merged tool descriptors across all healthy connections,
// sorted by tool name.
func (m *Manager) Tools() []domain.ToolDescriptor {
	var out []domain.ToolDescriptor

	for _, name := range m.clients.List() {
		if !m.health.Usable(name) {
			continue
		}
		tools, ok := m.clients.Tools(name)
		if !ok {
			continue
		}
		for _, tool := range tools {
			schema, err := json.Marshal(tool.InputSchema)
			if err != nil {
				m.logger.Error("unmarshalable tool schema", "server", name, "tool", tool.Name, "error", err)
				continue
			}
			out = append(out, domain.ToolDescriptor{
				Name:        tool.Name,
				Server:      name,
				Description: tool.Description,
				InputSchema: schema,
			})
		}
	}

	slices.SortFunc(out, func(a, b domain.ToolDescriptor) int {
		return strings.Compare(a.Name, b.Name)
	})

	return out
}

// CallTool routes a tool invocation by name. If the owning server is absent,
// unhealthy or disabled it fails immediately with ErrToolUnavailable and no
// transport call is attempted. Arguments are validated against the tool's
// advertised schema. A successful call returns the raw structured result
// text, unmodified; a tool-level error result is returned alongside
// ErrToolError so callers can feed it back to the model.
func (m *Manager) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	serverName, ok := m.clients.ServerForTool(name)
	if !ok {
		return "", fmt.Errorf("%w: no server provides tool %q", errors.ErrToolUnavailable, name)
	}
	if !m.health.Usable(serverName) {
		return "", fmt.Errorf("%w: server %q is not healthy", errors.ErrToolUnavailable, serverName)
	}

	if err := m.validateArgs(serverName, name, args); err != nil {
		return "", err
	}

	mcpClient, ok := m.clients.Client(serverName)
	if !ok {
		return "", fmt.Errorf("%w: server %q has no connection", errors.ErrToolUnavailable, serverName)
	}

	entry := m.entries[serverName]
	callCtx, cancel := context.WithTimeout(ctx, callTimeout(entry))
	defer cancel()

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := mcpClient.CallTool(callCtx, req)
	if err != nil {
		_ = m.health.Update(serverName, false, nil)
		if stdErrors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("%w: %s/%s after %s", errors.ErrToolTimeout, serverName, name, callTimeout(entry))
		}
		return "", fmt.Errorf("%w: %s/%s: %w", errors.ErrToolCallFailed, serverName, name, err)
	}

	text := textContent(result)
	if result.IsError {
		return text, fmt.Errorf("%w: %s/%s", errors.ErrToolError, serverName, name)
	}
	return text, nil
}

func (m *Manager) validateArgs(serverName, toolName string, args map[string]any) error {
	tools, ok := m.clients.Tools(serverName)
	if !ok {
		return nil
	}

	for _, tool := range tools {
		if tool.Name != toolName {
			continue
		}
		schemaBytes, err := json.Marshal(tool.InputSchema)
		if err != nil {
			return nil
		}
		if args == nil {
			args = map[string]any{}
		}
		result, err := gojsonschema.Validate(
			gojsonschema.NewBytesLoader(schemaBytes),
			gojsonschema.NewGoLoader(args),
		)
		if err != nil {
			// An unloadable schema is the server's defect, not the caller's.
			m.logger.Warn("skipping argument validation", "tool", toolName, "error", err)
			return nil
		}
		if !result.Valid() {
			msgs := make([]string, 0, len(result.Errors()))
			for _, desc := range result.Errors() {
				msgs = append(msgs, desc.String())
			}
			return fmt.Errorf("%w: %s: %s", errors.ErrInvalidToolArgs, toolName, strings.Join(msgs, "; "))
		}
		return nil
	}

	return nil
}

// textContent concatenates the text content items of a tool result, the way
// the original stdio peer returns structured JSON as a single text block.
func textContent(result *mcp.CallToolResult) string {
	var sb strings.Builder
	for _, content := range result.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}

// HealthCheck issues one liveness probe to every connection that is not
// disabled or closed, updating tracked health state.
func (m *Manager) HealthCheck(ctx context.Context) {
	for _, name := range m.clients.List() {
		status, err := m.health.Status(name)
		if err != nil {
			continue
		}
		if status.Status == domain.HealthStatusDisabled || status.Status == domain.HealthStatusClosed {
			continue
		}

		mcpClient, ok := m.clients.Client(name)
		if !ok {
			continue
		}

		pingCtx, cancel := context.WithTimeout(ctx, m.pingTimeout)
		start := time.Now()
		err = mcpClient.Ping(pingCtx)
		latency := time.Since(start)
		cancel()

		if err != nil {
			m.logger.Warn("health check failed", "server", name, "error", err)
			_ = m.health.Update(name, false, nil)
			continue
		}

		m.logger.Debug("health check passed", "server", name, "latency", latency)
		_ = m.health.Update(name, true, &latency)
	}
}

// StartHealthLoop probes all connections on the shortest configured
// health-check interval until ctx is canceled.
func (m *Manager) StartHealthLoop(ctx context.Context) {
	interval := m.probeInterval()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				m.logger.Info("stopping MCP server health checks")
				return
			case <-ticker.C:
				m.HealthCheck(ctx)
			}
		}
	}()
}

func (m *Manager) probeInterval() time.Duration {
	interval := time.Duration(0)
	for _, entry := range m.entries {
		if i := entry.HealthCheckInterval(); interval == 0 || i < interval {
			interval = i
		}
	}
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return interval
}

// Health exposes tracked server health to callers such as the status API and
// the interactive shell.
func (m *Manager) Health() contracts.MCPHealthMonitor {
	return m.health
}

// HealthyServerCount returns the number of currently healthy connections.
func (m *Manager) HealthyServerCount() int {
	n := 0
	for _, h := range m.health.List() {
		if h.Usable() {
			n++
		}
	}
	return n
}

// ServerCount returns the number of enabled, configured servers.
func (m *Manager) ServerCount() int {
	return len(m.order)
}

// Shutdown terminates every live connection, releasing all owned transport
// handles. It is idempotent.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownLocked()
}

func (m *Manager) shutdownLocked() {
	for _, name := range m.clients.List() {
		if c, ok := m.clients.Client(name); ok {
			if err := c.Close(); err != nil {
				m.logger.Error("error closing connection", "name", name, "error", err)
			}
		}
		m.clients.Remove(name)
		m.health.MarkClosed(name)
	}
}
