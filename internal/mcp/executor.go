package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/haasonsaas/orchestrator/internal/engineerr"
)

const executorComponent = "mcp-executor"

// ToolExecutionResult is the structured outcome of ExecuteTool. Exactly one
// of Result or Error is set; no error escapes ExecuteTool itself.
type ToolExecutionResult struct {
	Success bool
	Result  *ToolCallResult
	Error   string
}

// Executor is the MCP Executor component: it resolves "server:tool" call
// strings against the servers in a ServerCatalog, connecting to each server
// lazily on first use and caching its discovered tool names thereafter.
type Executor struct {
	catalog *ServerCatalog
	manager *Manager
	logger  *slog.Logger

	mu         sync.Mutex
	toolCache  map[string]map[string]struct{} // serverID -> known tool names
	connecting map[string]bool
	closed     bool
}

// NewExecutor builds an Executor over the given server catalog. The
// underlying Manager is constructed with AutoStart disabled for every
// server; connections happen lazily from ExecuteTool/AvailableTools.
func NewExecutor(catalog *ServerCatalog, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	mgrCfg := &Config{Enabled: true}
	for _, meta := range catalog.EnabledServers() {
		noAutoStart := *meta.Config
		noAutoStart.AutoStart = false
		mgrCfg.Servers = append(mgrCfg.Servers, &noAutoStart)
	}

	return &Executor{
		catalog:    catalog,
		manager:    NewManager(mgrCfg, logger),
		logger:     logger.With("component", executorComponent),
		toolCache:  make(map[string]map[string]struct{}),
		connecting: make(map[string]bool),
	}
}

// ParseCall splits a "server:tool" call string into its two parts.
func ParseCall(call string) (server, tool string, err error) {
	idx := strings.IndexByte(call, ':')
	if idx <= 0 || idx == len(call)-1 {
		return "", "", fmt.Errorf("call must be of the form \"server:tool\", got %q", call)
	}
	return call[:idx], call[idx+1:], nil
}

// ExecuteTool resolves and invokes a "server:tool" call. Every failure mode
// — disabled server, unknown tool, transport failure — is returned as a
// structured result rather than an error.
func (e *Executor) ExecuteTool(ctx context.Context, call string, input json.RawMessage) *ToolExecutionResult {
	server, tool, err := ParseCall(call)
	if err != nil {
		return &ToolExecutionResult{Error: err.Error()}
	}

	if !e.catalog.IsServerEnabled(server) {
		kErr := engineerr.New(engineerr.KindToolServerDisabled, executorComponent, "server "+server+" is not enabled")
		return &ToolExecutionResult{Error: kErr.Error()}
	}

	if err := e.ensureConnected(ctx, server); err != nil {
		return &ToolExecutionResult{Error: err.Error()}
	}

	if !e.hasTool(server, tool) {
		kErr := engineerr.New(engineerr.KindToolNotFound, executorComponent, fmt.Sprintf("tool %q not found on server %q", tool, server))
		return &ToolExecutionResult{Error: kErr.Error()}
	}

	var args map[string]any
	if len(input) > 0 {
		if err := json.Unmarshal(input, &args); err != nil {
			kErr := engineerr.Wrap(engineerr.KindToolNotFound, executorComponent, fmt.Errorf("invalid tool input: %w", err))
			return &ToolExecutionResult{Error: kErr.Error()}
		}
	}

	result, err := e.manager.CallTool(ctx, server, tool, args)
	if err != nil {
		kErr := engineerr.Wrap(e.classifyTransportError(err), executorComponent, err)
		return &ToolExecutionResult{Error: kErr.Error()}
	}

	return &ToolExecutionResult{Success: true, Result: result}
}

// ValidateToolCall checks that a call string resolves to a known tool
// without executing it. It may connect to the server to discover its tools
// if they are not already cached.
func (e *Executor) ValidateToolCall(ctx context.Context, call string) error {
	server, tool, err := ParseCall(call)
	if err != nil {
		return err
	}
	if !e.catalog.IsServerEnabled(server) {
		return engineerr.New(engineerr.KindToolServerDisabled, executorComponent, "server "+server+" is not enabled")
	}
	if err := e.ensureConnected(ctx, server); err != nil {
		return err
	}
	if !e.hasTool(server, tool) {
		return engineerr.New(engineerr.KindToolNotFound, executorComponent, fmt.Sprintf("tool %q not found on server %q", tool, server))
	}
	return nil
}

// AvailableTools connects to every enabled server that is not already
// connected and returns the union of their discovered tool schemas.
func (e *Executor) AvailableTools(ctx context.Context) ([]ToolSchema, error) {
	for _, meta := range e.catalog.EnabledServers() {
		if err := e.ensureConnected(ctx, meta.ID); err != nil {
			e.logger.Warn("failed to connect to server during discovery", "server", meta.ID, "error", err)
		}
	}
	return e.manager.ToolSchemas(), nil
}

// Status reports the live connection state of every enabled server, as
// tracked by the underlying Manager. Servers that have not yet been
// connected to (no ExecuteTool/AvailableTools call has touched them) report
// Connected: false with no tool count.
func (e *Executor) Status() []ServerStatus {
	return e.manager.Status()
}

// Shutdown disconnects every connected server. It is safe to call more than
// once.
func (e *Executor) Shutdown() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	return e.manager.Stop()
}

func (e *Executor) ensureConnected(ctx context.Context, server string) error {
	if client, ok := e.manager.Client(server); ok && client.Connected() {
		e.cacheTools(server, client.Tools())
		return nil
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return engineerr.New(engineerr.KindTransportUnavailable, executorComponent, "executor is shut down")
	}
	e.mu.Unlock()

	if err := e.manager.Connect(ctx, server); err != nil {
		return engineerr.Wrap(e.classifyTransportError(err), executorComponent, err)
	}

	if client, ok := e.manager.Client(server); ok {
		e.cacheTools(server, client.Tools())
	}
	return nil
}

func (e *Executor) cacheTools(server string, tools []*MCPTool) {
	names := make(map[string]struct{}, len(tools))
	for _, t := range tools {
		names[t.Name] = struct{}{}
	}
	e.mu.Lock()
	e.toolCache[server] = names
	e.mu.Unlock()
}

func (e *Executor) hasTool(server, tool string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	names, ok := e.toolCache[server]
	if !ok {
		return false
	}
	_, found := names[tool]
	return found
}

func (e *Executor) classifyTransportError(err error) engineerr.Kind {
	if err == nil {
		return engineerr.KindRemoteError
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return engineerr.KindTimeout
	case strings.Contains(msg, "not connected") || strings.Contains(msg, "connection"):
		return engineerr.KindTransportUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return engineerr.KindTimeout
	default:
		return engineerr.KindRemoteError
	}
}
