package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// SSETransport implements the MCP SSE transport: requests are POSTed to the
// server's message endpoint, and responses plus server-initiated requests
// arrive as `data:` events on a long-lived GET connection.
type SSETransport struct {
	config *ServerConfig
	logger *slog.Logger
	client *http.Client

	pending   map[int64]chan *JSONRPCResponse
	pendingMu sync.Mutex
	nextID    atomic.Int64

	events   chan *JSONRPCNotification
	requests chan *JSONRPCRequest

	connected atomic.Bool
	started   atomic.Bool
	closed    atomic.Bool
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewSSETransport creates a new SSE transport.
func NewSSETransport(cfg *ServerConfig) *SSETransport {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &SSETransport{
		config:   cfg,
		logger:   slog.Default().With("mcp_server", cfg.ID, "transport", "sse"),
		client:   &http.Client{Timeout: timeout},
		pending:  make(map[int64]chan *JSONRPCResponse),
		events:   make(chan *JSONRPCNotification, 100),
		requests: make(chan *JSONRPCRequest, 100),
		stopChan: make(chan struct{}),
	}
}

// Connect opens the SSE event stream in the background. Calling Connect
// again while already started is a no-op: it does not spawn a second
// eventLoop or long-lived GET connection.
func (t *SSETransport) Connect(ctx context.Context) error {
	if !t.started.CompareAndSwap(false, true) {
		return nil
	}

	if t.config.URL == "" {
		t.started.Store(false)
		return fmt.Errorf("URL is required for SSE transport")
	}

	t.connected.Store(true)
	t.logger.Info("SSE transport ready", "url", t.config.URL)

	t.wg.Add(1)
	go t.eventLoop(ctx)

	return nil
}

// Close stops the event stream and waits for it to shut down. Calling
// Close again once already closed is a no-op.
func (t *SSETransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	t.connected.Store(false)
	close(t.stopChan)
	t.wg.Wait()
	return nil
}

// Call posts a request and blocks until the matching response arrives on
// the event stream, or the context is done.
func (t *SSETransport) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if !t.connected.Load() {
		return nil, fmt.Errorf("not connected")
	}

	id := t.nextID.Add(1)
	req := JSONRPCRequest{JSONRPC: "2.0", ID: id, Method: method}
	if params != nil {
		paramsJSON, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		req.Params = paramsJSON
	}

	respChan := make(chan *JSONRPCResponse, 1)
	t.pendingMu.Lock()
	t.pending[id] = respChan
	t.pendingMu.Unlock()
	defer func() {
		t.pendingMu.Lock()
		delete(t.pending, id)
		t.pendingMu.Unlock()
	}()

	if err := t.postMessage(ctx, req); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case resp := <-respChan:
		if resp.Error != nil {
			return nil, fmt.Errorf("MCP error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		return resp.Result, nil
	}
}

// Notify posts a notification; the SSE stream carries no acknowledgement.
func (t *SSETransport) Notify(ctx context.Context, method string, params any) error {
	if !t.connected.Load() {
		return fmt.Errorf("not connected")
	}
	notif := JSONRPCNotification{JSONRPC: "2.0", Method: method}
	if params != nil {
		paramsJSON, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
		notif.Params = paramsJSON
	}
	return t.postMessage(ctx, notif)
}

func (t *SSETransport) postMessage(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	messageURL := strings.TrimSuffix(t.config.URL, "/") + "/message"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, messageURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range t.config.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	return nil
}

// Events returns the notification channel.
func (t *SSETransport) Events() <-chan *JSONRPCNotification {
	return t.events
}

// Requests returns the server-initiated request channel.
func (t *SSETransport) Requests() <-chan *JSONRPCRequest {
	return t.requests
}

// Respond sends a response to a server-initiated request back over the
// message endpoint.
func (t *SSETransport) Respond(ctx context.Context, id any, result any, rpcErr *JSONRPCError) error {
	if !t.connected.Load() {
		return fmt.Errorf("not connected")
	}
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: id, Error: rpcErr}
	if rpcErr == nil && result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		resp.Result = data
	}
	return t.postMessage(ctx, resp)
}

// Connected returns whether the transport's event stream is active.
func (t *SSETransport) Connected() bool {
	return t.connected.Load()
}

// eventLoop maintains the long-lived SSE GET connection, reconnecting on
// failure until Close is called.
func (t *SSETransport) eventLoop(ctx context.Context) {
	defer t.wg.Done()

	streamURL := strings.TrimSuffix(t.config.URL, "/") + "/events"

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopChan:
			return
		default:
		}

		t.connectStream(ctx, streamURL)

		select {
		case <-ctx.Done():
			return
		case <-t.stopChan:
			return
		case <-time.After(5 * time.Second):
		}
	}
}

func (t *SSETransport) connectStream(ctx context.Context, streamURL string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		t.logger.Debug("failed to create SSE request", "error", err)
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	for k, v := range t.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Debug("SSE connection failed", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.logger.Debug("SSE returned non-200", "status", resp.StatusCode)
		return
	}
	t.logger.Debug("SSE connected", "url", streamURL)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		case <-t.stopChan:
			return
		default:
		}

		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		t.handleEvent(strings.TrimPrefix(line, "data: "))
	}
	if err := scanner.Err(); err != nil {
		t.logger.Debug("SSE scanner error", "error", err)
	}
}

func (t *SSETransport) handleEvent(data string) {
	var envelope struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      any             `json:"id"`
		Method  string          `json:"method,omitempty"`
		Params  json.RawMessage `json:"params,omitempty"`
		Result  json.RawMessage `json:"result,omitempty"`
		Error   *JSONRPCError   `json:"error,omitempty"`
	}
	if err := json.Unmarshal([]byte(data), &envelope); err != nil {
		return
	}

	if envelope.Method == "" && envelope.ID != nil {
		// A response to a pending Call.
		id, ok := toInt64(envelope.ID)
		if !ok {
			return
		}
		t.pendingMu.Lock()
		respChan, ok := t.pending[id]
		t.pendingMu.Unlock()
		if ok {
			respChan <- &JSONRPCResponse{JSONRPC: envelope.JSONRPC, ID: envelope.ID, Result: envelope.Result, Error: envelope.Error}
		}
		return
	}

	if envelope.Method == "" {
		return
	}

	if envelope.ID != nil {
		req := &JSONRPCRequest{JSONRPC: envelope.JSONRPC, ID: envelope.ID, Method: envelope.Method, Params: envelope.Params}
		select {
		case t.requests <- req:
		default:
			t.logger.Warn("request channel full, dropping")
		}
		return
	}

	notif := &JSONRPCNotification{JSONRPC: envelope.JSONRPC, Method: envelope.Method, Params: envelope.Params}
	select {
	case t.events <- notif:
	default:
		t.logger.Warn("notification channel full, dropping")
	}
}

// toInt64 converts a JSON-decoded id (float64, int64 or json.Number) back to
// the int64 this transport assigned it. Any other type, including a string,
// is rejected.
func toInt64(id any) (int64, bool) {
	switch v := id.(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	default:
		return 0, false
	}
}
