// Package llm wraps an agent.LLMProvider with the engine's two public
// operations — Invoke and InvokeStructured — and the structured-output
// retry protocol described for structured responses.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/haasonsaas/orchestrator/internal/agent"
	"github.com/haasonsaas/orchestrator/internal/agent/providers"
	"github.com/haasonsaas/orchestrator/internal/backoff"
	"github.com/haasonsaas/orchestrator/internal/engineerr"
	"github.com/haasonsaas/orchestrator/internal/prompt"
)

const component = "llm-provider"

// Role tags a message passed to Invoke/InvokeStructured. Decoupled from the
// orchestrator package's own Role type so this package never imports it.
type Role string

const (
	RoleSystem    Role = "system"
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of the conversation passed to Invoke.
type Message struct {
	Role    Role
	Content string
}

// Usage records token accounting for one call, where the backend exposes
// it. A zero Usage is not an error — absence of usage data is expected for
// some providers/models.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Options configures a single Invoke/InvokeStructured call.
type Options struct {
	Model     string
	MaxTokens int
}

// Provider is the engine's LLM Provider component. It prepends the base
// identity prompt (read fresh from the workspace on every call) to every
// request and implements the structured-output retry protocol.
type Provider struct {
	backend      agent.LLMProvider
	workspaceDir string
	defaultModel string
	maxRetries   int
	baseDelay    time.Duration
	logger       *slog.Logger
	onRetry      func()
}

// SetRetryHook installs a callback invoked once per structured-output
// retry (i.e. not on the first attempt). Without it, retries go unmetered.
func (p *Provider) SetRetryHook(fn func()) {
	p.onRetry = fn
}

// New builds a Provider over backend, reading the base identity prompt from
// workspaceDir on every call.
func New(backend agent.LLMProvider, workspaceDir, defaultModel string, maxRetries int, baseDelay time.Duration, logger *slog.Logger) *Provider {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		backend:      backend,
		workspaceDir: workspaceDir,
		defaultModel: defaultModel,
		maxRetries:   maxRetries,
		baseDelay:    baseDelay,
		logger:       logger.With("component", component),
	}
}

// Invoke sends messages to the backend, prepended with the base identity
// prompt, and returns the assistant's text.
func (p *Provider) Invoke(ctx context.Context, messages []Message, opts Options) (string, Usage, error) {
	req, err := p.buildRequest(messages, "", opts)
	if err != nil {
		return "", Usage{}, err
	}
	return p.complete(ctx, req)
}

// InvokeStructured instructs the backend to return a single JSON object and
// validates it against schema, retrying on parse or validation failure per
// the structured-output retry protocol. On final failure it returns a
// KindLLMStructuredParse error including the last raw response body.
func (p *Provider) InvokeStructured(ctx context.Context, messages []Message, schemaJSON json.RawMessage, opts Options) (json.RawMessage, Usage, error) {
	compiled, err := compileSchema(schemaJSON)
	if err != nil {
		return nil, Usage{}, engineerr.Wrap(engineerr.KindLLMStructuredParse, component, fmt.Errorf("invalid schema: %w", err))
	}

	structuredHint := "Respond with a single JSON object only, matching the required schema. Do not include any explanation outside the JSON."
	req, err := p.buildRequest(messages, structuredHint, opts)
	if err != nil {
		return nil, Usage{}, err
	}

	policy := backoff.BackoffPolicy{
		InitialMs: float64(p.baseDelay.Milliseconds()),
		MaxMs:     float64(p.baseDelay.Milliseconds()) * (1 << uint(p.maxRetries)),
		Factor:    2,
		Jitter:    0,
	}

	var (
		lastBody string
		usage    Usage
	)
	result, retryErr := backoff.RetryWithBackoff(ctx, policy, p.maxRetries, func(attempt int) (json.RawMessage, error) {
		if attempt > 1 && p.onRetry != nil {
			p.onRetry()
		}
		body, u, err := p.complete(ctx, req)
		usage = u
		lastBody = body
		if err != nil {
			if !providers.IsRetryable(err) {
				return nil, backoff.NewPermanent(err)
			}
			return nil, err
		}
		return parseStructured(body, compiled)
	})
	if retryErr == nil {
		return result.Value, usage, nil
	}
	if !errors.Is(retryErr, backoff.ErrMaxAttemptsExhausted) {
		return nil, usage, retryErr
	}

	msg := fmt.Sprintf("structured output failed after %d attempts: %v; last response: %s", result.Attempts, result.LastError, lastBody)
	return nil, usage, engineerr.New(engineerr.KindLLMStructuredParse, component, msg)
}

func (p *Provider) buildRequest(messages []Message, extraSystem string, opts Options) (*agent.CompletionRequest, error) {
	base, err := prompt.Load(p.workspaceDir)
	if err != nil {
		return nil, err
	}
	system := base
	if extraSystem != "" {
		system = base + "\n\n" + extraSystem
	}

	model := opts.Model
	if model == "" {
		model = p.defaultModel
	}

	completionMsgs := make([]agent.CompletionMessage, 0, len(messages))
	for _, m := range messages {
		completionMsgs = append(completionMsgs, agent.CompletionMessage{
			Role:    string(toCompletionRole(m.Role)),
			Content: m.Content,
		})
	}

	return &agent.CompletionRequest{
		Model:     model,
		System:    system,
		Messages:  completionMsgs,
		MaxTokens: opts.MaxTokens,
	}, nil
}

// toCompletionRole maps the engine's role vocabulary onto the provider
// transport's user/assistant/tool convention; system content always travels
// via CompletionRequest.System instead of a message.
func toCompletionRole(r Role) Role {
	switch r {
	case RoleHuman:
		return "user"
	case RoleTool:
		return "tool"
	case RoleAssistant:
		return "assistant"
	default:
		return "user"
	}
}

func (p *Provider) complete(ctx context.Context, req *agent.CompletionRequest) (string, Usage, error) {
	chunks, err := p.backend.Complete(ctx, req)
	if err != nil {
		return "", Usage{}, engineerr.Wrap(engineerr.KindLLMTransport, component, err)
	}

	var text bytes.Buffer
	var usage Usage
	for chunk := range chunks {
		if chunk.Error != nil {
			return text.String(), usage, engineerr.Wrap(engineerr.KindLLMTransport, component, chunk.Error)
		}
		text.WriteString(chunk.Text)
		if chunk.Done {
			usage.InputTokens = chunk.InputTokens
			usage.OutputTokens = chunk.OutputTokens
		}
	}
	return text.String(), usage, nil
}

var fencedBlockRe = regexp.MustCompile("(?s)```(?:[a-zA-Z0-9_-]*\\n)?(.*?)```")

// parseStructured implements steps 2-4 of the structured-output retry
// protocol: direct parse, then fenced-code-block extraction, then schema
// validation.
func parseStructured(body string, schema *jsonschema.Schema) (json.RawMessage, error) {
	if v, err := tryParseAndValidate(body, schema); err == nil {
		return v, nil
	}

	if m := fencedBlockRe.FindStringSubmatch(body); m != nil {
		if v, err := tryParseAndValidate(m[1], schema); err == nil {
			return v, nil
		}
	}

	return nil, fmt.Errorf("response is not a valid JSON object matching the required schema")
}

func tryParseAndValidate(raw string, schema *jsonschema.Schema) (json.RawMessage, error) {
	decoded, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(raw)))
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(decoded); err != nil {
		return nil, err
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, []byte(raw)); err != nil {
		return json.RawMessage(raw), nil
	}
	return json.RawMessage(compact.Bytes()), nil
}

func compileSchema(schemaJSON json.RawMessage) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return compiler.Compile("schema.json")
}
