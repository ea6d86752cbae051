package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/haasonsaas/orchestrator/internal/checkpoint"
	"github.com/haasonsaas/orchestrator/internal/engineerr"
	"github.com/haasonsaas/orchestrator/internal/llm"
	"github.com/haasonsaas/orchestrator/internal/mcp"
	"github.com/haasonsaas/orchestrator/internal/metrics"
)

const (
	agentComponent = "agent"

	// DefaultMaxTransitions bounds the number of node transitions a single
	// Invoke call may take before the graph forces finalization.
	DefaultMaxTransitions = 50
)

// Agent wires the Planner, Executor, Evaluator, and Finalizer nodes into a
// graph with fixed edges and a routing edge out of the Evaluator. It is the
// engine's single public entry point.
type Agent struct {
	planner   *Planner
	executor  *TaskExecutor
	evaluator *Evaluator
	finalizer *Finalizer

	checkpoints    checkpoint.Store
	mcpExecutor    *mcp.Executor
	maxTransitions int
	logger         *slog.Logger
	metrics        *metrics.Registry
}

// Option configures an Agent at construction time.
type Option func(*Agent)

// WithMaxTransitions overrides the default per-Invoke transition budget.
func WithMaxTransitions(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxTransitions = n
		}
	}
}

// WithLogger overrides the Agent's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetrics attaches a metrics.Registry the Agent increments as it runs.
// Without it, the Agent runs unmetered.
func WithMetrics(reg *metrics.Registry) Option {
	return func(a *Agent) {
		a.metrics = reg
	}
}

// NewAgent builds an Agent over its four nodes plus the checkpoint store and
// MCP Executor it owns the lifecycle of.
func NewAgent(llmProvider *llm.Provider, mcpExecutor *mcp.Executor, store checkpoint.Store, opts ...Option) *Agent {
	a := &Agent{
		planner:        NewPlanner(llmProvider, mcpExecutor),
		executor:       NewTaskExecutor(mcpExecutor, llmProvider),
		evaluator:      NewEvaluator(),
		finalizer:      NewFinalizer(llmProvider),
		checkpoints:    store,
		mcpExecutor:    mcpExecutor,
		maxTransitions: DefaultMaxTransitions,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.metrics != nil {
		llmProvider.SetRetryHook(func() { a.metrics.LLMRetries.Inc() })
		a.executor.SetToolCallHook(func(server, outcome string) {
			a.metrics.ToolCalls.WithLabelValues(server, outcome).Inc()
		})
	}
	return a
}

// Invoke loads the session snapshot for sessionID (or constructs a fresh
// one), appends userMessage, runs the state machine to termination, persists
// the resulting snapshot, and returns the final response.
func (a *Agent) Invoke(ctx context.Context, sessionID, userMessage string) (*AgentResponse, error) {
	state, err := a.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	state = state.WithMessage(Message{Role: RoleHuman, Content: userMessage})

	state = a.run(ctx, state, userMessage)

	if err := a.persist(ctx, state); err != nil {
		a.logger.Warn("failed to persist session snapshot", "session_id", sessionID, "error", err)
	}

	if state.FinalResponse == nil {
		return nil, fmt.Errorf("%s: graph terminated without a final response", agentComponent)
	}
	return state.FinalResponse, nil
}

// run drives state through the graph until FinalResponse is set, enforcing
// the transition budget.
func (a *Agent) run(ctx context.Context, state AgentState, userMessage string) AgentState {
	for transitions := 0; ; transitions++ {
		if transitions >= a.maxTransitions {
			kErr := engineerr.New(engineerr.KindTransitionLimitExceeded, agentComponent, "exceeded maximum node transitions")
			state = state.WithError(kErr.Error())
			return a.finalizer.Finalize(ctx, state, userMessage)
		}

		decision, eval := a.evaluator.Evaluate(state)
		a.logger.Debug("evaluator decision", "decision", eval.Decision, "reasoning", eval.Reasoning)

		switch decision {
		case DecisionReplan:
			state = a.planner.Plan(ctx, state)
			a.countTransition("planner")
		case DecisionContinue:
			state = a.executor.Execute(ctx, state)
			a.countTransition("executor")
		case DecisionFinalize:
			a.countTransition("finalizer")
			return a.finalizer.Finalize(ctx, state, userMessage)
		}

		if state.IsTerminal() {
			return state
		}
	}
}

// ClearSession deletes the persisted snapshot for sessionID.
func (a *Agent) ClearSession(ctx context.Context, sessionID string) error {
	return a.checkpoints.Delete(ctx, sessionID)
}

// Close releases the Agent's owned resources: the MCP Executor's transports
// and the checkpoint store.
func (a *Agent) Close() error {
	var firstErr error
	if a.mcpExecutor != nil {
		if err := a.mcpExecutor.Shutdown(); err != nil {
			firstErr = err
		}
	}
	if err := a.checkpoints.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (a *Agent) load(ctx context.Context, sessionID string) (AgentState, error) {
	snapshot, err := a.checkpoints.Get(ctx, sessionID)
	if err != nil {
		if kind, ok := engineerr.KindOf(err); ok && kind == engineerr.KindCheckpoint {
			return NewAgentState(sessionID), nil
		}
		return AgentState{}, err
	}
	var state AgentState
	if err := json.Unmarshal(snapshot, &state); err != nil {
		return AgentState{}, fmt.Errorf("decode checkpoint for session %s: %w", sessionID, err)
	}
	return state, nil
}

func (a *Agent) persist(ctx context.Context, state AgentState) error {
	snapshot, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode checkpoint for session %s: %w", state.SessionID, err)
	}
	err = a.checkpoints.Put(ctx, state.SessionID, snapshot)
	if a.metrics != nil {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		a.metrics.CheckpointWrites.WithLabelValues(outcome).Inc()
	}
	return err
}

func (a *Agent) countTransition(node string) {
	if a.metrics != nil {
		a.metrics.NodeTransitions.WithLabelValues(node).Inc()
	}
}
