package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/haasonsaas/orchestrator/internal/llm"
)

// Finalizer is the Finalizer node. It synthesizes a user-facing response
// from the completed (or abandoned) plan and never itself fails: on an LLM
// failure it falls back to a best-effort summary.
type Finalizer struct {
	llm *llm.Provider
}

// NewFinalizer builds a Finalizer over the given LLM Provider.
func NewFinalizer(llmProvider *llm.Provider) *Finalizer {
	return &Finalizer{llm: llmProvider}
}

// Finalize produces state.FinalResponse from state's accumulated plan and
// execution results, given the user's original request.
func (f *Finalizer) Finalize(ctx context.Context, state AgentState, userRequest string) AgentState {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: "Synthesize a final, user-facing answer from the executed plan and its results. Be direct and concise."},
		{Role: llm.RoleHuman, Content: f.summarizePrompt(state, userRequest)},
	}

	text, _, err := f.llm.Invoke(ctx, messages, llm.Options{})
	if err != nil {
		text = f.fallbackMessage(state, err)
	}

	resp := AgentResponse{
		Message:        text,
		ExecutionTrace: append([]TaskResult(nil), state.ExecutionResults...),
		PlanUsed:       state.Plan,
	}
	return state.WithFinalResponse(resp)
}

func (f *Finalizer) summarizePrompt(state AgentState, userRequest string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Original request: %s\n\n", userRequest)
	if state.Plan != nil {
		fmt.Fprintf(&b, "Plan reasoning: %s\n\n", state.Plan.Reasoning)
	}
	b.WriteString("Task results:\n")
	for _, r := range state.ExecutionResults {
		if r.Success {
			fmt.Fprintf(&b, "- %s: succeeded: %s\n", r.TaskID, string(r.Result))
		} else {
			fmt.Fprintf(&b, "- %s: failed: %s\n", r.TaskID, r.Error)
		}
	}
	return b.String()
}

// fallbackMessage builds a best-effort final message when the LLM call
// itself fails; this path must never fail.
func (f *Finalizer) fallbackMessage(state AgentState, cause error) string {
	succeeded, failed := 0, 0
	for _, r := range state.ExecutionResults {
		if r.Success {
			succeeded++
		} else {
			failed++
		}
	}
	return fmt.Sprintf(
		"I couldn't generate a final summary (%v). Of the tasks attempted, %d succeeded and %d failed.",
		cause, succeeded, failed,
	)
}
