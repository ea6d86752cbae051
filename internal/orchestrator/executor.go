package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/haasonsaas/orchestrator/internal/engineerr"
	"github.com/haasonsaas/orchestrator/internal/llm"
	"github.com/haasonsaas/orchestrator/internal/mcp"
)

const executorComponent = "task-executor"

var taskRefRe = regexp.MustCompile(`^\$\{([^.}]+)\.result\}$`)

// TaskExecutor is the Executor node: it runs exactly the task at
// state.Plan.Tasks[state.CurrentTaskIndex] and returns a copy of state with
// that task's TaskResult appended.
type TaskExecutor struct {
	mcpExecutor *mcp.Executor
	llm         *llm.Provider
	onToolCall  func(server, outcome string)
}

// NewTaskExecutor builds a TaskExecutor over the given MCP Executor and LLM
// Provider.
func NewTaskExecutor(mcpExecutor *mcp.Executor, llmProvider *llm.Provider) *TaskExecutor {
	return &TaskExecutor{mcpExecutor: mcpExecutor, llm: llmProvider}
}

// SetToolCallHook installs a callback invoked once per dispatched tool call
// with the target server id and "success"/"failure" outcome. Without it,
// tool dispatch goes unmetered.
func (e *TaskExecutor) SetToolCallHook(fn func(server, outcome string)) {
	e.onToolCall = fn
}

// Execute runs the current task and returns a copy of state reflecting its
// outcome. It never mutates state.
func (e *TaskExecutor) Execute(ctx context.Context, state AgentState) AgentState {
	if state.Plan == nil || state.CurrentTaskIndex >= len(state.Plan.Tasks) {
		return state.WithError("task-executor invoked with no task to run")
	}
	task := state.Plan.Tasks[state.CurrentTaskIndex]

	if missing := e.unmetDependencies(state, task); len(missing) > 0 {
		kErr := engineerr.New(engineerr.KindDependencyUnsatisfied, executorComponent,
			fmt.Sprintf("unsatisfied dependencies for task %q: %s", task.ID, strings.Join(missing, ", ")))
		return state.WithResult(NewFailureResult(task.ID, kErr.Error()))
	}

	resolvedInput, err := e.resolveInput(state, task)
	if err != nil {
		return state.WithResult(NewFailureResult(task.ID, err.Error()))
	}

	if task.ToolCall != "" {
		return e.dispatchTool(ctx, state, task, resolvedInput)
	}
	return e.dispatchLLM(ctx, state, task)
}

// unmetDependencies returns the subset of task.DependsOn that do not have a
// successful TaskResult recorded.
func (e *TaskExecutor) unmetDependencies(state AgentState, task Task) []string {
	var missing []string
	for _, dep := range task.DependsOn {
		result, ok := state.ResultByTaskID(dep)
		if !ok || !result.Success {
			missing = append(missing, dep)
		}
	}
	return missing
}

// resolveInput substitutes "${<task_id>.result}" references in
// task.ToolInput with the referenced task's prior result.
func (e *TaskExecutor) resolveInput(state AgentState, task Task) (json.RawMessage, error) {
	if len(task.ToolInput) == 0 {
		return nil, nil
	}
	resolved := make(map[string]json.RawMessage, len(task.ToolInput))
	for key, value := range task.ToolInput {
		var asString string
		if err := json.Unmarshal(value, &asString); err == nil {
			if m := taskRefRe.FindStringSubmatch(asString); m != nil {
				result, ok := state.ResultByTaskID(m[1])
				if !ok || !result.Success {
					return nil, fmt.Errorf("unresolved reference: %s", asString)
				}
				resolved[key] = result.Result
				continue
			}
		}
		resolved[key] = value
	}
	return json.Marshal(resolved)
}

func (e *TaskExecutor) dispatchTool(ctx context.Context, state AgentState, task Task, resolvedInput json.RawMessage) AgentState {
	server, _, _ := mcp.ParseCall(task.ToolCall)
	outcome := e.mcpExecutor.ExecuteTool(ctx, task.ToolCall, resolvedInput)
	if !outcome.Success {
		e.recordToolCall(server, "failure")
		return state.WithResult(NewFailureResult(task.ID, outcome.Error))
	}

	resultJSON, err := json.Marshal(outcome.Result)
	if err != nil {
		e.recordToolCall(server, "failure")
		return state.WithResult(NewFailureResult(task.ID, "failed to encode tool result: "+err.Error()))
	}
	e.recordToolCall(server, "success")
	return state.WithResult(NewSuccessResult(task.ID, resultJSON))
}

func (e *TaskExecutor) recordToolCall(server, outcome string) {
	if e.onToolCall != nil {
		e.onToolCall(server, outcome)
	}
}

func (e *TaskExecutor) dispatchLLM(ctx context.Context, state AgentState, task Task) AgentState {
	var prior strings.Builder
	for _, r := range state.ExecutionResults {
		if r.Success {
			fmt.Fprintf(&prior, "- %s: %s\n", r.TaskID, string(r.Result))
		}
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: "Complete the following task using the context of prior task results."},
		{Role: llm.RoleHuman, Content: fmt.Sprintf("Task: %s\n\nPrior results:\n%s", task.Description, prior.String())},
	}

	text, _, err := e.llm.Invoke(ctx, messages, llm.Options{})
	if err != nil {
		return state.WithResult(NewFailureResult(task.ID, err.Error()))
	}
	resultJSON, _ := json.Marshal(text)
	return state.WithResult(NewSuccessResult(task.ID, resultJSON))
}
