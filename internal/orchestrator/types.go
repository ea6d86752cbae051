// Package orchestrator implements the Plan/Execute/Evaluate/Finalize state
// machine that drives a single agent session from a user message to a final
// response.
package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Role tags a message in a session's history.
type Role string

const (
	RoleSystem    Role = "system"
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry in a session's tagged message history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Task is an immutable plan element. ToolCall, if set, must parse into
// exactly one "<server>:<tool>" pair; DependsOn must name only tasks earlier
// in the same plan.
type Task struct {
	ID          string                     `json:"id"`
	Description string                     `json:"description"`
	ToolCall    string                     `json:"tool_call,omitempty"`
	ToolInput   map[string]json.RawMessage `json:"tool_input,omitempty"`
	DependsOn   []string                   `json:"depends_on,omitempty"`
}

// ParseToolCall splits Task.ToolCall into its server and tool segments. It
// fails if ToolCall is set but does not parse into exactly two segments.
func (t Task) ParseToolCall() (server, tool string, err error) {
	if t.ToolCall == "" {
		return "", "", fmt.Errorf("task %q has no tool_call", t.ID)
	}
	idx := strings.IndexByte(t.ToolCall, ':')
	if idx <= 0 || idx == len(t.ToolCall)-1 || strings.IndexByte(t.ToolCall[idx+1:], ':') >= 0 {
		return "", "", fmt.Errorf("task %q tool_call %q must parse into exactly one server and tool segment", t.ID, t.ToolCall)
	}
	return t.ToolCall[:idx], t.ToolCall[idx+1:], nil
}

// Plan is a non-empty, ordered sequence of tasks produced by the Planner.
type Plan struct {
	Tasks     []Task `json:"tasks"`
	Reasoning string `json:"reasoning,omitempty"`
}

// Validate checks Plan's invariants: at least one task, unique task ids
// within the plan, DependsOn referring only to earlier tasks, and ToolCall
// parsing where present.
func (p Plan) Validate() error {
	if len(p.Tasks) == 0 {
		return fmt.Errorf("plan has no tasks")
	}
	seen := make(map[string]int, len(p.Tasks))
	for i, task := range p.Tasks {
		if task.ID == "" {
			return fmt.Errorf("task at index %d has no id", i)
		}
		if _, dup := seen[task.ID]; dup {
			return fmt.Errorf("duplicate task id %q", task.ID)
		}
		seen[task.ID] = i
		if task.ToolCall != "" {
			if _, _, err := task.ParseToolCall(); err != nil {
				return err
			}
		}
		for _, dep := range task.DependsOn {
			depIdx, ok := seen[dep]
			if !ok {
				return fmt.Errorf("task %q depends_on unknown task %q", task.ID, dep)
			}
			if depIdx >= i {
				return fmt.Errorf("task %q depends_on %q which is not earlier in the plan", task.ID, dep)
			}
		}
	}
	return nil
}

// TaskByID returns the task with the given id, if present.
func (p Plan) TaskByID(id string) (Task, bool) {
	for _, task := range p.Tasks {
		if task.ID == id {
			return task, true
		}
	}
	return Task{}, false
}

// TaskResult is the append-only record of one task's execution. Exactly one
// of Result / Error is present, discriminated by Success.
type TaskResult struct {
	TaskID    string          `json:"task_id"`
	Success   bool            `json:"success"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewSuccessResult builds a successful TaskResult, timestamped now.
func NewSuccessResult(taskID string, result json.RawMessage) TaskResult {
	return TaskResult{TaskID: taskID, Success: true, Result: result, Timestamp: time.Now()}
}

// NewFailureResult builds a failed TaskResult, timestamped now.
func NewFailureResult(taskID, errMsg string) TaskResult {
	return TaskResult{TaskID: taskID, Success: false, Error: errMsg, Timestamp: time.Now()}
}

// Decision is the Evaluator's routing label. It is logged for introspection
// but the actual routing decision is always recomputed from AgentState.
type Decision string

const (
	DecisionContinue Decision = "continue"
	DecisionReplan   Decision = "replan"
	DecisionFinalize Decision = "finalize"
)

// EvaluationResult records the Evaluator's decision and reasoning for
// logging. It is never persisted into AgentState.
type EvaluationResult struct {
	Decision  Decision `json:"decision"`
	Reasoning string   `json:"reasoning,omitempty"`
}

// AgentResponse is the user-facing outcome of one Invoke call.
type AgentResponse struct {
	Message        string       `json:"message"`
	ExecutionTrace []TaskResult `json:"execution_trace,omitempty"`
	PlanUsed       *Plan        `json:"plan_used,omitempty"`
}

// AgentState is the full session snapshot, copied on every node transition
// and persisted by the Agent at the end of each Invoke.
type AgentState struct {
	SessionID        string         `json:"session_id"`
	Messages         []Message      `json:"messages"`
	Plan             *Plan          `json:"plan,omitempty"`
	CurrentTaskIndex int            `json:"current_task_index"`
	ExecutionResults []TaskResult   `json:"execution_results,omitempty"`
	FinalResponse    *AgentResponse `json:"final_response,omitempty"`
	Error            string         `json:"error,omitempty"`
}

// NewAgentState constructs a fresh, empty session snapshot.
func NewAgentState(sessionID string) AgentState {
	return AgentState{SessionID: sessionID}
}

// Validate checks AgentState's structural invariants.
func (s AgentState) Validate() error {
	if s.Plan != nil && s.CurrentTaskIndex > len(s.Plan.Tasks) {
		return fmt.Errorf("current_task_index %d exceeds plan length %d", s.CurrentTaskIndex, len(s.Plan.Tasks))
	}
	return nil
}

// IsTerminal reports whether this state has a final response and the graph
// should stop transitioning.
func (s AgentState) IsTerminal() bool {
	return s.FinalResponse != nil
}

// clonePlan deep-copies a Plan pointer so state copies never alias a
// previous snapshot's Plan.
func clonePlan(p *Plan) *Plan {
	if p == nil {
		return nil
	}
	tasks := make([]Task, len(p.Tasks))
	copy(tasks, p.Tasks)
	for i, t := range p.Tasks {
		if t.DependsOn != nil {
			tasks[i].DependsOn = append([]string(nil), t.DependsOn...)
		}
		if t.ToolInput != nil {
			in := make(map[string]json.RawMessage, len(t.ToolInput))
			for k, v := range t.ToolInput {
				in[k] = append(json.RawMessage(nil), v...)
			}
			tasks[i].ToolInput = in
		}
	}
	clone := Plan{Tasks: tasks, Reasoning: p.Reasoning}
	return &clone
}

// WithMessage returns a copy of s with msg appended to its message history.
// s itself is never mutated.
func (s AgentState) WithMessage(msg Message) AgentState {
	next := s.shallowCopy()
	next.Messages = append(append([]Message(nil), s.Messages...), msg)
	return next
}

// WithPlan returns a copy of s with a new plan installed, the task index
// reset to zero, and any prior error cleared — the Planner's success path.
func (s AgentState) WithPlan(p Plan) AgentState {
	next := s.shallowCopy()
	next.Plan = clonePlan(&p)
	next.CurrentTaskIndex = 0
	next.Error = ""
	return next
}

// WithError returns a copy of s carrying err as state.error, leaving the
// plan and task index untouched.
func (s AgentState) WithError(err string) AgentState {
	next := s.shallowCopy()
	next.Error = err
	return next
}

// WithResult returns a copy of s with result appended to the execution
// trace and, if result succeeded, the task index advanced by one.
func (s AgentState) WithResult(result TaskResult) AgentState {
	next := s.shallowCopy()
	next.ExecutionResults = append(append([]TaskResult(nil), s.ExecutionResults...), result)
	if result.Success {
		next.CurrentTaskIndex = s.CurrentTaskIndex + 1
	}
	return next
}

// WithFinalResponse returns a copy of s with its terminal response set.
func (s AgentState) WithFinalResponse(resp AgentResponse) AgentState {
	next := s.shallowCopy()
	next.FinalResponse = &resp
	return next
}

// LastResult returns the most recent TaskResult, if any.
func (s AgentState) LastResult() (TaskResult, bool) {
	if len(s.ExecutionResults) == 0 {
		return TaskResult{}, false
	}
	return s.ExecutionResults[len(s.ExecutionResults)-1], true
}

// ResultByTaskID returns the most recent result recorded for taskID, if any.
func (s AgentState) ResultByTaskID(taskID string) (TaskResult, bool) {
	for i := len(s.ExecutionResults) - 1; i >= 0; i-- {
		if s.ExecutionResults[i].TaskID == taskID {
			return s.ExecutionResults[i], true
		}
	}
	return TaskResult{}, false
}

// shallowCopy copies every field of s, deep-copying only the Plan pointer
// (which is ever replaced wholesale, never mutated in place); slice fields
// are re-sliced by each With* method as needed.
func (s AgentState) shallowCopy() AgentState {
	next := s
	next.Plan = clonePlan(s.Plan)
	return next
}
