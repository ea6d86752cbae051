package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/haasonsaas/orchestrator/internal/engineerr"
	"github.com/haasonsaas/orchestrator/internal/llm"
	"github.com/haasonsaas/orchestrator/internal/mcp"
)

const plannerComponent = "planner"

// planSchema is the JSON Schema the Planner asks the LLM to satisfy. It
// mirrors the Plan/Task structs in types.go.
const planSchema = `{
  "type": "object",
  "properties": {
    "reasoning": {"type": "string"},
    "tasks": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "properties": {
          "id": {"type": "string"},
          "description": {"type": "string"},
          "tool_call": {"type": "string"},
          "tool_input": {"type": "object"},
          "depends_on": {"type": "array", "items": {"type": "string"}}
        },
        "required": ["description"]
      }
    }
  },
  "required": ["tasks"]
}`

const plannerExample = `Example plan:
{
  "reasoning": "Need to look up the file before summarizing it.",
  "tasks": [
    {"id": "t1", "description": "Read the report file", "tool_call": "files:read", "tool_input": {"path": "report.txt"}},
    {"id": "t2", "description": "Summarize the file contents", "depends_on": ["t1"]}
  ]
}`

// Planner is the Planner node. It produces a new Plan (or records a
// planning failure into state.error) from the current AgentState.
type Planner struct {
	llm         *llm.Provider
	mcpExecutor *mcp.Executor
}

// NewPlanner builds a Planner over the given LLM Provider and MCP Executor.
func NewPlanner(llmProvider *llm.Provider, mcpExecutor *mcp.Executor) *Planner {
	return &Planner{llm: llmProvider, mcpExecutor: mcpExecutor}
}

// Plan transitions state by producing a new plan. It never mutates state;
// it returns a copy.
func (p *Planner) Plan(ctx context.Context, state AgentState) AgentState {
	toolListing := p.toolListing(ctx)

	var system strings.Builder
	system.WriteString("You are the planning component of an autonomous agent. ")
	system.WriteString("Produce a plan as a single JSON object matching this schema:\n")
	system.WriteString(planSchema)
	system.WriteString("\n\n")
	system.WriteString(plannerExample)
	system.WriteString("\n\nAvailable tools:\n")
	system.WriteString(toolListing)

	messages := []llm.Message{{Role: llm.RoleSystem, Content: system.String()}}
	for _, m := range state.Messages {
		messages = append(messages, llm.Message{Role: toLLMRole(m.Role), Content: m.Content})
	}

	last, hasLast := state.LastResult()
	lastFailed := hasLast && !last.Success
	if state.Error != "" || lastFailed {
		var revisionNote strings.Builder
		revisionNote.WriteString("This is a plan revision after a failure.")
		if state.Error != "" {
			revisionNote.WriteString(" Error: " + state.Error)
		}
		if hasLast {
			revisionNote.WriteString(fmt.Sprintf("\nLast task result: task_id=%s success=%v", last.TaskID, last.Success))
			if !last.Success {
				revisionNote.WriteString(" error=" + last.Error)
			}
		}
		revisionNote.WriteString("\nRevise the plan to account for this.")
		messages = append(messages, llm.Message{Role: llm.RoleHuman, Content: revisionNote.String()})
	}

	raw, _, err := p.llm.InvokeStructured(ctx, messages, json.RawMessage(planSchema), llm.Options{})
	if err != nil {
		return state.WithError(err.Error())
	}

	var plan Plan
	if err := json.Unmarshal(raw, &plan); err != nil {
		kErr := engineerr.Wrap(engineerr.KindLLMStructuredParse, plannerComponent, err)
		return state.WithError(kErr.Error())
	}

	if len(plan.Tasks) == 0 {
		kErr := engineerr.New(engineerr.KindPlanEmpty, plannerComponent, "planner returned a plan with zero tasks")
		return state.WithError(kErr.Error())
	}
	assignMissingTaskIDs(&plan)
	if err := plan.Validate(); err != nil {
		kErr := engineerr.Wrap(engineerr.KindPlanEmpty, plannerComponent, err)
		return state.WithError(kErr.Error())
	}

	return state.WithPlan(plan)
}

// assignMissingTaskIDs fills in a unique id for any task the model left
// blank, so a plan otherwise valid in every other respect isn't rejected by
// Plan.Validate for missing ids alone.
func assignMissingTaskIDs(plan *Plan) {
	for i, task := range plan.Tasks {
		if task.ID == "" {
			plan.Tasks[i].ID = uuid.NewString()
		}
	}
}

func (p *Planner) toolListing(ctx context.Context) string {
	if p.mcpExecutor == nil {
		return "(no tools available)"
	}
	schemas, err := p.mcpExecutor.AvailableTools(ctx)
	if err != nil || len(schemas) == 0 {
		return "(no tools available)"
	}
	var b strings.Builder
	for _, s := range schemas {
		fmt.Fprintf(&b, "- %s:%s — %s (input schema: %s)\n", s.ServerID, s.Name, s.Description, string(s.InputSchema))
	}
	return b.String()
}

func toLLMRole(r Role) llm.Role {
	switch r {
	case RoleHuman:
		return llm.RoleHuman
	case RoleAssistant:
		return llm.RoleAssistant
	case RoleTool:
		return llm.RoleTool
	default:
		return llm.RoleSystem
	}
}
