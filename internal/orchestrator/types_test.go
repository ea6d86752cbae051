package orchestrator

import (
	"encoding/json"
	"testing"
)

func TestTask_ParseToolCall(t *testing.T) {
	tests := []struct {
		name       string
		call       string
		wantServer string
		wantTool   string
		wantErr    bool
	}{
		{"valid", "files:read", "files", "read", false},
		{"missing colon", "filesread", "", "", true},
		{"empty tool", "files:", "", "", true},
		{"empty server", ":read", "", "", true},
		{"two colons", "files:sub:read", "", "", true},
		{"empty", "", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := Task{ID: "t1", ToolCall: tt.call}
			server, tool, err := task.ParseToolCall()
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseToolCall() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && (server != tt.wantServer || tool != tt.wantTool) {
				t.Errorf("ParseToolCall() = (%q, %q), want (%q, %q)", server, tool, tt.wantServer, tt.wantTool)
			}
		})
	}
}

func TestPlan_Validate(t *testing.T) {
	t.Run("empty rejected", func(t *testing.T) {
		if err := (Plan{}).Validate(); err == nil {
			t.Error("expected error for empty plan")
		}
	})

	t.Run("duplicate ids rejected", func(t *testing.T) {
		p := Plan{Tasks: []Task{{ID: "a"}, {ID: "a"}}}
		if err := p.Validate(); err == nil {
			t.Error("expected error for duplicate task id")
		}
	})

	t.Run("forward dependency rejected", func(t *testing.T) {
		p := Plan{Tasks: []Task{{ID: "a", DependsOn: []string{"b"}}, {ID: "b"}}}
		if err := p.Validate(); err == nil {
			t.Error("expected error for forward dependency")
		}
	})

	t.Run("unknown dependency rejected", func(t *testing.T) {
		p := Plan{Tasks: []Task{{ID: "a", DependsOn: []string{"ghost"}}}}
		if err := p.Validate(); err == nil {
			t.Error("expected error for unknown dependency")
		}
	})

	t.Run("valid plan accepted", func(t *testing.T) {
		p := Plan{Tasks: []Task{
			{ID: "a", ToolCall: "files:read"},
			{ID: "b", DependsOn: []string{"a"}},
		}}
		if err := p.Validate(); err != nil {
			t.Errorf("Validate() error = %v, want nil", err)
		}
	})

	t.Run("malformed tool_call rejected", func(t *testing.T) {
		p := Plan{Tasks: []Task{{ID: "a", ToolCall: "bad"}}}
		if err := p.Validate(); err == nil {
			t.Error("expected error for malformed tool_call")
		}
	})
}

func TestAgentState_WithPlan_ResetsIndexAndError(t *testing.T) {
	s := NewAgentState("sess-1").WithError("boom")
	s.CurrentTaskIndex = 3

	next := s.WithPlan(Plan{Tasks: []Task{{ID: "a"}}})
	if next.CurrentTaskIndex != 0 {
		t.Errorf("CurrentTaskIndex = %d, want 0", next.CurrentTaskIndex)
	}
	if next.Error != "" {
		t.Errorf("Error = %q, want empty", next.Error)
	}
	if s.Error != "boom" {
		t.Errorf("original state mutated: Error = %q", s.Error)
	}
}

func TestAgentState_WithMessage_DoesNotMutateOriginal(t *testing.T) {
	s := NewAgentState("sess-1")
	next := s.WithMessage(Message{Role: RoleHuman, Content: "hi"})

	if len(s.Messages) != 0 {
		t.Errorf("original Messages mutated: %v", s.Messages)
	}
	if len(next.Messages) != 1 || next.Messages[0].Content != "hi" {
		t.Errorf("next.Messages = %v, want one message", next.Messages)
	}
}

func TestAgentState_WithResult_AdvancesIndexOnlyOnSuccess(t *testing.T) {
	s := NewAgentState("sess-1")
	s.Plan = &Plan{Tasks: []Task{{ID: "a"}, {ID: "b"}}}

	afterFail := s.WithResult(NewFailureResult("a", "boom"))
	if afterFail.CurrentTaskIndex != 0 {
		t.Errorf("CurrentTaskIndex after failure = %d, want 0", afterFail.CurrentTaskIndex)
	}

	afterOK := s.WithResult(NewSuccessResult("a", json.RawMessage(`"ok"`)))
	if afterOK.CurrentTaskIndex != 1 {
		t.Errorf("CurrentTaskIndex after success = %d, want 1", afterOK.CurrentTaskIndex)
	}
	if s.CurrentTaskIndex != 0 {
		t.Errorf("original state mutated: CurrentTaskIndex = %d", s.CurrentTaskIndex)
	}
}

func TestAgentState_ClonePlan_IsIndependent(t *testing.T) {
	p := Plan{Tasks: []Task{{ID: "a", DependsOn: []string{"x"}}}}
	s := NewAgentState("sess-1").WithPlan(p)

	s.Plan.Tasks[0].DependsOn[0] = "mutated"
	if p.Tasks[0].DependsOn[0] != "x" {
		t.Errorf("mutating cloned plan affected the original: %v", p.Tasks[0].DependsOn)
	}
}

func TestAgentState_Validate_RejectsOutOfRangeIndex(t *testing.T) {
	s := NewAgentState("sess-1")
	s.Plan = &Plan{Tasks: []Task{{ID: "a"}}}
	s.CurrentTaskIndex = 5

	if err := s.Validate(); err == nil {
		t.Error("expected error for out-of-range current_task_index")
	}
}

func TestAgentState_ResultByTaskID_ReturnsMostRecent(t *testing.T) {
	s := NewAgentState("sess-1")
	s = s.WithResult(NewFailureResult("a", "first"))
	s = s.WithResult(NewSuccessResult("a", json.RawMessage(`1`)))

	result, ok := s.ResultByTaskID("a")
	if !ok {
		t.Fatal("expected a result for task a")
	}
	if !result.Success {
		t.Error("expected the most recent (successful) result")
	}
}

func TestAgentState_IsTerminal(t *testing.T) {
	s := NewAgentState("sess-1")
	if s.IsTerminal() {
		t.Error("fresh state should not be terminal")
	}
	s = s.WithFinalResponse(AgentResponse{Message: "done"})
	if !s.IsTerminal() {
		t.Error("state with final_response should be terminal")
	}
}
