package models

import (
	"encoding/json"
	"testing"
)

func TestToolCall_JSONRoundTrip(t *testing.T) {
	original := ToolCall{
		ID:    "tc-1",
		Name:  "web_search",
		Input: json.RawMessage(`{"query":"test"}`),
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var decoded ToolCall
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if decoded.ID != original.ID || decoded.Name != original.Name {
		t.Errorf("decoded = %+v, want %+v", decoded, original)
	}
	if string(decoded.Input) != string(original.Input) {
		t.Errorf("Input = %s, want %s", decoded.Input, original.Input)
	}
}

func TestToolResult_Struct(t *testing.T) {
	tr := ToolResult{ToolCallID: "tc-1", Content: "result", IsError: false}
	if tr.IsError {
		t.Error("IsError should be false")
	}

	errResult := ToolResult{ToolCallID: "tc-2", Content: "boom", IsError: true}
	if !errResult.IsError {
		t.Error("IsError should be true")
	}
}

func TestAttachment_Struct(t *testing.T) {
	att := Attachment{ID: "att-1", Type: "image", URL: "https://example.com/img.png", Size: 1024}
	if att.Type != "image" {
		t.Errorf("Type = %q, want %q", att.Type, "image")
	}
	if att.Size != 1024 {
		t.Errorf("Size = %d, want 1024", att.Size)
	}
}
