package claude

import (
	"testing"

	"github.com/macrae/convoke/internal/llm"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		model   string
		apiKey  string
		wantErr bool
	}{
		{
			name:    "creates client with API key",
			model:   "claude-sonnet-4-20250514",
			apiKey:  "test-api-key",
			wantErr: false,
		},
		{
			name:    "uses default model when empty",
			model:   "",
			apiKey:  "test-api-key",
			wantErr: false,
		},
		{
			name:    "returns error when API key missing",
			model:   "claude-sonnet-4-20250514",
			apiKey:  "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ANTHROPIC_API_KEY", tt.apiKey)

			client, err := NewClient(tt.model)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewClient() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}

			if tt.model == "" && client.model != defaultModel {
				t.Errorf("model = %v, want default", client.model)
			}
			if tt.model != "" && client.model != tt.model {
				t.Errorf("model = %v, want %v", client.model, tt.model)
			}
		})
	}
}

func TestWithThinkingBudget(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")

	client, err := NewClient("", WithThinkingBudget(2048))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if client.thinkingBudget != 2048 {
		t.Errorf("thinkingBudget = %d, want 2048", client.thinkingBudget)
	}

	params, err := client.buildParams(llm.ChatRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("buildParams() error = %v", err)
	}
	if params.Thinking.OfEnabled == nil {
		t.Error("thinking config not set on params")
	}
}

func TestBuildParams(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")

	client, err := NewClient("claude-sonnet-4-20250514")
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	req := llm.ChatRequest{
		SystemPrompt: "be brief",
		Messages: []llm.Message{
			{Role: "user", Content: "list my files"},
			{
				Role:    "assistant",
				Content: "on it",
				ToolCalls: []llm.ToolCall{
					{ID: "tc-1", Name: "list_files", Args: map[string]any{"path": "."}},
				},
			},
			{Role: "user", ToolResultID: "tc-1", ToolName: "list_files", Content: "a.go"},
		},
		Tools: []llm.ToolDefinition{
			{
				Name:        "list_files",
				Description: "List directory entries",
				Parameters: llm.ParameterSchema{
					Type: "object",
					Properties: map[string]llm.Property{
						"path": {Type: "string", Description: "directory to list"},
					},
					Required: []string{"path"},
				},
			},
		},
	}

	params, err := client.buildParams(req)
	if err != nil {
		t.Fatalf("buildParams() error = %v", err)
	}

	if string(params.Model) != "claude-sonnet-4-20250514" {
		t.Errorf("model = %v", params.Model)
	}
	if params.MaxTokens != 4096 {
		t.Errorf("max tokens = %d, want default 4096", params.MaxTokens)
	}
	if len(params.System) != 1 || params.System[0].Text != "be brief" {
		t.Errorf("system = %+v", params.System)
	}
	if len(params.Messages) != 3 {
		t.Fatalf("got %d messages, want 3", len(params.Messages))
	}
	if len(params.Tools) != 1 {
		t.Fatalf("got %d tools, want 1", len(params.Tools))
	}
}

func TestConvertMessage_ThinkingReplay(t *testing.T) {
	msg, err := convertMessage(llm.Message{
		Role:              "assistant",
		Thinking:          "considering the options",
		ThinkingSignature: "sig-abc",
	})
	if err != nil {
		t.Fatalf("convertMessage() error = %v", err)
	}
	if string(msg.Role) != "assistant" {
		t.Errorf("role = %v", msg.Role)
	}
	if len(msg.Content) != 1 {
		t.Fatalf("got %d blocks, want 1", len(msg.Content))
	}
	block := msg.Content[0].OfThinking
	if block == nil {
		t.Fatal("expected a thinking block")
	}
	if block.Signature != "sig-abc" || block.Thinking != "considering the options" {
		t.Errorf("thinking block = %+v", block)
	}
}

func TestConvertMessage_ToolCallWithoutID(t *testing.T) {
	msg, err := convertMessage(llm.Message{
		Role:      "assistant",
		ToolCalls: []llm.ToolCall{{Name: "echo", Args: map[string]any{"text": "x"}}},
	})
	if err != nil {
		t.Fatalf("convertMessage() error = %v", err)
	}
	block := msg.Content[0].OfToolUse
	if block == nil {
		t.Fatal("expected a tool_use block")
	}
	if block.ID == "" {
		t.Error("missing tool call ID should be synthesized")
	}
}

func TestConvertMessage_ToolResult(t *testing.T) {
	msg, err := convertMessage(llm.Message{
		Role:         "user",
		ToolResultID: "tc-1",
		ToolName:     "echo",
		Content:      "boom",
		IsError:      true,
	})
	if err != nil {
		t.Fatalf("convertMessage() error = %v", err)
	}
	if string(msg.Role) != "user" {
		t.Errorf("role = %v", msg.Role)
	}
	block := msg.Content[0].OfToolResult
	if block == nil {
		t.Fatal("expected a tool_result block")
	}
	if block.ToolUseID != "tc-1" {
		t.Errorf("tool use ID = %q", block.ToolUseID)
	}
	if !block.IsError.Value {
		t.Error("is_error should be set")
	}
}

func TestConvertToolDefinition(t *testing.T) {
	def := convertToolDefinition(llm.ToolDefinition{
		Name:        "read_file",
		Description: "Read a file",
		Parameters: llm.ParameterSchema{
			Type: "object",
			Properties: map[string]llm.Property{
				"path": {Type: "string", Description: "file path"},
			},
			Required: []string{"path"},
		},
	})

	tool := def.OfTool
	if tool == nil {
		t.Fatal("expected a plain tool param")
	}
	if tool.Name != "read_file" {
		t.Errorf("name = %q", tool.Name)
	}
	if len(tool.InputSchema.Required) != 1 || tool.InputSchema.Required[0] != "path" {
		t.Errorf("required = %v", tool.InputSchema.Required)
	}
	props, ok := tool.InputSchema.Properties.(map[string]interface{})
	if !ok {
		t.Fatalf("properties = %T", tool.InputSchema.Properties)
	}
	if _, ok := props["path"]; !ok {
		t.Error("path property missing")
	}
}
