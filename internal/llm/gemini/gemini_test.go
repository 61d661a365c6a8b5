package gemini

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/macrae/convoke/internal/llm"
	"google.golang.org/api/googleapi"
)

func TestConvertHistory(t *testing.T) {
	messages := []llm.Message{
		{Role: "user", Content: "list my files"},
		{
			Role:    "assistant",
			Content: "on it",
			ToolCalls: []llm.ToolCall{
				{ID: "list_files", Name: "list_files", Args: map[string]any{"path": "."}},
			},
		},
		{Role: "user", ToolResultID: "list_files", ToolName: "list_files", Content: `{"entries":["a.go"]}`},
	}

	history, lastParts := convertHistory(messages)

	// The trailing user entry goes to SendMessageStream, not History.
	if len(history) != 2 {
		t.Fatalf("got %d history entries, want 2", len(history))
	}
	if len(lastParts) != 1 {
		t.Fatalf("got %d last parts, want 1", len(lastParts))
	}

	if history[0].Role != "user" {
		t.Errorf("history[0].Role = %q", history[0].Role)
	}
	if history[1].Role != "model" {
		t.Errorf("history[1].Role = %q", history[1].Role)
	}
	if len(history[1].Parts) != 2 {
		t.Fatalf("assistant entry has %d parts, want text + function call", len(history[1].Parts))
	}
	fc, ok := history[1].Parts[1].(genai.FunctionCall)
	if !ok {
		t.Fatalf("part = %T, want FunctionCall", history[1].Parts[1])
	}
	if fc.Name != "list_files" {
		t.Errorf("function call name = %q", fc.Name)
	}

	fr, ok := lastParts[0].(genai.FunctionResponse)
	if !ok {
		t.Fatalf("last part = %T, want FunctionResponse", lastParts[0])
	}
	if fr.Name != "list_files" {
		t.Errorf("function response name = %q", fr.Name)
	}
	if _, ok := fr.Response["entries"]; !ok {
		t.Errorf("structured result not preserved: %v", fr.Response)
	}
}

func TestConvertHistory_PlainTextResult(t *testing.T) {
	messages := []llm.Message{
		{Role: "user", ToolResultID: "echo", ToolName: "echo", Content: "not json"},
	}

	_, lastParts := convertHistory(messages)
	fr, ok := lastParts[0].(genai.FunctionResponse)
	if !ok {
		t.Fatalf("last part = %T, want FunctionResponse", lastParts[0])
	}
	if fr.Response["result"] != "not json" {
		t.Errorf("response = %v, want plain text wrapped under result", fr.Response)
	}
}

func TestConvertFunctionCall_DuplicateToolGetsUniqueIDs(t *testing.T) {
	batch := []genai.FunctionCall{
		{Name: "read_file", Args: map[string]any{"path": "a.go"}},
		{Name: "read_file", Args: map[string]any{"path": "b.go"}},
	}

	var toolCalls []llm.ToolCall
	for _, fc := range batch {
		toolCalls = append(toolCalls, convertFunctionCall(fc, len(toolCalls)))
	}

	if toolCalls[0].ID == toolCalls[1].ID {
		t.Fatalf("duplicate IDs in one batch: %q", toolCalls[0].ID)
	}
	for i, tc := range toolCalls {
		if tc.Name != "read_file" {
			t.Errorf("call %d name = %q", i, tc.Name)
		}
	}
	if toolCalls[0].Args["path"] != "a.go" || toolCalls[1].Args["path"] != "b.go" {
		t.Errorf("args not preserved: %+v", toolCalls)
	}
}

func TestConvertToolDefinition(t *testing.T) {
	tool := convertToolDefinition(llm.ToolDefinition{
		Name:        "search_text",
		Description: "Search files for a pattern",
		Parameters: llm.ParameterSchema{
			Type: "object",
			Properties: map[string]llm.Property{
				"pattern": {Type: "string", Description: "text to find"},
				"limit":   {Type: "integer", Description: "max matches"},
			},
			Required: []string{"pattern"},
		},
	})

	if len(tool.FunctionDeclarations) != 1 {
		t.Fatalf("got %d declarations, want 1", len(tool.FunctionDeclarations))
	}
	decl := tool.FunctionDeclarations[0]
	if decl.Name != "search_text" {
		t.Errorf("name = %q", decl.Name)
	}
	if decl.Parameters.Properties["pattern"].Type != genai.TypeString {
		t.Errorf("pattern type = %v", decl.Parameters.Properties["pattern"].Type)
	}
	if decl.Parameters.Properties["limit"].Type != genai.TypeInteger {
		t.Errorf("limit type = %v", decl.Parameters.Properties["limit"].Type)
	}
	if len(decl.Parameters.Required) != 1 || decl.Parameters.Required[0] != "pattern" {
		t.Errorf("required = %v", decl.Parameters.Required)
	}
}

func TestEnhanceError(t *testing.T) {
	c := &Client{model: "gemini-1.5-flash"}

	tests := []struct {
		name     string
		code     int
		contains string
	}{
		{"model not found", 404, "not found"},
		{"auth failure", 403, "authentication failed"},
		{"rate limited", 429, "rate limit"},
		{"other", 500, "Gemini API error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.enhanceError(&googleapi.Error{Code: tt.code, Message: "boom"})

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %T, want *APIError", err)
			}
			if apiErr.APICode() != tt.code {
				t.Errorf("code = %d, want %d", apiErr.APICode(), tt.code)
			}
			if apiErr.APIMessage() != "boom" {
				t.Errorf("message = %q", apiErr.APIMessage())
			}
			if !containsFold(err.Error(), tt.contains) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.contains)
			}
		})
	}
}

func TestEnhanceError_ClaudeModelHint(t *testing.T) {
	c := &Client{model: "claude-sonnet-4-20250514"}

	err := c.enhanceError(&googleapi.Error{Code: 404, Message: "no such model"})
	if !containsFold(err.Error(), "Claude model name") {
		t.Errorf("error %q should hint at the provider mismatch", err.Error())
	}
}

func TestEnhanceError_NonAPIError(t *testing.T) {
	c := &Client{model: "gemini-1.5-flash"}
	cause := errors.New("connection reset")

	err := c.enhanceError(cause)
	if !errors.Is(err, cause) {
		t.Error("original error should be wrapped")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Error("non-API errors should not become APIError")
	}
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
