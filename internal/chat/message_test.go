package chat

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

func TestNewID_TimeOrdered(t *testing.T) {
	id := NewID()
	parsed, err := uuid.Parse(id)
	if err != nil {
		t.Fatalf("NewID() = %q, not a UUID: %v", id, err)
	}
	if parsed.Version() != 7 {
		t.Errorf("NewID() version = %d, want 7", parsed.Version())
	}
	if next := NewID(); next <= id {
		t.Errorf("NewID() not monotonic: %q then %q", id, next)
	}
}

func TestMessage_ToolCalls(t *testing.T) {
	msg := Message{
		Role: RoleAssistant,
		Items: []ContentItem{
			AssistantText{Text: "running two tools"},
			ToolCall{ID: "tc-1", Name: "echo", Input: json.RawMessage(`{}`)},
			ToolCall{ID: "tc-2", Name: "read_file", Input: json.RawMessage(`{}`)},
		},
	}

	calls := msg.ToolCalls()
	if len(calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(calls))
	}
	if calls[0].ID != "tc-1" || calls[1].ID != "tc-2" {
		t.Errorf("calls out of order: %+v", calls)
	}
}

func TestMessage_ToolCalls_None(t *testing.T) {
	msg := Message{Items: []ContentItem{UserText{Text: "hi"}}}
	if calls := msg.ToolCalls(); len(calls) != 0 {
		t.Errorf("got %d calls, want 0", len(calls))
	}
}

func TestMessage_Text(t *testing.T) {
	msg := Message{
		Items: []ContentItem{
			AssistantText{Text: "part one "},
			ToolCall{ID: "tc-1", Name: "echo"},
			AssistantText{Text: "part two"},
			Thinking{Text: "not visible"},
		},
	}
	if got := msg.Text(); got != "part one part two" {
		t.Errorf("Text() = %q", got)
	}
}

func TestTokenUsage_Add(t *testing.T) {
	u := TokenUsage{InputTokens: 10, OutputTokens: 5}
	u.Add(TokenUsage{InputTokens: 3, OutputTokens: 2, ThinkingTokens: 7, CacheReadTokens: 1})

	if u.InputTokens != 13 || u.OutputTokens != 7 {
		t.Errorf("usage = %+v", u)
	}
	if u.ThinkingTokens != 7 || u.CacheReadTokens != 1 {
		t.Errorf("provider extras lost: %+v", u)
	}
}

func TestTokenUsage_IsZero(t *testing.T) {
	if !(TokenUsage{}).IsZero() {
		t.Error("empty usage should be zero")
	}
	if (TokenUsage{CacheReadTokens: 1}).IsZero() {
		t.Error("cache reads alone still count as consumption")
	}
}
