package engine

import (
	"testing"

	"github.com/macrae/convoke/internal/chat"
	"github.com/macrae/convoke/internal/llm"
)

func TestAggregate_ConcatenatesTextInOrder(t *testing.T) {
	agg := newAggregate()
	agg.add(llm.StreamChunk{Text: "Hello"})
	agg.add(llm.StreamChunk{Text: ", "})
	agg.add(llm.StreamChunk{Text: "world"})
	agg.add(llm.StreamChunk{Done: true, Model: "m1", StopReason: "end_turn"})

	resp := agg.response()
	if resp == nil {
		t.Fatal("response() = nil")
	}
	if resp.Text != "Hello, world" {
		t.Errorf("Text = %q, want Hello, world", resp.Text)
	}
	if resp.Model != "m1" || resp.StopReason != "end_turn" {
		t.Errorf("envelope = %s/%s, want last chunk's", resp.Model, resp.StopReason)
	}
}

func TestAggregate_AppendsToolCalls(t *testing.T) {
	agg := newAggregate()
	agg.add(llm.StreamChunk{ToolCalls: []llm.ToolCall{{ID: "a", Name: "first"}}})
	agg.add(llm.StreamChunk{ToolCalls: []llm.ToolCall{{ID: "b", Name: "second"}}, Done: true})

	resp := agg.response()
	if len(resp.ToolCalls) != 2 {
		t.Fatalf("got %d tool calls, want 2", len(resp.ToolCalls))
	}
	if resp.ToolCalls[0].ID != "a" || resp.ToolCalls[1].ID != "b" {
		t.Errorf("tool call order = %s,%s, want a,b", resp.ToolCalls[0].ID, resp.ToolCalls[1].ID)
	}
}

func TestAggregate_MetadataLaterValuesWin(t *testing.T) {
	agg := newAggregate()
	agg.add(llm.StreamChunk{Metadata: map[string]any{"k": "old", "only": 1}})
	agg.add(llm.StreamChunk{Metadata: map[string]any{"k": "new"}, Done: true})

	resp := agg.response()
	if resp.Metadata["k"] != "new" {
		t.Errorf("Metadata[k] = %v, want new", resp.Metadata["k"])
	}
	if resp.Metadata["only"] != 1 {
		t.Errorf("Metadata[only] = %v, want 1", resp.Metadata["only"])
	}
}

func TestAggregate_EnvelopeCarriesUsage(t *testing.T) {
	agg := newAggregate()
	agg.add(llm.StreamChunk{Text: "hi"})
	agg.add(llm.StreamChunk{Done: true, Usage: &chat.TokenUsage{InputTokens: 7, OutputTokens: 2}})

	resp := agg.response()
	if resp.Usage == nil || resp.Usage.InputTokens != 7 {
		t.Errorf("Usage = %+v, want input=7 from the last chunk", resp.Usage)
	}
}

func TestAggregate_FallbackToLastRawChunk(t *testing.T) {
	agg := newAggregate()
	agg.add(llm.StreamChunk{Done: true, Model: "m1"})

	resp := agg.response()
	if resp == nil {
		t.Fatal("response() = nil, want last raw chunk fallback")
	}
	if resp.Model != "m1" {
		t.Errorf("Model = %s, want m1", resp.Model)
	}
}

func TestAggregate_EmptyStream(t *testing.T) {
	agg := newAggregate()
	if resp := agg.response(); resp != nil {
		t.Errorf("response() = %+v, want nil for an empty stream", resp)
	}
}
