package engine

import (
	"strings"

	"github.com/macrae/convoke/internal/llm"
)

// aggregate folds one iteration's stream of partial chunks into a
// single structured response. Thinking chunks never reach it; the loop
// persists and emits those the moment they arrive.
type aggregate struct {
	text      strings.Builder
	toolCalls []llm.ToolCall
	metadata  map[string]any
	last      *llm.StreamChunk
	collected bool
}

func newAggregate() *aggregate {
	return &aggregate{metadata: make(map[string]any)}
}

// add folds one chunk in: text fragments concatenate in arrival order,
// tool calls append, metadata merges key-wise with later values winning.
func (a *aggregate) add(chunk llm.StreamChunk) {
	if chunk.Text != "" {
		a.text.WriteString(chunk.Text)
		a.collected = true
	}
	if len(chunk.ToolCalls) > 0 {
		a.toolCalls = append(a.toolCalls, chunk.ToolCalls...)
		a.collected = true
	}
	for k, v := range chunk.Metadata {
		a.metadata[k] = v
		a.collected = true
	}
	c := chunk
	a.last = &c
}

// response builds the iteration's aggregated response, reusing the last
// raw chunk as the envelope for model id, stop reason, and usage. If
// nothing was accumulated it falls back to the last raw chunk as-is;
// nil means the stream produced nothing at all.
func (a *aggregate) response() *llm.StreamChunk {
	if a.last == nil {
		return nil
	}
	if !a.collected {
		return a.last
	}
	resp := *a.last
	resp.Text = a.text.String()
	resp.ToolCalls = a.toolCalls
	resp.Metadata = a.metadata
	return &resp
}
