// Package llm defines the provider-neutral model gateway: the request
// types sent to a provider and the stream of partial chunks it returns.
// Provider clients (claude, gemini) normalize their wire formats into
// these types so the engine never sees provider specifics.
package llm

import (
	"context"

	"github.com/macrae/convoke/internal/chat"
)

// StreamGateway streams a model response for a prompt plus tool
// definitions. Implementations must close the returned channel when the
// stream ends and respect ctx cancellation at every read.
type StreamGateway interface {
	Stream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error)
}

// ChatRequest is one model invocation.
type ChatRequest struct {
	SystemPrompt string
	Messages     []Message
	Tools        []ToolDefinition
	MaxTokens    int
}

// Message is a provider-neutral prompt entry derived from persisted
// chat history.
type Message struct {
	Role    string // "user", "assistant"
	Content string

	// For assistant messages: tool calls the model made, so providers
	// can replay them in their native history format.
	ToolCalls []ToolCall

	// For thinking entries replayed into history (Anthropic requires
	// signed thinking blocks to be echoed back verbatim).
	Thinking          string
	ThinkingSignature string

	// For tool result messages.
	ToolResultID string
	ToolName     string
	IsError      bool
}

// ToolCall is a structured tool invocation request from the model.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// StreamChunk is one partial unit of a model response stream.
//
// Text chunks carry a fragment to concatenate. Tool-call chunks carry
// complete calls (providers buffer partial JSON internally). A chunk
// with Metadata["thinking"] == true is a self-contained signed thinking
// unit. The final chunk has Done set and carries the envelope (model,
// stop reason, usage totals).
type StreamChunk struct {
	Role      string
	Text      string
	ToolCalls []ToolCall
	Metadata  map[string]any
	Usage     *chat.TokenUsage

	Model      string
	StopReason string
	Done       bool

	// Err is set on the last chunk when the stream failed mid-flight.
	Err error
}

// IsThinking reports whether the chunk is a self-contained thinking unit.
func (c StreamChunk) IsThinking() bool {
	v, ok := c.Metadata["thinking"].(bool)
	return ok && v
}

// ThinkingSignature returns the provider signature of a thinking chunk.
func (c StreamChunk) ThinkingSignature() string {
	s, _ := c.Metadata["signature"].(string)
	return s
}

// ToolDefinition describes a tool available to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  ParameterSchema
}

// ParameterSchema defines the structure of tool parameters.
type ParameterSchema struct {
	Type       string
	Properties map[string]Property
	Required   []string
}

// Property defines a single parameter property.
type Property struct {
	Type        string
	Description string
	Items       *Property // For array types: describes array items
}
