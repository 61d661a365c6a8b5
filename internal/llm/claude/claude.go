// Package claude implements the llm.StreamGateway using Anthropic's
// Messages API.
package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/macrae/convoke/internal/chat"
	"github.com/macrae/convoke/internal/llm"
)

const defaultModel = "claude-sonnet-4-20250514"

// Client implements the StreamGateway interface using Anthropic's API.
type Client struct {
	client anthropic.Client
	model  string

	// thinkingBudget enables extended thinking when > 0.
	thinkingBudget int64
}

// Option configures optional Client settings.
type Option func(*Client)

// WithThinkingBudget enables extended thinking with the given token budget.
func WithThinkingBudget(tokens int64) Option {
	return func(c *Client) { c.thinkingBudget = tokens }
}

// NewClient creates a new Claude client.
// API key is read from ANTHROPIC_API_KEY environment variable.
func NewClient(model string, opts ...Option) (*Client, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
	}

	if model == "" {
		model = defaultModel
	}

	c := &Client{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Stream sends a chat request and returns a channel of partial chunks.
// Thinking blocks are emitted as single self-contained chunks with
// Metadata["thinking"] set; text arrives as fragments; tool calls and
// the usage envelope arrive on the final Done chunk.
func (c *Client) Stream(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}

	stream := c.client.Messages.NewStreaming(ctx, params)

	out := make(chan llm.StreamChunk)
	go func() {
		defer close(out)

		var (
			message      anthropic.Message
			thinkingBuf  string
			thinkingSig  string
			inThinking   bool
		)

		for stream.Next() {
			event := stream.Current()
			if err := message.Accumulate(event); err != nil {
				emit(ctx, out, llm.StreamChunk{Err: fmt.Errorf("accumulate stream event: %w", err), Done: true})
				return
			}

			switch eventVariant := event.AsAny().(type) {
			case anthropic.ContentBlockStartEvent:
				switch eventVariant.ContentBlock.AsAny().(type) {
				case anthropic.ThinkingBlock, anthropic.RedactedThinkingBlock:
					inThinking = true
					thinkingBuf = ""
					thinkingSig = ""
				}

			case anthropic.ContentBlockDeltaEvent:
				switch deltaVariant := eventVariant.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					if !emit(ctx, out, llm.StreamChunk{
						Role: "assistant",
						Text: deltaVariant.Text,
					}) {
						return
					}
				case anthropic.ThinkingDelta:
					thinkingBuf += deltaVariant.Thinking
				case anthropic.SignatureDelta:
					thinkingSig += deltaVariant.Signature
				}

			case anthropic.ContentBlockStopEvent:
				if inThinking {
					inThinking = false
					if !emit(ctx, out, llm.StreamChunk{
						Role: "assistant",
						Text: thinkingBuf,
						Metadata: map[string]any{
							"thinking":  true,
							"signature": thinkingSig,
						},
					}) {
						return
					}
				}
			}
		}

		if err := stream.Err(); err != nil {
			emit(ctx, out, llm.StreamChunk{Err: fmt.Errorf("anthropic stream failed: %w", err), Done: true})
			return
		}

		emit(ctx, out, c.finalChunk(&message))
	}()

	return out, nil
}

// emit sends a chunk unless the context is done. Returns false when the
// consumer went away.
func emit(ctx context.Context, out chan<- llm.StreamChunk, chunk llm.StreamChunk) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// finalChunk builds the terminal chunk from the accumulated message:
// complete tool calls, stop reason, and the full usage envelope
// including cache token extras.
func (c *Client) finalChunk(message *anthropic.Message) llm.StreamChunk {
	chunk := llm.StreamChunk{
		Role:       "assistant",
		Model:      string(message.Model),
		StopReason: string(message.StopReason),
		Done:       true,
		Usage: &chat.TokenUsage{
			InputTokens:         int(message.Usage.InputTokens),
			OutputTokens:        int(message.Usage.OutputTokens),
			CacheCreationTokens: int(message.Usage.CacheCreationInputTokens),
			CacheReadTokens:     int(message.Usage.CacheReadInputTokens),
		},
	}

	for _, block := range message.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.ToolUseBlock:
			args := make(map[string]any)
			if err := json.Unmarshal(variant.Input, &args); err != nil {
				args = map[string]any{"_raw": string(variant.Input)}
			}
			chunk.ToolCalls = append(chunk.ToolCalls, llm.ToolCall{
				ID:   variant.ID,
				Name: variant.Name,
				Args: args,
			})
		}
	}

	return chunk
}

// buildParams converts the provider-neutral request into Anthropic params.
func (c *Client) buildParams(req llm.ChatRequest) (anthropic.MessageNewParams, error) {
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, msg := range req.Messages {
		converted, err := convertMessage(msg)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		messages = append(messages, converted)
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}

	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.SystemPrompt},
		}
	}

	if len(req.Tools) > 0 {
		tools := make([]anthropic.ToolUnionParam, 0, len(req.Tools))
		for _, tool := range req.Tools {
			tools = append(tools, convertToolDefinition(tool))
		}
		params.Tools = tools
	}

	if c.thinkingBudget > 0 {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(c.thinkingBudget)
	}

	return params, nil
}

// convertMessage converts one history entry into Anthropic content blocks.
func convertMessage(msg llm.Message) (anthropic.MessageParam, error) {
	switch {
	case msg.Role == "assistant" && msg.Thinking != "":
		// Signed thinking must be replayed verbatim ahead of the
		// assistant's other content.
		return anthropic.NewAssistantMessage(
			anthropic.NewThinkingBlock(msg.ThinkingSignature, msg.Thinking),
		), nil

	case msg.Role == "assistant" && len(msg.ToolCalls) > 0:
		var blocks []anthropic.ContentBlockParamUnion
		if msg.Content != "" {
			blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
		}
		for i, tc := range msg.ToolCalls {
			args := tc.Args
			if args == nil {
				args = map[string]any{}
			}
			id := tc.ID
			if id == "" {
				id = fmt.Sprintf("toolu_%s_%d", tc.Name, i)
			}
			blocks = append(blocks, anthropic.NewToolUseBlock(id, args, tc.Name))
		}
		return anthropic.NewAssistantMessage(blocks...), nil

	case msg.Role == "assistant":
		return anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)), nil

	case msg.ToolResultID != "":
		return anthropic.NewUserMessage(
			anthropic.NewToolResultBlock(msg.ToolResultID, msg.Content, msg.IsError),
		), nil

	default:
		return anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)), nil
	}
}

// convertToolDefinition converts our tool definition to Anthropic format.
func convertToolDefinition(tool llm.ToolDefinition) anthropic.ToolUnionParam {
	properties := make(map[string]interface{})
	for name, prop := range tool.Parameters.Properties {
		properties[name] = map[string]interface{}{
			"type":        prop.Type,
			"description": prop.Description,
		}
	}

	inputSchema := anthropic.ToolInputSchemaParam{
		Properties: properties,
	}
	if len(tool.Parameters.Required) > 0 {
		inputSchema.Required = tool.Parameters.Required
	}

	return anthropic.ToolUnionParamOfTool(inputSchema, tool.Name)
}
