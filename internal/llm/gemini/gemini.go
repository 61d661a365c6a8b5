// Package gemini implements the llm.StreamGateway using Google's Gemini
// API. Gemini reports no thinking blocks and no cache token extras;
// their absence is fine, the engine treats them as zero.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/macrae/convoke/internal/chat"
	"github.com/macrae/convoke/internal/llm"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const defaultModel = "gemini-1.5-flash"

// Client implements the StreamGateway interface using Google's Gemini API.
type Client struct {
	client *genai.Client
	model  string
}

// APIError represents an error from the Gemini API with structured details.
type APIError struct {
	Code    int    // HTTP status code
	Message string // Raw API error message
	Err     error  // Enhanced error with user-friendly message
}

func (e *APIError) Error() string { return e.Err.Error() }

func (e *APIError) Unwrap() error { return e.Err }

// APICode returns the HTTP status code from the API.
func (e *APIError) APICode() int { return e.Code }

// APIMessage returns the raw error message from the API.
func (e *APIError) APIMessage() string { return e.Message }

// NewClient creates a new Gemini client.
// API key is read from GEMINI_API_KEY or GOOGLE_API_KEY environment variable.
func NewClient(ctx context.Context, model string) (*Client, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY or GOOGLE_API_KEY environment variable not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	if model == "" {
		model = defaultModel
	}

	return &Client{
		client: client,
		model:  model,
	}, nil
}

// Stream sends a chat request and returns a channel of partial chunks.
func (c *Client) Stream(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	model := c.client.GenerativeModel(c.model)

	if req.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.SystemPrompt)},
		}
	}

	if len(req.Tools) > 0 {
		tools := make([]*genai.Tool, 0, len(req.Tools))
		for _, tool := range req.Tools {
			tools = append(tools, convertToolDefinition(tool))
		}
		model.Tools = tools
	}

	history, lastParts := convertHistory(req.Messages)

	session := model.StartChat()
	session.History = history

	if lastParts == nil {
		lastParts = []genai.Part{genai.Text("")}
	}

	iter := session.SendMessageStream(ctx, lastParts...)

	out := make(chan llm.StreamChunk)
	go func() {
		defer close(out)

		var (
			toolCalls []llm.ToolCall
			usage     chat.TokenUsage
		)

		for {
			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				emit(ctx, out, llm.StreamChunk{Err: c.enhanceError(err), Done: true})
				return
			}

			if resp.UsageMetadata != nil {
				// Gemini repeats running totals; the last response wins.
				usage = chat.TokenUsage{
					InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
					OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
				}
			}

			for _, candidate := range resp.Candidates {
				if candidate.Content == nil {
					continue
				}
				for _, part := range candidate.Content.Parts {
					switch v := part.(type) {
					case genai.Text:
						if !emit(ctx, out, llm.StreamChunk{Role: "assistant", Text: string(v)}) {
							return
						}
					case genai.FunctionCall:
						toolCalls = append(toolCalls, convertFunctionCall(v, len(toolCalls)))
					}
				}
			}
		}

		emit(ctx, out, llm.StreamChunk{
			Role:      "assistant",
			ToolCalls: toolCalls,
			Model:     c.model,
			Usage:     &usage,
			Done:      true,
		})
	}()

	return out, nil
}

func emit(ctx context.Context, out chan<- llm.StreamChunk, chunk llm.StreamChunk) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// convertFunctionCall synthesizes a per-batch call ID from the name and
// the call's position. Gemini assigns no IDs of its own, and a batch may
// request the same tool twice, so the name alone cannot serve as the ID.
// History replay correlates FunctionResponse by Name, not ID.
func convertFunctionCall(fc genai.FunctionCall, index int) llm.ToolCall {
	args := make(map[string]any, len(fc.Args))
	for k, val := range fc.Args {
		args[k] = val
	}
	return llm.ToolCall{
		ID:   fmt.Sprintf("%s-%d", fc.Name, index),
		Name: fc.Name,
		Args: args,
	}
}

// convertHistory converts provider-neutral messages into Gemini content.
// The trailing user message is returned separately: the Gemini API wants
// it passed to SendMessageStream rather than placed in History.
func convertHistory(messages []llm.Message) ([]*genai.Content, []genai.Part) {
	var history []*genai.Content
	var lastParts []genai.Part

	for i, msg := range messages {
		var parts []genai.Part
		var role string

		switch {
		case msg.Role == "assistant":
			role = "model"
			if msg.Content != "" {
				parts = append(parts, genai.Text(msg.Content))
			}
			// Include FunctionCall parts so Gemini sees its own tool
			// calls in history.
			for _, tc := range msg.ToolCalls {
				parts = append(parts, genai.FunctionCall{
					Name: tc.Name,
					Args: tc.Args,
				})
			}
		case msg.ToolResultID != "":
			role = "user"
			var responseData map[string]any
			if err := json.Unmarshal([]byte(msg.Content), &responseData); err != nil {
				responseData = map[string]any{"result": msg.Content}
			}
			parts = append(parts, genai.FunctionResponse{
				Name:     msg.ToolName,
				Response: responseData,
			})
		default:
			role = "user"
			parts = append(parts, genai.Text(msg.Content))
		}

		if i == len(messages)-1 && role == "user" {
			lastParts = parts
			break
		}

		if len(parts) > 0 {
			history = append(history, &genai.Content{
				Parts: parts,
				Role:  role,
			})
		}
	}

	return history, lastParts
}

// convertToolDefinition converts our tool definition to Gemini format.
func convertToolDefinition(tool llm.ToolDefinition) *genai.Tool {
	properties := make(map[string]*genai.Schema)
	for name, prop := range tool.Parameters.Properties {
		schemaType := genai.TypeString
		switch prop.Type {
		case "string":
			schemaType = genai.TypeString
		case "number":
			schemaType = genai.TypeNumber
		case "integer":
			schemaType = genai.TypeInteger
		case "boolean":
			schemaType = genai.TypeBoolean
		case "array":
			schemaType = genai.TypeArray
		case "object":
			schemaType = genai.TypeObject
		}

		properties[name] = &genai.Schema{
			Type:        schemaType,
			Description: prop.Description,
		}
	}

	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters: &genai.Schema{
					Type:       genai.TypeObject,
					Properties: properties,
					Required:   tool.Parameters.Required,
				},
			},
		},
	}
}

// enhanceError provides better error messages for common API errors.
// Returns *APIError with structured details for logging.
func (c *Client) enhanceError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		var enhancedErr error
		switch apiErr.Code {
		case 404:
			hint := ""
			if strings.HasPrefix(c.model, "claude") {
				hint = fmt.Sprintf(" Note: %q appears to be a Claude model name, not a Gemini model.", c.model)
			}
			enhancedErr = fmt.Errorf("model %q not found for Gemini provider.%s", c.model, hint)
		case 403:
			enhancedErr = fmt.Errorf("authentication failed with Gemini API: %s (check GEMINI_API_KEY)", apiErr.Message)
		case 429:
			enhancedErr = fmt.Errorf("rate limit exceeded for Gemini API: %s", apiErr.Message)
		default:
			enhancedErr = fmt.Errorf("Gemini API error (%d): %s", apiErr.Code, apiErr.Message)
		}
		return &APIError{
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Err:     enhancedErr,
		}
	}

	return fmt.Errorf("gemini API call failed: %w", err)
}

// Close closes the Gemini client.
func (c *Client) Close() error {
	return c.client.Close()
}
