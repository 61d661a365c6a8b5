package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/macrae/convoke/internal/chat"
	"github.com/macrae/convoke/internal/tools"
)

// ToolGateway executes one batch of tool calls and reports a per-call
// outcome for each. *tools.Executor satisfies this.
type ToolGateway interface {
	ExecuteBatch(ctx context.Context, calls []chat.ToolCall) ([]tools.CallOutcome, error)
}

// coordinator turns a batch of requested tool calls into exactly one
// tool-result message. Execution failures never propagate to the loop:
// they become per-call error results the model can respond to on the
// next iteration.
type coordinator struct {
	gateway ToolGateway
	log     *slog.Logger
}

// run executes the batch and returns the tool-result items plus whether
// a tool asked for its output to be returned directly to the caller.
func (c *coordinator) run(ctx context.Context, calls []chat.ToolCall) ([]chat.ContentItem, bool) {
	outcomes, err := c.gateway.ExecuteBatch(ctx, calls)
	if err != nil {
		c.log.Warn("tool batch failed", "calls", len(calls), "error", err)
	}
	if len(outcomes) == 0 {
		// The gateway gave up before producing outcomes. Synthesize one
		// error result per requested call so the model sees every call
		// answered.
		items := make([]chat.ContentItem, 0, len(calls))
		for _, call := range calls {
			items = append(items, errorResult(call, err))
		}
		return items, false
	}

	items := make([]chat.ContentItem, 0, len(outcomes))
	returnDirect := false
	for _, o := range outcomes {
		if o.Err != nil {
			items = append(items, errorResult(o.Call, o.Err))
			continue
		}
		items = append(items, chat.ToolResult{
			ToolUseID: o.Call.ID,
			ToolName:  o.Call.Name,
			Data:      []chat.ResultData{{Type: "text", Text: resultText(o.Result)}},
		})
		if o.ReturnDirect {
			returnDirect = true
		}
	}
	return items, returnDirect
}

func errorResult(call chat.ToolCall, err error) chat.ToolResult {
	text := "tool execution failed"
	if err != nil {
		text = fmt.Sprintf("tool execution failed: %v", err)
	}
	return chat.ToolResult{
		ToolUseID: call.ID,
		ToolName:  call.Name,
		Data:      []chat.ResultData{{Type: "text", Text: text}},
		IsError:   true,
	}
}

// resultText reduces a tool's output to text for storage, dropping
// heavyweight payloads like embedded images. Precedence: plain string,
// first "text"-tagged item in a JSON array, "text" field in a JSON
// object, raw JSON fallback.
func resultText(result any) string {
	if s, ok := result.(string); ok {
		return s
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("%v", result)
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return string(raw)
	}

	switch v := decoded.(type) {
	case string:
		return v
	case []any:
		for _, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if obj["type"] == "text" {
				if text, ok := obj["text"].(string); ok {
					return text
				}
			}
		}
	case map[string]any:
		if text, ok := v["text"].(string); ok {
			return text
		}
	}
	return string(raw)
}
