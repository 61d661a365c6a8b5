package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/macrae/convoke/internal/chat"
)

// ErrAllToolsFailed is returned when every call in a batch fails
var ErrAllToolsFailed = errors.New("all tools in batch failed")

// CallOutcome is the result of executing one tool call from a model
// response. Err is set when the tool was missing or failed; the caller
// turns that into an error tool result rather than aborting the batch.
type CallOutcome struct {
	Call         chat.ToolCall
	Result       any
	Err          error
	ReturnDirect bool
}

// Executor runs tool calls requested by the model against a registry.
type Executor struct {
	registry *Registry
}

// NewExecutor creates a new tool executor
func NewExecutor(registry *Registry) *Executor {
	return &Executor{
		registry: registry,
	}
}

// Execute runs a single tool by name
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	tool, err := e.registry.Get(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get tool %s: %w", name, err)
	}

	result, err := tool.Execute(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("failed to execute tool %s: %w", name, err)
	}

	return result, nil
}

// ExecuteBatch runs every tool call in the batch and returns an outcome
// per call, in the order the model requested them. Individual failures
// are captured in the outcome's Err field; ExecuteBatch itself errors
// only when the batch is non-empty and every call failed.
func (e *Executor) ExecuteBatch(ctx context.Context, calls []chat.ToolCall) ([]CallOutcome, error) {
	if len(calls) == 0 {
		return nil, nil
	}

	outcomes := make([]CallOutcome, len(calls))
	errorCount := 0

	for i, call := range calls {
		args, err := decodeArgs(call.Input)
		if err == nil {
			var result any
			result, err = e.Execute(ctx, call.Name, args)
			outcomes[i] = CallOutcome{
				Call:         call,
				Result:       result,
				Err:          err,
				ReturnDirect: err == nil && e.returnsDirect(call.Name),
			}
		} else {
			outcomes[i] = CallOutcome{
				Call: call,
				Err:  fmt.Errorf("failed to decode arguments for tool %s: %w", call.Name, err),
			}
		}
		if outcomes[i].Err != nil {
			errorCount++
		}
	}

	if errorCount == len(calls) {
		return outcomes, fmt.Errorf("%w: %d tool(s) failed", ErrAllToolsFailed, errorCount)
	}

	return outcomes, nil
}

func (e *Executor) returnsDirect(name string) bool {
	tool, err := e.registry.Get(name)
	if err != nil {
		return false
	}
	dr, ok := tool.(DirectReturner)
	return ok && dr.ReturnDirect()
}

func decodeArgs(input json.RawMessage) (map[string]any, error) {
	if len(input) == 0 {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}
