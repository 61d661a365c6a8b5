// Package tools defines the executable tools the model can call, the
// registry that exposes them, and the batch gateway the conversation
// engine executes them through.
package tools

import (
	"context"

	"github.com/macrae/convoke/internal/llm"
)

// Tool represents an executable tool that the model can call.
type Tool interface {
	// Name returns the tool's name
	Name() string

	// Description returns a description for the model
	Description() string

	// Parameters returns the parameter schema
	Parameters() llm.ParameterSchema

	// Execute runs the tool with the given arguments
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// DirectReturner is an optional interface for tools whose output should
// be handed straight to the caller instead of going back to the model
// for another iteration.
type DirectReturner interface {
	ReturnDirect() bool
}
