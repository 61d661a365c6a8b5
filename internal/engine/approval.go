package engine

import (
	"context"

	"github.com/macrae/convoke/internal/chat"
)

// Decision is an approval policy's verdict on a tool batch.
type Decision struct {
	Approved bool
	Reason   string
}

// ApprovalPolicy decides whether a batch of tool calls may execute.
// Policies see the whole batch at once and reject it as a unit.
type ApprovalPolicy interface {
	Approve(ctx context.Context, calls []chat.ToolCall) Decision
}

// AutoApprove approves every batch unconditionally. It is the default
// policy.
type AutoApprove struct{}

func (AutoApprove) Approve(ctx context.Context, calls []chat.ToolCall) Decision {
	return Decision{Approved: true}
}
