package engine

import "errors"

var (
	// ErrConversationNotFound means the conversation id does not exist.
	// Emitted before any model call is made.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrNoResponse means the model stream ended without producing any
	// usable content.
	ErrNoResponse = errors.New("model returned no response")

	// ErrApprovalRejected means the approval policy rejected a tool
	// batch. The turn stops; persisted messages remain.
	ErrApprovalRejected = errors.New("tool approval rejected")

	// ErrIterationBudget means the loop hit its iteration cap without
	// reaching a terminal response.
	ErrIterationBudget = errors.New("iteration budget exceeded")
)
