// Package engine runs the tool-augmented conversation loop: send
// history to the model, execute any tool calls it requests, feed the
// results back, and repeat until the model produces a terminal text
// response. Every message is persisted before it is emitted, so
// consumers never observe content that could still be lost.
package engine

import (
	"context"

	"github.com/macrae/convoke/internal/chat"
)

// Event is one entry of a turn's output stream: either a persisted
// message or a terminal error. At most one Event with Err set is
// delivered, and it is always the last.
type Event struct {
	Message *chat.Message
	Err     error
}

// emit delivers an event unless the caller has cancelled. Returns false
// when delivery was abandoned.
func emit(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
