package engine

import (
	"context"
	"time"

	"github.com/macrae/convoke/internal/chat"
	"github.com/macrae/convoke/internal/llm"
)

// usageAccumulator sums token counts across every model call of one
// turn. It is reset when the turn number is assigned and flushed as a
// single record when the turn ends, however it ends.
type usageAccumulator struct {
	usage chat.TokenUsage
	model string
}

func (a *usageAccumulator) add(resp *llm.StreamChunk) {
	if resp == nil {
		return
	}
	if resp.Usage != nil {
		a.usage.Add(*resp.Usage)
	}
	if resp.Model != "" {
		a.model = resp.Model
	}
}

// flush persists the turn's usage record in a detached goroutine.
// Write failures are logged and never surface on the event stream; a
// turn that consumed no tokens writes nothing.
func (l *Loop) flushUsage(acc *usageAccumulator, threadID string, turn int) {
	if acc.usage.IsZero() {
		return
	}
	rec := chat.UsageRecord{
		ThreadID:   threadID,
		TurnNumber: turn,
		Model:      acc.model,
		Usage:      acc.usage,
		CreatedAt:  time.Now().UTC(),
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := l.store.SaveUsage(ctx, rec); err != nil {
			l.log.Error("usage record write failed",
				"thread_id", rec.ThreadID,
				"turn", rec.TurnNumber,
				"error", err)
		}
	}()
}
