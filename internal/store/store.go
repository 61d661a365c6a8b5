// Package store is the durable persistence gateway for conversations,
// threads, messages, and per-turn token usage. Messages are append-only
// and ordered; turn numbers are incremented atomically at the storage
// layer so concurrent callers can never observe the same turn twice.
package store

import (
	"context"
	"errors"

	"github.com/macrae/convoke/internal/chat"
)

// ErrNotFound is returned when a conversation or thread does not exist.
var ErrNotFound = errors.New("not found")

// Store is the interface for durable conversation storage.
type Store interface {
	// Conversations
	CreateConversation(ctx context.Context, conv chat.Conversation) error
	FindConversation(ctx context.Context, id string) (*chat.Conversation, error)

	// Threads
	CreateThread(ctx context.Context, thread chat.Thread) error
	FindThread(ctx context.Context, id string) (*chat.Thread, error)

	// IncrementTurn atomically bumps the thread's last turn number and
	// returns the new value. Turn numbers only increase.
	IncrementTurn(ctx context.Context, threadID string) (int, error)

	// Messages. AppendMessage is append-only: stored messages are never
	// edited or removed through this interface. LoadMessages returns
	// them in insertion order.
	AppendMessage(ctx context.Context, msg chat.Message) error
	LoadMessages(ctx context.Context, conversationID string) ([]chat.Message, error)

	// Usage
	SaveUsage(ctx context.Context, rec chat.UsageRecord) error
	UsageSummary(ctx context.Context, threadID string) (*UsageSummary, error)

	// Close the store
	Close() error
}

// UsageSummary holds aggregated token totals for one thread.
type UsageSummary struct {
	Turns               int
	InputTokens         int64
	OutputTokens        int64
	ThinkingTokens      int64
	CacheCreationTokens int64
	CacheReadTokens     int64
}
