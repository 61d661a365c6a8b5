// Package chat defines the conversation data model: conversations,
// threads, messages, and the content item variants that make up a
// message body. Everything here is a plain value; persistence lives in
// the store package.
package chat

import (
	"time"

	"github.com/google/uuid"
)

// NewID returns a time-ordered unique ID (UUIDv7), so IDs sort by
// creation time.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Conversation is the top-level unit the UI addresses. It points at its
// current thread; non-append edits fork a new thread instead of mutating
// the old one.
type Conversation struct {
	ID              string
	Project         string
	Provider        string
	Model           string
	CurrentThreadID string
	CreatedAt       time.Time
}

// Thread is one linear message history. OriginalThreadID is set on
// threads derived from another thread. LastTurnNumber only increases.
type Thread struct {
	ID               string
	ConversationID   string
	OriginalThreadID string
	LastTurnNumber   int
}

// InstructionKind discriminates Instruction variants.
type InstructionKind string

const (
	InstructionTag     InstructionKind = "tag"
	InstructionReplyTo InstructionKind = "reply_to"
	InstructionSource  InstructionKind = "source"
)

// Instruction is routing/annotation metadata attached to a message:
// a user-defined tag, an inter-agent "respond to tab X" pointer, or the
// message's origin (human vs agent).
type Instruction struct {
	Kind  InstructionKind `json:"kind"`
	Value string          `json:"value"`
}

// Message is one persisted conversation entry. Messages are immutable
// once stored; the engine only ever appends new ones.
type Message struct {
	ID             string
	ConversationID string
	Role           Role
	Items          []ContentItem
	Instructions   []Instruction
	CreatedAt      time.Time
}

// ToolCalls returns the tool-call items of the message in order.
func (m *Message) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, item := range m.Items {
		if tc, ok := item.(ToolCall); ok {
			calls = append(calls, tc)
		}
	}
	return calls
}

// Text concatenates the text of all user/assistant text items.
func (m *Message) Text() string {
	var out string
	for _, item := range m.Items {
		switch v := item.(type) {
		case UserText:
			out += v.Text
		case AssistantText:
			out += v.Text
		}
	}
	return out
}
