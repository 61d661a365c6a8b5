package chat

import (
	"encoding/json"
	"fmt"
)

// ItemKind discriminates ContentItem variants on the wire and in storage.
type ItemKind string

const (
	KindUserText      ItemKind = "user_text"
	KindAssistantText ItemKind = "assistant_text"
	KindToolCall      ItemKind = "tool_call"
	KindToolResult    ItemKind = "tool_result"
	KindThinking      ItemKind = "thinking"
	KindSystemNote    ItemKind = "system_note"
	KindImage         ItemKind = "image"
	KindUnknown       ItemKind = "unknown"
)

// ContentItem is one piece of a message body. Consumers must switch on
// Kind() exhaustively and route anything unrecognized through Unknown so
// that payloads added by newer providers survive a round trip.
type ContentItem interface {
	Kind() ItemKind
}

// UserText is plain text written by the user.
type UserText struct {
	Text string `json:"text"`
}

func (UserText) Kind() ItemKind { return KindUserText }

// AssistantText is the model's final structured text output.
type AssistantText struct {
	Text string `json:"text"`
}

func (AssistantText) Kind() ItemKind { return KindAssistantText }

// ToolCall is a request from the model to invoke a named tool.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

func (ToolCall) Kind() ItemKind { return KindToolCall }

// ResultData is one entry of a tool result payload.
type ResultData struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ToolResult carries a tool's output back to the model. ToolUseID must
// reference a ToolCall.ID persisted earlier in the same thread.
type ToolResult struct {
	ToolUseID string       `json:"tool_use_id"`
	ToolName  string       `json:"tool_name"`
	Data      []ResultData `json:"data"`
	IsError   bool         `json:"is_error"`
}

func (ToolResult) Kind() ItemKind { return KindToolResult }

// Thinking is an extended reasoning unit. The signature is assigned by
// the provider and must be preserved verbatim for replay.
type Thinking struct {
	Signature string `json:"signature"`
	Text      string `json:"text"`
}

func (Thinking) Kind() ItemKind { return KindThinking }

// SystemNote is an engine-generated annotation (approval notices, tool
// recovery markers). ToolUseID is set when the note concerns one call.
type SystemNote struct {
	Level     string `json:"level"`
	Text      string `json:"text"`
	ToolUseID string `json:"tool_use_id,omitempty"`
}

func (SystemNote) Kind() ItemKind { return KindSystemNote }

// Image is an inline image payload. The engine strips these before
// persisting tool results; they only appear on user messages.
type Image struct {
	MediaType string `json:"media_type"`
	Data      []byte `json:"data"`
}

func (Image) Kind() ItemKind { return KindImage }

// Unknown preserves a content item whose type this build does not know.
type Unknown struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"raw"`
}

func (Unknown) Kind() ItemKind { return KindUnknown }

// itemEnvelope is the stored/wire form of a ContentItem: the variant's
// own fields plus a "type" discriminator.
type itemEnvelope struct {
	Type ItemKind        `json:"type"`
	Body json.RawMessage `json:"body"`
}

// MarshalItems encodes content items with their type discriminators.
func MarshalItems(items []ContentItem) ([]byte, error) {
	envelopes := make([]itemEnvelope, 0, len(items))
	for _, item := range items {
		body, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("marshal %s item: %w", item.Kind(), err)
		}
		envelopes = append(envelopes, itemEnvelope{Type: item.Kind(), Body: body})
	}
	return json.Marshal(envelopes)
}

// UnmarshalItems decodes content items, mapping unrecognized type tags to
// Unknown rather than failing.
func UnmarshalItems(data []byte) ([]ContentItem, error) {
	var envelopes []itemEnvelope
	if err := json.Unmarshal(data, &envelopes); err != nil {
		return nil, fmt.Errorf("unmarshal content items: %w", err)
	}

	items := make([]ContentItem, 0, len(envelopes))
	for _, env := range envelopes {
		item, err := decodeItem(env)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func decodeItem(env itemEnvelope) (ContentItem, error) {
	var target ContentItem
	switch env.Type {
	case KindUserText:
		target = &UserText{}
	case KindAssistantText:
		target = &AssistantText{}
	case KindToolCall:
		target = &ToolCall{}
	case KindToolResult:
		target = &ToolResult{}
	case KindThinking:
		target = &Thinking{}
	case KindSystemNote:
		target = &SystemNote{}
	case KindImage:
		target = &Image{}
	default:
		return Unknown{Type: string(env.Type), Raw: env.Body}, nil
	}

	if err := json.Unmarshal(env.Body, target); err != nil {
		return nil, fmt.Errorf("unmarshal %s item: %w", env.Type, err)
	}

	switch v := target.(type) {
	case *UserText:
		return *v, nil
	case *AssistantText:
		return *v, nil
	case *ToolCall:
		return *v, nil
	case *ToolResult:
		return *v, nil
	case *Thinking:
		return *v, nil
	case *SystemNote:
		return *v, nil
	case *Image:
		return *v, nil
	}
	return Unknown{Type: string(env.Type), Raw: env.Body}, nil
}

// TextOf extracts the human-readable text from an item, or "" for items
// that have none (images, unknown payloads).
func TextOf(item ContentItem) string {
	switch v := item.(type) {
	case UserText:
		return v.Text
	case AssistantText:
		return v.Text
	case Thinking:
		return v.Text
	case SystemNote:
		return v.Text
	case ToolResult:
		for _, d := range v.Data {
			if d.Type == "text" {
				return d.Text
			}
		}
		return ""
	case ToolCall, Image, Unknown:
		return ""
	}
	return ""
}
