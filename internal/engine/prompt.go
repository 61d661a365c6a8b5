package engine

import (
	"encoding/json"

	"github.com/macrae/convoke/internal/chat"
	"github.com/macrae/convoke/internal/llm"
)

// buildPrompt converts persisted history into the provider-neutral
// prompt. It is derived purely from storage, so rebuilding it at any
// iteration boundary yields the same sequence as the last persisted
// state.
func buildPrompt(msgs []chat.Message) []llm.Message {
	var prompt []llm.Message
	for _, msg := range msgs {
		prompt = append(prompt, messageToPrompt(msg)...)
	}
	return prompt
}

func messageToPrompt(msg chat.Message) []llm.Message {
	var out []llm.Message

	var text string
	var calls []llm.ToolCall

	for _, item := range msg.Items {
		switch v := item.(type) {
		case chat.UserText:
			text += v.Text
		case chat.AssistantText:
			text += v.Text
		case chat.ToolCall:
			calls = append(calls, llm.ToolCall{
				ID:   v.ID,
				Name: v.Name,
				Args: decodeCallArgs(v.Input),
			})
		case chat.Thinking:
			// Thinking replays as its own entry so providers that
			// require signed blocks can echo them verbatim.
			out = append(out, llm.Message{
				Role:              string(chat.RoleAssistant),
				Thinking:          v.Text,
				ThinkingSignature: v.Signature,
			})
		case chat.ToolResult:
			out = append(out, llm.Message{
				Role:         string(chat.RoleUser),
				Content:      chat.TextOf(v),
				ToolResultID: v.ToolUseID,
				ToolName:     v.ToolName,
				IsError:      v.IsError,
			})
		case chat.SystemNote, chat.Image, chat.Unknown:
			// Engine annotations and opaque payloads stay out of the
			// prompt.
		}
	}

	if text != "" || len(calls) > 0 {
		out = append(out, llm.Message{
			Role:      string(msg.Role),
			Content:   text,
			ToolCalls: calls,
		})
	}
	return out
}

func decodeCallArgs(input json.RawMessage) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal(input, &args); err != nil || args == nil {
		return map[string]any{}
	}
	return args
}
