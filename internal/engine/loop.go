package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/macrae/convoke/internal/chat"
	"github.com/macrae/convoke/internal/llm"
	"github.com/macrae/convoke/internal/store"
)

// maxIterations caps model/tool round trips per turn. A model that
// keeps requesting tools stops here instead of looping forever.
const maxIterations = 10

// SystemPromptFunc builds the system prompt for a conversation.
type SystemPromptFunc func(conv *chat.Conversation) string

// Option configures optional Loop settings.
type Option func(*Loop)

// WithApprovalPolicy replaces the default auto-approve policy.
func WithApprovalPolicy(p ApprovalPolicy) Option {
	return func(l *Loop) { l.approval = p }
}

// WithSystemPrompt sets the system prompt builder.
func WithSystemPrompt(f SystemPromptFunc) Option {
	return func(l *Loop) { l.systemPrompt = f }
}

// WithLogger sets the loop's logger.
func WithLogger(log *slog.Logger) Option {
	return func(l *Loop) { l.log = log }
}

// Loop drives one conversation turn at a time: persist the user
// message, stream the model, execute requested tools, repeat until a
// terminal text response or the iteration cap. The caller must ensure
// at most one active turn per conversation.
type Loop struct {
	store        store.Store
	model        llm.StreamGateway
	coord        *coordinator
	toolDefs     []llm.ToolDefinition
	approval     ApprovalPolicy
	systemPrompt SystemPromptFunc
	log          *slog.Logger

	wg sync.WaitGroup // detached usage writes
}

// NewLoop creates a loop controller. Options are applied after defaults.
func NewLoop(st store.Store, model llm.StreamGateway, toolGateway ToolGateway, toolDefs []llm.ToolDefinition, opts ...Option) *Loop {
	l := &Loop{
		store:        st,
		model:        model,
		toolDefs:     toolDefs,
		approval:     AutoApprove{},
		systemPrompt: func(*chat.Conversation) string { return "" },
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.coord = &coordinator{gateway: toolGateway, log: l.log}
	return l
}

// Wait blocks until all detached usage writes have finished. Intended
// for shutdown and tests.
func (l *Loop) Wait() {
	l.wg.Wait()
}

// Run executes one turn for the given conversation and user text.
// Events arrive in order; each Message event was durably persisted
// before it was emitted. The channel closes when the turn ends, after
// at most one Error event.
func (l *Loop) Run(ctx context.Context, conversationID, userText string, instructions []chat.Instruction) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		if err := l.runTurn(ctx, out, conversationID, userText, instructions); err != nil {
			emit(ctx, out, Event{Err: err})
		}
	}()
	return out
}

func (l *Loop) runTurn(ctx context.Context, out chan<- Event, conversationID, userText string, instructions []chat.Instruction) error {
	conv, err := l.store.FindConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
		}
		return fmt.Errorf("load conversation: %w", err)
	}

	// The user's input is persisted before any model call so it is
	// never lost, even if everything after this fails.
	userMsg := newMessage(conv.ID, chat.RoleUser, []chat.ContentItem{chat.UserText{Text: userText}})
	userMsg.Instructions = instructions
	if err := l.store.AppendMessage(ctx, userMsg); err != nil {
		return fmt.Errorf("persist user message: %w", err)
	}

	systemPrompt := l.systemPrompt(conv)

	turn, err := l.store.IncrementTurn(ctx, conv.CurrentThreadID)
	if err != nil {
		return fmt.Errorf("increment turn: %w", err)
	}

	acc := &usageAccumulator{model: conv.Model}
	defer l.flushUsage(acc, conv.CurrentThreadID, turn)

	log := l.log.With("conversation_id", conv.ID, "thread_id", conv.CurrentThreadID, "turn", turn)

	for i := 0; i < maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		// History always comes from storage, never from in-memory
		// state, so a tool result appended mid-loop can neither be
		// lost nor duplicated.
		history, err := l.store.LoadMessages(ctx, conv.ID)
		if err != nil {
			return fmt.Errorf("load history: %w", err)
		}

		resp, err := l.streamIteration(ctx, out, conv, llm.ChatRequest{
			SystemPrompt: systemPrompt,
			Messages:     buildPrompt(history),
			Tools:        l.toolDefs,
		})
		if err != nil {
			return err
		}
		if resp == nil {
			return ErrNoResponse
		}
		acc.add(resp)

		if len(resp.ToolCalls) == 0 {
			// Terminal text. Blank responses end the turn without a
			// vacuous record.
			if text := strings.TrimSpace(resp.Text); text != "" {
				msg := newMessage(conv.ID, chat.RoleAssistant, []chat.ContentItem{chat.AssistantText{Text: resp.Text}})
				if err := l.persistAndEmit(ctx, out, msg); err != nil {
					return err
				}
			}
			log.Debug("turn complete", "iterations", i+1)
			return nil
		}

		calls := make([]chat.ToolCall, 0, len(resp.ToolCalls))
		items := make([]chat.ContentItem, 0, len(resp.ToolCalls)+1)
		if resp.Text != "" {
			items = append(items, chat.AssistantText{Text: resp.Text})
		}
		for _, tc := range resp.ToolCalls {
			input, err := json.Marshal(tc.Args)
			if err != nil {
				input = []byte("{}")
			}
			call := chat.ToolCall{ID: tc.ID, Name: tc.Name, Input: input}
			calls = append(calls, call)
			items = append(items, call)
		}

		if err := l.persistAndEmit(ctx, out, newMessage(conv.ID, chat.RoleAssistant, items)); err != nil {
			return err
		}

		decision := l.approval.Approve(ctx, calls)
		if !decision.Approved {
			return fmt.Errorf("%w: %s", ErrApprovalRejected, decision.Reason)
		}

		resultItems, returnDirect := l.coord.run(ctx, calls)
		if err := l.persistAndEmit(ctx, out, newMessage(conv.ID, chat.RoleUser, resultItems)); err != nil {
			return err
		}
		if returnDirect {
			log.Debug("turn complete via direct return", "iterations", i+1)
			return nil
		}
	}

	return fmt.Errorf("%w: %d iterations without a terminal response", ErrIterationBudget, maxIterations)
}

// streamIteration runs one model call, emitting thinking chunks as
// standalone persisted messages and aggregating the rest into a single
// response. A nil response means the stream produced nothing. The model
// call gets its own context so an early return unblocks the provider's
// send instead of leaving its goroutine parked on the channel.
func (l *Loop) streamIteration(ctx context.Context, out chan<- Event, conv *chat.Conversation, req llm.ChatRequest) (*llm.StreamChunk, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks, err := l.model.Stream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("model stream: %w", err)
	}

	agg := newAggregate()
	for chunk := range chunks {
		if chunk.Err != nil {
			return nil, fmt.Errorf("model stream: %w", chunk.Err)
		}
		if chunk.IsThinking() {
			// A thinking chunk is a complete signed unit: it is
			// persisted and emitted immediately, ahead of whatever the
			// iteration aggregates to.
			msg := newMessage(conv.ID, chat.RoleAssistant, []chat.ContentItem{
				chat.Thinking{Signature: chunk.ThinkingSignature(), Text: chunk.Text},
			})
			if err := l.persistAndEmit(ctx, out, msg); err != nil {
				return nil, err
			}
			if chunk.Usage != nil || chunk.Done {
				agg.add(llm.StreamChunk{Usage: chunk.Usage, Model: chunk.Model, Done: chunk.Done})
			}
			continue
		}
		agg.add(chunk)
	}

	return agg.response(), nil
}

func (l *Loop) persistAndEmit(ctx context.Context, out chan<- Event, msg chat.Message) error {
	if err := l.store.AppendMessage(ctx, msg); err != nil {
		return fmt.Errorf("persist message: %w", err)
	}
	if !emit(ctx, out, Event{Message: &msg}) {
		return ctx.Err()
	}
	return nil
}

func newMessage(conversationID string, role chat.Role, items []chat.ContentItem) chat.Message {
	return chat.Message{
		ID:             chat.NewID(),
		ConversationID: conversationID,
		Role:           role,
		Items:          items,
		CreatedAt:      time.Now().UTC(),
	}
}
