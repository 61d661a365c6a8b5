// Package api exposes the conversation engine over HTTP for convoked.
// Turn output streams to the client as NDJSON, one event per line.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/macrae/convoke/internal/chat"
	"github.com/macrae/convoke/internal/engine"
	"github.com/macrae/convoke/internal/store"
)

// TurnRunner runs one conversation turn. *engine.Loop satisfies this.
type TurnRunner interface {
	Run(ctx context.Context, conversationID, userText string, instructions []chat.Instruction) <-chan engine.Event
}

// Server handles HTTP API requests for convoked
type Server struct {
	store    store.Store
	loop     TurnRunner
	provider string
	model    string
	log      *slog.Logger
}

// New creates a new API server
func New(st store.Store, loop TurnRunner, provider, model string, log *slog.Logger) *Server {
	return &Server{
		store:    st,
		loop:     loop,
		provider: provider,
		model:    model,
		log:      log,
	}
}

// RegisterRoutes registers all API routes on the given mux
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)

	mux.HandleFunc("POST /api/v1/conversations", s.handleCreateConversation)
	mux.HandleFunc("GET /api/v1/conversations/{id}/messages", s.handleListMessages)
	mux.HandleFunc("POST /api/v1/conversations/{id}/messages", s.handleSendMessage)

	mux.HandleFunc("GET /api/v1/threads/{id}/usage", s.handleUsage)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": "0.1.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Conversation is the wire form of a conversation.
type Conversation struct {
	ID              string `json:"id"`
	Project         string `json:"project"`
	Provider        string `json:"provider"`
	Model           string `json:"model"`
	CurrentThreadID string `json:"current_thread_id"`
}

type createConversationRequest struct {
	Project  string `json:"project"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Provider == "" {
		req.Provider = s.provider
	}
	if req.Model == "" {
		req.Model = s.model
	}

	conv := chat.Conversation{
		ID:              chat.NewID(),
		Project:         req.Project,
		Provider:        req.Provider,
		Model:           req.Model,
		CurrentThreadID: chat.NewID(),
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.store.CreateConversation(r.Context(), conv); err != nil {
		s.log.Error("create conversation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "create conversation failed")
		return
	}
	if err := s.store.CreateThread(r.Context(), chat.Thread{
		ID:             conv.CurrentThreadID,
		ConversationID: conv.ID,
	}); err != nil {
		s.log.Error("create thread failed", "error", err)
		writeError(w, http.StatusInternalServerError, "create thread failed")
		return
	}

	writeJSON(w, http.StatusCreated, Conversation{
		ID:              conv.ID,
		Project:         conv.Project,
		Provider:        conv.Provider,
		Model:           conv.Model,
		CurrentThreadID: conv.CurrentThreadID,
	})
}

// Message is the wire form of a persisted message. Items carries the
// content items in their tagged-union encoding.
type Message struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	Role           string          `json:"role"`
	Items          json.RawMessage `json:"items"`
	CreatedAt      time.Time       `json:"created_at"`
}

func toWireMessage(m chat.Message) (Message, error) {
	items, err := chat.MarshalItems(m.Items)
	if err != nil {
		return Message{}, err
	}
	return Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           string(m.Role),
		Items:          items,
		CreatedAt:      m.CreatedAt,
	}, nil
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.FindConversation(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	msgs, err := s.store.LoadMessages(r.Context(), id)
	if err != nil {
		s.log.Error("load messages failed", "conversation_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "load messages failed")
		return
	}

	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		wm, err := toWireMessage(m)
		if err != nil {
			s.log.Error("encode message failed", "message_id", m.ID, "error", err)
			continue
		}
		out = append(out, wm)
	}
	writeJSON(w, http.StatusOK, out)
}

// StreamEvent is one NDJSON line of a turn stream.
type StreamEvent struct {
	Type    string   `json:"type"` // "message" or "error"
	Message *Message `json:"message,omitempty"`
	Error   string   `json:"error,omitempty"`
}

type sendMessageRequest struct {
	Text         string             `json:"text"`
	Instructions []chat.Instruction `json:"instructions,omitempty"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.FindConversation(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)

	for ev := range s.loop.Run(r.Context(), id, req.Text, req.Instructions) {
		line := StreamEvent{}
		if ev.Err != nil {
			line.Type = "error"
			line.Error = ev.Err.Error()
		} else {
			wm, err := toWireMessage(*ev.Message)
			if err != nil {
				s.log.Error("encode stream message failed", "error", err)
				continue
			}
			line.Type = "message"
			line.Message = &wm
		}
		if err := enc.Encode(line); err != nil {
			// Client went away. Returning cancels the request
			// context, so the loop stops at its next suspension
			// point. Everything persisted before then is durable.
			s.log.Debug("stream write failed", "error", err)
			return
		}
		flusher.Flush()
	}
}

// Usage is the wire form of a thread's usage summary.
type Usage struct {
	Turns               int   `json:"turns"`
	InputTokens         int64 `json:"input_tokens"`
	OutputTokens        int64 `json:"output_tokens"`
	ThinkingTokens      int64 `json:"thinking_tokens"`
	CacheCreationTokens int64 `json:"cache_creation_tokens"`
	CacheReadTokens     int64 `json:"cache_read_tokens"`
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	summary, err := s.store.UsageSummary(r.Context(), id)
	if err != nil {
		s.log.Error("usage summary failed", "thread_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "usage summary failed")
		return
	}
	writeJSON(w, http.StatusOK, Usage{
		Turns:               summary.Turns,
		InputTokens:         summary.InputTokens,
		OutputTokens:        summary.OutputTokens,
		ThinkingTokens:      summary.ThinkingTokens,
		CacheCreationTokens: summary.CacheCreationTokens,
		CacheReadTokens:     summary.CacheReadTokens,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
