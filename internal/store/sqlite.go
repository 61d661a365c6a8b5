package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/macrae/convoke/internal/chat"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore is the SQLite-backed Store. All public methods are safe
// for concurrent use; SQLite serializes writes.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a store at the given database path.
// The schema is created automatically on first use. Pass ":memory:" for
// an ephemeral store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id                TEXT PRIMARY KEY,
		project           TEXT NOT NULL,
		provider          TEXT NOT NULL,
		model             TEXT NOT NULL,
		current_thread_id TEXT NOT NULL,
		created_at        TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS threads (
		id                 TEXT PRIMARY KEY,
		conversation_id    TEXT NOT NULL REFERENCES conversations(id),
		original_thread_id TEXT,
		last_turn          INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS messages (
		seq             INTEGER PRIMARY KEY AUTOINCREMENT,
		id              TEXT NOT NULL UNIQUE,
		conversation_id TEXT NOT NULL REFERENCES conversations(id),
		role            TEXT NOT NULL,
		items           TEXT NOT NULL,
		instructions    TEXT NOT NULL,
		created_at      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq);
	CREATE TABLE IF NOT EXISTS usage_records (
		thread_id             TEXT NOT NULL,
		turn_number           INTEGER NOT NULL,
		model                 TEXT NOT NULL,
		input_tokens          INTEGER NOT NULL,
		output_tokens         INTEGER NOT NULL,
		thinking_tokens       INTEGER NOT NULL,
		cache_creation_tokens INTEGER NOT NULL,
		cache_read_tokens     INTEGER NOT NULL,
		created_at            TEXT NOT NULL,
		PRIMARY KEY (thread_id, turn_number)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateConversation persists a new conversation.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv chat.Conversation) error {
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, project, provider, model, current_thread_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		conv.ID, conv.Project, conv.Provider, conv.Model, conv.CurrentThreadID,
		conv.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

// FindConversation returns the conversation or ErrNotFound.
func (s *SQLiteStore) FindConversation(ctx context.Context, id string) (*chat.Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project, provider, model, current_thread_id, created_at
		 FROM conversations WHERE id = ?`, id)

	var conv chat.Conversation
	var createdAt string
	err := row.Scan(&conv.ID, &conv.Project, &conv.Provider, &conv.Model, &conv.CurrentThreadID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	conv.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &conv, nil
}

// CreateThread persists a new thread.
func (s *SQLiteStore) CreateThread(ctx context.Context, thread chat.Thread) error {
	var original any
	if thread.OriginalThreadID != "" {
		original = thread.OriginalThreadID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO threads (id, conversation_id, original_thread_id, last_turn)
		 VALUES (?, ?, ?, ?)`,
		thread.ID, thread.ConversationID, original, thread.LastTurnNumber,
	)
	if err != nil {
		return fmt.Errorf("insert thread: %w", err)
	}
	return nil
}

// FindThread returns the thread or ErrNotFound.
func (s *SQLiteStore) FindThread(ctx context.Context, id string) (*chat.Thread, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, conversation_id, COALESCE(original_thread_id, ''), last_turn
		 FROM threads WHERE id = ?`, id)

	var thread chat.Thread
	err := row.Scan(&thread.ID, &thread.ConversationID, &thread.OriginalThreadID, &thread.LastTurnNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("thread %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query thread: %w", err)
	}
	return &thread, nil
}

// IncrementTurn atomically bumps the thread's turn counter. The single
// UPDATE...RETURNING statement is the atomicity guarantee: two callers
// can never read the same value.
func (s *SQLiteStore) IncrementTurn(ctx context.Context, threadID string) (int, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE threads SET last_turn = last_turn + 1 WHERE id = ? RETURNING last_turn`,
		threadID)

	var turn int
	err := row.Scan(&turn)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("thread %s: %w", threadID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("increment turn: %w", err)
	}
	return turn, nil
}

// AppendMessage persists one message at the end of the conversation's
// history.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg chat.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	items, err := chat.MarshalItems(msg.Items)
	if err != nil {
		return fmt.Errorf("encode message items: %w", err)
	}
	instructions, err := marshalInstructions(msg.Instructions)
	if err != nil {
		return fmt.Errorf("encode message instructions: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, items, instructions, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, string(msg.Role), string(items), string(instructions),
		msg.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// LoadMessages returns all messages of a conversation in insertion order.
func (s *SQLiteStore) LoadMessages(ctx context.Context, conversationID string) ([]chat.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, items, instructions, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY seq`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []chat.Message
	for rows.Next() {
		var msg chat.Message
		var role, items, instructions, createdAt string
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &items, &instructions, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Role = chat.Role(role)
		msg.Items, err = chat.UnmarshalItems([]byte(items))
		if err != nil {
			return nil, fmt.Errorf("decode message %s items: %w", msg.ID, err)
		}
		msg.Instructions, err = unmarshalInstructions([]byte(instructions))
		if err != nil {
			return nil, fmt.Errorf("decode message %s instructions: %w", msg.ID, err)
		}
		msg.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// SaveUsage persists the per-turn usage summary row. The composite
// primary key rejects a second record for the same turn.
func (s *SQLiteStore) SaveUsage(ctx context.Context, rec chat.UsageRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_records
			(thread_id, turn_number, model, input_tokens, output_tokens,
			 thinking_tokens, cache_creation_tokens, cache_read_tokens, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ThreadID, rec.TurnNumber, rec.Model,
		rec.Usage.InputTokens, rec.Usage.OutputTokens,
		rec.Usage.ThinkingTokens, rec.Usage.CacheCreationTokens, rec.Usage.CacheReadTokens,
		rec.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}
	return nil
}

// UsageSummary returns aggregated token totals for one thread.
func (s *SQLiteStore) UsageSummary(ctx context.Context, threadID string) (*UsageSummary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(input_tokens), 0),
		        COALESCE(SUM(output_tokens), 0),
		        COALESCE(SUM(thinking_tokens), 0),
		        COALESCE(SUM(cache_creation_tokens), 0),
		        COALESCE(SUM(cache_read_tokens), 0)
		 FROM usage_records WHERE thread_id = ?`,
		threadID)

	var sum UsageSummary
	err := row.Scan(&sum.Turns, &sum.InputTokens, &sum.OutputTokens,
		&sum.ThinkingTokens, &sum.CacheCreationTokens, &sum.CacheReadTokens)
	if err != nil {
		return nil, fmt.Errorf("query usage summary: %w", err)
	}
	return &sum, nil
}
