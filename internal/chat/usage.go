package chat

import "time"

// TokenUsage is one model call's token consumption. Input and output
// counts are always populated; the thinking and cache fields are
// provider extras and stay zero when a provider does not report them.
type TokenUsage struct {
	InputTokens         int `json:"input_tokens"`
	OutputTokens        int `json:"output_tokens"`
	ThinkingTokens      int `json:"thinking_tokens,omitempty"`
	CacheCreationTokens int `json:"cache_creation_tokens,omitempty"`
	CacheReadTokens     int `json:"cache_read_tokens,omitempty"`
}

// Add accumulates another usage envelope into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.ThinkingTokens += other.ThinkingTokens
	u.CacheCreationTokens += other.CacheCreationTokens
	u.CacheReadTokens += other.CacheReadTokens
}

// IsZero reports whether the turn consumed any tokens at all.
func (u TokenUsage) IsZero() bool {
	return u.InputTokens == 0 && u.OutputTokens == 0 &&
		u.ThinkingTokens == 0 && u.CacheCreationTokens == 0 && u.CacheReadTokens == 0
}

// UsageRecord is the per-turn usage summary row. Exactly one record
// exists per (ThreadID, TurnNumber) that consumed tokens.
type UsageRecord struct {
	ThreadID   string
	TurnNumber int
	Model      string
	Usage      TokenUsage
	CreatedAt  time.Time
}
