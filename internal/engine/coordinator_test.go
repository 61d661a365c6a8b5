package engine

import (
	"testing"
)

func TestResultText(t *testing.T) {
	tests := []struct {
		name   string
		result any
		want   string
	}{
		{
			name:   "plain string passes through",
			result: "already text",
			want:   "already text",
		},
		{
			name: "first text item in array wins",
			result: []any{
				map[string]any{"type": "image", "data": "aGVhdnk="},
				map[string]any{"type": "text", "text": "the useful part"},
				map[string]any{"type": "text", "text": "second text"},
			},
			want: "the useful part",
		},
		{
			name:   "text field in object",
			result: map[string]any{"text": "from object", "extra": 1},
			want:   "from object",
		},
		{
			name:   "object without text falls back to raw JSON",
			result: map[string]any{"count": 3},
			want:   `{"count":3}`,
		},
		{
			name:   "array without text items falls back to raw JSON",
			result: []any{1, 2},
			want:   `[1,2]`,
		},
		{
			name:   "scalar falls back to raw JSON",
			result: 42,
			want:   "42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resultText(tt.result); got != tt.want {
				t.Errorf("resultText() = %q, want %q", got, tt.want)
			}
		})
	}
}
