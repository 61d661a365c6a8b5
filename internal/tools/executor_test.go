package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/macrae/convoke/internal/chat"
)

func TestExecutor_Execute(t *testing.T) {
	tests := []struct {
		name      string
		setupFunc func(r *Registry)
		toolName  string
		args      map[string]any
		wantErr   bool
		errMsg    string
	}{
		{
			name: "execute successful tool",
			setupFunc: func(r *Registry) {
				r.Register(&mockTool{
					name: "echo",
					executeFunc: func(ctx context.Context, args map[string]any) (any, error) {
						return map[string]string{"echoed": args["message"].(string)}, nil
					},
				})
			},
			toolName: "echo",
			args:     map[string]any{"message": "hello"},
			wantErr:  false,
		},
		{
			name: "tool not found",
			setupFunc: func(r *Registry) {
				r.Register(&mockTool{name: "echo"})
			},
			toolName: "nonexistent",
			args:     map[string]any{},
			wantErr:  true,
			errMsg:   "failed to get tool",
		},
		{
			name: "tool execution error",
			setupFunc: func(r *Registry) {
				r.Register(&mockTool{
					name: "failing",
					executeFunc: func(ctx context.Context, args map[string]any) (any, error) {
						return nil, errors.New("execution failed")
					},
				})
			},
			toolName: "failing",
			args:     map[string]any{},
			wantErr:  true,
			errMsg:   "failed to execute tool",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewRegistry()
			if tt.setupFunc != nil {
				tt.setupFunc(registry)
			}
			executor := NewExecutor(registry)

			_, err := executor.Execute(context.Background(), tt.toolName, tt.args)

			if (err != nil) != tt.wantErr {
				t.Errorf("Execute() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Execute() error = %v, want error containing %q", err, tt.errMsg)
			}
		})
	}
}

func call(id, name, input string) chat.ToolCall {
	return chat.ToolCall{ID: id, Name: name, Input: json.RawMessage(input)}
}

func TestExecutor_ExecuteBatch(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&mockTool{
		name: "echo",
		executeFunc: func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]string{"echoed": args["message"].(string)}, nil
		},
	})
	registry.Register(&mockTool{
		name: "failing",
		executeFunc: func(ctx context.Context, args map[string]any) (any, error) {
			return nil, errors.New("boom")
		},
	})
	executor := NewExecutor(registry)

	t.Run("partial success returns no batch error", func(t *testing.T) {
		outcomes, err := executor.ExecuteBatch(context.Background(), []chat.ToolCall{
			call("call-1", "echo", `{"message":"hello"}`),
			call("call-2", "failing", `{}`),
		})
		if err != nil {
			t.Fatalf("ExecuteBatch() error = %v, want nil on partial success", err)
		}
		if len(outcomes) != 2 {
			t.Fatalf("ExecuteBatch() returned %d outcomes, want 2", len(outcomes))
		}
		if outcomes[0].Err != nil {
			t.Errorf("outcomes[0].Err = %v, want nil", outcomes[0].Err)
		}
		if outcomes[0].Call.ID != "call-1" {
			t.Errorf("outcomes[0].Call.ID = %s, want call-1", outcomes[0].Call.ID)
		}
		if outcomes[1].Err == nil {
			t.Error("outcomes[1].Err = nil, want error")
		}
	})

	t.Run("all failed returns ErrAllToolsFailed with outcomes", func(t *testing.T) {
		outcomes, err := executor.ExecuteBatch(context.Background(), []chat.ToolCall{
			call("call-1", "failing", `{}`),
			call("call-2", "missing", `{}`),
		})
		if !errors.Is(err, ErrAllToolsFailed) {
			t.Fatalf("ExecuteBatch() error = %v, want ErrAllToolsFailed", err)
		}
		if len(outcomes) != 2 {
			t.Fatalf("ExecuteBatch() returned %d outcomes, want 2", len(outcomes))
		}
		for i, o := range outcomes {
			if o.Err == nil {
				t.Errorf("outcomes[%d].Err = nil, want error", i)
			}
		}
	})

	t.Run("empty batch", func(t *testing.T) {
		outcomes, err := executor.ExecuteBatch(context.Background(), nil)
		if err != nil {
			t.Fatalf("ExecuteBatch() error = %v", err)
		}
		if len(outcomes) != 0 {
			t.Errorf("ExecuteBatch() returned %d outcomes, want 0", len(outcomes))
		}
	})

	t.Run("malformed arguments fail that call only", func(t *testing.T) {
		outcomes, err := executor.ExecuteBatch(context.Background(), []chat.ToolCall{
			call("call-1", "echo", `{not json`),
			call("call-2", "echo", `{"message":"ok"}`),
		})
		if err != nil {
			t.Fatalf("ExecuteBatch() error = %v, want nil", err)
		}
		if outcomes[0].Err == nil {
			t.Error("outcomes[0].Err = nil, want decode error")
		}
		if outcomes[1].Err != nil {
			t.Errorf("outcomes[1].Err = %v, want nil", outcomes[1].Err)
		}
	})

	t.Run("empty input decodes to empty args", func(t *testing.T) {
		registry.Register(&mockTool{
			name: "noargs",
			executeFunc: func(ctx context.Context, args map[string]any) (any, error) {
				if args == nil {
					return nil, errors.New("nil args")
				}
				return "ok", nil
			},
		})
		outcomes, err := executor.ExecuteBatch(context.Background(), []chat.ToolCall{
			{ID: "call-1", Name: "noargs"},
		})
		if err != nil {
			t.Fatalf("ExecuteBatch() error = %v", err)
		}
		if outcomes[0].Err != nil {
			t.Errorf("outcomes[0].Err = %v, want nil", outcomes[0].Err)
		}
	})
}

func TestExecutor_ReturnDirect(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&mockTool{
		name:   "direct",
		direct: true,
		executeFunc: func(ctx context.Context, args map[string]any) (any, error) {
			return "handed straight back", nil
		},
	})
	registry.Register(&mockTool{name: "normal"})
	registry.Register(&mockTool{
		name:   "direct_failing",
		direct: true,
		executeFunc: func(ctx context.Context, args map[string]any) (any, error) {
			return nil, errors.New("boom")
		},
	})
	executor := NewExecutor(registry)

	outcomes, err := executor.ExecuteBatch(context.Background(), []chat.ToolCall{
		call("call-1", "direct", `{}`),
		call("call-2", "normal", `{}`),
		call("call-3", "direct_failing", `{}`),
	})
	if err != nil {
		t.Fatalf("ExecuteBatch() error = %v", err)
	}
	if !outcomes[0].ReturnDirect {
		t.Error("outcomes[0].ReturnDirect = false, want true")
	}
	if outcomes[1].ReturnDirect {
		t.Error("outcomes[1].ReturnDirect = true, want false")
	}
	if outcomes[2].ReturnDirect {
		t.Error("outcomes[2].ReturnDirect = true for failed call, want false")
	}
}

func TestExecutor_ContextCancellation(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&mockTool{
		name: "slow",
		executeFunc: func(ctx context.Context, args map[string]any) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})

	executor := NewExecutor(registry)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := executor.Execute(ctx, "slow", map[string]any{})
	if err == nil {
		t.Error("Execute() with cancelled context should return error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
}
