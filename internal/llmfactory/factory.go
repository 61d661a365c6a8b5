// Package llmfactory builds stream gateways from model configuration.
package llmfactory

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/macrae/convoke/internal/config"
	"github.com/macrae/convoke/internal/llm"
	"github.com/macrae/convoke/internal/llm/claude"
	"github.com/macrae/convoke/internal/llm/gemini"
)

// NewGateway creates a StreamGateway from a ModelConfig. It validates
// that the required API key environment variable is set before creating
// the provider client, and wraps the result with OTel instrumentation.
func NewGateway(ctx context.Context, mc config.ModelConfig, log *slog.Logger) (llm.StreamGateway, error) {
	gateway, err := newProviderGateway(ctx, mc)
	if err != nil {
		return nil, err
	}
	return llm.NewInstrumentedGateway(gateway, log, mc.Provider, mc.Model), nil
}

func newProviderGateway(ctx context.Context, mc config.ModelConfig) (llm.StreamGateway, error) {
	switch mc.Provider {
	case "claude":
		if os.Getenv("ANTHROPIC_API_KEY") == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set (required for provider %q)", mc.Provider)
		}
		var opts []claude.Option
		if mc.ThinkingBudget > 0 {
			opts = append(opts, claude.WithThinkingBudget(int64(mc.ThinkingBudget)))
		}
		return claude.NewClient(mc.Model, opts...)
	case "gemini":
		if os.Getenv("GEMINI_API_KEY") == "" && os.Getenv("GOOGLE_API_KEY") == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY or GOOGLE_API_KEY must be set (required for provider %q)", mc.Provider)
		}
		return gemini.NewClient(ctx, mc.Model)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q (supported: claude, gemini)", mc.Provider)
	}
}
