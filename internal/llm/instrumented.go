package llm

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/macrae/convoke/internal/llm"

// InstrumentedGateway wraps a StreamGateway with instrumentation.
// Tracks API calls, token usage, latency, and errors using OpenTelemetry metrics.
type InstrumentedGateway struct {
	gateway  StreamGateway
	logger   *slog.Logger
	provider string
	model    string

	// In-memory counters (atomic for thread safety, used for GetStats)
	totalCalls        atomic.Int64
	totalErrors       atomic.Int64
	totalInputTokens  atomic.Int64
	totalOutputTokens atomic.Int64

	// OTel metrics
	requestCounter     metric.Int64Counter
	errorCounter       metric.Int64Counter
	inputTokenCounter  metric.Int64Counter
	outputTokenCounter metric.Int64Counter
	latencyHistogram   metric.Float64Histogram
}

// NewInstrumentedGateway wraps a model gateway with instrumentation.
func NewInstrumentedGateway(gateway StreamGateway, logger *slog.Logger, provider, model string) *InstrumentedGateway {
	if logger == nil {
		logger = slog.Default()
	}

	meter := otel.Meter(meterName)

	// Create OTel metrics - log warnings on failure but continue.
	// Metrics will be nil if creation fails, handled in recording helpers.
	requestCounter, err := meter.Int64Counter("llm.requests",
		metric.WithDescription("Total number of LLM API requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		logger.Warn("failed to create llm.requests metric", "error", err)
	}

	errorCounter, err := meter.Int64Counter("llm.errors",
		metric.WithDescription("Total number of LLM API errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		logger.Warn("failed to create llm.errors metric", "error", err)
	}

	inputTokenCounter, err := meter.Int64Counter("llm.tokens.input",
		metric.WithDescription("Total input tokens consumed"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		logger.Warn("failed to create llm.tokens.input metric", "error", err)
	}

	outputTokenCounter, err := meter.Int64Counter("llm.tokens.output",
		metric.WithDescription("Total output tokens consumed"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		logger.Warn("failed to create llm.tokens.output metric", "error", err)
	}

	latencyHistogram, err := meter.Float64Histogram("llm.stream.duration",
		metric.WithDescription("LLM stream duration, first request to last chunk"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		logger.Warn("failed to create llm.stream.duration metric", "error", err)
	}

	return &InstrumentedGateway{
		gateway:            gateway,
		logger:             logger,
		provider:           provider,
		model:              model,
		requestCounter:     requestCounter,
		errorCounter:       errorCounter,
		inputTokenCounter:  inputTokenCounter,
		outputTokenCounter: outputTokenCounter,
		latencyHistogram:   latencyHistogram,
	}
}

// safeAddCounter safely adds to a counter, handling nil metrics.
func safeAddCounter(ctx context.Context, counter metric.Int64Counter, value int64, attrs ...attribute.KeyValue) {
	if counter != nil {
		counter.Add(ctx, value, metric.WithAttributes(attrs...))
	}
}

// safeRecordHistogram safely records to a histogram, handling nil metrics.
func safeRecordHistogram(ctx context.Context, hist metric.Float64Histogram, value float64, attrs ...attribute.KeyValue) {
	if hist != nil {
		hist.Record(ctx, value, metric.WithAttributes(attrs...))
	}
}

// Stream implements StreamGateway with instrumentation. Token counts are
// recorded when the terminal chunk's usage envelope passes through.
func (i *InstrumentedGateway) Stream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	start := time.Now()
	i.totalCalls.Add(1)

	attrs := []attribute.KeyValue{
		attribute.String("llm.provider", i.provider),
		attribute.String("llm.model", i.model),
		attribute.String("operation", "stream"),
	}

	safeAddCounter(ctx, i.requestCounter, 1, attrs...)

	inner, err := i.gateway.Stream(ctx, req)
	if err != nil {
		i.totalErrors.Add(1)
		safeAddCounter(ctx, i.errorCounter, 1, attrs...)
		safeRecordHistogram(ctx, i.latencyHistogram, float64(time.Since(start).Milliseconds()),
			append(attrs, attribute.Bool("error", true))...)
		i.logger.Error("llm_stream_error",
			"error", err,
			"provider", i.provider,
			"model", i.model,
		)
		return nil, err
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		streamFailed := false

		for chunk := range inner {
			if chunk.Usage != nil {
				i.totalInputTokens.Add(int64(chunk.Usage.InputTokens))
				i.totalOutputTokens.Add(int64(chunk.Usage.OutputTokens))
				safeAddCounter(ctx, i.inputTokenCounter, int64(chunk.Usage.InputTokens), attrs...)
				safeAddCounter(ctx, i.outputTokenCounter, int64(chunk.Usage.OutputTokens), attrs...)
			}
			if chunk.Err != nil {
				streamFailed = true
				i.totalErrors.Add(1)
				safeAddCounter(ctx, i.errorCounter, 1, attrs...)
				i.logger.Error("llm_stream_error",
					"error", chunk.Err,
					"provider", i.provider,
					"model", i.model,
					"duration_ms", time.Since(start).Milliseconds(),
				)
			}

			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}

		safeRecordHistogram(ctx, i.latencyHistogram, float64(time.Since(start).Milliseconds()),
			append(attrs, attribute.Bool("error", streamFailed))...)
	}()

	return out, nil
}

// Stats holds instrumentation statistics.
type Stats struct {
	TotalCalls        int64
	TotalErrors       int64
	TotalInputTokens  int64
	TotalOutputTokens int64
	TotalTokens       int64
}

// GetStats returns the current instrumentation statistics.
func (i *InstrumentedGateway) GetStats() Stats {
	input := i.totalInputTokens.Load()
	output := i.totalOutputTokens.Load()

	return Stats{
		TotalCalls:        i.totalCalls.Load(),
		TotalErrors:       i.totalErrors.Load(),
		TotalInputTokens:  input,
		TotalOutputTokens: output,
		TotalTokens:       input + output,
	}
}
