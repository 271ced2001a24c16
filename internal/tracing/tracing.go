// Package tracing instruments each generation call with an OpenTelemetry
// span following the gen_ai semantic conventions, so a sibila-backed
// service reports the same shape of telemetry regardless of which
// provider actually served the call.
package tracing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/jndiogo/sibila-go")

type requestIDKey struct{}

// WithRequestID attaches a caller-supplied correlation id to ctx, read back
// by StartGenerate and attached to the span it opens. The pipeline stamps
// one uuid per Run/RunAsync call so the adapter's span can be correlated
// back to the originating call.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// Span wraps one generation call's span.
type Span struct {
	span      trace.Span
	startTime time.Time
}

// StartGenerate opens a span for one provider dispatch, recording the
// request-side parameters a gen_ai backend expects.
func StartGenerate(ctx context.Context, provider, modelID string, maxTokens int, temperature, topP *float64) (context.Context, *Span) {
	spanCtx, otelSpan := tracer.Start(ctx, "sibila.generate")
	otelSpan.SetAttributes(
		attribute.String("gen_ai.operation.name", "generate_content"),
		attribute.String("gen_ai.provider.name", provider),
		attribute.String("gen_ai.request.model", modelID),
	)
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		otelSpan.SetAttributes(attribute.String("sibila.request_id", id))
	}
	if maxTokens > 0 {
		otelSpan.SetAttributes(attribute.Int("gen_ai.request.max_tokens", maxTokens))
	}
	if temperature != nil {
		otelSpan.SetAttributes(attribute.Float64("gen_ai.request.temperature", *temperature))
	}
	if topP != nil {
		otelSpan.SetAttributes(attribute.Float64("gen_ai.request.top_p", *topP))
	}
	return spanCtx, &Span{span: otelSpan, startTime: time.Now()}
}

// End records the finish reason, token usage, and any terminal error, then
// closes the span.
func (s *Span) End(finishReason string, inputTokens, outputTokens int, err error) {
	s.span.SetAttributes(
		attribute.String("gen_ai.response.finish_reason", finishReason),
		attribute.Int("gen_ai.usage.input_tokens", inputTokens),
		attribute.Int("gen_ai.usage.output_tokens", outputTokens),
		attribute.Float64("sibila.duration_seconds", time.Since(s.startTime).Seconds()),
	)
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
	s.span.End()
}
