package otelsetup

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Standard attribute keys for Brewva spans.
var (
	AttrAgentID         = attribute.Key("brewva.agent.id")
	AttrSessionID       = attribute.Key("brewva.session.id")
	AttrConversationKey = attribute.Key("brewva.conversation.key")
	AttrChannel         = attribute.Key("brewva.channel")
	AttrOperation       = attribute.Key("brewva.coordinator.operation")
	AttrFanoutCount     = attribute.Key("brewva.coordinator.fanout_count")
	AttrRound           = attribute.Key("brewva.coordinator.round")
)

// StartSpan is a convenience wrapper that starts an internal span with common attributes.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartServerSpan starts a span for an inbound webhook request.
func StartServerSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// StartClientSpan starts a span for an outbound call (Telegram send API, dispatch to a runtime).
func StartClientSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}
