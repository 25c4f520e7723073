package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "memorybridge"

// StartMemorySpan starts a span for one orchestration operation.
func StartMemorySpan(ctx context.Context, op, workspaceID, remoteUserID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "memory."+op,
		trace.WithAttributes(
			attribute.String("memory.workspace_id", workspaceID),
			attribute.String("memory.remote_user_id", remoteUserID),
		),
	)
}

// StartSearchSpan starts a span for a single-scope graph search.
func StartSearchSpan(ctx context.Context, scope, reranker string, limit int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "memory.search."+scope,
		trace.WithAttributes(
			attribute.String("memory.scope", scope),
			attribute.String("memory.reranker", reranker),
			attribute.Int("memory.limit", limit),
		),
	)
}

// StartToolSpan starts a span for a toolkit invocation.
func StartToolSpan(ctx context.Context, tool string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "tool",
		trace.WithAttributes(attribute.String("tool.name", tool)),
	)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
