package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "memorybridge"

// Metrics holds all memorybridge metric instruments. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	ContextHits     metric.Int64Counter
	ContextMisses   metric.Int64Counter
	DroppedMessages metric.Int64Counter
	IngestedChunks  metric.Int64Counter
	GatewayErrors   metric.Int64Counter
	SearchDuration  metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.ContextHits, err = meter.Int64Counter("memorybridge.context.hits",
		metric.WithDescription("Context requests that produced a context block"))
	if err != nil {
		return nil, err
	}

	m.ContextMisses, err = meter.Int64Counter("memorybridge.context.misses",
		metric.WithDescription("Context requests that produced no context"))
	if err != nil {
		return nil, err
	}

	m.DroppedMessages, err = meter.Int64Counter("memorybridge.messages.dropped",
		metric.WithDescription("Chat messages dropped for non-textual content"))
	if err != nil {
		return nil, err
	}

	m.IngestedChunks, err = meter.Int64Counter("memorybridge.graph.chunks",
		metric.WithDescription("Graph ingestion calls, one per chunk"))
	if err != nil {
		return nil, err
	}

	m.GatewayErrors, err = meter.Int64Counter("memorybridge.gateway.errors",
		metric.WithDescription("Gateway failures swallowed by soft-failing operations"))
	if err != nil {
		return nil, err
	}

	m.SearchDuration, err = meter.Float64Histogram("memorybridge.search.duration_seconds",
		metric.WithDescription("Graph search duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// ContextResult counts a context hit or miss.
func (m *Metrics) ContextResult(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.ContextHits.Add(ctx, 1)
		return
	}
	m.ContextMisses.Add(ctx, 1)
}

// Dropped counts n dropped messages.
func (m *Metrics) Dropped(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.DroppedMessages.Add(ctx, int64(n))
}

// Chunks counts n graph ingestion calls.
func (m *Metrics) Chunks(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.IngestedChunks.Add(ctx, int64(n))
}

// GatewayError counts a swallowed gateway failure for op.
func (m *Metrics) GatewayError(ctx context.Context, op string) {
	if m == nil {
		return
	}
	m.GatewayErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

// SearchTook records the duration of a search in scope.
func (m *Metrics) SearchTook(ctx context.Context, scope string, d time.Duration) {
	if m == nil {
		return
	}
	m.SearchDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("scope", scope)))
}
