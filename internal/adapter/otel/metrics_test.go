package otel

import (
	"context"
	"testing"
	"time"
)

func TestNewMetrics(t *testing.T) {
	m, err := NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	ctx := context.Background()
	m.ContextResult(ctx, true)
	m.ContextResult(ctx, false)
	m.Dropped(ctx, 2)
	m.Chunks(ctx, 3)
	m.GatewayError(ctx, "search")
	m.SearchTook(ctx, "edges", 10*time.Millisecond)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.ContextResult(ctx, true)
	m.Dropped(ctx, 1)
	m.Chunks(ctx, 1)
	m.GatewayError(ctx, "x")
	m.SearchTook(ctx, "nodes", time.Second)
}
