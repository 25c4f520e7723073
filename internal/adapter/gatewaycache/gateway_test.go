package gatewaycache_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/memorybridge/internal/adapter/gatewaycache"
	"github.com/Strob0t/memorybridge/internal/adapter/ristretto"
	"github.com/Strob0t/memorybridge/internal/domain/memory"
	"github.com/Strob0t/memorybridge/internal/port/memorygateway"
	"github.com/Strob0t/memorybridge/internal/port/messagequeue"
)

// countingGateway counts searches; other methods are unused here.
type countingGateway struct {
	memorygateway.Gateway
	searches int
	ingests  int
	err      error
}

func (c *countingGateway) SearchGraph(_ context.Context, req memorygateway.SearchRequest) (*memory.GraphSearchResult, error) {
	c.searches++
	if c.err != nil {
		return nil, c.err
	}
	return &memory.GraphSearchResult{Edges: []memory.GraphEdge{{UUID: "e1", Fact: "fact for " + req.Query}}}, nil
}

func (c *countingGateway) AddGraphData(_ context.Context, req memorygateway.GraphDataRequest) (*memory.IngestResult, error) {
	c.ingests++
	return &memory.IngestResult{Content: req.Data}, nil
}

// clock advances by a millisecond on every reading, or by Advance.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock { return &clock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newRistretto(t *testing.T) *ristretto.Cache {
	t.Helper()
	c, err := ristretto.New(1)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)
	return c
}

func newCached(t *testing.T, next memorygateway.Gateway) (*gatewaycache.Gateway, *ristretto.Cache) {
	t.Helper()
	c := newRistretto(t)
	return gatewaycache.NewSearchesWithClock(c, time.Minute, newClock().Now).Wrap(next), c
}

func TestSearchGraph_Cached(t *testing.T) {
	next := &countingGateway{}
	gw, c := newCached(t, next)
	ctx := context.Background()
	req := memorygateway.SearchRequest{UserID: "ws_u", Query: "q", Scope: memory.ScopeEdges, Limit: 10, Reranker: memory.RerankerRRF}

	first, err := gw.SearchGraph(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	c.Wait()
	second, err := gw.SearchGraph(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if next.searches != 1 {
		t.Fatalf("expected 1 remote search, got %d", next.searches)
	}
	if second.Edges[0].Fact != first.Edges[0].Fact {
		t.Fatalf("cached result differs: %+v vs %+v", second, first)
	}

	// Any request field changes the key.
	req.Scope = memory.ScopeNodes
	if _, err := gw.SearchGraph(ctx, req); err != nil {
		t.Fatal(err)
	}
	if next.searches != 2 {
		t.Fatalf("expected a distinct key per scope, got %d searches", next.searches)
	}
}

func TestSearchGraph_InvalidatedByIngest(t *testing.T) {
	next := &countingGateway{}
	gw, c := newCached(t, next)
	ctx := context.Background()
	req := memorygateway.SearchRequest{UserID: "ws_u", Query: "q", Scope: memory.ScopeEdges}

	_, _ = gw.SearchGraph(ctx, req)
	c.Wait()
	if _, err := gw.AddGraphData(ctx, memorygateway.GraphDataRequest{UserID: "ws_u", Data: "new"}); err != nil {
		t.Fatal(err)
	}
	_, _ = gw.SearchGraph(ctx, req)
	if next.searches != 2 {
		t.Fatalf("expected ingest to invalidate cached searches, got %d searches", next.searches)
	}
	if next.ingests != 1 {
		t.Fatal("expected ingest to be forwarded")
	}
}

func TestSearchGraph_ErrorsNotCached(t *testing.T) {
	next := &countingGateway{err: errors.New("502")}
	gw, c := newCached(t, next)
	ctx := context.Background()
	req := memorygateway.SearchRequest{UserID: "ws_u", Query: "q"}

	if _, err := gw.SearchGraph(ctx, req); err == nil {
		t.Fatal("expected error")
	}
	c.Wait()
	next.err = nil
	if _, err := gw.SearchGraph(ctx, req); err != nil {
		t.Fatal(err)
	}
	if next.searches != 2 {
		t.Fatalf("expected errors not to be cached, got %d searches", next.searches)
	}
}

func TestSearches_SharedAcrossGateways(t *testing.T) {
	c := newRistretto(t)
	searches := gatewaycache.NewSearchesWithClock(c, time.Minute, newClock().Now)

	first, second := &countingGateway{}, &countingGateway{}
	gwA, gwB := searches.Wrap(first), searches.Wrap(second)
	ctx := context.Background()
	req := memorygateway.SearchRequest{UserID: "ws_u", Query: "q"}

	if _, err := gwA.SearchGraph(ctx, req); err != nil {
		t.Fatal(err)
	}
	c.Wait()
	if _, err := gwB.SearchGraph(ctx, req); err != nil {
		t.Fatal(err)
	}
	if second.searches != 0 {
		t.Fatalf("expected the second gateway to hit the shared cache, got %d searches", second.searches)
	}
}

func TestSearches_HandleIngested(t *testing.T) {
	next := &countingGateway{}
	c := newRistretto(t)
	searches := gatewaycache.NewSearchesWithClock(c, time.Minute, newClock().Now)
	gw := searches.Wrap(next)
	ctx := context.Background()
	req := memorygateway.SearchRequest{UserID: "ws_u", Query: "q"}

	_, _ = gw.SearchGraph(ctx, req)
	c.Wait()

	ev, _ := json.Marshal(messagequeue.GraphIngestedPayload{EventID: "e1", RemoteUserID: "ws_u"})
	if err := searches.HandleIngested(ctx, messagequeue.SubjectGraphIngested, ev); err != nil {
		t.Fatal(err)
	}
	_, _ = gw.SearchGraph(ctx, req)
	if next.searches != 2 {
		t.Fatalf("expected the event to invalidate the user's searches, got %d searches", next.searches)
	}

	if err := searches.HandleIngested(ctx, messagequeue.SubjectGraphIngested, []byte("{")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestSearches_RestartedInstanceIgnoresOlderEntries(t *testing.T) {
	c := newRistretto(t)
	clk := newClock()
	ctx := context.Background()
	req := memorygateway.SearchRequest{UserID: "ws_u", Query: "q"}

	running := &countingGateway{}
	if _, err := gatewaycache.NewSearchesWithClock(c, time.Minute, clk.Now).Wrap(running).SearchGraph(ctx, req); err != nil {
		t.Fatal(err)
	}
	c.Wait()

	// A new instance sharing the cache cannot know about ingestions made
	// before it started, so it refetches and then serves its own entry.
	restarted := &countingGateway{}
	gw := gatewaycache.NewSearchesWithClock(c, time.Minute, clk.Now).Wrap(restarted)
	for range 2 {
		if _, err := gw.SearchGraph(ctx, req); err != nil {
			t.Fatal(err)
		}
		c.Wait()
	}
	if restarted.searches != 1 {
		t.Fatalf("expected one refetch after restart, got %d searches", restarted.searches)
	}
}

func TestSearches_InvalidationsPruned(t *testing.T) {
	clk := newClock()
	searches := gatewaycache.NewSearchesWithClock(newRistretto(t), time.Minute, clk.Now)

	for _, id := range []string{"ws_a", "ws_b", "ws_c"} {
		searches.Invalidate(id)
	}
	if got := searches.Tracked(); got != 3 {
		t.Fatalf("expected 3 tracked users, got %d", got)
	}

	clk.Advance(2 * time.Minute)
	searches.Invalidate("ws_d")
	if got := searches.Tracked(); got != 1 {
		t.Fatalf("expected expired invalidations to be pruned, %d tracked", got)
	}
}
