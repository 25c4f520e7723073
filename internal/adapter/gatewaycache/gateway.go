// Package gatewaycache decorates a memory gateway with a short-lived cache
// of graph search responses.
package gatewaycache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Strob0t/memorybridge/internal/domain/memory"
	"github.com/Strob0t/memorybridge/internal/port/cache"
	"github.com/Strob0t/memorybridge/internal/port/memorygateway"
	"github.com/Strob0t/memorybridge/internal/port/messagequeue"
)

var _ memorygateway.Gateway = (*Gateway)(nil)

// Searches is the search cache shared by every wrapped gateway. Each entry
// records when it was written. An entry only counts as a hit when it is
// newer than both the last invalidation of its remote user and the start
// of this process, so a restarted instance never trusts shared entries it
// cannot vouch for. Invalidation times older than the TTL are pruned, since
// every entry they could reject has expired.
type Searches struct {
	cache cache.Cache
	ttl   time.Duration
	now   func() time.Time

	started time.Time

	mu          sync.Mutex
	invalidated map[string]time.Time
	lastPrune   time.Time
}

type entry struct {
	WrittenAt time.Time                `json:"written_at"`
	Result    *memory.GraphSearchResult `json:"result"`
}

// NewSearches creates a search cache storing responses in c for ttl.
func NewSearches(c cache.Cache, ttl time.Duration) *Searches {
	return newSearches(c, ttl, time.Now)
}

func newSearches(c cache.Cache, ttl time.Duration, now func() time.Time) *Searches {
	t := now()
	return &Searches{
		cache:       c,
		ttl:         ttl,
		now:         now,
		started:     t,
		invalidated: make(map[string]time.Time),
		lastPrune:   t,
	}
}

// Wrap returns next with SearchGraph served through the cache.
func (s *Searches) Wrap(next memorygateway.Gateway) *Gateway {
	return &Gateway{Gateway: next, searches: s}
}

// Invalidate drops the cached searches of a remote user.
func (s *Searches) Invalidate(remoteUserID string) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated[remoteUserID] = now
	if now.Sub(s.lastPrune) < s.ttl {
		return
	}
	for id, at := range s.invalidated {
		if now.Sub(at) > s.ttl {
			delete(s.invalidated, id)
		}
	}
	s.lastPrune = now
}

// Tracked returns the number of remote users with a live invalidation.
func (s *Searches) Tracked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.invalidated)
}

// HandleIngested is a messagequeue.Handler for memory.graph.ingested,
// invalidating searches cached before an ingestion made by another instance.
func (s *Searches) HandleIngested(_ context.Context, _ string, data []byte) error {
	var ev messagequeue.GraphIngestedPayload
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("decode graph ingested event: %w", err)
	}
	s.Invalidate(ev.RemoteUserID)
	return nil
}

// fresh reports whether an entry written at writtenAt may be served.
func (s *Searches) fresh(remoteUserID string, writtenAt time.Time) bool {
	if !writtenAt.After(s.started) {
		return false
	}
	s.mu.Lock()
	at, ok := s.invalidated[remoteUserID]
	s.mu.Unlock()
	return !ok || writtenAt.After(at)
}

func key(req memorygateway.SearchRequest) string {
	h := sha256.New()
	_ = json.NewEncoder(h).Encode(req)
	return "search:" + req.UserID + ":" + hex.EncodeToString(h.Sum(nil))
}

// Gateway caches SearchGraph results per request. Ingesting business data
// for a user invalidates that user's cached searches; other writes rely on
// the TTL.
type Gateway struct {
	memorygateway.Gateway
	searches *Searches
}

// SearchGraph serves from cache when possible. Cache errors never fail the
// search.
func (g *Gateway) SearchGraph(ctx context.Context, req memorygateway.SearchRequest) (*memory.GraphSearchResult, error) {
	s := g.searches
	k := key(req)

	if data, ok, err := s.cache.Get(ctx, k); err != nil {
		slog.WarnContext(ctx, "search cache get failed", "error", err)
	} else if ok {
		var e entry
		if err := json.Unmarshal(data, &e); err == nil && e.Result != nil && s.fresh(req.UserID, e.WrittenAt) {
			return e.Result, nil
		}
	}

	writtenAt := s.now()
	res, err := g.Gateway.SearchGraph(ctx, req)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(entry{WrittenAt: writtenAt, Result: res}); err == nil {
		if err := s.cache.Set(ctx, k, data, s.ttl); err != nil {
			slog.WarnContext(ctx, "search cache set failed", "error", err)
		}
	}
	return res, nil
}

// AddGraphData forwards the ingestion and invalidates the user's searches.
func (g *Gateway) AddGraphData(ctx context.Context, req memorygateway.GraphDataRequest) (*memory.IngestResult, error) {
	res, err := g.Gateway.AddGraphData(ctx, req)
	if err != nil {
		return nil, err
	}
	g.searches.Invalidate(req.UserID)
	return res, nil
}
