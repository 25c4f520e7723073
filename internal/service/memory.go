package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	mbotel "github.com/Strob0t/memorybridge/internal/adapter/otel"
	"github.com/Strob0t/memorybridge/internal/chunker"
	"github.com/Strob0t/memorybridge/internal/config"
	"github.com/Strob0t/memorybridge/internal/domain"
	"github.com/Strob0t/memorybridge/internal/domain/memory"
	"github.com/Strob0t/memorybridge/internal/port/broadcast"
	"github.com/Strob0t/memorybridge/internal/port/memorygateway"
	"github.com/Strob0t/memorybridge/internal/port/messagequeue"
	"github.com/Strob0t/memorybridge/internal/resilience"
)

// conflictRetryDelay is the pause before re-reading an entity that a
// concurrent caller created first.
const conflictRetryDelay = 50 * time.Millisecond

// GatewaySource returns the gateway to use for a workspace.
type GatewaySource interface {
	ForWorkspace(ctx context.Context, workspaceID string) (memorygateway.Gateway, error)
}

type staticGateway struct{ gw memorygateway.Gateway }

func (s staticGateway) ForWorkspace(context.Context, string) (memorygateway.Gateway, error) {
	return s.gw, nil
}

// MemoryService orchestrates the hosted graph-memory gateway: it upserts
// remote users and sessions, ingests chat turns and business data, and
// assembles context blocks from concurrent graph searches.
//
// Two failure conventions coexist on purpose. AddMessages and
// AddMemoryAndGetContext report any failure as ok=false, SearchMemories
// reports it as an empty result. AddBusinessDataToGraph, EnsureUser,
// EnsureSession and GetSessionContext return errors.
type MemoryService struct {
	gateways    GatewaySource
	settings    atomic.Pointer[config.Memory]
	queue       messagequeue.Queue // nil disables memory events
	broadcaster broadcast.Broadcaster
	metrics     *mbotel.Metrics
}

// NewMemoryService creates a MemoryService that sends every call to gw.
func NewMemoryService(gw memorygateway.Gateway, cfg config.Memory) *MemoryService {
	s := &MemoryService{gateways: staticGateway{gw: gw}}
	s.settings.Store(&cfg)
	return s
}

// SetGatewaySource replaces the single gateway with a per-workspace source.
func (s *MemoryService) SetGatewaySource(src GatewaySource) { s.gateways = src }

// SetQueue enables publishing of memory events.
func (s *MemoryService) SetQueue(q messagequeue.Queue) { s.queue = q }

// SetBroadcaster streams memory events to connected clients.
func (s *MemoryService) SetBroadcaster(b broadcast.Broadcaster) { s.broadcaster = b }

// SetMetrics attaches metric instruments.
func (s *MemoryService) SetMetrics(m *mbotel.Metrics) { s.metrics = m }

// UpdateSettings swaps the memory settings, e.g. after a config reload.
func (s *MemoryService) UpdateSettings(cfg config.Memory) { s.settings.Store(&cfg) }

// MaxDataSize returns the current business-data ceiling.
func (s *MemoryService) MaxDataSize() int {
	return s.settings.Load().EffectiveMaxDataSize()
}

// DefaultLimit returns the configured search limit used when callers omit one.
func (s *MemoryService) DefaultLimit() int {
	if n := s.settings.Load().DefaultLimit; n > 0 {
		return n
	}
	return 10
}

func (s *MemoryService) gateway(ctx context.Context, user memory.UserMemory) (memorygateway.Gateway, error) {
	if err := user.Validate(); err != nil {
		return nil, err
	}
	gw, err := s.gateways.ForWorkspace(ctx, user.WorkspaceID)
	if err != nil {
		return nil, fmt.Errorf("resolve gateway for workspace %s: %w", user.WorkspaceID, err)
	}
	return gw, nil
}

func isConflict(err error) bool { return errors.Is(err, domain.ErrConflict) }

// EnsureUser makes sure the remote user exists and carries the current
// profile. An existing user is updated unconditionally; a missing one is
// created. If a concurrent caller creates the user first, the lookup is
// repeated once and the user is updated instead.
func (s *MemoryService) EnsureUser(ctx context.Context, user memory.UserMemory) (*memory.RemoteUser, error) {
	gw, err := s.gateway(ctx, user)
	if err != nil {
		return nil, err
	}
	return s.ensureUser(ctx, gw, user)
}

func (s *MemoryService) ensureUser(ctx context.Context, gw memorygateway.Gateway, user memory.UserMemory) (*memory.RemoteUser, error) {
	req := memorygateway.UserRequest{
		UserID:    memory.RemoteUserID(user),
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}

	var out *memory.RemoteUser
	err := resilience.Retry(ctx, 1, conflictRetryDelay, isConflict, func(ctx context.Context) error {
		_, err := gw.GetUser(ctx, req.UserID)
		switch {
		case err == nil:
			out, err = gw.UpdateUser(ctx, req)
			return err
		case errors.Is(err, domain.ErrNotFound):
			out, err = gw.AddUser(ctx, req)
			return err
		default:
			return err
		}
	})
	if err != nil {
		return nil, fmt.Errorf("ensure user %s: %w", req.UserID, err)
	}
	return out, nil
}

// EnsureSession makes sure the session exists, creating it for user when
// missing. Session ids are global on the gateway side, so the lookup uses
// the session id alone.
func (s *MemoryService) EnsureSession(ctx context.Context, user memory.UserMemory, sessionID string) (*memory.RemoteSession, error) {
	gw, err := s.gateway(ctx, user)
	if err != nil {
		return nil, err
	}
	return s.ensureSession(ctx, gw, user, sessionID)
}

func (s *MemoryService) ensureSession(ctx context.Context, gw memorygateway.Gateway, user memory.UserMemory, sessionID string) (*memory.RemoteSession, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session_id is required", domain.ErrValidation)
	}

	var out *memory.RemoteSession
	err := resilience.Retry(ctx, 1, conflictRetryDelay, isConflict, func(ctx context.Context) error {
		var err error
		out, err = gw.GetSession(ctx, sessionID)
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		out, err = gw.AddSession(ctx, memorygateway.SessionRequest{
			SessionID: sessionID,
			UserID:    memory.RemoteUserID(user),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ensure session %s: %w", sessionID, err)
	}
	return out, nil
}

// adapt converts msgs and reports dropped ones.
func (s *MemoryService) adapt(ctx context.Context, sessionID string, msgs []memory.ChatMessage) []memory.RemoteMessage {
	adapted, dropped := memory.AdaptMessages(msgs)
	for _, i := range dropped {
		slog.WarnContext(ctx, "dropping non-textual message",
			"session_id", sessionID, "index", i, "message_type", msgs[i].Type)
	}
	s.metrics.Dropped(ctx, len(dropped))
	return adapted
}

// AddMessages writes a batch of chat messages to a session. It returns
// ok=false when no message is textual (no remote write is made) and when
// anything fails; failures are logged, never returned.
func (s *MemoryService) AddMessages(ctx context.Context, user memory.UserMemory, sessionID string, msgs []memory.ChatMessage) (*memory.AddResult, bool) {
	ctx, span := mbotel.StartMemorySpan(ctx, "add_messages", user.WorkspaceID, memory.RemoteUserID(user))
	defer span.End()

	res, err := s.addMessages(ctx, user, sessionID, msgs)
	if err != nil {
		slog.ErrorContext(ctx, "add messages failed", "session_id", sessionID, "error", err)
		span.RecordError(err)
		s.metrics.GatewayError(ctx, "add_messages")
		return nil, false
	}
	return res, res != nil
}

func (s *MemoryService) addMessages(ctx context.Context, user memory.UserMemory, sessionID string, msgs []memory.ChatMessage) (*memory.AddResult, error) {
	gw, err := s.gateway(ctx, user)
	if err != nil {
		return nil, err
	}
	if _, err := s.ensureUser(ctx, gw, user); err != nil {
		return nil, err
	}

	adapted := s.adapt(ctx, sessionID, msgs)
	if len(adapted) == 0 {
		return nil, nil
	}

	res, err := gw.AddMessages(ctx, sessionID, adapted)
	if err != nil {
		return nil, err
	}
	s.publishMessagesAdded(ctx, user, sessionID, len(adapted), len(msgs)-len(adapted))
	return res, nil
}

// AddMemoryAndGetContext runs one conversational turn: optionally writes
// the messages (collect) and optionally searches the user's graph for
// context (inject). ok=false means no context, whatever the cause: no
// textual messages, injection disabled, nothing found, or a failure.
func (s *MemoryService) AddMemoryAndGetContext(
	ctx context.Context,
	user memory.UserMemory,
	sessionID string,
	msgs []memory.ChatMessage,
	collect, inject bool,
	limit int,
) (string, bool) {
	ctx, span := mbotel.StartMemorySpan(ctx, "add_and_get_context", user.WorkspaceID, memory.RemoteUserID(user))
	defer span.End()

	block, ok, err := s.addMemoryAndGetContext(ctx, user, sessionID, msgs, collect, inject, limit)
	if err != nil {
		slog.ErrorContext(ctx, "add memory and get context failed", "session_id", sessionID, "error", err)
		span.RecordError(err)
		s.metrics.GatewayError(ctx, "add_and_get_context")
		return "", false
	}
	if inject {
		s.metrics.ContextResult(ctx, ok)
	}
	return block, ok
}

func (s *MemoryService) addMemoryAndGetContext(
	ctx context.Context,
	user memory.UserMemory,
	sessionID string,
	msgs []memory.ChatMessage,
	collect, inject bool,
	limit int,
) (string, bool, error) {
	gw, err := s.gateway(ctx, user)
	if err != nil {
		return "", false, err
	}
	if _, err := s.ensureUser(ctx, gw, user); err != nil {
		return "", false, err
	}

	adapted := s.adapt(ctx, sessionID, msgs)
	if len(adapted) == 0 {
		return "", false, nil
	}
	query := memory.TruncateQuery(memory.DeriveQuery(adapted))

	if collect {
		if _, err := gw.AddMessages(ctx, sessionID, adapted); err != nil {
			return "", false, fmt.Errorf("add messages: %w", err)
		}
		s.publishMessagesAdded(ctx, user, sessionID, len(adapted), len(msgs)-len(adapted))
	}
	if !inject {
		return "", false, nil
	}

	return s.searchContext(ctx, gw, memory.RemoteUserID(user), query, limit)
}

// searchContext searches edges and nodes concurrently with the default
// reranker and formats the context block. Both searches must succeed.
func (s *MemoryService) searchContext(ctx context.Context, gw memorygateway.Gateway, remoteUserID, query string, limit int) (string, bool, error) {
	var edges, nodes *memory.GraphSearchResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		edges, err = s.search(gctx, gw, remoteUserID, query, memory.ScopeEdges, memory.DefaultReranker, limit)
		return err
	})
	g.Go(func() error {
		var err error
		nodes, err = s.search(gctx, gw, remoteUserID, query, memory.ScopeNodes, memory.DefaultReranker, limit)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", false, err
	}

	block, ok := memory.FormatContextBlock(edges.Edges, nodes.Nodes)
	return block, ok, nil
}

func (s *MemoryService) search(
	ctx context.Context,
	gw memorygateway.Gateway,
	remoteUserID, query string,
	scope memory.Scope,
	reranker memory.Reranker,
	limit int,
) (*memory.GraphSearchResult, error) {
	ctx, span := mbotel.StartSearchSpan(ctx, string(scope), string(reranker), limit)
	start := time.Now()

	res, err := gw.SearchGraph(ctx, memorygateway.SearchRequest{
		UserID:   remoteUserID,
		Query:    query,
		Scope:    scope,
		Limit:    limit,
		Reranker: reranker,
	})
	s.metrics.SearchTook(ctx, string(scope), time.Since(start))
	mbotel.EndSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", scope, err)
	}
	if res == nil {
		res = &memory.GraphSearchResult{}
	}
	return res, nil
}

// SearchMemories runs a single-scope search. Any failure yields an empty
// result, never nil slices and never an error.
func (s *MemoryService) SearchMemories(
	ctx context.Context,
	user memory.UserMemory,
	query string,
	scope memory.Scope,
	reranker memory.Reranker,
	maxResults int,
) memory.SearchResult {
	ctx, span := mbotel.StartMemorySpan(ctx, "search", user.WorkspaceID, memory.RemoteUserID(user))
	defer span.End()

	if reranker == "" {
		reranker = memory.Reranker(s.settings.Load().Reranker)
	}

	gw, err := s.gateway(ctx, user)
	if err == nil {
		var res *memory.GraphSearchResult
		res, err = s.search(ctx, gw, memory.RemoteUserID(user), memory.TruncateQuery(query), scope, reranker, maxResults)
		if err == nil {
			return memory.SearchResultFromGraph(res)
		}
	}

	slog.ErrorContext(ctx, "search memories failed", "scope", scope, "error", err)
	span.RecordError(err)
	s.metrics.GatewayError(ctx, "search")
	return memory.EmptySearchResult()
}

// AddBusinessDataToGraph ingests unstructured data into the user's graph.
// Data above the maximum size is handled per strategy: fail returns
// domain.ErrPayloadTooLarge before any remote call, truncate ingests the
// first MaxDataSize characters, split ingests sentence-packed chunks one after
// another.
func (s *MemoryService) AddBusinessDataToGraph(
	ctx context.Context,
	user memory.UserMemory,
	data string,
	dataType memory.DataType,
	strategy memory.OverflowStrategy,
) (memory.IngestOutcome, error) {
	ctx, span := mbotel.StartMemorySpan(ctx, "add_business_data", user.WorkspaceID, memory.RemoteUserID(user))
	out, err := s.addBusinessData(ctx, user, data, dataType, strategy)
	mbotel.EndSpan(span, err)
	return out, err
}

func (s *MemoryService) addBusinessData(
	ctx context.Context,
	user memory.UserMemory,
	data string,
	dataType memory.DataType,
	strategy memory.OverflowStrategy,
) (memory.IngestOutcome, error) {
	maxSize := s.MaxDataSize()
	size := memory.Length(data)
	oversized := size > maxSize
	if oversized && strategy == memory.OverflowFail {
		return memory.IngestOutcome{}, fmt.Errorf("%w: %d > %d characters", domain.ErrPayloadTooLarge, size, maxSize)
	}
	if dataType == "" {
		dataType = memory.DataTypeText
	}

	gw, err := s.gateway(ctx, user)
	if err != nil {
		return memory.IngestOutcome{}, err
	}
	if _, err := s.ensureUser(ctx, gw, user); err != nil {
		return memory.IngestOutcome{}, err
	}

	remoteID := memory.RemoteUserID(user)
	ingest := func(chunk string) (*memory.IngestResult, error) {
		res, err := gw.AddGraphData(ctx, memorygateway.GraphDataRequest{UserID: remoteID, Data: chunk, Type: dataType})
		if err != nil {
			return nil, err
		}
		if res == nil {
			res = &memory.IngestResult{}
		}
		return res, nil
	}

	if !oversized || strategy != memory.OverflowSplit {
		payload := data
		if oversized {
			payload = memory.Truncate(data, maxSize)
			slog.InfoContext(ctx, "truncating business data", "size", size, "max", maxSize)
		}
		res, err := ingest(payload)
		if err != nil {
			return memory.IngestOutcome{}, fmt.Errorf("add graph data: %w", err)
		}
		s.metrics.Chunks(ctx, 1)
		s.publishGraphIngested(ctx, user, dataType, strategy, size, memory.Length(payload), 1)
		return memory.IngestOutcome{Single: res}, nil
	}

	chunks := chunker.SplitIntoChunks(data, maxSize)
	results := make([]memory.IngestResult, 0, len(chunks))
	ingested := 0
	for i, chunk := range chunks {
		res, err := ingest(chunk)
		if err != nil {
			return memory.IngestOutcome{}, fmt.Errorf("add graph data chunk %d/%d: %w", i+1, len(chunks), err)
		}
		results = append(results, *res)
		ingested += memory.Length(chunk)
	}
	s.metrics.Chunks(ctx, len(chunks))
	s.publishGraphIngested(ctx, user, dataType, strategy, size, ingested, len(chunks))
	return memory.IngestOutcome{Chunks: results}, nil
}

// GetSessionContext builds a context block from a session's recent
// messages without writing anything. Unlike AddMemoryAndGetContext it
// returns gateway errors; ok=false means the session yielded no context.
func (s *MemoryService) GetSessionContext(ctx context.Context, user memory.UserMemory, sessionID string, limit int) (string, bool, error) {
	ctx, span := mbotel.StartMemorySpan(ctx, "get_session_context", user.WorkspaceID, memory.RemoteUserID(user))

	block, ok, err := s.getSessionContext(ctx, user, sessionID, limit)
	mbotel.EndSpan(span, err)
	if err == nil {
		s.metrics.ContextResult(ctx, ok)
	}
	return block, ok, err
}

func (s *MemoryService) getSessionContext(ctx context.Context, user memory.UserMemory, sessionID string, limit int) (string, bool, error) {
	gw, err := s.gateway(ctx, user)
	if err != nil {
		return "", false, err
	}
	if _, err := s.ensureUser(ctx, gw, user); err != nil {
		return "", false, err
	}
	if _, err := s.ensureSession(ctx, gw, user, sessionID); err != nil {
		return "", false, err
	}

	mem, err := gw.GetMemory(ctx, sessionID, limit)
	if err != nil {
		return "", false, fmt.Errorf("get memory of session %s: %w", sessionID, err)
	}
	if mem == nil || len(mem.Messages) == 0 {
		return "", false, nil
	}

	query := memory.TruncateQuery(memory.DeriveQuery(mem.Messages))
	if query == "" {
		return "", false, nil
	}
	return s.searchContext(ctx, gw, memory.RemoteUserID(user), query, limit)
}
