// Package gatewaytest provides an in-memory memorygateway.Gateway for tests
// of packages that sit above the memory service.
package gatewaytest

import (
	"context"
	"fmt"
	"sync"

	"github.com/Strob0t/memorybridge/internal/domain"
	"github.com/Strob0t/memorybridge/internal/domain/memory"
	"github.com/Strob0t/memorybridge/internal/port/memorygateway"
)

var _ memorygateway.Gateway = (*Fake)(nil)

// Fake stores users, sessions and messages in maps. SearchGraph answers
// edge searches with Edges and node searches with Nodes. A non-nil Err
// fails every call.
type Fake struct {
	mu       sync.Mutex
	users    map[string]memory.RemoteUser
	sessions map[string]memory.RemoteSession
	messages map[string][]memory.RemoteMessage

	Edges       []memory.GraphEdge
	Nodes       []memory.GraphNode
	Ingested    []memorygateway.GraphDataRequest
	Searches    []memorygateway.SearchRequest
	EntityTypes []memorygateway.EntityType
	Err         error
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		users:    make(map[string]memory.RemoteUser),
		sessions: make(map[string]memory.RemoteSession),
		messages: make(map[string][]memory.RemoteMessage),
	}
}

// Messages returns a copy of the messages stored for sessionID.
func (f *Fake) Messages(sessionID string) []memory.RemoteMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]memory.RemoteMessage(nil), f.messages[sessionID]...)
}

// IngestedCount returns the number of AddGraphData calls.
func (f *Fake) IngestedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Ingested)
}

func (f *Fake) GetUser(_ context.Context, userID string) (*memory.RemoteUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	u, ok := f.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	return &u, nil
}

func (f *Fake) AddUser(_ context.Context, req memorygateway.UserRequest) (*memory.RemoteUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	if _, ok := f.users[req.UserID]; ok {
		return nil, fmt.Errorf("user %s: %w", req.UserID, domain.ErrConflict)
	}
	u := memory.RemoteUser{UserID: req.UserID, Email: req.Email, FirstName: req.FirstName, LastName: req.LastName}
	f.users[req.UserID] = u
	return &u, nil
}

func (f *Fake) UpdateUser(_ context.Context, req memorygateway.UserRequest) (*memory.RemoteUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	if _, ok := f.users[req.UserID]; !ok {
		return nil, fmt.Errorf("user %s: %w", req.UserID, domain.ErrNotFound)
	}
	u := memory.RemoteUser{UserID: req.UserID, Email: req.Email, FirstName: req.FirstName, LastName: req.LastName}
	f.users[req.UserID] = u
	return &u, nil
}

func (f *Fake) GetSession(_ context.Context, sessionID string) (*memory.RemoteSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	s, ok := f.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}
	return &s, nil
}

func (f *Fake) AddSession(_ context.Context, req memorygateway.SessionRequest) (*memory.RemoteSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	if _, ok := f.sessions[req.SessionID]; ok {
		return nil, fmt.Errorf("session %s: %w", req.SessionID, domain.ErrConflict)
	}
	s := memory.RemoteSession{SessionID: req.SessionID, UserID: req.UserID}
	f.sessions[req.SessionID] = s
	return &s, nil
}

func (f *Fake) AddMessages(_ context.Context, sessionID string, msgs []memory.RemoteMessage) (*memory.AddResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	if _, ok := f.sessions[sessionID]; !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}
	f.messages[sessionID] = append(f.messages[sessionID], msgs...)
	return &memory.AddResult{}, nil
}

func (f *Fake) GetMemory(_ context.Context, sessionID string, lastN int) (*memory.SessionMemory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	if _, ok := f.sessions[sessionID]; !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}
	msgs := f.messages[sessionID]
	if lastN > 0 && len(msgs) > lastN {
		msgs = msgs[len(msgs)-lastN:]
	}
	return &memory.SessionMemory{Messages: append([]memory.RemoteMessage(nil), msgs...)}, nil
}

func (f *Fake) SearchGraph(_ context.Context, req memorygateway.SearchRequest) (*memory.GraphSearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Searches = append(f.Searches, req)
	if f.Err != nil {
		return nil, f.Err
	}
	if req.Scope == memory.ScopeEdges {
		return &memory.GraphSearchResult{Edges: limit(f.Edges, req.Limit)}, nil
	}
	return &memory.GraphSearchResult{Nodes: limit(f.Nodes, req.Limit)}, nil
}

func (f *Fake) AddGraphData(_ context.Context, req memorygateway.GraphDataRequest) (*memory.IngestResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	f.Ingested = append(f.Ingested, req)
	return &memory.IngestResult{Content: req.Data}, nil
}

func (f *Fake) SetEntityTypes(_ context.Context, types []memorygateway.EntityType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.EntityTypes = types
	return nil
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		items = items[:n]
	}
	return append([]T(nil), items...)
}
