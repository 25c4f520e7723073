// Package memorygateway defines the port (interface) to the hosted
// graph-memory service.
package memorygateway

import (
	"context"

	"github.com/Strob0t/memorybridge/internal/domain/memory"
)

// Gateway is the port interface for the hosted graph-memory service.
//
// Implementations must report a missing user or session by wrapping
// domain.ErrNotFound, and a create call for an entity that already exists
// by wrapping domain.ErrConflict, so callers branch with errors.Is instead
// of inspecting error text.
type Gateway interface {
	// Users
	GetUser(ctx context.Context, userID string) (*memory.RemoteUser, error)
	AddUser(ctx context.Context, req UserRequest) (*memory.RemoteUser, error)
	UpdateUser(ctx context.Context, req UserRequest) (*memory.RemoteUser, error)

	// Sessions. Session ids are global, not namespaced by user.
	GetSession(ctx context.Context, sessionID string) (*memory.RemoteSession, error)
	AddSession(ctx context.Context, req SessionRequest) (*memory.RemoteSession, error)

	// Messages
	AddMessages(ctx context.Context, sessionID string, msgs []memory.RemoteMessage) (*memory.AddResult, error)
	GetMemory(ctx context.Context, sessionID string, lastN int) (*memory.SessionMemory, error)

	// Graph
	SearchGraph(ctx context.Context, req SearchRequest) (*memory.GraphSearchResult, error)
	AddGraphData(ctx context.Context, req GraphDataRequest) (*memory.IngestResult, error)
	SetEntityTypes(ctx context.Context, types []EntityType) error
}

// UserRequest creates or updates a remote user.
type UserRequest struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// SessionRequest creates a remote session owned by UserID.
type SessionRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

// SearchRequest is a single-scope graph search.
type SearchRequest struct {
	UserID   string          `json:"user_id"`
	Query    string          `json:"query"`
	Scope    memory.Scope    `json:"scope"`
	Limit    int             `json:"limit"`
	Reranker memory.Reranker `json:"reranker"`
}

// GraphDataRequest ingests unstructured data into a user's graph.
type GraphDataRequest struct {
	UserID string          `json:"user_id"`
	Data   string          `json:"data"`
	Type   memory.DataType `json:"type"`
}

// EntityType is a custom ontology entry.
type EntityType struct {
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description" yaml:"description"`
	Properties  []EntityProperty `json:"properties,omitempty" yaml:"properties"`
}

// EntityProperty is a typed attribute of a custom entity type.
type EntityProperty struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description" yaml:"description"`
}
