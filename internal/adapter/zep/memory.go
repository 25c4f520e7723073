package zep

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Strob0t/memorybridge/internal/domain/memory"
	"github.com/Strob0t/memorybridge/internal/port/memorygateway"
)

// --- Users ---

// GetUser returns the remote user or an error wrapping domain.ErrNotFound.
func (c *Client) GetUser(ctx context.Context, userID string) (*memory.RemoteUser, error) {
	var u memory.RemoteUser
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/users/{id}", call{pathID: userID, result: &u, idempotent: true}); err != nil {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	return &u, nil
}

// AddUser creates a remote user.
func (c *Client) AddUser(ctx context.Context, req memorygateway.UserRequest) (*memory.RemoteUser, error) {
	var u memory.RemoteUser
	if err := c.do(ctx, http.MethodPost, apiPrefix+"/users", call{body: req, result: &u}); err != nil {
		return nil, fmt.Errorf("add user %s: %w", req.UserID, err)
	}
	return &u, nil
}

// UpdateUser overwrites the profile fields of a remote user.
func (c *Client) UpdateUser(ctx context.Context, req memorygateway.UserRequest) (*memory.RemoteUser, error) {
	var u memory.RemoteUser
	body := map[string]string{
		"email":      req.Email,
		"first_name": req.FirstName,
		"last_name":  req.LastName,
	}
	if err := c.do(ctx, http.MethodPatch, apiPrefix+"/users/{id}", call{pathID: req.UserID, body: body, result: &u}); err != nil {
		return nil, fmt.Errorf("update user %s: %w", req.UserID, err)
	}
	return &u, nil
}

// --- Sessions ---

// GetSession returns the remote session or an error wrapping domain.ErrNotFound.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*memory.RemoteSession, error) {
	var s memory.RemoteSession
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/sessions/{id}", call{pathID: sessionID, result: &s, idempotent: true}); err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	return &s, nil
}

// AddSession creates a remote session.
func (c *Client) AddSession(ctx context.Context, req memorygateway.SessionRequest) (*memory.RemoteSession, error) {
	var s memory.RemoteSession
	if err := c.do(ctx, http.MethodPost, apiPrefix+"/sessions", call{body: req, result: &s}); err != nil {
		return nil, fmt.Errorf("add session %s: %w", req.SessionID, err)
	}
	return &s, nil
}

// --- Messages ---

type addMemoryRequest struct {
	Messages []memory.RemoteMessage `json:"messages"`
}

// AddMessages appends msgs to the session in one batch.
func (c *Client) AddMessages(ctx context.Context, sessionID string, msgs []memory.RemoteMessage) (*memory.AddResult, error) {
	var res memory.AddResult
	cl := call{pathID: sessionID, body: addMemoryRequest{Messages: msgs}, result: &res}
	if err := c.do(ctx, http.MethodPost, apiPrefix+"/sessions/{id}/memory", cl); err != nil {
		return nil, fmt.Errorf("add messages to session %s: %w", sessionID, err)
	}
	return &res, nil
}

// GetMemory returns the last lastN messages of a session.
func (c *Client) GetMemory(ctx context.Context, sessionID string, lastN int) (*memory.SessionMemory, error) {
	var res memory.SessionMemory
	cl := call{pathID: sessionID, result: &res, idempotent: true}
	if lastN > 0 {
		cl.query = map[string]string{"lastn": strconv.Itoa(lastN)}
	}
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/sessions/{id}/memory", cl); err != nil {
		return nil, fmt.Errorf("get memory of session %s: %w", sessionID, err)
	}
	return &res, nil
}

// --- Graph ---

// SearchGraph runs a single-scope graph search. Searches have no side
// effects and are retried like reads.
func (c *Client) SearchGraph(ctx context.Context, req memorygateway.SearchRequest) (*memory.GraphSearchResult, error) {
	var res memory.GraphSearchResult
	if err := c.do(ctx, http.MethodPost, apiPrefix+"/graph/search", call{body: req, result: &res, idempotent: true}); err != nil {
		return nil, fmt.Errorf("search graph (%s): %w", req.Scope, err)
	}
	return &res, nil
}

// AddGraphData ingests one unit of unstructured data.
func (c *Client) AddGraphData(ctx context.Context, req memorygateway.GraphDataRequest) (*memory.IngestResult, error) {
	var res memory.IngestResult
	if err := c.do(ctx, http.MethodPost, apiPrefix+"/graph", call{body: req, result: &res}); err != nil {
		return nil, fmt.Errorf("add graph data: %w", err)
	}
	return &res, nil
}

type entityTypesRequest struct {
	EntityTypes []memorygateway.EntityType `json:"entity_types"`
}

// SetEntityTypes replaces the project ontology. The call is a full
// overwrite and therefore safe to retry.
func (c *Client) SetEntityTypes(ctx context.Context, types []memorygateway.EntityType) error {
	cl := call{body: entityTypesRequest{EntityTypes: types}, idempotent: true}
	if err := c.do(ctx, http.MethodPut, apiPrefix+"/entity-types", cl); err != nil {
		return fmt.Errorf("set entity types: %w", err)
	}
	return nil
}
