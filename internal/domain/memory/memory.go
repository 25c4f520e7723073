// Package memory provides the domain model for conversational memory backed
// by a hosted knowledge-graph service: principals, chat messages, graph
// search results and overflow policy for oversized business data.
package memory

import (
	"fmt"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/Strob0t/memorybridge/internal/domain"
)

// MaxQueryLength is the hard limit the remote graph search accepts for a query.
const MaxQueryLength = 255

// DefaultMaxDataSize is the default ceiling for a single business-data payload.
const DefaultMaxDataSize = 10000

// UserMemory identifies a principal for memory operations. WorkspaceID and
// UserID form the identity; the remaining fields are mutable profile data.
type UserMemory struct {
	UserID      string `json:"user_id"`
	WorkspaceID string `json:"workspace_id"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
}

// Validate checks that the identity fields are present.
func (u *UserMemory) Validate() error {
	if u.WorkspaceID == "" {
		return fmt.Errorf("%w: workspace_id is required", domain.ErrValidation)
	}
	if u.UserID == "" {
		return fmt.Errorf("%w: user_id is required", domain.ErrValidation)
	}
	return nil
}

// RemoteUser is the gateway's representation of a user.
type RemoteUser struct {
	UUID      string         `json:"uuid,omitempty"`
	UserID    string         `json:"user_id"`
	Email     string         `json:"email,omitempty"`
	FirstName string         `json:"first_name,omitempty"`
	LastName  string         `json:"last_name,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at,omitempty"`
	UpdatedAt time.Time      `json:"updated_at,omitempty"`
}

// RemoteSession is the gateway's representation of a chat session.
type RemoteSession struct {
	UUID      string    `json:"uuid,omitempty"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// AddResult is the gateway's response to a message batch write.
type AddResult struct {
	Context string `json:"context,omitempty"`
}

// SessionMemory holds the recent messages of a session as stored remotely.
type SessionMemory struct {
	Context  string          `json:"context,omitempty"`
	Messages []RemoteMessage `json:"messages"`
}

// IngestResult is the gateway's response to a single graph ingestion call.
type IngestResult struct {
	UUID      string    `json:"uuid,omitempty"`
	Content   string    `json:"content,omitempty"`
	Processed bool      `json:"processed"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// IngestOutcome is the result of AddBusinessDataToGraph. Exactly one of
// Single or Chunks is set: Single for one ingestion call, Chunks when the
// data was split and ingested chunk by chunk.
type IngestOutcome struct {
	Single *IngestResult  `json:"single,omitempty"`
	Chunks []IngestResult `json:"chunks,omitempty"`
}

// IsSplit reports whether the data was ingested as multiple chunks.
func (o IngestOutcome) IsSplit() bool {
	return o.Chunks != nil
}

// Scope selects which part of the graph a search targets.
type Scope string

const (
	ScopeNodes Scope = "nodes" // entities
	ScopeEdges Scope = "edges" // facts / relationships
)

// ValidScopes lists all valid search scopes.
var ValidScopes = []Scope{ScopeNodes, ScopeEdges}

// Reranker is the remote result-reranking strategy.
type Reranker string

const (
	RerankerCrossEncoder    Reranker = "cross_encoder"
	RerankerRRF             Reranker = "rrf"
	RerankerMMR             Reranker = "mmr"
	RerankerNodeDistance    Reranker = "node_distance"
	RerankerEpisodeMentions Reranker = "episode_mentions"
)

// DefaultReranker is used whenever a caller does not pick one.
const DefaultReranker = RerankerCrossEncoder

// ValidRerankers lists all rerankers the gateway accepts.
var ValidRerankers = []Reranker{
	RerankerCrossEncoder, RerankerRRF, RerankerMMR, RerankerNodeDistance, RerankerEpisodeMentions,
}

// OverflowStrategy governs what happens when business data exceeds the
// maximum payload size.
type OverflowStrategy string

const (
	OverflowTruncate OverflowStrategy = "truncate"
	OverflowSplit    OverflowStrategy = "split"
	OverflowFail     OverflowStrategy = "fail"
)

// ValidOverflowStrategies lists all overflow strategies.
var ValidOverflowStrategies = []OverflowStrategy{OverflowTruncate, OverflowSplit, OverflowFail}

// DataType is the kind of unstructured data ingested into the graph.
type DataType string

const (
	DataTypeText    DataType = "text"
	DataTypeJSON    DataType = "json"
	DataTypeMessage DataType = "message"
)

// ValidDataTypes lists all graph data types.
var ValidDataTypes = []DataType{DataTypeText, DataTypeJSON, DataTypeMessage}

// ParseScope validates s as a Scope.
func ParseScope(s string) (Scope, error) {
	sc := Scope(s)
	if !slices.Contains(ValidScopes, sc) {
		return "", fmt.Errorf("%w: invalid scope %q: must be nodes or edges", domain.ErrValidation, s)
	}
	return sc, nil
}

// ParseOverflowStrategy validates s as an OverflowStrategy.
func ParseOverflowStrategy(s string) (OverflowStrategy, error) {
	st := OverflowStrategy(s)
	if !slices.Contains(ValidOverflowStrategies, st) {
		return "", fmt.Errorf("%w: invalid overflow strategy %q: must be truncate, split, or fail", domain.ErrValidation, s)
	}
	return st, nil
}

// TruncateQuery cuts q to at most MaxQueryLength characters.
func TruncateQuery(q string) string {
	return Truncate(q, MaxQueryLength)
}

// Length is the size of s in characters (runes). All memory size limits are
// expressed in this unit.
func Length(s string) int {
	return utf8.RuneCountInString(s)
}

// Truncate returns the first limit characters of data. It is the "truncate"
// overflow strategy.
func Truncate(data string, limit int) string {
	if limit <= 0 {
		return ""
	}
	n := 0
	for i := range data {
		if n == limit {
			return data[:i]
		}
		n++
	}
	return data
}
