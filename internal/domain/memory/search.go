package memory

import "time"

// GraphEdge is a fact (relationship) returned by a graph search scoped to edges.
type GraphEdge struct {
	UUID           string     `json:"uuid"`
	Name           string     `json:"name,omitempty"`
	Fact           string     `json:"fact"`
	Score          *float64   `json:"score,omitempty"`
	SourceNodeUUID string     `json:"source_node_uuid,omitempty"`
	TargetNodeUUID string     `json:"target_node_uuid,omitempty"`
	ValidAt        *time.Time `json:"valid_at,omitempty"`
	InvalidAt      *time.Time `json:"invalid_at,omitempty"`
}

// GraphNode is an entity returned by a graph search scoped to nodes.
type GraphNode struct {
	UUID       string         `json:"uuid"`
	Name       string         `json:"name"`
	Labels     []string       `json:"labels,omitempty"`
	Summary    string         `json:"summary,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Score      *float64       `json:"score,omitempty"`
}

// GraphSearchResult is the raw gateway response. Only the field matching
// the requested scope is normally populated.
type GraphSearchResult struct {
	Edges []GraphEdge `json:"edges,omitempty"`
	Nodes []GraphNode `json:"nodes,omitempty"`
}

// Fact is a relationship surfaced to callers.
type Fact struct {
	Fact       string  `json:"fact"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// Entity is a graph node surfaced to callers.
type Entity struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Summary    string         `json:"summary"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// defaultEntityType is used for nodes without labels.
const defaultEntityType = "entity"

// SearchResult merges facts and entities. Both slices are always non-nil.
type SearchResult struct {
	Facts    []Fact   `json:"facts"`
	Entities []Entity `json:"entities"`
}

// EmptySearchResult returns a result with empty, non-nil slices.
func EmptySearchResult() SearchResult {
	return SearchResult{Facts: []Fact{}, Entities: []Entity{}}
}

// IsEmpty reports whether the result has neither facts nor entities.
func (r SearchResult) IsEmpty() bool {
	return len(r.Facts) == 0 && len(r.Entities) == 0
}

// SearchResultFromGraph converts a raw gateway response. A missing score
// becomes confidence 0. Only the first label of a node is kept as its type.
func SearchResultFromGraph(res *GraphSearchResult) SearchResult {
	out := EmptySearchResult()
	if res == nil {
		return out
	}

	for i := range res.Edges {
		e := &res.Edges[i]
		var confidence float64
		if e.Score != nil {
			confidence = *e.Score
		}
		out.Facts = append(out.Facts, Fact{
			Fact:       e.Fact,
			Confidence: confidence,
			Source:     e.SourceNodeUUID,
		})
	}

	for i := range res.Nodes {
		n := &res.Nodes[i]
		typ := defaultEntityType
		if len(n.Labels) > 0 {
			typ = n.Labels[0]
		}
		out.Entities = append(out.Entities, Entity{
			ID:         n.UUID,
			Name:       n.Name,
			Type:       typ,
			Summary:    n.Summary,
			Attributes: n.Attributes,
		})
	}

	return out
}
