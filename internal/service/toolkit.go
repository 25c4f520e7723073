package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"

	"github.com/Strob0t/memorybridge/internal/domain"
	"github.com/Strob0t/memorybridge/internal/domain/memory"
)

// Tool names exposed to LLM tool-calling frameworks.
const (
	ToolSearchMemory     = "search_memory"
	ToolStoreMemory      = "store_memory"
	ToolGetMemoryContext = "get_memory_context"
)

// Fixed tool responses.
const (
	NoMemoriesFound  = "No relevant memories found."
	NoSessionContext = "No memory context found for this session."
)

// SearchMemoryInput is the argument set of search_memory.
type SearchMemoryInput struct {
	Query      string `json:"query" validate:"required" jsonschema:"description=What to look for in the user's memory graph"`
	Scope      string `json:"scope,omitempty" validate:"omitempty,oneof=nodes edges" jsonschema:"enum=nodes,enum=edges,default=nodes,description=Search entities (nodes) or facts (edges)"`
	Reranker   string `json:"reranker,omitempty" validate:"omitempty,oneof=cross_encoder rrf mmr node_distance episode_mentions" jsonschema:"enum=cross_encoder,enum=rrf,enum=mmr,enum=node_distance,enum=episode_mentions,default=cross_encoder"`
	MaxResults int    `json:"maxResults,omitempty" validate:"omitempty,min=1,max=100" jsonschema:"minimum=1,maximum=100,default=10,description=Maximum number of results"`
}

// StoreMemoryInput is the argument set of store_memory.
type StoreMemoryInput struct {
	Content          string `json:"content" validate:"required" jsonschema:"description=Business data to add to the user's memory graph"`
	DataType         string `json:"dataType,omitempty" validate:"omitempty,oneof=text json message" jsonschema:"enum=text,enum=json,enum=message,default=text"`
	OverflowStrategy string `json:"overflowStrategy,omitempty" validate:"omitempty,oneof=truncate split fail" jsonschema:"enum=truncate,enum=split,enum=fail,default=split,description=What to do when content exceeds the maximum size"`
}

// GetMemoryContextInput is the argument set of get_memory_context.
type GetMemoryContextInput struct {
	SessionID string `json:"sessionId" validate:"required" jsonschema:"description=Session to build the context for"`
	Limit     int    `json:"limit,omitempty" validate:"omitempty,min=1,max=100" jsonschema:"minimum=1,maximum=100,default=10,description=Maximum number of facts and entities"`
}

// WithDefaults fills the omitted optional fields. defaultLimit is the
// configured result limit.
func (in SearchMemoryInput) WithDefaults(defaultLimit int) SearchMemoryInput {
	if in.Scope == "" {
		in.Scope = string(memory.ScopeNodes)
	}
	if in.MaxResults == 0 {
		in.MaxResults = defaultLimit
	}
	return in
}

// WithDefaults fills the omitted optional fields.
func (in StoreMemoryInput) WithDefaults() StoreMemoryInput {
	if in.DataType == "" {
		in.DataType = string(memory.DataTypeText)
	}
	if in.OverflowStrategy == "" {
		in.OverflowStrategy = string(memory.OverflowSplit)
	}
	return in
}

// WithDefaults fills the omitted optional fields. defaultLimit is the
// configured result limit.
func (in GetMemoryContextInput) WithDefaults(defaultLimit int) GetMemoryContextInput {
	if in.Limit == 0 {
		in.Limit = defaultLimit
	}
	return in
}

// ToolDefinition describes a tool for registration with a tool-calling
// framework.
type ToolDefinition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"input_schema"`
}

// Toolkit exposes the memory operations as LLM tools. Every method returns
// a human-readable string; errors never escape.
type Toolkit struct {
	memory   *MemoryService
	validate *validator.Validate
}

// NewToolkit creates a Toolkit backed by mem.
func NewToolkit(mem *MemoryService) *Toolkit {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	return &Toolkit{memory: mem, validate: v}
}

// jsonFieldName makes validation errors name fields the way callers send them.
func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// SearchMemory runs search_memory.
func (t *Toolkit) SearchMemory(ctx context.Context, user memory.UserMemory, in SearchMemoryInput) string {
	in = in.WithDefaults(t.memory.DefaultLimit())
	if err := t.Validate(in); err != nil {
		return "Error searching memory: " + err.Error()
	}

	res := t.memory.SearchMemories(ctx, user, in.Query, memory.Scope(in.Scope), memory.Reranker(in.Reranker), in.MaxResults)
	if res.IsEmpty() {
		return NoMemoriesFound
	}
	return FormatSearchResult(res)
}

// StoreMemory runs store_memory.
func (t *Toolkit) StoreMemory(ctx context.Context, user memory.UserMemory, in StoreMemoryInput) string {
	in = in.WithDefaults()
	if err := t.Validate(in); err != nil {
		return "Error storing memory: " + err.Error()
	}

	_, err := t.memory.AddBusinessDataToGraph(ctx, user, in.Content,
		memory.DataType(in.DataType), memory.OverflowStrategy(in.OverflowStrategy))
	if err != nil {
		return "Error storing memory: " + err.Error()
	}
	return fmt.Sprintf("Successfully stored %d characters of %s data in memory.",
		memory.Length(in.Content), in.DataType)
}

// GetMemoryContext runs get_memory_context.
func (t *Toolkit) GetMemoryContext(ctx context.Context, user memory.UserMemory, in GetMemoryContextInput) string {
	in = in.WithDefaults(t.memory.DefaultLimit())
	if err := t.Validate(in); err != nil {
		return "Error retrieving memory context: " + err.Error()
	}

	block, ok, err := t.memory.GetSessionContext(ctx, user, in.SessionID, in.Limit)
	if err != nil {
		return "Error retrieving memory context: " + err.Error()
	}
	if !ok {
		return NoSessionContext
	}
	return block
}

// Validate checks a tool input, or any struct with validate tags, and
// flattens validator errors into one domain.ErrValidation.
func (t *Toolkit) Validate(in any) error {
	err := t.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param()))
		case "min", "max":
			msgs = append(msgs, fmt.Sprintf("%s must be %s %s", fe.Field(), boundWord(fe.Tag()), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(msgs, "; "))
}

func boundWord(tag string) string {
	if tag == "min" {
		return "at least"
	}
	return "at most"
}

// FormatSearchResult renders a search result as a text digest. Unlike the
// context block it shows the confidence of each fact.
func FormatSearchResult(res memory.SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d facts and %d entities:\n", len(res.Facts), len(res.Entities))

	if len(res.Facts) > 0 {
		b.WriteString("\nFacts:\n")
		for _, f := range res.Facts {
			fmt.Fprintf(&b, "- %s (confidence: %.2f)\n", f.Fact, f.Confidence)
		}
	}
	if len(res.Entities) > 0 {
		b.WriteString("\nEntities:\n")
		for _, e := range res.Entities {
			fmt.Fprintf(&b, "- %s (%s): %s\n", e.Name, e.Type, e.Summary)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Definitions returns the tool descriptions with input schemas reflected
// from the input structs.
func (t *Toolkit) Definitions() []ToolDefinition {
	return ToolDefinitions()
}

// ToolDefinitions is Definitions without a Toolkit, for registering tools
// before the memory service is wired.
func ToolDefinitions() []ToolDefinition {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
		Anonymous:      true,
	}
	schema := func(v any) *jsonschema.Schema {
		s := r.Reflect(v)
		s.Version = ""
		return s
	}

	return []ToolDefinition{
		{
			Name:        ToolSearchMemory,
			Description: "Search the user's long-term memory graph for relevant entities or facts.",
			InputSchema: schema(&SearchMemoryInput{}),
		},
		{
			Name:        ToolStoreMemory,
			Description: "Store business data in the user's long-term memory graph. Oversized content is split, truncated or rejected.",
			InputSchema: schema(&StoreMemoryInput{}),
		},
		{
			Name:        ToolGetMemoryContext,
			Description: "Retrieve a context block of facts and entities relevant to a conversation session.",
			InputSchema: schema(&GetMemoryContextInput{}),
		},
	}
}
