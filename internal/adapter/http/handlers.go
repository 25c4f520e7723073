package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/memorybridge/internal/domain/memory"
	"github.com/Strob0t/memorybridge/internal/middleware"
	"github.com/Strob0t/memorybridge/internal/service"
)

const (
	smallBodyLimit = 64 << 10 // search, context, tool calls
	largeBodyLimit = 4 << 20  // stored data, message batches
)

// Handlers holds the services behind the REST API.
type Handlers struct {
	Memory  *service.MemoryService
	Toolkit *service.Toolkit
}

// contextResponse is the answer of the context and turn endpoints.
type contextResponse struct {
	Context string `json:"context"`
	Found   bool   `json:"found"`
}

// SearchMemory handles POST /api/v1/memory/search.
func (h *Handlers) SearchMemory(w http.ResponseWriter, r *http.Request) {
	in, ok := readJSON[service.SearchMemoryInput](w, r, smallBodyLimit)
	if !ok {
		return
	}
	in = in.WithDefaults(h.Memory.DefaultLimit())
	if err := h.Toolkit.Validate(in); err != nil {
		writeDomainError(w, r, err, "")
		return
	}

	user, _ := middleware.UserFromContext(r.Context())
	res := h.Memory.SearchMemories(r.Context(), user, in.Query,
		memory.Scope(in.Scope), memory.Reranker(in.Reranker), in.MaxResults)
	writeJSON(w, http.StatusOK, res)
}

// StoreMemory handles POST /api/v1/memory/store.
func (h *Handlers) StoreMemory(w http.ResponseWriter, r *http.Request) {
	in, ok := readJSON[service.StoreMemoryInput](w, r, largeBodyLimit)
	if !ok {
		return
	}
	in = in.WithDefaults()
	if err := h.Toolkit.Validate(in); err != nil {
		writeDomainError(w, r, err, "")
		return
	}

	user, _ := middleware.UserFromContext(r.Context())
	out, err := h.Memory.AddBusinessDataToGraph(r.Context(), user, in.Content,
		memory.DataType(in.DataType), memory.OverflowStrategy(in.OverflowStrategy))
	if err != nil {
		writeDomainError(w, r, err, "workspace has no gateway credential")
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// GetMemoryContext handles POST /api/v1/memory/context.
func (h *Handlers) GetMemoryContext(w http.ResponseWriter, r *http.Request) {
	in, ok := readJSON[service.GetMemoryContextInput](w, r, smallBodyLimit)
	if !ok {
		return
	}
	in = in.WithDefaults(h.Memory.DefaultLimit())
	if err := h.Toolkit.Validate(in); err != nil {
		writeDomainError(w, r, err, "")
		return
	}

	user, _ := middleware.UserFromContext(r.Context())
	block, found, err := h.Memory.GetSessionContext(r.Context(), user, in.SessionID, in.Limit)
	if err != nil {
		writeDomainError(w, r, err, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, contextResponse{Context: block, Found: found})
}

type addMessagesRequest struct {
	SessionID string               `json:"sessionId" validate:"required"`
	Messages  []memory.ChatMessage `json:"messages" validate:"required,min=1"`
}

// AddMessages handles POST /api/v1/memory/messages. A batch without any
// textual message is accepted and reported with written=false.
func (h *Handlers) AddMessages(w http.ResponseWriter, r *http.Request) {
	in, ok := readJSON[addMessagesRequest](w, r, largeBodyLimit)
	if !ok {
		return
	}
	if err := h.Toolkit.Validate(in); err != nil {
		writeDomainError(w, r, err, "")
		return
	}

	user, _ := middleware.UserFromContext(r.Context())
	res, written := h.Memory.AddMessages(r.Context(), user, in.SessionID, in.Messages)
	if !written && hasText(in.Messages) {
		writeError(w, http.StatusBadGateway, "memory gateway request failed")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Written bool              `json:"written"`
		Result  *memory.AddResult `json:"result,omitempty"`
	}{Written: written, Result: res})
}

type turnRequest struct {
	SessionID string               `json:"sessionId" validate:"required"`
	Messages  []memory.ChatMessage `json:"messages"`
	Collect   *bool                `json:"collect,omitempty"`
	Inject    *bool                `json:"inject,omitempty"`
	Limit     int                  `json:"limit,omitempty" validate:"omitempty,min=1,max=100"`
}

// Turn handles POST /api/v1/memory/turn: write the turn's messages and
// return a context block for the next prompt. collect and inject default to
// true. Failures degrade to found=false.
func (h *Handlers) Turn(w http.ResponseWriter, r *http.Request) {
	in, ok := readJSON[turnRequest](w, r, largeBodyLimit)
	if !ok {
		return
	}
	if in.Limit == 0 {
		in.Limit = h.Memory.DefaultLimit()
	}
	if err := h.Toolkit.Validate(in); err != nil {
		writeDomainError(w, r, err, "")
		return
	}

	user, _ := middleware.UserFromContext(r.Context())
	block, found := h.Memory.AddMemoryAndGetContext(r.Context(), user, in.SessionID, in.Messages,
		boolOr(in.Collect, true), boolOr(in.Inject, true), in.Limit)
	writeJSON(w, http.StatusOK, contextResponse{Context: block, Found: found})
}

// ListTools handles GET /api/v1/tools.
func (h *Handlers) ListTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Toolkit.Definitions())
}

// CallTool handles POST /api/v1/tools/{name}. The body is the tool's input;
// the response carries the tool's text output.
func (h *Handlers) CallTool(w http.ResponseWriter, r *http.Request) {
	raw, ok := readJSON[json.RawMessage](w, r, largeBodyLimit)
	if !ok {
		return
	}
	user, _ := middleware.UserFromContext(r.Context())
	ctx := r.Context()

	var text string
	var err error
	switch name := chi.URLParam(r, "name"); name {
	case service.ToolSearchMemory:
		var in service.SearchMemoryInput
		if err = json.Unmarshal(raw, &in); err == nil {
			text = h.Toolkit.SearchMemory(ctx, user, in)
		}
	case service.ToolStoreMemory:
		var in service.StoreMemoryInput
		if err = json.Unmarshal(raw, &in); err == nil {
			text = h.Toolkit.StoreMemory(ctx, user, in)
		}
	case service.ToolGetMemoryContext:
		var in service.GetMemoryContextInput
		if err = json.Unmarshal(raw, &in); err == nil {
			text = h.Toolkit.GetMemoryContext(ctx, user, in)
		}
	default:
		writeError(w, http.StatusNotFound, "unknown tool "+name)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tool input")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": text})
}

func hasText(msgs []memory.ChatMessage) bool {
	for i := range msgs {
		if _, ok := msgs[i].Content.(string); ok {
			return true
		}
	}
	return false
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
