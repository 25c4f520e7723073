package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Strob0t/memorybridge/internal/domain"
)

// readJSON decodes a single JSON document from the body, capped at
// bodyLimit bytes. On failure it writes the error response and returns false.
func readJSON[T any](w http.ResponseWriter, r *http.Request, bodyLimit int64) (T, bool) {
	var v T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, bodyLimit))
	err := dec.Decode(&v)
	if err == nil && dec.More() {
		err = errors.New("trailing data after JSON body")
	}

	var maxErr *http.MaxBytesError
	switch {
	case err == nil:
		return v, true
	case errors.As(err, &maxErr):
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
	case errors.Is(err, io.EOF):
		writeError(w, http.StatusBadRequest, "request body is required")
	default:
		writeError(w, http.StatusBadRequest, "invalid request body")
	}
	return v, false
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("write json response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeDomainError maps memory errors to statuses. Gateway failures are
// reported as 502 without their detail, which may carry remote payloads.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error, notFoundMsg string) {
	var status int
	msg := err.Error()
	switch {
	case errors.Is(err, domain.ErrValidation):
		status, msg = http.StatusBadRequest, strings.TrimPrefix(msg, domain.ErrValidation.Error()+": ")
	case errors.Is(err, domain.ErrPayloadTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrNotFound):
		status, msg = http.StatusNotFound, notFoundMsg
	case errors.Is(err, domain.ErrConflict):
		status, msg = http.StatusConflict, "memory entity changed concurrently, retry the request"
	default:
		slog.ErrorContext(r.Context(), "memory request failed", "path", r.URL.Path, "error", err)
		status, msg = http.StatusBadGateway, "memory gateway request failed"
	}
	writeError(w, status, msg)
}
