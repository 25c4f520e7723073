package middleware

import (
	"context"
	"net/http"

	"github.com/Strob0t/memorybridge/internal/domain/memory"
)

// Headers carrying the calling principal. The upstream application has
// already authenticated the caller; these are trusted as-is.
const (
	HeaderWorkspaceID = "X-Workspace-ID"
	HeaderUserID      = "X-User-ID"
	HeaderUserEmail   = "X-User-Email"
	HeaderFirstName   = "X-User-First-Name"
	HeaderLastName    = "X-User-Last-Name"
)

type userCtxKey struct{}

// MemoryUser is middleware that reads the principal headers and stores the
// resulting memory.UserMemory in the request context. Requests without a
// workspace or user id pass through without a principal; handlers decide
// whether one is required.
func MemoryUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u, ok := UserFromHeaders(r.Header); ok {
			r = r.WithContext(WithUser(r.Context(), u))
		}
		next.ServeHTTP(w, r)
	})
}

// UserFromHeaders builds a principal from request headers. ok is false when
// the workspace or user id is missing.
func UserFromHeaders(h http.Header) (memory.UserMemory, bool) {
	u := memory.UserMemory{
		WorkspaceID: h.Get(HeaderWorkspaceID),
		UserID:      h.Get(HeaderUserID),
		Email:       h.Get(HeaderUserEmail),
		FirstName:   h.Get(HeaderFirstName),
		LastName:    h.Get(HeaderLastName),
	}
	if u.Validate() != nil {
		return memory.UserMemory{}, false
	}
	return u, true
}

// WithUser returns a context carrying u.
func WithUser(ctx context.Context, u memory.UserMemory) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext returns the principal stored in ctx.
func UserFromContext(ctx context.Context) (memory.UserMemory, bool) {
	u, ok := ctx.Value(userCtxKey{}).(memory.UserMemory)
	return u, ok
}

// workspaceFromContext returns the workspace id of the principal, or "".
func workspaceFromContext(ctx context.Context) string {
	if u, ok := UserFromContext(ctx); ok {
		return u.WorkspaceID
	}
	return ""
}
