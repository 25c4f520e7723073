// Package credentials defines the port for per-workspace gateway credentials.
package credentials

import (
	"context"

	"github.com/Strob0t/memorybridge/internal/domain/credential"
)

// Store persists encrypted gateway credentials. Get wraps domain.ErrNotFound
// when no credential exists for the workspace and provider.
type Store interface {
	GetCredential(ctx context.Context, workspaceID, provider string) (*credential.WorkspaceCredential, error)
	UpsertCredential(ctx context.Context, c *credential.WorkspaceCredential) error
	DeleteCredential(ctx context.Context, workspaceID, provider string) error
}
