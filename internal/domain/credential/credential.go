// Package credential defines the domain types for per-workspace gateway
// credentials.
package credential

import (
	"fmt"
	"time"

	"github.com/Strob0t/memorybridge/internal/domain"
)

// ProviderZep is the hosted graph-memory provider.
const ProviderZep = "zep"

// WorkspaceCredential is a stored gateway API key for one workspace.
type WorkspaceCredential struct {
	WorkspaceID  string    `json:"workspace_id"`
	Provider     string    `json:"provider"`
	BaseURL      string    `json:"base_url,omitempty"` // empty = configured default
	EncryptedKey []byte    `json:"-"`                  // never expose in JSON
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SetRequest holds the fields to store a credential.
type SetRequest struct {
	WorkspaceID string `json:"workspace_id"`
	Provider    string `json:"provider"`
	BaseURL     string `json:"base_url"`
	APIKey      string `json:"api_key"` // plaintext, encrypted before storage
}

// Validate checks the request.
func (r *SetRequest) Validate() error {
	if r.WorkspaceID == "" {
		return fmt.Errorf("%w: workspace_id is required", domain.ErrValidation)
	}
	if r.APIKey == "" {
		return fmt.Errorf("%w: api_key is required", domain.ErrValidation)
	}
	if r.Provider == "" {
		r.Provider = ProviderZep
	}
	return nil
}
