package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Strob0t/memorybridge/internal/domain/credential"
	"github.com/Strob0t/memorybridge/internal/port/credentials"
)

// CredentialService manages per-workspace gateway credentials.
type CredentialService struct {
	store    credentials.Store
	key      []byte
	resolver *GatewayResolver // optional, invalidated on change
}

// NewCredentialService creates a CredentialService. encryptionKey should be
// derived from the configured secret with credential.DeriveKey.
func NewCredentialService(store credentials.Store, encryptionKey []byte) *CredentialService {
	return &CredentialService{store: store, key: encryptionKey}
}

// SetResolver makes credential changes take effect on the next memory call.
func (s *CredentialService) SetResolver(r *GatewayResolver) { s.resolver = r }

// Set validates, encrypts and stores the API key of a workspace.
func (s *CredentialService) Set(ctx context.Context, req *credential.SetRequest) (*credential.WorkspaceCredential, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	encrypted, err := credential.Encrypt([]byte(req.APIKey), s.key)
	if err != nil {
		return nil, fmt.Errorf("encrypt api key: %w", err)
	}

	now := time.Now().UTC()
	c := &credential.WorkspaceCredential{
		WorkspaceID:  req.WorkspaceID,
		Provider:     req.Provider,
		BaseURL:      req.BaseURL,
		EncryptedKey: encrypted,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.UpsertCredential(ctx, c); err != nil {
		return nil, fmt.Errorf("store credential for workspace %s: %w", req.WorkspaceID, err)
	}
	s.invalidate(req.WorkspaceID)
	return c, nil
}

// Delete removes the credential of a workspace. Memory calls for it fall
// back to the default gateway afterwards.
func (s *CredentialService) Delete(ctx context.Context, workspaceID, provider string) error {
	if provider == "" {
		provider = credential.ProviderZep
	}
	if err := s.store.DeleteCredential(ctx, workspaceID, provider); err != nil {
		return err
	}
	s.invalidate(workspaceID)
	return nil
}

func (s *CredentialService) invalidate(workspaceID string) {
	if s.resolver != nil {
		s.resolver.Invalidate(workspaceID)
	}
}
