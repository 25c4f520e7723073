package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Strob0t/memorybridge/internal/domain"
	"github.com/Strob0t/memorybridge/internal/domain/credential"
	"github.com/Strob0t/memorybridge/internal/port/credentials"
	"github.com/Strob0t/memorybridge/internal/port/memorygateway"
)

// GatewayFactory builds a gateway client for a base URL and API key. An
// empty baseURL means the configured default.
type GatewayFactory func(baseURL, apiKey string) memorygateway.Gateway

// DefaultResolverRefresh is how long a resolved workspace gateway is reused
// before its credential is read again.
const DefaultResolverRefresh = 5 * time.Minute

var _ GatewaySource = (*GatewayResolver)(nil)

type resolvedGateway struct {
	gw       memorygateway.Gateway
	loadedAt time.Time
}

// GatewayResolver resolves the gateway for a workspace from its stored
// credential. Workspaces without a credential use the fallback gateway
// built from the environment key; with no fallback they fail.
type GatewayResolver struct {
	store    credentials.Store
	key      []byte
	factory  GatewayFactory
	fallback memorygateway.Gateway
	refresh  time.Duration

	mu      sync.Mutex
	clients map[string]resolvedGateway
}

// NewGatewayResolver creates a resolver. fallback may be nil.
func NewGatewayResolver(store credentials.Store, encryptionKey []byte, factory GatewayFactory, fallback memorygateway.Gateway) *GatewayResolver {
	return &GatewayResolver{
		store:    store,
		key:      encryptionKey,
		factory:  factory,
		fallback: fallback,
		refresh:  DefaultResolverRefresh,
		clients:  make(map[string]resolvedGateway),
	}
}

// SetRefresh overrides DefaultResolverRefresh.
func (r *GatewayResolver) SetRefresh(d time.Duration) { r.refresh = d }

// ForWorkspace returns the gateway for workspaceID.
func (r *GatewayResolver) ForWorkspace(ctx context.Context, workspaceID string) (memorygateway.Gateway, error) {
	r.mu.Lock()
	entry, ok := r.clients[workspaceID]
	r.mu.Unlock()
	if ok && time.Since(entry.loadedAt) < r.refresh {
		return entry.gw, nil
	}

	gw, err := r.resolve(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.clients[workspaceID] = resolvedGateway{gw: gw, loadedAt: time.Now()}
	r.mu.Unlock()
	return gw, nil
}

func (r *GatewayResolver) resolve(ctx context.Context, workspaceID string) (memorygateway.Gateway, error) {
	cred, err := r.store.GetCredential(ctx, workspaceID, credential.ProviderZep)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		if r.fallback == nil {
			return nil, fmt.Errorf("no gateway credential for workspace %s: %w", workspaceID, domain.ErrNotFound)
		}
		return r.fallback, nil
	case err != nil:
		return nil, fmt.Errorf("load credential: %w", err)
	}

	apiKey, err := credential.Decrypt(cred.EncryptedKey, r.key)
	if err != nil {
		return nil, fmt.Errorf("decrypt credential of workspace %s: %w", workspaceID, err)
	}
	slog.DebugContext(ctx, "resolved workspace gateway", "workspace_id", workspaceID, "base_url", cred.BaseURL)
	return r.factory(cred.BaseURL, string(apiKey)), nil
}

// Invalidate drops the cached gateway of a workspace.
func (r *GatewayResolver) Invalidate(workspaceID string) {
	r.mu.Lock()
	delete(r.clients, workspaceID)
	r.mu.Unlock()
}
