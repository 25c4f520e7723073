package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/memorybridge/internal/domain"
	"github.com/Strob0t/memorybridge/internal/domain/credential"
	"github.com/Strob0t/memorybridge/internal/port/credentials"
	"github.com/Strob0t/memorybridge/internal/port/memorygateway"
)

var _ credentials.Store = (*mockCredentialStore)(nil)

type mockCredentialStore struct {
	mu    sync.Mutex
	creds map[string]*credential.WorkspaceCredential
	gets  int
	err   error
}

func newMockCredentialStore() *mockCredentialStore {
	return &mockCredentialStore{creds: make(map[string]*credential.WorkspaceCredential)}
}

func (m *mockCredentialStore) GetCredential(_ context.Context, workspaceID, provider string) (*credential.WorkspaceCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.creds[workspaceID+"/"+provider]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (m *mockCredentialStore) UpsertCredential(_ context.Context, c *credential.WorkspaceCredential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[c.WorkspaceID+"/"+c.Provider] = c
	return nil
}

func (m *mockCredentialStore) DeleteCredential(_ context.Context, workspaceID, provider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := workspaceID + "/" + provider
	if _, ok := m.creds[key]; !ok {
		return domain.ErrNotFound
	}
	delete(m.creds, key)
	return nil
}

type builtGateway struct {
	*fakeGateway
	baseURL string
	apiKey  string
}

func recordingFactory(built *[]builtGateway) GatewayFactory {
	return func(baseURL, apiKey string) memorygateway.Gateway {
		b := builtGateway{fakeGateway: newFakeGateway(), baseURL: baseURL, apiKey: apiKey}
		*built = append(*built, b)
		return b
	}
}

func TestGatewayResolver_UsesStoredCredential(t *testing.T) {
	store := newMockCredentialStore()
	key := credential.DeriveKey("test-secret")
	creds := NewCredentialService(store, key)
	ctx := context.Background()

	if _, err := creds.Set(ctx, &credential.SetRequest{WorkspaceID: "ws1", APIKey: "z_secret", BaseURL: "https://zep.internal"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	stored := store.creds["ws1/zep"]
	if strings.Contains(string(stored.EncryptedKey), "z_secret") {
		t.Fatal("api key stored in plaintext")
	}

	var built []builtGateway
	r := NewGatewayResolver(store, key, recordingFactory(&built), nil)
	creds.SetResolver(r)

	gw1, err := r.ForWorkspace(ctx, "ws1")
	if err != nil {
		t.Fatalf("ForWorkspace: %v", err)
	}
	gw2, _ := r.ForWorkspace(ctx, "ws1")
	if len(built) != 1 || store.gets != 1 {
		t.Fatalf("expected one build and one lookup, got %d builds and %d lookups", len(built), store.gets)
	}
	if gw1 != gw2 {
		t.Fatal("expected the cached client to be reused")
	}
	if built[0].apiKey != "z_secret" || built[0].baseURL != "https://zep.internal" {
		t.Fatalf("unexpected client %+v", built[0])
	}

	// Rotating the key rebuilds the client.
	if _, err := creds.Set(ctx, &credential.SetRequest{WorkspaceID: "ws1", APIKey: "z_rotated"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := r.ForWorkspace(ctx, "ws1"); err != nil {
		t.Fatalf("ForWorkspace: %v", err)
	}
	if len(built) != 2 || built[1].apiKey != "z_rotated" {
		t.Fatalf("expected a rebuilt client with the new key, got %+v", built)
	}
}

func TestGatewayResolver_Fallback(t *testing.T) {
	store := newMockCredentialStore()
	fallback := newFakeGateway()
	var built []builtGateway
	r := NewGatewayResolver(store, credential.DeriveKey("s"), recordingFactory(&built), fallback)

	gw, err := r.ForWorkspace(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("ForWorkspace: %v", err)
	}
	if gw != fallback {
		t.Fatal("expected fallback gateway")
	}
	if len(built) != 0 {
		t.Fatal("fallback must not build a client")
	}

	r = NewGatewayResolver(store, credential.DeriveKey("s"), recordingFactory(&built), nil)
	if _, err := r.ForWorkspace(context.Background(), "unknown"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound without fallback, got %v", err)
	}
}

func TestGatewayResolver_StoreErrorNotCached(t *testing.T) {
	store := newMockCredentialStore()
	store.err = errors.New("connection refused")
	r := NewGatewayResolver(store, credential.DeriveKey("s"), func(string, string) memorygateway.Gateway { return newFakeGateway() }, newFakeGateway())
	ctx := context.Background()

	if _, err := r.ForWorkspace(ctx, "ws1"); err == nil {
		t.Fatal("expected store error to propagate instead of silently falling back")
	}
	store.err = nil
	if _, err := r.ForWorkspace(ctx, "ws1"); err != nil {
		t.Fatalf("expected recovery once the store is back, got %v", err)
	}
}

func TestGatewayResolver_Refresh(t *testing.T) {
	store := newMockCredentialStore()
	r := NewGatewayResolver(store, credential.DeriveKey("s"), nil, newFakeGateway())
	r.SetRefresh(time.Nanosecond)
	ctx := context.Background()

	_, _ = r.ForWorkspace(ctx, "ws1")
	time.Sleep(time.Millisecond)
	_, _ = r.ForWorkspace(ctx, "ws1")
	if store.gets != 2 {
		t.Fatalf("expected credential to be re-read after refresh, got %d lookups", store.gets)
	}
}

func TestGatewayResolver_WrongKeyFails(t *testing.T) {
	store := newMockCredentialStore()
	creds := NewCredentialService(store, credential.DeriveKey("right"))
	if _, err := creds.Set(context.Background(), &credential.SetRequest{WorkspaceID: "ws1", APIKey: "k"}); err != nil {
		t.Fatal(err)
	}
	r := NewGatewayResolver(store, credential.DeriveKey("wrong"), func(string, string) memorygateway.Gateway { return newFakeGateway() }, nil)
	if _, err := r.ForWorkspace(context.Background(), "ws1"); err == nil {
		t.Fatal("expected decrypt error")
	}
}

func TestCredentialService_Validation(t *testing.T) {
	creds := NewCredentialService(newMockCredentialStore(), credential.DeriveKey("s"))
	if _, err := creds.Set(context.Background(), &credential.SetRequest{WorkspaceID: "ws1"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if err := creds.Delete(context.Background(), "ws1", ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing credential, got %v", err)
	}
}

func TestMemoryService_PerWorkspaceGateway(t *testing.T) {
	store := newMockCredentialStore()
	key := credential.DeriveKey("s")
	creds := NewCredentialService(store, key)
	if _, err := creds.Set(context.Background(), &credential.SetRequest{WorkspaceID: "ws1", APIKey: "k1"}); err != nil {
		t.Fatal(err)
	}

	var built []builtGateway
	fallback := newFakeGateway()
	svc := newTestService(fallback)
	svc.SetGatewaySource(NewGatewayResolver(store, key, recordingFactory(&built), fallback))

	if _, err := svc.EnsureUser(context.Background(), testUser); err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if len(built) != 1 || built[0].count("AddUser") != 1 {
		t.Fatal("expected the workspace gateway to receive the call")
	}
	if fallback.total() != 0 {
		t.Fatal("fallback gateway must not be used for a workspace with a credential")
	}
}

// --- Ontology ---

const ontologyYAML = `
entity_types:
  - name: Customer
    description: A paying customer
    properties:
      - name: tier
        type: Text
        description: Support tier
      - name: seats
        type: Int
        description: Licensed seats
  - name: Product
    description: Something we sell
`

func TestLoadOntology(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ontology.yaml")
	if err := os.WriteFile(path, []byte(ontologyYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	o, err := LoadOntology(path)
	if err != nil {
		t.Fatalf("LoadOntology: %v", err)
	}
	if len(o.EntityTypes) != 2 || o.EntityTypes[0].Properties[1].Type != "Int" {
		t.Fatalf("unexpected ontology %+v", o)
	}

	if _, err := LoadOntology(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParseOntology_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "entity_types: []"},
		{"no name", "entity_types:\n  - description: x"},
		{"duplicate", "entity_types:\n  - name: A\n  - name: A"},
		{"bad property type", "entity_types:\n  - name: A\n    properties:\n      - name: p\n        type: Date"},
		{"not yaml", "entity_types: ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseOntology([]byte(tt.yaml)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestSetOntology(t *testing.T) {
	gw := newFakeGateway()
	svc := newTestService(gw)
	o, err := ParseOntology([]byte(ontologyYAML))
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.SetOntology(context.Background(), "ws1", o); err != nil {
		t.Fatalf("SetOntology: %v", err)
	}
	if gw.count("SetEntityTypes") != 1 || len(gw.types) != 2 || gw.types[0].Name != "Customer" {
		t.Fatalf("unexpected entity types %+v", gw.types)
	}
}
