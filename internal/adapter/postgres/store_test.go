package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/Strob0t/memorybridge/internal/adapter/postgres"
	"github.com/Strob0t/memorybridge/internal/config"
	"github.com/Strob0t/memorybridge/internal/domain"
	"github.com/Strob0t/memorybridge/internal/domain/credential"
)

// setupStore connects, runs all migrations, and returns a ready-to-use
// Store. The pool is closed via t.Cleanup.
func setupStore(t *testing.T) *postgres.Store {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("requires DATABASE_URL")
	}

	ctx := context.Background()
	if err := postgres.RunMigrations(ctx, dsn); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	pool, err := postgres.NewPool(ctx, config.Postgres{DSN: dsn, MaxConns: 4})
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return postgres.NewStore(pool)
}

func TestCredentialCRUD(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	ws := "ws-" + uuid.NewString()

	if _, err := s.GetCredential(ctx, ws, credential.ProviderZep); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	c := &credential.WorkspaceCredential{WorkspaceID: ws, Provider: credential.ProviderZep, EncryptedKey: []byte{1, 2, 3}}
	if err := s.UpsertCredential(ctx, c); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if c.CreatedAt.IsZero() {
		t.Fatal("expected timestamps from the stored row")
	}

	c.EncryptedKey = []byte{4, 5}
	c.BaseURL = "https://zep.internal"
	if err := s.UpsertCredential(ctx, c); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := s.GetCredential(ctx, ws, credential.ProviderZep)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got.EncryptedKey) != string([]byte{4, 5}) || got.BaseURL != "https://zep.internal" {
		t.Fatalf("unexpected credential %+v", got)
	}

	if err := s.DeleteCredential(ctx, ws, credential.ProviderZep); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteCredential(ctx, ws, credential.ProviderZep); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestMigrationVersion(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("requires DATABASE_URL")
	}
	if err := postgres.RunMigrations(context.Background(), dsn); err != nil {
		t.Fatal(err)
	}
	v, err := postgres.MigrationVersion(context.Background(), dsn)
	if err != nil {
		t.Fatal(err)
	}
	if v < 1 {
		t.Fatalf("expected version >= 1, got %d", v)
	}
}
