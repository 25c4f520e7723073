package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/memorybridge/internal/domain"
	"github.com/Strob0t/memorybridge/internal/domain/credential"
	"github.com/Strob0t/memorybridge/internal/port/credentials"
)

var _ credentials.Store = (*Store)(nil)

// Store implements credentials.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Workspace credentials ---

func (s *Store) GetCredential(ctx context.Context, workspaceID, provider string) (*credential.WorkspaceCredential, error) {
	var c credential.WorkspaceCredential
	err := s.pool.QueryRow(ctx,
		`SELECT workspace_id, provider, base_url, encrypted_key, created_at, updated_at
		 FROM workspace_credentials WHERE workspace_id = $1 AND provider = $2`, workspaceID, provider,
	).Scan(&c.WorkspaceID, &c.Provider, &c.BaseURL, &c.EncryptedKey, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get credential %s/%s: %w", workspaceID, provider, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get credential %s/%s: %w", workspaceID, provider, err)
	}
	return &c, nil
}

// UpsertCredential inserts or replaces a credential. CreatedAt and UpdatedAt
// of c are set from the stored row.
func (s *Store) UpsertCredential(ctx context.Context, c *credential.WorkspaceCredential) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO workspace_credentials (workspace_id, provider, base_url, encrypted_key)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (workspace_id, provider) DO UPDATE
		 SET base_url = EXCLUDED.base_url, encrypted_key = EXCLUDED.encrypted_key, updated_at = now()
		 RETURNING created_at, updated_at`,
		c.WorkspaceID, c.Provider, c.BaseURL, c.EncryptedKey,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert credential %s/%s: %w", c.WorkspaceID, c.Provider, err)
	}
	return nil
}

func (s *Store) DeleteCredential(ctx context.Context, workspaceID, provider string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM workspace_credentials WHERE workspace_id = $1 AND provider = $2`, workspaceID, provider)
	return execExpectOne(tag, err, "delete credential %s/%s", workspaceID, provider)
}
