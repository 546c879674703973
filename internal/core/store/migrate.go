package store

import (
	"context"
	"errors"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS ai_configurations (
		id TEXT PRIMARY KEY,
		provider TEXT NOT NULL,
		api_key TEXT NOT NULL,
		base_url TEXT,
		model_id TEXT NOT NULL,
		assigned_roles TEXT NOT NULL DEFAULT '',
		owner_id TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_ai_configurations_owner_created ON ai_configurations(owner_id, created_at, id);`,
}

// Migrate ensures the required database tables exist.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	for _, stmt := range schemaStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store migration failed: %w", err)
		}
	}

	return nil
}
