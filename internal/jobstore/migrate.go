package jobstore

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed migrations/0001_init.sql
var initSchema string

// Migrate applies the embedded schema. It is idempotent (CREATE TABLE/INDEX
// IF NOT EXISTS), so it is safe to run on every deploy.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, initSchema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
