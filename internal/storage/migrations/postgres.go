package migrations

import (
	"context"
	"fmt"
	"log"

	"solana-lineage-tracker/internal/storage/postgres"
)

// RunPostgresMigrations applies the tracked_wallets and convergence_alerts
// schemas. Every file is idempotent, so it runs on each start.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool, logger *log.Logger) error {
	files, err := load("postgres")
	if err != nil {
		return err
	}
	for _, m := range files {
		// No bind arguments: pgx uses the simple protocol, which accepts
		// several statements per file.
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
		if logger != nil {
			logger.Printf("[migrations] applied %s", m.name)
		}
	}
	return nil
}
