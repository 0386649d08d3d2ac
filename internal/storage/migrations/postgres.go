package migrations

import (
	"context"
	"fmt"

	"voltammetry-lab/internal/storage/postgres"
)

// RunPostgresMigrations creates the measurements, calibration_models and
// training_runs tables. Every file is idempotent, so this runs on each start.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := load(PostgresFS, "postgres")
	if err != nil {
		return err
	}
	for _, m := range files {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
	}
	return nil
}
