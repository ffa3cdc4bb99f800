package db

import (
	"context"
	"fmt"
	"log"
)

// PruneRuns deletes every import run except the newest keep completed ones.
// Abandoned runs without a finish time are deleted too.
func (db *DB) PruneRuns(ctx context.Context, keep int) error {
	if keep < 1 {
		keep = 1
	}

	db.LockWrite()
	defer db.UnlockWrite()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	const stale = `
		SELECT run_id FROM import_runs
		WHERE run_id NOT IN (
			SELECT run_id FROM import_runs
			WHERE finished_at_utc IS NOT NULL
			ORDER BY finished_at_utc DESC, started_at_utc DESC
			LIMIT ?
		)
	`
	tables := []string{"collisions", "weather_samples", "areas", "import_runs"}

	totalDeleted := 0
	for _, table := range tables {
		result, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE run_id IN (%s)", table, stale), keep)
		if err != nil {
			return fmt.Errorf("failed to prune %s: %w", table, err)
		}
		rows, _ := result.RowsAffected()
		totalDeleted += int(rows)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit prune: %w", err)
	}
	if totalDeleted > 0 {
		log.Printf("Cleanup: deleted %d rows from import runs beyond the newest %d", totalDeleted, keep)
	}
	return nil
}
