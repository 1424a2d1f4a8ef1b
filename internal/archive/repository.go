// Package archive persists finalized results so the leaderboard survives
// restarts. Persistence is best-effort; the in-memory ledger stays the
// source of truth while the process lives.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"spendmillion/internal/models"

	// Import sqlite driver
	_ "modernc.org/sqlite"
)

// Repository wraps a sqlite database of finalized results, one row per user
// holding that user's best final spend.
type Repository struct {
	db *sql.DB
}

// NewRepository opens the database at path and runs migrations. Use
// ":memory:" for an ephemeral archive.
func NewRepository(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping archive: %w", err)
	}

	r := &Repository{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repository) migrate() error {
	const schema = `CREATE TABLE IF NOT EXISTS results (
		user_id INTEGER PRIMARY KEY,
		display_name TEXT NOT NULL DEFAULT '',
		spent INTEGER NOT NULL,
		finalized_at INTEGER NOT NULL
	)`
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate archive: %w", err)
	}
	return nil
}

// SaveResult upserts a finalized result, keeping the user's best spend. An
// equal spend never replaces the row, so the earlier finalization time is
// preserved for tie-breaking.
func (r *Repository) SaveResult(ctx context.Context, entry models.LeaderboardEntry) error {
	const q = `INSERT INTO results (user_id, display_name, spent, finalized_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			display_name = excluded.display_name,
			spent = excluded.spent,
			finalized_at = excluded.finalized_at
		WHERE excluded.spent > results.spent`
	if _, err := r.db.ExecContext(ctx, q, entry.UserID, entry.DisplayName, entry.FinalSpent, entry.FinalizedAt.Unix()); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

// LoadResults returns all archived results, best first.
func (r *Repository) LoadResults(ctx context.Context) ([]models.LeaderboardEntry, error) {
	const q = `SELECT user_id, display_name, spent, finalized_at
		FROM results ORDER BY spent DESC, finalized_at ASC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to load results: %w", err)
	}
	defer rows.Close()

	var entries []models.LeaderboardEntry
	for rows.Next() {
		var entry models.LeaderboardEntry
		var finalizedAt int64
		if err := rows.Scan(&entry.UserID, &entry.DisplayName, &entry.FinalSpent, &finalizedAt); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		entry.FinalizedAt = time.Unix(finalizedAt, 0).UTC()
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	return r.db.Close()
}
