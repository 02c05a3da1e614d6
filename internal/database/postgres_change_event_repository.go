package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/JoeProAI/followlytics/internal/models"
)

// PostgresChangeEventRepository implements the append-only event log over PostgreSQL.
// The (run_id, handle, event_type) unique constraint is what makes replayed runs
// safe: conflicting appends are absorbed, never duplicated.
type PostgresChangeEventRepository struct {
	db *sql.DB
}

func NewPostgresChangeEventRepository(db *sql.DB) *PostgresChangeEventRepository {
	return &PostgresChangeEventRepository{db: db}
}

func (r *PostgresChangeEventRepository) Append(ctx context.Context, events []models.ChangeEvent) (models.AppendResult, error) {
	result := models.AppendResult{}
	if len(events) == 0 {
		return result, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO change_events (
			id, run_id, target_id, handle, event_type, occurred_at,
			display_name, verified, followers_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id, handle, event_type) DO NOTHING
	`

	for _, event := range events {
		res, err := tx.ExecContext(ctx, query,
			event.ID,
			event.RunID,
			event.TargetID,
			event.Handle,
			event.Type,
			event.OccurredAt,
			event.DisplayName,
			event.Verified,
			event.FollowersCount,
		)
		if err != nil {
			return models.AppendResult{}, fmt.Errorf("failed to append event for %s: %w", event.Handle, err)
		}

		inserted, _ := res.RowsAffected()
		if inserted > 0 {
			result.Appended++
		} else {
			result.Duplicates++
		}
	}

	if err := tx.Commit(); err != nil {
		return models.AppendResult{}, fmt.Errorf("failed to commit event append: %w", err)
	}

	return result, nil
}

func (r *PostgresChangeEventRepository) ListByTarget(ctx context.Context, targetID string, limit, offset int) ([]models.ChangeEvent, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM change_events WHERE target_id = $1", targetID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count events: %w", err)
	}

	query := selectChangeEvent + `
		WHERE target_id = $1
		ORDER BY occurred_at DESC, handle
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, targetID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events, err := scanChangeEvents(rows)
	if err != nil {
		return nil, 0, err
	}

	return events, total, nil
}

func (r *PostgresChangeEventRepository) ListForClassification(ctx context.Context, targetID string) ([]models.ChangeEvent, error) {
	query := selectChangeEvent + `
		WHERE target_id = $1
		ORDER BY occurred_at ASC, handle
	`

	rows, err := r.db.QueryContext(ctx, query, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	return scanChangeEvents(rows)
}

const selectChangeEvent = `
	SELECT id, run_id, target_id, handle, event_type, occurred_at,
	       display_name, verified, followers_count
	FROM change_events
`

func scanChangeEvents(rows *sql.Rows) ([]models.ChangeEvent, error) {
	events := []models.ChangeEvent{}

	for rows.Next() {
		var event models.ChangeEvent
		var displayName sql.NullString

		err := rows.Scan(
			&event.ID,
			&event.RunID,
			&event.TargetID,
			&event.Handle,
			&event.Type,
			&event.OccurredAt,
			&displayName,
			&event.Verified,
			&event.FollowersCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		event.DisplayName = displayName.String
		events = append(events, event)
	}

	return events, rows.Err()
}
