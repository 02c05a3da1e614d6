package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/JoeProAI/followlytics/internal/models"
)

type PostgresTargetRepository struct {
	db *sql.DB
}

func NewPostgresTargetRepository(db *sql.DB) *PostgresTargetRepository {
	return &PostgresTargetRepository{db: db}
}

func (r *PostgresTargetRepository) Store(ctx context.Context, target *models.TrackedTarget) error {
	if target.ID == "" {
		query := `
			INSERT INTO tracked_targets (handle, owner_id, display_name, scan_schedule)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (owner_id, handle)
			DO UPDATE SET
				display_name = EXCLUDED.display_name,
				scan_schedule = EXCLUDED.scan_schedule,
				updated_at = NOW()
			RETURNING id, created_at, updated_at
		`

		return r.db.QueryRowContext(ctx, query,
			target.Handle,
			target.OwnerID,
			target.DisplayName,
			target.ScanSchedule,
		).Scan(&target.ID, &target.CreatedAt, &target.UpdatedAt)
	}

	query := `
		UPDATE tracked_targets SET
			display_name = $2,
			scan_schedule = $3,
			updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at
	`

	return r.db.QueryRowContext(ctx, query,
		target.ID,
		target.DisplayName,
		target.ScanSchedule,
	).Scan(&target.CreatedAt, &target.UpdatedAt)
}

func (r *PostgresTargetRepository) GetByID(ctx context.Context, id string) (*models.TrackedTarget, error) {
	return r.getOne(ctx, selectTarget+" WHERE id = $1", id)
}

func (r *PostgresTargetRepository) GetByHandle(ctx context.Context, ownerID, handle string) (*models.TrackedTarget, error) {
	return r.getOne(ctx, selectTarget+" WHERE owner_id = $1 AND handle = $2", ownerID, handle)
}

func (r *PostgresTargetRepository) List(ctx context.Context, ownerID string) ([]*models.TrackedTarget, error) {
	rows, err := r.db.QueryContext(ctx, selectTarget+" WHERE owner_id = $1 ORDER BY created_at DESC", ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	defer rows.Close()

	return scanTargets(rows)
}

func (r *PostgresTargetRepository) ListAll(ctx context.Context) ([]*models.TrackedTarget, error) {
	rows, err := r.db.QueryContext(ctx, selectTarget+" ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	defer rows.Close()

	return scanTargets(rows)
}

func (r *PostgresTargetRepository) SetLastCompletedRun(ctx context.Context, targetID, runID string, at time.Time) error {
	query := `
		UPDATE tracked_targets
		SET last_completed_run_id = $2,
		    last_scanned_at = $3,
		    updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, targetID, runID, at)
	if err != nil {
		return fmt.Errorf("failed to update last completed run: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("target not found: %s", targetID)
	}

	return nil
}

func (r *PostgresTargetRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM tracked_targets WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete target: %w", err)
	}
	return nil
}

const selectTarget = `
	SELECT id, handle, owner_id, display_name, scan_schedule,
	       last_completed_run_id, last_scanned_at, created_at, updated_at
	FROM tracked_targets
`

func (r *PostgresTargetRepository) getOne(ctx context.Context, query string, args ...interface{}) (*models.TrackedTarget, error) {
	target, err := scanTarget(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query target: %w", err)
	}
	return target, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTarget(row rowScanner) (*models.TrackedTarget, error) {
	var target models.TrackedTarget
	var displayName, scanSchedule, lastRunID sql.NullString
	var lastScannedAt sql.NullTime

	err := row.Scan(
		&target.ID,
		&target.Handle,
		&target.OwnerID,
		&displayName,
		&scanSchedule,
		&lastRunID,
		&lastScannedAt,
		&target.CreatedAt,
		&target.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	target.DisplayName = displayName.String
	target.ScanSchedule = scanSchedule.String
	target.LastCompletedRunID = lastRunID.String
	if lastScannedAt.Valid {
		target.LastScannedAt = &lastScannedAt.Time
	}

	return &target, nil
}

func scanTargets(rows *sql.Rows) ([]*models.TrackedTarget, error) {
	var targets []*models.TrackedTarget

	for rows.Next() {
		target, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		targets = append(targets, target)
	}

	return targets, rows.Err()
}
