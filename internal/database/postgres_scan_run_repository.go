package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/JoeProAI/followlytics/internal/models"
)

type PostgresScanRunRepository struct {
	db *sql.DB
}

func NewPostgresScanRunRepository(db *sql.DB) *PostgresScanRunRepository {
	return &PostgresScanRunRepository{db: db}
}

func (r *PostgresScanRunRepository) Create(ctx context.Context, run *models.ScanRun) error {
	query := `
		INSERT INTO scan_runs (id, target_id, status, started_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.ExecContext(ctx, query, run.ID, run.TargetID, run.Status, run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to insert scan run: %w", err)
	}

	return nil
}

func (r *PostgresScanRunRepository) GetByID(ctx context.Context, id string) (*models.ScanRun, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx, selectScanRun+" WHERE id = $1", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query scan run: %w", err)
	}
	return run, nil
}

func (r *PostgresScanRunRepository) Update(ctx context.Context, run *models.ScanRun) error {
	query := `
		UPDATE scan_runs SET
			status = $2,
			pages_received = $3,
			extracted_count = $4,
			coverage_ratio = $5,
			trusted = $6,
			diff_skipped = $7,
			error_message = $8,
			completed_at = $9
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.Status,
		run.PagesReceived,
		run.ExtractedCount,
		run.CoverageRatio,
		run.Trusted,
		run.DiffSkipped,
		nullString(run.ErrorMessage),
		run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update scan run: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("scan run not found: %s", run.ID)
	}

	return nil
}

func (r *PostgresScanRunRepository) ActiveRun(ctx context.Context, targetID string) (*models.ScanRun, error) {
	query := selectScanRun + `
		WHERE target_id = $1 AND status IN ($2, $3)
		ORDER BY started_at DESC
		LIMIT 1
	`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, targetID, models.RunStatusPending, models.RunStatusExtracting))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query active run: %w", err)
	}
	return run, nil
}

func (r *PostgresScanRunRepository) ListByTarget(ctx context.Context, targetID string, limit int) ([]*models.ScanRun, error) {
	query := selectScanRun + `
		WHERE target_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list scan runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.ScanRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

const selectScanRun = `
	SELECT id, target_id, status, pages_received, extracted_count,
	       coverage_ratio, trusted, diff_skipped, error_message,
	       started_at, completed_at
	FROM scan_runs
`

func scanRun(row rowScanner) (*models.ScanRun, error) {
	var run models.ScanRun
	var coverageRatio sql.NullFloat64
	var trusted sql.NullBool
	var errorMessage sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&run.ID,
		&run.TargetID,
		&run.Status,
		&run.PagesReceived,
		&run.ExtractedCount,
		&coverageRatio,
		&trusted,
		&run.DiffSkipped,
		&errorMessage,
		&run.StartedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if coverageRatio.Valid {
		run.CoverageRatio = &coverageRatio.Float64
	}
	if trusted.Valid {
		run.Trusted = &trusted.Bool
	}
	run.ErrorMessage = errorMessage.String
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}

	return &run, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
