package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/JoeProAI/followlytics/internal/models"
)

type PostgresQualityErrorRepository struct {
	db *sql.DB
}

func NewPostgresQualityErrorRepository(db *sql.DB) *PostgresQualityErrorRepository {
	return &PostgresQualityErrorRepository{db: db}
}

func (r *PostgresQualityErrorRepository) Store(ctx context.Context, e models.DataQualityError) error {
	query := `
		INSERT INTO data_quality_errors (
			id, target_id, run_id, error_type, raw_handle, normalized_key, detail, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		e.ID,
		e.TargetID,
		e.RunID,
		e.Type,
		e.RawHandle,
		e.NormalizedKey,
		nullString(e.Detail),
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store data quality error: %w", err)
	}

	return nil
}

func (r *PostgresQualityErrorRepository) ListByTarget(ctx context.Context, targetID string, limit int) ([]models.DataQualityError, error) {
	query := `
		SELECT id, target_id, run_id, error_type, raw_handle, normalized_key, detail, created_at
		FROM data_quality_errors
		WHERE target_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list data quality errors: %w", err)
	}
	defer rows.Close()

	errorsOut := []models.DataQualityError{}
	for rows.Next() {
		var e models.DataQualityError
		var detail sql.NullString

		err := rows.Scan(
			&e.ID,
			&e.TargetID,
			&e.RunID,
			&e.Type,
			&e.RawHandle,
			&e.NormalizedKey,
			&detail,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan data quality error: %w", err)
		}

		e.Detail = detail.String
		errorsOut = append(errorsOut, e)
	}

	return errorsOut, rows.Err()
}
