package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/JoeProAI/followlytics/internal/models"
	"github.com/lib/pq"
)

// PostgresFollowerRepository implements the snapshot store over PostgreSQL.
type PostgresFollowerRepository struct {
	db *sql.DB
}

func NewPostgresFollowerRepository(db *sql.DB) *PostgresFollowerRepository {
	return &PostgresFollowerRepository{db: db}
}

func (r *PostgresFollowerRepository) ActiveHandles(ctx context.Context, targetID string) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT handle FROM follower_records WHERE target_id = $1 AND status = $2",
		targetID, models.FollowerStatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query active handles: %w", err)
	}
	defer rows.Close()

	handles := make(map[string]bool)
	for rows.Next() {
		var handle string
		if err := rows.Scan(&handle); err != nil {
			return nil, fmt.Errorf("failed to scan handle: %w", err)
		}
		handles[handle] = true
	}

	return handles, rows.Err()
}

func (r *PostgresFollowerRepository) CountActive(ctx context.Context, targetID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM follower_records WHERE target_id = $1 AND status = $2",
		targetID, models.FollowerStatusActive,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active followers: %w", err)
	}
	return count, nil
}

func (r *PostgresFollowerRepository) GetByHandles(ctx context.Context, targetID string, handles []string) (map[string]models.FollowerRecord, error) {
	records := make(map[string]models.FollowerRecord, len(handles))
	if len(handles) == 0 {
		return records, nil
	}

	query := selectFollower + " WHERE target_id = $1 AND handle = ANY($2)"
	rows, err := r.db.QueryContext(ctx, query, targetID, pq.Array(handles))
	if err != nil {
		return nil, fmt.Errorf("failed to query followers by handle: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		record, err := scanFollower(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan follower: %w", err)
		}
		records[record.Handle] = record
	}

	return records, rows.Err()
}

// UpsertActive writes one snapshot batch inside a single transaction. first_seen_at
// is set on insert only; re-seen records get last_seen_at refreshed and status reset
// to active.
func (r *PostgresFollowerRepository) UpsertActive(ctx context.Context, targetID string, records []models.FollowerRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO follower_records (
			target_id, handle, display_name, bio, verified, followers_count,
			following_count, avatar_url, location, status, first_seen_at, last_seen_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		ON CONFLICT (target_id, handle) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			bio = EXCLUDED.bio,
			verified = EXCLUDED.verified,
			followers_count = EXCLUDED.followers_count,
			following_count = EXCLUDED.following_count,
			avatar_url = EXCLUDED.avatar_url,
			location = EXCLUDED.location,
			status = EXCLUDED.status,
			last_seen_at = EXCLUDED.last_seen_at,
			unfollowed_at = NULL
	`

	for _, record := range records {
		_, err := tx.ExecContext(ctx, query,
			targetID,
			record.Handle,
			record.DisplayName,
			record.Bio,
			record.Verified,
			record.FollowersCount,
			record.FollowingCount,
			record.AvatarURL,
			record.Location,
			models.FollowerStatusActive,
			record.LastSeenAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert follower %s: %w", record.Handle, err)
		}
	}

	return tx.Commit()
}

func (r *PostgresFollowerRepository) MarkUnfollowed(ctx context.Context, targetID string, handles []string, at time.Time) error {
	if len(handles) == 0 {
		return nil
	}

	query := `
		UPDATE follower_records
		SET status = $3, unfollowed_at = $4
		WHERE target_id = $1 AND handle = ANY($2) AND status = $5
	`

	_, err := r.db.ExecContext(ctx, query,
		targetID,
		pq.Array(handles),
		models.FollowerStatusUnfollowed,
		at,
		models.FollowerStatusActive,
	)
	if err != nil {
		return fmt.Errorf("failed to mark unfollowed: %w", err)
	}

	return nil
}

func (r *PostgresFollowerRepository) ListUnfollowed(ctx context.Context, targetID string, limit, offset int) ([]models.FollowerRecord, error) {
	query := selectFollower + `
		WHERE target_id = $1 AND status = $2
		ORDER BY unfollowed_at DESC NULLS LAST
		LIMIT $3 OFFSET $4
	`

	rows, err := r.db.QueryContext(ctx, query, targetID, models.FollowerStatusUnfollowed, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list unfollowed: %w", err)
	}
	defer rows.Close()

	records := []models.FollowerRecord{}
	for rows.Next() {
		record, err := scanFollower(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan follower: %w", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

const selectFollower = `
	SELECT target_id, handle, display_name, bio, verified, followers_count,
	       following_count, avatar_url, location, status, first_seen_at,
	       last_seen_at, unfollowed_at
	FROM follower_records
`

func scanFollower(rows *sql.Rows) (models.FollowerRecord, error) {
	var record models.FollowerRecord
	var displayName, bio, avatarURL, location sql.NullString
	var unfollowedAt sql.NullTime

	err := rows.Scan(
		&record.TargetID,
		&record.Handle,
		&displayName,
		&bio,
		&record.Verified,
		&record.FollowersCount,
		&record.FollowingCount,
		&avatarURL,
		&location,
		&record.Status,
		&record.FirstSeenAt,
		&record.LastSeenAt,
		&unfollowedAt,
	)
	if err != nil {
		return models.FollowerRecord{}, err
	}

	record.DisplayName = displayName.String
	record.Bio = bio.String
	record.AvatarURL = avatarURL.String
	record.Location = location.String
	if unfollowedAt.Valid {
		record.UnfollowedAt = &unfollowedAt.Time
	}

	return record, nil
}
