package models

import (
	"context"
	"time"
)

// TrackedTarget represents a social account whose follower set is being monitored.
type TrackedTarget struct {
	ID                 string     `json:"id"`
	Handle             string     `json:"handle"`
	OwnerID            string     `json:"owner_id"`
	DisplayName        string     `json:"display_name,omitempty"`
	ScanSchedule       string     `json:"scan_schedule,omitempty"` // cron expression, empty = manual scans only
	LastCompletedRunID string     `json:"last_completed_run_id,omitempty"`
	LastScannedAt      *time.Time `json:"last_scanned_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// TargetRepository defines operations for tracked targets.
type TargetRepository interface {
	// Store creates or updates a tracked target.
	Store(ctx context.Context, target *TrackedTarget) error

	// GetByID retrieves a target by ID. Returns (nil, nil) when not found.
	GetByID(ctx context.Context, id string) (*TrackedTarget, error)

	// GetByHandle retrieves a target by owner and handle.
	GetByHandle(ctx context.Context, ownerID, handle string) (*TrackedTarget, error)

	// List returns all targets for an owner, newest first.
	List(ctx context.Context, ownerID string) ([]*TrackedTarget, error)

	// ListAll returns every tracked target. Used by the scan scheduler.
	ListAll(ctx context.Context) ([]*TrackedTarget, error)

	// SetLastCompletedRun updates the pointer to the most recent completed run.
	SetLastCompletedRun(ctx context.Context, targetID, runID string, at time.Time) error

	// Delete removes a target and its dependent records.
	Delete(ctx context.Context, id string) error
}
