package models

import (
	"context"
	"time"
)

// RunStatus represents the lifecycle state of a scan run.
type RunStatus string

const (
	RunStatusPending    RunStatus = "pending"    // Created, waiting for the extraction source
	RunStatusExtracting RunStatus = "extracting" // At least one page received
	RunStatusCompleted  RunStatus = "completed"  // Terminal; diff may still have been skipped
	RunStatusFailed     RunStatus = "failed"     // Terminal; never reached the diff engine
)

// Terminal reports whether the run has reached a final state.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// ScanRun is one extraction attempt against a target. The coverage ratio and trust
// decision are computed post-hoc when the run completes, and survive restarts so
// that "detection disabled - scan was only N% complete" can be surfaced later.
type ScanRun struct {
	ID             string     `json:"id"`
	TargetID       string     `json:"target_id"`
	Status         RunStatus  `json:"status"`
	PagesReceived  int        `json:"pages_received"`
	ExtractedCount int        `json:"extracted_count"`
	CoverageRatio  *float64   `json:"coverage_ratio,omitempty"`
	Trusted        *bool      `json:"trusted,omitempty"`
	DiffSkipped    bool       `json:"diff_skipped"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// ScanRunRepository defines operations for scan run metadata.
type ScanRunRepository interface {
	// Create inserts a new run.
	Create(ctx context.Context, run *ScanRun) error

	// GetByID retrieves a run by ID. Returns (nil, nil) when not found.
	GetByID(ctx context.Context, id string) (*ScanRun, error)

	// Update persists the mutable fields of a run.
	Update(ctx context.Context, run *ScanRun) error

	// ActiveRun returns the non-terminal run for a target, if any.
	ActiveRun(ctx context.Context, targetID string) (*ScanRun, error)

	// ListByTarget returns runs for a target, newest first.
	ListByTarget(ctx context.Context, targetID string, limit int) ([]*ScanRun, error)
}
