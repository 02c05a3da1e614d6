package models

import (
	"context"
	"time"
)

// QualityErrorType classifies a data-quality problem found during ingestion.
type QualityErrorType string

const (
	// QualityErrorCollision means two distinct raw handles normalized to the same
	// identity key; the later-seen raw handle was rejected rather than merged.
	QualityErrorCollision QualityErrorType = "identity_collision"

	// QualityErrorMalformed means a raw handle normalized to an empty identity
	// key; the profile was rejected without failing the run.
	QualityErrorMalformed QualityErrorType = "malformed_handle"
)

// DataQualityError records a rejected raw profile for operator review.
type DataQualityError struct {
	ID            string           `json:"id"`
	TargetID      string           `json:"target_id"`
	RunID         string           `json:"run_id"`
	Type          QualityErrorType `json:"type"`
	RawHandle     string           `json:"raw_handle"`
	NormalizedKey string           `json:"normalized_key"`
	Detail        string           `json:"detail,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// QualityErrorRepository defines operations for data-quality errors.
type QualityErrorRepository interface {
	// Store records a data-quality error.
	Store(ctx context.Context, e DataQualityError) error

	// ListByTarget returns recent errors for a target, newest first.
	ListByTarget(ctx context.Context, targetID string, limit int) ([]DataQualityError, error)
}
