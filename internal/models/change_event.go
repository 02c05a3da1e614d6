package models

import (
	"context"
	"time"
)

// ChangeType classifies a detected follower-set change.
type ChangeType string

const (
	ChangeTypeUnfollow  ChangeType = "unfollow"
	ChangeTypeNewFollow ChangeType = "new_follow"
	ChangeTypeRefollow  ChangeType = "refollow"
)

// ChangeEvent is an immutable fact recorded when a trusted diff detects a change.
// The display fields are a snapshot of the follower's profile at detection time.
// At most one event exists per (run, handle, type); replaying a run is a no-op.
type ChangeEvent struct {
	ID             string     `json:"id"`
	RunID          string     `json:"run_id"`
	TargetID       string     `json:"target_id"`
	Handle         string     `json:"handle"`
	Type           ChangeType `json:"type"`
	OccurredAt     time.Time  `json:"occurred_at"`
	DisplayName    string     `json:"display_name,omitempty"`
	Verified       bool       `json:"verified"`
	FollowersCount int        `json:"followers_count"`
}

// AppendResult reports how an append batch was absorbed by the event log.
type AppendResult struct {
	Appended   int `json:"appended"`
	Duplicates int `json:"duplicates"`
}

// ChangeEventRepository is the append-only event log. The log is never mutated or
// deleted; behavioral classification is a pure projection over it.
type ChangeEventRepository interface {
	// Append inserts events, silently absorbing any whose (run, handle, type) key
	// is already present.
	Append(ctx context.Context, events []ChangeEvent) (AppendResult, error)

	// ListByTarget returns a page of events for a target, most recent first,
	// along with the total event count.
	ListByTarget(ctx context.Context, targetID string, limit, offset int) ([]ChangeEvent, int, error)

	// ListForClassification returns all events for a target ordered by occurrence
	// ascending, for the pattern classifier.
	ListForClassification(ctx context.Context, targetID string) ([]ChangeEvent, error)
}
