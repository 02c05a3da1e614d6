package models

import (
	"context"
	"time"
)

// FollowerStatus represents whether a follower is currently in the target's follower set.
type FollowerStatus string

const (
	FollowerStatusActive     FollowerStatus = "active"
	FollowerStatusUnfollowed FollowerStatus = "unfollowed"
)

// FollowerRecord is one (target, follower) pair with denormalized profile fields.
// Handle is the normalized identity key and is unique within a target.
type FollowerRecord struct {
	TargetID       string         `json:"target_id"`
	Handle         string         `json:"handle"`
	DisplayName    string         `json:"display_name,omitempty"`
	Bio            string         `json:"bio,omitempty"`
	Verified       bool           `json:"verified"`
	FollowersCount int            `json:"followers_count"`
	FollowingCount int            `json:"following_count"`
	AvatarURL      string         `json:"avatar_url,omitempty"`
	Location       string         `json:"location,omitempty"`
	Status         FollowerStatus `json:"status"`
	FirstSeenAt    time.Time      `json:"first_seen_at"`
	LastSeenAt     time.Time      `json:"last_seen_at"`
	UnfollowedAt   *time.Time     `json:"unfollowed_at,omitempty"`
}

// FollowerRepository is the snapshot store. UpsertActive and MarkUnfollowed are the
// only mutators of follower status; both are driven exclusively by the run lifecycle
// manager after a trusted diff.
type FollowerRepository interface {
	// ActiveHandles returns the set of currently active follower handles for a target.
	// This is the baseline snapshot the next run diffs against.
	ActiveHandles(ctx context.Context, targetID string) (map[string]bool, error)

	// CountActive returns the number of active followers for a target.
	CountActive(ctx context.Context, targetID string) (int, error)

	// GetByHandles returns the stored records for the given handles, keyed by handle.
	// Handles with no record are absent from the result.
	GetByHandles(ctx context.Context, targetID string, handles []string) (map[string]FollowerRecord, error)

	// UpsertActive writes one batch of the new snapshot: unknown handles are created
	// active with first_seen = now; known handles get last_seen refreshed and status
	// forced back to active. first_seen is never overwritten.
	UpsertActive(ctx context.Context, targetID string, records []FollowerRecord) error

	// MarkUnfollowed flips the given handles to unfollowed, stamping unfollowed_at.
	MarkUnfollowed(ctx context.Context, targetID string, handles []string, at time.Time) error

	// ListUnfollowed returns unfollowed records, most recent unfollow first.
	ListUnfollowed(ctx context.Context, targetID string, limit, offset int) ([]FollowerRecord, error)
}
