package models

import "time"

// BehavioralProfile holds per-follower counters derived from the event log.
// It is recomputed on demand and never independently mutated.
type BehavioralProfile struct {
	Handle         string     `json:"handle"`
	DisplayName    string     `json:"display_name,omitempty"`
	UnfollowCount  int        `json:"unfollow_count"`
	RefollowCount  int        `json:"refollow_count"`
	LastUnfollowAt *time.Time `json:"last_unfollow_at,omitempty"`
	DaysFollowed   float64    `json:"days_followed,omitempty"` // follow-to-unfollow gap for the most recent pair
}

// PatternReport groups followers by longitudinal behavior for the reporting layer.
type PatternReport struct {
	TargetID          string              `json:"target_id"`
	SerialUnfollowers []BehavioralProfile `json:"serial_unfollowers"`
	QuickUnfollowers  []BehavioralProfile `json:"quick_unfollowers"`
	LoyalRefollowers  []BehavioralProfile `json:"loyal_refollowers"`
	GeneratedAt       time.Time           `json:"generated_at"`
}
