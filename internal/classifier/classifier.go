package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/JoeProAI/followlytics/internal/models"
)

const hoursPerDay = 24

// Classifier projects the append-only event log into behavioral pattern groups.
// Classification is a pure function of the log; nothing here writes.
type Classifier struct {
	events          models.ChangeEventRepository
	quickWindowDays int
	logger          *slog.Logger
}

func NewClassifier(events models.ChangeEventRepository, quickWindowDays int, logger *slog.Logger) *Classifier {
	return &Classifier{
		events:          events,
		quickWindowDays: quickWindowDays,
		logger:          logger,
	}
}

// Classify builds the pattern report for a target from its full event history.
func (c *Classifier) Classify(ctx context.Context, targetID string) (*models.PatternReport, error) {
	events, err := c.events.ListForClassification(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load events for classification: %w", err)
	}

	report := ClassifyEvents(events, c.quickWindowDays)
	report.TargetID = targetID

	c.logger.Debug("classified target",
		"target_id", targetID,
		"events", len(events),
		"serial", len(report.SerialUnfollowers),
		"quick", len(report.QuickUnfollowers),
		"loyal", len(report.LoyalRefollowers))

	return report, nil
}

// followerHistory is the per-handle accumulator walked over the ordered log.
type followerHistory struct {
	profile       models.BehavioralProfile
	lastFollowAt  *time.Time
	quickUnfollow bool
	// loyal means at least one refollow with no unfollow after it
	loyalSoFar bool
}

// ClassifyEvents walks events (which must be ordered by occurrence ascending)
// and groups handles into the three behavioral patterns:
//
//   - serial: unfollowed the target two or more times
//   - quick: most recent unfollow landed within the window of the follow
//     preceding it
//   - loyal: refollowed at least once and has not unfollowed since
//
// A handle can land in more than one group.
func ClassifyEvents(events []models.ChangeEvent, quickWindowDays int) *models.PatternReport {
	histories := make(map[string]*followerHistory)

	for _, event := range events {
		h, ok := histories[event.Handle]
		if !ok {
			h = &followerHistory{profile: models.BehavioralProfile{Handle: event.Handle}}
			histories[event.Handle] = h
		}
		if event.DisplayName != "" {
			h.profile.DisplayName = event.DisplayName
		}

		switch event.Type {
		case models.ChangeTypeNewFollow:
			at := event.OccurredAt
			h.lastFollowAt = &at

		case models.ChangeTypeRefollow:
			h.profile.RefollowCount++
			h.loyalSoFar = true
			at := event.OccurredAt
			h.lastFollowAt = &at

		case models.ChangeTypeUnfollow:
			h.profile.UnfollowCount++
			h.loyalSoFar = false
			at := event.OccurredAt
			h.profile.LastUnfollowAt = &at

			// Quickness is a property of the most recent unfollow only.
			h.quickUnfollow = false
			if h.lastFollowAt != nil {
				days := event.OccurredAt.Sub(*h.lastFollowAt).Hours() / hoursPerDay
				h.profile.DaysFollowed = days
				h.quickUnfollow = days <= float64(quickWindowDays)
				h.lastFollowAt = nil
			}
		}
	}

	report := &models.PatternReport{
		SerialUnfollowers: []models.BehavioralProfile{},
		QuickUnfollowers:  []models.BehavioralProfile{},
		LoyalRefollowers:  []models.BehavioralProfile{},
		GeneratedAt:       time.Now(),
	}

	handles := make([]string, 0, len(histories))
	for handle := range histories {
		handles = append(handles, handle)
	}
	sort.Strings(handles)

	for _, handle := range handles {
		h := histories[handle]
		if h.profile.UnfollowCount >= 2 {
			report.SerialUnfollowers = append(report.SerialUnfollowers, h.profile)
		}
		if h.quickUnfollow {
			report.QuickUnfollowers = append(report.QuickUnfollowers, h.profile)
		}
		if h.loyalSoFar {
			report.LoyalRefollowers = append(report.LoyalRefollowers, h.profile)
		}
	}

	return report
}
