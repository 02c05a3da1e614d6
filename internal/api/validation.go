package api

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/JoeProAI/followlytics/internal/ingestion"
)

const maxHandleLength = 64

// ValidateTarget checks a target registration request. The returned handle is
// the normalized form that will be stored.
func ValidateTarget(handle, schedule string) (string, error) {
	if handle == "" {
		return "", fmt.Errorf("handle is required")
	}
	if len(handle) > maxHandleLength {
		return "", fmt.Errorf("handle exceeds %d characters", maxHandleLength)
	}

	normalized, err := ingestion.NormalizeHandle(handle)
	if err != nil {
		return "", fmt.Errorf("invalid handle: %w", err)
	}

	if schedule != "" {
		if _, err := cron.ParseStandard(schedule); err != nil {
			return "", fmt.Errorf("invalid scan schedule %q: %w", schedule, err)
		}
	}

	return normalized, nil
}

// parsePositive bounds a pagination parameter, falling back when absent or junk.
func parsePositive(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	n := 0
	for _, c := range raw {
		if c < '0' || c > '9' {
			return fallback
		}
		n = n*10 + int(c-'0')
		if n > max {
			return max
		}
	}
	if n == 0 {
		return fallback
	}
	return n
}
