package detection

import (
	"sort"

	"github.com/JoeProAI/followlytics/internal/models"
)

// DiffResult is the set difference between the stored snapshot and the current
// extraction. Added handles are split by history: a handle with a stored
// unfollowed record is a refollow, not a new follow.
type DiffResult struct {
	Skipped bool

	Removed []string // in prev, not in cur
	Added   []string // in cur, not in prev, never seen before
	Readded []string // in cur, not in prev, previously unfollowed
}

// Diff computes the follower-set changes between the previous active snapshot
// and the current extraction. When the run is untrusted the diff is skipped
// entirely and the result carries no changes.
//
// known holds the stored status of every handle in the symmetric difference;
// handles absent from it are treated as never seen.
func Diff(prev, cur map[string]bool, trusted bool, known map[string]models.FollowerStatus) DiffResult {
	if !trusted {
		return DiffResult{Skipped: true}
	}

	var result DiffResult

	for handle := range prev {
		if !cur[handle] {
			result.Removed = append(result.Removed, handle)
		}
	}

	for handle := range cur {
		if prev[handle] {
			continue
		}
		if known[handle] == models.FollowerStatusUnfollowed {
			result.Readded = append(result.Readded, handle)
		} else {
			result.Added = append(result.Added, handle)
		}
	}

	sort.Strings(result.Removed)
	sort.Strings(result.Added)
	sort.Strings(result.Readded)

	return result
}
