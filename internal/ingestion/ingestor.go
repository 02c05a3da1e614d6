package ingestion

import (
	"fmt"
	"strings"
)

// RawProfile is one extracted follower profile as delivered by the extraction
// source. Handle is the raw handle as scraped; normalization happens here.
type RawProfile struct {
	Handle         string `json:"handle"`
	DisplayName    string `json:"display_name,omitempty"`
	Bio            string `json:"bio,omitempty"`
	Verified       bool   `json:"verified"`
	FollowersCount int    `json:"followers_count"`
	FollowingCount int    `json:"following_count"`
	AvatarURL      string `json:"avatar_url,omitempty"`
	Location       string `json:"location,omitempty"`
}

// Collision records two raw handles, distinct beyond case and decoration,
// that normalized to the same key. The profile carrying RejectedRaw was
// dropped; the first-seen raw form won.
type Collision struct {
	Key         string
	KeptRaw     string
	RejectedRaw string
}

// Result is the outcome of folding all pages of a run into one canonical set.
type Result struct {
	// Profiles is keyed by normalized handle. Values carry the raw profile
	// fields of the winning occurrence.
	Profiles map[string]RawProfile

	// Collisions lists every rejected profile whose raw handle named a
	// different source identity than the kept one.
	Collisions []Collision

	// Malformed lists raw handles that normalized to an empty key. The
	// profiles were rejected; the fold itself carries on.
	Malformed []string
}

// NormalizeHandle maps a raw handle to its canonical identity key: lowercased,
// whitespace and decoration trimmed. An empty result is an error rather than a
// silent drop.
func NormalizeHandle(raw string) (string, error) {
	h := strings.TrimSpace(raw)
	h = strings.TrimPrefix(h, "@")
	h = strings.Trim(h, " \t /")
	h = strings.ToLower(h)
	if h == "" {
		return "", fmt.Errorf("handle %q normalizes to empty", raw)
	}
	return h, nil
}

// Fold collapses the pages of a run into one profile per identity key.
//
// Pages overlap in practice: paginated extraction re-serves profiles near page
// boundaries, and the same account may be re-served with different decoration
// ("Alice", "@alice"). Re-seeing the same account is expected and the later
// occurrence wins (it is at least as fresh). Two raw handles that still differ
// after case folding and decoration stripping but land on the same key are an
// identity collision: the first-seen profile is kept, the later one is
// rejected and reported, never merged. A raw handle that normalizes to an
// empty key rejects only that profile, not the whole fold.
func Fold(pages [][]RawProfile) Result {
	result := Result{Profiles: make(map[string]RawProfile)}
	rawByKey := make(map[string]string)

	for _, page := range pages {
		for _, profile := range page {
			key, err := NormalizeHandle(profile.Handle)
			if err != nil {
				result.Malformed = append(result.Malformed, profile.Handle)
				continue
			}

			kept, seen := rawByKey[key]
			if seen && !sameAccount(kept, profile.Handle) {
				result.Collisions = append(result.Collisions, Collision{
					Key:         key,
					KeptRaw:     kept,
					RejectedRaw: profile.Handle,
				})
				continue
			}

			rawByKey[key] = profile.Handle
			result.Profiles[key] = profile
		}
	}

	return result
}

// sameAccount reports whether two raw handles are case or decoration variants
// of one account. Raw handles that also differ in separator characters name
// distinct source identities even when they share a key.
func sameAccount(a, b string) bool {
	return foldVariants(a) == foldVariants(b)
}

func foldVariants(raw string) string {
	h := strings.TrimSpace(raw)
	h = strings.TrimPrefix(h, "@")
	return strings.ToLower(h)
}
