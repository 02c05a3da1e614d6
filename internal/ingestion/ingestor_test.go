package ingestion

import (
	"testing"
)

func TestNormalizeHandle(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "plain", raw: "alice", want: "alice"},
		{name: "uppercase", raw: "Alice", want: "alice"},
		{name: "at prefix", raw: "@alice", want: "alice"},
		{name: "surrounding whitespace", raw: "  alice  ", want: "alice"},
		{name: "trailing slash", raw: "alice/", want: "alice"},
		{name: "combined decoration", raw: " @Alice/ ", want: "alice"},
		{name: "empty", raw: "", wantErr: true},
		{name: "decoration only", raw: " @/ ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeHandle(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %q", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("NormalizeHandle(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestFoldDeduplicatesOverlappingPages(t *testing.T) {
	pages := [][]RawProfile{
		{
			{Handle: "alice", FollowersCount: 10},
			{Handle: "bob", FollowersCount: 5},
		},
		{
			// Page boundary overlap: bob re-served with fresher data.
			{Handle: "bob", FollowersCount: 7},
			{Handle: "carol"},
		},
	}

	result := Fold(pages)

	if len(result.Profiles) != 3 {
		t.Fatalf("expected 3 profiles, got %d", len(result.Profiles))
	}
	if len(result.Collisions) != 0 {
		t.Fatalf("expected no collisions, got %d", len(result.Collisions))
	}
	if result.Profiles["bob"].FollowersCount != 7 {
		t.Errorf("expected later occurrence of bob to win, got followers_count=%d",
			result.Profiles["bob"].FollowersCount)
	}
}

func TestFoldMergesDecorationVariants(t *testing.T) {
	pages := [][]RawProfile{
		{
			{Handle: "Alice", FollowersCount: 10},
		},
		{
			// Same account, re-served with an @ prefix and fresher data.
			{Handle: "@alice", FollowersCount: 12},
		},
	}

	result := Fold(pages)

	if len(result.Collisions) != 0 {
		t.Fatalf("decoration variants are one identity, got collisions %+v", result.Collisions)
	}
	if len(result.Profiles) != 1 {
		t.Fatalf("expected 1 profile, got %d", len(result.Profiles))
	}
	if result.Profiles["alice"].FollowersCount != 12 {
		t.Errorf("expected later variant to win, got followers_count=%d",
			result.Profiles["alice"].FollowersCount)
	}
}

func TestFoldRejectsIdentityCollision(t *testing.T) {
	pages := [][]RawProfile{
		{
			{Handle: "alice", DisplayName: "First Alice"},
		},
		{
			// A separator-bearing raw handle is a different source identity
			// even though normalization lands it on the same key.
			{Handle: "/alice", DisplayName: "Second Alice"},
		},
	}

	result := Fold(pages)

	if len(result.Profiles) != 1 {
		t.Fatalf("expected 1 profile, got %d", len(result.Profiles))
	}
	if result.Profiles["alice"].DisplayName != "First Alice" {
		t.Errorf("expected first-seen profile to be kept, got %q", result.Profiles["alice"].DisplayName)
	}

	if len(result.Collisions) != 1 {
		t.Fatalf("expected 1 collision, got %d", len(result.Collisions))
	}
	c := result.Collisions[0]
	if c.Key != "alice" || c.KeptRaw != "alice" || c.RejectedRaw != "/alice" {
		t.Errorf("unexpected collision record: %+v", c)
	}
}

func TestFoldRejectsMalformedHandle(t *testing.T) {
	pages := [][]RawProfile{
		{{Handle: "  "}, {Handle: "bob"}},
	}

	result := Fold(pages)

	if len(result.Profiles) != 1 {
		t.Fatalf("expected the well-formed profile to survive, got %d", len(result.Profiles))
	}
	if _, ok := result.Profiles["bob"]; !ok {
		t.Error("bob missing from fold result")
	}
	if len(result.Malformed) != 1 || result.Malformed[0] != "  " {
		t.Errorf("unexpected malformed list: %q", result.Malformed)
	}
}

func TestFoldEmptyPages(t *testing.T) {
	result := Fold([][]RawProfile{{}, {}})
	if len(result.Profiles) != 0 {
		t.Errorf("expected empty result, got %d profiles", len(result.Profiles))
	}
}
