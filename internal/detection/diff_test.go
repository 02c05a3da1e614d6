package detection

import (
	"reflect"
	"testing"

	"github.com/JoeProAI/followlytics/internal/models"
)

func set(handles ...string) map[string]bool {
	s := make(map[string]bool, len(handles))
	for _, h := range handles {
		s[h] = true
	}
	return s
}

func TestDiffBasicChanges(t *testing.T) {
	prev := set("a", "b", "c")
	cur := set("b", "c", "d")

	result := Diff(prev, cur, true, nil)

	if result.Skipped {
		t.Fatal("trusted diff must not be skipped")
	}
	if !reflect.DeepEqual(result.Removed, []string{"a"}) {
		t.Errorf("Removed = %v, want [a]", result.Removed)
	}
	if !reflect.DeepEqual(result.Added, []string{"d"}) {
		t.Errorf("Added = %v, want [d]", result.Added)
	}
	if len(result.Readded) != 0 {
		t.Errorf("Readded = %v, want empty", result.Readded)
	}
}

func TestDiffSplitsRefollowFromNewFollow(t *testing.T) {
	prev := set("a")
	cur := set("a", "b", "c")

	known := map[string]models.FollowerStatus{
		"b": models.FollowerStatusUnfollowed,
	}

	result := Diff(prev, cur, true, known)

	if !reflect.DeepEqual(result.Readded, []string{"b"}) {
		t.Errorf("Readded = %v, want [b]", result.Readded)
	}
	if !reflect.DeepEqual(result.Added, []string{"c"}) {
		t.Errorf("Added = %v, want [c]", result.Added)
	}
}

func TestDiffUntrustedSkips(t *testing.T) {
	prev := set("a", "b", "c")
	cur := set("a")

	result := Diff(prev, cur, false, nil)

	if !result.Skipped {
		t.Fatal("untrusted diff must be skipped")
	}
	if result.Removed != nil || result.Added != nil || result.Readded != nil {
		t.Errorf("skipped diff must carry no changes, got %+v", result)
	}
}

func TestDiffIdenticalSets(t *testing.T) {
	prev := set("a", "b")
	cur := set("a", "b")

	result := Diff(prev, cur, true, nil)

	if len(result.Removed)+len(result.Added)+len(result.Readded) != 0 {
		t.Errorf("identical sets must produce no changes, got %+v", result)
	}
}

// The reconciliation law: prev plus added handles equals cur plus removed handles.
func TestDiffReconciles(t *testing.T) {
	prev := set("a", "b", "c", "d", "e")
	cur := set("c", "d", "e", "f", "g")
	known := map[string]models.FollowerStatus{
		"f": models.FollowerStatusUnfollowed,
	}

	result := Diff(prev, cur, true, known)

	union := func(base map[string]bool, extra ...[]string) map[string]bool {
		out := make(map[string]bool)
		for h := range base {
			out[h] = true
		}
		for _, list := range extra {
			for _, h := range list {
				out[h] = true
			}
		}
		return out
	}

	left := union(prev, result.Added, result.Readded)
	right := union(cur, result.Removed)

	if !reflect.DeepEqual(left, right) {
		t.Errorf("prev+added != cur+removed: %v vs %v", left, right)
	}
}
