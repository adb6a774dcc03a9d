package monitor

import (
	"sort"
	"testing"

	"github.com/pipewatch/pipewatch/internal/pipes"
)

func snapOf(names ...string) map[string]pipes.Info {
	snap := make(map[string]pipes.Info, len(names))
	for _, n := range names {
		snap[n] = pipes.New(n)
	}
	return snap
}

func TestDetectorFirstTickAddsEverything(t *testing.T) {
	d := NewDetector()

	added, removed := d.Diff(snapOf("b", "a", "c"))
	if want := []string{"a", "b", "c"}; !equalStrings(added, want) {
		t.Errorf("added = %v, want %v", added, want)
	}
	if len(removed) != 0 {
		t.Errorf("removed = %v, want none", removed)
	}
	if d.Tracked() != 3 {
		t.Errorf("tracked = %d, want 3", d.Tracked())
	}
}

func TestDetectorSteadyStateIsQuiet(t *testing.T) {
	d := NewDetector()
	d.Diff(snapOf("x", "y"))

	added, removed := d.Diff(snapOf("x", "y"))
	if len(added) != 0 || len(removed) != 0 {
		t.Errorf("unchanged set produced deltas: added=%v removed=%v", added, removed)
	}
}

func TestDetectorAddAndRemove(t *testing.T) {
	d := NewDetector()
	d.Diff(snapOf("keep", "drop"))

	added, removed := d.Diff(snapOf("keep", "new1", "new2"))
	if want := []string{"new1", "new2"}; !equalStrings(added, want) {
		t.Errorf("added = %v, want %v", added, want)
	}
	if want := []string{"drop"}; !equalStrings(removed, want) {
		t.Errorf("removed = %v, want %v", removed, want)
	}
}

func TestDetectorEmptySnapshotRemovesAll(t *testing.T) {
	d := NewDetector()
	d.Diff(snapOf("a", "b"))

	added, removed := d.Diff(snapOf())
	if len(added) != 0 {
		t.Errorf("added = %v, want none", added)
	}
	if want := []string{"a", "b"}; !equalStrings(removed, want) {
		t.Errorf("removed = %v, want %v", removed, want)
	}
	if d.Tracked() != 0 {
		t.Errorf("tracked = %d, want 0", d.Tracked())
	}
}

// The deltas plus the unchanged names must reconstruct the new set exactly,
// and added/removed never overlap.
func TestDetectorDeltasReconstructSet(t *testing.T) {
	sequences := [][][]string{
		{{"a"}, {"a", "b"}, {"b"}, {}, {"c", "d"}},
		{{"x", "y", "z"}, {"z"}, {"x", "y", "z"}, {"q"}},
	}

	for _, seq := range sequences {
		d := NewDetector()
		prev := map[string]struct{}{}

		for _, names := range seq {
			added, removed := d.Diff(snapOf(names...))

			inAdded := map[string]bool{}
			for _, n := range added {
				inAdded[n] = true
			}
			for _, n := range removed {
				if inAdded[n] {
					t.Fatalf("name %q in both added and removed", n)
				}
			}

			next := map[string]struct{}{}
			for n := range prev {
				next[n] = struct{}{}
			}
			for _, n := range added {
				next[n] = struct{}{}
			}
			for _, n := range removed {
				delete(next, n)
			}

			want := map[string]struct{}{}
			for _, n := range names {
				want[n] = struct{}{}
			}
			if len(next) != len(want) {
				t.Fatalf("reconstruction mismatch: got %v, want %v", keys(next), keys(want))
			}
			for n := range want {
				if _, ok := next[n]; !ok {
					t.Fatalf("reconstruction missing %q", n)
				}
			}
			prev = want
		}
	}
}

func equalStrings(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
