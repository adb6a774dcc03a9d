package monitor

import (
	"sort"

	"github.com/pipewatch/pipewatch/internal/pipes"
)

// Detector remembers the previous tick's name set and turns each new
// snapshot into added/removed deltas. Only the loop goroutine touches it.
type Detector struct {
	previous map[string]struct{}
}

func NewDetector() *Detector {
	return &Detector{previous: make(map[string]struct{})}
}

// Diff compares the snapshot against the previous tick. Added and removed
// are always disjoint and sorted so event order is stable. The snapshot
// becomes the new baseline.
func (d *Detector) Diff(snapshot map[string]pipes.Info) (added, removed []string) {
	for name := range snapshot {
		if _, ok := d.previous[name]; !ok {
			added = append(added, name)
		}
	}
	for name := range d.previous {
		if _, ok := snapshot[name]; !ok {
			removed = append(removed, name)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)

	next := make(map[string]struct{}, len(snapshot))
	for name := range snapshot {
		next[name] = struct{}{}
	}
	d.previous = next
	return added, removed
}

// Tracked reports how many names the baseline currently holds.
func (d *Detector) Tracked() int { return len(d.previous) }
