// Package stats maintains per-frame and cumulative detection tallies.
package stats

import (
	"sort"
	"sync"

	"github.com/dj-oyu/yolo-live-monitor/pkg/types"
)

// Tally maps a class label to a detection count.
type Tally map[string]int

// Aggregator folds per-frame label lists into a running cumulative tally.
// It is safe for concurrent use: the capture pipeline updates it from a
// background goroutine while HTTP handlers read and reset it.
type Aggregator struct {
	mu         sync.Mutex
	cumulative Tally
	firstSeen  map[string]int // label -> insertion rank since last reset
	seq        int
}

// New creates an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{
		cumulative: make(Tally),
		firstSeen:  make(map[string]int),
	}
}

// Update counts the labels of one frame and folds the result into the
// cumulative tally. Each entry in labels is one detected instance, so
// duplicates are meaningful. An empty input leaves the cumulative tally
// untouched and returns an empty frame tally. Both returned tallies are
// snapshots; later updates do not modify them.
func (a *Aggregator) Update(labels []string) (Tally, Tally) {
	frame := make(Tally, len(labels))
	for _, label := range labels {
		frame[label]++
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for label, count := range frame {
		if _, ok := a.firstSeen[label]; !ok {
			a.firstSeen[label] = a.seq
			a.seq++
		}
		a.cumulative[label] += count
	}

	return frame, a.cumulativeCopyLocked()
}

// Reset clears the cumulative tally. Frame tallies already handed to callers
// are unaffected. Returns the (empty) cumulative tally.
func (a *Aggregator) Reset() Tally {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cumulative = make(Tally)
	a.firstSeen = make(map[string]int)
	a.seq = 0
	return make(Tally)
}

// Cumulative returns a snapshot of the cumulative tally.
func (a *Aggregator) Cumulative() Tally {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cumulativeCopyLocked()
}

// Total returns the sum of all cumulative counts.
func (a *Aggregator) Total() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	total := 0
	for _, count := range a.cumulative {
		total += count
	}
	return total
}

// Distinct returns the number of distinct labels in the cumulative tally.
func (a *Aggregator) Distinct() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.cumulative)
}

// Top returns the n highest-count cumulative entries, descending by count.
// Ties break by first-seen order so the chart is stable between redraws.
func (a *Aggregator) Top(n int) []types.TallyEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	entries := make([]types.TallyEntry, 0, len(a.cumulative))
	for label, count := range a.cumulative {
		entries = append(entries, types.TallyEntry{Label: label, Count: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return a.firstSeen[entries[i].Label] < a.firstSeen[entries[j].Label]
	})

	if n >= 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

func (a *Aggregator) cumulativeCopyLocked() Tally {
	snapshot := make(Tally, len(a.cumulative))
	for label, count := range a.cumulative {
		snapshot[label] = count
	}
	return snapshot
}

// FrameEntries counts the labels of a single frame and returns the tally as
// ordered entries, one per distinct label in first-appearance order.
func FrameEntries(labels []string) []types.TallyEntry {
	counts := make(map[string]int, len(labels))
	order := make([]string, 0, len(labels))
	for _, label := range labels {
		if _, ok := counts[label]; !ok {
			order = append(order, label)
		}
		counts[label]++
	}

	entries := make([]types.TallyEntry, len(order))
	for i, label := range order {
		entries[i] = types.TallyEntry{Label: label, Count: counts[label]}
	}
	return entries
}
