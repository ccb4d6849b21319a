package universe

import (
	"fmt"
	"sort"
)

// Tracker is a multiset of the priority levels currently held by
// registered sources. It answers "what is the winning priority" and
// "how many sources transmit at it" without scanning the registry.
//
// The tracker is seeded with one synthetic unit at the default priority
// so that an empty universe still has a well-defined winning priority.
// The seed is invisible to SourceCount and TotalSources.
//
// Counts are kept per distinct level (not per source) in a small sorted
// vector: the value domain is only 0-200, so ordered lookup stays cheap
// and removing the single highest-priority source reveals the next
// surviving level without a registry rescan.
type Tracker struct {
	levels []level // ascending by priority
	def    uint8
}

type level struct {
	priority uint8
	count    int
}

// NewTracker returns a tracker seeded at the default priority.
func NewTracker(defaultPriority uint8) *Tracker {
	t := &Tracker{def: defaultPriority}
	t.Add(defaultPriority)
	return t
}

// Add increments the source count at priority p.
func (t *Tracker) Add(p uint8) {
	i := t.search(p)
	if i < len(t.levels) && t.levels[i].priority == p {
		t.levels[i].count++
		return
	}
	t.levels = append(t.levels, level{})
	copy(t.levels[i+1:], t.levels[i:])
	t.levels[i] = level{priority: p, count: 1}
}

// Remove decrements the source count at priority p, dropping the level
// when it reaches zero. Removing an untracked level is a programming
// error: every Remove must pair with a prior Add.
func (t *Tracker) Remove(p uint8) {
	i := t.search(p)
	if i == len(t.levels) || t.levels[i].priority != p {
		panic(fmt.Sprintf("universe: Remove of untracked priority %d", p))
	}
	t.levels[i].count--
	if t.levels[i].count <= 0 {
		t.levels = append(t.levels[:i], t.levels[i+1:]...)
	}
}

// Winning returns the highest priority level present. The seed
// guarantees at least one level, so Winning never fails.
func (t *Tracker) Winning() uint8 {
	return t.levels[len(t.levels)-1].priority
}

// SourceCount returns the number of real sources transmitting at the
// winning priority. The synthetic seed is subtracted when the winning
// level is the default, so an empty universe reads as zero.
func (t *Tracker) SourceCount() int {
	top := t.levels[len(t.levels)-1]
	if top.priority == t.def {
		return top.count - 1
	}
	return top.count
}

// TotalSources returns the number of real sources across all levels.
func (t *Tracker) TotalSources() int {
	n := -1 // discount the seed
	for _, l := range t.levels {
		n += l.count
	}
	return n
}

func (t *Tracker) search(p uint8) int {
	return sort.Search(len(t.levels), func(i int) bool { return t.levels[i].priority >= p })
}
