package aggregate

import (
	"github.com/moodlens/moodlens-backend/internal/emotion"
)

// Aggregator maintains a Summary incrementally. It keeps a running sum of
// confidences in arrival order rather than a running mean, so Summary() is
// identical to Summarize over the same sequence.
//
// Aggregator is not safe for concurrent use; owners serialize access.
type Aggregator struct {
	counts [7]int
	sum    float64
	total  int

	ring [RecentLimit]emotion.Sample
	next int
}

// NewAggregator returns an empty aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Add folds one sample into the aggregate in O(1)
func (a *Aggregator) Add(s emotion.Sample) error {
	if err := s.Validate(); err != nil {
		return err
	}
	a.counts[s.Label.Index()]++
	a.sum += s.Confidence
	a.total++

	a.ring[a.next] = s
	a.next = (a.next + 1) % RecentLimit
	return nil
}

// Reset discards all state
func (a *Aggregator) Reset() {
	*a = Aggregator{}
}

// Total returns the number of samples folded in
func (a *Aggregator) Total() int {
	return a.total
}

// Dominant returns the current dominant label, or emotion.None when empty
func (a *Aggregator) Dominant() emotion.Label {
	return dominant(a.counts)
}

// Summary materializes the current aggregate
func (a *Aggregator) Summary() Summary {
	n := min(RecentLimit, a.total)
	recent := make([]emotion.Sample, 0, n)
	pos := a.next
	for i := 0; i < n; i++ {
		pos = (pos - 1 + RecentLimit) % RecentLimit
		recent = append(recent, a.ring[pos])
	}
	return build(a.counts, a.sum, a.total, recent)
}
