// Package timeline coalesces an emotion stream into episodes: maximal runs of
// one label with no inter-sample gap above a tolerance.
package timeline

import (
	"cmp"
	"slices"
	"time"

	"github.com/moodlens/moodlens-backend/internal/emotion"
)

const (
	// DefaultGap is the largest pause that still extends an episode
	DefaultGap = 5 * time.Second
	// MaxGap bounds a caller supplied gap
	MaxGap = 24 * time.Hour
	// UnsetGap asks for the configured default. A zero gap only merges
	// samples that share a timestamp.
	UnsetGap time.Duration = -1

	// DefaultFlowWindow and DefaultFlowLimit bound the emotion flow view
	DefaultFlowWindow = 50
	DefaultFlowLimit  = 5
)

// Episode is a run of same-label samples
type Episode struct {
	ID                string        `json:"id"` // id of the first sample
	Label             emotion.Label `json:"emotion"`
	StartTime         int64         `json:"startTime"`
	EndTime           int64         `json:"endTime"`
	Count             int           `json:"count"`
	AverageConfidence float64       `json:"avgConfidence"`
}

// Duration is the span between the first and last sample of the episode
func (e Episode) Duration() time.Duration {
	return time.Duration(e.EndTime-e.StartTime) * time.Millisecond
}

// Segment sorts a copy of samples by timestamp (stable, so equal timestamps
// keep arrival order) and coalesces them into episodes. A label change always
// starts a new episode; a same-label sample starts one when it lies more than
// gap after the current episode's end. Episodes are returned most recent first.
func Segment(samples []emotion.Sample, gap time.Duration) []Episode {
	if len(samples) == 0 {
		return []Episode{}
	}

	sorted := slices.Clone(samples)
	slices.SortStableFunc(sorted, func(a, b emotion.Sample) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})

	gapMs := gap.Milliseconds()
	episodes := make([]Episode, 0, 8)
	var cur *Episode

	for _, s := range sorted {
		if cur == nil || cur.Label != s.Label || s.Timestamp-cur.EndTime > gapMs {
			if cur != nil {
				episodes = append(episodes, *cur)
			}
			cur = &Episode{
				ID:                s.ID,
				Label:             s.Label,
				StartTime:         s.Timestamp,
				EndTime:           s.Timestamp,
				Count:             1,
				AverageConfidence: s.Confidence,
			}
			continue
		}

		cur.EndTime = s.Timestamp
		cur.Count++
		cur.AverageConfidence = (cur.AverageConfidence*float64(cur.Count-1) + s.Confidence) / float64(cur.Count)
	}
	episodes = append(episodes, *cur)

	slices.Reverse(episodes)
	return episodes
}

// Flow lists the distinct labels among the last window samples (arrival
// order) in first-seen order, keeping at most limit of them.
func Flow(samples []emotion.Sample, window, limit int) []emotion.Label {
	if window <= 0 || limit <= 0 {
		return []emotion.Label{}
	}
	tail := samples[max(0, len(samples)-window):]

	seen := make(map[emotion.Label]struct{}, limit)
	flow := make([]emotion.Label, 0, limit)
	for _, s := range tail {
		if _, dup := seen[s.Label]; dup {
			continue
		}
		seen[s.Label] = struct{}{}
		flow = append(flow, s.Label)
		if len(flow) == limit {
			break
		}
	}
	return flow
}
