// Package aggregate summarizes an emotion stream: per-label counts, the
// dominant label, the mean confidence and the most recent samples.
package aggregate

import (
	"github.com/moodlens/moodlens-backend/internal/emotion"
)

// RecentLimit is the number of samples kept in Summary.Recent
const RecentLimit = 10

// Summary is the derived view of a sample sequence
type Summary struct {
	Dominant          emotion.Label         `json:"dominantEmotion,omitempty"`
	Counts            map[emotion.Label]int `json:"counts"`
	AverageConfidence *float64              `json:"averageConfidence"`
	TotalSamples      int                   `json:"totalSamples"`
	Recent            []emotion.Sample      `json:"recentSamples"` // most recent first
}

// Empty reports whether the summary was built from zero samples
func (s Summary) Empty() bool {
	return s.TotalSamples == 0
}

// Average returns the mean confidence; ok is false for an empty summary
func (s Summary) Average() (avg float64, ok bool) {
	if s.AverageConfidence == nil {
		return 0, false
	}
	return *s.AverageConfidence, true
}

// Summarize recomputes a Summary from scratch in one pass. Samples with a label
// outside the label set are ignored.
func Summarize(samples []emotion.Sample) Summary {
	var counts [7]int
	var sum float64
	total := 0

	for _, s := range samples {
		idx := s.Label.Index()
		if idx < 0 {
			continue
		}
		counts[idx]++
		sum += s.Confidence
		total++
	}

	recent := make([]emotion.Sample, 0, min(RecentLimit, total))
	for i := len(samples) - 1; i >= 0 && len(recent) < RecentLimit; i-- {
		if samples[i].Label.Valid() {
			recent = append(recent, samples[i])
		}
	}

	return build(counts, sum, total, recent)
}

func build(counts [7]int, sum float64, total int, recent []emotion.Sample) Summary {
	labels := emotion.Labels()
	summary := Summary{
		Dominant:     emotion.None,
		Counts:       make(map[emotion.Label]int, len(labels)),
		TotalSamples: total,
		Recent:       recent,
	}
	for i, l := range labels {
		summary.Counts[l] = counts[i]
	}
	if total == 0 {
		return summary
	}

	avg := sum / float64(total)
	summary.AverageConfidence = &avg
	summary.Dominant = dominant(counts)
	return summary
}

// dominant picks the strictly greatest count. Walking labels in canonical order
// and replacing only on a strictly greater count gives ties to the earlier label.
func dominant(counts [7]int) emotion.Label {
	labels := emotion.Labels()
	best, bestCount := emotion.None, 0
	for i, c := range counts {
		if c > bestCount {
			best, bestCount = labels[i], c
		}
	}
	return best
}
