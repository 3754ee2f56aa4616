package aggregate

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodlens/moodlens-backend/internal/emotion"
)

func sample(id string, l emotion.Label, c float64, ts int64) emotion.Sample {
	return emotion.Sample{ID: id, Label: l, Confidence: c, Timestamp: ts}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)

	assert.True(t, s.Empty())
	assert.Equal(t, emotion.None, s.Dominant)
	assert.Nil(t, s.AverageConfidence)
	assert.Len(t, s.Counts, 7)
	for _, l := range emotion.Labels() {
		assert.Equal(t, 0, s.Counts[l], l)
	}
	assert.NotNil(t, s.Recent)
	assert.Empty(t, s.Recent)

	_, ok := s.Average()
	assert.False(t, ok)
}

func TestSummarize_CountsAndAverage(t *testing.T) {
	samples := []emotion.Sample{
		sample("1", emotion.Sad, 0.5, 0),
		sample("2", emotion.Happy, 0.9, 1),
		sample("3", emotion.Sad, 0.7, 2),
	}

	s := Summarize(samples)

	assert.Equal(t, emotion.Sad, s.Dominant)
	assert.Equal(t, 2, s.Counts[emotion.Sad])
	assert.Equal(t, 1, s.Counts[emotion.Happy])
	assert.Equal(t, 0, s.Counts[emotion.Angry])
	assert.Equal(t, 3, s.TotalSamples)
	avg, ok := s.Average()
	require.True(t, ok)
	assert.InDelta(t, (0.5+0.9+0.7)/3, avg, 1e-12)
}

func TestSummarize_TieBreakCanonicalOrder(t *testing.T) {
	var samples []emotion.Sample
	add := func(l emotion.Label, n int) {
		for i := 0; i < n; i++ {
			samples = append(samples, sample("", l, 0.5, int64(len(samples))))
		}
	}
	// sad arrives first but happy precedes it in canonical order
	add(emotion.Sad, 3)
	add(emotion.Neutral, 2)
	add(emotion.Happy, 3)

	for i := 0; i < 5; i++ {
		assert.Equal(t, emotion.Happy, Summarize(samples).Dominant)
	}
}

func TestSummarize_AnyLabelOvertakesNeutral(t *testing.T) {
	samples := []emotion.Sample{
		sample("1", emotion.Neutral, 0.5, 0),
		sample("2", emotion.Disgusted, 0.5, 1),
		sample("3", emotion.Disgusted, 0.5, 2),
	}
	assert.Equal(t, emotion.Disgusted, Summarize(samples).Dominant)
}

func TestSummarize_RecentMostRecentFirst(t *testing.T) {
	var samples []emotion.Sample
	for i := 0; i < 15; i++ {
		samples = append(samples, sample(string(rune('a'+i)), emotion.Happy, 0.5, int64(i)))
	}

	s := Summarize(samples)

	require.Len(t, s.Recent, RecentLimit)
	assert.Equal(t, int64(14), s.Recent[0].Timestamp)
	assert.Equal(t, int64(5), s.Recent[RecentLimit-1].Timestamp)

	short := Summarize(samples[:3])
	require.Len(t, short.Recent, 3)
	assert.Equal(t, int64(2), short.Recent[0].Timestamp)
}

func TestSummarize_IgnoresUnknownLabels(t *testing.T) {
	samples := []emotion.Sample{
		sample("1", emotion.Happy, 0.4, 0),
		sample("2", emotion.Label("bored"), 0.9, 1),
	}
	s := Summarize(samples)
	assert.Equal(t, 1, s.TotalSamples)
	require.Len(t, s.Recent, 1)
	assert.Equal(t, "1", s.Recent[0].ID)
}

func TestSummarize_CountsSumToTotal(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	labels := emotion.Labels()

	for round := 0; round < 50; round++ {
		n := 1 + rng.Intn(200)
		samples := make([]emotion.Sample, n)
		for i := range samples {
			samples[i] = sample("", labels[rng.Intn(len(labels))], rng.Float64(), int64(i))
		}

		s := Summarize(samples)
		sum := 0
		for _, c := range s.Counts {
			sum += c
		}
		assert.Equal(t, s.TotalSamples, sum)
		assert.Equal(t, n, s.TotalSamples)
	}
}

func TestAggregator_MatchesFullRecomputation(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	labels := emotion.Labels()
	agg := NewAggregator()
	var samples []emotion.Sample

	for i := 0; i < 1000; i++ {
		s := sample("", labels[rng.Intn(len(labels))], rng.Float64(), int64(i*500))
		require.NoError(t, agg.Add(s))
		samples = append(samples, s)

		if i%37 != 0 {
			continue
		}
		want := Summarize(samples)
		got := agg.Summary()
		assert.Equal(t, want.Counts, got.Counts)
		assert.Equal(t, want.Dominant, got.Dominant)
		assert.Equal(t, want.TotalSamples, got.TotalSamples)
		assert.Equal(t, want.Recent, got.Recent)
		wantAvg, _ := want.Average()
		gotAvg, _ := got.Average()
		assert.InDelta(t, wantAvg, gotAvg, 1e-9)
	}
}

func TestAggregator_RejectsInvalid(t *testing.T) {
	agg := NewAggregator()

	assert.ErrorIs(t, agg.Add(sample("x", emotion.Label("meh"), 0.5, 0)), emotion.ErrUnknownLabel)
	assert.ErrorIs(t, agg.Add(sample("y", emotion.Happy, 2, 0)), emotion.ErrConfidenceRange)
	assert.Equal(t, 0, agg.Total())
	assert.True(t, agg.Summary().Empty())
}

func TestAggregator_Reset(t *testing.T) {
	agg := NewAggregator()
	require.NoError(t, agg.Add(sample("1", emotion.Angry, 0.6, 0)))
	assert.Equal(t, emotion.Angry, agg.Dominant())

	agg.Reset()

	assert.Equal(t, 0, agg.Total())
	assert.Equal(t, emotion.None, agg.Dominant())
	assert.Empty(t, agg.Summary().Recent)
}
