package capture

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodlens/moodlens-backend/internal/emotion"
	"github.com/moodlens/moodlens-backend/internal/logging"
	"github.com/moodlens/moodlens-backend/internal/session"
)

func TestParseScores(t *testing.T) {
	input := `
# recorded at the desk
{"happy": 0.8, "neutral": 0.2}

{"sad": 0.6}
`
	readings, err := ParseScores(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, emotion.Scores{emotion.Happy: 0.8, emotion.Neutral: 0.2}, readings[0])
	assert.Equal(t, emotion.Scores{emotion.Sad: 0.6}, readings[1])
}

func TestParseScores_Errors(t *testing.T) {
	_, err := ParseScores(strings.NewReader(`{"happy": 0.5}` + "\n" + `{"bored": 0.5}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	_, err = ParseScores(strings.NewReader(`not json`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestReplay_InOrderThenExhausted(t *testing.T) {
	r := NewReplay([]emotion.Scores{
		{emotion.Happy: 0.9},
		{emotion.Angry: 0.7},
	})
	ctx := context.Background()

	got, err := r.Classify(ctx, session.Frame{})
	require.NoError(t, err)
	assert.Equal(t, emotion.Scores{emotion.Happy: 0.9}, got)
	assert.Equal(t, 1, r.Remaining())

	select {
	case <-r.Done():
		t.Fatal("done before last reading")
	default:
	}

	_, err = r.Classify(ctx, session.Frame{})
	require.NoError(t, err)
	<-r.Done()

	select {
	case <-r.Drained():
		t.Fatal("drained before an exhausted call")
	default:
	}

	_, err = r.Classify(ctx, session.Frame{})
	assert.ErrorIs(t, err, ErrExhausted)
	<-r.Drained()
}

func TestReplay_Empty(t *testing.T) {
	r := NewReplay(nil)
	<-r.Done()
	_, err := r.Classify(context.Background(), session.Frame{})
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestStillCamera(t *testing.T) {
	var cam StillCamera
	_, err := cam.Frame()
	require.Error(t, err)

	require.NoError(t, cam.Open(context.Background()))
	frame, err := cam.Frame()
	require.NoError(t, err)
	assert.False(t, frame.CapturedAt.IsZero())

	require.NoError(t, cam.Close())
	_, err = cam.Frame()
	assert.Error(t, err)
}

func TestReplay_DrivesMonitor(t *testing.T) {
	var (
		mu      sync.Mutex
		batches [][]emotion.Sample
	)
	persister := session.PersisterFunc(func(ctx context.Context, id string, samples []emotion.Sample) error {
		mu.Lock()
		defer mu.Unlock()
		batches = append(batches, samples)
		return nil
	})

	logger := logging.Discard()
	syncer := session.NewSyncer(persister, logger, time.Second)
	manager := session.NewManager(
		session.WithManagerLogger(logger),
		session.WithSyncer(syncer, 20*time.Millisecond, 5),
	)
	replay := NewReplay([]emotion.Scores{
		{emotion.Happy: 0.9},
		{emotion.Happy: 0.2}, // below threshold
		{emotion.Sad: 0.7, emotion.Happy: 0.1},
	})
	monitor := session.NewMonitor(&StillCamera{}, replay, manager, logger, session.WithPollInterval(5*time.Millisecond))

	_, err := monitor.Start(context.Background())
	require.NoError(t, err)
	<-replay.Drained()
	assert.Equal(t, 2, manager.Summary().TotalSamples, "every reading is handled once drained")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(batches) > 0 && len(batches[len(batches)-1]) == 2
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, monitor.Stop())

	summary := manager.Summary()
	assert.Equal(t, 2, summary.TotalSamples)
	assert.Equal(t, 1, summary.Counts[emotion.Happy])
	assert.Equal(t, 1, summary.Counts[emotion.Sad])
}
