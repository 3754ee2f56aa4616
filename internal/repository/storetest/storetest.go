// Package storetest holds the behaviour every repository.Store must share.
package storetest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodlens/moodlens-backend/internal/emotion"
	"github.com/moodlens/moodlens-backend/internal/repository"
)

// Run exercises a store implementation. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) repository.Store) {
	t.Run("SessionLifecycle", func(t *testing.T) { testSessionLifecycle(t, newStore(t)) })
	t.Run("ExtendSession", func(t *testing.T) { testExtendSession(t, newStore(t)) })
	t.Run("AppendKeepsOrder", func(t *testing.T) { testAppendKeepsOrder(t, newStore(t)) })
	t.Run("AppendUnknownSession", func(t *testing.T) { testAppendUnknownSession(t, newStore(t)) })
	t.Run("RecentEmotions", func(t *testing.T) { testRecentEmotions(t, newStore(t)) })
	t.Run("ConcurrentCreate", func(t *testing.T) { testConcurrentCreate(t, newStore(t)) })
}

func sample(t *testing.T, label emotion.Label, conf float64, ts int64) emotion.Sample {
	t.Helper()
	s, err := emotion.NewSample(label, conf, ts)
	require.NoError(t, err)
	return s
}

func testSessionLifecycle(t *testing.T, store repository.Store) {
	ctx := context.Background()

	_, err := store.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	sessions, err := store.ListSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	require.NoError(t, store.CreateSession(ctx, repository.Session{ID: "100", StartTime: 100}))
	require.NoError(t, store.CreateSession(ctx, repository.Session{ID: "200", StartTime: 200}))
	assert.ErrorIs(t, store.CreateSession(ctx, repository.Session{ID: "100", StartTime: 999}), repository.ErrConflict)

	got, err := store.GetSession(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.StartTime, "a conflicting create does not overwrite")
	assert.Nil(t, got.EndTime)

	sessions, err = store.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "100", sessions[0].ID)
	assert.Equal(t, "200", sessions[1].ID)

	emotions, err := store.EmotionsBySession(ctx, "100")
	require.NoError(t, err)
	assert.NotNil(t, emotions)
	assert.Empty(t, emotions)
}

func testExtendSession(t *testing.T, store repository.Store) {
	ctx := context.Background()

	assert.ErrorIs(t, store.ExtendSession(ctx, "missing", 10), repository.ErrNotFound)

	require.NoError(t, store.CreateSession(ctx, repository.Session{ID: "s", StartTime: 1}))
	require.NoError(t, store.ExtendSession(ctx, "s", 500))
	require.NoError(t, store.ExtendSession(ctx, "s", 300))

	got, err := store.GetSession(ctx, "s")
	require.NoError(t, err)
	require.NotNil(t, got.EndTime)
	assert.Equal(t, int64(500), *got.EndTime)
}

func testAppendKeepsOrder(t *testing.T, store repository.Store) {
	ctx := context.Background()
	require.NoError(t, store.CreateSession(ctx, repository.Session{ID: "s", StartTime: 1}))

	first := []emotion.Sample{
		sample(t, emotion.Happy, 0.9, 3000),
		sample(t, emotion.Sad, 0.4, 1000),
	}
	second := []emotion.Sample{
		sample(t, emotion.Angry, 0.65, 2000),
	}
	require.NoError(t, store.AppendEmotions(ctx, "s", first))
	require.NoError(t, store.AppendEmotions(ctx, "s", second))

	got, err := store.EmotionsBySession(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, append(first, second...), got)
}

func testAppendUnknownSession(t *testing.T, store repository.Store) {
	ctx := context.Background()

	err := store.AppendEmotions(ctx, "ghost", []emotion.Sample{sample(t, emotion.Happy, 0.5, 1)})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	recent, err := store.RecentEmotions(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func testRecentEmotions(t *testing.T, store repository.Store) {
	ctx := context.Background()
	require.NoError(t, store.CreateSession(ctx, repository.Session{ID: "a", StartTime: 1}))
	require.NoError(t, store.CreateSession(ctx, repository.Session{ID: "b", StartTime: 2}))

	require.NoError(t, store.AppendEmotions(ctx, "a", []emotion.Sample{
		sample(t, emotion.Happy, 0.5, 10),
		sample(t, emotion.Sad, 0.5, 40),
	}))
	require.NoError(t, store.AppendEmotions(ctx, "b", []emotion.Sample{
		sample(t, emotion.Angry, 0.5, 30),
		sample(t, emotion.Neutral, 0.5, 20),
	}))

	recent, err := store.RecentEmotions(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, []int64{40, 30, 20}, []int64{recent[0].Timestamp, recent[1].Timestamp, recent[2].Timestamp})

	recent, err = store.RecentEmotions(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func testConcurrentCreate(t *testing.T, store repository.Store) {
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.CreateSession(ctx, repository.Session{ID: "race", StartTime: 1})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case assert.ErrorIs(t, err, repository.ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, 7, conflicts)
}
