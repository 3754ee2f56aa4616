package sqlstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodlens/moodlens-backend/internal/config"
	"github.com/moodlens/moodlens-backend/internal/database"
	"github.com/moodlens/moodlens-backend/internal/emotion"
	"github.com/moodlens/moodlens-backend/internal/repository"
	"github.com/moodlens/moodlens-backend/internal/repository/sqlstore"
	"github.com/moodlens/moodlens-backend/internal/repository/storetest"
)

func openSQLite(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.RunMigrations(db, config.StorageConfig{Driver: database.DriverSQLite}))
	return db
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) repository.Store {
		return sqlstore.New(openSQLite(t).DB)
	})
}

func TestSQLiteStore_MigrationsAreIdempotent(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, database.RunMigrations(db, config.StorageConfig{Driver: database.DriverSQLite}))
}

func TestSQLiteStore_FailedAppendWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := sqlstore.New(openSQLite(t).DB)
	require.NoError(t, store.CreateSession(ctx, repository.Session{ID: "s", StartTime: 1}))

	good, err := emotion.NewSample(emotion.Happy, 0.5, 1)
	require.NoError(t, err)
	// the schema rejects out of range confidence
	bad := emotion.Sample{ID: "bad", Label: emotion.Sad, Confidence: 1.5, Timestamp: 2}

	err = store.AppendEmotions(ctx, "s", []emotion.Sample{good, bad})
	require.Error(t, err)

	got, err := store.EmotionsBySession(ctx, "s")
	require.NoError(t, err)
	assert.Empty(t, got)
}
