package sqlstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/moodlens/moodlens-backend/internal/emotion"
	"github.com/moodlens/moodlens-backend/internal/repository"
)

type entryRow struct {
	ID         string  `db:"id"`
	SessionID  string  `db:"session_id"`
	Position   int     `db:"position"`
	Emotion    string  `db:"emotion"`
	Confidence float64 `db:"confidence"`
	RecordedAt int64   `db:"recorded_at"`
}

func (r entryRow) sample() emotion.Sample {
	return emotion.Sample{
		ID:         r.ID,
		Label:      emotion.Label(r.Emotion),
		Confidence: r.Confidence,
		Timestamp:  r.RecordedAt,
	}
}

// AppendEmotions stores samples in one transaction after the session's
// existing entries
func (s *Store) AppendEmotions(ctx context.Context, sessionID string, samples []emotion.Sample) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.GetContext(ctx, &exists, tx.Rebind(`SELECT COUNT(*) FROM sessions WHERE id = ?`), sessionID); err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	if exists == 0 {
		return repository.ErrNotFound
	}

	var last int
	query := tx.Rebind(`SELECT COALESCE(MAX(position), -1) FROM emotion_entries WHERE session_id = ?`)
	if err := tx.GetContext(ctx, &last, query, sessionID); err != nil {
		return fmt.Errorf("read position: %w", err)
	}

	if err := insertEntries(ctx, tx, sessionID, last+1, samples); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit emotions: %w", err)
	}
	return nil
}

func insertEntries(ctx context.Context, tx *sqlx.Tx, sessionID string, first int, samples []emotion.Sample) error {
	stmt, err := tx.PrepareNamedContext(ctx, `
		INSERT INTO emotion_entries (id, session_id, position, emotion, confidence, recorded_at)
		VALUES (:id, :session_id, :position, :emotion, :confidence, :recorded_at)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, sample := range samples {
		row := entryRow{
			ID:         sample.ID,
			SessionID:  sessionID,
			Position:   first + i,
			Emotion:    sample.Label.String(),
			Confidence: sample.Confidence,
			RecordedAt: sample.Timestamp,
		}
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return fmt.Errorf("insert emotion %d: %w", i, err)
		}
	}
	return nil
}

// EmotionsBySession returns the session's samples in arrival order
func (s *Store) EmotionsBySession(ctx context.Context, sessionID string) ([]emotion.Sample, error) {
	var rows []entryRow
	query := s.db.Rebind(`
		SELECT id, session_id, position, emotion, confidence, recorded_at
		FROM emotion_entries
		WHERE session_id = ?
		ORDER BY position ASC
	`)

	if err := s.db.SelectContext(ctx, &rows, query, sessionID); err != nil {
		return nil, fmt.Errorf("list emotions: %w", err)
	}
	return toSamples(rows), nil
}

// RecentEmotions returns the newest samples across sessions
func (s *Store) RecentEmotions(ctx context.Context, limit int) ([]emotion.Sample, error) {
	var rows []entryRow
	query := s.db.Rebind(`
		SELECT id, session_id, position, emotion, confidence, recorded_at
		FROM emotion_entries
		ORDER BY recorded_at DESC, session_id ASC, position ASC
		LIMIT ?
	`)

	if err := s.db.SelectContext(ctx, &rows, query, max(limit, 0)); err != nil {
		return nil, fmt.Errorf("recent emotions: %w", err)
	}
	return toSamples(rows), nil
}

func toSamples(rows []entryRow) []emotion.Sample {
	out := make([]emotion.Sample, len(rows))
	for i, r := range rows {
		out[i] = r.sample()
	}
	return out
}
