package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/moodlens/moodlens-backend/internal/repository"
)

// CreateSession inserts a session, failing with repository.ErrConflict when
// the id is taken
func (s *Store) CreateSession(ctx context.Context, session repository.Session) error {
	query := s.db.Rebind(`
		INSERT INTO sessions (id, start_time, end_time)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`)

	res, err := s.db.ExecContext(ctx, query, session.ID, session.StartTime, session.EndTime)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if n == 0 {
		return repository.ErrConflict
	}
	return nil
}

// GetSession retrieves a session by id
func (s *Store) GetSession(ctx context.Context, id string) (repository.Session, error) {
	var session repository.Session
	query := s.db.Rebind(`
		SELECT id, start_time, end_time
		FROM sessions
		WHERE id = ?
	`)

	err := s.db.GetContext(ctx, &session, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.Session{}, repository.ErrNotFound
		}
		return repository.Session{}, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// ListSessions returns all sessions, oldest first
func (s *Store) ListSessions(ctx context.Context) ([]repository.Session, error) {
	sessions := []repository.Session{}
	query := `
		SELECT id, start_time, end_time
		FROM sessions
		ORDER BY start_time ASC, id ASC
	`

	if err := s.db.SelectContext(ctx, &sessions, query); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// ExtendSession moves the session end time forward
func (s *Store) ExtendSession(ctx context.Context, id string, endTime int64) error {
	query := s.db.Rebind(`
		UPDATE sessions
		SET end_time = ?
		WHERE id = ? AND (end_time IS NULL OR end_time < ?)
	`)

	res, err := s.db.ExecContext(ctx, query, endTime, id, endTime)
	if err != nil {
		return fmt.Errorf("extend session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}

	// Nothing changed: either the end time is already later or the session
	// does not exist.
	_, err = s.GetSession(ctx, id)
	return err
}
