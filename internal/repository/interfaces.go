package repository

import (
	"context"
	"errors"

	"github.com/moodlens/moodlens-backend/internal/emotion"
)

var (
	// ErrNotFound is returned when a session does not exist
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when creating a session whose id is taken
	ErrConflict = errors.New("already exists")
)

// Session is a stored monitoring session. EndTime is the timestamp of the
// latest stored sample.
type Session struct {
	ID        string `db:"id" json:"id"`
	StartTime int64  `db:"start_time" json:"startTime"`
	EndTime   *int64 `db:"end_time" json:"endTime,omitempty"`
}

// SessionRepository defines session storage operations
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	ListSessions(ctx context.Context) ([]Session, error)
	// ExtendSession moves EndTime forward to endTime; it never moves back
	ExtendSession(ctx context.Context, id string, endTime int64) error
}

// EmotionRepository defines emotion sample storage operations
type EmotionRepository interface {
	// AppendEmotions stores samples for an existing session, all or nothing,
	// keeping their order
	AppendEmotions(ctx context.Context, sessionID string, samples []emotion.Sample) error
	// EmotionsBySession returns a session's samples in arrival order
	EmotionsBySession(ctx context.Context, sessionID string) ([]emotion.Sample, error)
	// RecentEmotions returns up to limit samples across sessions, newest first
	RecentEmotions(ctx context.Context, limit int) ([]emotion.Sample, error)
}

// Store is the persistence backend used by the services
type Store interface {
	SessionRepository
	EmotionRepository
}
