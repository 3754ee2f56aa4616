package repository

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/moodlens/moodlens-backend/internal/emotion"
)

// MemoryStore keeps everything in process memory. Sessions are listed in
// creation order.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string
	emotions map[string][]emotion.Sample
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		emotions: make(map[string][]emotion.Sample),
	}
}

// Ping always succeeds
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// CreateSession stores a new session
func (s *MemoryStore) CreateSession(ctx context.Context, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return ErrConflict
	}
	stored := copySession(session)
	s.sessions[session.ID] = &stored
	s.order = append(s.order, session.ID)
	return nil
}

// GetSession retrieves a session by id
func (s *MemoryStore) GetSession(ctx context.Context, id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[id]
	if !exists {
		return Session{}, ErrNotFound
	}
	return copySession(*session), nil
}

// ListSessions returns all sessions
func (s *MemoryStore) ListSessions(ctx context.Context) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Session, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, copySession(*s.sessions[id]))
	}
	return out, nil
}

// ExtendSession moves the session end time forward
func (s *MemoryStore) ExtendSession(ctx context.Context, id string, endTime int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[id]
	if !exists {
		return ErrNotFound
	}
	if session.EndTime == nil || *session.EndTime < endTime {
		session.EndTime = &endTime
	}
	return nil
}

// AppendEmotions stores samples for a session
func (s *MemoryStore) AppendEmotions(ctx context.Context, sessionID string, samples []emotion.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sessionID]; !exists {
		return ErrNotFound
	}
	s.emotions[sessionID] = append(s.emotions[sessionID], samples...)
	return nil
}

// EmotionsBySession returns a copy of the session's samples
func (s *MemoryStore) EmotionsBySession(ctx context.Context, sessionID string) ([]emotion.Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := slices.Clone(s.emotions[sessionID])
	if out == nil {
		out = []emotion.Sample{}
	}
	return out, nil
}

// RecentEmotions returns the newest samples across all sessions
func (s *MemoryStore) RecentEmotions(ctx context.Context, limit int) ([]emotion.Sample, error) {
	s.mu.RLock()
	all := make([]emotion.Sample, 0)
	for _, id := range s.order {
		all = append(all, s.emotions[id]...)
	}
	s.mu.RUnlock()

	slices.SortStableFunc(all, func(a, b emotion.Sample) int {
		return cmp.Compare(b.Timestamp, a.Timestamp)
	})
	if limit = max(limit, 0); len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func copySession(s Session) Session {
	if s.EndTime != nil {
		end := *s.EndTime
		s.EndTime = &end
	}
	return s
}
