package session

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/moodlens/moodlens-backend/internal/emotion"
)

// Persister stores a batch of samples for a session
type Persister interface {
	SaveBatch(ctx context.Context, sessionID string, samples []emotion.Sample) error
}

// PersisterFunc adapts a function to Persister
type PersisterFunc func(ctx context.Context, sessionID string, samples []emotion.Sample) error

// SaveBatch calls f
func (f PersisterFunc) SaveBatch(ctx context.Context, sessionID string, samples []emotion.Sample) error {
	return f(ctx, sessionID, samples)
}

// Syncer debounces uploads: only the most recently scheduled batch is sent,
// after it has been left alone for the debounce period. Failed uploads are
// logged and dropped.
type Syncer struct {
	persister Persister
	logger    *logrus.Logger
	timeout   time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	pending func()

	// held for the duration of an upload
	sendMu sync.Mutex
}

// NewSyncer creates a syncer. timeout bounds each upload.
func NewSyncer(persister Persister, logger *logrus.Logger, timeout time.Duration) *Syncer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Syncer{
		persister: persister,
		logger:    logger,
		timeout:   timeout,
	}
}

// Schedule replaces any pending upload with batch for sessionID
func (s *Syncer) Schedule(sessionID string, batch []emotion.Sample, debounce time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	gen := s.gen
	if s.timer != nil {
		s.timer.Stop()
	}
	s.pending = func() { s.send(sessionID, batch) }
	s.timer = time.AfterFunc(debounce, func() {
		s.fire(gen)
	})
}

// Cancel drops the pending upload, if any
func (s *Syncer) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Pending reports whether an upload is waiting to fire
func (s *Syncer) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// Flush sends the pending upload now instead of waiting out the debounce,
// then waits for any upload already in progress.
func (s *Syncer) Flush() {
	s.mu.Lock()
	s.gen++
	send := s.pending
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	if send != nil {
		send()
		return
	}
	s.sendMu.Lock()
	s.sendMu.Unlock()
}

func (s *Syncer) fire(gen uint64) {
	s.mu.Lock()
	// A Stop that raced the timer loses; the newer schedule or cancel wins.
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	send := s.pending
	s.pending = nil
	s.timer = nil
	s.mu.Unlock()

	if send != nil {
		send()
	}
}

func (s *Syncer) send(sessionID string, batch []emotion.Sample) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	log := s.logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"samples":    len(batch),
	})
	if err := s.persister.SaveBatch(ctx, sessionID, batch); err != nil {
		log.WithError(err).Warn("Failed to sync emotions")
		return
	}
	log.Debug("Synced emotions")
}
