package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/moodlens/moodlens-backend/internal/aggregate"
	"github.com/moodlens/moodlens-backend/internal/emotion"
	"github.com/moodlens/moodlens-backend/internal/repository"
	"github.com/moodlens/moodlens-backend/internal/timeline"
)

// ErrInvalidInput marks request validation failures
var ErrInvalidInput = errors.New("invalid input")

// EmotionInput is one uploaded sample before validation
type EmotionInput struct {
	Emotion    string   `json:"emotion"`
	Confidence *float64 `json:"confidence"`
	Timestamp  *int64   `json:"timestamp"`
}

// SessionDetail is a stored session with its samples and derived summary
type SessionDetail struct {
	repository.Session
	DominantEmotion   emotion.Label    `json:"dominantEmotion,omitempty"`
	AverageConfidence *float64         `json:"averageConfidence,omitempty"`
	Emotions          []emotion.Sample `json:"emotions"`
}

// Timeline is the segmented view of a session
type Timeline struct {
	Episodes []timeline.Episode `json:"episodes"`
	Flow     []emotion.Label    `json:"flow"`
}

// TimelineOptions bounds the timeline views
type TimelineOptions struct {
	Gap        time.Duration
	FlowWindow int
	FlowLimit  int
}

// EmotionService stores uploaded samples and derives session views
type EmotionService struct {
	store  repository.Store
	hub    *Hub
	logger *logrus.Logger
	clock  func() time.Time
	opts   TimelineOptions

	// appends to one store are serialized so positions stay dense
	mu sync.Mutex
}

// NewEmotionService creates the service. hub may be nil.
func NewEmotionService(store repository.Store, hub *Hub, logger *logrus.Logger, opts TimelineOptions) *EmotionService {
	if opts.Gap <= 0 {
		opts.Gap = timeline.DefaultGap
	}
	if opts.FlowWindow <= 0 {
		opts.FlowWindow = timeline.DefaultFlowWindow
	}
	if opts.FlowLimit <= 0 {
		opts.FlowLimit = timeline.DefaultFlowLimit
	}
	return &EmotionService{
		store:  store,
		hub:    hub,
		logger: logger,
		clock:  time.Now,
		opts:   opts,
	}
}

// Save validates every input, creates the session on first use and stores
// the batch. Nothing is written when any input is invalid.
func (s *EmotionService) Save(ctx context.Context, sessionID string, inputs []EmotionInput) (int, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return 0, fmt.Errorf("%w: sessionId is required", ErrInvalidInput)
	}

	samples := make([]emotion.Sample, 0, len(inputs))
	for i, in := range inputs {
		sample, err := in.toSample()
		if err != nil {
			return 0, fmt.Errorf("%w: emotions[%d]: %v", ErrInvalidInput, i, err)
		}
		samples = append(samples, sample)
	}

	s.mu.Lock()
	err := s.store.CreateSession(ctx, repository.Session{ID: sessionID, StartTime: s.clock().UnixMilli()})
	if err != nil && !errors.Is(err, repository.ErrConflict) {
		s.mu.Unlock()
		return 0, fmt.Errorf("create session: %w", err)
	}
	if len(samples) > 0 {
		err = s.store.AppendEmotions(ctx, sessionID, samples)
		if err == nil {
			err = s.store.ExtendSession(ctx, sessionID, latest(samples))
		}
	}
	s.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("store emotions: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"count":      len(samples),
	}).Debug("Stored emotions")

	if len(samples) > 0 {
		s.publish(ctx, sessionID)
	}
	return len(samples), nil
}

func (in EmotionInput) toSample() (emotion.Sample, error) {
	label, err := emotion.ParseLabel(in.Emotion)
	if err != nil {
		return emotion.Sample{}, err
	}
	if in.Confidence == nil {
		return emotion.Sample{}, errors.New("confidence is required")
	}
	if in.Timestamp == nil {
		return emotion.Sample{}, errors.New("timestamp is required")
	}
	return emotion.NewSample(label, *in.Confidence, *in.Timestamp)
}

func latest(samples []emotion.Sample) int64 {
	end := samples[0].Timestamp
	for _, s := range samples[1:] {
		end = max(end, s.Timestamp)
	}
	return end
}

func (s *EmotionService) publish(ctx context.Context, sessionID string) {
	if s.hub == nil || !s.hub.HasSubscribers(sessionID) {
		return
	}
	samples, err := s.store.EmotionsBySession(ctx, sessionID)
	if err != nil {
		s.logger.WithError(err).WithField("session_id", sessionID).Warn("Failed to load emotions for live update")
		return
	}
	s.hub.Publish(sessionID, s.update(samples))
}

func (s *EmotionService) update(samples []emotion.Sample) Update {
	return Update{
		Type:     "update",
		Summary:  aggregate.Summarize(samples),
		Episodes: timeline.Segment(samples, s.opts.Gap),
	}
}

// Live returns the current live view of a stored session
func (s *EmotionService) Live(ctx context.Context, id string) (Update, error) {
	_, samples, err := s.load(ctx, id)
	if err != nil {
		return Update{}, err
	}
	return s.update(samples), nil
}

// Emotions returns a session's samples in arrival order
func (s *EmotionService) Emotions(ctx context.Context, sessionID string) ([]emotion.Sample, error) {
	return s.store.EmotionsBySession(ctx, sessionID)
}

// Recent returns the newest samples across sessions
func (s *EmotionService) Recent(ctx context.Context, limit int) ([]emotion.Sample, error) {
	return s.store.RecentEmotions(ctx, limit)
}

// Sessions lists stored sessions
func (s *EmotionService) Sessions(ctx context.Context) ([]repository.Session, error) {
	return s.store.ListSessions(ctx)
}

// Session returns a session with its samples and derived dominant emotion
// and average confidence
func (s *EmotionService) Session(ctx context.Context, id string) (SessionDetail, error) {
	session, samples, err := s.load(ctx, id)
	if err != nil {
		return SessionDetail{}, err
	}

	summary := aggregate.Summarize(samples)
	return SessionDetail{
		Session:           session,
		DominantEmotion:   summary.Dominant,
		AverageConfidence: summary.AverageConfidence,
		Emotions:          samples,
	}, nil
}

// Summary aggregates a stored session
func (s *EmotionService) Summary(ctx context.Context, id string) (aggregate.Summary, error) {
	_, samples, err := s.load(ctx, id)
	if err != nil {
		return aggregate.Summary{}, err
	}
	return aggregate.Summarize(samples), nil
}

// Timeline segments a stored session. A negative gap uses the default; gaps
// above timeline.MaxGap are capped.
func (s *EmotionService) Timeline(ctx context.Context, id string, gap time.Duration) (Timeline, error) {
	_, samples, err := s.load(ctx, id)
	if err != nil {
		return Timeline{}, err
	}
	if gap < 0 {
		gap = s.opts.Gap
	}
	gap = min(gap, timeline.MaxGap)
	return Timeline{
		Episodes: timeline.Segment(samples, gap),
		Flow:     timeline.Flow(samples, s.opts.FlowWindow, s.opts.FlowLimit),
	}, nil
}

func (s *EmotionService) load(ctx context.Context, id string) (repository.Session, []emotion.Sample, error) {
	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return repository.Session{}, nil, err
	}
	samples, err := s.store.EmotionsBySession(ctx, id)
	if err != nil {
		return repository.Session{}, nil, err
	}
	return session, samples, nil
}
