package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/moodlens/moodlens-backend/internal/emotion"
)

const (
	// DefaultPollInterval is the time between classifier polls
	DefaultPollInterval = 500 * time.Millisecond
	// DefaultMinConfidence is the top score a reading must exceed to be logged
	DefaultMinConfidence = 0.3
)

// ErrMonitorActive is returned by Start on a running monitor
var ErrMonitorActive = errors.New("monitor already running")

// Frame is one captured image
type Frame struct {
	Data       []byte
	CapturedAt time.Time
}

// Camera is an exclusive capture device
type Camera interface {
	Open(ctx context.Context) error
	Frame() (Frame, error)
	Close() error
}

// Classifier scores a frame against every emotion label
type Classifier interface {
	Classify(ctx context.Context, frame Frame) (emotion.Scores, error)
}

// Reading is the latest classifier output
type Reading struct {
	Scores     emotion.Scores `json:"scores"`
	Label      emotion.Label  `json:"emotion"`
	Confidence float64        `json:"confidence"`
	Timestamp  int64          `json:"timestamp"`
}

// Monitor polls the camera and classifier on a fixed interval and appends
// confident readings to a Manager. Starting the monitor starts a session on
// the manager; stopping it stops the session.
type Monitor struct {
	camera     Camera
	classifier Classifier
	manager    *Manager
	logger     *logrus.Logger

	interval      time.Duration
	minConfidence float64
	clock         func() time.Time

	mu       sync.Mutex
	state    State
	gen      uint64
	epoch    uint64
	inFlight bool
	current  *Reading
	stop     chan struct{}
	done     chan struct{}
}

// MonitorOption configures a Monitor
type MonitorOption func(*Monitor)

// WithPollInterval sets the tick interval
func WithPollInterval(d time.Duration) MonitorOption {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithMinConfidence sets the logging threshold
func WithMinConfidence(c float64) MonitorOption {
	return func(m *Monitor) {
		if c >= 0 && c <= 1 {
			m.minConfidence = c
		}
	}
}

// WithMonitorClock overrides the time source for sample timestamps
func WithMonitorClock(clock func() time.Time) MonitorOption {
	return func(m *Monitor) {
		m.clock = clock
	}
}

// NewMonitor creates an idle monitor
func NewMonitor(camera Camera, classifier Classifier, manager *Manager, logger *logrus.Logger, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		camera:        camera,
		classifier:    classifier,
		manager:       manager,
		logger:        logger,
		interval:      DefaultPollInterval,
		minConfidence: DefaultMinConfidence,
		clock:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start opens the camera, begins a session and starts polling. Classifier
// calls run under ctx. If the camera cannot be opened the monitor stays idle.
func (m *Monitor) Start(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Active {
		return "", ErrMonitorActive
	}
	if err := m.camera.Open(ctx); err != nil {
		return "", fmt.Errorf("open camera: %w", err)
	}

	sessionID, epoch := m.manager.begin()

	m.gen++
	m.epoch = epoch
	m.state = Active
	m.inFlight = false
	m.current = nil
	m.stop = make(chan struct{})
	m.done = make(chan struct{})

	go m.loop(ctx, m.gen, m.stop, m.done)

	m.logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"interval":   m.interval,
	}).Info("Monitoring started")
	return sessionID, nil
}

// Stop halts the ticker, closes the camera and stops the session. A
// classifier call already in flight is left to finish; its result is dropped.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if m.state != Active {
		m.mu.Unlock()
		return nil
	}
	m.state = Idle
	m.gen++
	close(m.stop)
	done := m.done
	m.mu.Unlock()

	<-done
	m.manager.Stop()

	if err := m.camera.Close(); err != nil {
		return fmt.Errorf("close camera: %w", err)
	}
	m.logger.Info("Monitoring stopped")
	return nil
}

// State reports whether the monitor is polling
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current returns the latest reading of the running monitor
func (m *Monitor) Current() (Reading, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Reading{}, false
	}
	return *m.current, true
}

func (m *Monitor) loop(ctx context.Context, gen uint64, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx, gen)
		}
	}
}

// tick starts a poll unless the previous one is still running
func (m *Monitor) tick(ctx context.Context, gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.inFlight {
		m.mu.Unlock()
		return
	}
	m.inFlight = true
	m.mu.Unlock()

	go m.poll(ctx, gen)
}

func (m *Monitor) poll(ctx context.Context, gen uint64) {
	scores, err := m.classify(ctx)
	defer m.finishPoll(gen)

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	epoch := m.epoch
	if err != nil {
		m.mu.Unlock()
		m.logger.WithError(err).Debug("Skipping poll")
		return
	}

	label, confidence, ok := scores.Top()
	if !ok {
		m.mu.Unlock()
		return
	}
	now := m.clock().UnixMilli()
	m.current = &Reading{
		Scores:     scores,
		Label:      label,
		Confidence: confidence,
		Timestamp:  now,
	}
	m.mu.Unlock()

	if confidence <= m.minConfidence {
		return
	}
	sample, err := emotion.NewSample(label, confidence, now)
	if err != nil {
		m.logger.WithError(err).Warn("Discarding classifier reading")
		return
	}
	// The monitor may have been restarted since the gen check above
	err = m.manager.appendTo(epoch, sample)
	if err != nil && !errors.Is(err, ErrNotActive) && !errors.Is(err, ErrStaleSession) {
		m.logger.WithError(err).Warn("Failed to append sample")
	}
}

// finishPoll lets the next tick start a poll. The sample, if any, has been
// appended by then.
func (m *Monitor) finishPoll(gen uint64) {
	m.mu.Lock()
	if gen == m.gen {
		m.inFlight = false
	}
	m.mu.Unlock()
}

func (m *Monitor) classify(ctx context.Context) (emotion.Scores, error) {
	frame, err := m.camera.Frame()
	if err != nil {
		return nil, fmt.Errorf("capture frame: %w", err)
	}
	scores, err := m.classifier.Classify(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("classify frame: %w", err)
	}
	return scores, nil
}
