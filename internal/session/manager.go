// Package session owns the client-side monitoring session: the append-only
// sample log, its incremental aggregate, debounced background sync and the
// polling loop that feeds it from a classifier.
package session

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/moodlens/moodlens-backend/internal/aggregate"
	"github.com/moodlens/moodlens-backend/internal/emotion"
	"github.com/moodlens/moodlens-backend/internal/timeline"
)

var (
	// ErrNotActive is returned when appending to a manager with no running session
	ErrNotActive = errors.New("no active session")
	// ErrStaleSession is returned when a sample targets a session that has since
	// been replaced
	ErrStaleSession = errors.New("session was replaced")
)

const (
	// DefaultContextWindow is how many recent labels feed a recommendation request
	DefaultContextWindow = 20
	// DefaultSyncBatch is how many trailing samples a sync uploads
	DefaultSyncBatch = 5
	// DefaultSyncDebounce is the quiet period before a sync fires
	DefaultSyncDebounce = 5 * time.Second
)

// State of a manager or monitor
type State int

const (
	Idle State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "idle"
}

// Snapshot is a consistent read of a session. Samples is a capped view of the
// log and must not be modified.
type Snapshot struct {
	ID        string            `json:"id"`
	StartTime int64             `json:"startTime"`
	State     string            `json:"state"`
	Samples   []emotion.Sample  `json:"samples"`
	Summary   aggregate.Summary `json:"summary"`
}

// Manager holds one session at a time. The log is an arena: it only grows
// while a session runs and is replaced, never overwritten, on Start, so the
// windows handed out stay valid.
type Manager struct {
	mu sync.Mutex

	clock  func() time.Time
	logger *logrus.Logger

	state     State
	epoch     uint64
	id        string
	startTime int64
	log       []emotion.Sample
	agg       *aggregate.Aggregator

	syncer       *Syncer
	syncDebounce time.Duration
	syncBatch    int

	gap        time.Duration
	flowWindow int
	flowLimit  int
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithClock overrides the time source used to mint session ids
func WithClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.clock = clock
	}
}

// WithManagerLogger sets the logger
func WithManagerLogger(logger *logrus.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithSyncer attaches a syncer; every append reschedules it
func WithSyncer(s *Syncer, debounce time.Duration, batch int) ManagerOption {
	return func(m *Manager) {
		m.syncer = s
		if debounce > 0 {
			m.syncDebounce = debounce
		}
		if batch > 0 {
			m.syncBatch = batch
		}
	}
}

// WithTimeline sets the default gap and flow bounds
func WithTimeline(gap time.Duration, flowWindow, flowLimit int) ManagerOption {
	return func(m *Manager) {
		if gap > 0 {
			m.gap = gap
		}
		if flowWindow > 0 {
			m.flowWindow = flowWindow
		}
		if flowLimit > 0 {
			m.flowLimit = flowLimit
		}
	}
}

// NewManager creates an idle manager
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		clock:        time.Now,
		logger:       logrus.StandardLogger(),
		agg:          aggregate.NewAggregator(),
		syncDebounce: DefaultSyncDebounce,
		syncBatch:    DefaultSyncBatch,
		gap:          timeline.DefaultGap,
		flowWindow:   timeline.DefaultFlowWindow,
		flowLimit:    timeline.DefaultFlowLimit,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins a new session and returns its id, the start time in epoch ms.
// A running session is stopped first.
func (m *Manager) Start() string {
	id, _ := m.begin()
	return id
}

// begin starts a session and also returns its epoch. Ids come from the clock
// and can repeat; epochs never do.
func (m *Manager) begin() (string, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Active {
		m.stopLocked()
	}
	m.startLocked()
	return m.id, m.epoch
}

func (m *Manager) startLocked() {
	now := m.clock()
	m.epoch++
	m.startTime = now.UnixMilli()
	m.id = strconv.FormatInt(m.startTime, 10)
	m.log = nil
	m.agg.Reset()
	m.state = Active

	m.logger.WithField("session_id", m.id).Info("Session started")
}

// Stop ends the session. The log and derived views stay readable until the
// next Start; a pending sync is dropped.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Idle {
		return
	}
	m.stopLocked()
}

func (m *Manager) stopLocked() {
	m.state = Idle
	if m.syncer != nil {
		m.syncer.Cancel()
	}
	m.logger.WithFields(logrus.Fields{
		"session_id": m.id,
		"samples":    len(m.log),
	}).Info("Session stopped")
}

// State reports whether a session is running
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ID returns the current (or last) session id
func (m *Manager) ID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id
}

// Elapsed returns the time since the session started
func (m *Manager) Elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.id == "" {
		return 0
	}
	return time.Duration(m.clock().UnixMilli()-m.startTime) * time.Millisecond
}

// Append adds a sample to the running session
func (m *Manager) Append(s emotion.Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(s)
}

// appendTo adds a sample only if the session of the given epoch is still the
// running one
func (m *Manager) appendTo(epoch uint64, s emotion.Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Active && m.epoch != epoch {
		return ErrStaleSession
	}
	return m.appendLocked(s)
}

func (m *Manager) appendLocked(s emotion.Sample) error {
	if m.state != Active {
		return ErrNotActive
	}
	if err := m.agg.Add(s); err != nil {
		return err
	}
	m.log = append(m.log, s)

	if m.syncer != nil {
		m.scheduleSyncLocked(m.syncDebounce)
	}
	return nil
}

// ScheduleSync hands the trailing batch to the syncer after debounce. Each
// call supersedes the previous one.
func (m *Manager) ScheduleSync(debounce time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scheduleSyncLocked(debounce)
}

func (m *Manager) scheduleSyncLocked(debounce time.Duration) {
	if m.syncer == nil || m.state != Active || len(m.log) == 0 {
		return
	}
	m.syncer.Schedule(m.id, m.windowLocked(m.syncBatch), debounce)
}

// RecentWindow returns up to k most recent samples, oldest first
func (m *Manager) RecentWindow(k int) []emotion.Sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.windowLocked(k)
}

func (m *Manager) windowLocked(k int) []emotion.Sample {
	n := len(m.log)
	k = min(max(k, 0), n)
	return m.log[n-k : n : n]
}

// RecentLabels returns the labels of up to k most recent samples, oldest first
func (m *Manager) RecentLabels(k int) []emotion.Label {
	window := m.RecentWindow(k)
	out := make([]emotion.Label, len(window))
	for i, s := range window {
		out[i] = s.Label
	}
	return out
}

// Flow returns the distinct labels of the recent log in first-seen order
func (m *Manager) Flow() []emotion.Label {
	m.mu.Lock()
	defer m.mu.Unlock()
	return timeline.Flow(m.log, m.flowWindow, m.flowLimit)
}

// Summary returns the aggregate of the whole session
func (m *Manager) Summary() aggregate.Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.agg.Summary()
}

// Episodes segments the log. A negative gap uses the configured default.
func (m *Manager) Episodes(gap time.Duration) []timeline.Episode {
	m.mu.Lock()
	samples := m.log[:len(m.log):len(m.log)]
	if gap < 0 {
		gap = m.gap
	}
	m.mu.Unlock()

	return timeline.Segment(samples, gap)
}

// Snapshot returns the session id, state, log and summary read atomically
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		ID:        m.id,
		StartTime: m.startTime,
		State:     m.state.String(),
		Samples:   m.windowLocked(len(m.log)),
		Summary:   m.agg.Summary(),
	}
}
