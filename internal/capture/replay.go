// Package capture provides camera and classifier sources that need no video
// hardware: a still camera and a classifier replaying recorded scores.
package capture

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/moodlens/moodlens-backend/internal/emotion"
	"github.com/moodlens/moodlens-backend/internal/session"
)

// ErrExhausted is returned once every recorded reading has been replayed
var ErrExhausted = errors.New("replay exhausted")

// StillCamera hands out an empty frame stamped with the current time
type StillCamera struct {
	mu   sync.Mutex
	open bool
}

var _ session.Camera = (*StillCamera)(nil)

func (c *StillCamera) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = true
	return nil
}

func (c *StillCamera) Frame() (session.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return session.Frame{}, errors.New("camera is closed")
	}
	return session.Frame{CapturedAt: time.Now()}, nil
}

func (c *StillCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	return nil
}

// Replay is a classifier that returns recorded scores in order, one reading
// per call
type Replay struct {
	mu       sync.Mutex
	readings []emotion.Scores
	next     int
	done     chan struct{}
	doneOnce sync.Once

	drained     chan struct{}
	drainedOnce sync.Once
}

var _ session.Classifier = (*Replay)(nil)

// ParseScores reads JSON lines of per-label scores, for example
// {"happy": 0.8, "neutral": 0.15}. Blank lines and lines starting with # are
// skipped. Unknown labels are rejected.
func ParseScores(r io.Reader) ([]emotion.Scores, error) {
	var out []emotion.Scores
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		var raw map[string]float64
		if err := json.Unmarshal([]byte(text), &raw); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		scores := make(emotion.Scores, len(raw))
		for name, v := range raw {
			label, err := emotion.ParseLabel(name)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			scores[label] = v
		}
		out = append(out, scores)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// NewReplay creates a classifier over readings
func NewReplay(readings []emotion.Scores) *Replay {
	r := &Replay{
		readings: readings,
		done:     make(chan struct{}),
		drained:  make(chan struct{}),
	}
	if len(readings) == 0 {
		r.finish()
	}
	return r
}

// Classify returns the next recorded reading
func (r *Replay) Classify(ctx context.Context, frame session.Frame) (emotion.Scores, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.next >= len(r.readings) {
		r.finish()
		r.drainedOnce.Do(func() { close(r.drained) })
		return nil, ErrExhausted
	}
	scores := r.readings[r.next]
	r.next++
	if r.next == len(r.readings) {
		r.finish()
	}
	return scores, nil
}

// Done is closed after the last reading has been handed out
func (r *Replay) Done() <-chan struct{} {
	return r.done
}

// Drained is closed on the first call after the last reading. A poller that
// waits for its previous call to finish has handled every reading by then.
func (r *Replay) Drained() <-chan struct{} {
	return r.drained
}

// Remaining reports how many readings are left
func (r *Replay) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.readings) - r.next
}

func (r *Replay) finish() {
	r.doneOnce.Do(func() { close(r.done) })
}
