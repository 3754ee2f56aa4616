package llm

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrBreakerOpen is returned without calling through while a breaker is open
var ErrBreakerOpen = errors.New("circuit breaker is open")

// CircuitBreaker implements the circuit breaker pattern per key
type CircuitBreaker struct {
	breakers map[string]*Breaker
	mu       sync.RWMutex

	failureThreshold uint32
	successThreshold uint32
	timeout          time.Duration
	logger           *logrus.Logger
	now              func() time.Time
}

// Breaker represents a single circuit breaker
type Breaker struct {
	failures    uint32
	successes   uint32
	lastFailure time.Time
	state       BreakerState
	mu          sync.Mutex
}

// BreakerState represents the circuit breaker state
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// BreakerOption configures a CircuitBreaker
type BreakerOption func(*CircuitBreaker)

// WithThresholds sets how many failures open a breaker and how many
// half-open successes close it again
func WithThresholds(failures, successes uint32) BreakerOption {
	return func(cb *CircuitBreaker) {
		cb.failureThreshold = failures
		cb.successThreshold = successes
	}
}

// WithOpenTimeout sets how long a breaker stays open before probing
func WithOpenTimeout(d time.Duration) BreakerOption {
	return func(cb *CircuitBreaker) {
		cb.timeout = d
	}
}

// WithBreakerLogger sets the logger for state transitions
func WithBreakerLogger(logger *logrus.Logger) BreakerOption {
	return func(cb *CircuitBreaker) {
		cb.logger = logger
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) BreakerOption {
	return func(cb *CircuitBreaker) {
		cb.now = now
	}
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(opts ...BreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		breakers:         make(map[string]*Breaker),
		failureThreshold: 5,
		successThreshold: 2,
		timeout:          30 * time.Second,
		logger:           logrus.StandardLogger(),
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Execute executes a function with circuit breaker protection
func (cb *CircuitBreaker) Execute(key string, fn func() error) error {
	breaker := cb.getOrCreateBreaker(key)

	if cb.stateOf(breaker) == StateOpen {
		return fmt.Errorf("%w for %s", ErrBreakerOpen, key)
	}

	err := fn()

	if err != nil {
		cb.recordFailure(key, breaker)
	} else {
		cb.recordSuccess(key, breaker)
	}

	return err
}

// getOrCreateBreaker gets or creates a breaker for a key
func (cb *CircuitBreaker) getOrCreateBreaker(key string) *Breaker {
	cb.mu.RLock()
	breaker, exists := cb.breakers[key]
	cb.mu.RUnlock()

	if exists {
		return breaker
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	// Double-check after acquiring write lock
	if breaker, exists := cb.breakers[key]; exists {
		return breaker
	}

	breaker = &Breaker{state: StateClosed}
	cb.breakers[key] = breaker
	return breaker
}

// stateOf returns the breaker state, moving Open to HalfOpen once the timeout passed
func (cb *CircuitBreaker) stateOf(b *Breaker) BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && cb.now().Sub(b.lastFailure) > cb.timeout {
		b.state = StateHalfOpen
		b.failures = 0
		b.successes = 0
	}
	return b.state
}

func (cb *CircuitBreaker) recordFailure(key string, b *Breaker) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = cb.now()

	switch b.state {
	case StateClosed:
		if b.failures >= cb.failureThreshold {
			b.state = StateOpen
			cb.logger.WithField("key", key).WithField("failures", b.failures).Warn("Opening circuit breaker")
		}
	case StateHalfOpen:
		b.state = StateOpen
		cb.logger.WithField("key", key).Warn("Re-opening circuit breaker after failure in half-open state")
	}
}

func (cb *CircuitBreaker) recordSuccess(key string, b *Breaker) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.successes++

	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		if b.successes >= cb.successThreshold {
			cb.logger.WithField("key", key).WithField("successes", b.successes).Info("Closing circuit breaker")
			b.state = StateClosed
			b.failures = 0
			b.successes = 0
		}
	}
}

// GetState returns the state of a specific breaker
func (cb *CircuitBreaker) GetState(key string) BreakerState {
	cb.mu.RLock()
	breaker, exists := cb.breakers[key]
	cb.mu.RUnlock()

	if !exists {
		return StateClosed
	}

	return cb.stateOf(breaker)
}

// Reset resets a specific breaker
func (cb *CircuitBreaker) Reset(key string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if breaker, exists := cb.breakers[key]; exists {
		breaker.mu.Lock()
		breaker.state = StateClosed
		breaker.failures = 0
		breaker.successes = 0
		breaker.mu.Unlock()
	}
}
