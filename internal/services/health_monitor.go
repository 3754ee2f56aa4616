package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultHealthInterval is how often the storage backend is pinged
const DefaultHealthInterval = time.Minute

// Pinger is implemented by stores that can check their connection
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthStatus represents the health of the storage backend
type HealthStatus struct {
	Healthy      bool      `json:"healthy"`
	LastCheck    time.Time `json:"last_check"`
	LastError    string    `json:"last_error,omitempty"`
	ResponseTime int64     `json:"response_time_ms"`
	ErrorCount   int       `json:"error_count"`
	SuccessCount int       `json:"success_count"`
	ErrorRate    float64   `json:"error_rate"`
}

// HealthMonitor pings the storage backend in the background
type HealthMonitor struct {
	pinger      Pinger
	logger      *logrus.Logger
	status      HealthStatus
	mu          sync.RWMutex
	checkTicker *time.Ticker
	stopChan    chan struct{}
	stopOnce    sync.Once
}

// NewHealthMonitor checks once synchronously, then every interval. A
// non-positive interval disables the background checks.
func NewHealthMonitor(pinger Pinger, interval time.Duration, logger *logrus.Logger) *HealthMonitor {
	monitor := &HealthMonitor{
		pinger:   pinger,
		logger:   logger,
		stopChan: make(chan struct{}),
	}

	monitor.Check(context.Background())
	if interval > 0 {
		monitor.startHealthChecks(interval)
	}
	return monitor
}

// Status returns a copy of the latest health status
func (m *HealthMonitor) Status() HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Check pings the backend now and records the outcome
func (m *HealthMonitor) Check(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	start := time.Now()
	err := m.pinger.Ping(ctx)
	responseTime := time.Since(start).Milliseconds()

	m.mu.Lock()
	defer m.mu.Unlock()

	status := &m.status
	status.LastCheck = time.Now()
	status.ResponseTime = responseTime
	if err != nil {
		status.ErrorCount++
		status.LastError = err.Error()
		status.Healthy = false
		m.logger.WithError(err).Warn("Storage health check failed")
	} else {
		status.SuccessCount++
		status.LastError = ""
		status.Healthy = true
	}
	status.ErrorRate = float64(status.ErrorCount) / float64(status.ErrorCount+status.SuccessCount)
	return *status
}

func (m *HealthMonitor) startHealthChecks(interval time.Duration) {
	m.checkTicker = time.NewTicker(interval)

	go func() {
		for {
			select {
			case <-m.checkTicker.C:
				m.Check(context.Background())
			case <-m.stopChan:
				return
			}
		}
	}()
}

// Stop stops the background checks
func (m *HealthMonitor) Stop() {
	m.stopOnce.Do(func() {
		if m.checkTicker != nil {
			m.checkTicker.Stop()
		}
		close(m.stopChan)
	})
}
