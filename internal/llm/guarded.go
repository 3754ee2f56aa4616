package llm

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Guarded wraps a Generator with a circuit breaker and request metrics
type Guarded struct {
	next    Generator
	key     string
	breaker *CircuitBreaker
	metrics *MetricsCollector
	logger  *logrus.Logger
}

// NewGuarded guards next under key
func NewGuarded(next Generator, key string, breaker *CircuitBreaker, metrics *MetricsCollector, logger *logrus.Logger) *Guarded {
	return &Guarded{
		next:    next,
		key:     key,
		breaker: breaker,
		metrics: metrics,
		logger:  logger,
	}
}

// Generate calls through unless the breaker is open
func (g *Guarded) Generate(ctx context.Context, req Request) (string, error) {
	start := time.Now()

	var out string
	err := g.breaker.Execute(g.key, func() error {
		var genErr error
		out, genErr = g.next.Generate(ctx, req)
		return genErr
	})

	latency := time.Since(start)
	g.metrics.RecordRequest(g.key, err == nil, latency)
	if err != nil {
		g.logger.WithError(err).WithField("key", g.key).Debug("Text generation failed")
		return "", err
	}
	g.logger.WithField("key", g.key).WithField("latency_ms", latency.Milliseconds()).Debug("Text generation succeeded")
	return out, nil
}

// Key returns the breaker and metrics key
func (g *Guarded) Key() string {
	return g.key
}

// State returns the breaker state for this generator
func (g *Guarded) State() BreakerState {
	return g.breaker.GetState(g.key)
}

// Metrics returns the collector shared with this generator
func (g *Guarded) Metrics() *MetricsCollector {
	return g.metrics
}
