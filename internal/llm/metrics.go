package llm

import (
	"sync"
	"time"
)

const maxLatencySamples = 100

// MetricsCollector collects per-key request metrics for text generation
type MetricsCollector struct {
	requests  map[string]int64
	errors    map[string]int64
	latencies map[string][]time.Duration
	mu        sync.RWMutex
}

// MetricsSnapshot is a point-in-time copy of the collected metrics
type MetricsSnapshot struct {
	Requests       map[string]int64 `json:"requests"`
	Errors         map[string]int64 `json:"errors"`
	AvgLatencyMs   map[string]int64 `json:"avg_latency_ms"`
	LatencySamples map[string]int   `json:"latency_samples"`
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		requests:  make(map[string]int64),
		errors:    make(map[string]int64),
		latencies: make(map[string][]time.Duration),
	}
}

// RecordRequest records a request
func (mc *MetricsCollector) RecordRequest(key string, success bool, latency time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.requests[key]++

	if !success {
		mc.errors[key]++
	}

	mc.latencies[key] = append(mc.latencies[key], latency)

	// Keep only the most recent latencies
	if len(mc.latencies[key]) > maxLatencySamples {
		mc.latencies[key] = mc.latencies[key][1:]
	}
}

// Snapshot returns a copy of current metrics
func (mc *MetricsCollector) Snapshot() MetricsSnapshot {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	snap := MetricsSnapshot{
		Requests:       make(map[string]int64, len(mc.requests)),
		Errors:         make(map[string]int64, len(mc.errors)),
		AvgLatencyMs:   make(map[string]int64, len(mc.latencies)),
		LatencySamples: make(map[string]int, len(mc.latencies)),
	}
	for k, v := range mc.requests {
		snap.Requests[k] = v
	}
	for k, v := range mc.errors {
		snap.Errors[k] = v
	}
	for k, lats := range mc.latencies {
		if len(lats) == 0 {
			continue
		}
		var total time.Duration
		for _, l := range lats {
			total += l
		}
		snap.AvgLatencyMs[k] = (total / time.Duration(len(lats))).Milliseconds()
		snap.LatencySamples[k] = len(lats)
	}
	return snap
}
