package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/moodlens/moodlens-backend/internal/llm"
	"github.com/moodlens/moodlens-backend/internal/recommend"
)

// LLMHealth reports the text generation capability
type LLMHealth struct {
	Configured bool                `json:"configured"`
	Breaker    string              `json:"breaker"`
	Metrics    llm.MetricsSnapshot `json:"metrics"`
}

// RecommendationService serves wellness suggestions and companion messages,
// caching generated suggestions for identical requests
type RecommendationService struct {
	gateway *recommend.Gateway
	guarded *llm.Guarded
	cache   *Cache[[]recommend.Recommendation]
	ttl     time.Duration
	recent  int
}

// NewRecommendationService creates the service. guarded may be nil when no
// generator is configured; a non-positive ttl disables caching. recentWindow
// must match the gateway's recent limit.
func NewRecommendationService(gateway *recommend.Gateway, guarded *llm.Guarded, ttl time.Duration, recentWindow int) *RecommendationService {
	if recentWindow <= 0 {
		recentWindow = recommend.DefaultRecentLimit
	}
	return &RecommendationService{
		gateway: gateway,
		guarded: guarded,
		cache:   NewCache[[]recommend.Recommendation](time.Minute),
		ttl:     ttl,
		recent:  recentWindow,
	}
}

// Recommend returns suggestions for the request
func (s *RecommendationService) Recommend(ctx context.Context, req recommend.Request) []recommend.Recommendation {
	key := cacheKey(req, s.recent)
	if recs, ok := s.cache.Get(key); ok {
		return recs
	}

	recs, source := s.gateway.RecommendFrom(ctx, req)
	// A fallback answer may only mean the provider is briefly down
	if source == recommend.SourceGenerated {
		s.cache.Set(key, recs, s.ttl)
	}
	return recs
}

// cacheKey identifies requests that build the same prompt
func cacheKey(req recommend.Request, window int) string {
	recent := req.Recent[max(0, len(req.Recent)-window):]
	names := make([]string, 0, len(recent))
	for _, l := range recent {
		names = append(names, l.String())
	}
	return fmt.Sprintf("%s|%s|%d", req.Current, strings.Join(names, ","), int(req.SessionDuration/time.Minute))
}

// Companion returns a supportive message for a free-text description
func (s *RecommendationService) Companion(ctx context.Context, description string) string {
	return s.gateway.Companion(ctx, description)
}

// Health reports whether generation is configured and the breaker state
func (s *RecommendationService) Health() LLMHealth {
	h := LLMHealth{
		Configured: s.gateway.Configured(),
		Breaker:    "disabled",
		Metrics: llm.MetricsSnapshot{
			Requests:       map[string]int64{},
			Errors:         map[string]int64{},
			AvgLatencyMs:   map[string]int64{},
			LatencySamples: map[string]int{},
		},
	}
	if s.guarded != nil {
		h.Breaker = s.guarded.State().String()
		h.Metrics = s.guarded.Metrics().Snapshot()
	}
	return h
}

// Close stops the cache sweeper
func (s *RecommendationService) Close() {
	s.cache.Close()
}
