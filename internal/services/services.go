package services

import (
	"github.com/sirupsen/logrus"

	"github.com/moodlens/moodlens-backend/internal/config"
	"github.com/moodlens/moodlens-backend/internal/llm"
	"github.com/moodlens/moodlens-backend/internal/recommend"
	"github.com/moodlens/moodlens-backend/internal/repository"
)

// Services holds all service instances
type Services struct {
	Emotions        *EmotionService
	Recommendations *RecommendationService
	Hub             *Hub
	// Health is nil when the store cannot be pinged
	Health *HealthMonitor
}

// NewServices wires the services over a store. generator may be nil, in
// which case recommendations come from the fallback table.
func NewServices(cfg *config.Config, store repository.Store, generator *llm.Guarded, logger *logrus.Logger) *Services {
	hub := NewHub()

	var gen llm.Generator
	if generator != nil {
		gen = generator
	}
	gateway := recommend.NewGateway(gen, logger, recommend.WithRecentLimit(cfg.Recommendations.RecentWindow))

	var health *HealthMonitor
	if pinger, ok := store.(Pinger); ok {
		health = NewHealthMonitor(pinger, DefaultHealthInterval, logger)
	}

	return &Services{
		Emotions: NewEmotionService(store, hub, logger, TimelineOptions{
			Gap:        cfg.Timeline.Gap,
			FlowWindow: cfg.Timeline.FlowWindow,
			FlowLimit:  cfg.Timeline.FlowLimit,
		}),
		Recommendations: NewRecommendationService(gateway, generator, cfg.Recommendations.CacheTTL, cfg.Recommendations.RecentWindow),
		Hub:             hub,
		Health:          health,
	}
}

// Close releases background resources
func (s *Services) Close() {
	s.Recommendations.Close()
	s.Hub.Close()
	if s.Health != nil {
		s.Health.Stop()
	}
}
