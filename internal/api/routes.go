package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"github.com/moodlens/moodlens-backend/internal/api/handlers"
	"github.com/moodlens/moodlens-backend/internal/api/middleware"
	"github.com/moodlens/moodlens-backend/internal/config"
	"github.com/moodlens/moodlens-backend/internal/services"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, svc *services.Services, cfg config.RecommendationsConfig, logger *logrus.Logger) {
	api := app.Group("/api")

	// Emotion samples
	api.Post("/emotions", handlers.SaveEmotions(svc))
	api.Get("/emotions/recent", handlers.GetRecentEmotions(svc))
	api.Get("/emotions/:sessionId", handlers.GetSessionEmotions(svc))

	// Sessions
	api.Get("/sessions", handlers.GetSessions(svc))
	api.Get("/sessions/:id", handlers.GetSession(svc))
	api.Get("/sessions/:id/summary", handlers.GetSessionSummary(svc))
	api.Get("/sessions/:id/timeline", handlers.GetSessionTimeline(svc))

	// Wellness suggestions
	limit := middleware.RateLimitConfig{Max: cfg.RateLimit, Expiration: cfg.RateLimitWindow}
	api.Get("/recommendations", middleware.LLMRateLimit("recommendations", limit), handlers.GetRecommendations(svc))
	api.Post("/companion", middleware.LLMRateLimit("companion", limit), handlers.Companion(svc))

	// Health check
	api.Get("/health", handlers.Health(svc))
	api.Get("/health/llm", handlers.LLMHealth(svc))

	// Live session updates
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/sessions/:id", websocket.New(handlers.LiveSession(svc, logger)))
}
