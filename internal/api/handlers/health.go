package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/moodlens/moodlens-backend/internal/api/models"
	"github.com/moodlens/moodlens-backend/internal/services"
)

// Health reports liveness and the last storage check. A failing store
// degrades the status but still answers 200.
func Health(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		resp := models.HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UnixMilli(),
		}
		if svc.Health != nil {
			status := svc.Health.Status()
			resp.Storage = &status
			if !status.Healthy {
				resp.Status = "degraded"
			}
		}
		return c.JSON(resp)
	}
}

// LLMHealth reports the text generation capability, its breaker and metrics
func LLMHealth(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(svc.Recommendations.Health())
	}
}
