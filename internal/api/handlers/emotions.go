package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/moodlens/moodlens-backend/internal/api/models"
	"github.com/moodlens/moodlens-backend/internal/services"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500
)

// SaveEmotions stores a batch of samples for a session
func SaveEmotions(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.SaveEmotionsRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid emotion data")
		}
		if req.Emotions == nil || req.SessionID == nil {
			return badRequest(c, "Invalid emotion data")
		}

		count, err := svc.Emotions.Save(c.UserContext(), *req.SessionID, *req.Emotions)
		if err != nil {
			if errors.Is(err, services.ErrInvalidInput) {
				return badRequest(c, "Invalid emotion data")
			}
			return storeError(c, err)
		}

		return c.JSON(models.SaveEmotionsResponse{Success: true, Count: count})
	}
}

// GetSessionEmotions returns a session's samples in arrival order
func GetSessionEmotions(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		emotions, err := svc.Emotions.Emotions(c.UserContext(), c.Params("sessionId"))
		if err != nil {
			return storeError(c, err)
		}
		return c.JSON(emotions)
	}
}

// GetRecentEmotions returns the newest samples across sessions
func GetRecentEmotions(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := defaultRecentLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				return badRequest(c, "limit must be a positive integer")
			}
			limit = min(n, maxRecentLimit)
		}

		emotions, err := svc.Emotions.Recent(c.UserContext(), limit)
		if err != nil {
			return storeError(c, err)
		}
		return c.JSON(emotions)
	}
}
