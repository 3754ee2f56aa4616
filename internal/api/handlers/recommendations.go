package handlers

import (
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"

	"github.com/moodlens/moodlens-backend/internal/api/models"
	"github.com/moodlens/moodlens-backend/internal/emotion"
	"github.com/moodlens/moodlens-backend/internal/recommend"
	"github.com/moodlens/moodlens-backend/internal/services"
)

const maxCompanionLength = 200

// GetRecommendations returns wellness suggestions for the current emotion.
// sessionDuration is in milliseconds.
func GetRecommendations(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		current := emotion.Neutral
		if raw := c.Query("currentEmotion"); raw != "" {
			label, err := emotion.ParseLabel(raw)
			if err != nil {
				return badRequest(c, "Invalid emotion type")
			}
			current = label
		}

		var duration time.Duration
		if ms, err := strconv.ParseInt(c.Query("sessionDuration"), 10, 64); err == nil && ms > 0 {
			duration = time.Duration(ms) * time.Millisecond
		}

		recs := svc.Recommendations.Recommend(c.UserContext(), recommend.Request{
			Current:         current,
			Recent:          emotion.ParseLabels(c.Query("recentEmotions")),
			SessionDuration: duration,
		})
		if recs == nil {
			recs = []recommend.Recommendation{}
		}
		return c.JSON(recs)
	}
}

// Companion returns a supportive message for a described feeling
func Companion(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.CompanionRequest
		if err := c.BodyParser(&req); err != nil || req.Emotion == nil {
			return badRequest(c, "Invalid request")
		}
		n := utf8.RuneCountInString(*req.Emotion)
		if n < 1 || n > maxCompanionLength {
			return badRequest(c, "Invalid request")
		}

		message := svc.Recommendations.Companion(c.UserContext(), *req.Emotion)
		return c.JSON(models.CompanionResponse{Message: message})
	}
}
