package handlers

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/moodlens/moodlens-backend/internal/services"
	"github.com/moodlens/moodlens-backend/internal/timeline"
)

// GetSessions returns all stored sessions
func GetSessions(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessions, err := svc.Emotions.Sessions(c.UserContext())
		if err != nil {
			return storeError(c, err)
		}
		return c.JSON(sessions)
	}
}

// GetSession returns a session with its samples, dominant emotion and
// average confidence
func GetSession(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		detail, err := svc.Emotions.Session(c.UserContext(), c.Params("id"))
		if err != nil {
			return storeError(c, err)
		}
		return c.JSON(detail)
	}
}

// GetSessionSummary returns the aggregate summary of a session
func GetSessionSummary(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		summary, err := svc.Emotions.Summary(c.UserContext(), c.Params("id"))
		if err != nil {
			return storeError(c, err)
		}
		return c.JSON(summary)
	}
}

// GetSessionTimeline returns the episodes and emotion flow of a session.
// gap is the merge tolerance in milliseconds.
func GetSessionTimeline(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		gap := timeline.UnsetGap
		if raw := c.Query("gap"); raw != "" {
			ms, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || ms < 0 || ms > timeline.MaxGap.Milliseconds() {
				return badRequest(c, fmt.Sprintf("gap must be between 0 and %d milliseconds", timeline.MaxGap.Milliseconds()))
			}
			gap = time.Duration(ms) * time.Millisecond
		}

		tl, err := svc.Emotions.Timeline(c.UserContext(), c.Params("id"), gap)
		if err != nil {
			return storeError(c, err)
		}
		return c.JSON(tl)
	}
}
