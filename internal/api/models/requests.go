package models

import (
	"github.com/moodlens/moodlens-backend/internal/services"
)

// SaveEmotionsRequest is the body of POST /api/emotions. Pointers tell a
// missing field from an empty one.
type SaveEmotionsRequest struct {
	Emotions  *[]services.EmotionInput `json:"emotions"`
	SessionID *string                  `json:"sessionId"`
}

// SaveEmotionsResponse acknowledges a stored batch
type SaveEmotionsResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
}

// CompanionRequest is the body of POST /api/companion
type CompanionRequest struct {
	Emotion *string `json:"emotion"`
}

// CompanionResponse carries the supportive message
type CompanionResponse struct {
	Message string `json:"message"`
}

// HealthResponse is returned by GET /api/health
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp int64                  `json:"timestamp"`
	Storage   *services.HealthStatus `json:"storage,omitempty"`
}
