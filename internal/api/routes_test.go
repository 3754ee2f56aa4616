package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodlens/moodlens-backend/internal/aggregate"
	"github.com/moodlens/moodlens-backend/internal/config"
	"github.com/moodlens/moodlens-backend/internal/emotion"
	"github.com/moodlens/moodlens-backend/internal/llm"
	"github.com/moodlens/moodlens-backend/internal/logging"
	"github.com/moodlens/moodlens-backend/internal/recommend"
	"github.com/moodlens/moodlens-backend/internal/repository"
	"github.com/moodlens/moodlens-backend/internal/services"
)

func testConfig() *config.Config {
	return &config.Config{
		Timeline: config.TimelineConfig{
			Gap:        5 * time.Second,
			FlowWindow: 50,
			FlowLimit:  5,
		},
		Recommendations: config.RecommendationsConfig{
			RecentWindow:    5,
			RateLimit:       100,
			RateLimitWindow: time.Minute,
		},
	}
}

func newTestApp(t *testing.T, cfg *config.Config, generator *llm.Guarded) *fiber.App {
	t.Helper()
	svc := services.NewServices(cfg, repository.NewMemoryStore(), generator, logging.Discard())
	t.Cleanup(svc.Close)

	app := fiber.New()
	SetupRoutes(app, svc, cfg.Recommendations, logging.Discard())
	return app
}

func do(t *testing.T, app *fiber.App, method, target, body string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestSaveAndReadEmotions(t *testing.T) {
	app := newTestApp(t, testConfig(), nil)

	status, body := do(t, app, http.MethodPost, "/api/emotions", `{
		"sessionId": "1700000000000",
		"emotions": [
			{"emotion": "happy", "confidence": 0.9, "timestamp": 1000},
			{"emotion": "sad", "confidence": 0.4, "timestamp": 2000},
			{"emotion": "happy", "confidence": 0.8, "timestamp": 3000}
		]
	}`)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.JSONEq(t, `{"success": true, "count": 3}`, string(body))

	status, body = do(t, app, http.MethodGet, "/api/emotions/1700000000000", "")
	require.Equal(t, http.StatusOK, status)
	var samples []emotion.Sample
	require.NoError(t, json.Unmarshal(body, &samples))
	require.Len(t, samples, 3)
	assert.Equal(t, emotion.Sad, samples[1].Label)
	assert.NotEmpty(t, samples[0].ID)

	status, body = do(t, app, http.MethodGet, "/api/sessions/1700000000000", "")
	require.Equal(t, http.StatusOK, status)
	var detail map[string]any
	require.NoError(t, json.Unmarshal(body, &detail))
	assert.Equal(t, "1700000000000", detail["id"])
	assert.Equal(t, "happy", detail["dominantEmotion"])
	assert.InDelta(t, 0.7, detail["averageConfidence"], 1e-9)
	assert.EqualValues(t, 3000, detail["endTime"])
	assert.Len(t, detail["emotions"], 3)

	status, body = do(t, app, http.MethodGet, "/api/sessions", "")
	require.Equal(t, http.StatusOK, status)
	var sessions []repository.Session
	require.NoError(t, json.Unmarshal(body, &sessions))
	require.Len(t, sessions, 1)

	status, body = do(t, app, http.MethodGet, "/api/emotions/recent?limit=2", "")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &samples))
	require.Len(t, samples, 2)
	assert.Equal(t, int64(3000), samples[0].Timestamp)
}

func TestSaveEmotionsValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `emotions please`},
		{name: "missing session", body: `{"emotions": []}`},
		{name: "missing emotions", body: `{"sessionId": "s"}`},
		{name: "unknown label", body: `{"sessionId": "s", "emotions": [{"emotion": "bored", "confidence": 0.5, "timestamp": 1}]}`},
		{name: "confidence out of range", body: `{"sessionId": "s", "emotions": [{"emotion": "sad", "confidence": 2, "timestamp": 1}]}`},
		{name: "confidence as string", body: `{"sessionId": "s", "emotions": [{"emotion": "sad", "confidence": "0.5", "timestamp": 1}]}`},
		{name: "missing timestamp", body: `{"sessionId": "s", "emotions": [{"emotion": "sad", "confidence": 0.5}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t, testConfig(), nil)

			status, body := do(t, app, http.MethodPost, "/api/emotions", tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.JSONEq(t, `{"error": "Invalid emotion data"}`, string(body))

			status, body = do(t, app, http.MethodGet, "/api/sessions", "")
			require.Equal(t, http.StatusOK, status)
			assert.JSONEq(t, `[]`, string(body), "nothing is stored")
		})
	}
}

func TestSessionNotFound(t *testing.T) {
	app := newTestApp(t, testConfig(), nil)

	for _, target := range []string{"/api/sessions/nope", "/api/sessions/nope/summary", "/api/sessions/nope/timeline"} {
		status, body := do(t, app, http.MethodGet, target, "")
		assert.Equal(t, http.StatusNotFound, status, target)
		assert.JSONEq(t, `{"error": "Session not found"}`, string(body))
	}

	status, body := do(t, app, http.MethodGet, "/api/emotions/nope", "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(body))
}

func TestSummaryAndTimeline(t *testing.T) {
	app := newTestApp(t, testConfig(), nil)

	status, _ := do(t, app, http.MethodPost, "/api/emotions", `{
		"sessionId": "s",
		"emotions": [
			{"emotion": "happy", "confidence": 0.8, "timestamp": 1000},
			{"emotion": "happy", "confidence": 0.6, "timestamp": 2000},
			{"emotion": "sad", "confidence": 0.5, "timestamp": 3000},
			{"emotion": "sad", "confidence": 0.7, "timestamp": 9000}
		]
	}`)
	require.Equal(t, http.StatusOK, status)

	status, body := do(t, app, http.MethodGet, "/api/sessions/s/summary", "")
	require.Equal(t, http.StatusOK, status)
	var summary aggregate.Summary
	require.NoError(t, json.Unmarshal(body, &summary))
	assert.Equal(t, emotion.Happy, summary.Dominant, "ties go to the earlier label")
	assert.Equal(t, 4, summary.TotalSamples)
	assert.Len(t, summary.Recent, 4)

	status, body = do(t, app, http.MethodGet, "/api/sessions/s/timeline", "")
	require.Equal(t, http.StatusOK, status)
	var tl services.Timeline
	require.NoError(t, json.Unmarshal(body, &tl))
	assert.Len(t, tl.Episodes, 3)
	assert.Equal(t, []emotion.Label{emotion.Happy, emotion.Sad}, tl.Flow)

	status, body = do(t, app, http.MethodGet, "/api/sessions/s/timeline?gap=6000", "")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &tl))
	assert.Len(t, tl.Episodes, 2)

	status, body = do(t, app, http.MethodGet, "/api/sessions/s/timeline?gap=0", "")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &tl))
	assert.Len(t, tl.Episodes, 4, "zero gap splits the happy run")

	status, _ = do(t, app, http.MethodGet, "/api/sessions/s/timeline?gap=-1", "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, app, http.MethodGet, "/api/sessions/s/timeline?gap=9223372036854775807", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRecommendations(t *testing.T) {
	app := newTestApp(t, testConfig(), nil)

	status, body := do(t, app, http.MethodGet, "/api/recommendations?currentEmotion=sad&recentEmotions=sad,bored,angry&sessionDuration=120000", "")
	require.Equal(t, http.StatusOK, status)
	var recs []recommend.Recommendation
	require.NoError(t, json.Unmarshal(body, &recs))
	assert.Equal(t, recommend.Fallback(emotion.Sad), recs)

	status, body = do(t, app, http.MethodGet, "/api/recommendations", "")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &recs))
	assert.Equal(t, recommend.Fallback(emotion.Neutral), recs, "missing current emotion means neutral")

	status, body = do(t, app, http.MethodGet, "/api/recommendations?currentEmotion=bored", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.JSONEq(t, `{"error": "Invalid emotion type"}`, string(body))
}

func TestRecommendationsUseGenerator(t *testing.T) {
	var prompts []string
	gen := llm.GeneratorFunc(func(ctx context.Context, req llm.Request) (string, error) {
		prompts = append(prompts, req.Prompt)
		return `{"recommendations": [{"type": "meditation", "title": "Body scan", "description": "Notice each part of your body.", "duration": 6}]}`, nil
	})
	guarded := llm.NewGuarded(gen, "test", llm.NewCircuitBreaker(), llm.NewMetricsCollector(), logging.Discard())
	app := newTestApp(t, testConfig(), guarded)

	status, body := do(t, app, http.MethodGet, "/api/recommendations?currentEmotion=fearful&recentEmotions=happy,sad,sad,angry,fearful,fearful", "")
	require.Equal(t, http.StatusOK, status)
	var recs []recommend.Recommendation
	require.NoError(t, json.Unmarshal(body, &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, recommend.Meditation, recs[0].Type)
	assert.Equal(t, 1, recs[0].Priority)

	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "Recent emotion pattern: sad, sad, angry, fearful, fearful")

	status, body = do(t, app, http.MethodGet, "/api/health/llm", "")
	require.Equal(t, http.StatusOK, status)
	var health services.LLMHealth
	require.NoError(t, json.Unmarshal(body, &health))
	assert.True(t, health.Configured)
	assert.Equal(t, "closed", health.Breaker)
	assert.Equal(t, int64(1), health.Metrics.Requests["test"])
}

func TestCompanion(t *testing.T) {
	app := newTestApp(t, testConfig(), nil)

	status, body := do(t, app, http.MethodPost, "/api/companion", `{"emotion": "a bit overwhelmed"}`)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"message": "`+recommend.CompanionSleeping+`"}`, string(body))

	for _, bad := range []string{
		`{}`,
		`{"emotion": ""}`,
		`{"emotion": 5}`,
		`{"emotion": "` + strings.Repeat("x", 201) + `"}`,
	} {
		status, _ := do(t, app, http.MethodPost, "/api/companion", bad)
		assert.Equal(t, http.StatusBadRequest, status, bad)
	}

	status, _ = do(t, app, http.MethodPost, "/api/companion", `{"emotion": "`+strings.Repeat("é", 200)+`"}`)
	assert.Equal(t, http.StatusOK, status, "length counts characters, not bytes")
}

func TestCompanionGeneratorFailure(t *testing.T) {
	gen := llm.GeneratorFunc(func(ctx context.Context, req llm.Request) (string, error) {
		return "", errors.New("upstream unavailable")
	})
	guarded := llm.NewGuarded(gen, "test", llm.NewCircuitBreaker(), llm.NewMetricsCollector(), logging.Discard())
	app := newTestApp(t, testConfig(), guarded)

	status, body := do(t, app, http.MethodPost, "/api/companion", `{"emotion": "sad"}`)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"message": "`+recommend.CompanionFallback+`"}`, string(body))
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Recommendations.RateLimit = 2
	app := newTestApp(t, cfg, nil)

	for i := 0; i < 2; i++ {
		status, _ := do(t, app, http.MethodGet, "/api/recommendations?currentEmotion=happy", "")
		require.Equal(t, http.StatusOK, status)
	}
	status, _ := do(t, app, http.MethodGet, "/api/recommendations?currentEmotion=happy", "")
	assert.Equal(t, http.StatusTooManyRequests, status)

	// companion is counted separately
	status, _ = do(t, app, http.MethodPost, "/api/companion", `{"emotion": "ok"}`)
	assert.Equal(t, http.StatusOK, status)
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, testConfig(), nil)

	status, body := do(t, app, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, status)
	var health map[string]any
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Greater(t, health["timestamp"], float64(0))
	require.Contains(t, health, "storage")
	assert.Equal(t, true, health["storage"].(map[string]any)["healthy"])

	status, body = do(t, app, http.MethodGet, "/api/health/llm", "")
	require.Equal(t, http.StatusOK, status)
	var llmHealth services.LLMHealth
	require.NoError(t, json.Unmarshal(body, &llmHealth))
	assert.False(t, llmHealth.Configured)
	assert.Equal(t, "disabled", llmHealth.Breaker)
}

func TestWebsocketRequiresUpgrade(t *testing.T) {
	app := newTestApp(t, testConfig(), nil)

	status, _ := do(t, app, http.MethodGet, "/ws/sessions/s", "")
	assert.Equal(t, http.StatusUpgradeRequired, status)
}
