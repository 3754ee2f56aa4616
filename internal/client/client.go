// Package client talks to the MoodLens HTTP API. It backs the CLI and the
// monitor's background sync.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/moodlens/moodlens-backend/internal/aggregate"
	"github.com/moodlens/moodlens-backend/internal/api/models"
	"github.com/moodlens/moodlens-backend/internal/emotion"
	"github.com/moodlens/moodlens-backend/internal/recommend"
	"github.com/moodlens/moodlens-backend/internal/repository"
	"github.com/moodlens/moodlens-backend/internal/services"
	"github.com/moodlens/moodlens-backend/internal/session"
)

// DefaultTimeout bounds each request when the caller supplies no client
const DefaultTimeout = 15 * time.Second

// ErrNotFound is returned for 404 responses
var ErrNotFound = errors.New("not found")

// HTTPDoer is the subset of *http.Client the API client needs
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a MoodLens API client
type Client struct {
	baseURL string
	http    HTTPDoer
}

// APIError is a non-2xx response
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api %d: %s", e.Status, e.Message)
}

// Unwrap maps 404 responses to ErrNotFound
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// New creates a client for baseURL, e.g. http://localhost:5000. A nil doer
// uses an http.Client with DefaultTimeout.
func New(baseURL string, doer HTTPDoer) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    doer,
	}
}

var _ session.Persister = (*Client)(nil)

type wireSample struct {
	Emotion    emotion.Label `json:"emotion"`
	Confidence float64       `json:"confidence"`
	Timestamp  int64         `json:"timestamp"`
}

// SaveBatch uploads samples for a session. The server assigns sample ids.
func (c *Client) SaveBatch(ctx context.Context, sessionID string, samples []emotion.Sample) error {
	body := struct {
		Emotions  []wireSample `json:"emotions"`
		SessionID string       `json:"sessionId"`
	}{
		Emotions:  make([]wireSample, len(samples)),
		SessionID: sessionID,
	}
	for i, s := range samples {
		body.Emotions[i] = wireSample{Emotion: s.Label, Confidence: s.Confidence, Timestamp: s.Timestamp}
	}

	var out models.SaveEmotionsResponse
	if err := c.do(ctx, http.MethodPost, "/api/emotions", nil, body, &out); err != nil {
		return fmt.Errorf("save emotions: %w", err)
	}
	if !out.Success || out.Count != len(samples) {
		return fmt.Errorf("save emotions: server stored %d of %d samples", out.Count, len(samples))
	}
	return nil
}

// Sessions lists stored sessions
func (c *Client) Sessions(ctx context.Context) ([]repository.Session, error) {
	var out []repository.Session
	if err := c.do(ctx, http.MethodGet, "/api/sessions", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return out, nil
}

// Session returns a session with its samples
func (c *Client) Session(ctx context.Context, id string) (services.SessionDetail, error) {
	var out services.SessionDetail
	if err := c.do(ctx, http.MethodGet, "/api/sessions/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return out, fmt.Errorf("get session %s: %w", id, err)
	}
	return out, nil
}

// Summary returns the aggregate summary of a session
func (c *Client) Summary(ctx context.Context, id string) (aggregate.Summary, error) {
	var out aggregate.Summary
	if err := c.do(ctx, http.MethodGet, "/api/sessions/"+url.PathEscape(id)+"/summary", nil, nil, &out); err != nil {
		return out, fmt.Errorf("get summary %s: %w", id, err)
	}
	return out, nil
}

// Timeline returns the episodes of a session. A zero gap uses the server default.
func (c *Client) Timeline(ctx context.Context, id string, gap time.Duration) (services.Timeline, error) {
	query := url.Values{}
	if gap >= 0 {
		query.Set("gap", strconv.FormatInt(gap.Milliseconds(), 10))
	}

	var out services.Timeline
	if err := c.do(ctx, http.MethodGet, "/api/sessions/"+url.PathEscape(id)+"/timeline", query, nil, &out); err != nil {
		return out, fmt.Errorf("get timeline %s: %w", id, err)
	}
	return out, nil
}

// Emotions returns a session's samples in arrival order
func (c *Client) Emotions(ctx context.Context, sessionID string) ([]emotion.Sample, error) {
	var out []emotion.Sample
	if err := c.do(ctx, http.MethodGet, "/api/emotions/"+url.PathEscape(sessionID), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("get emotions %s: %w", sessionID, err)
	}
	return out, nil
}

// Recent returns the newest samples across sessions
func (c *Client) Recent(ctx context.Context, limit int) ([]emotion.Sample, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var out []emotion.Sample
	if err := c.do(ctx, http.MethodGet, "/api/emotions/recent", query, nil, &out); err != nil {
		return nil, fmt.Errorf("recent emotions: %w", err)
	}
	return out, nil
}

// Recommendations fetches wellness suggestions
func (c *Client) Recommendations(ctx context.Context, req recommend.Request) ([]recommend.Recommendation, error) {
	query := url.Values{}
	if req.Current != emotion.None {
		query.Set("currentEmotion", req.Current.String())
	}
	if len(req.Recent) > 0 {
		names := make([]string, len(req.Recent))
		for i, l := range req.Recent {
			names[i] = l.String()
		}
		query.Set("recentEmotions", strings.Join(names, ","))
	}
	if req.SessionDuration > 0 {
		query.Set("sessionDuration", strconv.FormatInt(req.SessionDuration.Milliseconds(), 10))
	}

	var out []recommend.Recommendation
	if err := c.do(ctx, http.MethodGet, "/api/recommendations", query, nil, &out); err != nil {
		return nil, fmt.Errorf("get recommendations: %w", err)
	}
	return out, nil
}

// Companion asks for a supportive message
func (c *Client) Companion(ctx context.Context, description string) (string, error) {
	var out models.CompanionResponse
	if err := c.do(ctx, http.MethodPost, "/api/companion", nil, models.CompanionRequest{Emotion: &description}, &out); err != nil {
		return "", fmt.Errorf("companion: %w", err)
	}
	return out.Message, nil
}

// Health checks the server and its text generation capability
func (c *Client) Health(ctx context.Context) (models.HealthResponse, services.LLMHealth, error) {
	var health models.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, nil, &health); err != nil {
		return health, services.LLMHealth{}, fmt.Errorf("health: %w", err)
	}
	var llmHealth services.LLMHealth
	if err := c.do(ctx, http.MethodGet, "/api/health/llm", nil, nil, &llmHealth); err != nil {
		return health, llmHealth, fmt.Errorf("llm health: %w", err)
	}
	return health, llmHealth, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	const maxErr = 4096
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErr))

	var payload struct {
		Error string `json:"error"`
	}
	message := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		message = payload.Error
	}
	if message == "" {
		message = resp.Status
	}
	return &APIError{Status: resp.StatusCode, Message: message}
}
