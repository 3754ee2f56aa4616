package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodlens/moodlens-backend/internal/config"
	"github.com/moodlens/moodlens-backend/internal/logging"
)

func chatServer(t *testing.T, content string, captured *map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if captured != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "test-model",
			"choices": []map[string]interface{}{
				{
					"index":         0,
					"message":       map[string]string{"role": "assistant", "content": content},
					"finish_reason": "stop",
				},
			},
		})
	}))
}

func TestOpenAIProvider_RequiresKey(t *testing.T) {
	_, err := NewOpenAIProvider(config.LLMConfig{})
	assert.Error(t, err)
}

func TestOpenAIProvider_Generate(t *testing.T) {
	var body map[string]interface{}
	srv := chatServer(t, "  hello there  ", &body)
	defer srv.Close()

	p, err := NewOpenAIProvider(config.LLMConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL + "/",
		Model:   "test-model",
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)

	out, err := p.Generate(context.Background(), Request{System: "be kind", Prompt: "hi", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, "hello there", out)

	assert.Equal(t, "test-model", body["model"])
	messages, ok := body["messages"].([]interface{})
	require.True(t, ok)
	assert.Len(t, messages, 2)
	format, ok := body["response_format"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "json_object", format["type"])
	assert.Equal(t, "openai:test-model", p.Name())
}

func TestOpenAIProvider_EmptyContent(t *testing.T) {
	srv := chatServer(t, "   ", nil)
	defer srv.Close()

	p, err := NewOpenAIProvider(config.LLMConfig{APIKey: "test-key", BaseURL: srv.URL, Model: "m"})
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), Request{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOpenAIProvider_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider(config.LLMConfig{APIKey: "test-key", BaseURL: srv.URL, Model: "m"})
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), Request{Prompt: "hi"})
	assert.Error(t, err)
}

func TestCircuitBreaker_OpensAndRecovers(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker(
		WithThresholds(2, 1),
		WithOpenTimeout(10*time.Second),
		WithBreakerLogger(logging.Discard()),
		WithClock(func() time.Time { return now }),
	)
	boom := errors.New("boom")
	calls := 0
	fail := func() error { calls++; return boom }
	ok := func() error { calls++; return nil }

	assert.ErrorIs(t, cb.Execute("k", fail), boom)
	assert.Equal(t, StateClosed, cb.GetState("k"))
	assert.ErrorIs(t, cb.Execute("k", fail), boom)
	assert.Equal(t, StateOpen, cb.GetState("k"))

	assert.ErrorIs(t, cb.Execute("k", ok), ErrBreakerOpen)
	assert.Equal(t, 2, calls, "open breaker must not call through")

	now = now.Add(11 * time.Second)
	assert.Equal(t, StateHalfOpen, cb.GetState("k"))
	assert.NoError(t, cb.Execute("k", ok))
	assert.Equal(t, StateClosed, cb.GetState("k"))
	assert.Equal(t, "closed", cb.GetState("k").String())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker(
		WithThresholds(1, 2),
		WithOpenTimeout(time.Second),
		WithBreakerLogger(logging.Discard()),
		WithClock(func() time.Time { return now }),
	)
	boom := errors.New("boom")

	_ = cb.Execute("k", func() error { return boom })
	now = now.Add(2 * time.Second)
	_ = cb.Execute("k", func() error { return boom })
	assert.Equal(t, StateOpen, cb.GetState("k"))

	cb.Reset("k")
	assert.Equal(t, StateClosed, cb.GetState("k"))
	assert.Equal(t, StateClosed, cb.GetState("unknown"))
}

func TestGuarded_RecordsMetrics(t *testing.T) {
	boom := errors.New("boom")
	results := []error{nil, boom}
	gen := GeneratorFunc(func(ctx context.Context, req Request) (string, error) {
		err := results[0]
		results = results[1:]
		if err != nil {
			return "", err
		}
		return "text:" + req.Prompt, nil
	})

	g := NewGuarded(gen, "test", NewCircuitBreaker(WithBreakerLogger(logging.Discard())), NewMetricsCollector(), logging.Discard())

	out, err := g.Generate(context.Background(), Request{Prompt: "a"})
	require.NoError(t, err)
	assert.Equal(t, "text:a", out)

	_, err = g.Generate(context.Background(), Request{Prompt: "b"})
	assert.ErrorIs(t, err, boom)

	snap := g.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.Requests["test"])
	assert.Equal(t, int64(1), snap.Errors["test"])
	assert.Equal(t, 2, snap.LatencySamples["test"])
	assert.Equal(t, StateClosed, g.State())
	assert.Equal(t, "test", g.Key())
}
