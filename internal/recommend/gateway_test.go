package recommend

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodlens/moodlens-backend/internal/emotion"
	"github.com/moodlens/moodlens-backend/internal/llm"
	"github.com/moodlens/moodlens-backend/internal/logging"
)

type recordingGenerator struct {
	reply    string
	err      error
	requests []llm.Request
}

func (r *recordingGenerator) Generate(ctx context.Context, req llm.Request) (string, error) {
	r.requests = append(r.requests, req)
	return r.reply, r.err
}

func TestFallback(t *testing.T) {
	for _, l := range emotion.Labels() {
		recs := Fallback(l)
		assert.Len(t, recs, 2, l)
		for _, r := range recs {
			assert.True(t, r.Type.Valid())
			assert.GreaterOrEqual(t, r.Priority, MinPriority)
		}
	}

	assert.Equal(t, Fallback(emotion.Neutral), Fallback(emotion.Label("bored")))

	// callers may not corrupt the table
	recs := Fallback(emotion.Sad)
	recs[0].Title = "changed"
	*recs[0].Duration = 99
	fresh := Fallback(emotion.Sad)
	assert.Equal(t, "Calming Breaths", fresh[0].Title)
	assert.Equal(t, 4.0, *fresh[0].Duration)
}

func TestGateway_Unconfigured(t *testing.T) {
	g := NewGateway(nil, logging.Discard())

	assert.False(t, g.Configured())
	got := g.Recommend(context.Background(), Request{Current: emotion.Sad, Recent: []emotion.Label{emotion.Sad}})
	assert.Equal(t, Fallback(emotion.Sad), got)
	require.Len(t, got, 2)
	assert.Equal(t, "3", got[0].ID)
	assert.Equal(t, "4", got[1].ID)

	assert.Equal(t, CompanionSleeping, g.Companion(context.Background(), "tired"))
}

func TestGateway_NoCurrentLabel(t *testing.T) {
	gen := &recordingGenerator{}
	g := NewGateway(gen, logging.Discard())

	assert.Nil(t, g.Recommend(context.Background(), Request{}))
	assert.Empty(t, gen.requests)
}

func TestGateway_UnknownLabelUsesNeutral(t *testing.T) {
	gen := &recordingGenerator{}
	g := NewGateway(gen, logging.Discard())

	assert.Equal(t, Fallback(emotion.Neutral), g.Recommend(context.Background(), Request{Current: emotion.Label("meh")}))
	assert.Empty(t, gen.requests)
}

func TestGateway_GeneratorFailure(t *testing.T) {
	gen := &recordingGenerator{err: errors.New("network down")}
	g := NewGateway(gen, logging.Discard())

	assert.Equal(t, Fallback(emotion.Sad), g.Recommend(context.Background(), Request{Current: emotion.Sad}))
	assert.Equal(t, CompanionFallback, g.Companion(context.Background(), "sad"))
}

func TestGateway_RecommendFromReportsSource(t *testing.T) {
	ctx := context.Background()

	_, source := NewGateway(nil, logging.Discard()).RecommendFrom(ctx, Request{})
	assert.Equal(t, SourceNone, source)

	_, source = NewGateway(nil, logging.Discard()).RecommendFrom(ctx, Request{Current: emotion.Sad})
	assert.Equal(t, SourceFallback, source)

	failing := &recordingGenerator{err: errors.New("timeout")}
	_, source = NewGateway(failing, logging.Discard()).RecommendFrom(ctx, Request{Current: emotion.Sad})
	assert.Equal(t, SourceFallback, source)

	ok := &recordingGenerator{reply: `{"recommendations": [{"type": "break", "title": "t", "description": "d"}]}`}
	recs, source := NewGateway(ok, logging.Discard()).RecommendFrom(ctx, Request{Current: emotion.Sad})
	assert.Equal(t, SourceGenerated, source)
	assert.Len(t, recs, 1)
	assert.Equal(t, "generated", source.String())
}

func TestGateway_ValidResponseWithProse(t *testing.T) {
	gen := &recordingGenerator{reply: "Sure! Here you go:\n```json\n" + `{
		"recommendations": [
			{"type": "breathing", "title": "Box breathing {4-4-4}", "description": "Breathe \"slowly\" in a square rhythm.", "duration": 4, "priority": 2},
			{"type": "affirmation", "title": "Kind words", "description": "Tell yourself something gentle."}
		]
	}` + "\n```\nHope that helps {:"}
	g := NewGateway(gen, logging.Discard())

	got := g.Recommend(context.Background(), Request{
		Current:         emotion.Sad,
		Recent:          []emotion.Label{emotion.Happy, emotion.Neutral, emotion.Sad, emotion.Sad, emotion.Angry, emotion.Sad, emotion.Fearful},
		SessionDuration: 125 * time.Second,
	})

	require.Len(t, got, 2)
	assert.Equal(t, Breathing, got[0].Type)
	assert.Equal(t, "Box breathing {4-4-4}", got[0].Title)
	assert.Equal(t, 2, got[0].Priority)
	require.NotNil(t, got[0].Duration)
	assert.Equal(t, 4.0, *got[0].Duration)
	assert.Equal(t, 2, got[1].Priority, "missing priority defaults to index+1")
	assert.Nil(t, got[1].Duration)
	assert.NotEmpty(t, got[0].ID)
	assert.NotEqual(t, got[0].ID, got[1].ID)

	require.Len(t, gen.requests, 1)
	prompt := gen.requests[0].Prompt
	assert.True(t, gen.requests[0].JSON)
	assert.Contains(t, prompt, "Current emotion: sad")
	assert.Contains(t, prompt, "Recent emotion pattern: sad, sad, angry, sad, fearful")
	assert.Contains(t, prompt, "Session duration: 2 minutes")
	assert.Contains(t, prompt, `"recommendations"`)
	assert.Contains(t, prompt, "meditation")
}

func TestGateway_MalformedResponses(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{name: "no json", reply: "I think you should breathe."},
		{name: "unbalanced", reply: `{"recommendations": [{"type": "breathing"`},
		{name: "invalid json", reply: `{"recommendations": [type: breathing]}`},
		{name: "missing array", reply: `{"suggestions": []}`},
		{name: "array is null", reply: `{"recommendations": null}`},
		{name: "array is object", reply: `{"recommendations": {"type": "breathing"}}`},
		{name: "empty array", reply: `{"recommendations": []}`},
		{name: "entry not object", reply: `{"recommendations": ["breathe"]}`},
		{name: "null entry", reply: `{"recommendations": [null]}`},
		{name: "unknown type", reply: `{"recommendations": [{"type": "yoga", "title": "t", "description": "d"}]}`},
		{name: "type wrong kind", reply: `{"recommendations": [{"type": 3, "title": "t", "description": "d"}]}`},
		{name: "missing title", reply: `{"recommendations": [{"type": "break", "description": "d"}]}`},
		{name: "duration string", reply: `{"recommendations": [{"type": "break", "title": "t", "description": "d", "duration": "5 min"}]}`},
		{name: "id number", reply: `{"recommendations": [{"id": 7, "type": "break", "title": "t", "description": "d"}]}`},
		{
			name:  "one bad entry rejects all",
			reply: `{"recommendations": [{"type": "break", "title": "t", "description": "d"}, {"type": "nap", "title": "t", "description": "d"}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGateway(&recordingGenerator{reply: tt.reply}, logging.Discard())
			assert.Equal(t, Fallback(emotion.Angry), g.Recommend(context.Background(), Request{Current: emotion.Angry}))
		})
	}
}

func TestParseRecommendations_Normalization(t *testing.T) {
	recs, err := parseRecommendations(`{"recommendations": [
		{"id": "a", "type": "stretch", "title": "t1", "description": "d1", "priority": 9},
		{"id": "a", "type": "stretch", "title": "t2", "description": "d2", "priority": 2.5},
		{"id": "", "type": "break", "title": "t3", "description": "d3", "priority": "high"},
		{"type": "meditation", "title": "t4", "description": "d4", "priority": 4}
	]}`)
	require.NoError(t, err)
	require.Len(t, recs, 4)

	assert.Equal(t, "a", recs[0].ID)
	assert.Equal(t, 1, recs[0].Priority, "out of range priority defaults to index+1")
	assert.NotEqual(t, "a", recs[1].ID, "duplicate id is replaced")
	assert.Equal(t, 2, recs[1].Priority)
	assert.True(t, strings.HasPrefix(recs[2].ID, "ai-"))
	assert.Equal(t, 3, recs[2].Priority)
	assert.Equal(t, 4, recs[3].Priority)

	ids := map[string]bool{}
	for _, r := range recs {
		assert.False(t, ids[r.ID], "ids must be unique")
		ids[r.ID] = true
	}
}

func TestParseRecommendations_DefaultPriorityFollowsPosition(t *testing.T) {
	entries := make([]string, 7)
	for i := range entries {
		entries[i] = `{"type": "break", "title": "t", "description": "d"}`
	}
	entries[6] = `{"type": "break", "title": "t", "description": "d", "priority": 3}`

	recs, err := parseRecommendations(`{"recommendations": [` + strings.Join(entries, ",") + `]}`)
	require.NoError(t, err)
	require.Len(t, recs, 7)
	assert.Equal(t, 5, recs[4].Priority)
	assert.Equal(t, 6, recs[5].Priority)
	assert.Equal(t, 3, recs[6].Priority)
}

func TestExtractObject(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: `{"a":1}`, want: `{"a":1}`},
		{in: `prefix {"a":{"b":2}} suffix {"c":3}`, want: `{"a":{"b":2}}`},
		{in: `{"s":"}{"}`, want: `{"s":"}{"}`},
		{in: `{"s":"quote \" and } brace"}`, want: `{"s":"quote \" and } brace"}`},
		{in: `no object`, wantErr: true},
		{in: `{"open": {`, wantErr: true},
	}

	for _, tt := range tests {
		got, err := extractObject(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestGateway_RecentLimitOption(t *testing.T) {
	gen := &recordingGenerator{err: errors.New("offline")}
	g := NewGateway(gen, logging.Discard(), WithRecentLimit(2))

	g.Recommend(context.Background(), Request{
		Current: emotion.Happy,
		Recent:  []emotion.Label{emotion.Sad, emotion.Angry, emotion.Happy},
	})

	require.Len(t, gen.requests, 1)
	assert.Contains(t, gen.requests[0].Prompt, "Recent emotion pattern: angry, happy\n")
}

func TestGateway_Companion(t *testing.T) {
	gen := &recordingGenerator{reply: "  Take a slow breath, you are doing fine.  "}
	g := NewGateway(gen, logging.Discard())

	assert.Equal(t, "Take a slow breath, you are doing fine.", g.Companion(context.Background(), "anxious but hopeful"))
	require.Len(t, gen.requests, 1)
	assert.Contains(t, gen.requests[0].Prompt, `"anxious but hopeful"`)
	assert.False(t, gen.requests[0].JSON)

	gen.reply = "   "
	assert.Equal(t, CompanionFallback, g.Companion(context.Background(), "meh"))
}
