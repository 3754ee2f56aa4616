package recommend

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/moodlens/moodlens-backend/internal/emotion"
	"github.com/moodlens/moodlens-backend/internal/llm"
)

const systemPrompt = "You are a mental wellness assistant. You suggest short, calming, actionable activities and never give medical advice."

const companionSystemPrompt = "You are a kind emotional wellness coach. Answer warmly in one or two sentences, offer empathy and one gentle action such as breathing, walking, listening to music, journaling or calling a friend. Avoid medical advice."

// schemaRecommendation documents the shape the model is asked to return
type schemaRecommendation struct {
	Type        string  `json:"type" jsonschema:"enum=breathing,enum=meditation,enum=break,enum=affirmation,enum=stretch"`
	Title       string  `json:"title" jsonschema:"description=Short and engaging title"`
	Description string  `json:"description" jsonschema:"description=Brief supportive description,maxLength=100"`
	Duration    float64 `json:"duration,omitempty" jsonschema:"description=Suggested length in minutes,minimum=0"`
	Priority    int     `json:"priority" jsonschema:"minimum=1,maximum=5"`
}

type schemaPayload struct {
	Recommendations []schemaRecommendation `json:"recommendations" jsonschema:"minItems=1,maxItems=3"`
}

var responseSchema = sync.OnceValue(func() string {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(&schemaPayload{})
	b, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return `{"recommendations": [{"type": "...", "title": "...", "description": "...", "duration": 0, "priority": 1}]}`
	}
	return string(b)
})

func recommendationPrompt(current emotion.Label, recent []emotion.Label, sessionDuration time.Duration) llm.Request {
	pattern := "none yet"
	if len(recent) > 0 {
		names := make([]string, len(recent))
		for i, l := range recent {
			names[i] = l.String()
		}
		pattern = strings.Join(names, ", ")
	}

	var b strings.Builder
	b.WriteString("Based on the user's emotional state, suggest 2-3 personalized wellness activities that fit the detected emotion.\n\n")
	fmt.Fprintf(&b, "Current emotion: %s\n", current)
	fmt.Fprintf(&b, "Recent emotion pattern: %s\n", pattern)
	fmt.Fprintf(&b, "Session duration: %d minutes\n\n", int(sessionDuration/time.Minute))
	b.WriteString("Reply with a single JSON object matching this JSON schema and nothing else:\n")
	b.WriteString(responseSchema())

	return llm.Request{
		System: systemPrompt,
		Prompt: b.String(),
		JSON:   true,
	}
}

func companionPrompt(description string) llm.Request {
	return llm.Request{
		System: companionSystemPrompt,
		Prompt: fmt.Sprintf("The user describes their current emotional state as: %q.\nReply with a supportive, empathetic message of one or two sentences.", description),
	}
}
