// Package recommend turns an emotional state into wellness suggestions,
// preferring a text generation capability and degrading to a static table.
package recommend

import (
	"time"

	"github.com/moodlens/moodlens-backend/internal/emotion"
)

// Type is the kind of wellness activity
type Type string

const (
	Breathing   Type = "breathing"
	Meditation  Type = "meditation"
	Break       Type = "break"
	Affirmation Type = "affirmation"
	Stretch     Type = "stretch"
)

// Valid reports whether t is a known activity type
func (t Type) Valid() bool {
	switch t {
	case Breathing, Meditation, Break, Affirmation, Stretch:
		return true
	}
	return false
}

const (
	MinPriority = 1
	MaxPriority = 5

	// DefaultRecentLimit bounds the recent label window sent as prompt context
	DefaultRecentLimit = 5
)

// Recommendation is one suggested activity
type Recommendation struct {
	ID          string   `json:"id"`
	Type        Type     `json:"type"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Duration    *float64 `json:"duration,omitempty"` // minutes
	Priority    int      `json:"priority"`
}

// Source tells where a set of recommendations came from
type Source int

const (
	SourceNone Source = iota
	SourceFallback
	SourceGenerated
)

func (s Source) String() string {
	switch s {
	case SourceFallback:
		return "fallback"
	case SourceGenerated:
		return "generated"
	}
	return "none"
}

// Request carries the emotional context for a recommendation lookup
type Request struct {
	// Current is the dominant label; emotion.None means no recommendations
	Current emotion.Label
	// Recent labels, oldest first
	Recent          []emotion.Label
	SessionDuration time.Duration
}
