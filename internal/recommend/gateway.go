package recommend

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/moodlens/moodlens-backend/internal/emotion"
	"github.com/moodlens/moodlens-backend/internal/llm"
)

const (
	// CompanionSleeping is returned when no text generation capability is configured
	CompanionSleeping = "Your wellness companion is resting because no language model API key is configured. " +
		"Add an API key to unlock personalized emotional support."
	// CompanionFallback is returned when the capability fails
	CompanionFallback = "I'm having a little trouble thinking right now, but slowing down, breathing deeply " +
		"and being kind to yourself is always a good next step."
)

// Gateway fetches recommendations and companion messages. It never returns
// an error: every failure degrades to static content.
type Gateway struct {
	generator   llm.Generator
	logger      *logrus.Logger
	recentLimit int
}

// Option configures a Gateway
type Option func(*Gateway)

// WithRecentLimit bounds how many recent labels go into the prompt
func WithRecentLimit(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.recentLimit = n
		}
	}
}

// NewGateway creates a gateway. A nil generator means the capability is not
// configured and only the fallback table is served.
func NewGateway(generator llm.Generator, logger *logrus.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		generator:   generator,
		logger:      logger,
		recentLimit: DefaultRecentLimit,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Configured reports whether a text generation capability is attached
func (g *Gateway) Configured() bool {
	return g.generator != nil
}

// Recommend returns suggestions for req. An empty current label yields nil.
func (g *Gateway) Recommend(ctx context.Context, req Request) []Recommendation {
	recs, _ := g.RecommendFrom(ctx, req)
	return recs
}

// RecommendFrom is Recommend that also reports whether the suggestions were
// generated or taken from the fallback table
func (g *Gateway) RecommendFrom(ctx context.Context, req Request) ([]Recommendation, Source) {
	if req.Current == emotion.None {
		return nil, SourceNone
	}
	if !req.Current.Valid() {
		g.logger.WithField("emotion", req.Current).Warn("Unrecognized emotion, using neutral recommendations")
		return Fallback(emotion.Neutral), SourceFallback
	}
	if g.generator == nil {
		g.logger.Debug("Text generation not configured, using fallback recommendations")
		return Fallback(req.Current), SourceFallback
	}

	recent := req.Recent
	if len(recent) > g.recentLimit {
		recent = recent[len(recent)-g.recentLimit:]
	}

	text, err := g.generator.Generate(ctx, recommendationPrompt(req.Current, recent, req.SessionDuration))
	if err != nil {
		g.logger.WithError(err).WithField("emotion", req.Current).Warn("Recommendation generation failed, using fallback")
		return Fallback(req.Current), SourceFallback
	}

	recs, err := parseRecommendations(text)
	if err != nil {
		g.logger.WithError(err).WithField("emotion", req.Current).Warn("Invalid recommendation response, using fallback")
		return Fallback(req.Current), SourceFallback
	}
	return recs, SourceGenerated
}

// Companion returns a short supportive message for a free-text description
func (g *Gateway) Companion(ctx context.Context, description string) string {
	if g.generator == nil {
		return CompanionSleeping
	}

	text, err := g.generator.Generate(ctx, companionPrompt(description))
	if err != nil {
		g.logger.WithError(err).Warn("Companion generation failed")
		return CompanionFallback
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return CompanionFallback
	}
	return text
}
