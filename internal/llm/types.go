package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when the model produced no text
var ErrEmptyResponse = errors.New("no content in response")

// Request is a single-turn text generation request
type Request struct {
	System string
	Prompt string
	// JSON asks the provider for a JSON object response when it supports it
	JSON bool
}

// Generator produces text for a prompt. Implementations must honour ctx.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to Generator
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
