package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/moodlens/moodlens-backend/internal/config"
)

// OpenAIProvider generates text through any OpenAI-compatible chat completion
// endpoint (OpenAI itself, Gemini's compatibility layer, local servers).
type OpenAIProvider struct {
	config config.LLMConfig
	client *openai.Client
}

// NewOpenAIProvider creates a provider. An API key is required.
func NewOpenAIProvider(cfg config.LLMConfig) (*OpenAIProvider, error) {
	if !cfg.Configured() {
		return nil, errors.New("LLM API key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return &OpenAIProvider{
		config: cfg,
		client: openai.NewClientWithConfig(clientCfg),
	}, nil
}

// Name identifies the provider in metrics and breaker keys
func (p *OpenAIProvider) Name() string {
	return "openai:" + p.config.Model
}

// Generate performs a non-streaming chat completion and returns the first choice
func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (string, error) {
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	resp, err := p.client.CreateChatCompletion(ctx, p.convertRequest(req))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

// convertRequest converts internal request to OpenAI request
func (p *OpenAIProvider) convertRequest(req Request) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	openAIReq := openai.ChatCompletionRequest{
		Model:       p.config.Model,
		Messages:    messages,
		Temperature: p.config.Temperature,
		MaxTokens:   p.config.MaxTokens,
	}

	if req.JSON {
		openAIReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	return openAIReq
}
