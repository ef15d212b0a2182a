package llmservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"golang.org/x/time/rate"

	"document-assistant/internal/config"
	"document-assistant/internal/models"
)

// Client turns chat messages into a single completion. Max tokens is fixed
// per client; temperature is chosen by the caller.
type Client struct {
	llm       llms.Model
	maxTokens int
	limiter   *rate.Limiter
}

func NewClient(llm llms.Model, maxTokens int, requestsPerSecond float64) *Client {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &Client{llm: llm, maxTokens: maxTokens, limiter: rate.NewLimiter(limit, 1)}
}

// NewFromConfig builds the chat model selected by llmConfig.Provider.
func NewFromConfig(llmConfig *config.LLMConfig) (*Client, error) {
	log.Debug().Str("provider", llmConfig.Provider).Str("model", llmConfig.Model).Msg("Creating LLM client")

	var (
		llm llms.Model
		err error
	)
	switch llmConfig.Provider {
	case config.ProviderOpenAI:
		llm, err = openai.New(
			openai.WithBaseURL(llmConfig.BaseURL),
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithModel(llmConfig.Model),
		)
	case config.ProviderOllama:
		llm, err = ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
		)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", llmConfig.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create llm client: %w", err)
	}
	return NewClient(llm, llmConfig.MaxTokens, llmConfig.RequestsPerSecond), nil
}

// Complete sends messages to the model and returns the first choice.
func (c *Client) Complete(ctx context.Context, messages []models.Message, temperature float64) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	opts := []llms.CallOption{llms.WithTemperature(temperature)}
	if c.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.maxTokens))
	}

	res, err := c.llm.GenerateContent(ctx, ToMessageContent(messages), opts...)
	if err != nil {
		return "", fmt.Errorf("llm generation failed: %w", err)
	}
	if len(res.Choices) == 0 {
		return "", errors.New("llm returned no choices")
	}
	return res.Choices[0].Content, nil
}

// ToMessageContent converts role/content pairs to langchaingo messages.
// Unknown roles are sent as human turns.
func ToMessageContent(messages []models.Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		role := schema.ChatMessageTypeHuman
		switch m.Role {
		case models.RoleSystem:
			role = schema.ChatMessageTypeSystem
		case models.RoleAssistant:
			role = schema.ChatMessageTypeAI
		}
		out = append(out, llms.TextParts(role, m.Content))
	}
	return out
}
