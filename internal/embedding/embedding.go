package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"document-assistant/internal/config"
	"document-assistant/internal/workerpool"
)

// Embedder maps texts to fixed-dimension vectors in batches.
type Embedder struct {
	client    embeddings.Embedder
	dimension int
	pool      *workerpool.Pool
}

// NewEmbedder wraps any langchaingo embedder. Calls are dispatched through pool.
func NewEmbedder(client embeddings.Embedder, dimension int, pool *workerpool.Pool) *Embedder {
	return &Embedder{client: client, dimension: dimension, pool: pool}
}

// NewFromConfig builds the embedding client selected by cfg.Provider.
func NewFromConfig(cfg *config.LLMConfig, dimension int, pool *workerpool.Pool) (*Embedder, error) {
	log.Debug().Interface("config", map[string]string{
		"provider":        cfg.Provider,
		"base_url":        cfg.BaseURL,
		"embedding_model": cfg.Model,
	}).Msg("Creating embedder")

	var client embeddings.EmbedderClient
	switch cfg.Provider {
	case config.ProviderOllama:
		llm, err := ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		client = llm
	case config.ProviderOpenAI:
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithEmbeddingModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai client: %w", err)
		}
		client = llm
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}

	var opts []embeddings.Option
	if cfg.BatchSize > 0 {
		opts = append(opts, embeddings.WithBatchSize(cfg.BatchSize))
	}
	embedder, err := embeddings.NewEmbedder(client, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return NewEmbedder(embedder, dimension, pool), nil
}

func (e *Embedder) Dimension() int { return e.dimension }

// Embed embeds all texts in one batch call. Every returned vector has
// exactly Dimension() components.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors, err := workerpool.Do(ctx, e.pool, func(ctx context.Context) ([][]float32, error) {
		return e.client.EmbedDocuments(ctx, texts)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed %d texts: %w", len(texts), err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) != e.dimension {
			return nil, fmt.Errorf("vector %d has dimension %d, expected %d", i, len(v), e.dimension)
		}
	}

	log.Debug().Int("texts", len(texts)).Int("dimension", e.dimension).Msg("Generated embeddings")
	return vectors, nil
}

// EmbedQuery embeds a single text as a one-item batch.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
