package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"document-assistant/internal/models"
	"document-assistant/internal/vectorstore"
)

type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type LanguageModel interface {
	Complete(ctx context.Context, messages []models.Message, temperature float64) (string, error)
}

// ConversationStore is an ordered, expiring message log per session.
type ConversationStore interface {
	History(ctx context.Context, sessionID string) ([]models.Message, error)
	Append(ctx context.Context, sessionID string, messages ...models.Message) error
	Clear(ctx context.Context, sessionID string) error
}

type Options struct {
	Namespace   string
	TopK        int
	Temperature float64
}

type RAG struct {
	embedder Embedder
	index    vectorstore.VectorIndex
	llm      LanguageModel
	sessions ConversationStore
	opts     Options
}

func NewRAG(embedder Embedder, index vectorstore.VectorIndex, llm LanguageModel, sessions ConversationStore, opts Options) *RAG {
	if opts.Namespace == "" {
		opts.Namespace = models.DefaultNamespace
	}
	if opts.TopK <= 0 {
		opts.TopK = models.DefaultTopK
	}
	if opts.Temperature == 0 {
		opts.Temperature = 0.7
	}
	return &RAG{embedder: embedder, index: index, llm: llm, sessions: sessions, opts: opts}
}

// Query answers query from the indexed documents, using and extending the
// history of sessionID. topK <= 0 uses the configured default.
func (r *RAG) Query(ctx context.Context, query, sessionID string, topK int) (*models.QueryResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, models.NewValidation(models.CodeInvalidInput, "query must not be empty")
	}
	if sessionID == "" {
		return nil, models.NewValidation(models.CodeInvalidInput, "session id must not be empty")
	}
	if topK <= 0 {
		topK = r.opts.TopK
	}
	logger := log.With().Str("session_id", sessionID).Logger()

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, models.Dependency(models.CodeEmbeddingFailure, "failed to embed query", err)
	}

	hits, err := r.index.Search(ctx, r.opts.Namespace, vector, topK)
	if err != nil {
		return nil, models.Dependency(models.CodeRetrievalFailure, "failed to search documents", err)
	}
	logger.Debug().Int("top_k", topK).Int("hits", len(hits)).Msg("Retrieved chunks")

	excerpts, sources := BuildContext(hits)

	history, err := r.sessions.History(ctx, sessionID)
	if err != nil {
		return nil, models.Dependency(models.CodeCacheFailure, "failed to load chat history", err)
	}

	messages := BuildMessages(history, excerpts, query)
	logger.Debug().Int("messages", len(messages)).Msg("Prepared prompt")

	answer, err := r.llm.Complete(ctx, messages, r.opts.Temperature)
	if err != nil {
		return nil, models.Dependency(models.CodeGenerationFailure, "failed to generate answer", err)
	}

	err = r.sessions.Append(ctx, sessionID,
		models.Message{Role: models.RoleUser, Content: query},
		models.Message{Role: models.RoleAssistant, Content: answer},
	)
	if err != nil {
		return nil, models.Dependency(models.CodeCacheFailure, "failed to save chat history", err)
	}

	logger.Info().Int("sources", len(sources)).Msg("Query answered")
	return &models.QueryResult{Answer: answer, Sources: sources}, nil
}

// ClearSession deletes the whole history of sessionID.
func (r *RAG) ClearSession(ctx context.Context, sessionID string) error {
	if err := r.sessions.Clear(ctx, sessionID); err != nil {
		return models.Dependency(models.CodeCacheFailure, "failed to clear session", err)
	}
	log.Info().Str("session_id", sessionID).Msg("Session cleared")
	return nil
}

func (r *RAG) History(ctx context.Context, sessionID string) ([]models.Message, error) {
	history, err := r.sessions.History(ctx, sessionID)
	if err != nil {
		return nil, models.Dependency(models.CodeCacheFailure, "failed to load chat history", err)
	}
	return history, nil
}

// BuildContext numbers the hit previews from [1] in retrieval order and
// returns one source per hit in the same order.
func BuildContext(hits []models.SearchHit) (string, []models.Source) {
	var sb strings.Builder
	sb.WriteString(models.ContextHeader)
	sources := make([]models.Source, 0, len(hits))
	for i, hit := range hits {
		fmt.Fprintf(&sb, "[%d] %s\n\n", i+1, hit.Metadata.TextPreview)
		sources = append(sources, models.Source{
			DocID:      hit.Metadata.DocID,
			ChunkIndex: hit.Metadata.ChunkIndex,
			Score:      hit.Score,
		})
	}
	return sb.String(), sources
}

// BuildMessages is the system prompt, then history as stored, then one user
// turn carrying the excerpts and the question.
func BuildMessages(history []models.Message, excerpts, query string) []models.Message {
	messages := make([]models.Message, 0, len(history)+2)
	messages = append(messages, models.Message{Role: models.RoleSystem, Content: models.RAGSystemPrompt})
	messages = append(messages, history...)
	messages = append(messages, models.Message{
		Role:    models.RoleUser,
		Content: excerpts + "\n\nQuestion: " + query,
	})
	return messages
}
