// Package ingestion turns an uploaded file into chunk rows and vector
// records.
package ingestion

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"document-assistant/internal/db"
	"document-assistant/internal/models"
	"document-assistant/internal/parser"
	"document-assistant/internal/vectorstore"
)

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *db.Document) error
	CreateChunks(ctx context.Context, chunks []db.Chunk) error
}

type BlobStore interface {
	Save(data []byte, suggestedName string) (string, error)
	Delete(path string) error
}

type Options struct {
	Namespace      string
	MaxUploadBytes int64
	PreviewChars   int
}

type Service struct {
	embedder Embedder
	index    vectorstore.VectorIndex
	store    DocumentStore
	blobs    BlobStore
	opts     Options
}

func NewService(embedder Embedder, index vectorstore.VectorIndex, store DocumentStore, blobs BlobStore, opts Options) *Service {
	if opts.Namespace == "" {
		opts.Namespace = models.DefaultNamespace
	}
	if opts.PreviewChars <= 0 {
		opts.PreviewChars = models.DefaultPreviewChars
	}
	return &Service{embedder: embedder, index: index, store: store, blobs: blobs, opts: opts}
}

// Ingest stores data, extracts and chunks its text, embeds the chunks and
// records them in the vector index and the relational store.
//
// Input problems are rejected before anything is written. Once the blob is
// saved, any failure deletes it again and returns the original error. Vector
// records already upserted are not rolled back.
func (s *Service) Ingest(ctx context.Context, data []byte, filename, strategy string, size int) (*models.IngestResult, error) {
	if err := s.checkInput(data, filename, strategy, size); err != nil {
		return nil, err
	}

	path, err := s.blobs.Save(data, filename)
	if err != nil {
		return nil, models.Dependency(models.CodeStorageFailure, "failed to save upload", err)
	}

	res, err := s.process(ctx, path, filename, strategy, size)
	if err != nil {
		if delErr := s.blobs.Delete(path); delErr != nil {
			log.Warn().Err(delErr).Str("path", path).Msg("Failed to delete upload after ingestion error")
		}
		log.Error().Err(err).Str("filename", filename).Msg("Ingestion failed")
		return nil, err
	}

	log.Info().Int64("doc_id", res.DocumentID).Str("filename", filename).Int("chunks", res.TotalChunks).Msg("Document ingested")
	return res, nil
}

func (s *Service) checkInput(data []byte, filename, strategy string, size int) error {
	if s.opts.MaxUploadBytes > 0 && int64(len(data)) > s.opts.MaxUploadBytes {
		return models.NewValidation(models.CodeUploadTooLarge,
			"upload is %d bytes, limit is %d", len(data), s.opts.MaxUploadBytes)
	}
	if !parser.SupportedFormat(filename) {
		return models.NewValidation(models.CodeUnsupportedFormat,
			"unsupported file format: %q", strings.ToLower(filepath.Ext(filename)))
	}
	if strategy != models.StrategyFixed && strategy != models.StrategySemantic {
		return models.NewValidation(models.CodeInvalidStrategy, "unknown chunking strategy: %s", strategy)
	}
	if size <= 0 {
		return models.NewValidation(models.CodeInvalidChunkSize, "chunk size must be positive, got %d", size)
	}
	return nil
}

func (s *Service) process(ctx context.Context, path, filename, strategy string, size int) (*models.IngestResult, error) {
	text, err := parser.ExtractText(path)
	if err != nil {
		return nil, models.Dependency(models.CodeExtractionFailure, "failed to extract text", err)
	}

	chunks, err := parser.Chunk(text, strategy, size)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, models.NewValidation(models.CodeEmptyDocument, "no chunks were generated from %s", filename)
	}
	log.Debug().Str("filename", filename).Str("strategy", strategy).Int("chunks", len(chunks)).Msg("Chunked document")

	vectors, err := s.embedder.Embed(ctx, chunks)
	if err != nil {
		return nil, models.Dependency(models.CodeEmbeddingFailure, "failed to embed chunks", err)
	}

	if err := s.index.EnsureNamespace(ctx, s.opts.Namespace, s.embedder.Dimension()); err != nil {
		return nil, models.Dependency(models.CodeIndexFailure, "failed to prepare vector namespace", err)
	}

	doc := &db.Document{Filename: filename, TotalChunks: len(chunks)}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return nil, models.Dependency(models.CodePersistenceFailure, "failed to save document", err)
	}

	records := make([]models.VectorRecord, len(chunks))
	rows := make([]db.Chunk, len(chunks))
	for i, chunk := range chunks {
		id := vectorstore.RecordID(doc.ID, i)
		records[i] = models.VectorRecord{
			ID:     id,
			Vector: vectors[i],
			Metadata: models.ChunkMetadata{
				DocID:       doc.ID,
				ChunkIndex:  i,
				TextPreview: vectorstore.Preview(chunk, s.opts.PreviewChars),
			},
		}
		rows[i] = db.Chunk{DocID: doc.ID, ChunkIndex: i, Text: chunk, VectorID: id}
	}

	if err := s.index.Upsert(ctx, s.opts.Namespace, records); err != nil {
		return nil, models.Dependency(models.CodeIndexFailure, "failed to upsert vectors", err)
	}
	if err := s.store.CreateChunks(ctx, rows); err != nil {
		return nil, models.Dependency(models.CodePersistenceFailure, "failed to save chunks", err)
	}

	return &models.IngestResult{DocumentID: doc.ID, Filename: filename, TotalChunks: len(chunks)}, nil
}
