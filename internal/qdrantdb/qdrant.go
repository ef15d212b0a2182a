// Package qdrantdb is a minimal Qdrant REST client implementing the vector index.
package qdrantdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"document-assistant/internal/models"
	"document-assistant/internal/vectorstore"
)

var _ vectorstore.VectorIndex = (*Storage)(nil)

// pointNamespace seeds the name-based UUIDs used as Qdrant point ids, which
// must be unsigned integers or UUIDs.
var pointNamespace = uuid.MustParse("6f1c3c2e-5b1a-4d8e-9a51-2f7a4a0c9d10")

const payloadVectorID = "vector_id"

type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

type Storage struct {
	url    string
	apiKey string
	client *http.Client
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
	}
}

// PointID maps a record id to its deterministic Qdrant point id.
func PointID(recordID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(recordID)).String()
}

// EnsureNamespace creates a cosine collection when it does not exist yet.
func (s *Storage) EnsureNamespace(ctx context.Context, namespace string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}
	status, err := s.do(ctx, http.MethodGet, s.collectionURL(namespace), nil, nil)
	if err != nil && status != http.StatusNotFound {
		return err
	}
	if status == http.StatusOK {
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	if _, err := s.do(ctx, http.MethodPut, s.collectionURL(namespace), body, nil); err != nil {
		return err
	}
	log.Info().Str("namespace", namespace).Int("dimension", dimension).Msg("Created qdrant collection")
	return nil
}

func (s *Storage) Upsert(ctx context.Context, namespace string, records []models.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]map[string]any, len(records))
	for i, r := range records {
		points[i] = map[string]any{
			"id":     PointID(r.ID),
			"vector": r.Vector,
			"payload": map[string]any{
				vectorstore.MetaDocID:       r.Metadata.DocID,
				vectorstore.MetaChunkIndex:  r.Metadata.ChunkIndex,
				vectorstore.MetaTextPreview: r.Metadata.TextPreview,
				payloadVectorID:             r.ID,
			},
		}
	}
	_, err := s.do(ctx, http.MethodPut, s.collectionURL(namespace)+"/points?wait=true", map[string]any{"points": points}, nil)
	return err
}

func (s *Storage) Search(ctx context.Context, namespace string, vector []float32, k int) ([]models.SearchHit, error) {
	if k <= 0 {
		return nil, nil
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			ID      any     `json:"id"`
			Score   float64 `json:"score"`
			Payload struct {
				DocID       int64  `json:"doc_id"`
				ChunkIndex  int    `json:"chunk_index"`
				TextPreview string `json:"text_preview"`
				VectorID    string `json:"vector_id"`
			} `json:"payload"`
		} `json:"result"`
	}
	status, err := s.do(ctx, http.MethodPost, s.collectionURL(namespace)+"/points/search", req, &resp)
	if status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	hits := make([]models.SearchHit, 0, len(resp.Result))
	for _, r := range resp.Result {
		id := r.Payload.VectorID
		if id == "" {
			id = fmt.Sprint(r.ID)
		}
		hits = append(hits, models.SearchHit{
			ID:    id,
			Score: r.Score,
			Metadata: models.ChunkMetadata{
				DocID:       r.Payload.DocID,
				ChunkIndex:  r.Payload.ChunkIndex,
				TextPreview: r.Payload.TextPreview,
			},
		})
	}
	return hits, nil
}

func (s *Storage) collectionURL(namespace string) string {
	return fmt.Sprintf("%s/collections/%s", s.url, url.PathEscape(namespace))
}

// do sends a JSON request and decodes the response into out when non-nil.
// The HTTP status is returned even when err is set.
func (s *Storage) do(ctx context.Context, method, target string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("qdrant %s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return resp.StatusCode, fmt.Errorf("qdrant %s %s failed: %s: %s", method, target, resp.Status, bytes.TrimSpace(msg))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
