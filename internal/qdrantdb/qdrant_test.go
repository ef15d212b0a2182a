package qdrantdb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-assistant/internal/models"
	"document-assistant/internal/vectorstore"
)

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// fakeQdrant implements the handful of endpoints Storage uses.
type fakeQdrant struct {
	mu          sync.Mutex
	collections map[string]map[string]point
	creates     int
	apiKeys     []string
}

func newFakeQdrant() *fakeQdrant {
	return &fakeQdrant{collections: make(map[string]map[string]point)}
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "collections" {
		http.NotFound(w, r)
		return
	}
	name := parts[1]
	points, exists := f.collections[name]

	switch {
	case len(parts) == 2 && r.Method == http.MethodGet:
		if !exists {
			http.Error(w, `{"status":{"error":"Not found"}}`, http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"result":{"status":"green"}}`))
	case len(parts) == 2 && r.Method == http.MethodPut:
		f.creates++
		f.collections[name] = make(map[string]point)
		w.Write([]byte(`{"result":true}`))
	case len(parts) == 3 && parts[2] == "points" && r.Method == http.MethodPut:
		if !exists {
			http.Error(w, "missing", http.StatusNotFound)
			return
		}
		var body struct {
			Points []point `json:"points"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, p := range body.Points {
			points[p.ID] = p
		}
		w.Write([]byte(`{"result":{"status":"completed"}}`))
	case len(parts) == 4 && parts[3] == "search" && r.Method == http.MethodPost:
		if !exists {
			http.Error(w, "missing", http.StatusNotFound)
			return
		}
		var req struct {
			Vector []float32 `json:"vector"`
			Limit  int       `json:"limit"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		type scored struct {
			ID      string         `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		}
		var out []scored
		for _, p := range points {
			var dot float64
			for i := range p.Vector {
				dot += float64(p.Vector[i] * req.Vector[i])
			}
			out = append(out, scored{ID: p.ID, Score: dot, Payload: p.Payload})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
		if len(out) > req.Limit {
			out = out[:req.Limit]
		}
		json.NewEncoder(w).Encode(map[string]any{"result": out})
	default:
		http.NotFound(w, r)
	}
}

func newStorage(t *testing.T) (*Storage, *fakeQdrant) {
	t.Helper()
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewStorage(Config{URL: srv.URL, APIKey: "key"}), fake
}

func TestEnsureNamespaceCreatesOnce(t *testing.T) {
	ctx := context.Background()
	s, fake := newStorage(t)

	require.NoError(t, s.EnsureNamespace(ctx, "documents", 3))
	require.NoError(t, s.EnsureNamespace(ctx, "documents", 3))
	assert.Equal(t, 1, fake.creates)
	assert.Equal(t, "key", fake.apiKeys[0])
	assert.Error(t, s.EnsureNamespace(ctx, "documents", 0))
}

func TestUpsertAndSearch(t *testing.T) {
	ctx := context.Background()
	s, fake := newStorage(t)
	require.NoError(t, s.EnsureNamespace(ctx, "documents", 2))

	records := []models.VectorRecord{
		{ID: vectorstore.RecordID(4, 0), Vector: []float32{1, 0}, Metadata: models.ChunkMetadata{DocID: 4, ChunkIndex: 0, TextPreview: "alpha"}},
		{ID: vectorstore.RecordID(4, 1), Vector: []float32{0, 1}, Metadata: models.ChunkMetadata{DocID: 4, ChunkIndex: 1, TextPreview: "beta"}},
	}
	require.NoError(t, s.Upsert(ctx, "documents", records))
	require.NoError(t, s.Upsert(ctx, "documents", records))
	assert.Len(t, fake.collections["documents"], 2)
	_, ok := fake.collections["documents"][PointID("doc4_chunk1")]
	assert.True(t, ok)

	hits, err := s.Search(ctx, "documents", []float32{0.2, 0.8}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "doc4_chunk1", hits[0].ID)
	assert.Equal(t, models.ChunkMetadata{DocID: 4, ChunkIndex: 1, TextPreview: "beta"}, hits[0].Metadata)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestSearchMissingCollection(t *testing.T) {
	s, _ := newStorage(t)
	hits, err := s.Search(context.Background(), "nothing", []float32{1}, 3)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestPointIDDeterministic(t *testing.T) {
	assert.Equal(t, PointID("doc1_chunk0"), PointID("doc1_chunk0"))
	assert.NotEqual(t, PointID("doc1_chunk0"), PointID("doc1_chunk1"))
}
