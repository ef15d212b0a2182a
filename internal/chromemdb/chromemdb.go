package chromemdb

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"document-assistant/internal/models"
	"document-assistant/internal/vectorstore"
)

var _ vectorstore.VectorIndex = (*VectorDBManager)(nil)

// VectorDBManager is the embedded chromem-go vector index. Each namespace is
// a chromem collection.
type VectorDBManager struct {
	db       *chromem.DB
	dbPath   string
	compress bool

	mu         sync.RWMutex
	dimensions map[string]int
}

// NewVectorDBManager opens a persistent database under dbPath, or an
// in-memory one when inMemory is set.
func NewVectorDBManager(dbPath string, inMemory, compress bool) (*VectorDBManager, error) {
	var db *chromem.DB
	if inMemory {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	return &VectorDBManager{
		db:         db,
		dbPath:     dbPath,
		compress:   compress,
		dimensions: make(map[string]int),
	}, nil
}

// EnsureNamespace creates the collection if absent and pins its dimension
// for this process.
func (m *VectorDBManager) EnsureNamespace(_ context.Context, namespace string, dimension int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if dim, ok := m.dimensions[namespace]; ok {
		if dim != dimension {
			return fmt.Errorf("namespace %s has dimension %d, requested %d", namespace, dim, dimension)
		}
		return nil
	}

	if _, err := m.db.GetOrCreateCollection(namespace, map[string]string{"dimension": fmt.Sprint(dimension)}, nil); err != nil {
		return fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.dimensions[namespace] = dimension
	log.Debug().Str("namespace", namespace).Int("dimension", dimension).Msg("Collection ready")
	return nil
}

// Upsert adds or replaces documents by id.
func (m *VectorDBManager) Upsert(ctx context.Context, namespace string, records []models.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	c := m.db.GetCollection(namespace, nil)
	if c == nil {
		return fmt.Errorf("collection %s does not exist", namespace)
	}

	docs := make([]chromem.Document, len(records))
	vectors := make([][]float32, len(records))
	for i, r := range records {
		vectors[i] = r.Vector
		docs[i] = chromem.Document{
			ID:        r.ID,
			Content:   r.Metadata.TextPreview,
			Metadata:  vectorstore.MetadataToStrings(r.Metadata),
			Embedding: r.Vector,
		}
	}
	if err := m.checkDimension(namespace, vectors...); err != nil {
		return err
	}

	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// Search returns up to k hits. chromem refuses nResults above the collection
// size, so k is clamped.
func (m *VectorDBManager) Search(ctx context.Context, namespace string, vector []float32, k int) ([]models.SearchHit, error) {
	c := m.db.GetCollection(namespace, nil)
	if c == nil || k <= 0 {
		return nil, nil
	}
	if err := m.checkDimension(namespace, vector); err != nil {
		return nil, err
	}
	k = min(k, c.Count())
	if k == 0 {
		return nil, nil
	}

	results, err := c.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	hits := make([]models.SearchHit, len(results))
	for i, r := range results {
		hits[i] = models.SearchHit{
			ID:       r.ID,
			Score:    float64(r.Similarity),
			Metadata: vectorstore.MetadataFromStrings(r.Metadata),
		}
	}
	return hits, nil
}

// Count returns the number of vectors stored in namespace.
func (m *VectorDBManager) Count(namespace string) int {
	c := m.db.GetCollection(namespace, nil)
	if c == nil {
		return 0
	}
	return c.Count()
}

// DeleteNamespace drops a collection and forgets its dimension.
func (m *VectorDBManager) DeleteNamespace(namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.db.DeleteCollection(namespace); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	delete(m.dimensions, namespace)
	return nil
}

// Export writes the namespace to a single, optionally encrypted, file.
func (m *VectorDBManager) Export(filePath, encryptionKey, namespace string) error {
	if filePath == "" {
		return fmt.Errorf("file path is required")
	}
	if m.db.GetCollection(namespace, nil) == nil {
		return fmt.Errorf("collection %s does not exist", namespace)
	}
	log.Debug().Str("namespace", namespace).Str("file", filePath).Bool("compress", m.compress).Msg("Exporting collection")
	if err := m.db.ExportToFile(filePath, m.compress, encryptionKey, namespace); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Import loads a namespace previously written by Export.
func (m *VectorDBManager) Import(filePath, encryptionKey, namespace string) error {
	if err := m.db.ImportFromFile(filePath, encryptionKey, namespace); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	return nil
}

func (m *VectorDBManager) checkDimension(namespace string, vectors ...[]float32) error {
	m.mu.RLock()
	dim, ok := m.dimensions[namespace]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return vectorstore.CheckDimension(dim, vectors...)
}
