// Package vectorstore defines the contract every vector backend implements
// and the helpers shared between backends.
package vectorstore

import (
	"context"
	"fmt"
	"strconv"

	"document-assistant/internal/models"
)

// VectorIndex is a namespace-scoped vector store. Implementations must make
// Upsert idempotent by record id and return Search hits ordered by
// descending score, at most k of them, never erroring when fewer exist.
type VectorIndex interface {
	EnsureNamespace(ctx context.Context, namespace string, dimension int) error
	Upsert(ctx context.Context, namespace string, records []models.VectorRecord) error
	Search(ctx context.Context, namespace string, vector []float32, k int) ([]models.SearchHit, error)
}

// RecordID is the deterministic vector id of a document chunk.
func RecordID(docID int64, chunkIndex int) string {
	return fmt.Sprintf("doc%d_chunk%d", docID, chunkIndex)
}

// Preview truncates text to at most n runes.
func Preview(text string, n int) string {
	if n <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}

const (
	MetaDocID       = "doc_id"
	MetaChunkIndex  = "chunk_index"
	MetaTextPreview = "text_preview"
)

// MetadataToStrings flattens metadata for backends with string-only payloads.
func MetadataToStrings(m models.ChunkMetadata) map[string]string {
	return map[string]string{
		MetaDocID:       strconv.FormatInt(m.DocID, 10),
		MetaChunkIndex:  strconv.Itoa(m.ChunkIndex),
		MetaTextPreview: m.TextPreview,
	}
}

// MetadataFromStrings is the inverse of MetadataToStrings; malformed numbers decode as zero.
func MetadataFromStrings(m map[string]string) models.ChunkMetadata {
	docID, _ := strconv.ParseInt(m[MetaDocID], 10, 64)
	chunkIndex, _ := strconv.Atoi(m[MetaChunkIndex])
	return models.ChunkMetadata{
		DocID:       docID,
		ChunkIndex:  chunkIndex,
		TextPreview: m[MetaTextPreview],
	}
}

// CheckDimension verifies every vector has the given length.
func CheckDimension(dimension int, vectors ...[]float32) error {
	for i, v := range vectors {
		if len(v) != dimension {
			return fmt.Errorf("vector %d has dimension %d, namespace expects %d", i, len(v), dimension)
		}
	}
	return nil
}
