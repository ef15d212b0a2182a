package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-assistant/internal/blobstore"
	"document-assistant/internal/chromemdb"
	"document-assistant/internal/db"
	"document-assistant/internal/models"
)

const testDim = 4

type fakeEmbedder struct {
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{1, float32(len(text)), float32(strings.Count(text, "b")), 0.5}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return testDim }

type failingIndex struct {
	*chromemdb.VectorDBManager
}

func (failingIndex) Upsert(context.Context, string, []models.VectorRecord) error {
	return errors.New("index unavailable")
}

type fixture struct {
	svc      *Service
	embedder *fakeEmbedder
	index    *chromemdb.VectorDBManager
	store    *db.Store
	blobs    *blobstore.Store
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	ctx := context.Background()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	bunDB, err := db.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), false)
	require.NoError(t, err)
	t.Cleanup(func() { bunDB.Close() })
	require.NoError(t, db.InitDB(ctx, bunDB))

	index, err := chromemdb.NewVectorDBManager("", true, false)
	require.NoError(t, err)
	blobs, err := blobstore.New(t.TempDir())
	require.NoError(t, err)

	f := &fixture{embedder: &fakeEmbedder{}, index: index, store: db.NewStore(bunDB), blobs: blobs}
	f.svc = NewService(f.embedder, index, f.store, blobs, opts)
	return f
}

func (f *fixture) savedFiles(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(f.blobs.Dir())
	require.NoError(t, err)
	return len(entries)
}

func TestIngestFixed1200Chars(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})

	text := strings.Repeat("a", 1200)
	res, err := f.svc.Ingest(ctx, []byte(text), "notes.txt", models.StrategyFixed, 500)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", res.Filename)
	assert.Equal(t, 3, res.TotalChunks)
	assert.Equal(t, 1, f.embedder.calls)

	doc, err := f.store.GetDocument(ctx, res.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, 3, doc.TotalChunks)

	chunks, err := f.store.ListChunks(ctx, res.DocumentID, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, want := range []int{500, 500, 200} {
		assert.Equal(t, i, chunks[i].ChunkIndex)
		assert.Len(t, chunks[i].Text, want)
		assert.Equal(t, fmt.Sprintf("doc%d_chunk%d", res.DocumentID, i), chunks[i].VectorID)
	}

	assert.Equal(t, 3, f.index.Count(models.DefaultNamespace))
	assert.Equal(t, 1, f.savedFiles(t))
}

func TestIngestPreviewIsCapped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{Namespace: "previews", PreviewChars: 10})

	res, err := f.svc.Ingest(ctx, []byte(strings.Repeat("b", 40)), "b.txt", models.StrategyFixed, 40)
	require.NoError(t, err)

	hits, err := f.index.Search(ctx, "previews", []float32{1, 40, 40, 0.5}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, res.DocumentID, hits[0].Metadata.DocID)
	assert.Equal(t, strings.Repeat("b", 10), hits[0].Metadata.TextPreview)
}

func TestIngestSemantic(t *testing.T) {
	f := newFixture(t, Options{})
	text := "First paragraph.\n\nSecond paragraph.\n\n" + strings.Repeat("x", 45)

	res, err := f.svc.Ingest(context.Background(), []byte(text), "doc.txt", models.StrategySemantic, 40)
	require.NoError(t, err)

	chunks, err := f.store.ListChunks(context.Background(), res.DocumentID, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "First paragraph. Second paragraph.", chunks[0].Text)
	assert.Equal(t, strings.Repeat("x", 40), chunks[1].Text)
	assert.Equal(t, strings.Repeat("x", 5), chunks[2].Text)
}

func TestIngestEmptyDocument(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})

	_, err := f.svc.Ingest(ctx, []byte{}, "empty.txt", models.StrategyFixed, 500)
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Equal(t, models.CodeEmptyDocument, models.CodeOf(err))

	docs, err := f.store.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Zero(t, f.index.Count(models.DefaultNamespace))
	assert.Zero(t, f.embedder.calls)
	assert.Zero(t, f.savedFiles(t))
}

func TestIngestRejectsBadInputBeforeSaving(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		filename string
		strategy string
		size     int
		code     models.Code
	}{
		{"unsupported format", "hello", "report.docx", models.StrategyFixed, 500, models.CodeUnsupportedFormat},
		{"no extension", "hello", "README", models.StrategyFixed, 500, models.CodeUnsupportedFormat},
		{"too large", strings.Repeat("z", 33), "big.txt", models.StrategyFixed, 500, models.CodeUploadTooLarge},
		{"unknown strategy", "hello", "a.txt", "sentences", 500, models.CodeInvalidStrategy},
		{"zero size", "hello", "a.txt", models.StrategyFixed, 0, models.CodeInvalidChunkSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{MaxUploadBytes: 32})
			_, err := f.svc.Ingest(context.Background(), []byte(tt.data), tt.filename, tt.strategy, tt.size)
			assert.ErrorIs(t, err, models.ErrValidation)
			assert.Equal(t, tt.code, models.CodeOf(err))
			assert.Zero(t, f.savedFiles(t))
		})
	}
}

func TestIngestEmbeddingFailureDeletesBlob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	f.embedder.err = errors.New("model offline")

	_, err := f.svc.Ingest(ctx, []byte("some text"), "a.txt", models.StrategyFixed, 500)
	assert.ErrorIs(t, err, models.ErrDependency)
	assert.Equal(t, models.CodeEmbeddingFailure, models.CodeOf(err))
	assert.ErrorContains(t, err, "model offline")

	docs, err := f.store.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Zero(t, f.savedFiles(t))
}

func TestIngestIndexFailureDeletesBlobAndWritesNoChunks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	svc := NewService(f.embedder, failingIndex{f.index}, f.store, f.blobs, Options{})

	_, err := svc.Ingest(ctx, []byte("some text"), "a.txt", models.StrategyFixed, 500)
	assert.ErrorIs(t, err, models.ErrDependency)
	assert.Equal(t, models.CodeIndexFailure, models.CodeOf(err))
	assert.Zero(t, f.savedFiles(t))

	docs, err := f.store.ListDocuments(ctx)
	require.NoError(t, err)
	for _, doc := range docs {
		chunks, err := f.store.ListChunks(ctx, doc.ID, 0)
		require.NoError(t, err)
		assert.Empty(t, chunks)
	}
}

func TestIngestCorruptPDF(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.svc.Ingest(context.Background(), []byte("not a pdf"), "broken.pdf", models.StrategyFixed, 500)
	require.Error(t, err)
	assert.Equal(t, models.CodeExtractionFailure, models.CodeOf(err))
	assert.Zero(t, f.savedFiles(t))
}
