// Package pgvectordb stores vectors in Postgres with the pgvector extension,
// one table per namespace.
package pgvectordb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"document-assistant/internal/models"
	"document-assistant/internal/vectorstore"
)

var _ vectorstore.VectorIndex = (*Store)(nil)

const undefinedTable = "42P01"

type vectorRow struct {
	bun.BaseModel `bun:"alias:v"`

	ID          string          `bun:"id,pk"`
	DocID       int64           `bun:"doc_id,notnull"`
	ChunkIndex  int             `bun:"chunk_index,notnull"`
	TextPreview string          `bun:"text_preview"`
	Embedding   pgvector.Vector `bun:"embedding,type:vector"`
}

type hitRow struct {
	ID          string  `bun:"id"`
	DocID       int64   `bun:"doc_id"`
	ChunkIndex  int     `bun:"chunk_index"`
	TextPreview string  `bun:"text_preview"`
	Score       float64 `bun:"score"`
}

type Store struct {
	db *bun.DB
}

// New uses an existing Postgres-dialect bun.DB.
func New(db *bun.DB) *Store {
	return &Store{db: db}
}

// Open connects to Postgres with bun's pgdriver.
func Open(dsn, password string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("pgvector dsn is required")
	}
	opts := []pgdriver.Option{pgdriver.WithDSN(dsn)}
	if password != "" {
		opts = append(opts, pgdriver.WithPassword(password))
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(opts...))
	return New(bun.NewDB(sqldb, pgdialect.New())), nil
}

func (s *Store) Close() error { return s.db.Close() }

// TableName maps a namespace to its table, keeping only [a-z0-9_].
func TableName(namespace string) string {
	var b strings.Builder
	b.WriteString("vectors_")
	for _, r := range strings.ToLower(namespace) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func (s *Store) EnsureNamespace(ctx context.Context, namespace string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to enable pgvector: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS ? (
		id text PRIMARY KEY,
		doc_id bigint NOT NULL,
		chunk_index integer NOT NULL,
		text_preview text,
		embedding vector(?) NOT NULL
	)`, bun.Ident(TableName(namespace)), dimension)
	if err != nil {
		return fmt.Errorf("failed to create vector table: %w", err)
	}
	log.Debug().Str("namespace", namespace).Int("dimension", dimension).Msg("pgvector table ready")
	return nil
}

func (s *Store) Upsert(ctx context.Context, namespace string, records []models.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]vectorRow, len(records))
	for i, r := range records {
		rows[i] = vectorRow{
			ID:          r.ID,
			DocID:       r.Metadata.DocID,
			ChunkIndex:  r.Metadata.ChunkIndex,
			TextPreview: r.Metadata.TextPreview,
			Embedding:   pgvector.NewVector(r.Vector),
		}
	}
	_, err := s.db.NewInsert().
		Model(&rows).
		ModelTableExpr("?", bun.Ident(TableName(namespace))).
		On("CONFLICT (id) DO UPDATE").
		Set("doc_id = EXCLUDED.doc_id").
		Set("chunk_index = EXCLUDED.chunk_index").
		Set("text_preview = EXCLUDED.text_preview").
		Set("embedding = EXCLUDED.embedding").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert vectors: %w", err)
	}
	return nil
}

// Search ranks by cosine distance; score is 1 - distance.
func (s *Store) Search(ctx context.Context, namespace string, vector []float32, k int) ([]models.SearchHit, error) {
	if k <= 0 {
		return nil, nil
	}
	query := pgvector.NewVector(vector)
	var rows []hitRow
	err := s.db.NewRaw(
		`SELECT id, doc_id, chunk_index, text_preview, 1 - (embedding <=> ?) AS score
		FROM ? ORDER BY embedding <=> ? LIMIT ?`,
		query, bun.Ident(TableName(namespace)), query, k,
	).Scan(ctx, &rows)
	if err != nil {
		var pgErr pgdriver.Error
		if errors.As(err, &pgErr) && pgErr.Field('C') == undefinedTable {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to search vectors: %w", err)
	}

	hits := make([]models.SearchHit, len(rows))
	for i, r := range rows {
		hits[i] = models.SearchHit{
			ID:    r.ID,
			Score: r.Score,
			Metadata: models.ChunkMetadata{
				DocID:       r.DocID,
				ChunkIndex:  r.ChunkIndex,
				TextPreview: r.TextPreview,
			},
		}
	}
	return hits, nil
}
