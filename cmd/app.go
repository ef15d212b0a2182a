package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"

	"document-assistant/internal/blobstore"
	"document-assistant/internal/booking"
	"document-assistant/internal/chromemdb"
	"document-assistant/internal/config"
	"document-assistant/internal/db"
	"document-assistant/internal/embedding"
	"document-assistant/internal/ingestion"
	"document-assistant/internal/llmservice"
	"document-assistant/internal/pgvectordb"
	"document-assistant/internal/qdrantdb"
	"document-assistant/internal/rag"
	"document-assistant/internal/session"
	"document-assistant/internal/vectorstore"
	"document-assistant/internal/workerpool"
)

// App builds each service the first time a command needs it and reuses it
// for the rest of the process.
type App struct {
	cfg  *config.Config
	pool *workerpool.Pool

	bunDB    *bun.DB
	store    *db.Store
	index    vectorstore.VectorIndex
	redis    *redis.Client
	embedder *embedding.Embedder
	llm      *llmservice.Client

	closers []func() error
}

func NewApp(cfg *config.Config) *App {
	return &App{cfg: cfg, pool: workerpool.New(cfg.Workers.Size)}
}

func (a *App) Config() *config.Config { return a.cfg }

func (a *App) Store() (*db.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	bunDB, err := db.ConnectDB(&a.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	if err := bunDB.PingContext(context.Background()); err != nil {
		bunDB.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	a.bunDB = bunDB
	a.store = db.NewStore(bunDB)
	a.closers = append(a.closers, bunDB.Close)
	return a.store, nil
}

func (a *App) Index() (vectorstore.VectorIndex, error) {
	if a.index != nil {
		return a.index, nil
	}
	index, closer, err := a.newVectorIndex()
	if err != nil {
		return nil, err
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}
	a.index = index
	return index, nil
}

// newVectorIndex selects the configured backend. The pgvector backend
// reuses the relational connection when it already points at Postgres.
func (a *App) newVectorIndex() (vectorstore.VectorIndex, func() error, error) {
	vs := a.cfg.VectorStore
	log.Debug().Str("backend", vs.Backend).Str("namespace", vs.Namespace).Msg("Opening vector index")

	switch vs.Backend {
	case config.BackendChromem:
		m, err := chromemdb.NewVectorDBManager(vs.Chromem.Path, vs.Chromem.InMemory, vs.Chromem.Compress)
		if err != nil {
			return nil, nil, fmt.Errorf("error creating vector database manager: %w", err)
		}
		return m, nil, nil
	case config.BackendQdrant:
		return qdrantdb.NewStorage(qdrantdb.Config{
			URL:     vs.Qdrant.URL,
			APIKey:  vs.Qdrant.APIKey,
			Timeout: time.Duration(vs.Qdrant.TimeoutSecs) * time.Second,
		}), nil, nil
	case config.BackendPGVector:
		driver := a.cfg.Database.Driver
		if vs.PGVector.DSN == "" && (driver == config.DriverPG || driver == config.DriverPostgres) {
			store, err := a.Store()
			if err != nil {
				return nil, nil, err
			}
			return pgvectordb.New(store.DB()), nil, nil
		}
		s, err := pgvectordb.Open(vs.PGVector.DSN, vs.PGVector.Password)
		if err != nil {
			return nil, nil, fmt.Errorf("error opening pgvector: %w", err)
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported vector store backend: %s", vs.Backend)
	}
}

func (a *App) Embedder() (*embedding.Embedder, error) {
	if a.embedder != nil {
		return a.embedder, nil
	}
	e, err := embedding.NewFromConfig(&a.cfg.EmbedLLM, a.cfg.VectorStore.Dimension, a.pool)
	if err != nil {
		return nil, fmt.Errorf("error initializing embedder: %w", err)
	}
	a.embedder = e
	return e, nil
}

func (a *App) LLM() (*llmservice.Client, error) {
	if a.llm != nil {
		return a.llm, nil
	}
	c, err := llmservice.NewFromConfig(&a.cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("error initializing llm: %w", err)
	}
	a.llm = c
	return c, nil
}

func (a *App) Sessions(ctx context.Context) (*session.Store, error) {
	if a.redis == nil {
		a.redis = session.NewClient(&a.cfg.Redis)
		a.closers = append(a.closers, a.redis.Close)
	}
	s := session.NewStore(a.redis, a.cfg.Redis.SessionTTL)
	if err := s.Ping(ctx); err != nil {
		return nil, fmt.Errorf("error connecting to redis at %s: %w", a.cfg.Redis.Addr, err)
	}
	return s, nil
}

func (a *App) Ingestion() (*ingestion.Service, error) {
	embedder, err := a.Embedder()
	if err != nil {
		return nil, err
	}
	index, err := a.Index()
	if err != nil {
		return nil, err
	}
	store, err := a.Store()
	if err != nil {
		return nil, err
	}
	blobs, err := blobstore.New(a.cfg.Ingestion.UploadDir)
	if err != nil {
		return nil, err
	}
	return ingestion.NewService(embedder, index, store, blobs, ingestion.Options{
		Namespace:      a.cfg.VectorStore.Namespace,
		MaxUploadBytes: a.cfg.Ingestion.MaxUploadBytes,
		PreviewChars:   a.cfg.Ingestion.PreviewChars,
	}), nil
}

func (a *App) RAG(ctx context.Context) (*rag.RAG, error) {
	embedder, err := a.Embedder()
	if err != nil {
		return nil, err
	}
	index, err := a.Index()
	if err != nil {
		return nil, err
	}
	llm, err := a.LLM()
	if err != nil {
		return nil, err
	}
	sessions, err := a.Sessions(ctx)
	if err != nil {
		return nil, err
	}
	return rag.NewRAG(embedder, index, llm, sessions, rag.Options{
		Namespace:   a.cfg.VectorStore.Namespace,
		TopK:        a.cfg.RAG.TopK,
		Temperature: a.cfg.RAG.Temperature,
	}), nil
}

// Booking needs the model only for Book; status commands pass withLLM=false.
func (a *App) Booking(withLLM bool) (*booking.Service, error) {
	store, err := a.Store()
	if err != nil {
		return nil, err
	}
	var llm booking.LanguageModel
	if withLLM {
		c, err := a.LLM()
		if err != nil {
			return nil, err
		}
		llm = c
	}
	return booking.NewService(llm, store, a.pool, a.cfg.Booking.Temperature), nil
}

// Close releases everything opened so far, in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
