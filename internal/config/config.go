package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"document-assistant/internal/models"
)

type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	EmbedLLM    LLMConfig         `yaml:"embed_llm"`
	LLM         LLMConfig         `yaml:"llm"`
	Redis       RedisConfig       `yaml:"redis"`
	Ingestion   IngestionConfig   `yaml:"ingestion"`
	RAG         RAGConfig         `yaml:"rag"`
	Booking     BookingConfig     `yaml:"booking"`
	Workers     WorkersConfig     `yaml:"workers"`
	Log         LogConfig         `yaml:"log"`
}

type DatabaseConfig struct {
	// Driver is one of pg (bun pgdriver), postgres (lib/pq) or sqlite.
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

type VectorStoreConfig struct {
	Backend   string         `yaml:"backend"`
	Namespace string         `yaml:"namespace"`
	Dimension int            `yaml:"dimension"`
	Chromem   ChromemConfig  `yaml:"chromem"`
	Qdrant    QdrantConfig   `yaml:"qdrant"`
	PGVector  PGVectorConfig `yaml:"pgvector"`
}

type ChromemConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
	Compress bool   `yaml:"compress"`
}

type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

type PGVectorConfig struct {
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
}

type LLMConfig struct {
	Provider          string  `yaml:"provider"`
	BaseURL           string  `yaml:"base_url"`
	Key               string  `yaml:"key"`
	Model             string  `yaml:"model"`
	BatchSize         int     `yaml:"batch_size"`
	MaxTokens         int     `yaml:"max_tokens"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

type RedisConfig struct {
	Addr       string        `yaml:"addr"`
	Password   string        `yaml:"password"`
	DB         int           `yaml:"db"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type IngestionConfig struct {
	UploadDir      string `yaml:"upload_dir"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	Strategy       string `yaml:"strategy"`
	ChunkSize      int    `yaml:"chunk_size"`
	PreviewChars   int    `yaml:"preview_chars"`
}

type RAGConfig struct {
	TopK        int     `yaml:"top_k"`
	Temperature float64 `yaml:"temperature"`
}

type BookingConfig struct {
	Temperature float64 `yaml:"temperature"`
}

type WorkersConfig struct {
	Size int `yaml:"size"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

const (
	DriverPG       = "pg"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	BackendChromem  = "chromem"
	BackendQdrant   = "qdrant"
	BackendPGVector = "pgvector"

	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// LoadConfig reads a .env file if present, expands ${VAR} references in the
// YAML at path and applies defaults. A missing config file yields defaults.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func ApplyDefaults(cfg *Config) {
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverSQLite
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == DriverSQLite {
		cfg.Database.DSN = "file:app.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}

	vs := &cfg.VectorStore
	if vs.Backend == "" {
		vs.Backend = BackendChromem
	}
	if vs.Namespace == "" {
		vs.Namespace = models.DefaultNamespace
	}
	if vs.Dimension == 0 {
		vs.Dimension = models.DefaultVectorSize
	}
	if vs.Chromem.Path == "" {
		vs.Chromem.Path = "./chromemdb"
	}
	if vs.Qdrant.URL == "" {
		vs.Qdrant.URL = "http://localhost:6333"
	}
	if vs.Qdrant.TimeoutSecs == 0 {
		vs.Qdrant.TimeoutSecs = 15
	}

	if cfg.EmbedLLM.Provider == "" {
		cfg.EmbedLLM.Provider = ProviderOllama
	}
	if cfg.EmbedLLM.BaseURL == "" && cfg.EmbedLLM.Provider == ProviderOllama {
		cfg.EmbedLLM.BaseURL = "http://localhost:11434"
	}
	if cfg.EmbedLLM.Model == "" {
		cfg.EmbedLLM.Model = "all-minilm"
	}
	if cfg.EmbedLLM.BatchSize == 0 {
		cfg.EmbedLLM.BatchSize = 64
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = ProviderOpenAI
	}
	if cfg.LLM.BaseURL == "" && cfg.LLM.Provider == ProviderOpenAI {
		cfg.LLM.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "llama-3.3-70b-versatile"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1000
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.SessionTTL == 0 {
		cfg.Redis.SessionTTL = models.DefaultSessionTTL
	}

	in := &cfg.Ingestion
	if in.UploadDir == "" {
		in.UploadDir = "uploads"
	}
	if in.MaxUploadBytes == 0 {
		in.MaxUploadBytes = 10 << 20
	}
	if in.Strategy == "" {
		in.Strategy = models.StrategyFixed
	}
	if in.ChunkSize == 0 {
		in.ChunkSize = models.DefaultChunkSize
	}
	if in.PreviewChars == 0 {
		in.PreviewChars = models.DefaultPreviewChars
	}

	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = models.DefaultTopK
	}
	if cfg.RAG.Temperature == 0 {
		cfg.RAG.Temperature = 0.7
	}
	if cfg.Booking.Temperature == 0 {
		cfg.Booking.Temperature = 0.1
	}
	if cfg.Workers.Size == 0 {
		cfg.Workers.Size = 4
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPG, DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	switch c.VectorStore.Backend {
	case BackendChromem, BackendQdrant, BackendPGVector:
	default:
		return fmt.Errorf("unsupported vector store backend: %s", c.VectorStore.Backend)
	}
	if c.VectorStore.Dimension <= 0 {
		return fmt.Errorf("vector dimension must be positive, got %d", c.VectorStore.Dimension)
	}
	for name, provider := range map[string]string{"embed_llm": c.EmbedLLM.Provider, "llm": c.LLM.Provider} {
		if provider != ProviderOpenAI && provider != ProviderOllama {
			return fmt.Errorf("unsupported %s provider: %s", name, provider)
		}
	}
	if c.Ingestion.Strategy != models.StrategyFixed && c.Ingestion.Strategy != models.StrategySemantic {
		return fmt.Errorf("unsupported chunk strategy: %s", c.Ingestion.Strategy)
	}
	if c.Ingestion.ChunkSize < 0 || c.RAG.TopK < 0 || c.Workers.Size < 0 {
		return errors.New("chunk_size, top_k and workers.size must not be negative")
	}
	return nil
}
