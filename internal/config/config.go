package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Auth        AuthConfig
	LLM         LLMConfig
	Embedding   EmbeddingConfig
	RAG         RAGConfig
	VectorStore VectorStoreConfig
	Storage     StorageConfig
	Queue       QueueConfig
	RateLimit   RateLimitConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
}

// LLMConfig holds the server-side defaults for chat providers. Per-provider
// keys are the last tier of credential resolution.
type LLMConfig struct {
	DefaultProvider string
	DefaultModel    string
	OpenAIKey       string
	AnthropicKey    string
	OpenRouterKey   string
	GrokKey         string
	MaxTokens       int
	Temperature     float64
	Timeout         time.Duration
}

type EmbeddingConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	Dimensions        int
	BatchSize         int
	Concurrency       int
	RequestsPerSecond float64
	CacheTTL          time.Duration
}

type RAGConfig struct {
	ChunkSize       int
	ChunkOverlap    int
	DocPrefixChars  int
	MaxContextChars int
	SearchLimit     int
	TokenEncoding   string
}

type VectorStoreConfig struct {
	Backend string // "pgvector" or "memory"
}

// InProcess reports whether the index lives inside one process and cannot be
// shared with cmd/worker.
func (v VectorStoreConfig) InProcess() bool {
	return v.Backend == "memory"
}

type StorageConfig struct {
	Backend     string // "supabase" or "local"
	SupabaseURL string
	SupabaseKey string
	Bucket      string
	LocalDir    string
}

type QueueConfig struct {
	Concurrency int
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

func Load() (*Config, error) {
	var errs []string
	intVar := func(key string, fallback int) int {
		v, err := getEnvInt(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", key, err))
		}
		return v
	}
	floatVar := func(key string, fallback float64) float64 {
		v, err := getEnvFloat(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", key, err))
		}
		return v
	}

	openAIKey := getEnv("OPENAI_API_KEY", "")

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           intVar("SERVER_PORT", 8080),
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       intVar("DB_MAX_CONNS", 20),
			MinConns:       intVar("DB_MIN_CONNS", 5),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       intVar("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			JWTIssuer: getEnv("JWT_ISSUER", ""),
		},
		LLM: LLMConfig{
			DefaultProvider: getEnv("LLM_DEFAULT_PROVIDER", "openai"),
			DefaultModel:    getEnv("LLM_DEFAULT_MODEL", ""),
			OpenAIKey:       openAIKey,
			AnthropicKey:    getEnv("ANTHROPIC_API_KEY", ""),
			OpenRouterKey:   getEnv("OPENROUTER_API_KEY", ""),
			GrokKey:         getEnv("GROK_API_KEY", ""),
			MaxTokens:       intVar("LLM_MAX_TOKENS", 4096),
			Temperature:     floatVar("LLM_TEMPERATURE", 0.7),
			Timeout:         time.Duration(intVar("LLM_TIMEOUT_SECONDS", 120)) * time.Second,
		},
		Embedding: EmbeddingConfig{
			APIKey:            getEnv("EMBEDDING_API_KEY", openAIKey),
			BaseURL:           getEnv("EMBEDDING_BASE_URL", ""),
			Model:             getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			Dimensions:        intVar("EMBEDDING_DIMENSIONS", 1536),
			BatchSize:         intVar("EMBEDDING_BATCH_SIZE", 10),
			Concurrency:       intVar("EMBEDDING_CONCURRENCY", 4),
			RequestsPerSecond: floatVar("EMBEDDING_RPS", 5),
			CacheTTL:          time.Duration(intVar("EMBEDDING_CACHE_TTL_SECONDS", 86400)) * time.Second,
		},
		RAG: RAGConfig{
			ChunkSize:       intVar("RAG_CHUNK_SIZE", 1000),
			ChunkOverlap:    intVar("RAG_CHUNK_OVERLAP", 200),
			DocPrefixChars:  intVar("RAG_DOC_PREFIX_CHARS", 500),
			MaxContextChars: intVar("RAG_MAX_CONTEXT_CHARS", 24000),
			SearchLimit:     intVar("RAG_SEARCH_LIMIT", 8),
			TokenEncoding:   getEnv("RAG_TOKEN_ENCODING", "cl100k_base"),
		},
		VectorStore: VectorStoreConfig{
			Backend: getEnv("VECTOR_STORE_BACKEND", "pgvector"),
		},
		Storage: StorageConfig{
			Backend:     getEnv("STORAGE_BACKEND", "supabase"),
			SupabaseURL: getEnv("SUPABASE_URL", ""),
			SupabaseKey: getEnv("SUPABASE_SERVICE_KEY", ""),
			Bucket:      getEnv("STORAGE_BUCKET", "documents"),
			LocalDir:    getEnv("STORAGE_LOCAL_DIR", "data/uploads"),
		},
		Queue: QueueConfig{
			Concurrency: intVar("WORKER_CONCURRENCY", 4),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: floatVar("RATE_LIMIT_RPS", 2),
			Burst:             intVar("RATE_LIMIT_BURST", 10),
		},
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("load config: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.Storage.Backend == "supabase" && (c.Storage.SupabaseURL == "" || c.Storage.SupabaseKey == "") {
		missing = append(missing, "SUPABASE_URL/SUPABASE_SERVICE_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}

	if c.RAG.ChunkSize <= 0 {
		return fmt.Errorf("RAG_CHUNK_SIZE must be positive")
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("RAG_CHUNK_OVERLAP must be in [0, RAG_CHUNK_SIZE)")
	}
	// Context is assembled from whole chunks, so one chunk must always fit.
	if c.RAG.MaxContextChars < c.RAG.ChunkSize {
		return fmt.Errorf("RAG_MAX_CONTEXT_CHARS (%d) must be at least RAG_CHUNK_SIZE (%d)", c.RAG.MaxContextChars, c.RAG.ChunkSize)
	}
	if c.Embedding.Dimensions <= 0 || c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS and EMBEDDING_BATCH_SIZE must be positive")
	}
	switch c.VectorStore.Backend {
	case "pgvector", "memory":
	default:
		return fmt.Errorf("unknown VECTOR_STORE_BACKEND %q", c.VectorStore.Backend)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
