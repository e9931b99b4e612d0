// Package config loads process configuration from defaults, an optional
// YAML or TOML file, and the environment, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// Run modes
const (
	ModeAPI    = "api"
	ModeWorker = "worker"
	ModeAll    = "all"
)

// Backends
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config is the complete process configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" toml:"server"`
	Log        LogConfig        `yaml:"log" toml:"log"`
	Store      StoreConfig      `yaml:"store" toml:"store"`
	Redis      RedisConfig      `yaml:"redis" toml:"redis"`
	Embedding  EmbeddingConfig  `yaml:"embedding" toml:"embedding"`
	LLM        LLMConfig        `yaml:"llm" toml:"llm"`
	Cache      CacheConfig      `yaml:"cache" toml:"cache"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" toml:"retrieval"`
	Chunking   ChunkingConfig   `yaml:"chunking" toml:"chunking"`
	Ingestion  IngestionConfig  `yaml:"ingestion" toml:"ingestion"`
	Compaction CompactionConfig `yaml:"compaction" toml:"compaction"`
	Encryption EncryptionConfig `yaml:"encryption" toml:"encryption"`
	Worker     WorkerConfig     `yaml:"worker" toml:"worker"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host        string   `yaml:"host" toml:"host"`
	Port        int      `yaml:"port" toml:"port"`
	Mode        string   `yaml:"mode" toml:"mode"` // api, worker or all
	CORSOrigins []string `yaml:"cors_origins" toml:"cors_origins"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`   // debug, info, warn, error
	Format string `yaml:"format" toml:"format"` // text or json
}

// StoreConfig selects where documents and index entries live.
type StoreConfig struct {
	Backend         string             `yaml:"backend" toml:"backend"` // memory, sqlite or postgres
	SQLitePath      string             `yaml:"sqlite_path" toml:"sqlite_path"`
	PostgresURL     string             `yaml:"postgres_url" toml:"postgres_url"`
	MaxOpenConns    int                `yaml:"max_open_conns" toml:"max_open_conns"`
	MaxIdleConns    int                `yaml:"max_idle_conns" toml:"max_idle_conns"`
	ConnMaxLifetime Duration           `yaml:"conn_max_lifetime" toml:"conn_max_lifetime"`
	Metric          domain.Metric      `yaml:"metric" toml:"metric"`
	DedupPolicy     domain.DedupPolicy `yaml:"dedup_policy" toml:"dedup_policy"`
	// RefreshInterval is how often a shared index reloads writes made by
	// other instances. Zero disables it.
	RefreshInterval Duration           `yaml:"refresh_interval" toml:"refresh_interval"`
}

// RedisConfig configures the optional redis connection.
type RedisConfig struct {
	URL string `yaml:"url" toml:"url"`
}

// EmbeddingConfig configures the embedding provider and how it is called.
type EmbeddingConfig struct {
	Provider    domain.AIProvider `yaml:"provider" toml:"provider"`
	Model       string            `yaml:"model" toml:"model"`
	APIKey      string            `yaml:"api_key" toml:"api_key"`
	BaseURL     string            `yaml:"base_url" toml:"base_url"`
	Dimensions  int               `yaml:"dimensions" toml:"dimensions"`
	BatchSize   int               `yaml:"batch_size" toml:"batch_size"`
	MaxAttempts int               `yaml:"max_attempts" toml:"max_attempts"`
	RateLimit   float64           `yaml:"rate_limit" toml:"rate_limit"` // calls per second, 0 disables
	CacheTTL    Duration          `yaml:"cache_ttl" toml:"cache_ttl"`   // 0 disables the embedding cache
}

// Settings returns the provider settings for the AI factory.
func (e EmbeddingConfig) Settings() *domain.EmbeddingSettings {
	return &domain.EmbeddingSettings{
		Provider:   e.Provider,
		Model:      e.Model,
		APIKey:     e.APIKey,
		BaseURL:    e.BaseURL,
		Dimensions: e.Dimensions,
	}
}

// LLMConfig configures answer generation.
type LLMConfig struct {
	Provider    domain.AIProvider `yaml:"provider" toml:"provider"` // empty answers extractively
	Model       string            `yaml:"model" toml:"model"`
	APIKey      string            `yaml:"api_key" toml:"api_key"`
	BaseURL     string            `yaml:"base_url" toml:"base_url"`
	MaxTokens   int               `yaml:"max_tokens" toml:"max_tokens"`
	Temperature float64           `yaml:"temperature" toml:"temperature"`
	Fallback    bool              `yaml:"fallback" toml:"fallback"` // extractive answer when the LLM fails
}

// Settings returns the provider settings for the AI factory.
func (l LLMConfig) Settings() *domain.LLMSettings {
	return &domain.LLMSettings{
		Provider:    l.Provider,
		Model:       l.Model,
		APIKey:      l.APIKey,
		BaseURL:     l.BaseURL,
		MaxTokens:   l.MaxTokens,
		Temperature: l.Temperature,
	}
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	Enabled       bool     `yaml:"enabled" toml:"enabled"`
	Backend       string   `yaml:"backend" toml:"backend"` // memory or redis
	TTL           Duration `yaml:"ttl" toml:"ttl"`
	Capacity      int      `yaml:"capacity" toml:"capacity"`
	WaitTimeout   Duration `yaml:"wait_timeout" toml:"wait_timeout"`
	SweepInterval Duration `yaml:"sweep_interval" toml:"sweep_interval"` // 0 disables the scheduled sweep
}

// RetrievalConfig holds retrieval defaults.
type RetrievalConfig struct {
	TopK         int     `yaml:"top_k" toml:"top_k"`
	Rerank       bool    `yaml:"rerank" toml:"rerank"`
	Reranker     string  `yaml:"reranker" toml:"reranker"`
	RerankFactor int     `yaml:"rerank_factor" toml:"rerank_factor"`
	MinScore     float64 `yaml:"min_score" toml:"min_score"`
}

// ChunkingConfig configures the chunker.
type ChunkingConfig struct {
	Size    int `yaml:"size" toml:"size"`
	Overlap int `yaml:"overlap" toml:"overlap"`
}

// IngestionConfig bounds ingestion.
type IngestionConfig struct {
	MaxDocumentBytes int64 `yaml:"max_document_bytes" toml:"max_document_bytes"`
	MaxChunkRetries  int   `yaml:"max_chunk_retries" toml:"max_chunk_retries"`
}

// CompactionConfig configures scheduled compaction.
type CompactionConfig struct {
	Enabled  bool                   `yaml:"enabled" toml:"enabled"`
	Interval Duration               `yaml:"interval" toml:"interval"`
	Strategy domain.CompactStrategy `yaml:"strategy" toml:"strategy"`
	KeepDays int                    `yaml:"keep_days" toml:"keep_days"`
}

// EncryptionConfig configures at-rest encryption of entry content.
// Key takes precedence over Password and Salt.
type EncryptionConfig struct {
	Enabled  bool   `yaml:"enabled" toml:"enabled"`
	Key      string `yaml:"key" toml:"key"` // base64, 32 bytes
	Password string `yaml:"password" toml:"password"`
	Salt     string `yaml:"salt" toml:"salt"`
}

// WorkerConfig configures background processing.
type WorkerConfig struct {
	QueueBackend          string `yaml:"queue_backend" toml:"queue_backend"` // memory or redis
	Concurrency           int    `yaml:"concurrency" toml:"concurrency"`
	DequeueTimeout        int    `yaml:"dequeue_timeout" toml:"dequeue_timeout"` // seconds
	SchedulerEnabled      bool   `yaml:"scheduler_enabled" toml:"scheduler_enabled"`
	SchedulerLockRequired bool   `yaml:"scheduler_lock_required" toml:"scheduler_lock_required"`
}

// Default returns the built-in configuration: local embeddings, a SQLite
// store under ./data and an in-process cache and queue.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Mode: ModeAll,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Store: StoreConfig{
			Backend:         BackendSQLite,
			SQLitePath:      filepath.Join("data", "sercha.db"),
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: Duration{5 * time.Minute},
			Metric:          domain.MetricCosine,
			DedupPolicy:     domain.DedupPolicyNone,
			RefreshInterval: Duration{5 * time.Second},
		},
		Embedding: EmbeddingConfig{
			Provider:    domain.AIProviderLocal,
			BatchSize:   64,
			MaxAttempts: 4,
			CacheTTL:    Duration{24 * time.Hour},
		},
		LLM: LLMConfig{
			MaxTokens:   512,
			Temperature: 0.2,
			Fallback:    true,
		},
		Cache: CacheConfig{
			Enabled:       true,
			Backend:       BackendMemory,
			TTL:           Duration{time.Hour},
			Capacity:      10000,
			WaitTimeout:   Duration{90 * time.Second},
			SweepInterval: Duration{10 * time.Minute},
		},
		Retrieval: RetrievalConfig{
			TopK:         domain.DefaultTopK,
			Rerank:       false,
			Reranker:     "lexical",
			RerankFactor: 3,
		},
		Chunking: ChunkingConfig{
			Size:    1000,
			Overlap: 200,
		},
		Ingestion: IngestionConfig{
			MaxDocumentBytes: domain.DefaultMaxDocumentBytes,
			MaxChunkRetries:  2,
		},
		Compaction: CompactionConfig{
			Enabled:  false,
			Interval: Duration{24 * time.Hour},
			Strategy: domain.CompactDeduplicateExact,
			KeepDays: 30,
		},
		Worker: WorkerConfig{
			QueueBackend:          BackendMemory,
			Concurrency:           2,
			DequeueTimeout:        5,
			SchedulerEnabled:      true,
			SchedulerLockRequired: false,
		},
	}
}

// Load builds the configuration. path may be empty; otherwise it names a
// .yaml, .yml or .toml file. Variables from a .env file in the working
// directory are loaded without overriding the real environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: .env: %v", domain.ErrInvalidConfiguration, err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %v", domain.ErrInvalidConfiguration, path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".toml":
		err = toml.Unmarshal(data, c)
	default:
		return fmt.Errorf("%w: unsupported config file type %q", domain.ErrInvalidConfiguration, ext)
	}
	if err != nil {
		return fmt.Errorf("%w: parsing %s: %v", domain.ErrInvalidConfiguration, path, err)
	}
	return nil
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch c.Server.Mode {
	case ModeAPI, ModeWorker, ModeAll:
	default:
		add("server mode %q must be api, worker or all", c.Server.Mode)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		add("server port %d is out of range", c.Server.Port)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		add("%v", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		add("log format %q must be text or json", c.Log.Format)
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			add("sqlite store requires a path")
		}
	case BackendPostgres:
		if c.Store.PostgresURL == "" {
			add("postgres store requires DATABASE_URL")
		}
	default:
		add("store backend %q must be memory, sqlite or postgres", c.Store.Backend)
	}
	if !c.Store.Metric.IsValid() {
		add("metric %q must be cosine or dot", c.Store.Metric)
	}
	if !c.Store.DedupPolicy.IsValid() {
		add("dedup policy %q must be none or deduplicate_exact", c.Store.DedupPolicy)
	}

	settings := c.Embedding.Settings()
	if err := settings.Validate(); err != nil {
		add("embedding: %v", err)
	} else if !settings.IsConfigured() {
		add("embedding provider %q is not configured", c.Embedding.Provider)
	}
	if c.Embedding.BatchSize < 0 || c.Embedding.MaxAttempts < 0 || c.Embedding.RateLimit < 0 {
		add("embedding batch size, attempts and rate limit must not be negative")
	}
	if err := c.LLM.Settings().Validate(); err != nil {
		add("llm: %v", err)
	}

	if c.Cache.Enabled {
		switch c.Cache.Backend {
		case BackendMemory:
		case BackendRedis:
			if c.Redis.URL == "" {
				add("redis cache requires REDIS_URL")
			}
		default:
			add("cache backend %q must be memory or redis", c.Cache.Backend)
		}
	}
	if c.Cache.TTL.Duration <= 0 {
		add("cache ttl must be positive")
	}

	if c.Retrieval.TopK <= 0 {
		add("retrieval top_k must be positive")
	}
	if c.Retrieval.RerankFactor < 1 {
		add("rerank factor must be at least 1")
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Size <= c.Chunking.Overlap {
		add("chunk size %d must exceed overlap %d >= 0", c.Chunking.Size, c.Chunking.Overlap)
	}
	if c.Ingestion.MaxDocumentBytes <= 0 {
		add("max document bytes must be positive")
	}

	if !c.Compaction.Strategy.IsValid() {
		add("compaction strategy %q must be deduplicate_exact or age_based", c.Compaction.Strategy)
	}
	if c.Compaction.KeepDays < 0 {
		add("compaction keep days must not be negative")
	}
	if c.Compaction.Enabled && c.Compaction.Interval.Duration <= 0 {
		add("compaction interval must be positive")
	}

	if c.Encryption.Enabled && c.Encryption.Key == "" && (c.Encryption.Password == "" || c.Encryption.Salt == "") {
		add("encryption requires ENCRYPTION_KEY or ENCRYPTION_PASSWORD with ENCRYPTION_SALT")
	}

	switch c.Worker.QueueBackend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.URL == "" {
			add("redis queue requires REDIS_URL")
		}
	default:
		add("queue backend %q must be memory or redis", c.Worker.QueueBackend)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

// Duration is a time.Duration that reads "30s"-style strings from config files.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}
