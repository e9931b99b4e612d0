package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ModeAll, cfg.Server.Mode)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, domain.AIProviderLocal, cfg.Embedding.Provider)
	assert.Equal(t, domain.DefaultTopK, cfg.Retrieval.TopK)
	assert.True(t, cfg.LLM.Fallback)
	assert.Equal(t, time.Hour, cfg.Cache.TTL.Duration)
	assert.Equal(t, 5*time.Second, cfg.Store.RefreshInterval.Duration)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "sercha.yaml", `
server:
  port: 9090
  mode: api
store:
  backend: memory
  metric: dot
  dedup_policy: deduplicate_exact
  refresh_interval: 2s
cache:
  ttl: 30m
retrieval:
  top_k: 8
  rerank: true
chunking:
  size: 500
  overlap: 50
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, ModeAPI, cfg.Server.Mode)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, domain.MetricDot, cfg.Store.Metric)
	assert.Equal(t, domain.DedupPolicyExact, cfg.Store.DedupPolicy)
	assert.Equal(t, 2*time.Second, cfg.Store.RefreshInterval.Duration)
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL.Duration)
	assert.Equal(t, 8, cfg.Retrieval.TopK)
	assert.True(t, cfg.Retrieval.Rerank)
	assert.Equal(t, 500, cfg.Chunking.Size)
	// untouched sections keep their defaults
	assert.Equal(t, domain.AIProviderLocal, cfg.Embedding.Provider)
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "sercha.toml", `
[store]
backend = "memory"

[embedding]
provider = "ollama"
model = "nomic-embed-text"
dimensions = 768
cache_ttl = "2h"

[compaction]
enabled = true
interval = "6h"
strategy = "age_based"
keep_days = 14
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOllama, cfg.Embedding.Provider)
	assert.Equal(t, 768, cfg.Embedding.Dimensions)
	assert.Equal(t, 2*time.Hour, cfg.Embedding.CacheTTL.Duration)
	assert.True(t, cfg.Compaction.Enabled)
	assert.Equal(t, 6*time.Hour, cfg.Compaction.Interval.Duration)
	assert.Equal(t, domain.CompactAgeBased, cfg.Compaction.Strategy)
	assert.Equal(t, 14, cfg.Compaction.KeepDays)
}

func TestLoad_FileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	_, err = Load(writeFile(t, "sercha.json", `{}`))
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	_, err = Load(writeFile(t, "bad.yaml", "server: [unclosed"))
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "sercha.yaml", "server:\n  port: 9090\n")
	t.Setenv("PORT", "7070")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("RERANK_ENABLED", "yes")
	t.Setenv("LLM_TEMPERATURE", "0.7")
	t.Setenv("CACHE_TTL", "45") // bare seconds
	t.Setenv("EMBEDDING_CACHE_TTL", "10m")
	t.Setenv("MAX_DOCUMENT_BYTES", "2048")
	t.Setenv("CORS_ORIGINS", "http://a.example, http://b.example")
	t.Setenv("WORKER_CONCURRENCY", "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.True(t, cfg.Retrieval.Rerank)
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 45*time.Second, cfg.Cache.TTL.Duration)
	assert.Equal(t, 10*time.Minute, cfg.Embedding.CacheTTL.Duration)
	assert.Equal(t, int64(2048), cfg.Ingestion.MaxDocumentBytes)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 2, cfg.Worker.Concurrency, "unparseable values keep the default")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad mode", func(c *Config) { c.Server.Mode = "batch" }},
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad store", func(c *Config) { c.Store.Backend = "mysql" }},
		{"postgres without url", func(c *Config) { c.Store.Backend = BackendPostgres }},
		{"bad metric", func(c *Config) { c.Store.Metric = "euclidean" }},
		{"bad policy", func(c *Config) { c.Store.DedupPolicy = "merge" }},
		{"anthropic embeddings", func(c *Config) { c.Embedding.Provider = domain.AIProviderAnthropic }},
		{"openai without key", func(c *Config) { c.Embedding.Provider = domain.AIProviderOpenAI }},
		{"temperature", func(c *Config) { c.LLM.Temperature = 3 }},
		{"redis cache without url", func(c *Config) { c.Cache.Backend = BackendRedis }},
		{"zero top k", func(c *Config) { c.Retrieval.TopK = 0 }},
		{"overlap too large", func(c *Config) { c.Chunking.Overlap = c.Chunking.Size }},
		{"bad strategy", func(c *Config) { c.Compaction.Strategy = "shrink" }},
		{"encryption without key", func(c *Config) { c.Encryption.Enabled = true }},
		{"redis queue without url", func(c *Config) { c.Worker.QueueBackend = BackendRedis }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), domain.ErrInvalidConfiguration)
		})
	}
}

func TestValidate_DisabledCacheIgnoresBackend(t *testing.T) {
	cfg := Default()
	cfg.Cache.Enabled = false
	cfg.Cache.Backend = BackendRedis
	assert.NoError(t, cfg.Validate())
}

func TestSettings(t *testing.T) {
	cfg := Default()
	cfg.Embedding.Model = "mini"
	cfg.Embedding.Dimensions = 128

	emb := cfg.Embedding.Settings()
	assert.Equal(t, "local/mini", emb.ModelID())
	assert.Equal(t, 128, emb.Dimensions)

	llm := cfg.LLM.Settings()
	assert.False(t, llm.IsConfigured(), "no LLM provider by default")
	assert.Equal(t, 512, llm.MaxTokens)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(LogConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	_, err = NewLogger(LogConfig{Level: "info", Format: "xml"}, &buf)
	assert.Error(t, err)
	_, err = NewLogger(LogConfig{Level: "trace"}, &buf)
	assert.Error(t, err)
}

func TestSetupLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	_, err := SetupLogger(LogConfig{Level: "debug", Format: "text"}, &buf)
	require.NoError(t, err)

	slog.Debug("through default")
	assert.Contains(t, buf.String(), "through default")
}
