package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// applyEnv overlays environment variables. Unset variables keep the
// value from defaults or the config file.
func (c *Config) applyEnv() {
	c.Server.Mode = getEnv("RUN_MODE", c.Server.Mode)
	c.Server.Host = getEnv("HOST", c.Server.Host)
	c.Server.Port = getEnvInt("PORT", c.Server.Port)
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.Server.CORSOrigins = splitList(origins)
	}

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	c.Store.Backend = getEnv("STORE_BACKEND", c.Store.Backend)
	c.Store.SQLitePath = getEnv("SQLITE_PATH", c.Store.SQLitePath)
	c.Store.PostgresURL = getEnv("DATABASE_URL", c.Store.PostgresURL)
	c.Store.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", c.Store.MaxOpenConns)
	c.Store.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", c.Store.MaxIdleConns)
	c.Store.ConnMaxLifetime.Duration = getEnvDuration("DB_CONN_MAX_LIFETIME", c.Store.ConnMaxLifetime.Duration)
	c.Store.Metric = domain.Metric(getEnv("VECTOR_METRIC", string(c.Store.Metric)))
	c.Store.DedupPolicy = domain.DedupPolicy(getEnv("DEDUP_POLICY", string(c.Store.DedupPolicy)))
	c.Store.RefreshInterval.Duration = getEnvDuration("INDEX_REFRESH_INTERVAL", c.Store.RefreshInterval.Duration)

	c.Redis.URL = getEnv("REDIS_URL", c.Redis.URL)

	c.Embedding.Provider = domain.AIProvider(getEnv("EMBEDDING_PROVIDER", string(c.Embedding.Provider)))
	c.Embedding.Model = getEnv("EMBEDDING_MODEL", c.Embedding.Model)
	c.Embedding.APIKey = getEnv("EMBEDDING_API_KEY", c.Embedding.APIKey)
	c.Embedding.BaseURL = getEnv("EMBEDDING_BASE_URL", c.Embedding.BaseURL)
	c.Embedding.Dimensions = getEnvInt("EMBEDDING_DIMENSIONS", c.Embedding.Dimensions)
	c.Embedding.BatchSize = getEnvInt("EMBEDDING_BATCH_SIZE", c.Embedding.BatchSize)
	c.Embedding.MaxAttempts = getEnvInt("EMBEDDING_MAX_ATTEMPTS", c.Embedding.MaxAttempts)
	c.Embedding.RateLimit = getEnvFloat("EMBEDDING_RATE_LIMIT", c.Embedding.RateLimit)
	c.Embedding.CacheTTL.Duration = getEnvDuration("EMBEDDING_CACHE_TTL", c.Embedding.CacheTTL.Duration)

	c.LLM.Provider = domain.AIProvider(getEnv("LLM_PROVIDER", string(c.LLM.Provider)))
	c.LLM.Model = getEnv("LLM_MODEL", c.LLM.Model)
	c.LLM.APIKey = getEnv("LLM_API_KEY", c.LLM.APIKey)
	c.LLM.BaseURL = getEnv("LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.MaxTokens = getEnvInt("LLM_MAX_TOKENS", c.LLM.MaxTokens)
	c.LLM.Temperature = getEnvFloat("LLM_TEMPERATURE", c.LLM.Temperature)
	c.LLM.Fallback = getEnvBool("LLM_FALLBACK", c.LLM.Fallback)

	c.Cache.Enabled = getEnvBool("CACHE_ENABLED", c.Cache.Enabled)
	c.Cache.Backend = getEnv("CACHE_BACKEND", c.Cache.Backend)
	c.Cache.TTL.Duration = getEnvDuration("CACHE_TTL", c.Cache.TTL.Duration)
	c.Cache.Capacity = getEnvInt("CACHE_CAPACITY", c.Cache.Capacity)
	c.Cache.WaitTimeout.Duration = getEnvDuration("CACHE_WAIT_TIMEOUT", c.Cache.WaitTimeout.Duration)
	c.Cache.SweepInterval.Duration = getEnvDuration("CACHE_SWEEP_INTERVAL", c.Cache.SweepInterval.Duration)

	c.Retrieval.TopK = getEnvInt("RETRIEVAL_TOP_K", c.Retrieval.TopK)
	c.Retrieval.Rerank = getEnvBool("RERANK_ENABLED", c.Retrieval.Rerank)
	c.Retrieval.Reranker = getEnv("RERANKER", c.Retrieval.Reranker)
	c.Retrieval.RerankFactor = getEnvInt("RERANK_FACTOR", c.Retrieval.RerankFactor)
	c.Retrieval.MinScore = getEnvFloat("MIN_SCORE", c.Retrieval.MinScore)

	c.Chunking.Size = getEnvInt("CHUNK_SIZE", c.Chunking.Size)
	c.Chunking.Overlap = getEnvInt("CHUNK_OVERLAP", c.Chunking.Overlap)

	c.Ingestion.MaxDocumentBytes = getEnvInt64("MAX_DOCUMENT_BYTES", c.Ingestion.MaxDocumentBytes)
	c.Ingestion.MaxChunkRetries = getEnvInt("MAX_CHUNK_RETRIES", c.Ingestion.MaxChunkRetries)

	c.Compaction.Enabled = getEnvBool("COMPACTION_ENABLED", c.Compaction.Enabled)
	c.Compaction.Interval.Duration = getEnvDuration("COMPACTION_INTERVAL", c.Compaction.Interval.Duration)
	c.Compaction.Strategy = domain.CompactStrategy(getEnv("COMPACTION_STRATEGY", string(c.Compaction.Strategy)))
	c.Compaction.KeepDays = getEnvInt("COMPACTION_KEEP_DAYS", c.Compaction.KeepDays)

	c.Encryption.Enabled = getEnvBool("ENCRYPTION_ENABLED", c.Encryption.Enabled)
	c.Encryption.Key = getEnv("ENCRYPTION_KEY", c.Encryption.Key)
	c.Encryption.Password = getEnv("ENCRYPTION_PASSWORD", c.Encryption.Password)
	c.Encryption.Salt = getEnv("ENCRYPTION_SALT", c.Encryption.Salt)

	c.Worker.QueueBackend = getEnv("QUEUE_BACKEND", c.Worker.QueueBackend)
	c.Worker.Concurrency = getEnvInt("WORKER_CONCURRENCY", c.Worker.Concurrency)
	c.Worker.DequeueTimeout = getEnvInt("WORKER_DEQUEUE_TIMEOUT", c.Worker.DequeueTimeout)
	c.Worker.SchedulerEnabled = getEnvBool("SCHEDULER_ENABLED", c.Worker.SchedulerEnabled)
	c.Worker.SchedulerLockRequired = getEnvBool("SCHEDULER_LOCK_REQUIRED", c.Worker.SchedulerLockRequired)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.ParseInt(value, 10, 64); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.ParseFloat(value, 64); err == nil {
			return result
		}
	}
	return defaultValue
}

// getEnvBool accepts true, 1 or yes; any other set value is false.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes":
			return true
		default:
			return false
		}
	}
	return defaultValue
}

// getEnvDuration reads "90s"-style values; a bare number is seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
