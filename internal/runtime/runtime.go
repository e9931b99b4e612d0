// Package runtime wires configuration into a running service graph.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/ai"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/encryption"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/memory"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/postgres"
	redisqueue "github.com/custodia-labs/sercha-rag/internal/adapters/driven/queue/redis"
	redisadapter "github.com/custodia-labs/sercha-rag/internal/adapters/driven/redis"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/sqlite"
	"github.com/custodia-labs/sercha-rag/internal/cache"
	"github.com/custodia-labs/sercha-rag/internal/config"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
	"github.com/custodia-labs/sercha-rag/internal/extractors"
	"github.com/custodia-labs/sercha-rag/internal/index"
	"github.com/custodia-labs/sercha-rag/internal/postprocessors"
	"github.com/custodia-labs/sercha-rag/internal/worker"
)

// Services holds every long-lived component. It is built once by Build,
// passed by reference and torn down by Close.
type Services struct {
	Config *config.Config
	Logger *slog.Logger

	Documents driven.DocumentStore
	Index     *index.Store
	Embedder  *services.BatchEmbedder
	Answers   *cache.ResponseCache // nil when the response cache is disabled
	Queue     driven.TaskQueue
	Lock      driven.DistributedLock // nil for the memory backend without redis

	Ingestion   *services.IngestionOrchestrator
	Retriever   *services.Retriever
	Query       *services.QueryService
	Maintenance *services.MaintenanceService
	Scheduler   *services.Scheduler

	// IndexErr is the error Load reported for a corrupt or mismatched index.
	// The index refuses queries until a rebuild succeeds.
	IndexErr error

	checks  []Check
	closers []closer
}

// Check is a named readiness check.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type closer struct {
	name string
	fn   func() error
}

// Option customises Build.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger uses logger instead of building one from the config.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Build constructs the service graph from cfg. On error, anything already
// opened is closed again.
func Build(ctx context.Context, cfg *config.Config, opts ...Option) (s *Services, err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	s = &Services{Config: cfg}
	defer func() {
		if err != nil {
			_ = s.Close()
			s = nil
		}
	}()

	// Logger
	s.Logger = o.logger
	if s.Logger == nil {
		if s.Logger, err = config.SetupLogger(cfg.Log, os.Stderr); err != nil {
			return s, fmt.Errorf("%w: %v", domain.ErrInvalidConfiguration, err)
		}
	}

	// Database
	entries, err := s.openStores(ctx)
	if err != nil {
		return s, err
	}

	// Redis
	var redisClient *goredis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = redisadapter.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return s, err
		}
		s.onClose("redis", redisClient.Close)
		s.checks = append(s.checks, Check{Name: "redis", Ping: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}

	// Lock: redis wins over the database lock
	if redisClient != nil {
		s.Lock = redisadapter.NewLock(redisClient, redisadapter.DefaultNamespace)
	}
	if s.Lock == nil {
		s.Logger.Debug("no distributed lock configured; writers are serialised in-process only")
	}

	// AI providers
	factory := ai.NewFactory()
	embedSvc, err := factory.CreateEmbeddingService(cfg.Embedding.Settings())
	if err != nil {
		return s, err
	}
	if embedSvc == nil {
		return s, fmt.Errorf("%w: embedding provider %q is not configured",
			domain.ErrInvalidConfiguration, cfg.Embedding.Provider)
	}
	s.onClose("embedding", embedSvc.Close)

	llmSvc, err := factory.CreateLLMService(cfg.LLM.Settings())
	if err != nil {
		return s, err
	}
	var fallback driven.LLMService
	if llmSvc == nil || cfg.LLM.Fallback {
		fallback = ai.NewLocalLLM()
	}
	if llmSvc != nil {
		s.onClose("llm", llmSvc.Close)
	}

	// Cache store and embedding cache
	cacheStore, err := s.openCacheStore(redisClient)
	if err != nil {
		return s, err
	}
	if cfg.Embedding.CacheTTL.Duration > 0 {
		embedSvc = services.NewCachedEmbedding(embedSvc, cacheStore, cfg.Embedding.CacheTTL.Duration, s.Logger)
	}
	s.Embedder = services.NewBatchEmbedder(embedSvc, services.BatchEmbedderConfig{
		BatchSize:   cfg.Embedding.BatchSize,
		MaxAttempts: cfg.Embedding.MaxAttempts,
		RateLimit:   cfg.Embedding.RateLimit,
		Logger:      s.Logger,
	})

	// Index
	if cfg.Encryption.Enabled {
		enc, err := newEncryptor(cfg.Encryption)
		if err != nil {
			return s, err
		}
		entries = encryption.NewEntryStore(entries, enc)
	}
	s.Index, err = index.New(entries, index.Config{
		Dimension: embedSvc.Dimensions(),
		Metric:    cfg.Store.Metric,
		Policy:    cfg.Store.DedupPolicy,
		Logger:    s.Logger,
		Lock:      s.Lock,
	})
	if err != nil {
		return s, err
	}
	if err := s.Index.Load(ctx); err != nil {
		if !domain.RequiresRebuild(err) {
			return s, err
		}
		s.IndexErr = err
		s.Logger.Warn("index needs a rebuild before it can serve queries", "error", err)
	}

	s.checks = append([]Check{{Name: "documents", Ping: s.Documents.Ping}}, s.checks...)

	// Response cache
	if cfg.Cache.Enabled {
		s.Answers = cache.New(cacheStore, cache.Config{
			TTL:         cfg.Cache.TTL.Duration,
			WaitTimeout: cfg.Cache.WaitTimeout.Duration,
			Logger:      s.Logger,
		})
	}

	// The queue comes before the services that enqueue onto it
	if err := s.openQueue(ctx, redisClient); err != nil {
		return s, err
	}

	if err := s.buildServices(cfg, fallback, llmSvc); err != nil {
		return s, err
	}

	s.Logger.Info("runtime ready",
		"store", cfg.Store.Backend,
		"embedding", s.Embedder.Model(),
		"dimension", s.Index.Dimension(),
		"index_state", s.Index.State(),
		"cache", cfg.Cache.Enabled,
		"queue", cfg.Worker.QueueBackend,
	)
	return s, nil
}

// openStores opens the configured backend and returns its entry store.
func (s *Services) openStores(ctx context.Context) (driven.EntryStore, error) {
	cfg := s.Config.Store
	switch cfg.Backend {
	case config.BackendPostgres:
		pgCfg := postgres.DefaultConfig(cfg.PostgresURL)
		if cfg.MaxOpenConns > 0 {
			pgCfg.MaxOpenConns = cfg.MaxOpenConns
		}
		if cfg.MaxIdleConns > 0 {
			pgCfg.MaxIdleConns = cfg.MaxIdleConns
		}
		if cfg.ConnMaxLifetime.Duration > 0 {
			pgCfg.ConnMaxLifetime = cfg.ConnMaxLifetime.Duration
		}
		db, err := postgres.Connect(ctx, pgCfg)
		if err != nil {
			return nil, err
		}
		s.onClose("postgres", db.Close)
		if err := db.InitSchema(ctx); err != nil {
			return nil, err
		}
		s.Documents = postgres.NewDocumentStore(db)
		s.Lock = postgres.NewAdvisoryLock(db)
		return postgres.NewEntryStore(db), nil

	case config.BackendSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		s.onClose("sqlite", db.Close)
		s.Documents = sqlite.NewDocumentStore(db)
		s.Lock = sqlite.NewLock(db)
		return sqlite.NewEntryStore(db), nil

	case config.BackendMemory:
		s.Documents = memory.NewDocumentStore()
		return memory.NewEntryStore(), nil

	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", domain.ErrInvalidConfiguration, cfg.Backend)
	}
}

func (s *Services) openCacheStore(client *goredis.Client) (driven.CacheStore, error) {
	if s.Config.Cache.Backend == config.BackendRedis && client != nil {
		return redisadapter.NewCacheStore(client, redisadapter.DefaultNamespace), nil
	}
	return memory.NewCacheStore(s.Config.Cache.Capacity)
}

func (s *Services) openQueue(ctx context.Context, client *goredis.Client) error {
	if s.Config.Worker.QueueBackend == config.BackendRedis {
		if client == nil {
			return fmt.Errorf("%w: redis queue requires REDIS_URL", domain.ErrInvalidConfiguration)
		}
		q, err := redisqueue.NewQueue(ctx, client, redisqueue.DefaultNamespace, consumerName())
		if err != nil {
			return err
		}
		s.Queue = q
	} else {
		s.Queue = memory.NewQueue()
	}
	s.onClose("queue", s.Queue.Close)
	s.checks = append(s.checks, Check{Name: "queue", Ping: s.Queue.Ping})
	return nil
}

func (s *Services) buildServices(cfg *config.Config, fallback, llmSvc driven.LLMService) error {
	pipeline, err := postprocessors.NewDefaultPipeline(postprocessors.ChunkConfig{
		MaxChunkSize:       cfg.Chunking.Size,
		Overlap:            cfg.Chunking.Overlap,
		PreserveSentences:  true,
		PreserveParagraphs: true,
	})
	if err != nil {
		return err
	}
	reranker, err := services.NewReranker(cfg.Retrieval.Reranker)
	if err != nil {
		return err
	}
	registry := extractors.NewDefaultRegistry(extractors.Options{
		MaxFetchBytes: cfg.Ingestion.MaxDocumentBytes,
	})

	s.Ingestion = services.NewIngestionOrchestrator(s.Documents, registry, pipeline, s.Embedder, s.Index,
		services.IngestionConfig{
			MaxDocumentBytes: cfg.Ingestion.MaxDocumentBytes,
			MaxChunkRetries:  cfg.Ingestion.MaxChunkRetries,
			Logger:           s.Logger,
		}).WithQueue(s.Queue)
	if s.Answers != nil {
		s.Ingestion.WithCacheInvalidation(s.Answers)
	}

	s.Retriever = services.NewRetriever(s.Embedder, s.Index, services.RetrieverConfig{
		DefaultTopK:  cfg.Retrieval.TopK,
		Rerank:       cfg.Retrieval.Rerank,
		RerankFactor: cfg.Retrieval.RerankFactor,
		MinScore:     cfg.Retrieval.MinScore,
		Reranker:     reranker,
		Logger:       s.Logger,
	})

	s.Query = services.NewQueryService(s.Retriever, llmSvc, fallback, s.Answers, services.QueryConfig{
		MaxTokens:         cfg.LLM.MaxTokens,
		Temperature:       cfg.LLM.Temperature,
		EmbeddingProvider: cfg.Embedding.Provider,
		LLMProvider:       cfg.LLM.Provider,
		Logger:            s.Logger,
	})

	s.Maintenance = services.NewMaintenanceService(s.Documents, pipeline, s.Embedder, s.Index, s.Answers, s.Queue,
		services.MaintenanceConfig{
			KeepRecentDays: cfg.Compaction.KeepDays,
			Logger:         s.Logger,
		})

	compactEvery, sweepEvery := cfg.Compaction.Interval.Duration, cfg.Cache.SweepInterval.Duration
	if !cfg.Compaction.Enabled {
		compactEvery = 0
	}
	if !cfg.Cache.Enabled {
		sweepEvery = 0
	}
	s.Scheduler = services.NewScheduler(services.SchedulerConfig{
		TaskQueue: s.Queue,
		Tasks: services.DefaultSchedules(domain.CompactRequest{
			Strategy:       cfg.Compaction.Strategy,
			KeepRecentDays: cfg.Compaction.KeepDays,
		}, compactEvery, sweepEvery),
		Lock:         s.Lock,
		Logger:       s.Logger,
		LockRequired: cfg.Worker.SchedulerLockRequired,
	})
	return nil
}

// RecoverIndex finishes a rebuild that a crash interrupted. It does nothing
// unless the index was left in the rebuilding state.
func (s *Services) RecoverIndex(ctx context.Context) error {
	if s.Index.State() != domain.IndexStateRebuilding {
		return nil
	}
	s.Logger.Warn("resuming interrupted index rebuild")
	result, err := s.Maintenance.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("resuming rebuild: %w", err)
	}
	s.IndexErr = nil
	s.Logger.Info("index rebuild resumed", "documents", result.Documents, "entries", result.Entries)
	return nil
}

// NewWorker returns a worker over the queue and services.
// The scheduler is attached when enabled in the config.
func (s *Services) NewWorker() *worker.Worker {
	var scheduler *services.Scheduler
	if s.Config.Worker.SchedulerEnabled {
		scheduler = s.Scheduler
	}
	return worker.NewWorker(worker.WorkerConfig{
		TaskQueue:      s.Queue,
		Ingestion:      s.Ingestion,
		Maintenance:    s.Maintenance,
		Scheduler:      scheduler,
		Logger:         s.Logger,
		Concurrency:    s.Config.Worker.Concurrency,
		DequeueTimeout: s.Config.Worker.DequeueTimeout,
	})
}

// Checks returns the readiness checks for the configured backends.
func (s *Services) Checks() []Check {
	return append([]Check(nil), s.checks...)
}

// Close releases everything Build opened, in reverse order.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		c := s.closers[i]
		if err := c.fn(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", c.name, err))
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func (s *Services) onClose(name string, fn func() error) {
	s.closers = append(s.closers, closer{name: name, fn: fn})
}

func newEncryptor(cfg config.EncryptionConfig) (*encryption.Encryptor, error) {
	var key []byte
	if cfg.Key != "" {
		var err error
		if key, err = encryption.KeyFromBase64(cfg.Key); err != nil {
			return nil, err
		}
	} else {
		key = encryption.DeriveKey(cfg.Password, cfg.Salt)
	}
	return encryption.NewEncryptor(key)
}

func consumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return host + "-" + strconv.Itoa(os.Getpid())
}
