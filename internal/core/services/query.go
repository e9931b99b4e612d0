package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/cache"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// Ensure QueryService implements driving.QueryService
var _ driving.QueryService = (*QueryService)(nil)

const noResultsAnswer = "No relevant information was found in the indexed documents."

// QueryConfig holds configuration for the query service.
type QueryConfig struct {
	MaxTokens   int
	Temperature float64
	// EmbeddingProvider and LLMProvider qualify the model names in the
	// cache fingerprint.
	EmbeddingProvider domain.AIProvider
	LLMProvider       domain.AIProvider
	// EmbeddingModelID and LLMModelID feed the cache fingerprint. They
	// default to the services' model names qualified by provider.
	EmbeddingModelID string
	LLMModelID       string
	Logger           *slog.Logger
}

// QueryService answers questions: retrieve, build the prompt, generate.
// Answers are memoised per query fingerprint.
type QueryService struct {
	retriever *Retriever
	llm       driven.LLMService
	fallback  driven.LLMService
	answers   *cache.ResponseCache
	cfg       QueryConfig
	logger    *slog.Logger
}

// NewQueryService creates a QueryService.
// fallback answers when llm is nil or fails; answers may be nil to disable caching.
func NewQueryService(
	retriever *Retriever,
	llm driven.LLMService,
	fallback driven.LLMService,
	answers *cache.ResponseCache,
	cfg QueryConfig,
) *QueryService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.EmbeddingModelID == "" && retriever != nil {
		cfg.EmbeddingModelID = domain.ModelID(cfg.EmbeddingProvider, retriever.embedder.Model())
	}
	if cfg.LLMModelID == "" {
		switch {
		case llm != nil:
			cfg.LLMModelID = domain.ModelID(cfg.LLMProvider, llm.Model())
		case fallback != nil:
			cfg.LLMModelID = domain.ModelID(domain.AIProviderLocal, fallback.Model())
		}
	}
	return &QueryService{
		retriever: retriever,
		llm:       llm,
		fallback:  fallback,
		answers:   answers,
		cfg:       cfg,
		logger:    logger.With("component", "query"),
	}
}

// Ask retrieves passages for the query and generates an answer.
func (s *QueryService) Ask(ctx context.Context, req domain.QueryRequest) (*domain.QueryResponse, error) {
	start := time.Now()

	resolved, err := s.retriever.Resolve(req.RetrieveRequest)
	if err != nil {
		return nil, err
	}

	compute := func(ctx context.Context) ([]byte, error) {
		answer, err := s.answer(ctx, resolved)
		if err != nil {
			return nil, err
		}
		return json.Marshal(answer)
	}

	var value []byte
	var hit bool
	if s.answers == nil {
		value, err = compute(ctx)
	} else {
		key := domain.CachePrefixQuery + domain.Fingerprint(domain.FingerprintInput{
			Query:          resolved.Query,
			TopK:           resolved.TopK,
			Filter:         resolved.Filter,
			Rerank:         *resolved.Rerank,
			MinScore:       resolved.MinScore,
			Collapse:       resolved.Collapse,
			EmbeddingModel: s.cfg.EmbeddingModelID,
			LLMModel:       s.cfg.LLMModelID,
		})
		value, hit, err = s.answers.GetOrCompute(ctx, key, compute)
		if err == nil && !hit {
			s.dropFallback(ctx, key, value)
		}
	}
	if err != nil {
		return nil, err
	}

	var cached domain.CachedAnswer
	if err := json.Unmarshal(value, &cached); err != nil {
		return nil, fmt.Errorf("decoding cached answer: %w", err)
	}

	resp := &domain.QueryResponse{
		Query:    resolved.Query,
		Answer:   cached.Answer,
		Sources:  cached.Sources,
		Cached:   hit,
		Fallback: cached.Fallback,
		Took:     time.Since(start),
	}
	if resp.Sources == nil {
		resp.Sources = []*domain.RetrievedChunk{}
	}

	s.logger.Info("answered query",
		"sources", len(resp.Sources),
		"cached", resp.Cached,
		"fallback", resp.Fallback,
		"took", resp.Took,
	)
	return resp, nil
}

func (s *QueryService) answer(ctx context.Context, req domain.RetrieveRequest) (*domain.CachedAnswer, error) {
	chunks, err := s.retriever.Retrieve(ctx, req)
	if err != nil {
		return nil, err
	}

	out := &domain.CachedAnswer{Sources: chunks, ChunkIDs: make([]string, len(chunks))}
	for i, c := range chunks {
		out.ChunkIDs[i] = c.ChunkID
	}
	if len(chunks) == 0 {
		out.Answer = noResultsAnswer
		return out, nil
	}

	prompt := domain.BuildPrompt(promptContext(chunks), req.Query)
	opts := driven.GenerateOptions{MaxTokens: s.cfg.MaxTokens, Temperature: s.cfg.Temperature}

	if s.llm != nil {
		answer, err := s.llm.Generate(ctx, prompt, opts)
		if err == nil {
			out.Answer = strings.TrimSpace(answer)
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if s.fallback == nil {
			return nil, err
		}
		s.logger.Warn("llm failed, using extractive fallback", "model", s.llm.Model(), "error", err)
	}
	if s.fallback == nil {
		return nil, fmt.Errorf("%w: no llm configured", domain.ErrLLMProvider)
	}

	answer, err := s.fallback.Generate(ctx, prompt, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: fallback: %v", domain.ErrLLMProvider, err)
	}
	out.Answer = strings.TrimSpace(answer)
	out.Fallback = s.llm != nil
	return out, nil
}

// dropFallback evicts an answer produced by the fallback so the next request
// retries the LLM. Callers that already shared the computation keep it.
func (s *QueryService) dropFallback(ctx context.Context, key string, value []byte) {
	var cached struct {
		Fallback bool `json:"fallback"`
	}
	if json.Unmarshal(value, &cached) != nil || !cached.Fallback {
		return
	}
	if err := s.answers.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Warn("failed to evict fallback answer", "error", err)
	}
}

// promptContext numbers the passages so answers can cite them.
// BuildPrompt truncates the result to domain.MaxPromptContext.
func promptContext(chunks []*domain.RetrievedChunk) string {
	var sb strings.Builder
	for i, c := range chunks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("[" + strconv.Itoa(i+1) + "] ")
		sb.WriteString(strings.TrimSpace(c.Content))
	}
	return sb.String()
}
