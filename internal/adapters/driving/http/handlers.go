package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/swaggo/swag"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// ReadyResponse reports per-dependency readiness
// @Description Readiness status with the result of each dependency check
type ReadyResponse struct {
	Status string            `json:"status" example:"ready"`
	Checks map[string]string `json:"checks"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// IngestRequest is the body of a synchronous ingestion.
// Exactly one of Content and ContentBase64 carries inline data; with neither,
// Source is read as a local path or URL.
// @Description Document to ingest
type IngestRequest struct {
	Source        string            `json:"source" example:"handbook.md"`
	Format        domain.Format     `json:"format,omitempty" example:"md"`
	Title         string            `json:"title,omitempty"`
	Content       string            `json:"content,omitempty"`
	ContentBase64 string            `json:"content_base64,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// IngestAsyncRequest enqueues ingestion of a path or URL
// @Description Path or URL to ingest in the background
type IngestAsyncRequest struct {
	Source string        `json:"source" example:"https://example.com/guide.html"`
	Format domain.Format `json:"format,omitempty" example:"url"`
}

// RetrieveResponse holds ranked chunks
// @Description Ranked chunks for a query
type RetrieveResponse struct {
	Query   string                   `json:"query"`
	Results []*domain.RetrievedChunk `json:"results"`
	Took    time.Duration            `json:"took" swaggertype:"integer" example:"1500000"`
}

// CountResponse reports how many items an operation removed
// @Description Number of removed items
type CountResponse struct {
	Removed int `json:"removed" example:"3"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings the document store, redis and the task queue in parallel
// @Tags         Health
// @Produce      json
// @Success      200  {object}  ReadyResponse
// @Failure      503  {object}  ReadyResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var mu sync.Mutex
	results := make(map[string]string, len(s.checks))
	g, gctx := errgroup.WithContext(ctx)
	for name, check := range s.checks {
		g.Go(func() error {
			err := check.Ping(gctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				results[name] = err.Error()
				return err
			}
			results[name] = "ok"
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{Status: "unavailable", Checks: results})
		return
	}
	writeJSON(w, http.StatusOK, ReadyResponse{Status: "ready", Checks: results})
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

func (s *Server) handleSwaggerDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		writeError(w, http.StatusNotFound, "api documentation not available")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, doc)
}

// Document endpoints

// handleIngest godoc
// @Summary      Ingest a document
// @Description  Extracts, chunks, embeds and indexes a document. Identical content already indexed is reported as unchanged.
// @Tags         Documents
// @Accept       json
// @Produce      json
// @Param        request  body      IngestRequest  true  "Document"
// @Success      201      {object}  domain.IngestionReport  "Indexed, fully or partially"
// @Success      200      {object}  domain.IngestionReport  "Unchanged"
// @Failure      400      {object}  ErrorResponse  "Invalid request or unsupported format"
// @Failure      413      {object}  ErrorResponse  "Document too large"
// @Failure      409      {object}  ErrorResponse  "Index needs a rebuild"
// @Failure      503      {object}  ErrorResponse  "Embedding provider or store unavailable"
// @Router       /documents [post]
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if !s.decode(w, r, &req) {
		return
	}

	var (
		report *domain.IngestionReport
		err    error
	)
	switch {
	case req.Content != "" && req.ContentBase64 != "":
		writeError(w, http.StatusBadRequest, "set content or content_base64, not both")
		return
	case req.Content != "" || req.ContentBase64 != "":
		content := []byte(req.Content)
		if req.ContentBase64 != "" {
			if content, err = base64.StdEncoding.DecodeString(req.ContentBase64); err != nil {
				writeError(w, http.StatusBadRequest, "content_base64 is not valid base64")
				return
			}
		}
		format := req.Format
		if format == "" {
			format = domain.FormatFromPath(req.Source)
		}
		report, err = s.ingestion.Ingest(r.Context(), &domain.DocumentInput{
			Source:   req.Source,
			Title:    req.Title,
			Format:   format,
			Content:  content,
			Metadata: req.Metadata,
		})
	case req.Source != "":
		report, err = s.ingestion.IngestSource(r.Context(), req.Source, req.Format, req.Metadata)
	default:
		writeError(w, http.StatusBadRequest, "source or content is required")
		return
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	status := http.StatusCreated
	if report.Status == domain.IngestStatusUnchanged {
		status = http.StatusOK
	}
	writeJSON(w, status, report)
}

// handleIngestAsync godoc
// @Summary      Queue a document for ingestion
// @Description  Enqueues an ingest_document task for a local path or URL
// @Tags         Documents
// @Accept       json
// @Produce      json
// @Param        request  body      IngestAsyncRequest  true  "Source"
// @Success      202      {object}  domain.Task
// @Failure      400      {object}  ErrorResponse
// @Failure      503      {object}  ErrorResponse  "No task queue configured"
// @Router       /documents/async [post]
func (s *Server) handleIngestAsync(w http.ResponseWriter, r *http.Request) {
	var req IngestAsyncRequest
	if !s.decode(w, r, &req) {
		return
	}
	task, err := s.ingestion.IngestAsync(r.Context(), req.Source, req.Format)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, task)
}

// handleListDocuments godoc
// @Summary      List documents
// @Description  Lists documents, newest first
// @Tags         Documents
// @Produce      json
// @Param        limit   query     int  false  "Page size (default 50, max 500)"
// @Param        offset  query     int  false  "Offset"
// @Success      200     {array}   domain.Document
// @Failure      400     {object}  ErrorResponse
// @Router       /documents [get]
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", 50)
	if !ok {
		return
	}
	offset, ok := queryInt(w, r, "offset", 0)
	if !ok {
		return
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	docs, err := s.ingestion.List(r.Context(), limit, offset)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if docs == nil {
		docs = []*domain.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

// handleGetDocument godoc
// @Summary      Get a document
// @Tags         Documents
// @Produce      json
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  domain.Document
// @Failure      404  {object}  ErrorResponse
// @Router       /documents/{id} [get]
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.ingestion.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleDeleteDocument godoc
// @Summary      Delete a document
// @Description  Removes a document and its index entries
// @Tags         Documents
// @Param        id   path      string  true  "Document ID"
// @Success      204
// @Failure      404  {object}  ErrorResponse
// @Router       /documents/{id} [delete]
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.ingestion.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetDocumentChunks godoc
// @Summary      Get document chunks
// @Description  Returns a document's indexed chunks in position order
// @Tags         Documents
// @Produce      json
// @Param        id   path      string  true  "Document ID"
// @Success      200  {array}   domain.IndexEntry
// @Failure      404  {object}  ErrorResponse
// @Router       /documents/{id}/chunks [get]
func (s *Server) handleGetDocumentChunks(w http.ResponseWriter, r *http.Request) {
	chunks, err := s.ingestion.Chunks(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if chunks == nil {
		chunks = []*domain.IndexEntry{}
	}
	writeJSON(w, http.StatusOK, chunks)
}

// Retrieval endpoints

// handleRetrieve godoc
// @Summary      Retrieve chunks
// @Description  Returns up to top_k chunks ranked by similarity, optionally reranked
// @Tags         Retrieval
// @Accept       json
// @Produce      json
// @Param        request  body      domain.RetrieveRequest  true  "Query"
// @Success      200      {object}  RetrieveResponse
// @Failure      400      {object}  ErrorResponse
// @Failure      409      {object}  ErrorResponse  "Index needs a rebuild"
// @Failure      503      {object}  ErrorResponse
// @Router       /retrieve [post]
func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req domain.RetrieveRequest
	if !s.decode(w, r, &req) {
		return
	}

	start := time.Now()
	results, err := s.retrieval.Retrieve(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if results == nil {
		results = []*domain.RetrievedChunk{}
	}
	writeJSON(w, http.StatusOK, RetrieveResponse{
		Query:   req.Query,
		Results: results,
		Took:    time.Since(start),
	})
}

// handleQuery godoc
// @Summary      Answer a question
// @Description  Retrieves passages and generates an answer. Identical queries against an unchanged index are served from the cache.
// @Tags         Retrieval
// @Accept       json
// @Produce      json
// @Param        request  body      domain.QueryRequest  true  "Question"
// @Success      200      {object}  domain.QueryResponse
// @Failure      400      {object}  ErrorResponse
// @Failure      409      {object}  ErrorResponse  "Index needs a rebuild"
// @Failure      503      {object}  ErrorResponse
// @Router       /query [post]
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req domain.QueryRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.query.Ask(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Maintenance endpoints

// handleDeduplicate godoc
// @Summary      Deduplicate the index
// @Description  Removes exact duplicate entries, keeping the earliest copy
// @Tags         Maintenance
// @Produce      json
// @Success      200  {object}  CountResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /maintenance/deduplicate [post]
func (s *Server) handleDeduplicate(w http.ResponseWriter, r *http.Request) {
	removed, err := s.maintenance.Deduplicate(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Removed: removed})
}

// handleCompact godoc
// @Summary      Compact the index
// @Description  Runs deduplicate_exact or age_based compaction. With async=true the run is queued.
// @Tags         Maintenance
// @Accept       json
// @Produce      json
// @Param        request  body      domain.CompactRequest  false  "Strategy"
// @Param        async    query     bool  false  "Queue the compaction"
// @Success      200      {object}  domain.CompactResult
// @Success      202      {object}  domain.Task
// @Failure      400      {object}  ErrorResponse
// @Failure      409      {object}  ErrorResponse
// @Router       /maintenance/compact [post]
func (s *Server) handleCompact(w http.ResponseWriter, r *http.Request) {
	var req domain.CompactRequest
	if !s.decodeOptional(w, r, &req) {
		return
	}

	if r.URL.Query().Get("async") == "true" {
		s.enqueue(w, r, domain.NewCompactTask(req))
		return
	}

	result, err := s.maintenance.Compact(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleRebuild godoc
// @Summary      Rebuild the index
// @Description  Re-chunks and re-embeds every stored document into a fresh index. With async=true the rebuild is queued.
// @Tags         Maintenance
// @Produce      json
// @Param        async  query     bool  false  "Queue the rebuild"
// @Success      200    {object}  domain.RebuildResult
// @Success      202    {object}  domain.Task
// @Failure      503    {object}  ErrorResponse
// @Router       /maintenance/rebuild [post]
func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("async") == "true" {
		s.enqueue(w, r, domain.NewTask(domain.TaskTypeRebuildIndex, nil))
		return
	}

	result, err := s.maintenance.Rebuild(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleMaintenanceStatus godoc
// @Summary      Maintenance status
// @Description  Index, document, cache and queue state
// @Tags         Maintenance
// @Produce      json
// @Success      200  {object}  domain.MaintenanceStatus
// @Router       /maintenance/status [get]
func (s *Server) handleMaintenanceStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.maintenance.Status(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// Cache endpoints

// handleCacheStats godoc
// @Summary      Cache statistics
// @Tags         Cache
// @Produce      json
// @Success      200  {object}  domain.CacheStats
// @Failure      503  {object}  ErrorResponse  "Cache disabled"
// @Router       /cache/stats [get]
func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.maintenance.CacheStats(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleClearCache godoc
// @Summary      Clear the cache
// @Description  Removes cached answers and vectors. prefix narrows it to query: or embed: keys.
// @Tags         Cache
// @Produce      json
// @Param        prefix  query     string  false  "Key prefix"
// @Success      200     {object}  CountResponse
// @Failure      400     {object}  ErrorResponse
// @Failure      503     {object}  ErrorResponse  "Cache disabled"
// @Router       /cache [delete]
func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	removed, err := s.maintenance.ClearCache(r.Context(), r.URL.Query().Get("prefix"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Removed: removed})
}

// Task endpoints

// handleGetTask godoc
// @Summary      Get a task
// @Tags         Tasks
// @Produce      json
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  domain.Task
// @Failure      404  {object}  ErrorResponse
// @Router       /tasks/{id} [get]
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		writeError(w, http.StatusServiceUnavailable, "no task queue configured")
		return
	}
	task, err := s.tasks.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if task == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) enqueue(w http.ResponseWriter, r *http.Request, task *domain.Task) {
	if s.tasks == nil {
		writeError(w, http.StatusServiceUnavailable, "no task queue configured")
		return
	}
	if err := s.tasks.Enqueue(r.Context(), task); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, task)
}

// Helpers

// decode reads a JSON body into v, writing the error response on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDecodeError(w, err)
		return false
	}
	return true
}

// decodeOptional is decode for endpoints whose body may be empty.
func (s *Server) decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeDecodeError(w, err)
		return false
	}
	return true
}

func writeDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, "invalid request body")
}

func queryInt(w http.ResponseWriter, r *http.Request, key string, def int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		writeError(w, http.StatusBadRequest, "invalid "+key)
		return 0, false
	}
	return v, true
}

// writeServiceError maps domain errors to HTTP status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		s.logger.Error("request failed", "error", err)
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrUnsupportedFormat),
		errors.Is(err, domain.ErrInvalidConfiguration),
		errors.Is(err, domain.ErrInvalidProvider):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrCorruptIndex),
		errors.Is(err, domain.ErrDimensionMismatch),
		errors.Is(err, domain.ErrIndexRebuilding):
		return http.StatusConflict
	case errors.Is(err, domain.ErrDocumentTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrServiceUnavailable),
		errors.Is(err, domain.ErrStoreUnavailable),
		errors.Is(err, domain.ErrEmbeddingProvider),
		errors.Is(err, domain.ErrLLMProvider),
		errors.Is(err, domain.ErrLockNotAcquired),
		errors.Is(err, domain.ErrCacheWaitTimeout):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
