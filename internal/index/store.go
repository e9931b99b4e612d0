// Package index implements the vector store: an in-memory nearest-neighbour
// index written through to a durable EntryStore.
//
// Writers (Upsert, DeduplicateExact, Prune, DeleteDocument, Rebuild) are
// serialised, and across instances too when a DistributedLock is configured.
// Every committed write bumps the generation in the persisted IndexMeta. A
// writer first reloads the index if the generation moved, so instances
// sharing one EntryStore agree on content hashes and Seq. Readers catch up
// through Refresh or Watch.
//
// Search only takes a read lock and may run concurrently with writers. A
// search sees every entry whose write finished before it started and may or
// may not see writes that finish while it runs.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

const (
	writerLockName = "index-writer"
	lockPoll       = 100 * time.Millisecond
	pruneBatchSize = 500
)

// Producer streams the entries of a rebuilt index through emit.
type Producer func(ctx context.Context, emit func(entries []*domain.IndexEntry) error) error

// Config holds configuration for the vector store.
type Config struct {
	Dimension int
	Metric    domain.Metric
	Policy    domain.DedupPolicy
	Logger    *slog.Logger

	// Lock serialises writers across instances (optional)
	Lock     driven.DistributedLock
	LockTTL  time.Duration // default: 30s, extended while the writer runs
	LockWait time.Duration // how long a writer waits for the lock (default: 10s)
}

// Store is the vector store.
type Store struct {
	repo       driven.EntryStore
	similarity Similarity
	metric     domain.Metric
	policy     domain.DedupPolicy
	logger     *slog.Logger

	lock     driven.DistributedLock
	lockTTL  time.Duration
	lockWait time.Duration

	// writeMu is a one-slot semaphore held by the active writer
	writeMu chan struct{}
	// nextSeq and meta are only touched while holding writeMu
	nextSeq int64
	meta    domain.IndexMeta

	mu        sync.RWMutex
	data      *snapshot
	dimension int
	state     domain.IndexState
	rebuiltAt *time.Time
}

// New creates a vector store over repo. Call Load to restore persisted entries.
func New(repo driven.EntryStore, cfg Config) (*Store, error) {
	if repo == nil {
		return nil, fmt.Errorf("%w: entry store is required", domain.ErrInvalidConfiguration)
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive", domain.ErrInvalidConfiguration)
	}
	if cfg.Metric == "" {
		cfg.Metric = domain.MetricCosine
	}
	similarity, err := SimilarityFor(cfg.Metric)
	if err != nil {
		return nil, err
	}
	if cfg.Policy == "" {
		cfg.Policy = domain.DedupPolicyNone
	}
	if !cfg.Policy.IsValid() {
		return nil, fmt.Errorf("%w: unknown dedup policy %q", domain.ErrInvalidConfiguration, cfg.Policy)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	lockWait := cfg.LockWait
	if lockWait <= 0 {
		lockWait = 10 * time.Second
	}

	return &Store{
		repo:       repo,
		similarity: similarity,
		metric:     cfg.Metric,
		policy:     cfg.Policy,
		logger:     logger.With("component", "index"),
		lock:       cfg.Lock,
		lockTTL:    lockTTL,
		lockWait:   lockWait,
		writeMu:    make(chan struct{}, 1),
		nextSeq:    1,
		data:       newSnapshot(),
		dimension:  cfg.Dimension,
		state:      domain.IndexStateReady,
		meta: domain.IndexMeta{
			Dimension: cfg.Dimension,
			Metric:    cfg.Metric,
			State:     domain.IndexStateReady,
		},
	}, nil
}

// Load restores the index from persistence without re-embedding.
//
// A store that was never initialised is stamped with the configured dimension.
// A persisted dimension that differs from the configured one fails with
// ErrDimensionMismatch; unreadable rows fail with ErrCorruptIndex. Both leave
// the store refusing queries until Rebuild succeeds. An interrupted rebuild
// leaves the store in the rebuilding state.
func (s *Store) Load(ctx context.Context) error {
	release, err := s.acquireWriter(ctx, "load")
	if err != nil {
		return err
	}
	defer release()

	meta, err := s.repo.Meta(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		s.meta = domain.IndexMeta{
			Dimension: s.dimension,
			Metric:    s.metric,
			State:     domain.IndexStateReady,
			UpdatedAt: time.Now(),
		}
		if err := s.repo.SaveMeta(ctx, &s.meta); err != nil {
			return err
		}
		s.setState(domain.IndexStateReady)
		s.logger.Info("initialised empty index", "dimension", s.dimension, "metric", s.metric)
		return nil
	}
	if err != nil {
		return err
	}

	n, err := s.applyLocked(ctx, meta)
	if err != nil {
		return err
	}
	if s.State() == domain.IndexStateRebuilding {
		s.logger.Warn("index was left mid-rebuild; queries are refused until a rebuild completes")
		return nil
	}
	s.logger.Info("loaded index", "entries", n, "dimension", s.dimension, "generation", meta.Generation)
	return nil
}

// applyLocked makes meta and the persisted entries the live index and
// returns how many entries it loaded. Caller must hold writeMu.
func (s *Store) applyLocked(ctx context.Context, meta *domain.IndexMeta) (int, error) {
	s.meta = *meta

	s.mu.Lock()
	s.rebuiltAt = meta.RebuiltAt
	s.mu.Unlock()

	switch meta.State {
	case domain.IndexStateRebuilding:
		s.setState(domain.IndexStateRebuilding)
		return 0, nil
	case domain.IndexStateCorrupt:
		s.setState(domain.IndexStateCorrupt)
		return 0, fmt.Errorf("%w: index was marked corrupt", domain.ErrCorruptIndex)
	}

	if meta.Dimension != s.dimension {
		s.setState(domain.IndexStateMismatched)
		return 0, fmt.Errorf("%w: index has %d dimensions, embedder produces %d",
			domain.ErrDimensionMismatch, meta.Dimension, s.dimension)
	}

	entries, err := s.repo.LoadAll(ctx)
	if err == nil {
		err = s.verify(entries)
	}
	if err != nil {
		if errors.Is(err, domain.ErrCorruptIndex) {
			s.markCorrupt(ctx, err)
		}
		return 0, err
	}

	data := newSnapshot()
	var maxSeq int64
	for _, e := range entries {
		data.put(e)
		if e.Seq > maxSeq {
			maxSeq = e.Seq
		}
	}
	s.nextSeq = maxSeq + 1

	s.mu.Lock()
	s.data = data
	s.state = domain.IndexStateReady
	s.mu.Unlock()

	return len(entries), nil
}

// syncLocked reloads the index when another instance committed a write since
// this one last loaded or wrote. A reloaded index that needs a rebuild is not
// an error here: the state records it and writers check the state.
// Caller must hold writeMu.
func (s *Store) syncLocked(ctx context.Context) error {
	meta, err := s.repo.Meta(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if meta.Generation == s.meta.Generation {
		return nil
	}

	n, err := s.applyLocked(ctx, meta)
	if err != nil && !domain.RequiresRebuild(err) {
		return err
	}
	s.logger.Debug("reloaded index changed by another instance",
		"entries", n,
		"generation", meta.Generation,
		"state", s.State(),
	)
	return nil
}

// commitLocked publishes this instance's writes by bumping the persisted
// generation. Caller must hold writeMu.
func (s *Store) commitLocked(ctx context.Context) error {
	meta := s.meta
	meta.Generation++
	meta.UpdatedAt = time.Now()
	if err := s.repo.SaveMeta(context.WithoutCancel(ctx), &meta); err != nil {
		return err
	}
	s.meta = meta
	return nil
}

// Refresh reloads the index if another instance committed a write since this
// one last looked, and reports whether it did. It waits for a local writer to
// finish first.
func (s *Store) Refresh(ctx context.Context) (bool, error) {
	select {
	case s.writeMu <- struct{}{}:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	defer func() { <-s.writeMu }()

	before := s.meta.Generation
	if err := s.syncLocked(ctx); err != nil {
		return false, err
	}
	return s.meta.Generation != before, nil
}

// Watch calls Refresh every interval until ctx is done, so searches on this
// instance see other instances' writes within about one interval.
func (s *Store) Watch(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("index refresh failed", "error", err)
			}
		}
	}
}

// verify checks persisted entries for structural damage.
func (s *Store) verify(entries []*domain.IndexEntry) error {
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if len(e.Vector) != s.dimension {
			return fmt.Errorf("%w: entry %s has %d dimensions, index has %d",
				domain.ErrCorruptIndex, e.ID, len(e.Vector), s.dimension)
		}
		if e.ContentHash != domain.ContentHash(e.Content) {
			return fmt.Errorf("%w: entry %s content does not match its hash", domain.ErrCorruptIndex, e.ID)
		}
		if _, dup := seen[e.ID]; dup {
			return fmt.Errorf("%w: entry %s stored twice", domain.ErrCorruptIndex, e.ID)
		}
		seen[e.ID] = struct{}{}
	}
	return nil
}

// Upsert inserts or replaces entries by ID.
//
// The whole batch is checked for dimension before anything is written. Each
// entry is then written atomically, in order; a cancelled context stops the
// batch and returns the partial result. Under the deduplicate_exact policy an
// entry whose content hash is already indexed under another ID is rejected.
func (s *Store) Upsert(ctx context.Context, entries []*domain.IndexEntry) (*domain.UpsertResult, error) {
	result := &domain.UpsertResult{}
	if len(entries) == 0 {
		return result, nil
	}

	release, err := s.beginWrite(ctx, "upsert")
	if err != nil {
		return result, err
	}
	defer release()

	err = s.upsertLocked(ctx, entries, result)
	if result.Inserted+result.Replaced > 0 {
		if cerr := s.commitLocked(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}
	return result, err
}

// upsertLocked writes entries one at a time and tallies them into result.
// Caller must hold writeMu.
func (s *Store) upsertLocked(ctx context.Context, entries []*domain.IndexEntry, result *domain.UpsertResult) error {
	if err := s.checkState(); err != nil {
		return err
	}

	for _, e := range entries {
		if err := e.Validate(s.dimension); err != nil {
			return err
		}
	}

	for _, in := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		e := cloneEntry(in)
		if e.ContentHash == "" {
			e.ContentHash = domain.ContentHash(e.Content)
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now()
		}

		s.mu.RLock()
		existing := s.data.entries[e.ID]
		duplicate := s.policy == domain.DedupPolicyExact && s.hashTakenLocked(e.ContentHash, e.ID)
		s.mu.RUnlock()

		if duplicate {
			result.Rejected = append(result.Rejected, e.ID)
			continue
		}

		if existing != nil {
			e.Seq = existing.Seq
		} else {
			e.Seq = s.nextSeq
			s.nextSeq++
		}

		if err := s.repo.Put(ctx, e); err != nil {
			return err
		}

		s.mu.Lock()
		s.data.put(e)
		s.mu.Unlock()

		if existing != nil {
			result.Replaced++
		} else {
			result.Inserted++
		}
	}
	return nil
}

// hashTakenLocked reports whether hash is indexed under an ID other than id.
// Caller must hold mu.
func (s *Store) hashTakenLocked(hash, id string) bool {
	for other := range s.data.byHash[hash] {
		if other != id {
			return true
		}
	}
	return false
}

// Search returns up to opts.K entries ranked by descending similarity.
// Ties go to the most recently inserted entry. Fewer than K results is not an error.
func (s *Store) Search(ctx context.Context, query []float32, opts domain.SearchOptions) ([]*domain.ScoredEntry, error) {
	if opts.K < 1 {
		return nil, fmt.Errorf("%w: k must be at least 1, got %d", domain.ErrInvalidInput, opts.K)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	if err := s.checkStateLocked(); err != nil {
		s.mu.RUnlock()
		return nil, err
	}
	if len(query) != s.dimension {
		s.mu.RUnlock()
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrDimensionMismatch, len(query), s.dimension)
	}

	hits := make([]*domain.ScoredEntry, 0, min(len(s.data.entries), opts.K*4))
	for _, e := range s.data.entries {
		if !opts.Filter.Matches(e) {
			continue
		}
		score := s.similarity(query, e.Vector)
		if opts.MinScore != 0 && score < opts.MinScore {
			continue
		}
		hits = append(hits, &domain.ScoredEntry{
			Entry:     e,
			Score:     score,
			Duplicate: s.data.isDuplicate(e),
		})
	}
	s.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Entry.Seq > hits[j].Entry.Seq
	})

	if opts.CollapseDuplicates {
		hits = collapse(hits)
	}
	if len(hits) > opts.K {
		hits = hits[:opts.K]
	}
	return hits, nil
}

// collapse keeps the highest-ranked hit per content hash.
func collapse(hits []*domain.ScoredEntry) []*domain.ScoredEntry {
	seen := make(map[string]struct{}, len(hits))
	out := hits[:0]
	for _, h := range hits {
		if _, ok := seen[h.Entry.ContentHash]; ok {
			continue
		}
		seen[h.Entry.ContentHash] = struct{}{}
		out = append(out, h)
	}
	return out
}

// DeduplicateExact removes every entry whose content hash matches an
// earlier-inserted entry and returns how many were removed.
// Each group is removed atomically, both on disk and in memory.
func (s *Store) DeduplicateExact(ctx context.Context) (int, error) {
	release, err := s.beginWrite(ctx, "deduplicate")
	if err != nil {
		return 0, err
	}
	defer release()

	if err := s.checkState(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	groups := s.data.duplicateGroups()
	s.mu.RUnlock()

	removed := 0
	for _, victims := range groups {
		if err = ctx.Err(); err != nil {
			break
		}
		if err = s.deleteLocked(ctx, victims); err != nil {
			break
		}
		removed += len(victims)
	}

	if removed > 0 {
		if cerr := s.commitLocked(ctx); cerr != nil && err == nil {
			err = cerr
		}
		s.logger.Info("removed exact duplicates", "removed", removed, "groups", len(groups))
	}
	return removed, err
}

// DuplicateCandidates returns the IDs DeduplicateExact would remove.
func (s *Store) DuplicateCandidates() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for _, victims := range s.data.duplicateGroups() {
		ids = append(ids, victims...)
	}
	return ids
}

// Prune removes entries created before opts.OlderThan, except pinned ones,
// and returns their IDs. A dry run only reports them.
func (s *Store) Prune(ctx context.Context, opts domain.PruneOptions) ([]string, error) {
	release, err := s.beginWrite(ctx, "prune")
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.checkState(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	var victims []string
	for _, e := range s.data.ordered() {
		if e.CreatedAt.Before(opts.OlderThan) && !e.Pinned() {
			victims = append(victims, e.ID)
		}
	}
	s.mu.RUnlock()

	if opts.DryRun || len(victims) == 0 {
		return victims, nil
	}

	deleted := 0
	for deleted < len(victims) {
		end := min(deleted+pruneBatchSize, len(victims))
		if err = s.deleteLocked(ctx, victims[deleted:end]); err != nil {
			break
		}
		deleted = end
	}
	if deleted > 0 {
		if cerr := s.commitLocked(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil {
		return victims[:deleted], err
	}

	s.logger.Info("pruned old entries", "removed", len(victims), "older_than", opts.OlderThan)
	return victims, nil
}

// DeleteDocument removes every entry of a document atomically.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	release, err := s.beginWrite(ctx, "delete")
	if err != nil {
		return 0, err
	}
	defer release()

	s.mu.RLock()
	entries := s.data.documentEntries(documentID)
	s.mu.RUnlock()

	if len(entries) == 0 {
		return 0, nil
	}
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	if err := s.deleteLocked(ctx, ids); err != nil {
		return 0, err
	}
	return len(ids), s.commitLocked(ctx)
}

// deleteLocked removes ids in one transaction, then from memory under one lock.
// Caller must hold writeMu.
func (s *Store) deleteLocked(ctx context.Context, ids []string) error {
	if err := s.repo.DeleteBatch(ctx, ids); err != nil {
		return err
	}
	s.mu.Lock()
	for _, id := range ids {
		s.data.remove(id)
	}
	s.mu.Unlock()
	return nil
}

// Rebuild replaces the whole index with the entries produced by produce.
//
// The rebuilding state is persisted first and queries are refused until the
// rebuild finishes. New entries are staged aside and swapped in with a single
// transactional ReplaceAll. On any failure, including cancellation, the
// pre-rebuild state is restored; a corrupt index stays corrupt.
func (s *Store) Rebuild(ctx context.Context, dimension int, produce Producer) (int, error) {
	if dimension <= 0 {
		return 0, fmt.Errorf("%w: dimension must be positive", domain.ErrInvalidConfiguration)
	}

	release, err := s.beginWrite(ctx, "rebuild")
	if err != nil {
		return 0, err
	}
	defer release()

	before := s.meta
	s.mu.Lock()
	prevState := s.state
	s.state = domain.IndexStateRebuilding
	s.mu.Unlock()

	marker := before
	marker.State = domain.IndexStateRebuilding
	marker.UpdatedAt = time.Now()
	marker.Generation++
	if err := s.repo.SaveMeta(ctx, &marker); err != nil {
		s.setState(prevState)
		return 0, err
	}
	s.meta = marker

	start := time.Now()
	s.logger.Info("rebuilding index", "dimension", dimension, "previous_state", prevState)

	staging := newSnapshot()
	var seq int64 = 1
	skipped := 0
	emit := func(batch []*domain.IndexEntry) error {
		for _, in := range batch {
			if err := in.Validate(dimension); err != nil {
				return err
			}
			e := cloneEntry(in)
			if e.ContentHash == "" {
				e.ContentHash = domain.ContentHash(e.Content)
			}
			if e.CreatedAt.IsZero() {
				e.CreatedAt = time.Now()
			}
			if s.policy == domain.DedupPolicyExact && len(staging.byHash[e.ContentHash]) > 0 {
				skipped++
				continue
			}
			if old, ok := staging.entries[e.ID]; ok {
				e.Seq = old.Seq
			} else {
				e.Seq = seq
				seq++
			}
			staging.put(e)
		}
		return nil
	}

	if err := produce(ctx, emit); err != nil {
		s.abortRebuild(ctx, before, prevState, err)
		return 0, err
	}

	entries := staging.ordered()
	if err := s.repo.ReplaceAll(ctx, entries); err != nil {
		s.abortRebuild(ctx, before, prevState, err)
		return 0, err
	}

	now := time.Now()
	s.meta = domain.IndexMeta{
		Dimension:  dimension,
		Metric:     s.metric,
		State:      domain.IndexStateReady,
		RebuiltAt:  &now,
		UpdatedAt:  now,
		Generation: marker.Generation + 1,
	}
	s.nextSeq = seq

	s.mu.Lock()
	s.data = staging
	s.dimension = dimension
	s.state = domain.IndexStateReady
	s.rebuiltAt = &now
	s.mu.Unlock()

	// The swapped data is already durable; a failed header write only means
	// the next Load re-runs the rebuild.
	if err := s.repo.SaveMeta(ctx, &s.meta); err != nil {
		s.logger.Warn("failed to clear rebuild marker", "error", err)
	}

	s.logger.Info("rebuilt index",
		"entries", len(entries),
		"skipped_duplicates", skipped,
		"duration", time.Since(start),
	)
	return len(entries), nil
}

func (s *Store) abortRebuild(ctx context.Context, before domain.IndexMeta, prevState domain.IndexState, cause error) {
	s.setState(prevState)
	before.UpdatedAt = time.Now()
	before.Generation = s.meta.Generation + 1
	if err := s.repo.SaveMeta(context.WithoutCancel(ctx), &before); err != nil {
		s.logger.Error("failed to restore index header after aborted rebuild", "error", err)
	}
	s.meta = before
	s.logger.Warn("rebuild aborted; previous index kept", "state", prevState, "error", cause)
}

func (s *Store) markCorrupt(ctx context.Context, cause error) {
	s.setState(domain.IndexStateCorrupt)
	s.meta.State = domain.IndexStateCorrupt
	s.meta.UpdatedAt = time.Now()
	s.meta.Generation++
	if err := s.repo.SaveMeta(context.WithoutCancel(ctx), &s.meta); err != nil {
		s.logger.Error("failed to persist corrupt marker", "error", err)
	}
	s.logger.Error("index is corrupt; rebuild required", "error", cause)
}

// beginWrite takes the writer slot and catches up with writes other
// instances committed since this one last looked.
func (s *Store) beginWrite(ctx context.Context, op string) (func(), error) {
	release, err := s.acquireWriter(ctx, op)
	if err != nil {
		return nil, err
	}
	if err := s.syncLocked(ctx); err != nil {
		release()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return release, nil
}

// acquireWriter takes the in-process writer slot, then the distributed lock if configured.
func (s *Store) acquireWriter(ctx context.Context, op string) (func(), error) {
	select {
	case s.writeMu <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	local := func() { <-s.writeMu }

	if s.lock == nil {
		return local, nil
	}

	deadline := time.Now().Add(s.lockWait)
	for {
		acquired, err := s.lock.Acquire(ctx, writerLockName, s.lockTTL)
		if err != nil {
			local()
			return nil, fmt.Errorf("%w: %s: writer lock: %v", domain.ErrStoreUnavailable, op, err)
		}
		if acquired {
			break
		}
		if time.Now().After(deadline) {
			local()
			return nil, fmt.Errorf("%w: %s: index writer lock is held by another instance", domain.ErrLockNotAcquired, op)
		}
		select {
		case <-ctx.Done():
			local()
			return nil, ctx.Err()
		case <-time.After(lockPoll):
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go s.keepAlive(stop, done)

	return func() {
		close(stop)
		<-done
		if err := s.lock.Release(context.Background(), writerLockName); err != nil {
			s.logger.Warn("failed to release writer lock", "op", op, "error", err)
		}
		local()
	}, nil
}

// keepAlive extends the writer lock until stop is closed.
func (s *Store) keepAlive(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.lockTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := s.lock.Extend(context.Background(), writerLockName, s.lockTTL); err != nil {
				s.logger.Warn("failed to extend writer lock", "error", err)
			}
		}
	}
}

func (s *Store) checkState() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkStateLocked()
}

func (s *Store) checkStateLocked() error {
	switch s.state {
	case domain.IndexStateRebuilding:
		return domain.ErrIndexRebuilding
	case domain.IndexStateCorrupt:
		return fmt.Errorf("%w: rebuild required", domain.ErrCorruptIndex)
	case domain.IndexStateMismatched:
		return fmt.Errorf("%w: rebuild required", domain.ErrDimensionMismatch)
	}
	return nil
}

func (s *Store) setState(state domain.IndexState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// State returns the current index state.
func (s *Store) State() domain.IndexState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Dimension returns the index dimension.
func (s *Store) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

// Policy returns the deduplication policy.
func (s *Store) Policy() domain.DedupPolicy {
	return s.policy
}

// HasContentHash reports whether any entry carries hash.
func (s *Store) HasContentHash(hash string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data.byHash[hash]) > 0
}

// DocumentEntries returns a document's entries ordered by position.
func (s *Store) DocumentEntries(documentID string) []*domain.IndexEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.documentEntries(documentID)
}

// Get returns an entry by ID.
func (s *Store) Get(id string) (*domain.IndexEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data.entries[id]
	return e, ok
}

// Stats describes the index.
func (s *Store) Stats() domain.IndexStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.IndexStats{
		Entries:    len(s.data.entries),
		Documents:  len(s.data.byDoc),
		Duplicates: s.data.duplicateCount(),
		Dimension:  s.dimension,
		Metric:     s.metric,
		Policy:     s.policy,
		State:      s.state,
		RebuiltAt:  s.rebuiltAt,
	}
}

// Ping checks the backing store.
func (s *Store) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func cloneEntry(e *domain.IndexEntry) *domain.IndexEntry {
	c := *e
	c.Vector = append([]float32(nil), e.Vector...)
	if e.Metadata != nil {
		c.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
