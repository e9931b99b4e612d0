// Package memory provides in-process implementations of the driven ports.
// They hold no state across restarts and back the zero-dependency deployment and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.EntryStore = (*EntryStore)(nil)

// EntryStore implements driven.EntryStore in memory.
type EntryStore struct {
	mu      sync.RWMutex
	entries map[string]*domain.IndexEntry
	meta    *domain.IndexMeta
}

// NewEntryStore creates an empty entry store.
func NewEntryStore() *EntryStore {
	return &EntryStore{
		entries: make(map[string]*domain.IndexEntry),
	}
}

// LoadAll returns every entry ordered by Seq.
func (s *EntryStore) LoadAll(ctx context.Context) ([]*domain.IndexEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.IndexEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, copyEntry(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// Put inserts or replaces one entry.
func (s *EntryStore) Put(ctx context.Context, entry *domain.IndexEntry) error {
	if entry == nil || entry.ID == "" {
		return fmt.Errorf("%w: entry id is required", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.ID] = copyEntry(entry)
	return nil
}

// DeleteBatch removes entries under one lock.
func (s *EntryStore) DeleteBatch(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.entries, id)
	}
	return nil
}

// ReplaceAll swaps the entry set under one lock.
func (s *EntryStore) ReplaceAll(ctx context.Context, entries []*domain.IndexEntry) error {
	next := make(map[string]*domain.IndexEntry, len(entries))
	for _, e := range entries {
		next[e.ID] = copyEntry(e)
	}
	s.mu.Lock()
	s.entries = next
	s.mu.Unlock()
	return nil
}

// Meta returns the index header.
func (s *EntryStore) Meta(ctx context.Context) (*domain.IndexMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.meta == nil {
		return nil, domain.ErrNotFound
	}
	m := *s.meta
	return &m, nil
}

// SaveMeta stores the index header.
func (s *EntryStore) SaveMeta(ctx context.Context, meta *domain.IndexMeta) error {
	m := *meta
	s.mu.Lock()
	s.meta = &m
	s.mu.Unlock()
	return nil
}

// Ping always succeeds.
func (s *EntryStore) Ping(ctx context.Context) error {
	return nil
}

// Len returns the number of stored entries.
func (s *EntryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func copyEntry(e *domain.IndexEntry) *domain.IndexEntry {
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
