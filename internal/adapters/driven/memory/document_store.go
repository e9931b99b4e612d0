package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore implements driven.DocumentStore in memory.
type DocumentStore struct {
	mu       sync.RWMutex
	docs     map[string]*domain.Document
	contents map[string]*domain.DocumentContent
	order    []string // ingestion order
}

// NewDocumentStore creates an empty document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		docs:     make(map[string]*domain.Document),
		contents: make(map[string]*domain.DocumentContent),
	}
}

// Save creates or updates a document and its content.
func (s *DocumentStore) Save(ctx context.Context, doc *domain.Document, content *domain.DocumentContent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[doc.ID]; !ok {
		s.order = append(s.order, doc.ID)
	}
	d := copyDocument(doc)
	d.UpdatedAt = time.Now()
	s.docs[doc.ID] = d

	if content != nil {
		c := *content
		c.DocumentID = doc.ID
		s.contents[doc.ID] = &c
	}
	return nil
}

// UpdateStatus records an ingestion outcome.
func (s *DocumentStore) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, chunkCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	d.Status = status
	d.ChunkCount = chunkCount
	d.UpdatedAt = time.Now()
	return nil
}

// Get retrieves a document by ID.
func (s *DocumentStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyDocument(d), nil
}

// GetByContentHash retrieves the earliest document with the given hash.
func (s *DocumentStore) GetByContentHash(ctx context.Context, hash string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		if d := s.docs[id]; d.ContentHash == hash {
			return copyDocument(d), nil
		}
	}
	return nil, domain.ErrNotFound
}

// GetContent retrieves a document's extracted content.
func (s *DocumentStore) GetContent(ctx context.Context, id string) (*domain.DocumentContent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *c
	return &out, nil
}

// List retrieves documents newest first.
func (s *DocumentStore) List(ctx context.Context, limit, offset int) ([]*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*domain.Document, 0, len(s.docs))
	for i := len(s.order) - 1; i >= 0; i-- {
		all = append(all, copyDocument(s.docs[s.order[i]]))
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if offset >= len(all) {
		return []*domain.Document{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// ListIDs returns every document ID in ingestion order.
func (s *DocumentStore) ListIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...), nil
}

// Delete removes a document and its content.
func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.docs, id)
	delete(s.contents, id)
	for i, other := range s.order {
		if other == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Count returns the number of documents.
func (s *DocumentStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

// CountByStatus groups document counts by status.
func (s *DocumentStore) CountByStatus(ctx context.Context) (map[domain.DocumentStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[domain.DocumentStatus]int)
	for _, d := range s.docs {
		counts[d.Status]++
	}
	return counts, nil
}

// Ping always succeeds.
func (s *DocumentStore) Ping(ctx context.Context) error {
	return nil
}

func copyDocument(d *domain.Document) *domain.Document {
	c := *d
	if d.Metadata != nil {
		c.Metadata = make(map[string]string, len(d.Metadata))
		for k, v := range d.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
