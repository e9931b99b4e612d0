package encryption

import (
	"context"
	"fmt"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.EntryStore = (*EntryStore)(nil)

// EntryStore seals entry content before it reaches the wrapped store.
// Vectors, hashes and metadata are stored as-is so search and dedup still work.
type EntryStore struct {
	next driven.EntryStore
	enc  *Encryptor
}

// NewEntryStore wraps next with content encryption.
func NewEntryStore(next driven.EntryStore, enc *Encryptor) *EntryStore {
	return &EntryStore{next: next, enc: enc}
}

// LoadAll decrypts every entry. A bad ciphertext marks the index corrupt.
func (s *EntryStore) LoadAll(ctx context.Context) ([]*domain.IndexEntry, error) {
	entries, err := s.next.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		plain, err := s.enc.Open(e.Content)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %s: %v", domain.ErrCorruptIndex, e.ID, err)
		}
		e.Content = plain
	}
	return entries, nil
}

// Put seals and stores one entry.
func (s *EntryStore) Put(ctx context.Context, entry *domain.IndexEntry) error {
	sealed, err := s.seal(entry)
	if err != nil {
		return err
	}
	return s.next.Put(ctx, sealed)
}

// DeleteBatch passes through.
func (s *EntryStore) DeleteBatch(ctx context.Context, ids []string) error {
	return s.next.DeleteBatch(ctx, ids)
}

// ReplaceAll seals and swaps the whole entry set.
func (s *EntryStore) ReplaceAll(ctx context.Context, entries []*domain.IndexEntry) error {
	sealed := make([]*domain.IndexEntry, len(entries))
	for i, e := range entries {
		var err error
		if sealed[i], err = s.seal(e); err != nil {
			return err
		}
	}
	return s.next.ReplaceAll(ctx, sealed)
}

// Meta passes through.
func (s *EntryStore) Meta(ctx context.Context) (*domain.IndexMeta, error) {
	return s.next.Meta(ctx)
}

// SaveMeta passes through.
func (s *EntryStore) SaveMeta(ctx context.Context, meta *domain.IndexMeta) error {
	return s.next.SaveMeta(ctx, meta)
}

// Ping passes through.
func (s *EntryStore) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

func (s *EntryStore) seal(e *domain.IndexEntry) (*domain.IndexEntry, error) {
	content, err := s.enc.Seal(e.Content)
	if err != nil {
		return nil, err
	}
	c := *e
	c.Content = content
	return &c, nil
}
