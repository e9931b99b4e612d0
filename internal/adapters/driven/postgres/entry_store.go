package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.EntryStore = (*EntryStore)(nil)

// EntryStore implements driven.EntryStore using PostgreSQL.
// Vectors are stored as little-endian float32 bytea.
type EntryStore struct {
	db *DB
}

// NewEntryStore creates a new EntryStore
func NewEntryStore(db *DB) *EntryStore {
	return &EntryStore{db: db}
}

const upsertEntrySQL = `
	INSERT INTO index_entries (id, document_id, position, content, content_hash, vector, metadata, seq, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO UPDATE SET
		document_id = EXCLUDED.document_id,
		position = EXCLUDED.position,
		content = EXCLUDED.content,
		content_hash = EXCLUDED.content_hash,
		vector = EXCLUDED.vector,
		metadata = EXCLUDED.metadata,
		seq = EXCLUDED.seq,
		created_at = EXCLUDED.created_at
`

// LoadAll returns every persisted entry ordered by seq
func (s *EntryStore) LoadAll(ctx context.Context) ([]*domain.IndexEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, position, content, content_hash, vector, metadata, seq, created_at
		FROM index_entries
		ORDER BY seq
	`)
	if err != nil {
		return nil, unavailable("load entries", err)
	}
	defer rows.Close()

	var entries []*domain.IndexEntry
	for rows.Next() {
		var e domain.IndexEntry
		var vector, metadataJSON []byte

		err := rows.Scan(
			&e.ID,
			&e.DocumentID,
			&e.Position,
			&e.Content,
			&e.ContentHash,
			&vector,
			&metadataJSON,
			&e.Seq,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: scan entry: %v", domain.ErrCorruptIndex, err)
		}

		if e.Vector, err = domain.DecodeVector(vector); err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.ID, err)
		}
		if err := json.Unmarshal(metadataJSON, &e.Metadata); err != nil {
			return nil, fmt.Errorf("%w: entry %s metadata: %v", domain.ErrCorruptIndex, e.ID, err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("load entries", err)
	}
	return entries, nil
}

// Put inserts or replaces one entry in a single statement
func (s *EntryStore) Put(ctx context.Context, e *domain.IndexEntry) error {
	args, err := entryArgs(e)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, upsertEntrySQL, args...); err != nil {
		return unavailable("put entry", err)
	}
	return nil
}

// DeleteBatch removes the given entries in one statement
func (s *EntryStore) DeleteBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM index_entries WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return unavailable("delete entries", err)
	}
	return nil
}

// ReplaceAll swaps the whole entry set in one transaction
func (s *EntryStore) ReplaceAll(ctx context.Context, entries []*domain.IndexEntry) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM index_entries`); err != nil {
			return unavailable("clear entries", err)
		}

		stmt, err := tx.PrepareContext(ctx, upsertEntrySQL)
		if err != nil {
			return unavailable("prepare insert", err)
		}
		defer stmt.Close()

		for _, e := range entries {
			args, err := entryArgs(e)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return unavailable("insert entry", err)
			}
		}
		return nil
	})
}

// Meta returns the persisted index header
func (s *EntryStore) Meta(ctx context.Context) (*domain.IndexMeta, error) {
	var meta domain.IndexMeta
	var metric, state string
	var rebuiltAt sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT dimension, metric, state, rebuilt_at, updated_at, generation FROM index_meta WHERE id = 1
	`).Scan(&meta.Dimension, &metric, &state, &rebuiltAt, &meta.UpdatedAt, &meta.Generation)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("read index meta", err)
	}
	meta.Metric = domain.Metric(metric)
	meta.State = domain.IndexState(state)
	meta.RebuiltAt = timePtr(rebuiltAt)
	return &meta, nil
}

// SaveMeta persists the index header
func (s *EntryStore) SaveMeta(ctx context.Context, meta *domain.IndexMeta) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO index_meta (id, dimension, metric, state, rebuilt_at, updated_at, generation)
		VALUES (1, $1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			dimension = EXCLUDED.dimension,
			metric = EXCLUDED.metric,
			state = EXCLUDED.state,
			rebuilt_at = EXCLUDED.rebuilt_at,
			updated_at = EXCLUDED.updated_at,
			generation = EXCLUDED.generation
	`, meta.Dimension, string(meta.Metric), string(meta.State), nullTime(meta.RebuiltAt), meta.UpdatedAt, meta.Generation)
	if err != nil {
		return unavailable("save index meta", err)
	}
	return nil
}

// Ping checks if the store is reachable
func (s *EntryStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func entryArgs(e *domain.IndexEntry) ([]any, error) {
	metadata := e.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return []any{
		e.ID,
		e.DocumentID,
		e.Position,
		e.Content,
		e.ContentHash,
		domain.EncodeVector(e.Vector),
		metadataJSON,
		e.Seq,
		e.CreatedAt,
	}, nil
}
