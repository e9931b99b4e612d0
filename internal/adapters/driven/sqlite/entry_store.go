package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.EntryStore = (*EntryStore)(nil)

// EntryStore implements driven.EntryStore using SQLite
type EntryStore struct {
	db *DB
}

// NewEntryStore creates a new EntryStore
func NewEntryStore(db *DB) *EntryStore {
	return &EntryStore{db: db}
}

const upsertEntrySQL = `
	INSERT INTO index_entries (id, document_id, position, content, content_hash, vector, metadata, seq, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		document_id = excluded.document_id,
		position = excluded.position,
		content = excluded.content,
		content_hash = excluded.content_hash,
		vector = excluded.vector,
		metadata = excluded.metadata,
		seq = excluded.seq,
		created_at = excluded.created_at
`

// LoadAll returns every entry ordered by seq.
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
		var vector []byte
		var metadataJSON string

		if err := rows.Scan(&e.ID, &e.DocumentID, &e.Position, &e.Content, &e.ContentHash,
			&vector, &metadataJSON, &e.Seq, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning entry: %v", domain.ErrCorruptIndex, err)
		}

		if e.Vector, err = domain.DecodeVector(vector); err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(metadataJSON), &e.Metadata); err != nil {
			return nil, fmt.Errorf("%w: entry %s metadata: %v", domain.ErrCorruptIndex, e.ID, err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("load entries", err)
	}
	return entries, nil
}

// Put inserts or replaces one entry in a single statement.
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

// DeleteBatch removes the given entries in one transaction.
func (s *EntryStore) DeleteBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		query := `DELETE FROM index_entries WHERE id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`
		args := make([]any, len(ids))
		for i, id := range ids {
			args[i] = id
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return unavailable("delete entries", err)
		}
		return nil
	})
}

// ReplaceAll swaps the whole entry set in one transaction.
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

// Meta returns the index header.
func (s *EntryStore) Meta(ctx context.Context) (*domain.IndexMeta, error) {
	var meta domain.IndexMeta
	var rebuiltAt sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT dimension, metric, state, rebuilt_at, updated_at, generation FROM index_meta WHERE id = 1
	`).Scan(&meta.Dimension, &meta.Metric, &meta.State, &rebuiltAt, &meta.UpdatedAt, &meta.Generation)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("read index meta", err)
	}
	if rebuiltAt.Valid {
		meta.RebuiltAt = &rebuiltAt.Time
	}
	return &meta, nil
}

// SaveMeta persists the index header.
func (s *EntryStore) SaveMeta(ctx context.Context, meta *domain.IndexMeta) error {
	var rebuiltAt sql.NullTime
	if meta.RebuiltAt != nil {
		rebuiltAt = sql.NullTime{Time: *meta.RebuiltAt, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO index_meta (id, dimension, metric, state, rebuilt_at, updated_at, generation)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			dimension = excluded.dimension,
			metric = excluded.metric,
			state = excluded.state,
			rebuilt_at = excluded.rebuilt_at,
			updated_at = excluded.updated_at,
			generation = excluded.generation
	`, meta.Dimension, string(meta.Metric), string(meta.State), rebuiltAt, meta.UpdatedAt, meta.Generation)
	if err != nil {
		return unavailable("save index meta", err)
	}
	return nil
}

// Ping checks the database is reachable.
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
		return nil, fmt.Errorf("marshalling metadata: %w", err)
	}
	return []any{
		e.ID,
		e.DocumentID,
		e.Position,
		e.Content,
		e.ContentHash,
		domain.EncodeVector(e.Vector),
		string(metadataJSON),
		e.Seq,
		e.CreatedAt,
	}, nil
}
