package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore implements driven.DocumentStore using PostgreSQL
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a new DocumentStore
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

const documentColumns = `id, source, title, format, content_hash, metadata, status, chunk_count, created_at, updated_at`

// Save creates or updates a document and its content in one transaction
func (s *DocumentStore) Save(ctx context.Context, doc *domain.Document, content *domain.DocumentContent) error {
	metadata := doc.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	doc.UpdatedAt = time.Now()

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO documents (` + documentColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO UPDATE SET
				source = EXCLUDED.source,
				title = EXCLUDED.title,
				format = EXCLUDED.format,
				content_hash = EXCLUDED.content_hash,
				metadata = EXCLUDED.metadata,
				status = EXCLUDED.status,
				chunk_count = EXCLUDED.chunk_count,
				updated_at = EXCLUDED.updated_at
		`
		_, err := tx.ExecContext(ctx, query,
			doc.ID,
			doc.Source,
			doc.Title,
			string(doc.Format),
			doc.ContentHash,
			metadataJSON,
			string(doc.Status),
			doc.ChunkCount,
			doc.CreatedAt,
			doc.UpdatedAt,
		)
		if err != nil {
			return unavailable("save document", err)
		}

		if content == nil {
			return nil
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO document_contents (document_id, body, structured)
			VALUES ($1, $2, $3)
			ON CONFLICT (document_id) DO UPDATE SET
				body = EXCLUDED.body,
				structured = EXCLUDED.structured
		`, doc.ID, content.Body, content.Structured)
		if err != nil {
			return unavailable("save content", err)
		}
		return nil
	})
}

// UpdateStatus records the ingestion outcome of a document
func (s *DocumentStore) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, chunkCount int) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = $1, chunk_count = $2, updated_at = $3 WHERE id = $4`,
		string(status), chunkCount, time.Now(), id)
	if err != nil {
		return unavailable("update status", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Get retrieves a document by ID
func (s *DocumentStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	return s.scanDocument(s.db.QueryRowContext(ctx, query, id))
}

// GetByContentHash retrieves the earliest document with the given hash
func (s *DocumentStore) GetByContentHash(ctx context.Context, hash string) (*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE content_hash = $1 ORDER BY seq LIMIT 1`
	return s.scanDocument(s.db.QueryRowContext(ctx, query, hash))
}

// GetContent retrieves the extracted content of a document
func (s *DocumentStore) GetContent(ctx context.Context, id string) (*domain.DocumentContent, error) {
	c := domain.DocumentContent{DocumentID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT body, structured FROM document_contents WHERE document_id = $1`, id).
		Scan(&c.Body, &c.Structured)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get content", err)
	}
	return &c, nil
}

// List retrieves documents with pagination, newest first
func (s *DocumentStore) List(ctx context.Context, limit, offset int) ([]*domain.Document, error) {
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}
	query := `SELECT ` + documentColumns + ` FROM documents ORDER BY created_at DESC, seq DESC LIMIT $1 OFFSET $2`

	rows, err := s.db.QueryContext(ctx, query, limitArg, offset)
	if err != nil {
		return nil, unavailable("list documents", err)
	}
	defer rows.Close()

	docs := []*domain.Document{}
	for rows.Next() {
		doc, err := scanDocumentRow(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list documents", err)
	}
	return docs, nil
}

// ListIDs returns every document ID in ingestion order
func (s *DocumentStore) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM documents ORDER BY seq`)
	if err != nil {
		return nil, unavailable("list ids", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, unavailable("list ids", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete deletes a document; its content goes with it by cascade
func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return unavailable("delete document", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Count returns total document count
func (s *DocumentStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count); err != nil {
		return 0, unavailable("count documents", err)
	}
	return count, nil
}

// CountByStatus returns document counts grouped by status
func (s *DocumentStore) CountByStatus(ctx context.Context) (map[domain.DocumentStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM documents GROUP BY status`)
	if err != nil {
		return nil, unavailable("count by status", err)
	}
	defer rows.Close()

	counts := make(map[domain.DocumentStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, unavailable("count by status", err)
		}
		counts[domain.DocumentStatus(status)] = n
	}
	return counts, rows.Err()
}

// Ping checks if the store is reachable
func (s *DocumentStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *DocumentStore) scanDocument(row *sql.Row) (*domain.Document, error) {
	doc, err := scanDocumentRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return doc, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocumentRow(row scanner) (*domain.Document, error) {
	var doc domain.Document
	var format, status string
	var metadataJSON []byte

	err := row.Scan(
		&doc.ID,
		&doc.Source,
		&doc.Title,
		&format,
		&doc.ContentHash,
		&metadataJSON,
		&status,
		&doc.ChunkCount,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, unavailable("scan document", err)
	}

	doc.Format = domain.Format(format)
	doc.Status = domain.DocumentStatus(status)
	if err := json.Unmarshal(metadataJSON, &doc.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return &doc, nil
}
