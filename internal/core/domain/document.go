package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxDocumentBytes is the ingestion size limit when none is configured (100MB).
const DefaultMaxDocumentBytes int64 = 100 * 1024 * 1024

// Format is the declared format of an ingested payload
type Format string

const (
	FormatPDF        Format = "pdf"
	FormatText       Format = "txt"
	FormatMarkdown   Format = "md"
	FormatDOCX       Format = "docx"
	FormatXLSX       Format = "xlsx"
	FormatHTML       Format = "html"
	FormatURL        Format = "url"
	FormatTranscript Format = "transcript"
)

// IsValid returns true if this is a known format
func (f Format) IsValid() bool {
	switch f {
	case FormatPDF, FormatText, FormatMarkdown, FormatDOCX, FormatXLSX,
		FormatHTML, FormatURL, FormatTranscript:
		return true
	default:
		return false
	}
}

// FormatFromPath guesses the format from a file extension or URL scheme.
// Returns an empty Format when nothing matches.
func FormatFromPath(path string) Format {
	lower := strings.ToLower(path)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return FormatURL
	}
	switch {
	case strings.HasSuffix(lower, ".pdf"):
		return FormatPDF
	case strings.HasSuffix(lower, ".txt"), strings.HasSuffix(lower, ".text"):
		return FormatText
	case strings.HasSuffix(lower, ".md"), strings.HasSuffix(lower, ".markdown"):
		return FormatMarkdown
	case strings.HasSuffix(lower, ".docx"):
		return FormatDOCX
	case strings.HasSuffix(lower, ".xlsx"):
		return FormatXLSX
	case strings.HasSuffix(lower, ".html"), strings.HasSuffix(lower, ".htm"):
		return FormatHTML
	case strings.HasSuffix(lower, ".srt"), strings.HasSuffix(lower, ".vtt"):
		return FormatTranscript
	default:
		return ""
	}
}

// DocumentStatus tracks how much of a document made it into the index
type DocumentStatus string

const (
	DocumentStatusPending DocumentStatus = "pending"
	DocumentStatusIndexed DocumentStatus = "indexed"
	DocumentStatusPartial DocumentStatus = "partial"
	DocumentStatusFailed  DocumentStatus = "failed"
)

// Document represents an ingested document
type Document struct {
	ID          string            `json:"id"`
	Source      string            `json:"source"` // Origin path or URL
	Title       string            `json:"title"`
	Format      Format            `json:"format"`
	ContentHash string            `json:"content_hash"`
	Metadata    map[string]string `json:"metadata"`
	Status      DocumentStatus    `json:"status"`
	ChunkCount  int               `json:"chunk_count"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// NewDocument creates a pending document for extracted content
func NewDocument(input *DocumentInput, contentHash string) *Document {
	now := time.Now()
	return &Document{
		ID:          uuid.NewString(),
		Source:      input.Source,
		Title:       input.Title,
		Format:      input.Format,
		ContentHash: contentHash,
		Metadata:    input.Metadata,
		Status:      DocumentStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Chunk represents a searchable chunk of a document
type Chunk struct {
	ID          string    `json:"id"`
	DocumentID  string    `json:"document_id"`
	Content     string    `json:"content"`
	ContentHash string    `json:"content_hash"`
	Embedding   []float32 `json:"embedding,omitempty"`
	Position    int       `json:"position"` // Chunk position within document
	StartChar   int       `json:"start_char"`
	EndChar     int       `json:"end_char"`
	CreatedAt   time.Time `json:"created_at"`
}

// ChunkID returns the stable identifier of the chunk at position within a document
func ChunkID(documentID string, position int) string {
	return fmt.Sprintf("%s-chunk-%d", documentID, position)
}

// DocumentContent holds the full extracted content of a document.
// It is the authoritative source the index is rebuilt from.
type DocumentContent struct {
	DocumentID string `json:"document_id"`
	Body       string `json:"body"`
	Structured bool   `json:"structured"`
}

// DocumentInput is a raw payload submitted for ingestion
type DocumentInput struct {
	Source   string            `json:"source"`
	Title    string            `json:"title,omitempty"`
	Format   Format            `json:"format"`
	Content  []byte            `json:"-"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ExtractedText is the normalised text produced from a raw payload
type ExtractedText struct {
	Text  string
	Title string
	// Structured marks tabular or code-like content that must only be split at line boundaries
	Structured bool
}

// ContentHash returns the hex sha256 of text.
// Used for both document idempotency and chunk duplicate detection.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
