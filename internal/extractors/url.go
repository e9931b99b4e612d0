package extractors

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Extractor = (*URLExtractor)(nil)

// HTTPDoer executes HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// dispatcher is the subset of Registry used to hand fetched bodies on.
type dispatcher interface {
	Extract(ctx context.Context, input *domain.DocumentInput) (*domain.ExtractedText, error)
}

// URLExtractor fetches a URL and extracts the body by its content type.
type URLExtractor struct {
	next     dispatcher
	client   HTTPDoer
	maxBytes int64
}

// NewURLExtractor creates a URL extractor dispatching fetched bodies to next.
func NewURLExtractor(next dispatcher, client HTTPDoer, maxBytes int64) *URLExtractor {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if maxBytes <= 0 {
		maxBytes = domain.DefaultMaxDocumentBytes
	}
	return &URLExtractor{next: next, client: client, maxBytes: maxBytes}
}

// Extract fetches the URL in input.Source, or in the content when Source is empty.
func (e *URLExtractor) Extract(ctx context.Context, input *domain.DocumentInput) (*domain.ExtractedText, error) {
	raw := input.Source
	if raw == "" {
		raw = strings.TrimSpace(string(input.Content))
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not an http(s) URL", domain.ErrInvalidInput, raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	req.Header.Set("User-Agent", "sercha-rag")

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: fetching %s: %v", domain.ErrServiceUnavailable, u.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("fetching %s: status %d", u, resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if resp.ContentLength > e.maxBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes", domain.ErrDocumentTooLarge, u, resp.ContentLength)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", domain.ErrServiceUnavailable, u, err)
	}
	if int64(len(body)) > e.maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrDocumentTooLarge, u, e.maxBytes)
	}

	format := formatFromContentType(resp.Header.Get("Content-Type"), u.Path, body)
	if format == "" {
		return nil, unsupported(domain.FormatURL, "content type "+resp.Header.Get("Content-Type"))
	}

	return e.next.Extract(ctx, &domain.DocumentInput{
		Source:   u.String(),
		Title:    input.Title,
		Format:   format,
		Content:  body,
		Metadata: input.Metadata,
	})
}

// SupportedFormats returns url.
func (e *URLExtractor) SupportedFormats() []domain.Format {
	return []domain.Format{domain.FormatURL}
}

// Priority returns the format-specific priority.
func (e *URLExtractor) Priority() int {
	return 50
}

func formatFromContentType(contentType, urlPath string, body []byte) domain.Format {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch mediaType {
	case "text/html", "application/xhtml+xml":
		return domain.FormatHTML
	case "text/markdown", "text/x-markdown":
		return domain.FormatMarkdown
	case "text/plain":
		if f := domain.FormatFromPath(path.Base(urlPath)); f == domain.FormatMarkdown || f == domain.FormatTranscript {
			return f
		}
		return domain.FormatText
	case "text/vtt", "application/x-subrip":
		return domain.FormatTranscript
	case "application/pdf":
		return domain.FormatPDF
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return domain.FormatDOCX
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return domain.FormatXLSX
	}

	// Fall back to the path, then to sniffing
	if f := domain.FormatFromPath(path.Base(urlPath)); f != "" && f != domain.FormatURL {
		return f
	}
	switch sniffed, _, _ := mime.ParseMediaType(http.DetectContentType(body)); sniffed {
	case "text/html":
		return domain.FormatHTML
	case "text/plain":
		return domain.FormatText
	case "application/pdf":
		return domain.FormatPDF
	}
	return ""
}
