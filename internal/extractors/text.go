package extractors

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Extractor = (*TextExtractor)(nil)

var (
	blankLines  = regexp.MustCompile(`\n{3,}`)
	frontMatter = regexp.MustCompile(`(?s)\A---\n.*?\n(---|\.\.\.)\n`)
)

// TextExtractor handles plain text and markdown.
type TextExtractor struct{}

// NewTextExtractor creates a text and markdown extractor.
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

// Extract normalises whitespace; markdown also loses its front matter.
func (e *TextExtractor) Extract(ctx context.Context, input *domain.DocumentInput) (*domain.ExtractedText, error) {
	if !utf8.Valid(input.Content) {
		return nil, unsupported(input.Format, "content is not valid UTF-8")
	}
	text := normalizeText(string(input.Content))

	out := &domain.ExtractedText{Title: input.Title}
	if input.Format == domain.FormatMarkdown {
		text = strings.TrimLeft(frontMatter.ReplaceAllString(text, ""), "\n")
		if out.Title == "" {
			out.Title = markdownTitle(text)
		}
	}
	out.Text = text
	return out, nil
}

// SupportedFormats returns txt and md.
func (e *TextExtractor) SupportedFormats() []domain.Format {
	return []domain.Format{domain.FormatText, domain.FormatMarkdown}
}

// Priority returns the generic priority.
func (e *TextExtractor) Priority() int {
	return 10
}

// normalizeText unifies line endings, trims trailing spaces and collapses runs
// of blank lines. Paragraph breaks survive as a single blank line.
func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.TrimPrefix(s, "\ufeff")

	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\u00a0")
	}
	s = strings.Join(lines, "\n")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func markdownTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(line[2:])
		}
	}
	return ""
}
