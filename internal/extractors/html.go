package extractors

import (
	"bytes"
	"context"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Extractor = (*HTMLExtractor)(nil)

// skipped elements contribute no text
var skipped = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"svg": true, "head": true, "iframe": true,
}

// block elements start a new paragraph
var block = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "header": true,
	"footer": true, "main": true, "aside": true, "nav": true, "blockquote": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "li": true, "table": true, "tr": true, "pre": true,
	"br": true, "hr": true, "dl": true, "dt": true, "dd": true, "figure": true,
}

// HTMLExtractor extracts visible text from HTML.
type HTMLExtractor struct{}

// NewHTMLExtractor creates an HTML extractor.
func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{}
}

// Extract walks the token stream keeping text outside scripts and styles.
func (e *HTMLExtractor) Extract(ctx context.Context, input *domain.DocumentInput) (*domain.ExtractedText, error) {
	text, title, err := htmlText(input.Content)
	if err != nil {
		return nil, unsupported(input.Format, err.Error())
	}
	if input.Title != "" {
		title = input.Title
	}
	return &domain.ExtractedText{Text: text, Title: title}, nil
}

// SupportedFormats returns html.
func (e *HTMLExtractor) SupportedFormats() []domain.Format {
	return []domain.Format{domain.FormatHTML}
}

// Priority returns the format-specific priority.
func (e *HTMLExtractor) Priority() int {
	return 60
}

func htmlText(content []byte) (text, title string, err error) {
	z := html.NewTokenizer(bytes.NewReader(content))

	var sb, titleBuf strings.Builder
	skipDepth := 0
	inTitle, inPre := false, false

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return normalizeText(collapseInline(sb.String())), strings.TrimSpace(titleBuf.String()), nil
			}
			return "", "", z.Err()

		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			switch {
			case tag == "title":
				inTitle = true
			case skipped[tag]:
				if tt == html.StartTagToken {
					skipDepth++
				}
			case tag == "pre":
				inPre = true
				sb.WriteString("\n\n")
			case block[tag]:
				sb.WriteString("\n\n")
			case tag == "td" || tag == "th":
				sb.WriteString("\t")
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			switch {
			case tag == "title":
				inTitle = false
			case skipped[tag]:
				if skipDepth > 0 {
					skipDepth--
				}
			case tag == "pre":
				inPre = false
				sb.WriteString("\n\n")
			case block[tag]:
				sb.WriteString("\n\n")
			}

		case html.TextToken:
			data := string(z.Text())
			switch {
			case inTitle:
				titleBuf.WriteString(data)
			case skipDepth > 0:
			case inPre:
				// Keep preformatted line structure; marked so inline collapsing skips it
				sb.WriteString(strings.ReplaceAll(data, "\n", preNewline))
			default:
				sb.WriteString(data)
			}
		}
	}
}

const preNewline = "\x00"

// collapseInline folds whitespace inside paragraphs while keeping paragraph
// breaks and preformatted newlines.
func collapseInline(s string) string {
	paras := strings.Split(s, "\n\n")
	out := paras[:0]
	for _, p := range paras {
		lines := strings.Split(p, preNewline)
		for i, l := range lines {
			lines[i] = strings.Join(strings.FieldsFunc(l, isCollapsible), " ")
		}
		if p = strings.TrimSpace(strings.Join(lines, "\n")); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}

func isCollapsible(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\u00a0'
}
