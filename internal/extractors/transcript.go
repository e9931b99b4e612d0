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
var _ driven.Extractor = (*TranscriptExtractor)(nil)

var (
	cueIndex   = regexp.MustCompile(`^\d+$`)
	voiceTag   = regexp.MustCompile(`<v(?:\.[^ >]*)?\s+([^>]+)>`)
	markupTags = regexp.MustCompile(`</?[^>]+>`)
)

// TranscriptExtractor reads cue text from SRT and WebVTT files.
type TranscriptExtractor struct{}

// NewTranscriptExtractor creates a transcript extractor.
func NewTranscriptExtractor() *TranscriptExtractor {
	return &TranscriptExtractor{}
}

// Extract drops headers, cue numbers, timings and markup, one line per cue.
// A plain-text transcript passes through with normalised whitespace.
func (e *TranscriptExtractor) Extract(ctx context.Context, input *domain.DocumentInput) (*domain.ExtractedText, error) {
	if !utf8.Valid(input.Content) {
		return nil, unsupported(input.Format, "content is not valid UTF-8")
	}
	raw := normalizeText(string(input.Content))
	if !strings.Contains(raw, "-->") {
		return &domain.ExtractedText{Text: raw, Title: input.Title}, nil
	}
	return &domain.ExtractedText{Text: cueText(raw), Title: input.Title}, nil
}

// SupportedFormats returns transcript.
func (e *TranscriptExtractor) SupportedFormats() []domain.Format {
	return []domain.Format{domain.FormatTranscript}
}

// Priority returns the format-specific priority.
func (e *TranscriptExtractor) Priority() int {
	return 60
}

func cueText(raw string) string {
	var lines []string
	var last string

	for _, block := range strings.Split(raw, "\n\n") {
		blockLines := strings.Split(strings.TrimSpace(block), "\n")
		head := blockLines[0]
		if strings.HasPrefix(head, "WEBVTT") || strings.HasPrefix(head, "NOTE") ||
			strings.HasPrefix(head, "STYLE") || strings.HasPrefix(head, "REGION") {
			continue
		}

		// Anything before the timing line is a cue identifier
		for i, l := range blockLines {
			if strings.Contains(l, "-->") {
				blockLines = blockLines[i+1:]
				break
			}
		}

		var cue []string
		for _, l := range blockLines {
			l = strings.TrimSpace(l)
			if l == "" || cueIndex.MatchString(l) {
				continue
			}
			l = voiceTag.ReplaceAllString(l, "$1: ")
			l = strings.TrimSpace(markupTags.ReplaceAllString(l, ""))
			if l != "" {
				cue = append(cue, l)
			}
		}
		if len(cue) == 0 {
			continue
		}

		// Rolling captions repeat the previous cue
		text := strings.Join(cue, " ")
		if text == last {
			continue
		}
		last = text
		lines = append(lines, text)
	}
	return strings.Join(lines, "\n")
}
