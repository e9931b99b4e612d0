package domain

import (
	"testing"
)

func TestFormatIsValid(t *testing.T) {
	for _, f := range []Format{FormatPDF, FormatText, FormatMarkdown, FormatDOCX, FormatXLSX, FormatHTML, FormatURL, FormatTranscript} {
		if !f.IsValid() {
			t.Errorf("expected %s to be valid", f)
		}
	}
	if Format("exe").IsValid() {
		t.Error("exe should not be a valid format")
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"report.PDF", FormatPDF},
		{"notes.md", FormatMarkdown},
		{"notes.txt", FormatText},
		{"sheet.xlsx", FormatXLSX},
		{"letter.docx", FormatDOCX},
		{"page.htm", FormatHTML},
		{"talk.vtt", FormatTranscript},
		{"https://example.com/post", FormatURL},
		{"archive.tar", ""},
	}

	for _, tt := range tests {
		if got := FormatFromPath(tt.path); got != tt.want {
			t.Errorf("FormatFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestNewDocument(t *testing.T) {
	input := &DocumentInput{
		Source:   "/docs/a.md",
		Title:    "A",
		Format:   FormatMarkdown,
		Metadata: map[string]string{"team": "search"},
	}

	doc := NewDocument(input, "abc")

	if doc.ID == "" {
		t.Error("expected generated ID")
	}
	if doc.Status != DocumentStatusPending {
		t.Errorf("expected pending status, got %s", doc.Status)
	}
	if doc.ContentHash != "abc" || doc.Source != "/docs/a.md" || doc.Format != FormatMarkdown {
		t.Errorf("unexpected document: %+v", doc)
	}
	if doc.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestChunkID(t *testing.T) {
	if got := ChunkID("doc-1", 3); got != "doc-1-chunk-3" {
		t.Errorf("unexpected chunk id %s", got)
	}
}

func TestContentHash(t *testing.T) {
	a := ContentHash("hello")
	b := ContentHash("hello")
	c := ContentHash("hello ")

	if a != b {
		t.Error("hash should be deterministic")
	}
	if a == c {
		t.Error("different text should hash differently")
	}
	if a != "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824" {
		t.Errorf("unexpected sha256 %s", a)
	}
}

func TestIngestionReportAddError(t *testing.T) {
	report := &IngestionReport{}
	report.AddError(2, &ProviderError{Provider: AIProviderOpenAI, StatusCode: 429, Err: ErrRateLimited})

	if len(report.Errors) != 1 {
		t.Fatalf("expected 1 error, got %d", len(report.Errors))
	}
	if report.Errors[0].Position != 2 || report.Errors[0].Kind != "rate_limited" {
		t.Errorf("unexpected chunk error %+v", report.Errors[0])
	}
}
