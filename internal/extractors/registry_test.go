package extractors

import (
	"context"
	"errors"
	"testing"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// Mock extractor for testing
type mockExtractor struct {
	name     string
	formats  []domain.Format
	priority int
}

func (m *mockExtractor) Extract(ctx context.Context, input *domain.DocumentInput) (*domain.ExtractedText, error) {
	return &domain.ExtractedText{Text: string(input.Content) + "-" + m.name}, nil
}

func (m *mockExtractor) SupportedFormats() []domain.Format {
	return m.formats
}

func (m *mockExtractor) Priority() int {
	return m.priority
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("expected non-nil registry")
	}
	if len(r.List()) != 0 {
		t.Error("expected empty registry")
	}
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockExtractor{name: "test", formats: []domain.Format{domain.FormatText}, priority: 50})

	if r.Get(domain.FormatText) == nil {
		t.Fatal("expected to find extractor")
	}
	if r.Get(domain.FormatPDF) != nil {
		t.Error("expected nil for unregistered format")
	}
}

func TestRegistry_Get_PrioritySelection(t *testing.T) {
	r := NewRegistry()

	// Register in random order
	r.Register(&mockExtractor{name: "low", formats: []domain.Format{domain.FormatText}, priority: 10})
	r.Register(&mockExtractor{name: "high", formats: []domain.Format{domain.FormatText}, priority: 90})
	r.Register(&mockExtractor{name: "medium", formats: []domain.Format{domain.FormatText}, priority: 50})

	out, err := r.Extract(context.Background(), &domain.DocumentInput{Format: domain.FormatText, Content: []byte("x")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Text != "x-high" {
		t.Errorf("expected high priority extractor, got %q", out.Text)
	}
}

func TestRegistry_Extract_Unsupported(t *testing.T) {
	r := NewRegistry()
	_, err := r.Extract(context.Background(), &domain.DocumentInput{Format: domain.FormatDOCX})
	if !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestRegistry_List(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockExtractor{name: "a", formats: []domain.Format{domain.FormatText, domain.FormatMarkdown}})
	r.Register(&mockExtractor{name: "b", formats: []domain.Format{domain.FormatMarkdown}})

	formats := r.List()
	if len(formats) != 2 {
		t.Fatalf("expected 2 formats, got %d", len(formats))
	}
	if formats[0] != domain.FormatMarkdown || formats[1] != domain.FormatText {
		t.Errorf("expected sorted formats, got %v", formats)
	}
}

func TestNewDefaultRegistry_CoversAllFormats(t *testing.T) {
	r := NewDefaultRegistry(Options{})
	for _, f := range []domain.Format{
		domain.FormatPDF, domain.FormatText, domain.FormatMarkdown, domain.FormatDOCX,
		domain.FormatXLSX, domain.FormatHTML, domain.FormatURL, domain.FormatTranscript,
	} {
		if r.Get(f) == nil {
			t.Errorf("no extractor registered for %s", f)
		}
	}
}
