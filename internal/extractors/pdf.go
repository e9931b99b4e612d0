package extractors

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Extractor = (*PDFExtractor)(nil)

// CommandRunner runs an external program with stdin and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, stdin []byte, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name, failing with exec.ErrNotFound when it is not on PATH.
func (ExecRunner) Run(ctx context.Context, name string, stdin []byte, args ...string) ([]byte, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return stdout.Bytes(), nil
}

const pdftotext = "pdftotext"

// PDFExtractor shells out to pdftotext.
type PDFExtractor struct {
	runner CommandRunner
}

// NewPDFExtractor creates a PDF extractor. A nil runner uses ExecRunner.
func NewPDFExtractor(runner CommandRunner) *PDFExtractor {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &PDFExtractor{runner: runner}
}

// Extract converts the PDF through pdftotext reading stdin and writing stdout.
func (e *PDFExtractor) Extract(ctx context.Context, input *domain.DocumentInput) (*domain.ExtractedText, error) {
	if !bytes.HasPrefix(input.Content, []byte("%PDF-")) {
		return nil, unsupported(input.Format, "missing PDF header")
	}

	out, err := e.runner.Run(ctx, pdftotext, input.Content, "-enc", "UTF-8", "-layout", "-", "-")
	if errors.Is(err, exec.ErrNotFound) {
		return nil, unsupported(input.Format, pdftotext+" is not installed")
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("extracting pdf: %w", err)
	}

	// pdftotext separates pages with form feeds
	text := bytes.ReplaceAll(out, []byte("\f"), []byte("\n\n"))
	return &domain.ExtractedText{Text: normalizeText(string(text)), Title: input.Title}, nil
}

// SupportedFormats returns pdf.
func (e *PDFExtractor) SupportedFormats() []domain.Format {
	return []domain.Format{domain.FormatPDF}
}

// Priority returns the format-specific priority.
func (e *PDFExtractor) Priority() int {
	return 80
}
