package extractors

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Extractor = (*DOCXExtractor)(nil)

// DOCXExtractor reads paragraph text from word/document.xml.
type DOCXExtractor struct{}

// NewDOCXExtractor creates a DOCX extractor.
func NewDOCXExtractor() *DOCXExtractor {
	return &DOCXExtractor{}
}

// Extract returns one paragraph per w:p element.
func (e *DOCXExtractor) Extract(ctx context.Context, input *domain.DocumentInput) (*domain.ExtractedText, error) {
	zr, err := openZip(input.Format, input.Content)
	if err != nil {
		return nil, err
	}
	data, err := readPart(zr, "word/document.xml")
	if errors.Is(err, domain.ErrNotFound) {
		return nil, unsupported(input.Format, "missing word/document.xml")
	}
	if err != nil {
		return nil, err
	}

	text, err := docxText(data)
	if err != nil {
		return nil, unsupported(input.Format, err.Error())
	}

	title := input.Title
	if title == "" {
		title = coreTitle(zr)
	}
	return &domain.ExtractedText{Text: normalizeText(text), Title: title}, nil
}

// SupportedFormats returns docx.
func (e *DOCXExtractor) SupportedFormats() []domain.Format {
	return []domain.Format{domain.FormatDOCX}
}

// Priority returns the format-specific priority.
func (e *DOCXExtractor) Priority() int {
	return 70
}

func docxText(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var sb, para strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return sb.String(), nil
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				para.WriteByte('\t')
			case "br", "cr":
				para.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if p := strings.TrimSpace(para.String()); p != "" {
					sb.WriteString(p)
					sb.WriteString("\n\n")
				}
				para.Reset()
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
}
