package extractors

import (
	"context"
	"encoding/xml"
	"errors"
	"strconv"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Extractor = (*XLSXExtractor)(nil)

type xlsxRichText struct {
	Text string `xml:"t"`
	Runs []struct {
		Text string `xml:"t"`
	} `xml:"r"`
}

func (r xlsxRichText) String() string {
	if len(r.Runs) == 0 {
		return r.Text
	}
	var sb strings.Builder
	for _, run := range r.Runs {
		sb.WriteString(run.Text)
	}
	return sb.String()
}

type xlsxSharedStrings struct {
	Items []xlsxRichText `xml:"si"`
}

type xlsxWorkbook struct {
	Sheets []struct {
		Name string `xml:"name,attr"`
	} `xml:"sheets>sheet"`
}

type xlsxWorksheet struct {
	Rows []struct {
		Cells []xlsxCell `xml:"c"`
	} `xml:"sheetData>row"`
}

type xlsxCell struct {
	Ref    string       `xml:"r,attr"`
	Type   string       `xml:"t,attr"`
	Value  string       `xml:"v"`
	Inline xlsxRichText `xml:"is"`
}

// XLSXExtractor renders every sheet as tab-separated rows.
type XLSXExtractor struct{}

// NewXLSXExtractor creates an XLSX extractor.
func NewXLSXExtractor() *XLSXExtractor {
	return &XLSXExtractor{}
}

// Extract flags the result structured so rows are chunked without overlap.
func (e *XLSXExtractor) Extract(ctx context.Context, input *domain.DocumentInput) (*domain.ExtractedText, error) {
	zr, err := openZip(input.Format, input.Content)
	if err != nil {
		return nil, err
	}

	var shared xlsxSharedStrings
	if data, err := readPart(zr, "xl/sharedStrings.xml"); err == nil {
		if err := xml.Unmarshal(data, &shared); err != nil {
			return nil, unsupported(input.Format, "bad shared strings")
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	var wb xlsxWorkbook
	if data, err := readPart(zr, "xl/workbook.xml"); err == nil {
		_ = xml.Unmarshal(data, &wb)
	}

	sheets := sortedSheets(zr)
	if len(sheets) == 0 {
		return nil, unsupported(input.Format, "workbook has no sheets")
	}

	var sb strings.Builder
	for i, part := range sheets {
		data, err := readPart(zr, part)
		if err != nil {
			return nil, err
		}
		var ws xlsxWorksheet
		if err := xml.Unmarshal(data, &ws); err != nil {
			return nil, unsupported(input.Format, "bad worksheet "+part)
		}

		name := "Sheet" + strconv.Itoa(i+1)
		if i < len(wb.Sheets) && wb.Sheets[i].Name != "" {
			name = wb.Sheets[i].Name
		}
		sb.WriteString("## " + name + "\n")

		for _, row := range ws.Rows {
			var cells []string
			for _, c := range row.Cells {
				col := columnIndex(c.Ref)
				for col > len(cells) {
					cells = append(cells, "")
				}
				cells = append(cells, cellValue(c, shared.Items))
			}
			if line := strings.TrimRight(strings.Join(cells, "\t"), "\t"); line != "" {
				sb.WriteString(line)
				sb.WriteByte('\n')
			}
		}
		sb.WriteByte('\n')
	}

	title := input.Title
	if title == "" {
		title = coreTitle(zr)
	}
	return &domain.ExtractedText{Text: strings.TrimSpace(sb.String()), Title: title, Structured: true}, nil
}

// SupportedFormats returns xlsx.
func (e *XLSXExtractor) SupportedFormats() []domain.Format {
	return []domain.Format{domain.FormatXLSX}
}

// Priority returns the format-specific priority.
func (e *XLSXExtractor) Priority() int {
	return 70
}

func cellValue(c xlsxCell, shared []xlsxRichText) string {
	var v string
	switch c.Type {
	case "s":
		i, err := strconv.Atoi(c.Value)
		if err == nil && i >= 0 && i < len(shared) {
			v = shared[i].String()
		}
	case "inlineStr":
		v = c.Inline.String()
	case "b":
		v = map[string]string{"1": "TRUE", "0": "FALSE"}[c.Value]
	default:
		v = c.Value
	}
	// Tabs and newlines would break the row layout
	return strings.Join(strings.Fields(v), " ")
}
