package extractors

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// maxPartBytes bounds a single decompressed OOXML part
const maxPartBytes = 256 << 20

func openZip(format domain.Format, content []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, unsupported(format, "not a zip container")
	}
	return zr, nil
}

func readPart(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		data, err := io.ReadAll(io.LimitReader(rc, maxPartBytes+1))
		if err != nil {
			return nil, err
		}
		if len(data) > maxPartBytes {
			return nil, fmt.Errorf("%w: part %s", domain.ErrDocumentTooLarge, name)
		}
		return data, nil
	}
	return nil, domain.ErrNotFound
}

// coreTitle reads dc:title from docProps/core.xml, if present.
func coreTitle(zr *zip.Reader) string {
	data, err := readPart(zr, "docProps/core.xml")
	if err != nil {
		return ""
	}
	var props struct {
		Title string `xml:"title"`
	}
	if err := xml.Unmarshal(data, &props); err != nil {
		return ""
	}
	return strings.TrimSpace(props.Title)
}

// columnIndex converts a cell reference such as "C7" to a zero-based column.
func columnIndex(ref string) int {
	col := 0
	for _, r := range ref {
		if r < 'A' || r > 'Z' {
			break
		}
		col = col*26 + int(r-'A'+1)
	}
	return col - 1
}

// sheetNumber extracts N from xl/worksheets/sheetN.xml.
func sheetNumber(name string) (int, bool) {
	base := strings.TrimPrefix(name, "xl/worksheets/sheet")
	if base == name || !strings.HasSuffix(base, ".xml") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(base, ".xml"))
	return n, err == nil
}

func sortedSheets(zr *zip.Reader) []string {
	type sheet struct {
		name string
		n    int
	}
	var sheets []sheet
	for _, f := range zr.File {
		if n, ok := sheetNumber(f.Name); ok {
			sheets = append(sheets, sheet{f.Name, n})
		}
	}
	sort.Slice(sheets, func(i, j int) bool { return sheets[i].n < sheets[j].n })

	names := make([]string, len(sheets))
	for i, s := range sheets {
		names[i] = s.name
	}
	return names
}
