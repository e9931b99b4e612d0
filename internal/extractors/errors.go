package extractors

import (
	"fmt"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func unsupported(format domain.Format, reason string) error {
	return fmt.Errorf("%w: %s: %s", domain.ErrUnsupportedFormat, format, reason)
}
