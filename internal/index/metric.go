package index

import (
	"fmt"
	"math"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// Similarity scores two vectors of equal length; higher is more similar.
type Similarity func(a, b []float32) float64

// SimilarityFor returns the similarity function for a metric.
func SimilarityFor(metric domain.Metric) (Similarity, error) {
	switch metric {
	case domain.MetricCosine, "":
		return Cosine, nil
	case domain.MetricDot:
		return Dot, nil
	default:
		return nil, fmt.Errorf("%w: unknown metric %q", domain.ErrInvalidConfiguration, metric)
	}
}

// Dot returns the inner product of a and b.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Cosine returns the cosine similarity of a and b, or 0 if either is a zero vector.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
