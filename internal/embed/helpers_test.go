package embed

import (
	"math"

	"github.com/coder/hnsw"
)

func magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// similarity scores vectors the way the vector index ranks them.
func similarity(a, b []float32) float32 {
	return 1 - hnsw.CosineDistance(a, b)
}
