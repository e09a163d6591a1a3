package hat

import (
	"math"

	"github.com/ic-timon/hat/simd"
)

// Metric selects the similarity function used for both routing and final
// ranking. Adding a metric is a wire-format-breaking change: the tag byte
// in the persisted header would need a new value and format_version would
// need to increment (see store.CurrentFormatVersion).
type Metric uint8

const (
	// Cosine scores vectors by cosine similarity. Centroids are stored
	// un-normalized; normalization happens at score time.
	Cosine Metric = 0
	// Dot scores vectors by raw dot product.
	Dot Metric = 1
)

// String implements fmt.Stringer.
func (m Metric) String() string {
	switch m {
	case Cosine:
		return "cosine"
	case Dot:
		return "dot"
	default:
		return "unknown"
	}
}

// score computes the similarity of two vectors of equal length under m.
// Higher is better for both metrics. Zero-norm vectors score 0 against
// everything under cosine.
func (m Metric) score(a, b []float32) float64 {
	switch m {
	case Dot:
		return dotProduct(a, b)
	default:
		na := norm(a)
		nb := norm(b)
		if na == 0 || nb == 0 {
			return 0
		}
		return dotProduct(a, b) / (na * nb)
	}
}

// dotProduct computes the dot product of two equal-length float32 vectors
// using the best dot product implementation available for the current
// GOARCH (AVX-512/AVX2/SSE4/NEON where cgo permits, a 4-wide unrolled Go
// loop otherwise). HAT's dimensionality is a runtime construction
// parameter rather than the teacher's fixed lane width, so unlike the
// teacher every implementation here handles arbitrary vector length,
// including a scalar remainder past the last full SIMD lane.
func dotProduct(a, b []float32) float64 {
	return simd.DotProduct(a, b)
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// meanUpdate applies one exact incremental mean update in place:
// centroid += (v - centroid) / count. count must already include v.
func meanUpdate(centroid, v []float32, count uint64) {
	inv := float32(1.0 / float64(count))
	for i := range centroid {
		centroid[i] += (v[i] - centroid[i]) * inv
	}
}

func cloneVec(v []float32) []float32 {
	if v == nil {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

func zeroVec(d int) []float32 {
	return make([]float32, d)
}
