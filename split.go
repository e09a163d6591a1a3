package hat

import "math/rand"

const kMeansRounds = 8

// kMeans2 clusters vectors into two groups by dot-product proximity to
// two randomly seeded centers, refined over kMeansRounds Lloyd iterations.
// Returns a 0/1 label per vector. Generalized from the teacher's leaf
// k=2 split routine (github.com/ic-timon/da-hvri, indexer/split.go),
// which clustered raw leaf vectors on overflow; HAT instead runs this
// over document-level chunk centroids during Medium consolidation,
// keeping insertion itself rebalance-free per §9's design note.
func kMeans2(vectors [][]float32, dim int, rng *rand.Rand) []int {
	n := len(vectors)
	assign := make([]int, n)
	if n < 2 {
		return assign
	}
	c0 := cloneVec(vectors[rng.Intn(n)])
	c1 := cloneVec(vectors[rng.Intn(n)])
	for round := 0; round < kMeansRounds; round++ {
		for i, v := range vectors {
			if dotProduct(v, c0) >= dotProduct(v, c1) {
				assign[i] = 0
			} else {
				assign[i] = 1
			}
		}
		sum0, sum1 := zeroVec(dim), zeroVec(dim)
		var n0, n1 int
		for i, v := range vectors {
			if assign[i] == 0 {
				addInto(sum0, v)
				n0++
			} else {
				addInto(sum1, v)
				n1++
			}
		}
		if n0 > 0 {
			scaleInto(c0, sum0, 1.0/float64(n0))
		}
		if n1 > 0 {
			scaleInto(c1, sum1, 1.0/float64(n1))
		}
	}
	return assign
}

func addInto(dst, v []float32) {
	for i, x := range v {
		dst[i] += x
	}
}

func scaleInto(dst, src []float32, factor float64) {
	for i, x := range src {
		dst[i] = float32(float64(x) * factor)
	}
}

// separated reports whether two k=2 cluster centers are well separated:
// their cosine similarity falls below splitSeparationThreshold, meaning
// the document's chunks genuinely form two distinguishable groups rather
// than one that k-means arbitrarily bisected.
func separated(a, b []float32) bool {
	na, nb := norm(a), norm(b)
	if na == 0 || nb == 0 {
		return false
	}
	cos := dotProduct(a, b) / (na * nb)
	return cos < splitSeparationThreshold
}

// splitSeparationThreshold and mergeSimilarityThreshold are the pinned,
// implementation-tunable constants spec.md §9 calls for ("thresholds are
// implementation-tunable; a test suite should pin chosen values and
// assert stability across versions").
const (
	splitSeparationThreshold = 0.35
	mergeSimilarityThreshold = 0.92
)
