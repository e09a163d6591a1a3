package hat

import (
	"math"
	"math/rand"
)

// randomVectors returns n L2-normalized dim-dimensional vectors, seeded
// deterministically. Mirrors the teacher's indexer/persist_test.go
// helper of the same name.
func randomVectors(n, dim int, seed int64) [][]float32 {
	rng := rand.New(rand.NewSource(seed))
	out := make([][]float32, n)
	for i := 0; i < n; i++ {
		v := make([]float32, dim)
		var sumSq float64
		for j := 0; j < dim; j++ {
			x := rng.Float32()
			v[j] = x
			sumSq += float64(x) * float64(x)
		}
		norm := math.Sqrt(sumSq)
		if norm < 1e-9 {
			v[0] = 1
			norm = 1
		}
		for j := 0; j < dim; j++ {
			v[j] /= float32(norm)
		}
		out[i] = v
	}
	return out
}
