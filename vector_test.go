package hat

import (
	"math"
	"testing"
)

func TestDotProductArbitraryLength(t *testing.T) {
	for _, n := range []int{0, 1, 2, 3, 4, 5, 8, 17} {
		a := make([]float32, n)
		b := make([]float32, n)
		var want float64
		for i := range a {
			a[i] = float32(i + 1)
			b[i] = float32(2*i + 1)
			want += float64(a[i]) * float64(b[i])
		}
		got := dotProduct(a, b)
		if math.Abs(got-want) > 1e-6 {
			t.Errorf("n=%d: dotProduct=%v want %v", n, got, want)
		}
	}
}

func TestMetricScoreCosineZeroNorm(t *testing.T) {
	a := []float32{0, 0, 0}
	b := []float32{1, 2, 3}
	if got := Cosine.score(a, b); got != 0 {
		t.Errorf("cosine score with zero-norm vector = %v, want 0", got)
	}
}

func TestMetricScoreCosineSelfSimilarity(t *testing.T) {
	v := []float32{1, 2, 3}
	got := Cosine.score(v, v)
	if math.Abs(got-1) > 1e-6 {
		t.Errorf("cosine self-similarity = %v, want 1", got)
	}
}

func TestMetricScoreDot(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{3, 4, 0}
	if got := Dot.score(a, b); got != 3 {
		t.Errorf("dot score = %v, want 3", got)
	}
}

func TestMeanUpdateMatchesExactMean(t *testing.T) {
	vecs := [][]float32{
		{1, 0},
		{0, 1},
		{2, 2},
	}
	centroid := zeroVec(2)
	for i, v := range vecs {
		meanUpdate(centroid, v, uint64(i+1))
	}
	want := []float32{1, 1}
	for i := range want {
		if math.Abs(float64(centroid[i]-want[i])) > 1e-5 {
			t.Errorf("centroid[%d] = %v, want %v", i, centroid[i], want[i])
		}
	}
}
