package optimization

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/calclab/internal/expr"
)

// compiled returns the objective for an expression in x.
func compiled(t testing.TB, src string) ObjectiveFunction {
	t.Helper()
	f, err := expr.Compile(src)
	require.NoError(t, err)
	return f.Eval
}

// countingObjective wraps f and returns NaN from the nth call on.
func countingObjective(f ObjectiveFunction, failFrom int) (ObjectiveFunction, *int) {
	calls := 0
	return func(x float64) float64 {
		calls++
		if failFrom > 0 && calls >= failFrom {
			return math.NaN()
		}
		return f(x)
	}, &calls
}

// assertShrinking checks that the recorded brackets are consistent and never
// grow, and that the last one is shorter than eps.
func assertShrinking(t *testing.T, res *OptimizationResult, a, b, eps float64) {
	t.Helper()

	require.NotEmpty(t, res.History)
	require.Equal(t, len(res.History), res.Iterations)

	prev := b - a
	for i, it := range res.History {
		if it.K != i+1 {
			t.Fatalf("iteration %d: got k=%d", i, it.K)
		}
		if it.Lo < a || it.Hi > b || it.Lo >= it.Hi {
			t.Fatalf("iteration %d: bracket [%v, %v] outside [%v, %v]", it.K, it.Lo, it.Hi, a, b)
		}
		if it.Length != it.Hi-it.Lo {
			t.Fatalf("iteration %d: length %v, want %v", it.K, it.Length, it.Hi-it.Lo)
		}
		if it.Length > prev {
			t.Fatalf("iteration %d: length grew from %v to %v", it.K, prev, it.Length)
		}
		if it.FX != math.Min(it.FY, it.FZ) {
			t.Fatalf("iteration %d: candidate value %v is not the better probe (%v, %v)", it.K, it.FX, it.FY, it.FZ)
		}
		prev = it.Length
	}
	if prev >= eps {
		t.Fatalf("final length %v is not below eps %v", prev, eps)
	}
}
