package expr

import (
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"

	apperrors "github.com/copyleftdev/calclab/internal/errors"
)

func TestDerivativeValues(t *testing.T) {
	tests := []struct {
		src  string
		x    float64
		want float64
	}{
		{"x^2", 3, 6},
		{"x^3", 2, 12},
		{"5", 1, 0},
		{"x", 42, 1},
		{"-x^2", 3, -6},
		{"sin(x)", 0, 1},
		{"cos(x)", math.Pi / 2, -1},
		{"tan(x)", 0, 1},
		{"exp(2*x)", 0, 2},
		{"ln(x)", 2, 0.5},
		{"log(x)", 4, 0.25},
		{"log10(x)", 10, 1 / (10 * math.Ln10)},
		{"x*sin(x)", math.Pi, -math.Pi},
		{"1/x", 2, -0.25},
		{"(x+1)/(x-1)", 3, -0.5},
		{"x^x", 1, 1},
		{"2^x", 0, math.Ln2},
		{"sqrt(x)", 4, 0.25},
		{"abs(x)", -2, -1},
		{"sign(x)", 3, 0},
		{"atan(x)", 1, 0.5},
		{"asin(x)", 0, 1},
		{"acos(x)", 0, -1},
		{"sinh(x)", 0, 1},
		{"cosh(x)", 0, 0},
		{"tanh(x)", 0, 1},
		{"sin(x) + x^3", 0, 1},
		{"exp(sin(x))", 0, 1},
		{"x^0.5", 9, 1.0 / 6},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			f := MustCompile(tt.src)
			assert.InDelta(t, tt.want, f.MustDerivative().Eval(tt.x), 1e-12)
		})
	}
}

func TestSquareRoundTrip(t *testing.T) {
	f, err := Compile("x^2")
	require.NoError(t, err)
	assert.Equal(t, 9.0, f.Eval(3))
	d, err := f.Derivative()
	require.NoError(t, err)
	assert.Equal(t, 6.0, d.Eval(3))
	assert.Equal(t, "2*x", d.String())
	assert.Equal(t, "2*x", d.Source())
}

func TestHigherDerivatives(t *testing.T) {
	cube := MustCompile("x^3")
	assert.InDelta(t, 12.0, cube.MustDerivative().MustDerivative().Eval(2), 1e-12)
	assert.InDelta(t, 6.0, cube.MustDerivative().MustDerivative().MustDerivative().Eval(5), 1e-12)
	assert.InDelta(t, 0.0, cube.MustDerivative().MustDerivative().MustDerivative().MustDerivative().Eval(5), 1e-12)

	sine := MustCompile("sin(x)")
	assert.InDelta(t, -1.0, sine.MustDerivative().MustDerivative().Eval(math.Pi/2), 1e-12)

	// Derivative is cached.
	assert.Same(t, sine.MustDerivative(), sine.MustDerivative())
}

func TestDerivativeMatchesFiniteDifference(t *testing.T) {
	sources := []string{
		"sin(x) + x^3",
		"exp(-x^2/2)",
		"x^x",
		"ln(1 + x^2)",
		"sqrt(1 + x^2) / (2 + cos(x))",
		"tan(x/3) - atan(x)",
		"(x^2 + 1)^(sin(x) + 2)",
		"cosh(x) * tanh(x) - sinh(x/2)",
		"log10(x + 3) * abs(x - 0.1)",
		"3^(2*x) / x",
	}
	points := []float64{0.4, 0.9, 1.3, 2.1}
	settings := &fd.Settings{Formula: fd.Central, Step: 1e-6}

	for _, src := range sources {
		t.Run(src, func(t *testing.T) {
			f := MustCompile(src)
			d := f.MustDerivative()
			for _, x := range points {
				want := fd.Derivative(f.Eval, x, settings)
				got := d.Eval(x)
				assert.InDelta(t, want, got, 1e-5*math.Max(1, math.Abs(want)), "x=%v derivative=%s", x, d)
			}
		})
	}
}

func TestDerivativeRendersParseable(t *testing.T) {
	f := MustCompile("(x^2 + 1)^(sin(x) + 2) / ln(x)")
	d := f.MustDerivative()
	again, err := Compile(d.String())
	require.NoError(t, err, d.String())
	for _, x := range []float64{1.5, 2, 3} {
		assert.InDelta(t, d.Eval(x), again.Eval(x), 1e-9*math.Max(1, math.Abs(d.Eval(x))))
	}
}

func TestConcurrentEvaluation(t *testing.T) {
	f := MustCompile("sin(x)*exp(-x/4)")
	var wg sync.WaitGroup
	results := make([]float64, 64)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.MustDerivative().Eval(float64(i) / 10)
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		x := float64(i) / 10
		want := math.Cos(x)*math.Exp(-x/4) - math.Sin(x)*math.Exp(-x/4)/4
		assert.InDelta(t, want, got, 1e-12)
	}
}

func TestLongProductStaysCheap(t *testing.T) {
	// Longest accepted product: its derivative has about n^2 nodes.
	src := "x" + strings.Repeat("*x", (MaxLength-1)/2)
	require.LessOrEqual(t, len(src), MaxLength)

	start := time.Now()
	f, err := Compile(src)
	require.NoError(t, err)
	assert.Equal(t, 1.0, f.Eval(1))
	assert.Less(t, time.Since(start), time.Second)

	start = time.Now()
	d, err := f.Derivative()
	assert.Nil(t, d)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindParse, apperrors.KindOf(err))
	assert.Contains(t, err.Error(), "derivative has more than")
	assert.Less(t, time.Since(start), time.Second)

	// The failure is cached.
	_, again := f.Derivative()
	assert.Same(t, err, again)
}

func TestDerivativeSizeLimit(t *testing.T) {
	// A product of n factors has a derivative of roughly n^2 nodes.
	small := MustCompile("x" + strings.Repeat("*x", 100))
	d, err := small.Derivative()
	require.NoError(t, err)
	assert.LessOrEqual(t, treeSize(d.root, MaxDerivativeSize), MaxDerivativeSize)
	assert.InDelta(t, 101.0, d.Eval(1), 1e-9)
	assert.Less(t, len(d.String()), 16*MaxDerivativeSize)

	large := MustCompile("x" + strings.Repeat("*x", 400))
	_, err = large.Derivative()
	assert.ErrorContains(t, err, "derivative has more than")
}

func BenchmarkEval(b *testing.B) {
	f := MustCompile("sin(x) + x^3 - exp(-x^2) / (1 + abs(x))")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = f.Eval(float64(i%100) / 50)
	}
}

func BenchmarkCompile(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = Compile("sin(x) + x^3 - exp(-x^2) / (1 + abs(x))")
	}
}
