package optimization

import (
	"gonum.org/v1/gonum/floats"
)

// DefaultCurveSamples is the number of curve points when none is requested.
const DefaultCurveSamples = 401

// Point is a sampled (x, f(x)) pair.
type Point struct {
	X, Y float64
}

// SampleCurve evaluates f at n evenly spaced points over [a, b], endpoints
// included. Non-finite values are kept as they are. n < 2 uses
// DefaultCurveSamples.
func SampleCurve(f ObjectiveFunction, a, b float64, n int) []Point {
	if n < 2 {
		n = DefaultCurveSamples
	}
	xs := floats.Span(make([]float64, n), a, b)
	points := make([]Point, n)
	for i, x := range xs {
		points[i] = Point{X: x, Y: f(x)}
	}
	return points
}
