// Package optimization implements bracket-narrowing minimization of a
// single-variable function over a closed interval.
package optimization

import (
	"math"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/copyleftdev/calclab/internal/errors"
)

// DefaultMaxIterations bounds a run when OptimizerConfig.MaxIterations is zero.
const DefaultMaxIterations = 1000

// Method names a minimization algorithm.
type Method string

const (
	MethodDichotomy Method = "dichotomy"
	MethodGolden    Method = "golden"
)

// ParseMethod resolves a method name case-insensitively. An empty name
// selects golden section.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(MethodGolden):
		return MethodGolden, nil
	case string(MethodDichotomy):
		return MethodDichotomy, nil
	}
	return "", apperrors.Validation("unknown minimization method %q (want dichotomy or golden)", s)
}

// Optimizer defines the interface for minimization algorithms
type Optimizer interface {
	// Method returns the algorithm name.
	Method() Method

	// Optimize narrows [A, B] until it is shorter than Eps.
	Optimize(config OptimizerConfig) (*OptimizationResult, error)
}

// New returns the optimizer for method. A nil logger disables logging.
func New(method Method, logger *zap.Logger) (Optimizer, error) {
	switch method {
	case MethodDichotomy:
		return NewDichotomy(logger), nil
	case MethodGolden:
		return NewGoldenSection(logger), nil
	}
	return nil, apperrors.Validation("unknown minimization method %q (want dichotomy or golden)", string(method))
}

// OptimizerConfig contains configuration for the optimizer
type OptimizerConfig struct {
	// Objective function to minimize
	Objective ObjectiveFunction

	// Search interval, A < B
	A, B float64

	// Termination tolerance on the bracket length
	Eps float64

	// Dichotomy probe offset from the midpoint. Zero means Eps/4.
	Delta float64

	// Maximum number of iterations. Zero means DefaultMaxIterations.
	MaxIterations int
}

// ObjectiveFunction defines the function to be minimized
type ObjectiveFunction func(x float64) float64

// Solution is a point and its objective value.
type Solution struct {
	X     float64
	Value float64
}

// Iteration records one narrowing step: the bracket after the step, both
// probes, and the better probe as the current candidate.
type Iteration struct {
	K      int
	Lo, Hi float64
	Length float64
	Y, Z   float64
	FY, FZ float64
	X, FX  float64
}

// OptimizationResult contains the result of an optimization run
type OptimizationResult struct {
	Method       Method
	BestSolution Solution
	History      []Iteration
	Iterations   int
}

func (c OptimizerConfig) withDefaults() (OptimizerConfig, error) {
	switch {
	case c.Objective == nil:
		return c, apperrors.Validation("objective function is required")
	case !finite(c.A) || !finite(c.B):
		return c, apperrors.Validation("interval bounds must be finite, got [%g, %g]", c.A, c.B)
	case c.A >= c.B:
		return c, apperrors.Validation("interval start must be less than its end, got [%g, %g]", c.A, c.B)
	case !(c.Eps > 0) || math.IsInf(c.Eps, 1):
		return c, apperrors.Validation("eps must be positive, got %g", c.Eps)
	case c.Delta < 0 || math.IsNaN(c.Delta) || math.IsInf(c.Delta, 1):
		return c, apperrors.Validation("delta must not be negative, got %g", c.Delta)
	case c.MaxIterations < 0:
		return c, apperrors.Validation("max iterations must not be negative, got %d", c.MaxIterations)
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	return c, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// probe evaluates f at x and rejects non-finite values.
func probe(f ObjectiveFunction, x float64) (float64, error) {
	v := f(x)
	if !finite(v) {
		return v, apperrors.Evaluation(x, v, "objective is not finite").
			WithComponent("optimization").
			WithOperation("probe")
	}
	return v, nil
}

func iterationLimit(method Method, cfg OptimizerConfig, lo, hi float64) error {
	return apperrors.Convergence("%s did not converge in %d iterations: bracket [%g, %g] is still %g wide, eps is %g",
		method, cfg.MaxIterations, lo, hi, hi-lo, cfg.Eps).
		WithComponent("optimization")
}

// finish reports the midpoint of the final bracket.
func finish(method Method, cfg OptimizerConfig, lo, hi float64, history []Iteration) (*OptimizationResult, error) {
	x := (lo + hi) / 2
	fx, err := probe(cfg.Objective, x)
	if err != nil {
		return nil, err
	}
	return &OptimizationResult{
		Method:       method,
		BestSolution: Solution{X: x, Value: fx},
		History:      history,
		Iterations:   len(history),
	}, nil
}

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
