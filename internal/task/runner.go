// Package task turns caller requests into minimization or differentiation
// runs and encodes their results.
package task

import (
	"time"

	"go.uber.org/zap"

	"github.com/copyleftdev/calclab/internal/derivative"
	apperrors "github.com/copyleftdev/calclab/internal/errors"
	"github.com/copyleftdev/calclab/internal/expr"
	"github.com/copyleftdev/calclab/internal/optimization"
)

// Settings are engine limits that callers cannot override per request.
// Zero values select the package defaults of the engines.
type Settings struct {
	MaxIterations int
	CurveSamples  int
	DiffSamples   int
	SweepSteps    int
	SweepFactor   float64
}

// Runner executes tasks. It holds only immutable settings and may be shared
// between goroutines.
type Runner struct {
	settings Settings
	logger   *zap.Logger
	engine   *derivative.Engine
}

// NewRunner creates a runner. A nil logger disables logging.
func NewRunner(settings Settings, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		settings: settings,
		logger:   logger,
		engine:   derivative.NewEngine(logger),
	}
}

// Handle parses, validates and runs req.
func (r *Runner) Handle(req Request) (*Result, error) {
	p, err := ParseRequest(req)
	if err != nil {
		return nil, err
	}
	return r.Run(p)
}

// Run compiles the function and dispatches on the task kind. It expects
// Params from ParseRequest; only the kind is checked again, before the
// function is compiled. Errors from the compiler and the engines are
// returned unchanged.
func (r *Runner) Run(p Params) (*Result, error) {
	var run func(*expr.Function, Params) (*Result, error)
	switch p.Kind {
	case KindMinimize:
		run = r.minimize
	case KindDifferentiate:
		run = r.differentiate
	default:
		return nil, apperrors.Validation("unknown task %q", string(p.Kind))
	}

	start := time.Now()
	f, err := expr.Compile(p.Func)
	if err != nil {
		return nil, err
	}

	res, err := run(f, p)
	if err != nil {
		r.logger.Debug("Task failed",
			zap.String("task", string(p.Kind)),
			zap.String("function", p.Func),
			zap.Error(err),
		)
		return nil, err
	}

	r.logger.Info("Task completed",
		zap.String("task", string(p.Kind)),
		zap.String("function", p.Func),
		zap.Duration("duration", time.Since(start)),
	)
	return res, nil
}

func (r *Runner) minimize(f *expr.Function, p Params) (*Result, error) {
	opt, err := optimization.New(p.Method, r.logger)
	if err != nil {
		return nil, err
	}
	out, err := opt.Optimize(optimization.OptimizerConfig{
		Objective:     f.Eval,
		A:             p.A,
		B:             p.B,
		Eps:           p.Eps,
		MaxIterations: r.settings.MaxIterations,
	})
	if err != nil {
		return nil, err
	}
	return &Result{
		Kind: KindMinimize,
		Minimization: &Minimization{
			Method:     out.Method,
			Curve:      optimization.SampleCurve(f.Eval, p.A, p.B, r.settings.CurveSamples),
			Iterations: out.History,
			XMin:       out.BestSolution.X,
			FMin:       out.BestSolution.Value,
		},
	}, nil
}

func (r *Runner) differentiate(f *expr.Function, p Params) (*Result, error) {
	out, err := r.engine.Analyze(f, derivative.Config{
		A:           p.A,
		B:           p.B,
		H:           p.H,
		Samples:     r.settings.DiffSamples,
		Sweep:       p.Sweep,
		SweepSteps:  r.settings.SweepSteps,
		SweepFactor: r.settings.SweepFactor,
	})
	if err != nil {
		return nil, err
	}
	return &Result{Kind: KindDifferentiate, Differentiation: out}, nil
}
