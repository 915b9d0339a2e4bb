// Package derivative estimates first derivatives with finite differences and
// measures the estimates against the symbolic derivative.
package derivative

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"

	apperrors "github.com/copyleftdev/calclab/internal/errors"
	"github.com/copyleftdev/calclab/internal/expr"
)

const (
	DefaultSamples     = 201
	DefaultSweepSteps  = 16
	DefaultSweepFactor = 0.5
)

// Config describes one analysis run. Zero values of Samples, SweepSteps and
// SweepFactor select the defaults.
type Config struct {
	A, B float64
	H    float64

	Samples int

	Sweep       bool
	SweepSteps  int
	SweepFactor float64
}

// Row is one sample of the comparison table.
type Row struct {
	X        float64
	F        float64
	Exact    float64
	Forward  float64
	Backward float64
	Central  float64
}

// RMSE holds the root-mean-square error of each scheme for step H.
type RMSE struct {
	H        float64
	Forward  float64
	Backward float64
	Central  float64
}

// Result is the output of Analyze.
type Result struct {
	// Derivative is the rendered symbolic derivative.
	Derivative string
	H          float64
	Rows       []Row
	AtH        RMSE
	// Sweep is nil unless Config.Sweep is set.
	Sweep []RMSE
}

// Engine runs finite-difference analyses. It holds no per-run state.
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates an engine. A nil logger disables logging.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger.Named("derivative")}
}

func (c Config) withDefaults() (Config, error) {
	if c.Samples == 0 {
		c.Samples = DefaultSamples
	}
	if c.SweepSteps == 0 {
		c.SweepSteps = DefaultSweepSteps
	}
	if c.SweepFactor == 0 {
		c.SweepFactor = DefaultSweepFactor
	}

	switch {
	case math.IsNaN(c.A) || math.IsInf(c.A, 0) || math.IsNaN(c.B) || math.IsInf(c.B, 0):
		return c, apperrors.Validation("interval bounds must be finite, got [%g, %g]", c.A, c.B)
	case c.A >= c.B:
		return c, apperrors.Validation("interval start must be less than its end, got [%g, %g]", c.A, c.B)
	case !(c.H > 0) || math.IsInf(c.H, 1):
		return c, apperrors.Validation("h must be positive, got %g", c.H)
	case 2*c.H >= c.B-c.A:
		return c, apperrors.Validation("h = %g leaves no sample points: 2h must be less than b - a = %g", c.H, c.B-c.A)
	case c.Samples < 2:
		return c, apperrors.Validation("at least 2 samples are required, got %d", c.Samples)
	case c.SweepSteps < 1:
		return c, apperrors.Validation("sweep needs at least one step, got %d", c.SweepSteps)
	case !(c.SweepFactor > 0 && c.SweepFactor < 1):
		return c, apperrors.Validation("sweep factor must be in (0, 1), got %g", c.SweepFactor)
	}
	return c, nil
}

// Analyze tabulates f, its exact derivative and the forward, backward and
// central estimates with step H over Samples points of [A+H, B-H], so every
// stencil stays inside [A, B]. Non-finite values are reported as they are.
func (e *Engine) Analyze(f *expr.Function, config Config) (*Result, error) {
	cfg, err := config.withDefaults()
	if err != nil {
		return nil, err
	}

	deriv, err := f.Derivative()
	if err != nil {
		return nil, err
	}

	xs := floats.Span(make([]float64, cfg.Samples), cfg.A+cfg.H, cfg.B-cfg.H)
	fx := make([]float64, len(xs))
	exact := make([]float64, len(xs))
	for i, x := range xs {
		fx[i] = f.Eval(x)
		exact[i] = deriv.Eval(x)
	}

	est := estimate(f.Eval, xs, fx, cfg.H)
	rows := make([]Row, len(xs))
	for i, x := range xs {
		rows[i] = Row{
			X:        x,
			F:        fx[i],
			Exact:    exact[i],
			Forward:  est.forward[i],
			Backward: est.backward[i],
			Central:  est.central[i],
		}
	}

	res := &Result{
		Derivative: deriv.String(),
		H:          cfg.H,
		Rows:       rows,
		AtH:        est.rmse(exact),
	}

	if cfg.Sweep {
		res.Sweep = make([]RMSE, 0, cfg.SweepSteps)
		res.Sweep = append(res.Sweep, res.AtH)
		h := cfg.H
		for i := 1; i < cfg.SweepSteps; i++ {
			h *= cfg.SweepFactor
			res.Sweep = append(res.Sweep, estimate(f.Eval, xs, fx, h).rmse(exact))
		}
	}

	e.logger.Debug("Finished derivative analysis",
		zap.String("function", f.Source()),
		zap.String("derivative", res.Derivative),
		zap.Float64("h", cfg.H),
		zap.Int("samples", len(rows)),
		zap.Float64("rmse_forward", res.AtH.Forward),
		zap.Float64("rmse_backward", res.AtH.Backward),
		zap.Float64("rmse_central", res.AtH.Central),
		zap.Int("sweep_rows", len(res.Sweep)),
	)

	return res, nil
}

type estimates struct {
	h                          float64
	forward, backward, central []float64
}

// estimate applies the three stencils at every x with step h. fx holds f(x)
// and is reused as the origin value of the one-sided formulas.
func estimate(f func(float64) float64, xs, fx []float64, h float64) estimates {
	est := estimates{
		h:        h,
		forward:  make([]float64, len(xs)),
		backward: make([]float64, len(xs)),
		central:  make([]float64, len(xs)),
	}
	for i, x := range xs {
		origin := fd.Settings{Step: h, OriginKnown: true, OriginValue: fx[i]}

		origin.Formula = fd.Forward
		est.forward[i] = fd.Derivative(f, x, &origin)
		origin.Formula = fd.Backward
		est.backward[i] = fd.Derivative(f, x, &origin)
		origin.Formula = fd.Central
		est.central[i] = fd.Derivative(f, x, &origin)
	}
	return est
}

func (est estimates) rmse(exact []float64) RMSE {
	return RMSE{
		H:        est.h,
		Forward:  rmse(est.forward, exact),
		Backward: rmse(est.backward, exact),
		Central:  rmse(est.central, exact),
	}
}

// rmse is sqrt(mean((est - exact)^2)).
func rmse(est, exact []float64) float64 {
	return floats.Distance(est, exact, 2) / math.Sqrt(float64(len(est)))
}
