package optimization

import (
	"math"

	"go.uber.org/zap"
)

// Dichotomy halves the bracket each step using two probes placed
// symmetrically around its midpoint.
type Dichotomy struct {
	logger *zap.Logger
}

// NewDichotomy creates a dichotomy optimizer.
func NewDichotomy(logger *zap.Logger) *Dichotomy {
	return &Dichotomy{logger: nopIfNil(logger).Named("dichotomy")}
}

// Method implements Optimizer.
func (d *Dichotomy) Method() Method { return MethodDichotomy }

// Optimize implements Optimizer. The probes are mid-δ and mid+δ with
// δ = min(Delta, (hi-lo)/4); when f(y) <= f(z) the bracket keeps [lo, z],
// otherwise [y, hi].
func (d *Dichotomy) Optimize(config OptimizerConfig) (*OptimizationResult, error) {
	cfg, err := config.withDefaults()
	if err != nil {
		return nil, err
	}
	delta := cfg.Delta
	if delta == 0 {
		delta = cfg.Eps / 4
	}

	d.logger.Debug("Starting dichotomy",
		zap.Float64("a", cfg.A),
		zap.Float64("b", cfg.B),
		zap.Float64("eps", cfg.Eps),
		zap.Float64("delta", delta),
	)

	lo, hi := cfg.A, cfg.B
	history := make([]Iteration, 0, estimateIterations(hi-lo, cfg.Eps, 0.5))
	for k := 1; hi-lo >= cfg.Eps; k++ {
		if k > cfg.MaxIterations {
			return nil, iterationLimit(MethodDichotomy, cfg, lo, hi)
		}

		mid := (lo + hi) / 2
		offset := math.Min(delta, (hi-lo)/4)
		it := Iteration{K: k, Y: mid - offset, Z: mid + offset}
		if it.FY, err = probe(cfg.Objective, it.Y); err != nil {
			return nil, err
		}
		if it.FZ, err = probe(cfg.Objective, it.Z); err != nil {
			return nil, err
		}

		if it.FY <= it.FZ {
			hi = it.Z
			it.X, it.FX = it.Y, it.FY
		} else {
			lo = it.Y
			it.X, it.FX = it.Z, it.FZ
		}
		it.Lo, it.Hi, it.Length = lo, hi, hi-lo
		history = append(history, it)

		d.logger.Debug("Dichotomy step",
			zap.Int("k", k),
			zap.Float64("lo", lo),
			zap.Float64("hi", hi),
			zap.Float64("x", it.X),
			zap.Float64("fx", it.FX),
		)
	}

	return finish(MethodDichotomy, cfg, lo, hi, history)
}

// estimateIterations sizes the history slice for a bracket that shrinks by
// ratio per step.
func estimateIterations(length, eps, ratio float64) int {
	n := math.Ceil(math.Log(eps/length)/math.Log(ratio)) + 2
	if n < 1 || math.IsNaN(n) {
		return 1
	}
	return int(math.Min(n, DefaultMaxIterations))
}
