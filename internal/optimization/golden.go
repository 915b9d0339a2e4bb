package optimization

import (
	"math"

	"go.uber.org/zap"
)

// InvPhi is the golden-section ratio (√5-1)/2.
var InvPhi = (math.Sqrt(5) - 1) / 2

// GoldenSection shrinks the bracket by InvPhi per step, reusing one probe
// from the previous step so that each step costs a single evaluation.
type GoldenSection struct {
	logger *zap.Logger
}

// NewGoldenSection creates a golden-section optimizer.
func NewGoldenSection(logger *zap.Logger) *GoldenSection {
	return &GoldenSection{logger: nopIfNil(logger).Named("golden")}
}

// Method implements Optimizer.
func (g *GoldenSection) Method() Method { return MethodGolden }

// Optimize implements Optimizer. Ties keep the left sub-bracket, as in
// dichotomy. Delta is ignored.
func (g *GoldenSection) Optimize(config OptimizerConfig) (*OptimizationResult, error) {
	cfg, err := config.withDefaults()
	if err != nil {
		return nil, err
	}

	g.logger.Debug("Starting golden section",
		zap.Float64("a", cfg.A),
		zap.Float64("b", cfg.B),
		zap.Float64("eps", cfg.Eps),
	)

	lo, hi := cfg.A, cfg.B
	history := make([]Iteration, 0, estimateIterations(hi-lo, cfg.Eps, InvPhi))
	if hi-lo < cfg.Eps {
		return finish(MethodGolden, cfg, lo, hi, history)
	}

	y := lo + (1-InvPhi)*(hi-lo)
	z := lo + InvPhi*(hi-lo)
	fy, err := probe(cfg.Objective, y)
	if err != nil {
		return nil, err
	}
	fz, err := probe(cfg.Objective, z)
	if err != nil {
		return nil, err
	}

	for k := 1; ; k++ {
		if k > cfg.MaxIterations {
			return nil, iterationLimit(MethodGolden, cfg, lo, hi)
		}

		it := Iteration{K: k, Y: y, Z: z, FY: fy, FZ: fz}
		leftKept := fy <= fz
		if leftKept {
			hi = z
			it.X, it.FX = y, fy
		} else {
			lo = y
			it.X, it.FX = z, fz
		}
		it.Lo, it.Hi, it.Length = lo, hi, hi-lo
		history = append(history, it)

		g.logger.Debug("Golden section step",
			zap.Int("k", k),
			zap.Float64("lo", lo),
			zap.Float64("hi", hi),
			zap.Float64("x", it.X),
			zap.Float64("fx", it.FX),
		)

		if hi-lo < cfg.Eps {
			break
		}

		if leftKept {
			z, fz = y, fy
			y = lo + (1-InvPhi)*(hi-lo)
			if fy, err = probe(cfg.Objective, y); err != nil {
				return nil, err
			}
		} else {
			y, fy = z, fz
			z = lo + InvPhi*(hi-lo)
			if fz, err = probe(cfg.Objective, z); err != nil {
				return nil, err
			}
		}
	}

	return finish(MethodGolden, cfg, lo, hi, history)
}
