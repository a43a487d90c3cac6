package optim

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/cartpoles/internal/config"
	"github.com/san-kum/cartpoles/internal/dynamo"
	"github.com/san-kum/cartpoles/internal/experiment"
	"github.com/san-kum/cartpoles/internal/sim"
)

// Builder turns one grid point into a rig configuration.
type Builder func(params map[string]float64) (*config.Config, error)

// Score ranks a finished run; lower is better.
type Score func(res *sim.Result) float64

// GridSearch evaluates every combination of the parameter ranges and keeps
// the lowest score. Combinations whose synthesis or run fails are skipped.
type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	logger     *slog.Logger
}

func NewGridSearch(params []string, ranges [][]float64, logger *slog.Logger) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("%w: %d parameter names for %d ranges", dynamo.ErrDimensionMismatch, len(params), len(ranges))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GridSearch{paramNames: params, ranges: ranges, logger: logger}, nil
}

// Search returns the best parameters and their score. It fails only when the
// context ends or no combination could be evaluated.
func (g *GridSearch) Search(ctx context.Context, build Builder, score Score) (map[string]float64, float64, error) {
	best := math.Inf(1)
	var bestParams map[string]float64

	if err := g.searchRecursive(ctx, 0, make(map[string]float64), build, score, &best, &bestParams); err != nil {
		return nil, 0, err
	}
	if bestParams == nil {
		return nil, 0, fmt.Errorf("%w: no grid point produced a stabilizing run", dynamo.ErrNotStabilizable)
	}
	return bestParams, best, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	build Builder,
	score Score,
	best *float64,
	bestParams *map[string]float64,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(g.paramNames) {
		cfg, err := build(current)
		if err != nil {
			g.logger.Debug("grid point rejected", slog.Any("params", current), slog.Any("err", err))
			return nil
		}

		result, err := experiment.New(cfg, g.logger).Run(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			g.logger.Debug("grid point failed", slog.Any("params", current), slog.Any("err", err))
			return nil
		}

		val := score(result)
		if val < *best {
			*best = val
			*bestParams = make(map[string]float64)
			for k, v := range current {
				(*bestParams)[k] = v
			}
		}
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, build, score, best, bestParams); err != nil {
			return err
		}
	}
	return nil
}

// WeightBuilder scales the LQR weights of base: "q_x" multiplies the cart
// entries of Q, "q_theta" the pole entries and "r" the voltage weight.
func WeightBuilder(base *config.Config) Builder {
	return func(params map[string]float64) (*config.Config, error) {
		cfg := *base
		n := cfg.StateDim()
		q := make([]float64, n)
		for i := range q {
			q[i] = 1
			if i < len(base.LQR.Q) {
				q[i] = base.LQR.Q[i]
			}
		}
		if s, ok := params["q_x"]; ok {
			q[0] *= s
			q[1] *= s
		}
		if s, ok := params["q_theta"]; ok {
			for i := 2; i < n; i++ {
				q[i] *= s
			}
		}
		r := 1.0
		if len(base.LQR.R) > 0 {
			r = base.LQR.R[0]
		}
		if s, ok := params["r"]; ok {
			r *= s
		}
		if !(r > 0) {
			return nil, fmt.Errorf("%w: voltage weight must be positive", dynamo.ErrInvalidParameters)
		}
		cfg.LQR.Q = q
		cfg.LQR.R = []float64{r}
		return &cfg, nil
	}
}

// UprightEffort penalizes time spent fallen, then voltage.
func UprightEffort(res *sim.Result) float64 {
	return 100*(1-res.Metrics["upright"]) + res.Metrics["control_effort"]
}
