package sim

import (
	"context"
	"log/slog"
	"math/rand/v2"

	"github.com/san-kum/cartpoles/internal/dynamo"
	"github.com/san-kum/cartpoles/internal/physics"
	"golang.org/x/sync/errgroup"
)

// Ensemble runs independent simulations of one plant concurrently. Run i owns
// its own Simulator and a random source seeded from SeedStart+i, so results are
// reproducible regardless of scheduling.
type Ensemble struct {
	Plant     *physics.CartPoles
	Config    Config
	Runs      int
	SeedStart uint64

	// NewController builds the controller for one run; nil runs open loop.
	NewController func(run int, s *Simulator) (dynamo.Controller, error)
	// NewMetrics builds fresh metrics for one run.
	NewMetrics func() []dynamo.Metric

	Logger *slog.Logger
}

// Run executes every member from x0 (nil samples a random start per run) for
// the given number of steps. The first error cancels the remaining runs.
func (e *Ensemble) Run(ctx context.Context, x0 dynamo.State, steps int) ([]*Result, error) {
	results := make([]*Result, e.Runs)
	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < e.Runs; i++ {
		g.Go(func() error {
			cfg := e.Config
			cfg.Seed = e.SeedStart + uint64(i)
			rng := rand.New(rand.NewPCG(cfg.Seed, uint64(i)))

			logger := e.Logger
			if logger != nil {
				logger = logger.With(slog.Int("run", i))
			}
			s, err := New(e.Plant, cfg, rng, logger)
			if err != nil {
				return err
			}
			if e.NewMetrics != nil {
				for _, m := range e.NewMetrics() {
					s.AddMetric(m)
				}
			}
			if _, _, err := s.Reset(x0); err != nil {
				return err
			}

			var ctrl dynamo.Controller
			if e.NewController != nil {
				if ctrl, err = e.NewController(i, s); err != nil {
					return err
				}
			}

			res, err := s.Run(gctx, ctrl, steps)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
