package experiment

import (
	"context"
	"log/slog"

	"github.com/san-kum/cartpoles/internal/config"
	"github.com/san-kum/cartpoles/internal/dynamo"
	"github.com/san-kum/cartpoles/internal/physics"
	"github.com/san-kum/cartpoles/internal/sim"
)

// Experiment is one configured rig: plant, simulator, controller and metrics.
type Experiment struct {
	cfg        *config.Config
	registry   *Registry
	logger     *slog.Logger
	simulator  *sim.Simulator
	controller dynamo.Controller
	synthesis  Synthesis
	params     physics.Params
	simCfg     sim.Config
}

func New(cfg *config.Config, logger *slog.Logger) *Experiment {
	if logger == nil {
		logger = slog.Default()
	}
	return &Experiment{
		cfg:      cfg,
		registry: NewRegistry(),
		logger:   logger,
	}
}

// Setup converts the configuration, builds the simulator and synthesizes the
// controller from the upright linearization.
func (e *Experiment) Setup() error {
	params, err := e.cfg.Params()
	if err != nil {
		return err
	}
	simCfg, err := e.cfg.SimConfig()
	if err != nil {
		return err
	}
	Q, R, err := e.cfg.Weights()
	if err != nil {
		return err
	}
	plant, err := physics.New(params)
	if err != nil {
		return err
	}
	s, err := sim.New(plant, simCfg, nil, e.logger)
	if err != nil {
		return err
	}
	syn := Synthesis{Q: Q, R: R, Horizon: e.cfg.LQR.Horizon}
	ctrl, err := e.registry.GetController(e.cfg.LQR.Mode, s, syn)
	if err != nil {
		return err
	}
	for _, m := range e.registry.DefaultMetrics(s) {
		s.AddMetric(m)
	}

	e.params, e.simCfg, e.synthesis = params, simCfg, syn
	e.simulator, e.controller = s, ctrl
	e.logger.Info("experiment ready",
		slog.Int("poles", plant.NumPoles()),
		slog.String("lqr", e.cfg.LQR.Mode),
		slog.Int("steps", e.cfg.Steps()),
	)
	return nil
}

// Run resets to the configured initial state (sampled when absent) and runs
// the configured number of steps.
func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	if e.simulator == nil {
		if err := e.Setup(); err != nil {
			return nil, err
		}
	}
	x0, err := e.cfg.InitState()
	if err != nil {
		return nil, err
	}
	if _, _, err := e.simulator.Reset(x0); err != nil {
		return nil, err
	}
	if tv, ok := e.controller.(interface{ Reset() }); ok {
		tv.Reset()
	}
	return e.simulator.Run(ctx, e.controller, e.cfg.Steps())
}

// RunEnsemble runs n independent copies seeded from the configured seed, each
// with its own controller and metrics.
func (e *Experiment) RunEnsemble(ctx context.Context, n int) ([]*sim.Result, error) {
	if e.simulator == nil {
		if err := e.Setup(); err != nil {
			return nil, err
		}
	}
	x0, err := e.cfg.InitState()
	if err != nil {
		return nil, err
	}
	ens := &sim.Ensemble{
		Plant:     e.simulator.Plant(),
		Config:    e.simCfg,
		Runs:      n,
		SeedStart: e.cfg.Seed,
		Logger:    e.logger,
		NewController: func(_ int, s *sim.Simulator) (dynamo.Controller, error) {
			return e.registry.GetController(e.cfg.LQR.Mode, s, e.synthesis)
		},
		NewMetrics: func() []dynamo.Metric {
			return e.registry.DefaultMetrics(e.simulator)
		},
	}
	return ens.Run(ctx, x0, e.cfg.Steps())
}

// Simulator returns the underlying simulator for adding observers.
func (e *Experiment) Simulator() *sim.Simulator {
	return e.simulator
}

func (e *Experiment) Controller() dynamo.Controller { return e.controller }
