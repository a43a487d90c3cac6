package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/cartpoles/internal/config"
	"github.com/san-kum/cartpoles/internal/control"
	"github.com/san-kum/cartpoles/internal/dynamo"
	"github.com/san-kum/cartpoles/internal/lti"
	"github.com/san-kum/cartpoles/internal/metrics"
	"github.com/san-kum/cartpoles/internal/sim"
	"gonum.org/v1/gonum/mat"
)

// Synthesis is what a controller factory may use: the simulator (for its
// linear model) and the configured weights.
type Synthesis struct {
	Q, R    *mat.SymDense
	Horizon int
}

// ControllerFactory builds a controller around the upright operating point.
type ControllerFactory func(s *sim.Simulator, syn Synthesis) (dynamo.Controller, error)

type Registry struct {
	controllers map[string]ControllerFactory
}

func NewRegistry() *Registry {
	r := &Registry{
		controllers: make(map[string]ControllerFactory),
	}

	r.controllers[config.LQRNone] = func(s *sim.Simulator, _ Synthesis) (dynamo.Controller, error) {
		return control.NewNone(s.Plant().ControlDim()), nil
	}
	r.controllers[config.LQRContinuous] = func(s *sim.Simulator, syn Synthesis) (dynamo.Controller, error) {
		model, _ := s.Model()
		K, _, err := control.ContinuousGain(model.A, model.B, syn.Q, syn.R)
		if err != nil {
			return nil, err
		}
		ctrl, err := control.NewLQR(K, nil)
		if err != nil {
			return nil, err
		}
		return ctrl, nil
	}
	r.controllers[config.LQRDiscrete] = func(s *sim.Simulator, syn Synthesis) (dynamo.Controller, error) {
		_, d := s.Model()
		K, _, err := control.DiscreteGain(d.A, d.B, syn.Q, syn.R)
		if err != nil {
			return nil, err
		}
		ctrl, err := control.NewLQR(K, nil)
		if err != nil {
			return nil, err
		}
		return ctrl, nil
	}
	r.controllers[config.LQRFinite] = func(s *sim.Simulator, syn Synthesis) (dynamo.Controller, error) {
		if syn.Horizon <= 0 {
			return nil, fmt.Errorf("%w: finite horizon must be positive, got %d", dynamo.ErrInvalidParameters, syn.Horizon)
		}
		_, d := s.Model()
		models := make([]*lti.Discrete, syn.Horizon)
		for k := range models {
			models[k] = d
		}
		gains, _, err := control.FiniteHorizon(models, syn.Q, syn.R)
		if err != nil {
			return nil, err
		}
		ctrl, err := control.NewTimeVaryingLQR(gains, nil)
		if err != nil {
			return nil, err
		}
		return ctrl, nil
	}

	return r
}

func (r *Registry) GetController(mode string, s *sim.Simulator, syn Synthesis) (dynamo.Controller, error) {
	if mode == "" {
		mode = config.LQRNone
	}
	fn, ok := r.controllers[mode]
	if !ok {
		return nil, fmt.Errorf("%w: unknown lqr mode %q (available: %v)", dynamo.ErrInvalidParameters, mode, r.ListControllers())
	}
	return fn(s, syn)
}

func (r *Registry) ListControllers() []string {
	names := make([]string, 0, len(r.controllers))
	for name := range r.controllers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) DefaultMetrics(s *sim.Simulator) []dynamo.Metric {
	return []dynamo.Metric{
		metrics.NewUpright(s.Plant()),
		metrics.NewControlEffort(),
		metrics.NewExcursion(),
	}
}
