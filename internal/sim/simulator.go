package sim

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/san-kum/cartpoles/internal/dynamo"
	"github.com/san-kum/cartpoles/internal/integrators"
	"github.com/san-kum/cartpoles/internal/lti"
	"github.com/san-kum/cartpoles/internal/physics"
	"gonum.org/v1/gonum/mat"
)

// resetAngle bounds the sampled initial pole angles, in radians (±15°).
const resetAngle = 15 * math.Pi / 180

// Simulator owns one cart-pole plant, its linear model and its history.
// It is single-threaded: run independent simulations on independent
// Simulators, each with its own random source.
type Simulator struct {
	plant  *physics.CartPoles
	cfg    Config
	integ  dynamo.Integrator
	rng    *rand.Rand
	noise  *integrators.Noise
	logger *slog.Logger

	model    *lti.Continuous
	discrete *lti.Discrete

	state   dynamo.State
	t       float64
	history *History

	metrics   []dynamo.Metric
	observers []dynamo.Observer
}

// New builds a simulator, linearizes the plant at the upright rest point with
// zero control, discretizes that model at cfg.Dt and resets to the rest point.
// A nil rng is replaced by a PCG source seeded from cfg.Seed.
func New(plant *physics.CartPoles, cfg Config, rng *rand.Rand, logger *slog.Logger) (*Simulator, error) {
	if plant == nil {
		return nil, fmt.Errorf("%w: nil plant", dynamo.ErrInvalidParameters)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	integ, err := integrators.Get(cfg.Integrator)
	if err != nil {
		return nil, err
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	}
	var cov mat.Symmetric
	if cfg.SystemNoise != nil {
		cov = cfg.SystemNoise
	}
	noise, err := integrators.NewNoise(plant.StateDim(), cov, rng)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Simulator{
		plant:   plant,
		cfg:     cfg,
		integ:   integ,
		rng:     rng,
		noise:   noise,
		logger:  logger,
		history: NewHistory(cfg.HistoryCap),
	}

	if err := s.Linearize(make(dynamo.State, plant.StateDim()), dynamo.Control{0}); err != nil {
		return nil, err
	}
	if _, _, err := s.Reset(make(dynamo.State, plant.StateDim())); err != nil {
		return nil, err
	}

	logger.Debug("simulator ready",
		slog.Int("poles", plant.NumPoles()),
		slog.String("integrator", integ.Name()),
		slog.String("dynamics", cfg.Dynamics),
		slog.Float64("dt", cfg.Dt),
		slog.Bool("noise", noise.Enabled()),
		slog.Bool("clamp", cfg.Clamp),
	)
	return s, nil
}

func (s *Simulator) Plant() *physics.CartPoles { return s.plant }
func (s *Simulator) Config() Config            { return s.cfg }
func (s *Simulator) History() *History         { return s.history }
func (s *Simulator) Time() float64             { return s.t }

// State returns a copy of the current state.
func (s *Simulator) State() dynamo.State { return s.state.Clone() }

// Model returns the continuous and discrete models from the last linearization.
func (s *Simulator) Model() (*lti.Continuous, *lti.Discrete) { return s.model, s.discrete }

func (s *Simulator) AddMetric(m dynamo.Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o dynamo.Observer) { s.observers = append(s.observers, o) }

// Linearize recomputes (A, B) at the given operating point and (A_d, B_d) at
// the configured timestep. Nothing else re-linearizes.
func (s *Simulator) Linearize(x0 dynamo.State, u0 dynamo.Control) error {
	model, err := s.plant.Linearize(x0, u0)
	if err != nil {
		return err
	}
	discrete, err := model.Discretize(s.cfg.Dt)
	if err != nil {
		return err
	}
	s.model, s.discrete = model, discrete
	s.logger.Debug("linearized", slog.Any("x0", []float64(x0)), slog.Any("u0", []float64(u0)))
	return nil
}

// Reset starts a new history at x0. A nil x0 samples the cart position
// uniformly in 80% of the travel and each pole angle within ±15°, at rest.
func (s *Simulator) Reset(x0 dynamo.State) (dynamo.State, Info, error) {
	info := Info{Msg: "reset"}
	if x0 == nil {
		x0 = s.sample()
		info.Sampled = true
	} else if len(x0) != s.plant.StateDim() {
		return nil, info, fmt.Errorf("%w: initial state has %d components, want %d", dynamo.ErrDimensionMismatch, len(x0), s.plant.StateDim())
	}

	s.state = x0.Clone()
	s.t = 0
	s.history.Reset()
	zero := make(dynamo.Control, s.plant.ControlDim())
	s.history.Append(Entry{
		State:   s.state.Clone(),
		Control: zero,
		Torque:  s.plant.Torque(s.state, zero),
		Time:    0,
	})
	for _, m := range s.metrics {
		m.Reset()
	}
	return s.state.Clone(), info, nil
}

func (s *Simulator) sample() dynamo.State {
	x := make(dynamo.State, s.plant.StateDim())
	travel := s.plant.Travel()
	x[0] = 0.8 * (travel.Min + s.rng.Float64()*(travel.Max-travel.Min))
	for k := 0; k < s.plant.NumPoles(); k++ {
		x[2+2*k] = (2*s.rng.Float64() - 1) * resetAngle
	}
	return x
}

// Step advances the current state by dt under control u and returns the new
// state and the slope estimate of the integration scheme (zero in linear mode).
// The voltage is saturated to the motor range before it is applied.
func (s *Simulator) Step(dt float64, u dynamo.Control) (dynamo.State, dynamo.State, error) {
	if !(dt > 0) {
		return nil, nil, fmt.Errorf("%w: dt must be positive, got %g", dynamo.ErrInvalidParameters, dt)
	}
	if len(u) != s.plant.ControlDim() {
		return nil, nil, fmt.Errorf("%w: control has %d components, want %d", dynamo.ErrDimensionMismatch, len(u), s.plant.ControlDim())
	}
	u = s.plant.Saturate(u)

	var next, slope dynamo.State
	if s.cfg.Dynamics == DynamicsLinear {
		d, err := s.discreteFor(dt)
		if err != nil {
			return nil, nil, err
		}
		if next, err = d.Propagate(s.state, u); err != nil {
			return nil, nil, err
		}
		slope = make(dynamo.State, len(next))
	} else {
		next, slope = s.integ.Step(s.plant, s.state, u, s.t, dt)
	}

	if s.cfg.Clamp {
		next = s.plant.Clamp(next)
	}
	next = s.noise.Apply(next)

	s.state = next
	s.t += dt
	s.history.Append(Entry{
		State:   next.Clone(),
		Control: u,
		Torque:  s.plant.Torque(next, u),
		Time:    s.t,
	})
	return next.Clone(), slope, nil
}

// discreteFor returns the discrete model for dt, re-discretizing the current
// continuous model when dt differs from the configured one.
func (s *Simulator) discreteFor(dt float64) (*lti.Discrete, error) {
	if dt == s.discrete.Dt {
		return s.discrete, nil
	}
	return s.model.Discretize(dt)
}

// Measure returns x corrupted by zero-mean Gaussian noise of the configured
// variance in every component.
func (s *Simulator) Measure(x dynamo.State) dynamo.State {
	out := x.Clone()
	if s.cfg.MeasurementNoise == 0 {
		return out
	}
	sd := math.Sqrt(s.cfg.MeasurementNoise)
	for i := range out {
		out[i] += sd * s.rng.NormFloat64()
	}
	return out
}

func (s *Simulator) MaxHeight() float64 { return s.plant.MaxHeight() }

func (s *Simulator) EndHeight() float64 { return s.plant.EndHeight(s.state) }
