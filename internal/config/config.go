package config

import (
	"fmt"
	"os"

	"github.com/san-kum/cartpoles/internal/dynamo"
	"github.com/san-kum/cartpoles/internal/physics"
	"github.com/san-kum/cartpoles/internal/sim"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDt       = 0.01
	DefaultDuration = 10.0
	DefaultHorizon  = 200
)

// LQR modes.
const (
	LQRNone       = "none"
	LQRContinuous = "continuous"
	LQRDiscrete   = "discrete"
	LQRFinite     = "finite"
)

type Config struct {
	Cart             CartConfig   `yaml:"cart"`
	Motor            MotorConfig  `yaml:"motor"`
	Poles            []PoleConfig `yaml:"poles"`
	Gravity          float64      `yaml:"gravity"`
	Dt               float64      `yaml:"dt"`
	Duration         float64      `yaml:"duration"`
	Integrator       string       `yaml:"integrator"`
	Dynamics         string       `yaml:"dynamics"`
	Seed             uint64       `yaml:"seed"`
	Clamp            bool         `yaml:"clamp"`
	HistoryCap       int          `yaml:"history_cap"`
	SystemNoise      [][]float64  `yaml:"system_noise,omitempty"`
	MeasurementNoise float64      `yaml:"measurement_noise"`
	InitialState     []float64    `yaml:"initial_state,omitempty"`
	LQR              LQRConfig    `yaml:"lqr"`
}

type CartConfig struct {
	Mass     float64 `yaml:"mass"`
	Friction float64 `yaml:"friction"`
	MinX     float64 `yaml:"min_x"`
	MaxX     float64 `yaml:"max_x"`
}

type MotorConfig struct {
	Ra    float64 `yaml:"ra"`
	Jm    float64 `yaml:"jm"`
	Bm    float64 `yaml:"bm"`
	K     float64 `yaml:"k"`
	R     float64 `yaml:"r"`
	MinVa float64 `yaml:"min_va"`
	MaxVa float64 `yaml:"max_va"`
}

type PoleConfig struct {
	Mass     float64 `yaml:"mass"`
	Length   float64 `yaml:"length"`
	Friction float64 `yaml:"friction"`
}

// LQRConfig selects the feedback law. Q and R are diagonals; an empty Q
// weights every state by one and an empty R weights the voltage by one.
type LQRConfig struct {
	Mode    string    `yaml:"mode"`
	Q       []float64 `yaml:"q,omitempty"`
	R       []float64 `yaml:"r,omitempty"`
	Horizon int       `yaml:"horizon"`
}

// DefaultConfig is the single-pole rig under continuous LQR.
func DefaultConfig() *Config {
	p := physics.DefaultParams()
	cfg := &Config{
		Cart: CartConfig{
			Mass: p.Cart.Mass, Friction: p.Cart.Friction,
			MinX: p.Cart.MinX, MaxX: p.Cart.MaxX,
		},
		Motor: MotorConfig{
			Ra: p.Motor.Ra, Jm: p.Motor.Jm, Bm: p.Motor.Bm, K: p.Motor.K, R: p.Motor.R,
			MinVa: p.Motor.MinVa, MaxVa: p.Motor.MaxVa,
		},
		Gravity:    p.Gravity,
		Dt:         DefaultDt,
		Duration:   DefaultDuration,
		Integrator: "rk4",
		Dynamics:   sim.DynamicsNonlinear,
		LQR:        LQRConfig{Mode: LQRContinuous, Horizon: DefaultHorizon},
	}
	for _, pole := range p.Poles {
		cfg.Poles = append(cfg.Poles, PoleConfig{Mass: pole.Mass, Length: pole.Length, Friction: pole.Friction})
	}
	return cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Steps is the number of whole timesteps in Duration.
func (c *Config) Steps() int {
	if c.Dt <= 0 {
		return 0
	}
	return int(c.Duration/c.Dt + 0.5)
}

func (c *Config) StateDim() int { return 2 + 2*len(c.Poles) }

// Params converts the physical sections and validates them.
func (c *Config) Params() (physics.Params, error) {
	p := physics.Params{
		Cart: physics.Cart{
			Mass: c.Cart.Mass, Friction: c.Cart.Friction,
			MinX: c.Cart.MinX, MaxX: c.Cart.MaxX,
		},
		Motor: physics.Motor{
			Ra: c.Motor.Ra, Jm: c.Motor.Jm, Bm: c.Motor.Bm, K: c.Motor.K, R: c.Motor.R,
			MinVa: c.Motor.MinVa, MaxVa: c.Motor.MaxVa,
		},
		Gravity: c.Gravity,
	}
	for _, pole := range c.Poles {
		p.Poles = append(p.Poles, physics.Pole{Mass: pole.Mass, Length: pole.Length, Friction: pole.Friction})
	}
	if err := p.Validate(); err != nil {
		return physics.Params{}, err
	}
	return p, nil
}

// SimConfig converts the simulation sections.
func (c *Config) SimConfig() (sim.Config, error) {
	sc := sim.Config{
		Dt:               c.Dt,
		Integrator:       c.Integrator,
		Dynamics:         c.Dynamics,
		Seed:             c.Seed,
		MeasurementNoise: c.MeasurementNoise,
		Clamp:            c.Clamp,
		HistoryCap:       c.HistoryCap,
	}
	if len(c.SystemNoise) > 0 {
		cov, err := c.noiseCovariance()
		if err != nil {
			return sim.Config{}, err
		}
		sc.SystemNoise = cov
	}
	return sc, nil
}

func (c *Config) noiseCovariance() (*mat.SymDense, error) {
	n := c.StateDim()
	if len(c.SystemNoise) != n {
		return nil, fmt.Errorf("%w: system_noise has %d rows, want %d", dynamo.ErrDimensionMismatch, len(c.SystemNoise), n)
	}
	for i, row := range c.SystemNoise {
		if len(row) != n {
			return nil, fmt.Errorf("%w: system_noise row %d has %d columns, want %d", dynamo.ErrDimensionMismatch, i, len(row), n)
		}
	}
	cov := mat.NewSymDense(n, nil)
	for i, row := range c.SystemNoise {
		for j := i; j < n; j++ {
			if row[j] != c.SystemNoise[j][i] {
				return nil, fmt.Errorf("%w: system_noise is not symmetric at (%d,%d)", dynamo.ErrInvalidParameters, i, j)
			}
			cov.SetSym(i, j, row[j])
		}
	}
	return cov, nil
}

// InitState returns the configured initial state, or nil to request a
// sampled one.
func (c *Config) InitState() (dynamo.State, error) {
	if len(c.InitialState) == 0 {
		return nil, nil
	}
	if len(c.InitialState) != c.StateDim() {
		return nil, fmt.Errorf("%w: initial_state has %d components, want %d", dynamo.ErrDimensionMismatch, len(c.InitialState), c.StateDim())
	}
	return dynamo.State(c.InitialState).Clone(), nil
}

// Weights returns the diagonal LQR weights Q and R.
func (c *Config) Weights() (Q, R *mat.SymDense, err error) {
	n := c.StateDim()
	q, err := diagonal("q", c.LQR.Q, n)
	if err != nil {
		return nil, nil, err
	}
	r, err := diagonal("r", c.LQR.R, 1)
	if err != nil {
		return nil, nil, err
	}
	return q, r, nil
}

func diagonal(name string, d []float64, n int) (*mat.SymDense, error) {
	out := mat.NewSymDense(n, nil)
	if len(d) == 0 {
		for i := 0; i < n; i++ {
			out.SetSym(i, i, 1)
		}
		return out, nil
	}
	if len(d) != n {
		return nil, fmt.Errorf("%w: lqr.%s has %d entries, want %d", dynamo.ErrDimensionMismatch, name, len(d), n)
	}
	for i, v := range d {
		out.SetSym(i, i, v)
	}
	return out, nil
}
