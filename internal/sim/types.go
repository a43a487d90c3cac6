package sim

import (
	"fmt"

	"github.com/san-kum/cartpoles/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

const (
	DynamicsLinear    = "linear"
	DynamicsNonlinear = "nonlinear"
)

// Config is the construction-time configuration of a Simulator.
type Config struct {
	Dt         float64
	Integrator string // "fe" or "rk4"
	Dynamics   string // "linear" or "nonlinear"
	Seed       uint64

	// SystemNoise is the (2+2N)×(2+2N) process-noise covariance; nil means none.
	SystemNoise *mat.SymDense
	// MeasurementNoise is the variance added to every measured component.
	MeasurementNoise float64

	// Clamp enables the travel clamp and angle wrap after each step.
	Clamp bool
	// HistoryCap bounds the history; zero keeps every entry.
	HistoryCap int
}

func DefaultConfig() Config {
	return Config{
		Dt:         0.01,
		Integrator: "rk4",
		Dynamics:   DynamicsNonlinear,
	}
}

func (c Config) validate() error {
	if !(c.Dt > 0) {
		return fmt.Errorf("%w: dt must be positive, got %g", dynamo.ErrInvalidParameters, c.Dt)
	}
	switch c.Dynamics {
	case DynamicsLinear, DynamicsNonlinear:
	default:
		return fmt.Errorf("%w: %q", dynamo.ErrUnknownDynamics, c.Dynamics)
	}
	if c.MeasurementNoise < 0 {
		return fmt.Errorf("%w: measurement noise variance must be non-negative, got %g", dynamo.ErrInvalidParameters, c.MeasurementNoise)
	}
	if c.HistoryCap < 0 {
		return fmt.Errorf("%w: history cap must be non-negative, got %d", dynamo.ErrInvalidParameters, c.HistoryCap)
	}
	return nil
}

// Info accompanies a reset.
type Info struct {
	Msg     string
	Sampled bool
}

// Result summarizes a driver-loop run.
type Result struct {
	StepsTaken int
	Final      dynamo.State
	Metrics    map[string]float64
}
