package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for model construction, synthesis and simulation.
var (
	// ErrInvalidState indicates a state vector containing NaN or Inf.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrInvalidParameters indicates malformed physical parameters or configuration.
	ErrInvalidParameters = errors.New("dynamo: invalid parameters")

	// ErrDimensionMismatch indicates mismatched state/control/matrix dimensions.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and system")

	// ErrSingular indicates a numerically singular discretization or linear solve.
	ErrSingular = errors.New("dynamo: numerically singular system")

	// ErrNotStabilizable indicates a Riccati equation without a stabilizing PSD solution.
	ErrNotStabilizable = errors.New("dynamo: system is not stabilizable")

	// ErrUnknownIntegrator indicates an integrator name that is not registered.
	ErrUnknownIntegrator = errors.New("dynamo: unknown integrator")

	// ErrUnknownDynamics indicates a dynamics mode other than linear or nonlinear.
	ErrUnknownDynamics = errors.New("dynamo: unknown dynamics mode")
)

// SimulationError wraps an error with simulation context.
type SimulationError struct {
	Step    int
	Time    float64
	State   State
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
