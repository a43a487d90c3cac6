package dynamo

import (
	"fmt"
	"math"
)

// State is the generalized-coordinate vector [x, ẋ, θ₁, θ̇₁, …, θ_N, θ̇_N].
type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func (s State) Add(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] + other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

func (s State) Scale(factor float64) State {
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] * factor
	}
	return result
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] - other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

// Control holds the actuator inputs; for the cart it is the single motor voltage Va.
type Control []float64

func (u Control) Clone() Control {
	c := make(Control, len(u))
	copy(c, u)
	return c
}

// System is a time-invariant ODE dX/dt = f(X, u). The time argument is
// carried for integrators that need it and may be ignored.
type System interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

// Integrator advances a state by one timestep and reports the slope it used.
type Integrator interface {
	Name() string
	Step(dyn System, x State, u Control, t, dt float64) (next State, slope State)
}

type Controller interface {
	Compute(x State, t float64) Control
}

type Metric interface {
	Name() string
	Observe(x State, u Control, t float64)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(x State, u Control, t float64)
}

// CheckDims verifies that x and u match the dimensions of dyn.
func CheckDims(dyn System, x State, u Control) error {
	if len(x) != dyn.StateDim() {
		return fmt.Errorf("%w: state has %d components, want %d", ErrDimensionMismatch, len(x), dyn.StateDim())
	}
	if u != nil && len(u) != dyn.ControlDim() {
		return fmt.Errorf("%w: control has %d components, want %d", ErrDimensionMismatch, len(u), dyn.ControlDim())
	}
	return nil
}
