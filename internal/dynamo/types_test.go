package dynamo

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		state State
		valid bool
	}{
		{"empty", State{}, true},
		{"normal", State{1.0, 2.0, 3.0, 4.0}, true},
		{"zeros", State{0.0, 0.0}, true},
		{"with NaN", State{1.0, math.NaN()}, false},
		{"with +Inf", State{1.0, math.Inf(1)}, false},
		{"with -Inf", State{1.0, math.Inf(-1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.state.IsValid())
		})
	}
}

func TestState_Norm(t *testing.T) {
	tests := []struct {
		state    State
		expected float64
	}{
		{State{3, 4}, 5.0},
		{State{1, 0}, 1.0},
		{State{0, 0}, 0.0},
		{State{1, 1, 1, 1}, 2.0},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.expected, tt.state.Norm(), 1e-12, "Norm(%v)", tt.state)
	}
}

func TestState_Arithmetic(t *testing.T) {
	a := State{1, 2, 3}
	b := State{4, 5, 6}

	assert.Equal(t, State{5, 7, 9}, a.Add(b))
	assert.Equal(t, State{3, 3, 3}, b.Sub(a))
	assert.Equal(t, State{2, 4, 6}, a.Scale(2))
	assert.Equal(t, State{1, 2, 3}, a, "operands must not be modified")
}

func TestState_Clone(t *testing.T) {
	a := State{1, 2}
	c := a.Clone()
	c[0] = 9
	assert.Equal(t, 1.0, a[0])

	u := Control{3}
	v := u.Clone()
	v[0] = 0
	assert.Equal(t, 3.0, u[0])
}

type fakeSystem struct{ n, m int }

func (f fakeSystem) Derive(x State, u Control, t float64) State { return make(State, f.n) }
func (f fakeSystem) StateDim() int                              { return f.n }
func (f fakeSystem) ControlDim() int                            { return f.m }

func TestCheckDims(t *testing.T) {
	sys := fakeSystem{n: 4, m: 1}

	assert.NoError(t, CheckDims(sys, State{0, 0, 0, 0}, Control{1}))
	assert.NoError(t, CheckDims(sys, State{0, 0, 0, 0}, nil))
	assert.ErrorIs(t, CheckDims(sys, State{0, 0}, Control{1}), ErrDimensionMismatch)
	assert.ErrorIs(t, CheckDims(sys, State{0, 0, 0, 0}, Control{1, 2}), ErrDimensionMismatch)
}

func TestSimulationError(t *testing.T) {
	err := &SimulationError{Step: 3, Time: 0.03, State: State{math.NaN()}, Wrapped: ErrInvalidState}

	assert.Equal(t, "step 3 (t=0.0300): "+ErrInvalidState.Error(), err.Error())
	var se *SimulationError
	require.True(t, errors.As(error(err), &se))
	assert.True(t, errors.Is(err, ErrInvalidState))
}
