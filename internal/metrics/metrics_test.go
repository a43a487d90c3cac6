package metrics

import (
	"math"
	"testing"

	"github.com/san-kum/cartpoles/internal/dynamo"
	"github.com/san-kum/cartpoles/internal/physics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControlEffort(t *testing.T) {
	m := NewControlEffort()
	assert.Equal(t, 0.0, m.Value())

	m.Observe(nil, dynamo.Control{2}, 0)
	m.Observe(nil, dynamo.Control{-4}, 0.01)
	assert.Equal(t, "control_effort", m.Name())
	assert.Equal(t, 3.0, m.Value())
	assert.Equal(t, 4.0, m.Peak())

	m.Reset()
	assert.Equal(t, 0.0, m.Value())
	assert.Equal(t, 0.0, m.Peak())
}

func TestUpright(t *testing.T) {
	plant, err := physics.New(physics.DefaultParams())
	require.NoError(t, err)

	tests := []struct {
		name    string
		state   dynamo.State
		upright bool
	}{
		{"rest", dynamo.State{0, 0, 0, 0}, true},
		{"small tilt", dynamo.State{0.5, 1, 0.3, 0.5}, true},
		{"large tilt", dynamo.State{0, 0, 0.6, 0}, false},
		{"spinning", dynamo.State{0, 0, 0, 1.5}, false},
		{"hanging", dynamo.State{0, 0, math.Pi, 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.upright, IsUpright(plant, tt.state))
		})
	}

	m := NewUpright(plant)
	assert.Equal(t, 0.0, m.Value())
	for _, tt := range tests {
		m.Observe(tt.state, dynamo.Control{0}, 0)
	}
	assert.InDelta(t, 2.0/5.0, m.Value(), 1e-12)

	m.Reset()
	assert.Equal(t, 0.0, m.Value())
}

func TestExcursion(t *testing.T) {
	m := NewExcursion()
	m.Observe(dynamo.State{0.2, 0}, nil, 0)
	m.Observe(dynamo.State{-0.5, 0}, nil, 0)
	m.Observe(dynamo.State{0.1, 0}, nil, 0)
	m.Observe(nil, nil, 0)
	assert.Equal(t, "excursion", m.Name())
	assert.Equal(t, 0.5, m.Value())

	m.Reset()
	assert.Equal(t, 0.0, m.Value())
}
