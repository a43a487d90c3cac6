package config

import (
	"errors"
	"path/filepath"
	"sort"
	"testing"

	"github.com/san-kum/cartpoles/internal/dynamo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Len(t, cfg.Poles, 1)
	assert.Equal(t, "rk4", cfg.Integrator)
	assert.Equal(t, LQRContinuous, cfg.LQR.Mode)
	assert.Greater(t, cfg.Dt, 0.0)
	assert.Equal(t, 1000, cfg.Steps())

	p, err := cfg.Params()
	require.NoError(t, err)
	assert.Equal(t, 9.81, p.Gravity)
}

func TestGetPreset(t *testing.T) {
	tests := []struct {
		name  string
		poles int
	}{
		{"single", 1},
		{"double", 2},
		{"triple", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetPreset(tt.name)
			require.NotNil(t, cfg)
			assert.Len(t, cfg.Poles, tt.poles)
			assert.Equal(t, 2+2*tt.poles, cfg.StateDim())

			_, err := cfg.Params()
			assert.NoError(t, err)
			q, r, err := cfg.Weights()
			require.NoError(t, err)
			assert.Equal(t, cfg.StateDim(), q.SymmetricDim())
			assert.Equal(t, 1, r.SymmetricDim())
		})
	}
}

func TestGetPreset_Fresh(t *testing.T) {
	a := GetPreset("double")
	a.Poles[0].Mass = 42
	b := GetPreset("double")
	assert.NotEqual(t, 42.0, b.Poles[0].Mass)
}

func TestGetPreset_NotFound(t *testing.T) {
	assert.Nil(t, GetPreset("nonexistent"))
}

func TestListPresets(t *testing.T) {
	names := ListPresets()
	sort.Strings(names)
	assert.Equal(t, []string{"double", "single", "triple"}, names)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rig.yaml")
	cfg := GetPreset("double")
	cfg.Seed = 7
	cfg.InitialState = []float64{0, 0, 0.1, 0, -0.1, 0}
	cfg.SystemNoise = [][]float64{
		{1e-6, 0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0, 0},
		{0, 0, 1e-6, 0, 0, 0},
		{0, 0, 0, 0, 0, 0},
		{0, 0, 0, 0, 1e-6, 0},
		{0, 0, 0, 0, 0, 0},
	}
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	sc, err := loaded.SimConfig()
	require.NoError(t, err)
	require.NotNil(t, sc.SystemNoise)
	assert.Equal(t, 1e-6, sc.SystemNoise.At(4, 4))
	assert.Equal(t, uint64(7), sc.Seed)

	x0, err := loaded.InitState()
	require.NoError(t, err)
	assert.Equal(t, dynamo.State{0, 0, 0.1, 0, -0.1, 0}, x0)
}

func TestConversionErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		call   func(*Config) error
		want   error
	}{
		{
			name:   "no poles",
			mutate: func(c *Config) { c.Poles = nil },
			call:   func(c *Config) error { _, err := c.Params(); return err },
			want:   dynamo.ErrInvalidParameters,
		},
		{
			name:   "negative pole mass",
			mutate: func(c *Config) { c.Poles[0].Mass = -1 },
			call:   func(c *Config) error { _, err := c.Params(); return err },
			want:   dynamo.ErrInvalidParameters,
		},
		{
			name:   "noise rows",
			mutate: func(c *Config) { c.SystemNoise = [][]float64{{1}} },
			call:   func(c *Config) error { _, err := c.SimConfig(); return err },
			want:   dynamo.ErrDimensionMismatch,
		},
		{
			name: "asymmetric noise",
			mutate: func(c *Config) {
				c.SystemNoise = [][]float64{{1, 0, 0, 0}, {1, 1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}}
			},
			call: func(c *Config) error { _, err := c.SimConfig(); return err },
			want: dynamo.ErrInvalidParameters,
		},
		{
			name:   "initial state length",
			mutate: func(c *Config) { c.InitialState = []float64{0, 0} },
			call:   func(c *Config) error { _, err := c.InitState(); return err },
			want:   dynamo.ErrDimensionMismatch,
		},
		{
			name:   "q length",
			mutate: func(c *Config) { c.LQR.Q = []float64{1, 2} },
			call:   func(c *Config) error { _, _, err := c.Weights(); return err },
			want:   dynamo.ErrDimensionMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := tt.call(cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}
