package optim

import (
	"context"
	"math"
	"testing"

	"github.com/san-kum/cartpoles/internal/config"
	"github.com/san-kum/cartpoles/internal/dynamo"
	"github.com/san-kum/cartpoles/internal/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shortRun() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Duration = 0.5
	cfg.InitialState = []float64{0, 0, 0.05, 0}
	return cfg
}

func TestWeightBuilder(t *testing.T) {
	base := shortRun()
	base.LQR.Q = []float64{2, 1, 3, 1}

	cfg, err := WeightBuilder(base)(map[string]float64{"q_x": 10, "q_theta": 2, "r": 0.5})
	require.NoError(t, err)
	assert.Equal(t, []float64{20, 10, 6, 2}, cfg.LQR.Q)
	assert.Equal(t, []float64{0.5}, cfg.LQR.R)
	assert.Equal(t, []float64{2, 1, 3, 1}, base.LQR.Q, "base must not change")

	_, err = WeightBuilder(base)(map[string]float64{"r": 0})
	assert.ErrorIs(t, err, dynamo.ErrInvalidParameters)
}

func TestGridSearchVisitsEveryPoint(t *testing.T) {
	gs, err := NewGridSearch([]string{"q_x", "r"}, [][]float64{{1, 10}, {0.1, 1, 10}}, nil)
	require.NoError(t, err)

	// Points are built and scored one at a time, so the score can rank the
	// point that was just built.
	var seen []map[string]float64
	build := WeightBuilder(shortRun())
	recording := func(p map[string]float64) (*config.Config, error) {
		seen = append(seen, p)
		return build(p)
	}
	score := func(res *sim.Result) float64 {
		p := seen[len(seen)-1]
		return math.Abs(p["q_x"]-10) + math.Abs(p["r"]-1)
	}

	best, bestScore, err := gs.Search(context.Background(), recording, score)
	require.NoError(t, err)
	assert.Len(t, seen, 6)
	assert.Equal(t, map[string]float64{"q_x": 10, "r": 1}, best)
	assert.Equal(t, 0.0, bestScore)
}

func TestGridSearchErrors(t *testing.T) {
	_, err := NewGridSearch([]string{"a"}, nil, nil)
	assert.ErrorIs(t, err, dynamo.ErrDimensionMismatch)

	gs, err := NewGridSearch([]string{"r"}, [][]float64{{-1, 0}}, nil)
	require.NoError(t, err)
	_, _, err = gs.Search(context.Background(), WeightBuilder(shortRun()), UprightEffort)
	assert.ErrorIs(t, err, dynamo.ErrNotStabilizable)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gs, err = NewGridSearch([]string{"r"}, [][]float64{{1}}, nil)
	require.NoError(t, err)
	_, _, err = gs.Search(ctx, WeightBuilder(shortRun()), UprightEffort)
	assert.ErrorIs(t, err, context.Canceled)
}
