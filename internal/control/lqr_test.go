package control

import (
	"testing"

	"github.com/san-kum/cartpoles/internal/dynamo"
	"github.com/san-kum/cartpoles/internal/lti"
	"github.com/san-kum/cartpoles/internal/physics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestFeedbackSign(t *testing.T) {
	K := mat.NewDense(1, 2, []float64{2, 3})

	assert.Equal(t, dynamo.Control{-2*1 - 3*2}, Feedback(K, dynamo.State{1, 2}, nil))
	assert.Equal(t, dynamo.Control{-2 * 0.5}, Feedback(K, dynamo.State{1, 2}, dynamo.State{0.5, 2}))
	assert.Equal(t, dynamo.Control{0}, Feedback(K, dynamo.State{0, 0}, nil))
}

func TestLQRController(t *testing.T) {
	ctrl, err := NewLQR(mat.NewDense(1, 1, []float64{4}), dynamo.State{1})
	require.NoError(t, err)
	assert.Equal(t, dynamo.Control{-4}, ctrl.Compute(dynamo.State{2}, 0))
}

func TestTimeVaryingLQR(t *testing.T) {
	ctrl, err := NewTimeVaryingLQR([]*mat.Dense{
		mat.NewDense(1, 1, []float64{1}),
		mat.NewDense(1, 1, []float64{2}),
	}, nil)
	require.NoError(t, err)
	x := dynamo.State{1}

	assert.Equal(t, 0, ctrl.Stage())
	assert.Equal(t, dynamo.Control{-1}, ctrl.Compute(x, 0))
	assert.Equal(t, dynamo.Control{-2}, ctrl.Compute(x, 0.1))
	assert.Equal(t, dynamo.Control{-2}, ctrl.Compute(x, 0.2), "holds the last gain")
	assert.Equal(t, 3, ctrl.Stage())

	ctrl.Reset()
	assert.Equal(t, dynamo.Control{-1}, ctrl.Compute(x, 0))
}

func TestLQRGainShapes(t *testing.T) {
	K := mat.NewDense(1, 4, []float64{1, 2, 3, 4})

	tests := []struct {
		name  string
		build func() error
		want  error
	}{
		{"lqr nil gain", func() error { _, err := NewLQR(nil, nil); return err }, dynamo.ErrDimensionMismatch},
		{"lqr short target", func() error { _, err := NewLQR(K, dynamo.State{0, 0}); return err }, dynamo.ErrDimensionMismatch},
		{"lqr matching target", func() error { _, err := NewLQR(K, dynamo.State{0, 0, 0, 0}); return err }, nil},
		{"tv no gains", func() error { _, err := NewTimeVaryingLQR(nil, nil); return err }, dynamo.ErrInvalidParameters},
		{"tv mixed shapes", func() error {
			_, err := NewTimeVaryingLQR([]*mat.Dense{K, mat.NewDense(1, 2, []float64{1, 2})}, nil)
			return err
		}, dynamo.ErrDimensionMismatch},
		{"tv nil stage", func() error { _, err := NewTimeVaryingLQR([]*mat.Dense{K, nil}, nil); return err }, dynamo.ErrDimensionMismatch},
		{"tv long target", func() error { _, err := NewTimeVaryingLQR([]*mat.Dense{K}, make(dynamo.State, 6)); return err }, dynamo.ErrDimensionMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNone(t *testing.T) {
	assert.Equal(t, dynamo.Control{0}, NewNone(1).Compute(dynamo.State{1, 2, 3, 4}, 0))
}

func discreteModel(t *testing.T, a, b, dt float64) *lti.Discrete {
	t.Helper()
	d, err := lti.NewDiscrete(mat.NewDense(1, 1, []float64{a}), mat.NewDense(1, 1, []float64{b}), dt)
	require.NoError(t, err)
	return d
}

func TestFiniteHorizonTimeInvariant(t *testing.T) {
	d := discreteModel(t, 1, 1, 1)
	models := make([]*lti.Discrete, 50)
	for k := range models {
		models[k] = d
	}
	Q, R := mat.NewDense(1, 1, []float64{1}), mat.NewDense(1, 1, []float64{1})

	gains, costs, err := FiniteHorizon(models, Q, R)
	require.NoError(t, err)
	require.Len(t, gains, 50)
	require.Len(t, costs, 50)

	Kd, P, err := DiscreteGain(d.A, d.B, Q, R)
	require.NoError(t, err)
	assert.InDelta(t, Kd.At(0, 0), gains[49].At(0, 0), 1e-12)
	assert.InDelta(t, P.At(0, 0), costs[49].At(0, 0), 1e-12)
	assert.InDelta(t, Kd.At(0, 0), gains[0].At(0, 0), 1e-8)
}

func TestFiniteHorizonTimeVarying(t *testing.T) {
	models := []*lti.Discrete{
		discreteModel(t, 1.5, 1, 0.1),
		discreteModel(t, 1.2, 0.5, 0.1),
		discreteModel(t, 0.9, 1, 0.1),
	}
	Q, R := mat.NewDense(1, 1, []float64{1}), mat.NewDense(1, 1, []float64{0.1})

	gains, costs, err := FiniteHorizon(models, Q, R)
	require.NoError(t, err)

	// Stage 1 from the recursion on stage 2's cost.
	p2 := costs[2].At(0, 0)
	a, b := 1.2, 0.5
	k1 := b * p2 * a / (0.1 + b*p2*b)
	assert.InDelta(t, k1, gains[1].At(0, 0), 1e-12)
	assert.InDelta(t, a*p2*a-a*p2*b*k1+1, costs[1].At(0, 0), 1e-12)
	assert.NotEqual(t, gains[0].At(0, 0), gains[1].At(0, 0))
}

func TestFiniteHorizonErrors(t *testing.T) {
	Q, R := mat.NewDense(1, 1, []float64{1}), mat.NewDense(1, 1, []float64{1})

	_, _, err := FiniteHorizon(nil, Q, R)
	assert.ErrorIs(t, err, dynamo.ErrInvalidParameters)

	wide, err := lti.NewDiscrete(mat.NewDense(2, 2, nil), mat.NewDense(2, 1, nil), 1)
	require.NoError(t, err)
	_, _, err = FiniteHorizon([]*lti.Discrete{discreteModel(t, 1, 1, 1), wide}, Q, R)
	assert.ErrorIs(t, err, dynamo.ErrDimensionMismatch)
}

func TestCartPoleGains(t *testing.T) {
	for n := 1; n <= 3; n++ {
		p := physics.DefaultParams()
		p.Poles = nil
		for k := 0; k < n; k++ {
			p.Poles = append(p.Poles, physics.Pole{Mass: 0.2 - 0.05*float64(k), Length: 0.9 - 0.3*float64(k), Friction: 0.001})
		}
		plant, err := physics.New(p)
		require.NoError(t, err)

		model, err := plant.Linearize(make(dynamo.State, plant.StateDim()), dynamo.Control{0})
		require.NoError(t, err)
		d, err := model.Discretize(0.005)
		require.NoError(t, err)

		Q := identity(plant.StateDim())
		R := identity(1)

		K, _, err := ContinuousGain(model.A, model.B, Q, R)
		require.NoError(t, err, "%d poles", n)
		var cl mat.Dense
		cl.Mul(model.B, K)
		cl.Sub(model.A, &cl)
		assert.True(t, hurwitz(&cl), "%d poles continuous", n)

		Kd, _, err := DiscreteGain(d.A, d.B, Q, R)
		require.NoError(t, err, "%d poles", n)
		cl.Mul(d.B, Kd)
		cl.Sub(d.A, &cl)
		assert.True(t, schur(&cl), "%d poles discrete", n)
	}
}
