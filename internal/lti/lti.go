// Package lti holds linear time-invariant models of the cart-pole plant.
//
// A [Continuous] model is the pair (A, B) of ẋ = A·x + B·u obtained by
// linearizing the nonlinear dynamics at an operating point. [Discretize]
// converts it into a [Discrete] pair (A_d, B_d) for a fixed timestep using
// the exact zero-order-hold transform:
//
//	exp([A B; 0 0]·dt) = [A_d B_d; 0 I]
//
// Models are recomputed only when a caller asks for it; nothing here tracks
// the operating point.
package lti

import (
	"fmt"
	"math"

	"github.com/san-kum/cartpoles/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// Continuous is ẋ = A·x + B·u.
type Continuous struct {
	A *mat.Dense
	B *mat.Dense
}

// NewContinuous copies A (n×n) and B (n×m) into a new model.
func NewContinuous(A, B mat.Matrix) (*Continuous, error) {
	if err := checkPair(A, B); err != nil {
		return nil, err
	}
	return &Continuous{A: mat.DenseCopyOf(A), B: mat.DenseCopyOf(B)}, nil
}

func (c *Continuous) StateDim() int {
	n, _ := c.A.Dims()
	return n
}

func (c *Continuous) ControlDim() int {
	_, m := c.B.Dims()
	return m
}

// Derive evaluates A·x + B·u, so the linear model can be integrated like the
// nonlinear one.
func (c *Continuous) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return affine(c.A, c.B, x, u)
}

// Discretize returns the zero-order-hold equivalent of c at timestep dt.
func (c *Continuous) Discretize(dt float64) (*Discrete, error) {
	ad, bd, err := Discretize(c.A, c.B, dt)
	if err != nil {
		return nil, err
	}
	return &Discrete{A: ad, B: bd, Dt: dt}, nil
}

// Discrete is x[k+1] = A·x[k] + B·u[k] for a fixed sample time Dt.
type Discrete struct {
	A  *mat.Dense
	B  *mat.Dense
	Dt float64
}

func NewDiscrete(A, B mat.Matrix, dt float64) (*Discrete, error) {
	if err := checkPair(A, B); err != nil {
		return nil, err
	}
	return &Discrete{A: mat.DenseCopyOf(A), B: mat.DenseCopyOf(B), Dt: dt}, nil
}

func (d *Discrete) StateDim() int {
	n, _ := d.A.Dims()
	return n
}

func (d *Discrete) ControlDim() int {
	_, m := d.B.Dims()
	return m
}

// Propagate returns A_d·x + B_d·u.
func (d *Discrete) Propagate(x dynamo.State, u dynamo.Control) (dynamo.State, error) {
	if len(x) != d.StateDim() {
		return nil, fmt.Errorf("%w: state has %d components, want %d", dynamo.ErrDimensionMismatch, len(x), d.StateDim())
	}
	if u != nil && len(u) != d.ControlDim() {
		return nil, fmt.Errorf("%w: control has %d components, want %d", dynamo.ErrDimensionMismatch, len(u), d.ControlDim())
	}
	return affine(d.A, d.B, x, u), nil
}

// Discretize computes (A_d, B_d) from the matrix exponential of the augmented
// system. It fails with dynamo.ErrSingular when the exponential is not finite.
func Discretize(A, B mat.Matrix, dt float64) (ad, bd *mat.Dense, err error) {
	if err := checkPair(A, B); err != nil {
		return nil, nil, err
	}
	if !(dt > 0) || math.IsInf(dt, 0) {
		return nil, nil, fmt.Errorf("%w: timestep must be positive and finite, got %g", dynamo.ErrInvalidParameters, dt)
	}
	if !finite(A) || !finite(B) {
		return nil, nil, fmt.Errorf("%w: model contains NaN or Inf", dynamo.ErrInvalidParameters)
	}
	n, _ := A.Dims()
	_, m := B.Dims()

	aug := mat.NewDense(n+m, n+m, nil)
	aug.Slice(0, n, 0, n).(*mat.Dense).Scale(dt, A)
	aug.Slice(0, n, n, n+m).(*mat.Dense).Scale(dt, B)

	var phi mat.Dense
	phi.Exp(aug)
	if !finite(&phi) {
		return nil, nil, fmt.Errorf("%w: matrix exponential diverged for dt=%g", dynamo.ErrSingular, dt)
	}

	ad = mat.DenseCopyOf(phi.Slice(0, n, 0, n))
	bd = mat.DenseCopyOf(phi.Slice(0, n, n, n+m))
	return ad, bd, nil
}

func checkPair(A, B mat.Matrix) error {
	if A == nil || B == nil {
		return fmt.Errorf("%w: A and B must both be set", dynamo.ErrDimensionMismatch)
	}
	ar, ac := A.Dims()
	br, _ := B.Dims()
	if ar != ac {
		return fmt.Errorf("%w: A is %dx%d, want square", dynamo.ErrDimensionMismatch, ar, ac)
	}
	if br != ar {
		return fmt.Errorf("%w: B has %d rows, A has %d", dynamo.ErrDimensionMismatch, br, ar)
	}
	return nil
}

func affine(A, B *mat.Dense, x dynamo.State, u dynamo.Control) dynamo.State {
	n, _ := A.Dims()
	out := mat.NewVecDense(n, nil)
	out.MulVec(A, mat.NewVecDense(len(x), x.Clone()))
	if len(u) > 0 {
		var bu mat.VecDense
		bu.MulVec(B, mat.NewVecDense(len(u), []float64(u.Clone())))
		out.AddVec(out, &bu)
	}
	return dynamo.State(out.RawVector().Data)
}

func finite(m mat.Matrix) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}
