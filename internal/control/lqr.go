package control

import (
	"fmt"

	"github.com/san-kum/cartpoles/internal/dynamo"
	"github.com/san-kum/cartpoles/internal/lti"
	"gonum.org/v1/gonum/mat"
)

// ContinuousGain solves the continuous ARE and returns K = R⁻¹BᵀP with P.
func ContinuousGain(A, B, Q, R mat.Matrix) (*mat.Dense, *mat.SymDense, error) {
	P, err := SolveCARE(A, B, Q, R)
	if err != nil {
		return nil, nil, err
	}
	var BtP mat.Dense
	BtP.Mul(B.T(), P)
	var K mat.Dense
	if err := K.Solve(R, &BtP); err != nil {
		return nil, nil, fmt.Errorf("%w: control cost R is singular (%v)", dynamo.ErrSingular, err)
	}
	return &K, P, nil
}

// DiscreteGain solves the discrete ARE and returns K_d = (R + BᵀPB)⁻¹BᵀPA with P.
func DiscreteGain(A, B, Q, R mat.Matrix) (*mat.Dense, *mat.SymDense, error) {
	P, err := SolveDARE(A, B, Q, R)
	if err != nil {
		return nil, nil, err
	}
	K, err := discreteGain(A, B, R, P)
	if err != nil {
		return nil, nil, err
	}
	return K, P, nil
}

// FiniteHorizon computes one gain per stage for the time-varying models
// (A[k], B[k]), k = 0..N-1, running the cost-to-go recursion strictly
// backward. The last stage is seeded with the infinite-horizon solution of
// its own pair:
//
//	K[k] = (R + BₖᵀP[k+1]Bₖ)⁻¹·BₖᵀP[k+1]Aₖ
//	P[k] = AₖᵀP[k+1]Aₖ − AₖᵀP[k+1]Bₖ·K[k] + Q
func FiniteHorizon(models []*lti.Discrete, Q, R mat.Matrix) ([]*mat.Dense, []*mat.SymDense, error) {
	N := len(models)
	if N == 0 {
		return nil, nil, fmt.Errorf("%w: finite horizon needs at least one stage", dynamo.ErrInvalidParameters)
	}
	n, m := models[0].StateDim(), models[0].ControlDim()
	for k, md := range models {
		if md.StateDim() != n || md.ControlDim() != m {
			return nil, nil, fmt.Errorf("%w: stage %d is %dx%d, want %dx%d", dynamo.ErrDimensionMismatch, k, md.StateDim(), md.ControlDim(), n, m)
		}
	}

	gains := make([]*mat.Dense, N)
	costs := make([]*mat.SymDense, N)

	last := models[N-1]
	K, P, err := DiscreteGain(last.A, last.B, Q, R)
	if err != nil {
		return nil, nil, fmt.Errorf("stage %d: %w", N-1, err)
	}
	gains[N-1], costs[N-1] = K, P

	for k := N - 2; k >= 0; k-- {
		A, B := models[k].A, models[k].B
		next := costs[k+1]

		Kk, err := discreteGain(A, B, R, next)
		if err != nil {
			return nil, nil, fmt.Errorf("stage %d: %w", k, err)
		}

		var AtP, AtPB, Pk, tmp mat.Dense
		AtP.Mul(A.T(), next)
		Pk.Mul(&AtP, A)
		AtPB.Mul(&AtP, B)
		tmp.Mul(&AtPB, Kk)
		Pk.Sub(&Pk, &tmp)
		Pk.Add(&Pk, Q)

		gains[k] = Kk
		costs[k] = symmetrize(&Pk)
	}
	return gains, costs, nil
}

// Feedback returns the corrective control −K·(x − ref). A nil ref means the
// origin. Feedback does not check shapes: state components beyond the columns
// of K, and columns of K beyond len(x), are ignored. The LQR constructors
// reject gains whose shapes disagree.
func Feedback(K mat.Matrix, x, ref dynamo.State) dynamo.Control {
	rows, cols := K.Dims()
	u := make(dynamo.Control, rows)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols && j < len(x); j++ {
			target := 0.0
			if j < len(ref) {
				target = ref[j]
			}
			u[i] -= K.At(i, j) * (x[j] - target)
		}
	}
	return u
}

// checkGain requires a non-empty m×n gain, matching an optional target of length n.
func checkGain(k *mat.Dense, target dynamo.State) error {
	if k == nil || k.IsEmpty() {
		return fmt.Errorf("%w: empty gain", dynamo.ErrDimensionMismatch)
	}
	if _, cols := k.Dims(); target != nil && len(target) != cols {
		return fmt.Errorf("%w: target has %d components, gain has %d columns", dynamo.ErrDimensionMismatch, len(target), cols)
	}
	return nil
}

// LQR applies a single infinite-horizon gain around Target.
type LQR struct {
	K      *mat.Dense
	Target dynamo.State
}

func NewLQR(k *mat.Dense, target dynamo.State) (*LQR, error) {
	if err := checkGain(k, target); err != nil {
		return nil, err
	}
	return &LQR{K: k, Target: target}, nil
}

func (l *LQR) Compute(x dynamo.State, t float64) dynamo.Control {
	return Feedback(l.K, x, l.Target)
}

// TimeVaryingLQR applies K[k] on the k-th call and holds the last gain once
// the horizon is exhausted. It is stateful; call Reset before reusing it.
type TimeVaryingLQR struct {
	Gains  []*mat.Dense
	Target dynamo.State
	stage  int
}

// NewTimeVaryingLQR requires at least one gain, all of the same shape.
func NewTimeVaryingLQR(gains []*mat.Dense, target dynamo.State) (*TimeVaryingLQR, error) {
	if len(gains) == 0 {
		return nil, fmt.Errorf("%w: time-varying LQR needs at least one gain", dynamo.ErrInvalidParameters)
	}
	if err := checkGain(gains[0], target); err != nil {
		return nil, err
	}
	rows, cols := gains[0].Dims()
	for k, g := range gains[1:] {
		if g == nil || g.IsEmpty() {
			return nil, fmt.Errorf("%w: stage %d gain is empty", dynamo.ErrDimensionMismatch, k+1)
		}
		if r, c := g.Dims(); r != rows || c != cols {
			return nil, fmt.Errorf("%w: stage %d gain is %dx%d, want %dx%d", dynamo.ErrDimensionMismatch, k+1, r, c, rows, cols)
		}
	}
	return &TimeVaryingLQR{Gains: gains, Target: target}, nil
}

func (l *TimeVaryingLQR) Compute(x dynamo.State, t float64) dynamo.Control {
	k := l.stage
	if k >= len(l.Gains) {
		k = len(l.Gains) - 1
	}
	l.stage++
	return Feedback(l.Gains[k], x, l.Target)
}

// Stage is the index of the gain the next Compute will use.
func (l *TimeVaryingLQR) Stage() int { return l.stage }

func (l *TimeVaryingLQR) Reset() { l.stage = 0 }
