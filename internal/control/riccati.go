package control

import (
	"fmt"
	"math"

	"github.com/san-kum/cartpoles/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

const (
	maxIterations = 100
	convergeTol   = 1e-12
	residualTol   = 1e-6
	signTol       = 1e-10
)

// SolveCARE returns the stabilizing solution P of the continuous algebraic
// Riccati equation
//
//	AᵀP + PA − PBR⁻¹BᵀP + Q = 0
//
// using the matrix sign function of the Hamiltonian
// H = [A, −BR⁻¹Bᵀ; −Q, −Aᵀ]. The stable invariant subspace of H is the null
// space of sign(H) + I, spanned by [I; P].
func SolveCARE(A, B, Q, R mat.Matrix) (*mat.SymDense, error) {
	n, err := checkLQR(A, B, Q, R)
	if err != nil {
		return nil, err
	}
	G, err := controlWeight(B, R)
	if err != nil {
		return nil, err
	}

	H := mat.NewDense(2*n, 2*n, nil)
	H.Slice(0, n, 0, n).(*mat.Dense).Copy(A)
	H.Slice(0, n, n, 2*n).(*mat.Dense).Scale(-1, G)
	H.Slice(n, 2*n, 0, n).(*mat.Dense).Scale(-1, Q)
	H.Slice(n, 2*n, n, 2*n).(*mat.Dense).Scale(-1, A.T())

	W, err := matrixSign(H)
	if err != nil {
		return nil, err
	}

	// [W12; W22 + I]·P = −[W11 + I; W21]
	lhs := mat.NewDense(2*n, n, nil)
	rhs := mat.NewDense(2*n, n, nil)
	lhs.Slice(0, n, 0, n).(*mat.Dense).Copy(W.Slice(0, n, n, 2*n))
	lhs.Slice(n, 2*n, 0, n).(*mat.Dense).Copy(W.Slice(n, 2*n, n, 2*n))
	rhs.Slice(0, n, 0, n).(*mat.Dense).Scale(-1, W.Slice(0, n, 0, n))
	rhs.Slice(n, 2*n, 0, n).(*mat.Dense).Scale(-1, W.Slice(n, 2*n, 0, n))
	for i := 0; i < n; i++ {
		lhs.Set(n+i, i, lhs.At(n+i, i)+1)
		rhs.Set(i, i, rhs.At(i, i)-1)
	}

	var P mat.Dense
	if err := P.Solve(lhs, rhs); err != nil {
		return nil, fmt.Errorf("%w: stable subspace is not a graph over the state (%v)", dynamo.ErrNotStabilizable, err)
	}
	sol := symmetrize(&P)

	// Residual AᵀP + PA − PGP + Q must vanish.
	var res, tmp mat.Dense
	res.Mul(A.T(), sol)
	tmp.Mul(sol, A)
	res.Add(&res, &tmp)
	tmp.Mul(sol, G)
	tmp.Mul(&tmp, sol)
	res.Sub(&res, &tmp)
	res.Add(&res, Q)
	if err := checkSolution(sol, &res, residualScale(A, Q, sol)); err != nil {
		return nil, err
	}

	// The closed loop A − GP must be Hurwitz.
	var cl mat.Dense
	cl.Mul(G, sol)
	cl.Sub(A, &cl)
	if !hurwitz(&cl) {
		return nil, fmt.Errorf("%w: continuous closed loop is not stable", dynamo.ErrNotStabilizable)
	}
	return sol, nil
}

// SolveDARE returns the stabilizing solution P of the discrete algebraic
// Riccati equation
//
//	P = AᵀPA − AᵀPB(R + BᵀPB)⁻¹BᵀPA + Q
//
// by the structure-preserving doubling algorithm, which converges
// quadratically whenever (A, B) is stabilizable.
func SolveDARE(A, B, Q, R mat.Matrix) (*mat.SymDense, error) {
	n, err := checkLQR(A, B, Q, R)
	if err != nil {
		return nil, err
	}
	G, err := controlWeight(B, R)
	if err != nil {
		return nil, err
	}

	Ak := mat.DenseCopyOf(A)
	Gk := mat.DenseCopyOf(G)
	Hk := mat.DenseCopyOf(Q)
	eye := identity(n)

	converged := false
	for iter := 0; iter < maxIterations; iter++ {
		// W = (I + G_k·H_k)⁻¹
		var IGH, W mat.Dense
		IGH.Mul(Gk, Hk)
		IGH.Add(&IGH, eye)
		if err := W.Inverse(&IGH); err != nil {
			return nil, fmt.Errorf("%w: doubling step %d is singular (%v)", dynamo.ErrNotStabilizable, iter, err)
		}

		var WA, WG mat.Dense
		WA.Mul(&W, Ak)
		WG.Mul(&W, Gk)

		var nextA, nextG, nextH mat.Dense
		nextA.Mul(Ak, &WA)

		nextG.Mul(Ak, &WG)
		nextG.Mul(&nextG, Ak.T())
		nextG.Add(Gk, &nextG)

		nextH.Mul(Ak.T(), Hk)
		nextH.Mul(&nextH, &WA)
		nextH.Add(Hk, &nextH)

		if !finite(&nextH) || !finite(&nextA) {
			return nil, fmt.Errorf("%w: doubling iteration diverged", dynamo.ErrNotStabilizable)
		}

		var diff mat.Dense
		diff.Sub(&nextH, Hk)
		delta := mat.Norm(&diff, 1)
		scale := mat.Norm(&nextH, 1)

		Ak, Gk, Hk = &nextA, &nextG, &nextH
		if delta <= convergeTol*math.Max(scale, 1) {
			converged = true
			break
		}
	}
	if !converged {
		return nil, fmt.Errorf("%w: doubling did not converge in %d iterations", dynamo.ErrNotStabilizable, maxIterations)
	}
	sol := symmetrize(Hk)

	K, err := discreteGain(A, B, R, sol)
	if err != nil {
		return nil, err
	}

	// Residual AᵀPA − AᵀPB·K + Q − P must vanish.
	var res, atp, atpb, tmp mat.Dense
	atp.Mul(A.T(), sol)
	res.Mul(&atp, A)
	atpb.Mul(&atp, B)
	tmp.Mul(&atpb, K)
	res.Sub(&res, &tmp)
	res.Add(&res, Q)
	res.Sub(&res, sol)
	if err := checkSolution(sol, &res, residualScale(A, Q, sol)); err != nil {
		return nil, err
	}

	var cl mat.Dense
	cl.Mul(B, K)
	cl.Sub(A, &cl)
	if !schur(&cl) {
		return nil, fmt.Errorf("%w: discrete closed loop is not stable", dynamo.ErrNotStabilizable)
	}
	return sol, nil
}

// discreteGain computes (R + BᵀPB)⁻¹·BᵀPA.
func discreteGain(A, B, R, P mat.Matrix) (*mat.Dense, error) {
	var btp, lhs, rhs mat.Dense
	btp.Mul(B.T(), P)
	rhs.Mul(&btp, A)
	lhs.Mul(&btp, B)
	lhs.Add(&lhs, R)

	var K mat.Dense
	if err := K.Solve(&lhs, &rhs); err != nil {
		return nil, fmt.Errorf("%w: R + BᵀPB is singular (%v)", dynamo.ErrSingular, err)
	}
	return &K, nil
}

// matrixSign iterates Z ← (Z/c + c·Z⁻¹)/2 with determinant scaling c.
func matrixSign(H *mat.Dense) (*mat.Dense, error) {
	N, _ := H.Dims()
	Z := mat.DenseCopyOf(H)
	for iter := 0; iter < maxIterations; iter++ {
		var inv mat.Dense
		if err := inv.Inverse(Z); err != nil {
			return nil, fmt.Errorf("%w: Hamiltonian has eigenvalues on the imaginary axis (%v)", dynamo.ErrNotStabilizable, err)
		}
		logDet, _ := mat.LogDet(Z)
		c := math.Exp(logDet / float64(N))
		if math.IsNaN(c) || math.IsInf(c, 0) || c == 0 {
			c = 1
		}

		var next mat.Dense
		next.Scale(1/c, Z)
		inv.Scale(c, &inv)
		next.Add(&next, &inv)
		next.Scale(0.5, &next)
		if !finite(&next) {
			return nil, fmt.Errorf("%w: sign iteration diverged", dynamo.ErrNotStabilizable)
		}

		var diff mat.Dense
		diff.Sub(&next, Z)
		delta := mat.Norm(&diff, 1)
		Z = &next
		if delta <= signTol*mat.Norm(Z, 1) {
			return Z, nil
		}
	}
	return nil, fmt.Errorf("%w: sign iteration did not converge in %d iterations", dynamo.ErrNotStabilizable, maxIterations)
}

func checkLQR(A, B, Q, R mat.Matrix) (int, error) {
	if A == nil || B == nil || Q == nil || R == nil {
		return 0, fmt.Errorf("%w: A, B, Q and R must all be set", dynamo.ErrDimensionMismatch)
	}
	n, nc := A.Dims()
	br, m := B.Dims()
	qr, qc := Q.Dims()
	rr, rc := R.Dims()
	switch {
	case n != nc:
		return 0, fmt.Errorf("%w: A is %dx%d, want square", dynamo.ErrDimensionMismatch, n, nc)
	case br != n:
		return 0, fmt.Errorf("%w: B has %d rows, want %d", dynamo.ErrDimensionMismatch, br, n)
	case qr != n || qc != n:
		return 0, fmt.Errorf("%w: Q is %dx%d, want %dx%d", dynamo.ErrDimensionMismatch, qr, qc, n, n)
	case rr != m || rc != m:
		return 0, fmt.Errorf("%w: R is %dx%d, want %dx%d", dynamo.ErrDimensionMismatch, rr, rc, m, m)
	}
	return n, nil
}

// controlWeight returns G = B·R⁻¹·Bᵀ, rejecting an R that is not positive definite.
func controlWeight(B, R mat.Matrix) (*mat.Dense, error) {
	var chol mat.Cholesky
	if !chol.Factorize(symmetrize(R)) {
		return nil, fmt.Errorf("%w: control cost R must be positive definite", dynamo.ErrInvalidParameters)
	}
	var RinvBt mat.Dense
	if err := chol.SolveTo(&RinvBt, B.T()); err != nil {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrSingular, err)
	}
	var G mat.Dense
	G.Mul(B, &RinvBt)
	return &G, nil
}

// residualScale bounds the size of the terms summed in a Riccati residual.
func residualScale(A, Q, P mat.Matrix) float64 {
	a := 1 + mat.Norm(A, 1)
	return a*a*math.Max(mat.Norm(P, 1), 1) + mat.Norm(Q, 1)
}

// checkSolution requires a finite, positive semi-definite P with a small relative residual.
func checkSolution(P *mat.SymDense, residual mat.Matrix, scale float64) error {
	if !finite(P) {
		return fmt.Errorf("%w: Riccati solution is not finite", dynamo.ErrNotStabilizable)
	}
	if r := mat.Norm(residual, 1); r > residualTol*scale {
		return fmt.Errorf("%w: Riccati residual %.3g exceeds tolerance", dynamo.ErrNotStabilizable, r)
	}
	var es mat.EigenSym
	if !es.Factorize(P, false) {
		return fmt.Errorf("%w: Riccati solution eigen decomposition failed", dynamo.ErrSingular)
	}
	for _, v := range es.Values(nil) {
		if v < -residualTol*math.Max(mat.Norm(P, 1), 1) {
			return fmt.Errorf("%w: Riccati solution is not positive semi-definite", dynamo.ErrNotStabilizable)
		}
	}
	return nil
}

func symmetrize(m mat.Matrix) *mat.SymDense {
	n, _ := m.Dims()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, 0.5*(m.At(i, j)+m.At(j, i)))
		}
	}
	return s
}

func identity(n int) *mat.Dense {
	eye := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		eye.Set(i, i, 1)
	}
	return eye
}

func finite(m mat.Matrix) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := m.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

func eigenvalues(m mat.Matrix) ([]complex128, bool) {
	var eig mat.Eigen
	if !eig.Factorize(m, mat.EigenNone) {
		return nil, false
	}
	return eig.Values(nil), true
}

func hurwitz(m mat.Matrix) bool {
	vals, ok := eigenvalues(m)
	if !ok {
		return false
	}
	for _, v := range vals {
		if real(v) >= 0 {
			return false
		}
	}
	return true
}

func schur(m mat.Matrix) bool {
	vals, ok := eigenvalues(m)
	if !ok {
		return false
	}
	for _, v := range vals {
		if math.Hypot(real(v), imag(v)) >= 1 {
			return false
		}
	}
	return true
}
