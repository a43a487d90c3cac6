package integrators

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/san-kum/cartpoles/internal/dynamo"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// Noise adds zero-mean Gaussian process noise with covariance Σ after a step.
// Draws come only from the source handed to NewNoise, so two simulators with
// independently seeded sources never interfere.
type Noise struct {
	dim    int
	normal *distmv.Normal
	factor *mat.Dense
	rng    *rand.Rand
}

// NewNoise builds a sampler for cov. A nil or all-zero covariance yields a
// sampler that never perturbs the state and needs no source. Singular but
// positive semi-definite covariances are sampled through their eigen factor.
func NewNoise(dim int, cov mat.Symmetric, rng *rand.Rand) (*Noise, error) {
	n := &Noise{dim: dim}
	if cov == nil || mat.Norm(cov, 1) == 0 {
		return n, nil
	}
	if r := cov.SymmetricDim(); r != dim {
		return nil, fmt.Errorf("%w: noise covariance is %dx%d, want %dx%d", dynamo.ErrDimensionMismatch, r, r, dim, dim)
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: process noise requires an explicit random source", dynamo.ErrInvalidParameters)
	}
	n.rng = rng

	if normal, ok := distmv.NewNormal(make([]float64, dim), cov, rng); ok {
		n.normal = normal
		return n, nil
	}

	var es mat.EigenSym
	if !es.Factorize(cov, true) {
		return nil, fmt.Errorf("%w: noise covariance eigen decomposition failed", dynamo.ErrInvalidParameters)
	}
	vals := es.Values(nil)
	tol := 1e-12 * math.Max(1, math.Abs(vals[len(vals)-1]))
	var vecs mat.Dense
	es.VectorsTo(&vecs)
	for j, v := range vals {
		if v < -tol {
			return nil, fmt.Errorf("%w: noise covariance is not positive semi-definite (eigenvalue %g)", dynamo.ErrInvalidParameters, v)
		}
		s := math.Sqrt(math.Max(v, 0))
		for i := 0; i < dim; i++ {
			vecs.Set(i, j, vecs.At(i, j)*s)
		}
	}
	n.factor = &vecs
	return n, nil
}

// Enabled reports whether samples can be non-zero.
func (n *Noise) Enabled() bool { return n.normal != nil || n.factor != nil }

// Sample draws one noise vector.
func (n *Noise) Sample() dynamo.State {
	out := make(dynamo.State, n.dim)
	switch {
	case n.normal != nil:
		n.normal.Rand(out)
	case n.factor != nil:
		z := make([]float64, n.dim)
		for i := range z {
			z[i] = n.rng.NormFloat64()
		}
		v := mat.NewVecDense(n.dim, nil)
		v.MulVec(n.factor, mat.NewVecDense(n.dim, z))
		copy(out, v.RawVector().Data)
	}
	return out
}

// Apply returns x plus one noise draw; x is left untouched.
func (n *Noise) Apply(x dynamo.State) dynamo.State {
	if !n.Enabled() {
		return x.Clone()
	}
	return x.Add(n.Sample())
}
