package physics

import (
	"math"

	"github.com/san-kum/cartpoles/internal/dynamo"
	"github.com/san-kum/cartpoles/internal/lti"
	"gonum.org/v1/gonum/mat"
)

// Linearize returns the exact Jacobians A = ∂f/∂x and B = ∂f/∂u of Derive at
// the operating point (x0, u0), from closed-form partial derivatives.
//
// Writing ẍ = Num/Den with the per-pole sums S1..S4, every pole angle and rate
// enters both Num and Den, so row 1 couples to every pole. Each θ̈_k row picks
// up the same coupling through ẍ, plus its own gravity/friction terms on the
// diagonal block.
func (c *CartPoles) Linearize(x0 dynamo.State, u0 dynamo.Control) (*lti.Continuous, error) {
	if err := dynamo.CheckDims(c, x0, u0); err != nil {
		return nil, err
	}
	va := 0.0
	if len(u0) > 0 {
		va = u0[0]
	}

	p := c.params
	g := p.Gravity
	mot := p.Motor
	n := len(p.Poles)
	dim := 2 + 2*n

	s := c.sums(x0)
	den := c.denominator(s)
	dx := x0[1]
	ddx := c.cartAccel(dx, va, s)

	// Cart row: ∂ẍ/∂ẋ, ∂ẍ/∂Va and per-pole ∂ẍ/∂θ_i, ∂ẍ/∂θ̇_i.
	ddxDx := (7.0 / 3.0) * ((mot.K*mot.K/mot.Ra+mot.Bm)/(mot.R*mot.R) + p.Cart.Friction) / den
	ddxVa := -(7.0 / 3.0) * mot.K / (mot.Ra * mot.R) / den

	ddxTh := make([]float64, n)
	ddxOm := make([]float64, n)
	for i, pole := range p.Poles {
		th, om := x0[2+2*i], x0[3+2*i]
		sin, cos := math.Sincos(th)
		h := pole.Length / 2

		dNum := g*pole.Mass*(cos*cos-sin*sin) -
			(7.0/3.0)*pole.Mass*h*om*om*cos +
			pole.Friction*om*sin/h
		dDen := -2 * pole.Mass * sin * cos
		ddxTh[i] = (dNum - ddx*dDen) / den

		ddxOm[i] = (-(7.0/3.0)*2*pole.Mass*h*om*sin - pole.Friction*cos/h) / den
	}

	A := mat.NewDense(dim, dim, nil)
	B := mat.NewDense(dim, 1, nil)

	A.Set(0, 1, 1)
	A.Set(1, 1, ddxDx)
	for i := 0; i < n; i++ {
		A.Set(1, 2+2*i, ddxTh[i])
		A.Set(1, 3+2*i, ddxOm[i])
	}
	B.Set(1, 0, ddxVa)

	// Pole rows: θ̈_k = c_k·(g·sin θ_k − ẍ·cos θ_k − u_k·θ̇_k/(m_k·h_k)).
	for k, pole := range p.Poles {
		th := x0[2+2*k]
		sin, cos := math.Sincos(th)
		h := pole.Length / 2
		ck := 3 / (7 * h)
		row := 3 + 2*k

		A.Set(2+2*k, row, 1)
		A.Set(row, 1, -ck*cos*ddxDx)
		for i := 0; i < n; i++ {
			dTh := -cos * ddxTh[i]
			dOm := -cos * ddxOm[i]
			if i == k {
				dTh += g*cos + ddx*sin
				dOm -= pole.Friction / (pole.Mass * h)
			}
			A.Set(row, 2+2*i, ck*dTh)
			A.Set(row, 3+2*i, ck*dOm)
		}
		B.Set(row, 0, -ck*cos*ddxVa)
	}

	return lti.NewContinuous(A, B)
}
