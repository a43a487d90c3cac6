package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/cartpoles/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r1"
)

// CartPoles evaluates the equations of motion of a motor-driven cart carrying
// N poles. It is safe for concurrent reads; it holds no mutable state.
//
// The state layout is [x, ẋ, θ₁, θ̇₁, …, θ_N, θ̇_N], angles measured from upright.
// The shared denominator S4 − (7/3)(M + Jm/r²) is strictly negative because
// S4 ≤ Σ m_k < M, so the model is defined for every finite state.
type CartPoles struct {
	params    Params
	totalMass float64
	travel    r1.Interval
	voltage   r1.Interval
}

func New(p Params) (*CartPoles, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p = p.clone()
	return &CartPoles{
		params:    p,
		totalMass: p.TotalMass(),
		travel:    r1.Interval{Min: p.Cart.MinX, Max: p.Cart.MaxX},
		voltage:   r1.Interval{Min: p.Motor.MinVa, Max: p.Motor.MaxVa},
	}, nil
}

// Params returns a copy of the physical parameters.
func (c *CartPoles) Params() Params { return c.params.clone() }

func (c *CartPoles) NumPoles() int        { return len(c.params.Poles) }
func (c *CartPoles) StateDim() int        { return 2 + 2*len(c.params.Poles) }
func (c *CartPoles) ControlDim() int      { return 1 }
func (c *CartPoles) TotalMass() float64   { return c.totalMass }
func (c *CartPoles) Travel() r1.Interval  { return c.travel }
func (c *CartPoles) Voltage() r1.Interval { return c.voltage }

// sums holds the per-pole sums shared by the cart equation.
type sums struct {
	s1, s2, s3, s4 float64
}

func (c *CartPoles) sums(x dynamo.State) sums {
	var s sums
	for k, p := range c.params.Poles {
		th, om := x[2+2*k], x[3+2*k]
		sin, cos := math.Sincos(th)
		h := p.Length / 2
		s.s1 += p.Mass * sin * cos
		s.s2 += p.Mass * h * om * om * sin
		s.s3 += p.Friction * om * cos / h
		s.s4 += p.Mass * cos * cos
	}
	return s
}

func (c *CartPoles) denominator(s sums) float64 {
	m := c.params.Motor
	return s.s4 - (7.0/3.0)*(c.totalMass+m.Jm/(m.R*m.R))
}

// motorForce is the drive term (1/r²)(K/Ra·(Va·r − K·ẋ) − Bm·ẋ).
func (c *CartPoles) motorForce(dx, va float64) float64 {
	m := c.params.Motor
	return (m.K/m.Ra*(va*m.R-m.K*dx) - m.Bm*dx) / (m.R * m.R)
}

func (c *CartPoles) cartAccel(dx, va float64, s sums) float64 {
	g := c.params.Gravity
	num := g*s.s1 - (7.0/3.0)*(c.motorForce(dx, va)+s.s2-c.params.Cart.Friction*dx) - s.s3
	return num / c.denominator(s)
}

// Derive returns [ẋ, ẍ, θ̇₁, θ̈₁, …]. The caller guarantees len(x) == StateDim();
// a missing control is treated as zero volts.
func (c *CartPoles) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	va := 0.0
	if len(u) > 0 {
		va = u[0]
	}
	dx := x[1]
	ddx := c.cartAccel(dx, va, c.sums(x))

	g := c.params.Gravity
	out := make(dynamo.State, len(x))
	out[0] = dx
	out[1] = ddx
	for k, p := range c.params.Poles {
		th, om := x[2+2*k], x[3+2*k]
		sin, cos := math.Sincos(th)
		h := p.Length / 2
		out[2+2*k] = om
		out[3+2*k] = 3 / (7 * h) * (g*sin - ddx*cos - p.Friction*om/(p.Mass*h))
	}
	return out
}

// Differentiate is Derive with dimension checks.
func (c *CartPoles) Differentiate(x dynamo.State, u dynamo.Control) (dynamo.State, error) {
	if err := dynamo.CheckDims(c, x, u); err != nil {
		return nil, err
	}
	return c.Derive(x, u, 0), nil
}

// MaxHeight is the sum of pole lengths, the end height with every pole upright.
func (c *CartPoles) MaxHeight() float64 {
	h := 0.0
	for _, p := range c.params.Poles {
		h += p.Length
	}
	return h
}

// EndHeight is Σ l_k·cos θ_k for the given state.
func (c *CartPoles) EndHeight(x dynamo.State) float64 {
	h := 0.0
	for k, p := range c.params.Poles {
		h += p.Length * math.Cos(x[2+2*k])
	}
	return h
}

// Torque is the motor shaft torque K·Ia with Ia = (Va − K·ẋ/r)/Ra.
func (c *CartPoles) Torque(x dynamo.State, u dynamo.Control) float64 {
	va := 0.0
	if len(u) > 0 {
		va = u[0]
	}
	m := c.params.Motor
	return m.K * (va - m.K*x[1]/m.R) / m.Ra
}

// Saturate clips the voltage to the motor's supply range.
func (c *CartPoles) Saturate(u dynamo.Control) dynamo.Control {
	out := u.Clone()
	for i, v := range out {
		out[i] = math.Max(c.voltage.Min, math.Min(c.voltage.Max, v))
	}
	return out
}

// Clamp pins the cart inside its travel and wraps every pole angle into (−π, π].
// The input is not modified.
func (c *CartPoles) Clamp(x dynamo.State) dynamo.State {
	out := x.Clone()
	out[0] = math.Max(c.travel.Min, math.Min(c.travel.Max, out[0]))
	for k := range c.params.Poles {
		out[2+2*k] = wrapAngle(out[2+2*k])
	}
	return out
}

func wrapAngle(th float64) float64 {
	th = math.Mod(th+math.Pi, 2*math.Pi)
	if th <= 0 {
		th += 2 * math.Pi
	}
	return th - math.Pi
}

func (c *CartPoles) String() string {
	return fmt.Sprintf("cartpoles(n=%d, M=%.3f kg)", len(c.params.Poles), c.totalMass)
}
