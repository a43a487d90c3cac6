package physics

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/san-kum/cartpoles/internal/dynamo"
)

var validate = validator.New()

// Cart describes the carriage driven along the track.
type Cart struct {
	Mass     float64 `validate:"gt=0"`
	Friction float64 `validate:"gte=0"`
	MinX     float64
	MaxX     float64 `validate:"gtfield=MinX"`
}

// Motor describes the DC motor and the pulley of radius R that drives the cart.
type Motor struct {
	Ra    float64 `validate:"gt=0"`
	Jm    float64 `validate:"gte=0"`
	Bm    float64 `validate:"gte=0"`
	K     float64
	R     float64 `validate:"gt=0"`
	MinVa float64
	MaxVa float64 `validate:"gtfield=MinVa"`
}

// Pole is one pivoted pole. Friction is the viscous joint friction.
type Pole struct {
	Mass     float64 `validate:"gt=0"`
	Length   float64 `validate:"gt=0"`
	Friction float64 `validate:"gte=0"`
}

// Params is the immutable physical description of the rig. Poles are a flat
// ordered array: each pole couples to the cart on its own, not to its neighbours.
type Params struct {
	Cart    Cart
	Motor   Motor
	Poles   []Pole  `validate:"min=1,dive"`
	Gravity float64 `validate:"gt=0"`
}

// Validate reports the first group of field violations wrapped in
// dynamo.ErrInvalidParameters.
func (p Params) Validate() error {
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("%w: %v", dynamo.ErrInvalidParameters, msgs)
		}
		return fmt.Errorf("%w: %v", dynamo.ErrInvalidParameters, err)
	}
	return nil
}

// TotalMass returns M, the cart mass plus every pole mass.
func (p Params) TotalMass() float64 {
	m := p.Cart.Mass
	for _, pole := range p.Poles {
		m += pole.Mass
	}
	return m
}

func (p Params) clone() Params {
	c := p
	c.Poles = make([]Pole, len(p.Poles))
	copy(c.Poles, p.Poles)
	return c
}

// DefaultParams returns a single-pole rig with a 12 V motor on a 1 m track.
func DefaultParams() Params {
	return Params{
		Cart: Cart{Mass: 0.5, Friction: 0.1, MinX: -0.8, MaxX: 0.8},
		Motor: Motor{
			Ra: 8.4, Jm: 3.6e-6, Bm: 0.0, K: 0.042, R: 0.02,
			MinVa: -12, MaxVa: 12,
		},
		Poles:   []Pole{{Mass: 0.2, Length: 0.3, Friction: 0.001}},
		Gravity: 9.81,
	}
}
