package metrics

import (
	"math"

	"github.com/san-kum/cartpoles/internal/dynamo"
)

// Excursion is the largest cart displacement from the track centre.
type Excursion struct {
	max float64
}

func NewExcursion() *Excursion { return &Excursion{} }

func (e *Excursion) Name() string { return "excursion" }

func (e *Excursion) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if len(x) == 0 {
		return
	}
	e.max = math.Max(e.max, math.Abs(x[0]))
}

func (e *Excursion) Value() float64 { return e.max }

func (e *Excursion) Reset() { e.max = 0 }
