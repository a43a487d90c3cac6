package metrics

import (
	"math"

	"github.com/san-kum/cartpoles/internal/dynamo"
)

// HeightModel reports the stacked tip height of a state and its upright maximum.
type HeightModel interface {
	EndHeight(x dynamo.State) float64
	MaxHeight() float64
}

const (
	uprightHeightRatio = 0.9
	uprightMaxRate     = 1.0
)

// Upright is the fraction of observed states in which the pole stack stands:
// the tip is above 90% of its maximum height and every pole turns slower
// than 1 rad/s.
type Upright struct {
	name    string
	model   HeightModel
	upright int
	samples int
}

func NewUpright(model HeightModel) *Upright {
	return &Upright{
		name:  "upright",
		model: model,
	}
}

func (s *Upright) Name() string {
	return s.name
}

func (s *Upright) Observe(x dynamo.State, u dynamo.Control, t float64) {
	s.samples++
	if IsUpright(s.model, x) {
		s.upright++
	}
}

func (s *Upright) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	return float64(s.upright) / float64(s.samples)
}

func (s *Upright) Reset() {
	s.upright = 0
	s.samples = 0
}

// IsUpright reports whether x stands within the upright thresholds of model.
func IsUpright(model HeightModel, x dynamo.State) bool {
	if model.EndHeight(x) <= uprightHeightRatio*model.MaxHeight() {
		return false
	}
	for i := 3; i < len(x); i += 2 {
		if math.Abs(x[i]) >= uprightMaxRate {
			return false
		}
	}
	return true
}
