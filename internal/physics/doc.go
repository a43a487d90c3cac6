// Package physics models a motor-driven cart carrying N inverted poles.
//
// [CartPoles] implements [dynamo.System] for the state
// [x, ẋ, θ₁, θ̇₁, …, θ_N, θ̇_N] with the motor voltage as the only input.
// Each pole couples to the cart independently: the cart equation sums the
// per-pole terms and every pole equation sees the shared cart acceleration,
// but no pole sees another pole's acceleration.
//
// [CartPoles.Linearize] returns the exact Jacobians of the same equations as
// an [lti.Continuous] model:
//
//	plant, err := physics.New(physics.DefaultParams())
//	model, err := plant.Linearize(make(dynamo.State, plant.StateDim()), dynamo.Control{0})
//	discrete, err := model.Discretize(0.01)
package physics
