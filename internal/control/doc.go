// Package control synthesizes and applies linear-quadratic regulators.
//
// Three synthesis forms are provided, all pure given well-posed inputs:
//
//   - [ContinuousGain]: continuous algebraic Riccati equation, K = R⁻¹BᵀP
//   - [DiscreteGain]: discrete algebraic Riccati equation, K_d = (R+BᵀPB)⁻¹BᵀPA
//   - [FiniteHorizon]: backward recursion over time-varying discrete pairs
//
// Solvers fail with [dynamo.ErrNotStabilizable] rather than return a gain
// that does not stabilize the model it was designed on.
//
// # Usage
//
//	K, _, err := control.DiscreteGain(model.A, model.B, Q, R)
//	ctrl, err := control.NewLQR(K, nil)
//	// ctrl.Compute returns −K·(x − target)
//
// Controllers implement [dynamo.Controller]: [LQR], [TimeVaryingLQR], [None].
package control
