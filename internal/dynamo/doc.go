// Package dynamo provides the shared vocabulary for the cart-pole engine.
//
// The package defines the types every other package speaks:
//
//   - [State]: generalized coordinates [x, ẋ, θ₁, θ̇₁, …]
//   - [Control]: actuator input (motor voltage)
//   - [System]: ODE systems (dX/dt = f(X, u))
//   - [Integrator]: one-step numerical schemes
//   - [Controller]: feedback laws
//   - [Metric], [Observer]: hooks for the simulation driver
//
// Errors returned across the module wrap the sentinels declared here, so
// callers can classify failures with errors.Is:
//
//	if errors.Is(err, dynamo.ErrNotStabilizable) {
//	    // pick other weights or another operating point
//	}
package dynamo
