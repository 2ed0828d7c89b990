// Package dynamo provides the core simulation primitives for the double
// pendulum lab.
//
// The package defines the interfaces and types shared by the models,
// integrators and drivers:
//
//   - [State]: state vector
//   - [System]: autonomous ODE system (dX/dt = f(X, t))
//   - [Integrator]: fixed-step numerical integrator
//   - [AdaptiveIntegrator]: integrator with embedded error control
//   - [Result]: sampled trajectory produced by a run
//
// # Example
//
//	dyn := physics.NewDoublePendulum()
//	integ := integrators.NewRK45()
//	res, _ := sim.Integrate(ctx, dyn, integ, x0, sim.TimeGrid(0.05, 20), sim.DefaultOptions())
//
// # Thread Safety
//
// Integrators keep scratch buffers and are NOT safe for concurrent use.
// Systems are pure and may be shared.
package dynamo
