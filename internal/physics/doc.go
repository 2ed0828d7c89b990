// Package physics provides the pendulum models.
//
// Each model implements the [dynamo.System] interface:
//
//   - [DoublePendulum]: chaotic two-link pendulum with point masses
//   - [Pendulum]: single pendulum, used as a reference for the
//     collapsed (theta1 == theta2) configuration
//
// Both also implement [dynamo.Configurable] for runtime parameter
// adjustment and [dynamo.Hamiltonian] for energy calculation.
//
// # Energy Conservation
//
// Both models are conservative when undamped. Use [dynamo.Hamiltonian] to
// monitor energy drift of an integrator:
//
//	dp := physics.NewDoublePendulum()
//	e0 := dp.Energy(x0)
package physics
