package integrators

import "github.com/san-kum/dpend/internal/dynamo"

// Euler is the explicit first-order method. It drifts quickly on the
// pendulum and is kept as a baseline for comparisons.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(dyn dynamo.System, x dynamo.State, t float64, dt float64) dynamo.State {
	dx := dyn.Derive(x, t)
	result := make(dynamo.State, len(x))
	for i := range x {
		result[i] = x[i] + dt*dx[i]
	}
	return result
}
