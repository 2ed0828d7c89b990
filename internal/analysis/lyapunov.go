package analysis

import (
	"math"

	"github.com/san-kum/dpend/internal/dynamo"
)

// LyapunovExponent estimates the largest Lyapunov exponent using the
// trajectory separation method. A positive value indicates chaos.
//
// Algorithm:
// 1. Run two trajectories separated by perturbation
// 2. After each step accumulate ln(|δx|/δ0)
// 3. Rescale the perturbed trajectory back to distance δ0
// 4. λ ≈ Σ ln(|δx|/δ0) / t
func LyapunovExponent(
	dyn dynamo.System,
	integ dynamo.Integrator,
	x0 dynamo.State,
	dt, duration float64,
	perturbation float64,
) float64 {
	if len(x0) == 0 || dt <= 0 || duration <= 0 || perturbation <= 0 {
		return 0
	}

	x := x0.Clone()
	xp := x0.Clone()
	xp[0] += perturbation
	d0 := perturbation

	t := 0.0
	sumLog := 0.0

	steps := int(math.Ceil(duration/dt - 1e-9))
	for i := 0; i < steps; i++ {
		x = integ.Step(dyn, x, t, dt)
		xp = integ.Step(dyn, xp, t, dt)
		t += dt

		sep := x.Sub(xp).Norm()
		if sep == 0 || !x.IsValid() || !xp.IsValid() {
			continue
		}
		sumLog += math.Log(sep / d0)

		// Renormalize to keep the separation in the linear regime
		scale := d0 / sep
		for j := range xp {
			xp[j] = x[j] + (xp[j]-x[j])*scale
		}
	}

	if t == 0 {
		return 0
	}
	return sumLog / t
}
