package sim

import "math"

// TimeGrid returns the sample times 0, dt, 2dt, ... strictly below duration,
// i.e. arange(0, duration, dt). TimeGrid(0.05, 20) has 400 entries.
func TimeGrid(dt, duration float64) []float64 {
	if dt <= 0 || duration <= 0 {
		return nil
	}
	n := int(math.Ceil(duration/dt - 1e-9))
	if n < 1 {
		n = 1
	}
	times := make([]float64, n)
	for i := range times {
		times[i] = float64(i) * dt
	}
	return times
}
