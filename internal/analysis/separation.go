package analysis

import "github.com/san-kum/dpend/internal/dynamo"

// Separation returns the Euclidean distance between two trajectories at
// each common sample.
func Separation(a, b *dynamo.Result) []float64 {
	n := len(a.States)
	if len(b.States) < n {
		n = len(b.States)
	}

	sep := make([]float64, n)
	for i := 0; i < n; i++ {
		sep[i] = a.States[i].Sub(b.States[i]).Norm()
	}
	return sep
}

// DivergenceTime returns the first sample time at which the separation
// exceeds threshold, or -1 if it never does.
func DivergenceTime(times, sep []float64, threshold float64) float64 {
	for i, d := range sep {
		if d > threshold && i < len(times) {
			return times[i]
		}
	}
	return -1
}
