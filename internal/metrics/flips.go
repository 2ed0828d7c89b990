package metrics

import (
	"math"

	"github.com/san-kum/dpend/internal/dynamo"
)

// Flips counts how often the given angle components pass over the top,
// i.e. cross an odd multiple of pi between consecutive samples.
type Flips struct {
	name    string
	indices []int
	prev    dynamo.State
	count   int
}

func NewFlips(indices ...int) *Flips {
	return &Flips{
		name:    "flips",
		indices: indices,
	}
}

func (f *Flips) Name() string { return f.name }

func (f *Flips) Observe(x dynamo.State, t float64) {
	if f.prev != nil {
		for _, idx := range f.indices {
			f.count += overTop(f.prev[idx], x[idx])
		}
	}
	f.prev = x.Clone()
}

func (f *Flips) Value() float64 {
	return float64(f.count)
}

func (f *Flips) Reset() {
	f.prev = nil
	f.count = 0
}

// overTop counts the odd multiples of pi crossed going from a to b.
func overTop(a, b float64) int {
	ka := math.Floor((a + math.Pi) / (2 * math.Pi))
	kb := math.Floor((b + math.Pi) / (2 * math.Pi))
	return int(math.Abs(kb - ka))
}
