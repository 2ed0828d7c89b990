package integrators

import (
	"testing"

	"github.com/san-kum/dpend/internal/dynamo"
	"github.com/san-kum/dpend/internal/physics"
)

func BenchmarkEuler(b *testing.B) {
	benchmarkStep(b, NewEuler())
}

func BenchmarkRK4(b *testing.B) {
	benchmarkStep(b, NewRK4())
}

func BenchmarkRK45(b *testing.B) {
	benchmarkStep(b, NewRK45())
}

func BenchmarkRK45Adaptive(b *testing.B) {
	integrator := NewRK45()
	dyn := physics.NewDoublePendulum()
	x := physics.InitialState(120, 0, -10, 0)
	dt := 0.01

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		next, dtNext, err := integrator.StepAdaptive(dyn, x, 0, dt, 1e-9)
		if err == nil {
			x = next
		}
		dt = dtNext
	}
}

func benchmarkStep(b *testing.B, integrator dynamo.Integrator) {
	dyn := physics.NewDoublePendulum()
	x := physics.InitialState(120, 0, -10, 0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		x = integrator.Step(dyn, x, 0, 0.001)
	}
}
