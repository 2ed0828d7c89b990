package analysis

import (
	"math"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/san-kum/dpend/internal/dynamo"
	"github.com/san-kum/dpend/internal/integrators"
	"github.com/san-kum/dpend/internal/physics"
)

func TestDominantFrequencySine(t *testing.T) {
	g := NewWithT(t)

	dt := 0.05
	data := make([]float64, 400)
	for i := range data {
		data[i] = 0.3 + math.Sin(2*math.Pi*1.5*float64(i)*dt)
	}

	g.Expect(DominantFrequency(data, dt)).To(BeNumerically("~", 1.5, 1e-9))
}

func TestPowerSpectrumRemovesMean(t *testing.T) {
	g := NewWithT(t)

	ps := PowerSpectrum([]float64{2, 2, 2, 2, 2, 2, 2, 2})
	g.Expect(ps).To(HaveLen(4))
	for _, v := range ps {
		g.Expect(v).To(BeNumerically("~", 0, 1e-12))
	}
	g.Expect(PowerSpectrum(nil)).To(BeNil())
}

func TestDominantFrequencySmallPendulum(t *testing.T) {
	g := NewWithT(t)

	p := physics.NewPendulum()
	integ := integrators.NewRK4()
	dt := 0.05

	x := dynamo.State{0.05, 0}
	data := make([]float64, 800)
	for i := range data {
		data[i] = x[0]
		x = integ.Step(p, x, float64(i)*dt, dt)
	}

	expected := math.Sqrt(p.Gravity/p.Length) / (2 * math.Pi)
	g.Expect(DominantFrequency(data, dt)).To(BeNumerically("~", expected, 1.0/(800*dt)))
}

func TestLyapunovSeparatesRegularFromChaotic(t *testing.T) {
	g := NewWithT(t)

	dp := physics.NewDoublePendulum()
	gentle := LyapunovExponent(dp, integrators.NewRK4(), physics.InitialState(5, 0, 5, 0), 0.01, 100, 1e-8)
	chaotic := LyapunovExponent(dp, integrators.NewRK4(), physics.InitialState(120, 0, -10, 0), 0.01, 100, 1e-8)

	g.Expect(math.Abs(gentle)).To(BeNumerically("<", 0.15))
	g.Expect(chaotic).To(BeNumerically(">", 0.2))
	g.Expect(chaotic).To(BeNumerically(">", gentle))
}

func TestLyapunovDegenerateInput(t *testing.T) {
	dp := physics.NewDoublePendulum()
	if v := LyapunovExponent(dp, integrators.NewRK4(), nil, 0.01, 1, 1e-8); v != 0 {
		t.Errorf("empty state should give 0, got %f", v)
	}
	if v := LyapunovExponent(dp, integrators.NewRK4(), dynamo.State{0, 0, 0, 0}, 0, 1, 1e-8); v != 0 {
		t.Errorf("zero dt should give 0, got %f", v)
	}
}

func TestSeparation(t *testing.T) {
	a := &dynamo.Result{States: []dynamo.State{{0, 0}, {3, 4}, {1, 1}}}
	b := &dynamo.Result{States: []dynamo.State{{0, 0}, {0, 0}}}

	sep := Separation(a, b)
	if len(sep) != 2 || sep[0] != 0 || sep[1] != 5 {
		t.Errorf("unexpected separation: %v", sep)
	}

	if tt := DivergenceTime([]float64{0, 0.05}, sep, 1); tt != 0.05 {
		t.Errorf("expected divergence at 0.05, got %f", tt)
	}
	if tt := DivergenceTime([]float64{0, 0.05}, sep, 10); tt != -1 {
		t.Errorf("expected no divergence, got %f", tt)
	}
}
