package report

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/san-kum/dpend/internal/dynamo"
	"github.com/san-kum/dpend/internal/experiment"
	"github.com/san-kum/dpend/internal/optim"
	"github.com/san-kum/dpend/internal/storage"
)

func TestSummary(t *testing.T) {
	meta := &storage.RunMetadata{
		ID:          "double_pendulum_1",
		Model:       "double_pendulum",
		Integrator:  "rk45",
		Dt:          0.05,
		Duration:    20,
		Samples:     400,
		Params:      map[string]float64{"g": 9.8, "l1": 1},
		InitState:   []float64{2.0943951023931953, 0, -0.17453292519943295, 0},
		EnergyDrift: 3e-9,
		Metrics:     map[string]float64{"flips": 2},
	}

	out := Summary(meta)
	for _, want := range []string{"double_pendulum_1", "rk45", "400", "120.00°", "-10.00°", "9.8", "flips", "3.000e-09"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestComparison(t *testing.T) {
	rows := []experiment.Comparison{
		{Integrator: "rk4", Final: dynamo.State{1.5, 0, -0.25, 0}, EnergyDrift: 1e-4, Steps: 400, Elapsed: time.Millisecond},
		{Integrator: "bogus", Err: errors.New("unknown")},
	}

	out := Comparison(rows)
	for _, want := range []string{"integrator", "rk4", "1.500000", "-0.250000", "1.00e-04", "400", "error: unknown"} {
		if !strings.Contains(out, want) {
			t.Errorf("comparison missing %q:\n%s", want, out)
		}
	}
}

func TestDivergence(t *testing.T) {
	d := &experiment.Divergence{
		Epsilon:     1e-6,
		Times:       []float64{0, 1, 2, 3, 4},
		Separations: [][]float64{{1e-6, 1e-5, 1e-4, 1e-2, 0.5}},
		DivergedAt:  []float64{4},
	}

	out := Divergence(d, 3)
	for _, want := range []string{"t=0.0", "t=2.0", "t=4.0", "1.0e-06", "4.00s", "5.00e-01"} {
		if !strings.Contains(out, want) {
			t.Errorf("divergence missing %q:\n%s", want, out)
		}
	}

	if Divergence(&experiment.Divergence{}, 3) != "" {
		t.Error("expected empty output for an empty divergence")
	}
}

func TestSweep(t *testing.T) {
	points := []optim.Point{
		{Params: map[string]float64{"theta1": 10, "m2": 1}, Value: -29.1},
		{Params: map[string]float64{"theta1": 90, "m2": 1}, Err: errors.New("boom")},
	}

	out := Sweep(points, 0, "energy")
	for _, want := range []string{"m2", "theta1", "energy", "-29.1", "error: boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("sweep missing %q:\n%s", want, out)
		}
	}
	if Sweep(nil, -1, "energy") != "" {
		t.Error("expected empty output without points")
	}
}
