package experiment

import (
	"context"
	"fmt"

	"github.com/san-kum/dpend/internal/dynamo"
	"github.com/san-kum/dpend/internal/sim"
)

// Config describes one run. InitState is in radians.
type Config struct {
	Model      string
	Integrator string
	InitState  []float64
	Params     map[string]float64
	Dt         float64
	Duration   float64
	Tolerance  float64
	MaxStep    float64
	Seed       int64
}

// SimConfig maps the experiment onto driver settings.
func (c Config) SimConfig() dynamo.Config {
	cfg := dynamo.DefaultConfig()
	cfg.Dt = c.Dt
	cfg.Duration = c.Duration
	cfg.Seed = c.Seed
	cfg.Tolerance = c.Tolerance
	cfg.MaxDt = c.MaxStep
	return cfg
}

type Experiment struct {
	cfg       Config
	model     Model
	simulator *sim.Simulator
}

func New(cfg Config) *Experiment {
	return &Experiment{cfg: cfg}
}

func (e *Experiment) Setup(dyn dynamo.System, integrator dynamo.Integrator, metrics []dynamo.Metric) error {
	if len(e.cfg.InitState) != dyn.StateDim() {
		return fmt.Errorf("%w: initial state has %d components, model expects %d",
			dynamo.ErrDimensionMismatch, len(e.cfg.InitState), dyn.StateDim())
	}
	e.model, _ = dyn.(Model)
	e.simulator = sim.New(dyn, integrator)
	for _, m := range metrics {
		e.simulator.AddMetric(m)
	}
	return nil
}

func (e *Experiment) Run(ctx context.Context) (*dynamo.Result, error) {
	if e.simulator == nil {
		return nil, fmt.Errorf("experiment not setup")
	}

	x0 := make(dynamo.State, len(e.cfg.InitState))
	copy(x0, e.cfg.InitState)

	return e.simulator.Run(ctx, x0, e.cfg.SimConfig())
}

// Model returns the model passed to Setup when it supports parameters,
// otherwise nil.
func (e *Experiment) Model() Model {
	return e.model
}

// Simulator returns the underlying simulator for adding observers.
func (e *Experiment) Simulator() *sim.Simulator {
	return e.simulator
}
