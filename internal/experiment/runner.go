package experiment

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/san-kum/dpend/internal/analysis"
	"github.com/san-kum/dpend/internal/dynamo"
	"github.com/san-kum/dpend/internal/physics"
	"github.com/san-kum/dpend/internal/sim"
	"github.com/san-kum/dpend/internal/storage"
)

// Runner builds experiments from the registry, runs them and persists the
// results when a store is attached.
type Runner struct {
	registry *Registry
	store    *storage.Store
	logger   *log.Logger
}

func NewRunner(registry *Registry, store *storage.Store, logger *log.Logger) *Runner {
	return &Runner{registry: registry, store: store, logger: logger}
}

type Outcome struct {
	RunID   string
	Model   Model
	Result  *dynamo.Result
	Elapsed time.Duration
}

// Run simulates cfg and saves the run if the runner has a store. A run that
// fails part way is still returned with the samples computed so far.
func (r *Runner) Run(ctx context.Context, cfg Config) (*Outcome, error) {
	exp, err := r.Experiment(cfg)
	if err != nil {
		return nil, err
	}
	dyn := exp.Model()

	r.logger.Info("starting run",
		"model", cfg.Model, "integrator", cfg.Integrator,
		"dt", cfg.Dt, "duration", cfg.Duration, "tol", cfg.Tolerance)

	start := time.Now()
	result, err := exp.Run(ctx)
	out := &Outcome{Model: dyn, Result: result, Elapsed: time.Since(start)}
	if err != nil {
		r.logger.Error("run failed", "err", err, "samples", sampleCount(result))
		return out, err
	}

	r.logger.Debug("integration finished",
		"samples", len(result.States), "steps", result.StepsTaken,
		"rejected", result.Rejected, "elapsed", out.Elapsed)

	if r.store == nil {
		return out, nil
	}
	if err := r.store.Init(); err != nil {
		return out, err
	}
	meta := &storage.RunMetadata{
		Model:      cfg.Model,
		Seed:       cfg.Seed,
		Dt:         cfg.Dt,
		Duration:   cfg.Duration,
		Integrator: cfg.Integrator,
		Tolerance:  cfg.Tolerance,
		MaxStep:    cfg.MaxStep,
		Params:     dyn.GetParams(),
		InitState:  cfg.InitState,
	}
	runID, err := r.store.Save(meta, dyn, result)
	if err != nil {
		return out, fmt.Errorf("save run: %w", err)
	}
	out.RunID = runID
	r.logger.Info("saved run", "id", runID)
	return out, nil
}

// Comparison is the outcome of one integrator on a shared configuration.
type Comparison struct {
	Integrator  string
	Final       dynamo.State
	EnergyDrift float64
	Steps       int
	Rejected    int
	Elapsed     time.Duration
	Err         error
}

// Compare runs cfg once per integrator without persisting anything. A
// failing integrator is reported in its row and does not stop the others.
func (r *Runner) Compare(ctx context.Context, cfg Config, names []string) []Comparison {
	rows := make([]Comparison, 0, len(names))
	for _, name := range names {
		c := cfg
		c.Integrator = name

		row := Comparison{Integrator: name}
		dyn, integ, err := r.build(c)
		if err != nil {
			row.Err = err
			rows = append(rows, row)
			continue
		}

		start := time.Now()
		res, err := sim.New(dyn, integ).Run(ctx, c.InitState, c.SimConfig())
		row.Elapsed = time.Since(start)
		row.Err = err
		if res != nil {
			row.Final = res.Final()
			row.EnergyDrift = res.EnergyDrift
			row.Steps = res.StepsTaken
			row.Rejected = res.Rejected
		}
		if err != nil {
			r.logger.Warn("integrator failed", "integrator", name, "err", err)
		}
		rows = append(rows, row)
	}
	return rows
}

// Divergence is the growth of separation between a reference run and runs
// whose theta1 was shifted by k*Epsilon.
type Divergence struct {
	Epsilon     float64
	Times       []float64
	Separations [][]float64
	// DivergedAt holds, per perturbed run, the first time the separation
	// exceeded the threshold, or -1.
	DivergedAt []float64
}

func (r *Runner) Divergence(ctx context.Context, cfg Config, eps float64, members, workers int, threshold float64) (*Divergence, error) {
	if members < 2 {
		return nil, fmt.Errorf("%w: divergence needs at least 2 members, got %d", dynamo.ErrInvalidConfig, members)
	}
	dyn, err := r.registry.GetModel(cfg.Model, cfg.Params)
	if err != nil {
		return nil, err
	}
	newInteg, err := r.registry.IntegratorFactory(cfg.Integrator)
	if err != nil {
		return nil, err
	}

	simCfg := cfg.SimConfig()
	times := sim.TimeGrid(simCfg.Dt, simCfg.Duration)
	if times == nil {
		return nil, fmt.Errorf("%w: dt and duration must be positive", dynamo.ErrInvalidConfig)
	}

	inits := sim.Perturbations(cfg.InitState, physics.Theta1, eps, members)
	r.logger.Info("running ensemble", "members", members, "eps", eps, "workers", workers)

	results, err := sim.NewEnsemble(dyn, newInteg, workers).Run(ctx, inits, times, sim.OptionsFromConfig(simCfg))
	if err != nil {
		return nil, err
	}

	d := &Divergence{Epsilon: eps, Times: results[0].Times}
	for _, res := range results[1:] {
		sep := analysis.Separation(results[0], res)
		d.Separations = append(d.Separations, sep)
		d.DivergedAt = append(d.DivergedAt, analysis.DivergenceTime(d.Times, sep, threshold))
	}
	return d, nil
}

// Lyapunov estimates the largest Lyapunov exponent of cfg's initial state
// using fixed steps of size dt.
func (r *Runner) Lyapunov(cfg Config, dt, perturbation float64) (float64, error) {
	dyn, integ, err := r.build(cfg)
	if err != nil {
		return 0, err
	}
	if dt <= 0 || cfg.Duration <= 0 || perturbation <= 0 {
		return 0, fmt.Errorf("%w: dt, duration and perturbation must be positive", dynamo.ErrInvalidConfig)
	}
	r.logger.Debug("estimating lyapunov exponent", "dt", dt, "duration", cfg.Duration, "perturbation", perturbation)
	return analysis.LyapunovExponent(dyn, integ, cfg.InitState, dt, cfg.Duration, perturbation), nil
}

func (r *Runner) build(cfg Config) (Model, dynamo.Integrator, error) {
	dyn, err := r.registry.GetModel(cfg.Model, cfg.Params)
	if err != nil {
		return nil, nil, err
	}
	integ, err := r.registry.GetIntegrator(cfg.Integrator)
	if err != nil {
		return nil, nil, err
	}
	if len(cfg.InitState) != dyn.StateDim() {
		return nil, nil, fmt.Errorf("%w: initial state has %d components, model %s expects %d",
			dynamo.ErrDimensionMismatch, len(cfg.InitState), cfg.Model, dyn.StateDim())
	}
	return dyn, integ, nil
}

func sampleCount(res *dynamo.Result) int {
	if res == nil {
		return 0
	}
	return len(res.States)
}

// Experiment returns cfg set up with the default metrics, ready to run.
func (r *Runner) Experiment(cfg Config) (*Experiment, error) {
	dyn, integ, err := r.build(cfg)
	if err != nil {
		return nil, err
	}
	exp := New(cfg)
	if err := exp.Setup(dyn, integ, r.registry.DefaultMetrics(dyn)); err != nil {
		return nil, err
	}
	return exp, nil
}
