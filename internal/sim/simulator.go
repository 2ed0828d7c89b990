package sim

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/dpend/internal/dynamo"
)

// Options controls how Integrate advances between sample times.
type Options struct {
	// Tolerance enables error control when the integrator is adaptive.
	// Zero forces fixed sub-stepping even for adaptive integrators.
	Tolerance float64
	// MaxStep bounds the internal step. Zero means one fixed step per
	// sample interval.
	MaxStep float64
	// MinStep is the smallest adaptive step before giving up.
	MinStep float64
	// MaxSteps bounds the internal steps taken per sample interval.
	MaxSteps int
	// ValidateState stops the run at the first NaN/Inf sample.
	ValidateState bool
}

func DefaultOptions() Options {
	return Options{
		Tolerance:     1e-9,
		MinStep:       1e-12,
		MaxSteps:      100000,
		ValidateState: true,
	}
}

// OptionsFromConfig maps a run config onto driver options.
func OptionsFromConfig(cfg dynamo.Config) Options {
	opts := DefaultOptions()
	opts.Tolerance = cfg.Tolerance
	opts.MaxStep = cfg.MaxDt
	if cfg.MinDt > 0 {
		opts.MinStep = cfg.MinDt
	}
	opts.ValidateState = cfg.ValidateState
	return opts
}

type Simulator struct {
	dyn        dynamo.System
	integrator dynamo.Integrator
	metrics    []dynamo.Metric
	observers  []dynamo.Observer
}

func New(dyn dynamo.System, integrator dynamo.Integrator) *Simulator {
	return &Simulator{
		dyn:        dyn,
		integrator: integrator,
		metrics:    make([]dynamo.Metric, 0),
		observers:  make([]dynamo.Observer, 0),
	}
}

func (s *Simulator) AddMetric(m dynamo.Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o dynamo.Observer) { s.observers = append(s.observers, o) }

// Integrate is a convenience wrapper for a simulator without metrics.
func Integrate(ctx context.Context, dyn dynamo.System, integ dynamo.Integrator, x0 dynamo.State, times []float64, opts Options) (*dynamo.Result, error) {
	return New(dyn, integ).Integrate(ctx, x0, times, opts)
}

// Run samples the trajectory on TimeGrid(cfg.Dt, cfg.Duration).
func (s *Simulator) Run(ctx context.Context, x0 dynamo.State, cfg dynamo.Config) (*dynamo.Result, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return s.Integrate(ctx, x0, TimeGrid(cfg.Dt, cfg.Duration), OptionsFromConfig(cfg))
}

// Integrate returns one state per entry of times, starting with x0 at
// times[0]. times must be strictly increasing.
func (s *Simulator) Integrate(ctx context.Context, x0 dynamo.State, times []float64, opts Options) (*dynamo.Result, error) {
	if err := validateTimes(times); err != nil {
		return nil, err
	}
	if len(x0) != s.dyn.StateDim() {
		return nil, fmt.Errorf("%w: state has %d components, system expects %d",
			dynamo.ErrDimensionMismatch, len(x0), s.dyn.StateDim())
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultOptions().MaxSteps
	}

	result := &dynamo.Result{
		States:  make([]dynamo.State, 0, len(times)),
		Times:   make([]float64, 0, len(times)),
		Metrics: make(map[string]float64),
		Errors:  make([]error, 0),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	adaptive, useAdaptive := s.integrator.(dynamo.AdaptiveIntegrator)
	useAdaptive = useAdaptive && opts.Tolerance > 0

	x := x0.Clone()
	h := opts.MaxStep
	if len(times) > 1 && (h <= 0 || h > times[1]-times[0]) {
		h = times[1] - times[0]
	}

	initialEnergy, hasEnergy := s.energy(x)
	s.record(result, x, times[0], initialEnergy, hasEnergy)

	for i := 1; i < len(times); i++ {
		select {
		case <-ctx.Done():
			s.finish(result)
			return result, ctx.Err()
		default:
		}

		t0, t1 := times[i-1], times[i]

		var err error
		if useAdaptive {
			x, h, err = s.advanceAdaptive(adaptive, x, t0, t1, h, opts, result)
		} else {
			x = s.advanceFixed(x, t0, t1, opts, result)
		}
		if err != nil {
			s.finish(result)
			simErr := &dynamo.SimulationError{Step: i, Time: t0, State: x.Clone(), Wrapped: err}
			result.Errors = append(result.Errors, simErr)
			return result, simErr
		}

		if opts.ValidateState && !x.IsValid() {
			s.finish(result)
			simErr := &dynamo.SimulationError{Step: i, Time: t1, State: x.Clone(), Wrapped: dynamo.ErrInvalidState}
			result.Errors = append(result.Errors, simErr)
			return result, simErr
		}

		s.record(result, x, t1, initialEnergy, hasEnergy)
	}

	s.finish(result)
	return result, nil
}

func (s *Simulator) advanceFixed(x dynamo.State, t0, t1 float64, opts Options, result *dynamo.Result) dynamo.State {
	n := 1
	if opts.MaxStep > 0 {
		n = int(math.Ceil((t1-t0)/opts.MaxStep - 1e-9))
		if n < 1 {
			n = 1
		}
	}
	h := (t1 - t0) / float64(n)
	for k := 0; k < n; k++ {
		x = s.integrator.Step(s.dyn, x, t0+float64(k)*h, h)
		result.StepsTaken++
	}
	return x
}

func (s *Simulator) advanceAdaptive(integ dynamo.AdaptiveIntegrator, x dynamo.State, t0, t1, h float64, opts Options, result *dynamo.Result) (dynamo.State, float64, error) {
	t := t0
	for steps := 0; t < t1; steps++ {
		if steps >= opts.MaxSteps {
			return x, h, fmt.Errorf("%w: more than %d steps in [%g, %g]", dynamo.ErrStepTooSmall, opts.MaxSteps, t0, t1)
		}

		step := h
		if opts.MaxStep > 0 && step > opts.MaxStep {
			step = opts.MaxStep
		}
		last := false
		if t+step >= t1 || t1-(t+step) < 1e-12*math.Max(1, math.Abs(t1)) {
			step = t1 - t
			last = true
		}

		next, hNext, err := integ.StepAdaptive(s.dyn, x, t, step, opts.Tolerance)
		if errors.Is(err, dynamo.ErrStepRejected) {
			result.Rejected++
			h = hNext
			if h < opts.MinStep {
				return x, h, fmt.Errorf("%w: dt=%g at t=%g", dynamo.ErrStepTooSmall, h, t)
			}
			continue
		}
		if err != nil {
			return x, h, err
		}

		x = next
		result.StepsTaken++
		if last {
			t = t1
			// a step shortened to hit the sample says little about the
			// step the solution can afford
			h = math.Max(h, hNext)
		} else {
			t += step
			h = hNext
		}
	}
	return x, h, nil
}

func (s *Simulator) record(result *dynamo.Result, x dynamo.State, t, e0 float64, hasEnergy bool) {
	for _, m := range s.metrics {
		m.Observe(x, t)
	}
	for _, obs := range s.observers {
		obs.OnStep(x, t)
	}

	result.States = append(result.States, x.Clone())
	result.Times = append(result.Times, t)

	if hasEnergy && e0 != 0 {
		e, _ := s.energy(x)
		drift := math.Abs(e-e0) / math.Abs(e0)
		if drift > result.EnergyDrift {
			result.EnergyDrift = drift
		}
	}
}

func (s *Simulator) finish(result *dynamo.Result) {
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
}

func (s *Simulator) energy(x dynamo.State) (float64, bool) {
	if h, ok := s.dyn.(dynamo.Hamiltonian); ok {
		return h.Energy(x), true
	}
	return 0, false
}

func validateConfig(cfg dynamo.Config) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %f", dynamo.ErrInvalidConfig, cfg.Dt)
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %f", dynamo.ErrInvalidConfig, cfg.Duration)
	}
	if cfg.Tolerance < 0 {
		return fmt.Errorf("%w: tolerance must not be negative", dynamo.ErrInvalidConfig)
	}
	return nil
}

func validateTimes(times []float64) error {
	if len(times) == 0 {
		return fmt.Errorf("%w: no sample times requested", dynamo.ErrInvalidConfig)
	}
	for i := 1; i < len(times); i++ {
		if !(times[i] > times[i-1]) {
			return fmt.Errorf("%w: sample times must be strictly increasing (t[%d]=%g, t[%d]=%g)",
				dynamo.ErrInvalidConfig, i-1, times[i-1], i, times[i])
		}
	}
	return nil
}
