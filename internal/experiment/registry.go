package experiment

import (
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/dpend/internal/dynamo"
	"github.com/san-kum/dpend/internal/integrators"
	"github.com/san-kum/dpend/internal/metrics"
	"github.com/san-kum/dpend/internal/physics"
)

// Model is a system whose constants can be set by name and checked.
type Model interface {
	dynamo.System
	dynamo.Configurable
	Validate() error
}

type Registry struct {
	models      map[string]func() Model
	integrators map[string]func() dynamo.Integrator
}

func NewRegistry() *Registry {
	r := &Registry{
		models:      make(map[string]func() Model),
		integrators: make(map[string]func() dynamo.Integrator),
	}

	r.models["double_pendulum"] = func() Model { return physics.NewDoublePendulum() }
	r.models["pendulum"] = func() Model { return physics.NewPendulum() }

	r.integrators["euler"] = func() dynamo.Integrator { return integrators.NewEuler() }
	r.integrators["rk4"] = func() dynamo.Integrator { return integrators.NewRK4() }
	r.integrators["rk45"] = func() dynamo.Integrator { return integrators.NewRK45() }

	return r
}

// GetModel builds the named model, applies params over its defaults and
// validates the result.
func (r *Registry) GetModel(name string, params map[string]float64) (Model, error) {
	fn, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("%w: model %s", dynamo.ErrUnknownName, name)
	}
	m := fn()
	for _, k := range sortedKeys(params) {
		if err := m.SetParam(k, params[k]); err != nil {
			return nil, fmt.Errorf("model %s: %w", name, err)
		}
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("model %s: %w", name, err)
	}
	return m, nil
}

func (r *Registry) GetIntegrator(name string) (dynamo.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("%w: integrator %s", dynamo.ErrUnknownName, name)
	}
	return fn(), nil
}

// IntegratorFactory returns a constructor for the named integrator, for
// callers that need one instance per goroutine.
func (r *Registry) IntegratorFactory(name string) (func() dynamo.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("%w: integrator %s", dynamo.ErrUnknownName, name)
	}
	return fn, nil
}

func (r *Registry) ListModels() []string {
	return sortedNames(r.models)
}

func (r *Registry) ListIntegrators() []string {
	return sortedNames(r.integrators)
}

// DefaultMetrics are recorded on every run. Energy metrics need a
// Hamiltonian system; flips are counted on the angle components.
func (r *Registry) DefaultMetrics(dyn dynamo.System) []dynamo.Metric {
	ms := []dynamo.Metric{metrics.NewStability(4 * math.Pi)}
	if h, ok := dyn.(dynamo.Hamiltonian); ok {
		ms = append(ms, metrics.NewEnergy(h), metrics.NewEnergyDrift(h))
	}
	switch dyn.StateDim() {
	case 4:
		ms = append(ms, metrics.NewFlips(physics.Theta1, physics.Theta2))
	case 2:
		ms = append(ms, metrics.NewFlips(0))
	}
	return ms
}

func sortedNames[T any](m map[string]T) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedKeys(m map[string]float64) []string {
	return sortedNames(m)
}
