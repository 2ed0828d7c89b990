package sim

import (
	"context"
	"runtime"

	"github.com/san-kum/dpend/internal/dynamo"
	"golang.org/x/sync/errgroup"
)

// Ensemble integrates several initial states of the same system in
// parallel. Integrators hold scratch buffers, so every run gets its own
// instance from newIntegrator.
type Ensemble struct {
	dyn           dynamo.System
	newIntegrator func() dynamo.Integrator
	workers       int
}

func NewEnsemble(dyn dynamo.System, newIntegrator func() dynamo.Integrator, workers int) *Ensemble {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Ensemble{dyn: dyn, newIntegrator: newIntegrator, workers: workers}
}

// Run returns results in the order of inits. The first failing run cancels
// the rest.
func (e *Ensemble) Run(ctx context.Context, inits []dynamo.State, times []float64, opts Options) ([]*dynamo.Result, error) {
	results := make([]*dynamo.Result, len(inits))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, x0 := range inits {
		i, x0 := i, x0
		g.Go(func() error {
			res, err := Integrate(gctx, e.dyn, e.newIntegrator(), x0, times, opts)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Perturbations returns n copies of x0 where copy k has component idx
// shifted by k*eps. Copy 0 is x0 itself.
func Perturbations(x0 dynamo.State, idx int, eps float64, n int) []dynamo.State {
	inits := make([]dynamo.State, n)
	for k := range inits {
		x := x0.Clone()
		if idx >= 0 && idx < len(x) {
			x[idx] += float64(k) * eps
		}
		inits[k] = x
	}
	return inits
}
