package sim_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/dpend/internal/dynamo"
	"github.com/san-kum/dpend/internal/integrators"
	"github.com/san-kum/dpend/internal/physics"
	"github.com/san-kum/dpend/internal/sim"
)

var _ = Describe("Integrating the classic double pendulum", func() {
	var (
		ctx   context.Context
		dp    *physics.DoublePendulum
		x0    dynamo.State
		times []float64
		opts  sim.Options
	)

	BeforeEach(func() {
		ctx = context.Background()
		dp = physics.NewDoublePendulum()
		x0 = physics.InitialState(120, 0, -10, 0)
		times = sim.TimeGrid(0.05, 20)
		opts = sim.DefaultOptions()
		opts.Tolerance = 1e-10
	})

	It("returns one state per requested sample in increasing time order", func() {
		res, err := sim.Integrate(ctx, dp, integrators.NewRK45(), x0, times, opts)
		Expect(err).NotTo(HaveOccurred())

		Expect(res.States).To(HaveLen(400))
		Expect(res.Times).To(Equal(times))
		Expect(res.States[0]).To(Equal(x0))
		for i := range res.States {
			Expect(res.States[i]).To(HaveLen(4))
			Expect(res.States[i].IsValid()).To(BeTrue())
		}
	})

	It("keeps total mechanical energy within 1% of its initial value", func() {
		res, err := sim.Integrate(ctx, dp, integrators.NewRK45(), x0, times, opts)
		Expect(err).NotTo(HaveOccurred())

		e0 := dp.Energy(x0)
		for _, x := range res.States {
			Expect(math.Abs(dp.Energy(x)-e0) / math.Abs(e0)).To(BeNumerically("<", 0.01))
		}
		Expect(res.EnergyDrift).To(BeNumerically("<", 0.01))
	})

	It("keeps energy within 1% with fixed-step RK4 sub-stepping", func() {
		opts.MaxStep = 0.0025
		res, err := sim.Integrate(ctx, dp, integrators.NewRK4(), x0, times, opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.States).To(HaveLen(400))
		Expect(res.EnergyDrift).To(BeNumerically("<", 0.01))
	})

	It("is deterministic", func() {
		a, err := sim.Integrate(ctx, dp, integrators.NewRK45(), x0, times, opts)
		Expect(err).NotTo(HaveOccurred())
		b, err := sim.Integrate(ctx, dp, integrators.NewRK45(), x0, times, opts)
		Expect(err).NotTo(HaveOccurred())

		for i := range a.States {
			for j := range a.States[i] {
				Expect(math.Float64bits(a.States[i][j])).To(Equal(math.Float64bits(b.States[i][j])))
			}
		}
	})

	It("agrees with a fine-step RK4 reference before chaos amplifies the error", func() {
		res, err := sim.Integrate(ctx, dp, integrators.NewRK45(), x0, times, opts)
		Expect(err).NotTo(HaveOccurred())

		refOpts := sim.Options{MaxStep: 0.001, ValidateState: true}
		ref, err := sim.Integrate(ctx, dp, integrators.NewRK4(), x0, times, refOpts)
		Expect(err).NotTo(HaveOccurred())
		Expect(ref.States).To(HaveLen(len(res.States)))

		for i := 0; i < 80; i++ {
			for j := range res.States[i] {
				Expect(res.States[i][j]).To(BeNumerically("~", ref.States[i][j], 1e-3),
					"sample %d (t=%.2f) component %d", i, times[i], j)
			}
		}
	})

	It("fails when the tolerance cannot be met above the minimum step", func() {
		opts.Tolerance = 1e-14
		opts.MinStep = 0.01
		_, err := sim.Integrate(ctx, dp, integrators.NewRK45(), x0, times, opts)
		Expect(err).To(MatchError(dynamo.ErrStepTooSmall))
	})

	It("rejects constants that would divide by zero", func() {
		dp.L1 = 0
		Expect(dp.Validate()).To(MatchError(dynamo.ErrInvalidConfig))
	})
})

var _ = Describe("Ensemble", func() {
	It("integrates perturbed copies in parallel and keeps input order", func() {
		ctx := context.Background()
		dp := physics.NewDoublePendulum()
		x0 := physics.InitialState(120, 0, -10, 0)
		times := sim.TimeGrid(0.05, 5)
		opts := sim.DefaultOptions()

		inits := sim.Perturbations(x0, physics.Theta1, 1e-6, 4)
		ens := sim.NewEnsemble(dp, func() dynamo.Integrator { return integrators.NewRK45() }, 2)

		results, err := ens.Run(ctx, inits, times, opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(4))

		base, err := sim.Integrate(ctx, dp, integrators.NewRK45(), x0, times, opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(results[0].States).To(Equal(base.States))

		for k, res := range results {
			Expect(res.States).To(HaveLen(len(times)))
			Expect(res.States[0][physics.Theta1]).To(BeNumerically("~", x0[physics.Theta1]+float64(k)*1e-6, 1e-15))
		}
	})

	It("propagates the first failure", func() {
		dp := physics.NewDoublePendulum()
		inits := []dynamo.State{{0, 0, 0, 0}, {0, 0}}
		ens := sim.NewEnsemble(dp, func() dynamo.Integrator { return integrators.NewRK4() }, 0)

		_, err := ens.Run(context.Background(), inits, sim.TimeGrid(0.05, 1), sim.DefaultOptions())
		Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
	})
})
