package sim

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/san-kum/robosim/internal/control"
	"github.com/san-kum/robosim/internal/dynamo"
	"github.com/san-kum/robosim/internal/integrators"
	"github.com/san-kum/robosim/internal/localization"
	"github.com/san-kum/robosim/internal/metrics"
	"github.com/san-kum/robosim/internal/physics"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, 1))
}

func newLQRPendulum(seed uint64, opts ...PendulumOption) *Pendulum {
	plant := physics.NewCartPole()
	ctrl, err := control.NewLQR(plant, control.DefaultParams())
	Expect(err).NotTo(HaveOccurred())
	p, err := NewPendulum(plant, ctrl, seeded(seed), opts...)
	Expect(err).NotTo(HaveOccurred())
	return p
}

func newVehicle(seed uint64) *Vehicle {
	f, err := localization.New(localization.DefaultConfig(), seeded(seed))
	Expect(err).NotTo(HaveOccurred())
	v, err := NewVehicle(f, physics.DefaultLandmarks(), localization.Input{V: 1, YawRate: 0.1})
	Expect(err).NotTo(HaveOccurred())
	return v
}

// scripted replays a fixed list of outcomes, one per tick.
type scripted struct {
	outputs []float64
	errs    []error
	calls   int
}

func (s *scripted) Compute(x dynamo.State, t, dt float64) (dynamo.Control, error) {
	i := s.calls
	s.calls++
	if s.errs[i] != nil && !errors.Is(s.errs[i], dynamo.ErrNonConvergent) {
		return nil, s.errs[i]
	}
	return dynamo.Control{s.outputs[i]}, s.errs[i]
}

var _ = Describe("Pendulum", func() {
	x0 := dynamo.State{0, 0, 0.2, 0}

	It("balances the linear cart-pole under LQR", func() {
		p := newLQRPendulum(1, WithInitialState(x0))
		for k := 0; k < 50; k++ {
			s, err := p.Step(0.1)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Warning).NotTo(HaveOccurred())
		}
		Expect(math.Abs(p.State()[2])).To(BeNumerically("<", 1e-3))
		Expect(p.Time()).To(BeNumerically("~", 5.0, 1e-9))
	})

	It("balances the nonlinear cart-pole with the linear design", func() {
		p := newLQRPendulum(1, WithInitialState(x0), WithNonlinearPlant(integrators.NewRK4()))
		peak := 0.0
		for k := 0; k < 50; k++ {
			_, err := p.Step(0.1)
			Expect(err).NotTo(HaveOccurred())
			peak = math.Max(peak, math.Abs(p.State()[2]))
		}
		Expect(peak).To(BeNumerically("<=", 0.2))
		Expect(math.Abs(p.State()[2])).To(BeNumerically("<", 1e-3))
	})

	It("draws a bounded random angle on reset", func() {
		a := newLQRPendulum(9)
		b := newLQRPendulum(9)
		Expect(cmp.Diff(a.State(), b.State())).To(BeEmpty())

		for i := 0; i < 20; i++ {
			x := a.State()
			Expect(x[2]).To(BeNumerically(">=", -MaxInitialAngle))
			Expect(x[2]).To(BeNumerically("<", MaxInitialAngle))
			Expect(x[0]).To(Equal(0.0))
			a.Reset()
		}
	})

	It("holds the previous command when the controller is unavailable", func() {
		ctrl := &scripted{
			outputs: []float64{1.5, 0, 0.5},
			errs:    []error{nil, &dynamo.NumericalError{Op: "lqr", Wrapped: dynamo.ErrInverseFailed}, nil},
		}
		p, err := NewPendulum(physics.NewCartPole(), ctrl, seeded(1), WithInitialState(x0))
		Expect(err).NotTo(HaveOccurred())

		_, err = p.Step(0.1)
		Expect(err).NotTo(HaveOccurred())

		s, err := p.Step(0.1)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Control).To(Equal(dynamo.Control{1.5}))
		Expect(s.Events).To(ConsistOf(dynamo.EventFallback))
		Expect(errors.Is(s.Warning, dynamo.ErrInverseFailed)).To(BeTrue())

		s, err = p.Step(0.1)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Control).To(Equal(dynamo.Control{0.5}))
		Expect(s.Events).To(BeEmpty())
	})

	It("uses an unconverged gain with a warning", func() {
		ctrl := &scripted{
			outputs: []float64{2},
			errs:    []error{&dynamo.NumericalError{Op: "dare", Iterations: 3, Wrapped: dynamo.ErrNonConvergent}},
		}
		p, _ := NewPendulum(physics.NewCartPole(), ctrl, seeded(1), WithInitialState(x0))

		s, err := p.Step(0.1)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Control).To(Equal(dynamo.Control{2}))
		Expect(s.Events).To(ConsistOf(dynamo.EventNonConvergent))
	})

	It("leaves the state untouched on a hard controller error", func() {
		ctrl := &scripted{outputs: []float64{0}, errs: []error{dynamo.ErrDimensionMismatch}}
		p, _ := NewPendulum(physics.NewCartPole(), ctrl, seeded(1), WithInitialState(x0))

		_, err := p.Step(0.1)
		Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
		Expect(cmp.Diff(x0, p.State())).To(BeEmpty())
		Expect(p.Time()).To(Equal(0.0))
	})

	It("reports the tick at which the state diverged", func() {
		ctrl := &scripted{
			outputs: []float64{0, 0, math.NaN()},
			errs:    []error{nil, nil, nil},
		}
		p, _ := NewPendulum(physics.NewCartPole(), ctrl, seeded(1), WithInitialState(x0))

		for k := 0; k < 2; k++ {
			_, err := p.Step(0.1)
			Expect(err).NotTo(HaveOccurred())
		}
		_, err := p.Step(0.1)
		Expect(errors.Is(err, dynamo.ErrInvalidState)).To(BeTrue())

		var se dynamo.SimError
		Expect(errors.As(err, &se)).To(BeTrue())
		Expect(se.Step).To(Equal(2))
		Expect(se.Time).To(BeNumerically("~", 0.2, 1e-12))
		Expect(err.Error()).To(ContainSubstring("step 2"))
	})

	It("rejects a malformed initial state", func() {
		ctrl := control.NewNone(1)
		_, err := NewPendulum(physics.NewCartPole(), ctrl, seeded(1), WithInitialState(dynamo.State{0.1}))
		Expect(errors.Is(err, dynamo.ErrInvalidConfig)).To(BeTrue())
		_, err = NewPendulum(nil, ctrl, seeded(1))
		Expect(errors.Is(err, dynamo.ErrInvalidConfig)).To(BeTrue())
	})
})

var _ = Describe("Agent snapshots", func() {
	It("round-trips a pendulum state", func() {
		a := PendulumAgent(newLQRPendulum(1, WithInitialState(dynamo.State{0, 0, 0.1, 0})))
		b := PendulumAgent(newLQRPendulum(2, WithInitialState(dynamo.State{1, 1, -0.1, 0})))

		_, err := a.Step(0.1)
		Expect(err).NotTo(HaveOccurred())

		snap := a.Snapshot()
		Expect(snap.Vehicle).To(BeNil())
		Expect(b.Restore(snap)).To(Succeed())
		Expect(cmp.Diff(a.Snapshot(), b.Snapshot())).To(BeEmpty())

		// The snapshot is a copy.
		snap.Pendulum.State[2] = 99
		Expect(a.State()[2]).NotTo(Equal(99.0))
	})

	It("refuses a snapshot of another kind", func() {
		p := PendulumAgent(newLQRPendulum(1))
		v := VehicleAgent(newVehicle(1))

		err := v.Restore(p.Snapshot())
		Expect(errors.Is(err, dynamo.ErrIncompatible)).To(BeTrue())
		Expect(errors.Is(p.Restore(Snapshot{Kind: KindPendulum}), dynamo.ErrIncompatible)).To(BeTrue())
	})
})

var _ = Describe("Simulator", func() {
	var (
		s   *Simulator
		err error
	)

	BeforeEach(func() {
		s, err = New([]Agent{
			PendulumAgent(newLQRPendulum(1, WithInitialState(dynamo.State{0, 0, 0.2, 0}))),
			PendulumAgent(newLQRPendulum(2, WithInitialState(dynamo.State{0, 0, -0.1, 0}))),
			VehicleAgent(newVehicle(3)),
		}, WithLogger(quiet), WithSpeed(3), WithMetrics(func(k Kind) []dynamo.Metric {
			if k == KindVehicle {
				return []dynamo.Metric{metrics.NewPositionError(), metrics.NewResampleCount()}
			}
			return []dynamo.Metric{metrics.NewControlEffort(), metrics.NewStability(0.25, 2)}
		}))
		Expect(err).NotTo(HaveOccurred())
	})

	It("sub-steps every agent on update", func() {
		Expect(s.Update(0.01)).To(Succeed())
		Expect(s.Time()).To(BeNumerically("~", 0.03, 1e-12))
		for _, a := range s.Agents() {
			switch a.Kind() {
			case KindPendulum:
				Expect(a.Pendulum().Time()).To(BeNumerically("~", 0.03, 1e-12))
			case KindVehicle:
				Expect(a.Vehicle().Time()).To(BeNumerically("~", 0.03, 1e-12))
			}
		}
	})

	It("syncs agents of the same kind only", func() {
		Expect(s.Update(0.05)).To(Succeed())
		n, err := s.SyncTo(0)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))

		agents := s.Agents()
		Expect(cmp.Diff(agents[0].State(), agents[1].State())).To(BeEmpty())
		Expect(agents[2].State()).NotTo(Equal(agents[0].State()))

		_, err = s.SyncTo(7)
		Expect(err).To(HaveOccurred())
	})

	It("tunes a pendulum controller in place", func() {
		Expect(s.Tune(0, "epsilon", 0.001)).To(Succeed())
		ctrl := s.Agents()[0].Pendulum().Controller().(dynamo.Configurable)
		Expect(ctrl.GetParams()).To(HaveKeyWithValue("epsilon", 0.001))

		Expect(s.Tune(0, "epsilon", -1)).To(MatchError(dynamo.ErrInvalidConfig))
		Expect(s.Tune(2, "epsilon", 0.1)).To(MatchError(dynamo.ErrIncompatible))
		Expect(s.Tune(9, "epsilon", 0.1)).To(MatchError(dynamo.ErrDimensionMismatch))
	})

	It("resets every agent", func() {
		Expect(s.Update(0.05)).To(Succeed())
		s.Reset()
		Expect(s.Time()).To(Equal(0.0))
		Expect(s.Agents()[0].State()).To(Equal(dynamo.State{0, 0, 0.2, 0}))
		Expect(s.Agents()[2].State()).To(Equal(dynamo.State{0, 0, 0, 0}))
	})

	It("records a run for every agent", func() {
		results, err := s.Run(context.Background(), Config{Dt: 0.1, Duration: 10})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(3))

		for _, r := range results[:2] {
			Expect(r.Kind).To(Equal(KindPendulum))
			Expect(r.StepsTaken).To(Equal(100))
			Expect(r.States).To(HaveLen(101))
			Expect(r.Controls).To(HaveLen(100))
			Expect(r.Estimates).To(BeNil())
			Expect(r.Metrics).To(HaveKey("control_effort"))
			Expect(r.Metrics["stability"]).To(BeNumerically(">", 0.9))
			Expect(math.Abs(r.States[100][2])).To(BeNumerically("<", 1e-3))
		}

		v := results[2]
		Expect(v.Kind).To(Equal(KindVehicle))
		Expect(v.Estimates).To(HaveLen(101))
		Expect(v.DeadReckoning).To(HaveLen(101))
		Expect(v.CovTrace).To(HaveLen(101))
		Expect(v.Metrics["position_rmse"]).To(BeNumerically("<", 2))
		Expect(v.Metrics["resamples"]).To(BeNumerically(">=", 1))
		Expect(v.Metrics["resamples"]).To(BeNumerically("==", v.Events["resample"]))
		Expect(v.Events["resample"]).To(Equal(s.Agents()[2].Vehicle().Filter().Resamples()))
	})

	It("stops on cancellation with partial results", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		results, err := s.Run(ctx, Config{Dt: 0.1, Duration: 1})
		Expect(errors.Is(err, dynamo.ErrContextCanceled)).To(BeTrue())
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		Expect(results[0].StepsTaken).To(BeZero())
	})

	It("validates its configuration", func() {
		_, err := s.Run(context.Background(), Config{Dt: 0, Duration: 1})
		Expect(errors.Is(err, dynamo.ErrInvalidConfig)).To(BeTrue())
		_, err = New(nil, WithSpeed(0))
		Expect(errors.Is(err, dynamo.ErrInvalidConfig)).To(BeTrue())
	})
})

var _ = Describe("Ensemble", func() {
	It("runs independent seeded members", func() {
		build := func(seed uint64) (*Simulator, error) {
			return New([]Agent{PendulumAgent(newLQRPendulum(seed))}, WithLogger(quiet))
		}

		results, err := NewEnsemble(build, 4, 10).Run(context.Background(), Config{Dt: 0.1, Duration: 2})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(4))

		starts := map[float64]bool{}
		for _, r := range results {
			Expect(r).To(HaveLen(1))
			Expect(r[0].StepsTaken).To(Equal(20))
			starts[r[0].States[0][2]] = true
		}
		Expect(starts).To(HaveLen(4))
	})

	It("reports a failing member", func() {
		build := func(seed uint64) (*Simulator, error) {
			return nil, dynamo.NewConfigError("seed", seed, "rejected")
		}
		_, err := NewEnsemble(build, 2, 0).Run(context.Background(), Config{Dt: 0.1, Duration: 1})
		Expect(errors.Is(err, dynamo.ErrInvalidConfig)).To(BeTrue())
	})
})

var _ = Describe("Kind", func() {
	DescribeTable("parses scenario names",
		func(name string, want Kind) {
			k, err := ParseKind(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(k).To(Equal(want))
		},
		Entry("pendulum", "pendulum", KindPendulum),
		Entry("particle filter", "pf", KindVehicle),
	)

	It("rejects unknown names", func() {
		_, err := ParseKind("drone")
		Expect(errors.Is(err, dynamo.ErrInvalidConfig)).To(BeTrue())
		Expect(KindVehicle.String()).To(Equal("vehicle"))
	})
})
