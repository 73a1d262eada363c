package control

import (
	"errors"
	"math"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/san-kum/robosim/internal/dynamo"
	"github.com/san-kum/robosim/internal/linalg"
	"github.com/san-kum/robosim/internal/physics"
)

func TestPIDZeroErrorGivesZeroOutput(t *testing.T) {
	g := NewWithT(t)
	pid, err := NewPID(12, 3, 7, 0, 0)
	g.Expect(err).NotTo(HaveOccurred())

	for i := 0; i < 20; i++ {
		u, err := pid.Control(0, 0.05)
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(u).To(Equal(0.0))
	}
}

func TestPIDControlLaw(t *testing.T) {
	g := NewWithT(t)
	pid, _ := NewPID(2, 0.5, 0.1, 0, 0)

	u, err := pid.Control(1, 0.1)
	g.Expect(err).NotTo(HaveOccurred())
	// 2·1 + 0.5·0.1 + 0.1·(1−0)/0.1
	g.Expect(u).To(BeNumerically("~", 3.05, 1e-12))

	u, err = pid.Control(0.5, 0.1)
	g.Expect(err).NotTo(HaveOccurred())
	// 2·0.5 + 0.5·0.15 + 0.1·(0.5−1)/0.1
	g.Expect(u).To(BeNumerically("~", 0.575, 1e-12))
	g.Expect(pid.Integral()).To(BeNumerically("~", 0.15, 1e-12))
}

func TestPIDResetReproducesOutputs(t *testing.T) {
	g := NewWithT(t)
	pid, _ := NewPID(1.5, 0.2, 0.3, 0, 0)
	errs := []float64{0.4, -0.1, 0.25, 0.0, -0.3, 0.8}

	run := func() []float64 {
		out := make([]float64, 0, len(errs))
		for _, e := range errs {
			u, err := pid.Control(e, 0.02)
			g.Expect(err).NotTo(HaveOccurred())
			out = append(out, u)
		}
		return out
	}

	first := run()
	pid.ResetState()
	g.Expect(run()).To(Equal(first))
	g.Expect(pid.Kp).To(Equal(1.5))
}

func TestPIDRejectsNonPositiveDt(t *testing.T) {
	g := NewWithT(t)
	pid, _ := NewPID(1, 1, 1, 0, 0)
	_, _ = pid.Control(1, 0.1)
	before := pid.Integral()

	for _, dt := range []float64{0, -0.1, math.NaN()} {
		_, err := pid.Control(1, dt)
		g.Expect(errors.Is(err, dynamo.ErrInvalidConfig)).To(BeTrue())
	}
	g.Expect(pid.Integral()).To(Equal(before))
}

func TestPIDStabilisesCartPole(t *testing.T) {
	g := NewWithT(t)
	plant := physics.NewCartPole()
	dt := 0.1
	A, B := plant.Discretize(dt)

	pid, err := NewPID(40, 0.5, 10, 0, 2)
	g.Expect(err).NotTo(HaveOccurred())

	x := dynamo.State{0, 0, 0.2, 0}
	for k := 0; k < 100; k++ {
		u, err := pid.Compute(x, float64(k)*dt, dt)
		g.Expect(err).NotTo(HaveOccurred())

		next := linalg.MatVec(A, linalg.Vec(x))
		next.AddScaledVec(next, u[0], B.ColView(0))
		x = linalg.Slice(next)
		g.Expect(math.Abs(x[2])).To(BeNumerically("<=", 0.2))
	}
	g.Expect(math.Abs(x[2])).To(BeNumerically("<", 1e-3))
}

func TestPIDComputeIndex(t *testing.T) {
	g := NewWithT(t)
	pid, _ := NewPID(1, 0, 0, 0.5, 1)

	u, err := pid.Compute(dynamo.State{9, 0.25}, 0, 0.1)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(u).To(Equal(dynamo.Control{0.25}))

	_, err = pid.Compute(dynamo.State{1}, 0, 0.1)
	g.Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))

	_, err = NewPID(1, 0, 0, 0, -1)
	g.Expect(errors.Is(err, dynamo.ErrInvalidConfig)).To(BeTrue())
}

func TestPIDParams(t *testing.T) {
	g := NewWithT(t)
	pid, _ := NewPID(1, 2, 3, 0, 0)

	g.Expect(pid.SetParam("Kd", 4)).To(Succeed())
	g.Expect(pid.GetParams()).To(HaveKeyWithValue("Kd", 4.0))
	g.Expect(pid.SetParam("Kx", 1)).NotTo(Succeed())
}

func TestNone(t *testing.T) {
	g := NewWithT(t)
	u, err := NewNone(2).Compute(dynamo.State{1, 2}, 0, 0.1)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(u).To(Equal(dynamo.Control{0, 0}))
}
