package optim

import (
	"context"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/san-kum/robosim/internal/config"
)

func TestParseParam(t *testing.T) {
	g := NewWithT(t)
	p, err := ParseParam("kp=10:50:5")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(p.Name).To(Equal("kp"))
	g.Expect(p.Values).To(Equal([]float64{10, 20, 30, 40, 50}))

	p, err = ParseParam("r=0.01, 0.1,1")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(p.Values).To(Equal([]float64{0.01, 0.1, 1}))

	for _, bad := range []string{"kp", "=1,2", "kp=1:2", "kp=1:2:1", "kp=a,b", "kp=1:x:3"} {
		_, err := ParseParam(bad)
		g.Expect(err).To(HaveOccurred(), bad)
	}
}

func TestApply(t *testing.T) {
	g := NewWithT(t)
	cfg := config.DefaultConfig()

	g.Expect(Apply(cfg, "kd", 7)).NotTo(HaveOccurred())
	g.Expect(Apply(cfg, "q_theta", 5)).NotTo(HaveOccurred())
	g.Expect(Apply(cfg, "r", 0.1)).NotTo(HaveOccurred())
	g.Expect(Apply(cfg, "particles", 49.6)).NotTo(HaveOccurred())

	g.Expect(cfg.PID.Kd).To(Equal(7.0))
	g.Expect(cfg.LQR.Q).To(Equal([]float64{0, 1, 5, 0}))
	g.Expect(cfg.LQR.R).To(Equal([]float64{0.1}))
	g.Expect(cfg.ParticleFilter.Particles).To(Equal(50))

	g.Expect(Apply(cfg, "gravity", 1)).To(HaveOccurred())
}

func TestGridSearchPicksStabilisingGain(t *testing.T) {
	g := NewWithT(t)
	base := config.GetPreset(config.ScenarioPendulum, "pid")
	base.Duration = 5

	gs := NewGridSearch([]Param{{Name: "kp", Values: []float64{0, 40}}}, Maximize())
	out, err := gs.Search(context.Background(), base, "stability")
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(out.Params["kp"]).To(Equal(40.0))
	g.Expect(out.Value).To(Equal(1.0))
	g.Expect(out.Evaluated).To(Equal(2))
	g.Expect(out.Failed).To(BeZero())
	g.Expect(base.PID.Kp).To(Equal(config.DefaultKp), "base config must not be modified")
}

func TestGridSearchSkipsInvalidPoints(t *testing.T) {
	g := NewWithT(t)
	base := config.DefaultConfig()
	base.Duration = 1

	gs := NewGridSearch([]Param{{Name: "r", Values: []float64{0, 0.01}}})
	out, err := gs.Search(context.Background(), base, "control_effort")
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(out.Params["r"]).To(Equal(0.01))
	g.Expect(out.Failed).To(Equal(1))
}

func TestGridSearchNoCandidate(t *testing.T) {
	g := NewWithT(t)
	gs := NewGridSearch([]Param{{Name: "r", Values: []float64{0, -1}}})
	_, err := gs.Search(context.Background(), config.DefaultConfig(), "control_effort")
	g.Expect(err).To(MatchError(ErrNoCandidate))
}

func TestGridSearchUnknownMetric(t *testing.T) {
	g := NewWithT(t)
	base := config.DefaultConfig()
	base.Duration = 0.5

	gs := NewGridSearch([]Param{{Name: "kp", Values: []float64{1}}})
	_, err := gs.Search(context.Background(), base, "no_such_metric")
	g.Expect(err).To(MatchError(ErrNoCandidate))
}

func TestGridSearchRejectsUnknownTunable(t *testing.T) {
	g := NewWithT(t)
	gs := NewGridSearch([]Param{{Name: "mass", Values: []float64{1}}})
	_, err := gs.Search(context.Background(), config.DefaultConfig(), "stability")
	g.Expect(err).To(HaveOccurred())
	g.Expect(err).NotTo(MatchError(ErrNoCandidate))
}

func TestGridSearchCanceled(t *testing.T) {
	g := NewWithT(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gs := NewGridSearch([]Param{{Name: "kp", Values: []float64{1, 2}}})
	_, err := gs.Search(ctx, config.DefaultConfig(), "stability")
	g.Expect(err).To(MatchError(context.Canceled))
}
