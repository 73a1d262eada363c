package localization

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/san-kum/robosim/internal/dynamo"
	"github.com/san-kum/robosim/internal/linalg"
	"github.com/san-kum/robosim/internal/physics"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// minParallelChunk is the smallest particle range handed to one worker.
const minParallelChunk = 32

// Filter is a sequential-importance-resampling particle filter for a
// unicycle observing ranges to known landmarks.
//
// A Filter is not safe for concurrent use. All randomness comes from the
// source given to New.
type Filter struct {
	cfg   Config
	rng   *rand.Rand
	model physics.Vehicle

	px  *mat.Dense // one particle per column
	pw  []float64
	est *mat.VecDense

	resamples    int
	degeneracies int
	resampled    bool
}

// New returns a filter whose particles all start at the origin with
// uniform weight.
func New(cfg Config, rng *rand.Rand) (*Filter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, dynamo.NewConfigError("rng", nil, "missing")
	}

	f := &Filter{cfg: cfg, rng: rng}
	f.Reset(mat.NewVecDense(physics.VehicleStates, nil))
	return f, nil
}

// Reset places every particle at x0, sets uniform weights and takes x0 as
// the current estimate. Counters are cleared.
func (f *Filter) Reset(x0 mat.Vector) {
	n := f.cfg.Particles
	f.px = mat.NewDense(physics.VehicleStates, n, nil)
	col := linalg.Slice(x0)
	for i := 0; i < n; i++ {
		f.px.SetCol(i, col)
	}
	f.pw = make([]float64, n)
	for i := range f.pw {
		f.pw[i] = 1 / float64(n)
	}
	f.est = mat.VecDenseCopyOf(x0)
	f.resamples = 0
	f.degeneracies = 0
	f.resampled = false
}

func (f *Filter) Config() Config {
	return f.cfg
}

// Sense returns one noisy range per landmark within MaxRange of x. A
// landmark exactly at MaxRange is observed.
func (f *Filter) Sense(x mat.Vector, landmarks []physics.Landmark) []Observation {
	noise := distuv.Normal{Mu: 0, Sigma: math.Sqrt(f.cfg.Sim.RangeVar), Src: f.rng}

	z := make([]Observation, 0, len(landmarks))
	for _, lm := range landmarks {
		d := lm.Distance(x.AtVec(0), x.AtVec(1))
		if d <= f.cfg.MaxRange {
			z = append(z, Observation{Range: d + noise.Rand(), X: lm.X, Y: lm.Y})
		}
	}
	return z
}

// Observe advances the ground truth xTrue by u, synthesises range
// observations from it, and advances the dead-reckoning state xDR with a
// noisy copy of u. Both states are updated in place. The noisy input is
// returned for Localize.
func (f *Filter) Observe(xTrue, xDR *mat.VecDense, u Input, landmarks []physics.Landmark, dt float64) ([]Observation, Input) {
	xTrue.CopyVec(f.model.Step(xTrue, u.Vec(), dt))
	z := f.Sense(xTrue, landmarks)

	ud := f.perturb(u, f.cfg.Sim)
	xDR.CopyVec(f.model.Step(xDR, ud.Vec(), dt))
	return z, ud
}

func (f *Filter) perturb(u Input, noise NoiseModel) Input {
	speed := distuv.Normal{Mu: 0, Sigma: math.Sqrt(noise.SpeedVar), Src: f.rng}
	yaw := distuv.Normal{Mu: 0, Sigma: math.Sqrt(noise.YawRateVar), Src: f.rng}
	return Input{
		V:       u.V + speed.Rand(),
		YawRate: u.YawRate + yaw.Rand(),
	}
}

// Localize runs one filter tick: every particle is moved with its own
// noisy copy of ud and reweighted by the likelihood of z. It returns the
// covariance of the new estimate.
//
// When every weight collapses to zero the population is scattered around
// the previous estimate with uniform weights and the returned error wraps
// dynamo.ErrDegenerateWeights. The filter stays usable.
func (f *Filter) Localize(z []Observation, ud Input, dt float64) (*mat.SymDense, error) {
	if !(dt > 0) {
		return nil, dynamo.NewConfigError("dt", dt, "must be positive")
	}
	n := f.cfg.Particles
	f.resampled = false

	// Noise is drawn up front so the particle loop can run in parallel
	// without sharing the source.
	inputs := make([]Input, n)
	for i := range inputs {
		inputs[i] = f.perturb(ud, f.cfg.Filter)
	}

	sigma := math.Sqrt(f.cfg.Filter.RangeVar)
	predict := func(start, end int) {
		col := mat.NewVecDense(physics.VehicleStates, nil)
		for i := start; i < end; i++ {
			col.CopyVec(f.px.ColView(i))
			x := f.model.Step(col, inputs[i].Vec(), dt)

			w := f.pw[i]
			for _, obs := range z {
				pre := math.Hypot(x.AtVec(0)-obs.X, x.AtVec(1)-obs.Y)
				w *= GaussLikelihood(pre-obs.Range, sigma)
			}
			f.px.SetCol(i, x.RawVector().Data)
			f.pw[i] = w
		}
	}
	if f.cfg.Parallel {
		dynamo.ParallelFor(n, minParallelChunk, predict)
	} else {
		predict(0, n)
	}

	sum := floats.Sum(f.pw)
	if !(sum > 0) || math.IsInf(sum, 0) {
		f.reinitialize()
		f.est = WeightedMean(f.px, f.pw)
		return Covariance(f.est, f.px, f.pw), fmt.Errorf("localize: weight sum %g: %w", sum, dynamo.ErrDegenerateWeights)
	}
	floats.Scale(1/sum, f.pw)

	f.est = WeightedMean(f.px, f.pw)
	cov := Covariance(f.est, f.px, f.pw)

	if EffectiveSampleSize(f.pw) < float64(n)*f.cfg.ResampleRatio {
		f.Resample()
	}
	return cov, nil
}

func (f *Filter) reinitialize() {
	n := f.cfg.Particles
	sigma := math.Sqrt(f.cfg.Filter.RangeVar)
	spread := distuv.Normal{Mu: 0, Sigma: sigma, Src: f.rng}

	col := make([]float64, physics.VehicleStates)
	for i := 0; i < n; i++ {
		col[0] = f.est.AtVec(0) + spread.Rand()
		col[1] = f.est.AtVec(1) + spread.Rand()
		col[2] = f.est.AtVec(2)
		col[3] = f.est.AtVec(3)
		f.px.SetCol(i, col)
		f.pw[i] = 1 / float64(n)
	}
	f.degeneracies++
}

// Resample replaces the population by systematic resampling and resets the
// weights to uniform.
func (f *Filter) Resample() {
	Resample(f.px, f.pw, f.rng)
	f.resamples++
	f.resampled = true
}

// Estimate returns a copy of the weighted mean state.
func (f *Filter) Estimate() *mat.VecDense {
	return mat.VecDenseCopyOf(f.est)
}

// Particles returns a copy of the population, one particle per column.
func (f *Filter) Particles() *mat.Dense {
	return mat.DenseCopyOf(f.px)
}

func (f *Filter) Weights() []float64 {
	return append([]float64(nil), f.pw...)
}

func (f *Filter) EffectiveSampleSize() float64 {
	return EffectiveSampleSize(f.pw)
}

// Resamples counts resampling events since the last Reset.
func (f *Filter) Resamples() int {
	return f.resamples
}

// Degeneracies counts re-initialisations since the last Reset.
func (f *Filter) Degeneracies() int {
	return f.degeneracies
}

// Resampled reports whether the last Localize resampled.
func (f *Filter) Resampled() bool {
	return f.resampled
}
