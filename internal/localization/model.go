package localization

import (
	"math"

	"github.com/san-kum/robosim/internal/physics"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Input is the vehicle command: forward speed and yaw rate.
type Input struct {
	V       float64
	YawRate float64
}

func (u Input) Vec() *mat.VecDense {
	return mat.NewVecDense(physics.VehicleInputs, []float64{u.V, u.YawRate})
}

// Observation is one noisy range to a known landmark.
type Observation struct {
	Range float64
	X     float64
	Y     float64
}

// GaussLikelihood returns the N(0, sigma²) density at x.
func GaussLikelihood(x, sigma float64) float64 {
	return distuv.Normal{Mu: 0, Sigma: sigma}.Prob(x)
}

// EffectiveSampleSize returns 1/Σw². Uniform weights give len(w); a single
// particle holding all weight gives 1.
func EffectiveSampleSize(w []float64) float64 {
	return 1 / floats.Dot(w, w)
}

// WeightedMean returns Σ wᵢ·xᵢ over the columns of px.
func WeightedMean(px mat.Matrix, w []float64) *mat.VecDense {
	var est mat.VecDense
	est.MulVec(px, mat.NewVecDense(len(w), w))
	return &est
}

// Covariance returns the weighted covariance of the first three state
// components (x, y, heading) about est, scaled by 1/(1 − Σw²). A population
// whose weight sits on one particle has no spread and yields zero.
func Covariance(est mat.Vector, px mat.Matrix, w []float64) *mat.SymDense {
	const dims = 3
	cov := mat.NewSymDense(dims, nil)
	d := mat.NewVecDense(dims, nil)

	for i, wi := range w {
		for k := 0; k < dims; k++ {
			d.SetVec(k, px.At(k, i)-est.AtVec(k))
		}
		cov.SymRankOne(cov, wi, d)
	}

	denom := 1 - floats.Dot(w, w)
	if denom <= 1e-12 || math.IsNaN(denom) {
		return mat.NewSymDense(dims, nil)
	}
	cov.ScaleSym(1/denom, cov)
	return cov
}
