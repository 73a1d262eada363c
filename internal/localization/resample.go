package localization

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Resample performs systematic resampling in place: the population in px
// (one particle per column) is replaced by draws proportional to w, and w
// is reset to uniform.
//
// Point i is i/N plus a jitter drawn from [0, 1/N). The scan over the
// cumulative weights never moves backwards and stops at the last particle,
// so a cumulative sum short of 1 cannot index past the population.
func Resample(px *mat.Dense, w []float64, rng *rand.Rand) {
	n := len(w)
	if n == 0 {
		return
	}

	cum := floats.CumSum(make([]float64, n), w)
	jitter := distuv.Uniform{Min: 0, Max: 1 / float64(n), Src: rng}

	rows, _ := px.Dims()
	next := mat.NewDense(rows, n, nil)
	col := make([]float64, rows)

	ind := 0
	for i := 0; i < n; i++ {
		point := float64(i)/float64(n) + jitter.Rand()
		for point > cum[ind] && ind < n-1 {
			ind++
		}
		mat.Col(col, ind, px)
		next.SetCol(i, col)
	}

	px.Copy(next)
	for i := range w {
		w[i] = 1 / float64(n)
	}
}
