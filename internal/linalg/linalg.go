package linalg

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Eye returns the n×n identity matrix.
func Eye(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// EyeOffset returns an n×n matrix with ones on the k-th diagonal. Positive k
// selects a super-diagonal, negative k a sub-diagonal.
func EyeOffset(n, k int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		j := i + k
		if j >= 0 && j < n {
			m.Set(i, j, 1)
		}
	}
	return m
}

// Diag returns a square matrix with vals on its diagonal.
func Diag(vals ...float64) *mat.Dense {
	n := len(vals)
	m := mat.NewDense(n, n, nil)
	for i, v := range vals {
		m.Set(i, i, v)
	}
	return m
}

func Zeros(r, c int) *mat.Dense {
	return mat.NewDense(r, c, nil)
}

func Ones(r, c int) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = 1
	}
	return mat.NewDense(r, c, data)
}

// Vec copies x into a new column vector.
func Vec(x []float64) *mat.VecDense {
	data := make([]float64, len(x))
	copy(data, x)
	return mat.NewVecDense(len(data), data)
}

// Slice copies v into a new slice.
func Slice(v mat.Vector) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}

// Mul returns the ordered product of the factors.
func Mul(factors ...mat.Matrix) *mat.Dense {
	var out mat.Dense
	if len(factors) == 1 {
		out.CloneFrom(factors[0])
		return &out
	}
	out.Product(factors...)
	return &out
}

// MatVec returns a·x.
func MatVec(a mat.Matrix, x mat.Vector) *mat.VecDense {
	var out mat.VecDense
	out.MulVec(a, x)
	return &out
}

// MaxAbsDiff returns the largest absolute entry of a − b.
func MaxAbsDiff(a, b mat.Matrix) float64 {
	r, c := a.Dims()
	worst := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if d := math.Abs(a.At(i, j) - b.At(i, j)); d > worst || math.IsNaN(d) {
				worst = d
			}
		}
	}
	return worst
}

// FrobeniusDiff returns ‖a − b‖_F.
func FrobeniusDiff(a, b mat.Matrix) float64 {
	var d mat.Dense
	d.Sub(a, b)
	return mat.Norm(&d, 2)
}

// EqualWithin reports whether every entry of a and b differs by at most tol.
func EqualWithin(a, b mat.Matrix, tol float64) bool {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != br || ac != bc {
		return false
	}
	return MaxAbsDiff(a, b) <= tol
}

// IsFinite reports whether m contains no NaN or Inf entries.
func IsFinite(m mat.Matrix) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// Symmetrize returns (m + mᵀ)/2 as a SymDense.
func Symmetrize(m mat.Matrix) *mat.SymDense {
	n, _ := m.Dims()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, 0.5*(m.At(i, j)+m.At(j, i)))
		}
	}
	return s
}
