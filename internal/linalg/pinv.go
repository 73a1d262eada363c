package linalg

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/san-kum/robosim/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// PseudoInverse returns the Moore-Penrose inverse of a computed from its
// thin SVD. Singular values at or below eps are treated as zero.
//
// The inverse fails with dynamo.ErrInverseFailed when eps is negative, the
// factorization does not converge, no singular value exceeds eps, or the
// result is not finite.
func PseudoInverse(a mat.Matrix, eps float64) (*mat.Dense, error) {
	if eps < 0 || math.IsNaN(eps) {
		return nil, fmt.Errorf("%w: tolerance %g must be non-negative", dynamo.ErrInverseFailed, eps)
	}
	if !IsFinite(a) {
		return nil, fmt.Errorf("%w: input contains NaN or Inf", dynamo.ErrInverseFailed)
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return nil, fmt.Errorf("%w: svd did not converge", dynamo.ErrInverseFailed)
	}

	s := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	sinv := mat.NewDiagDense(len(s), nil)
	rank := 0
	for i, sv := range s {
		if sv > eps {
			sinv.SetDiag(i, 1/sv)
			rank++
		}
	}
	if rank == 0 {
		return nil, fmt.Errorf("%w: no singular value above %g", dynamo.ErrInverseFailed, eps)
	}

	var out mat.Dense
	out.Product(&v, sinv, u.T())
	if !IsFinite(&out) {
		return nil, fmt.Errorf("%w: result is not finite", dynamo.ErrInverseFailed)
	}
	return &out, nil
}

// Eigenvalues returns the eigenvalues of the square matrix a.
func Eigenvalues(a mat.Matrix) ([]complex128, error) {
	var eig mat.Eigen
	if !eig.Factorize(a, mat.EigenNone) {
		return nil, &dynamo.NumericalError{Op: "eigen", Wrapped: dynamo.ErrNonConvergent}
	}
	return eig.Values(nil), nil
}

// SpectralRadius returns the largest eigenvalue magnitude of a.
func SpectralRadius(a mat.Matrix) (float64, error) {
	vals, err := Eigenvalues(a)
	if err != nil {
		return 0, err
	}
	rho := 0.0
	for _, v := range vals {
		rho = math.Max(rho, cmplx.Abs(v))
	}
	return rho, nil
}
