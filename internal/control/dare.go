package control

import (
	"github.com/san-kum/robosim/internal/dynamo"
	"github.com/san-kum/robosim/internal/linalg"
	"gonum.org/v1/gonum/mat"
)

// Solution is the outcome of a Riccati fixed-point iteration.
type Solution struct {
	P          *mat.Dense
	Iterations int
	// Residual is the largest absolute entry of P_{n+1} − P_n at the last
	// iteration.
	Residual  float64
	Converged bool
	// Steps holds ‖P_{n+1} − P_n‖_F for every iteration performed.
	Steps []float64
}

// SolveDARE solves the discrete algebraic Riccati equation
//
//	P = AᵀPA − AᵀPB (R + BᵀPB)⁻¹ BᵀPA + Q
//
// by fixed-point iteration from P₀ = Q. Iteration stops when the largest
// absolute entry of P_{n+1} − P_n falls below eps.
//
// Exhausting maxIter is not fatal: the last iterate is returned together
// with a *dynamo.NumericalError wrapping dynamo.ErrNonConvergent. A failed
// pseudo-inverse returns a nil Solution and dynamo.ErrInverseFailed.
func SolveDARE(A, B, Q, R mat.Matrix, eps float64, maxIter int) (*Solution, error) {
	return SolveDAREFrom(Q, A, B, Q, R, eps, maxIter)
}

// SolveDAREFrom is SolveDARE with an explicit starting point, typically the
// previous tick's solution.
func SolveDAREFrom(P0, A, B, Q, R mat.Matrix, eps float64, maxIter int) (*Solution, error) {
	if maxIter <= 0 {
		return nil, dynamo.NewConfigError("max_iter", maxIter, "must be positive")
	}
	if !(eps > 0) {
		return nil, dynamo.NewConfigError("epsilon", eps, "must be positive")
	}

	sol := &Solution{
		P:     mat.DenseCopyOf(P0),
		Steps: make([]float64, 0, maxIter),
	}

	for i := 0; i < maxIter; i++ {
		next, err := RiccatiStep(sol.P, A, B, Q, R, eps)
		if err != nil {
			return nil, &dynamo.NumericalError{Op: "dare", Iterations: i + 1, Wrapped: err}
		}

		sol.Iterations = i + 1
		sol.Residual = linalg.MaxAbsDiff(next, sol.P)
		sol.Steps = append(sol.Steps, linalg.FrobeniusDiff(next, sol.P))
		sol.P = next

		if sol.Residual < eps {
			sol.Converged = true
			sol.P = symmetric(sol.P)
			return sol, nil
		}
	}

	sol.P = symmetric(sol.P)
	return sol, &dynamo.NumericalError{
		Op:         "dare",
		Iterations: sol.Iterations,
		Residual:   sol.Residual,
		Wrapped:    dynamo.ErrNonConvergent,
	}
}

// RiccatiStep performs one iteration of the Riccati map. The bracketed
// term R + BᵀPB is inverted with PseudoInverse at tolerance eps.
func RiccatiStep(P, A, B, Q, R mat.Matrix, eps float64) (*mat.Dense, error) {
	AT := A.T()
	BT := B.T()

	var s mat.Dense
	s.Product(BT, P, B)
	s.Add(&s, R)

	inv, err := linalg.PseudoInverse(&s, eps)
	if err != nil {
		return nil, err
	}

	atpa := linalg.Mul(AT, P, A)
	atpb := linalg.Mul(AT, P, B)
	btpa := linalg.Mul(BT, P, A)

	var corr mat.Dense
	corr.Product(atpb, inv, btpa)

	var next mat.Dense
	next.Sub(atpa, &corr)
	next.Add(&next, Q)
	return &next, nil
}

// symmetric removes the rounding asymmetry the iteration accumulates in P.
func symmetric(P *mat.Dense) *mat.Dense {
	return mat.DenseCopyOf(linalg.Symmetrize(P))
}
