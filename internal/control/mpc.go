package control

import (
	"math"

	"github.com/san-kum/robosim/internal/dynamo"
	"github.com/san-kum/robosim/internal/linalg"
	"gonum.org/v1/gonum/mat"
)

// MPCParams describe a linear MPC problem over a finite horizon.
type MPCParams struct {
	Horizon int
	Q       *mat.Dense
	QN      *mat.Dense
	R       *mat.Dense
	XRef    *mat.VecDense
	XMin    *mat.VecDense
	XMax    *mat.VecDense
	UMin    *mat.VecDense
	UMax    *mat.VecDense
}

// DefaultMPCParams returns the cart-pole tracking problem with a 12 step
// horizon, unit weights and a ±30° input bound.
func DefaultMPCParams() MPCParams {
	const bound = 30 * math.Pi / 180
	return MPCParams{
		Horizon: 12,
		Q:       linalg.Eye(4),
		QN:      linalg.Eye(4),
		R:       linalg.Eye(1),
		XRef:    mat.NewVecDense(4, []float64{1, 0, 0, 0}),
		XMin:    mat.NewVecDense(4, []float64{-10, -10, -1, -1}),
		XMax:    mat.NewVecDense(4, []float64{10, 10, 1, 1}),
		UMin:    mat.NewVecDense(1, []float64{-bound}),
		UMax:    mat.NewVecDense(1, []float64{bound}),
	}
}

// QP is a quadratic program
//
//	minimise ½zᵀPz + qᵀz  subject to  l ≤ Az ≤ u
//
// over z = (x(0), …, x(N), u(0), …, u(N−1)).
type QP struct {
	P *mat.Dense
	Q *mat.VecDense
	A *mat.Dense
	L *mat.VecDense
	U *mat.VecDense

	// Equality rows: the first Eq rows of A encode the dynamics.
	Eq int
}

// BuildQPMatrices casts the MPC problem for plant (A, B) at initial state
// x0 to a QP. Solving the QP is left to the caller.
func BuildQPMatrices(A, B mat.Matrix, x0 mat.Vector, p MPCParams) (*QP, error) {
	nx, _ := A.Dims()
	_, nu := B.Dims()
	n := p.Horizon

	if n <= 0 {
		return nil, dynamo.NewConfigError("horizon", n, "must be positive")
	}
	if x0.Len() != nx || p.XRef.Len() != nx || p.XMin.Len() != nx || p.XMax.Len() != nx {
		return nil, dynamo.ErrDimensionMismatch
	}
	if p.UMin.Len() != nu || p.UMax.Len() != nu {
		return nil, dynamo.ErrDimensionMismatch
	}

	// Objective.
	P := linalg.BlockDiag(
		linalg.Kron(linalg.Eye(n), p.Q),
		p.QN,
		linalg.Kron(linalg.Eye(n), p.R),
	)

	qx := linalg.MatVec(p.Q, p.XRef)
	qx.ScaleVec(-1, qx)
	qn := linalg.MatVec(p.QN, p.XRef)
	qn.ScaleVec(-1, qn)
	q := linalg.VStack(
		linalg.Kron(linalg.Ones(n, 1), qx),
		qn,
		linalg.Zeros(n*nu, 1),
	)

	// Dynamics: −x(k+1) + A·x(k) + B·u(k) = 0, x(0) = x0.
	negEye := linalg.Eye(nx)
	negEye.Scale(-1, negEye)
	var ax mat.Dense
	ax.Add(
		linalg.Kron(linalg.Eye(n+1), negEye),
		linalg.Kron(linalg.EyeOffset(n+1, -1), A),
	)
	bu := linalg.Kron(linalg.VStack(linalg.Zeros(1, n), linalg.Eye(n)), B)
	aeq := linalg.HStack(&ax, bu)

	negX0 := mat.VecDenseCopyOf(x0)
	negX0.ScaleVec(-1, negX0)
	leq := linalg.VStack(negX0, linalg.Zeros(n*nx, 1))

	// Box constraints.
	nz := (n+1)*nx + n*nu
	aineq := linalg.Eye(nz)
	lineq := linalg.VStack(
		linalg.Kron(linalg.Ones(n+1, 1), p.XMin),
		linalg.Kron(linalg.Ones(n, 1), p.UMin),
	)
	uineq := linalg.VStack(
		linalg.Kron(linalg.Ones(n+1, 1), p.XMax),
		linalg.Kron(linalg.Ones(n, 1), p.UMax),
	)

	eqRows, _ := aeq.Dims()
	return &QP{
		P:  P,
		Q:  mat.VecDenseCopyOf(q.ColView(0)),
		A:  linalg.VStack(aeq, aineq),
		L:  mat.VecDenseCopyOf(linalg.VStack(leq, lineq).ColView(0)),
		U:  mat.VecDenseCopyOf(linalg.VStack(leq, uineq).ColView(0)),
		Eq: eqRows,
	}, nil
}
