package control

import (
	"errors"
	"math/cmplx"

	"github.com/san-kum/robosim/internal/dynamo"
	"github.com/san-kum/robosim/internal/linalg"
	"gonum.org/v1/gonum/mat"
)

const (
	DefaultEpsilon = 0.01
	DefaultMaxIter = 150
)

// StateSpace provides a discrete-time linear model for a sample interval.
type StateSpace interface {
	Model(dt float64) (A, B *mat.Dense)
}

// Params are the cost weights and solver settings of an LQR design.
type Params struct {
	Q       *mat.Dense
	R       *mat.Dense
	Epsilon float64
	MaxIter int
}

// DefaultParams returns the cart-pole weights Q = diag(0, 1, 1, 0), R = 0.01.
func DefaultParams() Params {
	return Params{
		Q:       linalg.Diag(0, 1, 1, 0),
		R:       linalg.Diag(0.01),
		Epsilon: DefaultEpsilon,
		MaxIter: DefaultMaxIter,
	}
}

// Validate checks that Q is square with a non-negative diagonal, R square
// with a positive diagonal, and the solver settings are positive.
func (p Params) Validate() error {
	if p.Q == nil {
		return dynamo.NewConfigError("Q", nil, "missing")
	}
	if p.R == nil {
		return dynamo.NewConfigError("R", nil, "missing")
	}
	if r, c := p.Q.Dims(); r != c {
		return dynamo.NewConfigError("Q", [2]int{r, c}, "must be square")
	}
	if r, c := p.R.Dims(); r != c {
		return dynamo.NewConfigError("R", [2]int{r, c}, "must be square")
	}
	n, _ := p.Q.Dims()
	for i := 0; i < n; i++ {
		if v := p.Q.At(i, i); v < 0 {
			return dynamo.NewConfigError("Q", v, "diagonal must be non-negative")
		}
	}
	m, _ := p.R.Dims()
	for i := 0; i < m; i++ {
		if v := p.R.At(i, i); !(v > 0) {
			return dynamo.NewConfigError("R", v, "diagonal must be positive")
		}
	}
	if !(p.Epsilon > 0) {
		return dynamo.NewConfigError("epsilon", p.Epsilon, "must be positive")
	}
	if p.MaxIter <= 0 {
		return dynamo.NewConfigError("max_iter", p.MaxIter, "must be positive")
	}
	return nil
}

// Gain returns K = (R + BᵀPB)⁻¹ BᵀPA for a Riccati solution P.
func Gain(A, B, R, P mat.Matrix, eps float64) (*mat.Dense, error) {
	BT := B.T()

	var s mat.Dense
	s.Product(BT, P, B)
	s.Add(&s, R)

	inv, err := linalg.PseudoInverse(&s, eps)
	if err != nil {
		return nil, &dynamo.NumericalError{Op: "lqr gain", Wrapped: err}
	}
	return linalg.Mul(inv, BT, P, A), nil
}

// DLQR returns the infinite-horizon discrete LQR gain K (M×N).
//
// A non-convergent Riccati iteration still yields a gain from the last
// iterate; the error then wraps dynamo.ErrNonConvergent and K is non-nil.
func DLQR(A, B, Q, R mat.Matrix, eps float64, maxIter int) (*mat.Dense, error) {
	K, _, err := dlqr(nil, A, B, Q, R, eps, maxIter)
	return K, err
}

func dlqr(P0, A, B, Q, R mat.Matrix, eps float64, maxIter int) (*mat.Dense, *Solution, error) {
	if P0 == nil {
		P0 = Q
	}
	sol, solveErr := SolveDAREFrom(P0, A, B, Q, R, eps, maxIter)
	if sol == nil {
		return nil, nil, solveErr
	}

	K, err := Gain(A, B, R, sol.P, eps)
	if err != nil {
		return nil, sol, err
	}
	return K, sol, solveErr
}

// LQRControl returns u = −K·x for the gain designed on (A, B, Q, R).
func LQRControl(x mat.Vector, A, B, Q, R mat.Matrix, eps float64, maxIter int) (*mat.VecDense, error) {
	K, err := DLQR(A, B, Q, R, eps, maxIter)
	if K == nil {
		return nil, err
	}
	u := linalg.MatVec(K, x)
	u.ScaleVec(-1, u)
	return u, err
}

// ClosedLoopEigenvalues returns the eigenvalues of A − BK.
func ClosedLoopEigenvalues(A, B, K mat.Matrix) ([]complex128, error) {
	var bk, acl mat.Dense
	bk.Mul(B, K)
	acl.Sub(A, &bk)
	return linalg.Eigenvalues(&acl)
}

// IsStable reports whether every closed-loop eigenvalue lies within the
// unit circle, allowing tol for marginal modes.
func IsStable(A, B, K mat.Matrix, tol float64) (bool, error) {
	vals, err := ClosedLoopEigenvalues(A, B, K)
	if err != nil {
		return false, err
	}
	for _, v := range vals {
		if cmplx.Abs(v) > 1+tol {
			return false, nil
		}
	}
	return true, nil
}

// Diagnostics describes the most recent gain computation of an LQR.
type Diagnostics struct {
	Iterations int
	Residual   float64
	Converged  bool
	K          *mat.Dense
}

// LQR is a state-feedback controller that redesigns its gain every tick
// from the plant's discrete model.
type LQR struct {
	plant     StateSpace
	params    Params
	Target    dynamo.State
	warmStart bool

	prevP *mat.Dense
	last  Diagnostics
}

type LQROption func(*LQR)

// WithWarmStart seeds each Riccati iteration with the previous solution.
func WithWarmStart(enabled bool) LQROption {
	return func(l *LQR) { l.warmStart = enabled }
}

// WithTarget regulates about target instead of the origin.
func WithTarget(target dynamo.State) LQROption {
	return func(l *LQR) { l.Target = target.Clone() }
}

func NewLQR(plant StateSpace, params Params, opts ...LQROption) (*LQR, error) {
	if plant == nil {
		return nil, dynamo.NewConfigError("plant", nil, "missing")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	l := &LQR{plant: plant, params: params}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Compute designs K for dt and returns u = −K(x − target). On
// ErrInverseFailed no command is produced and the warm-start cache is
// left untouched.
func (l *LQR) Compute(x dynamo.State, t, dt float64) (dynamo.Control, error) {
	if !(dt > 0) {
		return nil, dynamo.NewConfigError("dt", dt, "must be positive")
	}

	A, B := l.plant.Model(dt)
	if n, _ := A.Dims(); n != len(x) {
		return nil, dynamo.ErrDimensionMismatch
	}

	var P0 mat.Matrix
	if l.warmStart && l.prevP != nil {
		P0 = l.prevP
	}

	K, sol, err := dlqr(P0, A, B, l.params.Q, l.params.R, l.params.Epsilon, l.params.MaxIter)
	if K == nil {
		return nil, err
	}

	l.last = Diagnostics{
		Iterations: sol.Iterations,
		Residual:   sol.Residual,
		Converged:  sol.Converged,
		K:          K,
	}
	if l.warmStart {
		l.prevP = sol.P
	}

	e := x.Sub(l.Target)
	u := linalg.MatVec(K, linalg.Vec(e))
	u.ScaleVec(-1, u)
	return dynamo.Control(linalg.Slice(u)), err
}

// Last returns diagnostics of the most recent successful design.
func (l *LQR) Last() Diagnostics {
	return l.last
}

// ResetState drops the warm-start cache.
func (l *LQR) ResetState() {
	l.prevP = nil
	l.last = Diagnostics{}
}

func (l *LQR) GetParams() map[string]float64 {
	return map[string]float64{
		"epsilon":  l.params.Epsilon,
		"max_iter": float64(l.params.MaxIter),
	}
}

func (l *LQR) SetParam(name string, value float64) error {
	next := l.params
	switch name {
	case "epsilon":
		next.Epsilon = value
	case "max_iter":
		next.MaxIter = int(value)
	default:
		return errors.New("lqr: unknown parameter " + name)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	l.params = next
	return nil
}
