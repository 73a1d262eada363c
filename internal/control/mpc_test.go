package control

import (
	"testing"

	. "github.com/onsi/gomega"
	"github.com/san-kum/robosim/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

func TestBuildQPMatricesShapes(t *testing.T) {
	g := NewWithT(t)
	A, B := cartPoleModel(0.1)
	p := DefaultMPCParams()
	x0 := mat.NewVecDense(4, []float64{0, 1, 1, 0})

	qp, err := BuildQPMatrices(A, B, x0, p)
	g.Expect(err).NotTo(HaveOccurred())

	const nx, nu, n = 4, 1, 12
	nz := (n+1)*nx + n*nu

	r, c := qp.P.Dims()
	g.Expect([]int{r, c}).To(Equal([]int{nz, nz}))
	g.Expect(qp.Q.Len()).To(Equal(nz))
	g.Expect(qp.Eq).To(Equal((n + 1) * nx))

	r, c = qp.A.Dims()
	g.Expect([]int{r, c}).To(Equal([]int{(n+1)*nx + nz, nz}))
	g.Expect(qp.L.Len()).To(Equal(r))
	g.Expect(qp.U.Len()).To(Equal(r))

	// Initial-state rows pin x(0) to x0.
	for i := 0; i < nx; i++ {
		g.Expect(qp.L.AtVec(i)).To(Equal(-x0.AtVec(i)))
		g.Expect(qp.U.AtVec(i)).To(Equal(qp.L.AtVec(i)))
		g.Expect(qp.A.At(i, i)).To(Equal(-1.0))
	}

	// Tracking term for x(0) is −Q·xr.
	g.Expect(qp.Q.AtVec(0)).To(Equal(-1.0))
	g.Expect(qp.Q.AtVec(nz - 1)).To(Equal(0.0))
}

func TestBuildQPMatricesDynamicsRows(t *testing.T) {
	g := NewWithT(t)
	A, B := cartPoleModel(0.1)
	p := DefaultMPCParams()
	p.Horizon = 2
	x0 := mat.NewVecDense(4, []float64{0.5, 0, 0.1, 0})

	qp, err := BuildQPMatrices(A, B, x0, p)
	g.Expect(err).NotTo(HaveOccurred())

	// Roll the plant forward under a fixed input sequence and check the
	// equality rows vanish on that trajectory.
	u := []float64{0.3, -0.2}
	z := make([]float64, 0, 3*4+2)
	x := mat.VecDenseCopyOf(x0)
	z = append(z, x.RawVector().Data...)
	for _, uk := range u {
		var next mat.VecDense
		next.MulVec(A, x)
		next.AddScaledVec(&next, uk, B.ColView(0))
		x = &next
		z = append(z, x.RawVector().Data...)
	}
	z = append(z, u...)

	var az mat.VecDense
	az.MulVec(qp.A, mat.NewVecDense(len(z), z))
	for i := 0; i < qp.Eq; i++ {
		g.Expect(az.AtVec(i)).To(BeNumerically("~", qp.L.AtVec(i), 1e-12))
	}
}

func TestBuildQPMatricesErrors(t *testing.T) {
	g := NewWithT(t)
	A, B := cartPoleModel(0.1)

	p := DefaultMPCParams()
	p.Horizon = 0
	_, err := BuildQPMatrices(A, B, mat.NewVecDense(4, nil), p)
	g.Expect(err).To(HaveOccurred())

	_, err = BuildQPMatrices(A, B, mat.NewVecDense(3, nil), DefaultMPCParams())
	g.Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
}
