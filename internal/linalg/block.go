package linalg

import "gonum.org/v1/gonum/mat"

// HStack concatenates matrices left to right. All inputs must share a row
// count; gonum panics with mat.ErrShape otherwise.
func HStack(ms ...mat.Matrix) *mat.Dense {
	out := mat.DenseCopyOf(ms[0])
	for _, m := range ms[1:] {
		var next mat.Dense
		next.Augment(out, m)
		out = &next
	}
	return out
}

// VStack concatenates matrices top to bottom.
func VStack(ms ...mat.Matrix) *mat.Dense {
	out := mat.DenseCopyOf(ms[0])
	for _, m := range ms[1:] {
		var next mat.Dense
		next.Stack(out, m)
		out = &next
	}
	return out
}

// BlockDiag places the inputs along the diagonal of a zero matrix.
func BlockDiag(ms ...mat.Matrix) *mat.Dense {
	rows, cols := 0, 0
	for _, m := range ms {
		r, c := m.Dims()
		rows += r
		cols += c
	}

	out := mat.NewDense(rows, cols, nil)
	i, j := 0, 0
	for _, m := range ms {
		r, c := m.Dims()
		if r > 0 && c > 0 {
			out.Slice(i, i+r, j, j+c).(*mat.Dense).Copy(m)
		}
		i += r
		j += c
	}
	return out
}

// Kron returns the Kronecker product a ⊗ b.
func Kron(a, b mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Kronecker(a, b)
	return &out
}
