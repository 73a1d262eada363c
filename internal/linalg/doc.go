// Package linalg collects the small matrix helpers the controllers and
// filters share, layered on gonum/mat.
//
// Construction ([Eye], [EyeOffset], [Diag], [Ones]), block assembly
// ([HStack], [VStack], [BlockDiag], [Kron]), comparison ([MaxAbsDiff],
// [FrobeniusDiff]) and a tolerance-aware [PseudoInverse] that reports
// failure instead of producing NaN.
package linalg
