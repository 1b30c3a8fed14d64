// Package zegemm reference implementations for verification
package zegemm

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// ReferenceSGEMM computes C = alpha*A*B + beta*C with a plain triple loop.
// A is m x k with leading dimension lda, B is k x n with ldb, C is m x n
// with ldc, all row-major.
func ReferenceSGEMM(m, n, k int, alpha float32,
	a []float32, lda int, b []float32, ldb int,
	beta float32, c []float32, ldc int) {

	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			sum := float32(0)
			for l := 0; l < k; l++ {
				sum += a[i*lda+l] * b[l*ldb+j]
			}
			c[i*ldc+j] = alpha*sum + beta*c[i*ldc+j]
		}
	}
}

// TrustedSGEMM computes the same product as ReferenceSGEMM using gonum's
// BLAS, the oracle device results are checked against.
func TrustedSGEMM(m, n, k int, alpha float32,
	a []float32, lda int, b []float32, ldb int,
	beta float32, c []float32, ldc int) {

	blas32.Gemm(blas.NoTrans, blas.NoTrans, alpha,
		blas32.General{Rows: m, Cols: k, Stride: lda, Data: a},
		blas32.General{Rows: k, Cols: n, Stride: ldb, Data: b},
		beta,
		blas32.General{Rows: m, Cols: n, Stride: ldc, Data: c})
}

// SGEMMFunc is the signature shared by ReferenceSGEMM and TrustedSGEMM.
type SGEMMFunc func(m, n, k int, alpha float32,
	a []float32, lda int, b []float32, ldb int,
	beta float32, c []float32, ldc int)

// MatrixSGEMM runs fn on matrices: C = alpha*A*B + beta*C.
func MatrixSGEMM(fn SGEMMFunc, alpha float32, a, b *Matrix, beta float32, c *Matrix) error {
	if err := checkShapes(a, b, c); err != nil {
		return err
	}
	fn(a.Rows, b.Cols, a.Cols, alpha, a.Data(), a.Stride, b.Data(), b.Stride, beta, c.Data(), c.Stride)
	return nil
}
