// Package zegemm result comparison against the reference oracle
package zegemm

import (
	"fmt"
	"math"

	"github.com/gomlx/exceptions"
)

// Comparison is the outcome of Compare. On failure Row, Col, Got and Want
// describe the first cell over CorrectnessThreshold in row-major order; the
// maximum errors then cover the cells checked up to and including it.
type Comparison struct {
	Pass        bool
	Rows, Cols  int
	Checked     int
	MaxRelError float64
	MaxAbsError float64

	Row, Col  int
	Got, Want float32
	RelError  float64
}

// RelativeError returns |a-b| / max(|a|, |b|). Equal values, both zeros
// included, give 0; a NaN operand gives NaN.
func RelativeError(a, b float32) float64 {
	if a == b {
		return 0
	}
	x, y := float64(a), float64(b)
	return math.Abs(x-y) / math.Max(math.Abs(x), math.Abs(y))
}

// Compare checks got against want cell by cell over a rows x cols region
// stored row-major with leading dimension ld. It stops at the first cell
// whose relative error exceeds CorrectnessThreshold or that holds a NaN.
func Compare(got, want []float32, rows, cols, ld int) Comparison {
	if ld < cols {
		exceptions.Panicf("Compare: leading dimension %d smaller than %d columns", ld, cols)
	}
	if rows > 0 && cols > 0 {
		if need := (rows-1)*ld + cols; len(got) < need || len(want) < need {
			exceptions.Panicf("Compare: buffers of %d and %d elements cannot hold %dx%d with ld=%d",
				len(got), len(want), rows, cols, ld)
		}
	}

	res := Comparison{Pass: true, Rows: rows, Cols: cols, Row: -1, Col: -1}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			g, w := got[r*ld+c], want[r*ld+c]
			res.Checked++
			rel := RelativeError(g, w)
			abs := math.Abs(float64(g) - float64(w))
			if g == w {
				abs = 0
			}
			if !math.IsNaN(rel) {
				res.MaxRelError = math.Max(res.MaxRelError, rel)
				res.MaxAbsError = math.Max(res.MaxAbsError, abs)
			}
			if math.IsNaN(rel) || rel > CorrectnessThreshold {
				res.Pass = false
				res.Row, res.Col = r, c
				res.Got, res.Want = g, w
				res.RelError = rel
				return res
			}
		}
	}
	return res
}

// CompareMatrices compares the logical region of two equally shaped matrices.
func CompareMatrices(got, want *Matrix) (Comparison, error) {
	for _, m := range []*Matrix{got, want} {
		if m == nil || m.Released() {
			return Comparison{}, newError(ErrInvalidArgument, "Compare", "matrix is nil or released")
		}
	}
	if got.Rows != want.Rows || got.Cols != want.Cols || got.Stride != want.Stride {
		return Comparison{}, newError(ErrInvalidArgument, "Compare", "shape mismatch: %s vs %s", got, want)
	}
	return Compare(got.Data(), want.Data(), got.Rows, got.Cols, got.Stride), nil
}

// String formats the comparison for display
func (c Comparison) String() string {
	if c.Pass {
		return fmt.Sprintf("PASS: %dx%d values within %g (max relative error %e, max absolute error %e)",
			c.Rows, c.Cols, CorrectnessThreshold, c.MaxRelError, c.MaxAbsError)
	}
	return fmt.Sprintf("FAIL: [%d, %d] got %v want %v (relative error %e > %g)",
		c.Row, c.Col, c.Got, c.Want, c.RelError, CorrectnessThreshold)
}

// Err returns nil on PASS and a correctness error otherwise.
func (c Comparison) Err() error {
	if c.Pass {
		return nil
	}
	e := newError(ErrCorrectness, "Compare", "%s", c)
	e.Context = c
	return e
}
