package zegemm

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/gomlx/exceptions"
)

// Matrix is a row-major float32 host matrix padded to SurfaceAlignment in
// both dimensions. Stride is the padded column count, and the backing
// storage holds Stride*RowsAligned() elements; padding is always zero.
//
// The caller that creates a Matrix owns its storage until Release.
type Matrix struct {
	Rows, Cols int
	Stride     int

	data []float32
}

// NewMatrix allocates a zeroed rows x cols matrix.
func NewMatrix(rows, cols int) (*Matrix, error) {
	if rows <= 0 || cols <= 0 {
		return nil, newError(ErrInvalidTileAlignment, "NewMatrix", "invalid matrix shape %dx%d", rows, cols)
	}
	stride := AlignUp(cols, SurfaceAlignment)
	rowsAligned := AlignUp(rows, SurfaceAlignment)
	if rowsAligned > math.MaxInt/ElementSize/stride {
		return nil, newError(ErrOutOfHostMemory, "NewMatrix", "matrix %dx%d too large", rows, cols)
	}
	var data []float32
	err := exceptions.TryCatch[error](func() {
		data = make([]float32, stride*rowsAligned)
	})
	if err != nil {
		return nil, wrapError(ErrOutOfHostMemory, "NewMatrix", err, "failed to allocate matrix %dx%d", rows, cols)
	}
	return &Matrix{Rows: rows, Cols: cols, Stride: stride, data: data}, nil
}

// RowsAligned returns Rows rounded up to SurfaceAlignment.
func (m *Matrix) RowsAligned() int {
	return AlignUp(m.Rows, SurfaceAlignment)
}

// Data returns the whole padded backing storage, Stride elements per row.
func (m *Matrix) Data() []float32 {
	return m.data
}

// Released reports whether Release was called.
func (m *Matrix) Released() bool {
	return m.data == nil
}

// At returns the element at row r, column c.
func (m *Matrix) At(r, c int) float32 {
	m.check(r, c)
	return m.data[r*m.Stride+c]
}

// Set stores v at row r, column c.
func (m *Matrix) Set(r, c int, v float32) {
	m.check(r, c)
	m.data[r*m.Stride+c] = v
}

func (m *Matrix) check(r, c int) {
	if m.data == nil {
		exceptions.Panicf("access to released matrix %dx%d", m.Rows, m.Cols)
	}
	if r < 0 || r >= m.Rows || c < 0 || c >= m.Cols {
		exceptions.Panicf("index [%d, %d] out of range for matrix %dx%d", r, c, m.Rows, m.Cols)
	}
}

// FillRandom sets every logical element to a uniform value in [low, high).
// Padding stays zero.
func (m *Matrix) FillRandom(rng *rand.Rand, low, high float32) {
	for r := 0; r < m.Rows; r++ {
		row := m.data[r*m.Stride : r*m.Stride+m.Cols]
		for c := range row {
			t := rng.Float32()
			row[c] = (1-t)*low + t*high
		}
	}
}

// RandomMatrix allocates a rows x cols matrix filled from rng with values
// in [low, high).
func RandomMatrix(rows, cols int, rng *rand.Rand, low, high float32) (*Matrix, error) {
	m, err := NewMatrix(rows, cols)
	if err != nil {
		return nil, err
	}
	m.FillRandom(rng, low, high)
	return m, nil
}

// Corrupt perturbs round(fraction * Rows * Cols) distinct logical cells,
// chosen by rng, far beyond CorrectnessThreshold. It returns the number of
// cells changed.
func (m *Matrix) Corrupt(rng *rand.Rand, fraction float64) int {
	cells := m.Rows * m.Cols
	n := int(math.Round(fraction * float64(cells)))
	n = max(0, min(n, cells))
	for _, idx := range rng.Perm(cells)[:n] {
		r, c := idx/m.Cols, idx%m.Cols
		v := m.data[r*m.Stride+c]
		m.data[r*m.Stride+c] = v + 1 + float32(math.Abs(float64(v)))
	}
	return n
}

// Clone returns an independent copy of the matrix.
func (m *Matrix) Clone() *Matrix {
	return &Matrix{Rows: m.Rows, Cols: m.Cols, Stride: m.Stride, data: append([]float32(nil), m.data...)}
}

// Release drops the backing storage. The matrix must not be used afterwards.
func (m *Matrix) Release() {
	m.data = nil
}

// SurfaceDesc returns the description of a surface able to hold the
// matrix: width is the aligned column count, height the aligned row count.
func (m *Matrix) SurfaceDesc() SurfaceDesc {
	return SurfaceDesc{
		Width:  m.Stride,
		Height: m.RowsAligned(),
		Format: FormatFloat32,
		Flags:  SurfaceKernelWrite,
	}
}

// String returns the matrix shape
func (m *Matrix) String() string {
	return fmt.Sprintf("Matrix(%dx%d, stride=%d)", m.Rows, m.Cols, m.Stride)
}
