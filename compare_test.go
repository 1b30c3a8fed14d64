package zegemm

import (
	"math"
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelativeError(t *testing.T) {
	tests := []struct {
		a, b float32
		want float64
	}{
		{0, 0, 0},
		{1, 1, 0},
		{2, 1, 0.5},
		{-1, 1, 2},
		{0, 3, 1},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, RelativeError(tt.a, tt.b), 1e-12, "RelativeError(%v, %v)", tt.a, tt.b)
	}
	assert.True(t, math.IsNaN(RelativeError(float32(math.NaN()), 1)))
}

func TestCompareSelf(t *testing.T) {
	m := RandomMatrixOrFail(t, 20, 30, 8)
	cmp, err := CompareMatrices(m, m.Clone())
	require.NoError(t, err)
	assert.True(t, cmp.Pass)
	assert.Zero(t, cmp.MaxRelError)
	assert.Zero(t, cmp.MaxAbsError)
	assert.Equal(t, 600, cmp.Checked)
	assert.Equal(t, -1, cmp.Row)
	assert.NoError(t, cmp.Err())
	assert.Contains(t, cmp.String(), "PASS: 20x30 values within 2e-05")
}

func TestCompareZerosPass(t *testing.T) {
	zeros := make([]float32, 16)
	cmp := Compare(zeros, make([]float32, 16), 4, 4, 4)
	assert.True(t, cmp.Pass, "zero against zero is not a division by zero")
}

func TestCompareTolerance(t *testing.T) {
	want := []float32{1, 2, 3, 4}
	got := []float32{1, 2 * (1 + 1e-5), 3, 4}
	cmp := Compare(got, want, 2, 2, 2)
	assert.True(t, cmp.Pass, cmp.String())
	assert.Greater(t, cmp.MaxRelError, 0.0)
	assert.Greater(t, cmp.MaxAbsError, 0.0)

	got[1] = 2 * (1 + 1e-4)
	got[3] = 100
	cmp = Compare(got, want, 2, 2, 2)
	assert.False(t, cmp.Pass)
	assert.Equal(t, 0, cmp.Row)
	assert.Equal(t, 1, cmp.Col, "first failing cell in row-major order")
	assert.Equal(t, 2, cmp.Checked, "comparison stops at the first failure")
	assert.Greater(t, cmp.RelError, CorrectnessThreshold)
}

func TestCompareNaN(t *testing.T) {
	want := []float32{1, 2, 3, 4}
	got := []float32{1, 2, float32(math.NaN()), 4}
	cmp := Compare(got, want, 2, 2, 2)
	require.False(t, cmp.Pass)
	assert.Equal(t, 1, cmp.Row)
	assert.Equal(t, 0, cmp.Col)
	assert.Zero(t, cmp.MaxRelError, "NaN does not count toward the maximum")

	cmp = Compare(want, got, 2, 2, 2)
	assert.False(t, cmp.Pass, "NaN in the expected values fails too")
}

func TestCompareLeadingDimension(t *testing.T) {
	// Columns past cols are padding and are never checked.
	want := []float32{1, 2, 9, 9, 3, 4, 9, 9}
	got := []float32{1, 2, 0, 0, 3, 4, -5, 7}
	assert.True(t, Compare(got, want, 2, 2, 4).Pass)

	assert.NotNil(t, exceptions.Try(func() { Compare(got, want, 2, 4, 2) }), "ld < cols")
	assert.NotNil(t, exceptions.Try(func() { Compare(got[:5], want, 2, 2, 4) }), "short buffer")
}

func TestComparisonErr(t *testing.T) {
	cmp := Compare([]float32{1.5}, []float32{1}, 1, 1, 1)
	err := cmp.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCorrectness))
	assert.True(t, IsCorrectnessError(err))
	assert.Contains(t, err.Error(), "FAIL: [0, 0] got 1.5 want 1")

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, cmp, e.Context)
	assert.Equal(t, int(ResultErrorUnknown), ExitCode(err))
}

func TestCompareMatricesShapes(t *testing.T) {
	a := RandomMatrixOrFail(t, 4, 4, 1)
	b := RandomMatrixOrFail(t, 4, 5, 1)
	_, err := CompareMatrices(a, b)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	_, err = CompareMatrices(a, nil)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}
