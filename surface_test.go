package zegemm

import (
	"math/rand"
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(t testing.TB, budget uint64) *Context {
	t.Helper()
	p := HostDeviceProperties()
	if budget > 0 {
		p.TotalMem = budget
	}
	ctx, err := NewContext(NewDriver("test", p).Devices()[0])
	require.NoError(t, err)
	return ctx
}

func TestMemoryPool(t *testing.T) {
	pool := NewMemoryPool(1024)

	a, err := pool.Allocate(100)
	require.NoError(t, err)
	assert.Equal(t, 128, a.size)
	assert.Len(t, a.data, 25)
	a.data[0] = 42

	_, err = pool.Allocate(1000)
	assert.True(t, errors.Is(err, ErrOutOfDeviceMemory))
	assert.True(t, IsAllocationError(err))

	require.NoError(t, pool.Free(a))
	assert.True(t, errors.Is(pool.Free(a), ErrResourceDestroyed))

	b, err := pool.Allocate(64)
	require.NoError(t, err)
	assert.Same(t, a, b, "freed block should be reused")
	assert.Equal(t, float32(0), b.data[0], "reused block must be zeroed")

	allocated, peak := pool.GetStats()
	assert.Equal(t, int64(128), allocated)
	assert.Equal(t, int64(128), peak)

	_, err = pool.Allocate(0)
	assert.Error(t, err)
}

func TestMatrixAlignment(t *testing.T) {
	for _, shape := range [][2]int{{1, 1}, {16, 16}, {17, 5}, {33, 100}} {
		m, err := NewMatrix(shape[0], shape[1])
		require.NoError(t, err)
		assert.Zero(t, m.Stride%SurfaceAlignment)
		assert.GreaterOrEqual(t, m.Stride, m.Cols)
		assert.Zero(t, m.RowsAligned()%SurfaceAlignment)
		assert.Len(t, m.Data(), m.Stride*m.RowsAligned())

		d := m.SurfaceDesc()
		assert.Equal(t, m.Stride, d.Width)
		assert.Equal(t, m.RowsAligned(), d.Height)
	}

	_, err := NewMatrix(0, 4)
	assert.True(t, errors.Is(err, ErrInvalidTileAlignment))
}

func TestMatrixRandomPaddingStaysZero(t *testing.T) {
	m, err := RandomMatrix(5, 7, rand.New(rand.NewSource(3)), -1, 1)
	require.NoError(t, err)
	for r := 0; r < m.RowsAligned(); r++ {
		for c := 0; c < m.Stride; c++ {
			v := m.Data()[r*m.Stride+c]
			if r >= m.Rows || c >= m.Cols {
				require.Zero(t, v, "padding [%d, %d]", r, c)
			} else {
				require.True(t, v >= -1 && v < 1, "value %v at [%d, %d]", v, r, c)
			}
		}
	}
}

func TestMatrixReleaseAndBounds(t *testing.T) {
	m, err := NewMatrix(4, 4)
	require.NoError(t, err)
	m.Set(3, 3, 7)
	assert.Equal(t, float32(7), m.At(3, 3))

	clone := m.Clone()
	m.Release()
	assert.True(t, m.Released())
	assert.Equal(t, float32(7), clone.At(3, 3))

	assert.NotNil(t, exceptions.Try(func() { m.At(0, 0) }))
	assert.NotNil(t, exceptions.Try(func() { clone.At(4, 0) }))
}

func TestMatrixCorrupt(t *testing.T) {
	m, err := RandomMatrix(10, 10, rand.New(rand.NewSource(5)), -1, 1)
	require.NoError(t, err)
	orig := m.Clone()
	n := m.Corrupt(rand.New(rand.NewSource(6)), 0.01)
	assert.Equal(t, 1, n)

	changed := 0
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < m.Cols; c++ {
			if m.At(r, c) != orig.At(r, c) {
				changed++
				assert.Greater(t, RelativeError(m.At(r, c), orig.At(r, c)), CorrectnessThreshold)
			}
		}
	}
	assert.Equal(t, 1, changed)
}

func TestSurfaceBlocks(t *testing.T) {
	ctx := newTestContext(t, 0)
	s, err := ctx.NewSurface(SurfaceDesc{Width: 16, Height: 16, Format: FormatFloat32, Flags: SurfaceKernelWrite})
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Destroy()) }()

	host := make([]float32, 16*16)
	for i := range host {
		host[i] = float32(i)
	}
	s.copyFrom(host)

	row := make([]float32, 8)
	s.readBlock(8*ElementSize, 2, 1, 8, row)
	assert.Equal(t, []float32{40, 41, 42, 43, 44, 45, 46, 47}, row)

	col := make([]float32, 8)
	s.readBlock(3*ElementSize, 12, 8, 1, col)
	assert.Equal(t, []float32{195, 211, 227, 243, 0, 0, 0, 0}, col, "rows past the edge read as zero")

	s.writeBlock(12*ElementSize, 15, 1, 8, []float32{1, 2, 3, 4, 5, 6, 7, 8})
	out := make([]float32, 16*16)
	s.copyTo(out)
	assert.Equal(t, []float32{1, 2, 3, 4}, out[15*16+12:])

	assert.NotNil(t, exceptions.Try(func() { s.readBlock(2, 0, 1, 1, row) }), "unaligned x offset")
}

func TestSurfaceLifecycle(t *testing.T) {
	ctx := newTestContext(t, 4096)

	_, err := ctx.NewSurface(SurfaceDesc{Width: 0, Height: 16, Format: FormatFloat32})
	assert.True(t, errors.Is(err, ErrInvalidSurface))
	_, err = ctx.NewSurface(SurfaceDesc{Width: 16, Height: 16})
	assert.True(t, errors.Is(err, ErrInvalidSurface))

	ro, err := ctx.NewSurface(SurfaceDesc{Width: 16, Height: 16, Format: FormatFloat32})
	require.NoError(t, err)
	assert.NotNil(t, exceptions.Try(func() { ro.writeBlock(0, 0, 1, 1, []float32{1}) }), "read-only surface")

	_, err = ctx.NewSurface(SurfaceDesc{Width: 64, Height: 64, Format: FormatFloat32})
	assert.True(t, errors.Is(err, ErrOutOfDeviceMemory))

	allocated, _ := ctx.MemoryStats()
	assert.Equal(t, int64(16*16*ElementSize), allocated)
	require.NoError(t, ro.Destroy())
	assert.True(t, errors.Is(ro.Destroy(), ErrResourceDestroyed))
	allocated, _ = ctx.MemoryStats()
	assert.Zero(t, allocated)
	require.NoError(t, ctx.Destroy())
}
