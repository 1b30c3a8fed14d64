package zegemm

import (
	"testing"

	"github.com/LynnColeArt/zegemm/spirv"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadModule(t *testing.T) {
	ctx := newTestContext(t, 0)

	m, err := ctx.LoadModule(BuiltinProgram(), DefaultBuildFlags)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{KernelSGEMM, KernelSGEMMHostLoop, KernelHelloWorld}, m.EntryPoints())
	assert.Equal(t, DefaultBuildFlags, m.BuildFlags())

	for _, blob := range [][]byte{nil, []byte("\x7fELF not a spir-v image"), BuiltinProgram()[:7]} {
		_, err := ctx.LoadModule(blob, "")
		assert.True(t, errors.Is(err, ErrInvalidProgramImage), "got %v", err)
		assert.True(t, IsProgramError(err))
	}

	k, err := m.Kernel(KernelSGEMM)
	require.NoError(t, err)
	assert.Equal(t, KernelSGEMM, k.Name())

	err = m.Destroy()
	assert.True(t, errors.Is(err, ErrResourceInUse), "module with live kernel")
	require.NoError(t, k.Destroy())
	assert.True(t, errors.Is(k.Destroy(), ErrResourceDestroyed))
	require.NoError(t, m.Destroy())
	require.NoError(t, ctx.Destroy())
}

func TestKernelSymbolNotFound(t *testing.T) {
	ctx := newTestContext(t, 0)

	m, err := ctx.LoadModule(BuiltinProgram(), DefaultBuildFlags)
	require.NoError(t, err)
	_, err = m.Kernel("sgemm_kernel_xyz")
	assert.True(t, errors.Is(err, ErrSymbolNotFound))

	// Declared by the image but without device code.
	other, err := ctx.LoadModule(spirv.Assemble("not_on_device"), "")
	require.NoError(t, err)
	_, err = other.Kernel("not_on_device")
	assert.True(t, errors.Is(err, ErrSymbolNotFound))
}

func TestSetArgumentValue(t *testing.T) {
	ctx := newTestContext(t, 0)
	_, k := KernelOrFail(t, ctx, KernelSGEMM)
	mat, err := NewMatrix(16, 16)
	require.NoError(t, err)
	s := NewSurfaceOrFail(t, ctx, mat)

	require.NoError(t, k.SetArgumentValue(0, 4, 16))
	require.NoError(t, k.SetArgumentValue(1, 4, int32(16)))
	require.NoError(t, k.SetArgumentValue(2, 4, uint32(16)))
	require.NoError(t, k.SetArgumentValue(3, 8, s))

	tests := []struct {
		name  string
		index int
		size  int
		value interface{}
	}{
		{"index out of range", 6, 4, 1},
		{"negative index", -1, 4, 1},
		{"wrong size", 0, 8, 1},
		{"surface for scalar", 0, 4, s},
		{"scalar for surface", 4, 8, 1},
		{"nil surface", 4, 8, (*Surface)(nil)},
		{"int overflow", 0, 4, 1 << 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := k.SetArgumentValue(tt.index, tt.size, tt.value)
			assert.True(t, errors.Is(err, ErrInvalidArgument), "got %v", err)
			assert.True(t, IsDispatchError(err))
		})
	}

	_, err = k.snapshot()
	assert.True(t, errors.Is(err, ErrInvalidArgument), "arguments 4 and 5 unbound")
	require.NoError(t, k.SetArgumentValue(4, 8, s))
	require.NoError(t, k.SetArgumentValue(5, 8, s))
	args, err := k.snapshot()
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int32(16), int32(16), int32(16), s, s, s}, args)

	// Rebinding overwrites without touching earlier snapshots.
	require.NoError(t, k.SetArgumentValue(0, 4, 32))
	assert.Equal(t, int32(16), args[0])

	otherCtx := newTestContext(t, 0)
	foreign := NewSurfaceOrFail(t, otherCtx, mat)
	assert.True(t, errors.Is(k.SetArgumentValue(3, 8, foreign), ErrInvalidArgument))
	require.NoError(t, foreign.Destroy())
	require.NoError(t, s.Destroy())
	assert.True(t, errors.Is(k.SetArgumentValue(3, 8, s), ErrInvalidArgument), "destroyed surface")
}

func TestGroupSize(t *testing.T) {
	ctx := newTestContext(t, 0)
	_, k := KernelOrFail(t, ctx, KernelHelloWorld)

	assert.Equal(t, Dim3{1, 1, 1}, k.GroupSize())
	require.NoError(t, k.SetGroupSize(8, 4, 2))
	assert.Equal(t, Dim3{8, 4, 2}, k.GroupSize())

	for _, d := range []Dim3{{0, 1, 1}, {2048, 1, 1}, {1, 1, 128}, {1024, 2, 1}} {
		err := k.SetGroupSize(d.X, d.Y, d.Z)
		assert.True(t, errors.Is(err, ErrInvalidGroupSize), "group size %s", d)
	}

	tests := []struct {
		global Dim3
		want   Dim3
	}{
		{Dim3{0, 0, 0}, Dim3{1, 1, 1}},
		{Dim3{64, 1, 1}, Dim3{64, 1, 1}},
		{Dim3{3000, 1, 1}, Dim3{1000, 1, 1}},
		{Dim3{7, 12, 1}, Dim3{7, 12, 1}},
		{Dim3{1024, 1024, 1}, Dim3{1024, 1, 1}},
	}
	for _, tt := range tests {
		got, err := k.SuggestGroupSize(tt.global.X, tt.global.Y, tt.global.Z)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "global %s", tt.global)
		assert.LessOrEqual(t, got.Size(), ctx.Device().Properties().MaxGroupThreads)
	}
	_, err := k.SuggestGroupSize(-1, 0, 0)
	assert.True(t, errors.Is(err, ErrInvalidGroupSize))
}

func TestRegisterKernel(t *testing.T) {
	assert.Error(t, RegisterKernel(KernelDef{Name: KernelSGEMM, Fn: sgemmKernel}), "duplicate")
	assert.Error(t, RegisterKernel(KernelDef{Name: "nofn"}))
	assert.Error(t, RegisterKernel(KernelDef{Name: "badparam", Fn: helloWorldKernel, Params: []ParamKind{ParamKind(9)}}))
	assert.Subset(t, RegisteredKernels(), []string{KernelSGEMM, KernelSGEMMHostLoop, KernelHelloWorld})
}
