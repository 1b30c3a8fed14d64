package zegemm

import (
	"context"
	"math/rand"
	"testing"
)

// OpenSessionOrFail opens a session on the host driver and closes it when
// the test ends.
func OpenSessionOrFail(t testing.TB, cfg DeviceConfig) *Session {
	t.Helper()
	s, err := Open(SessionOptions{Config: cfg})
	if err != nil {
		t.Fatalf("Failed to open session: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Failed to close session: %v", err)
		}
	})
	return s
}

// NewSurfaceOrFail allocates a surface for m and fails the test if unsuccessful
func NewSurfaceOrFail(t testing.TB, ctx *Context, m *Matrix) *Surface {
	t.Helper()
	s, err := ctx.NewSurface(m.SurfaceDesc())
	if err != nil {
		t.Fatalf("Failed to create %dx%d surface: %v", m.Stride, m.RowsAligned(), err)
	}
	return s
}

// KernelOrFail loads the built-in program and resolves name. It returns
// the module so the caller can destroy both.
func KernelOrFail(t testing.TB, ctx *Context, name string) (*Module, *Kernel) {
	t.Helper()
	m, err := ctx.LoadModule(BuiltinProgram(), DefaultBuildFlags)
	if err != nil {
		t.Fatalf("LoadModule failed: %v", err)
	}
	k, err := m.Kernel(name)
	if err != nil {
		t.Fatalf("Kernel(%q) failed: %v", name, err)
	}
	return m, k
}

// ExecuteOrFail closes cl, executes it and fails the test if unsuccessful
func ExecuteOrFail(t testing.TB, q *Queue, cl *CommandList) {
	t.Helper()
	if err := cl.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := q.Execute(context.Background(), cl); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if q.Mode() == QueueModeAsynchronous {
		if err := q.Synchronize(context.Background(), 0); err != nil {
			t.Fatalf("Synchronize failed: %v", err)
		}
	}
}

// RandomMatrixOrFail allocates a random matrix with values in [-1, 1).
func RandomMatrixOrFail(t testing.TB, rows, cols int, seed int64) *Matrix {
	t.Helper()
	m, err := RandomMatrix(rows, cols, rand.New(rand.NewSource(seed)), -1, 1)
	if err != nil {
		t.Fatalf("RandomMatrix(%d, %d) failed: %v", rows, cols, err)
	}
	return m
}
