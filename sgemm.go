package zegemm

import (
	"context"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// OffloadOptions configures Offload.
type OffloadOptions struct {
	// Program is the SPIR-V image holding the kernels. Defaults to
	// BuiltinProgram().
	Program []byte

	// BuildFlags passed when loading Program. Defaults to DefaultBuildFlags.
	BuildFlags string

	// Strategy selects how invocations find their tile.
	Strategy TileStrategy
}

// Offload computes C := A*B + C on the session's device. The session's
// command list must be Recording; it is left Recording again on success so
// the session can run further offloads.
//
// All device resources created for the call are released before it
// returns, except when the device did not finish in time: then they stay
// allocated and the context cannot be destroyed until the work drains.
func Offload(ctx context.Context, s *Session, a, b, c *Matrix, opts OffloadOptions) (err error) {
	const op = "Offload"
	if err := checkShapes(a, b, c); err != nil {
		return err
	}
	program := opts.Program
	if program == nil {
		program = BuiltinProgram()
	}
	flags := opts.BuildFlags
	if flags == "" {
		flags = DefaultBuildFlags
	}
	m, n, k := a.Rows, b.Cols, a.Cols

	var releases []func() error
	defer func() {
		if errors.Is(err, ErrTimeout) {
			klog.Warningf("%s: device work outstanding, keeping %d resources alive", op, len(releases))
			return
		}
		for i := len(releases) - 1; i >= 0; i-- {
			if rerr := releases[i](); rerr != nil {
				klog.Warningf("%s: release failed: %v", op, rerr)
				if err == nil {
					err = rerr
				}
			}
		}
	}()

	ctxDev, cl := s.Context, s.CommandList
	releases = append(releases, cl.Reset)
	surfaces := make([]*Surface, 3)
	for i, mat := range []*Matrix{a, b, c} {
		if surfaces[i], err = ctxDev.NewSurface(mat.SurfaceDesc()); err != nil {
			return err
		}
		releases = append(releases, surfaces[i].Destroy)
		if err = cl.AppendImageCopyFromMemory(surfaces[i], mat.Data()); err != nil {
			return err
		}
	}
	if err = cl.AppendBarrier(); err != nil {
		return err
	}

	module, err := ctxDev.LoadModule(program, flags)
	if err != nil {
		return err
	}
	releases = append(releases, module.Destroy)

	plan, err := PlanSGEMM(m, n, k, opts.Strategy)
	if err != nil {
		return err
	}
	kernel, err := module.Kernel(plan.KernelName())
	if err != nil {
		return err
	}
	releases = append(releases, kernel.Destroy)

	if err = plan.Record(cl, kernel, surfaces[0], surfaces[1], surfaces[2]); err != nil {
		return err
	}
	if err = cl.AppendBarrier(); err != nil {
		return err
	}
	if err = cl.AppendImageCopyToMemory(c.Data(), surfaces[2]); err != nil {
		return err
	}
	if err = cl.Close(); err != nil {
		return err
	}

	if err = s.Queue.Execute(ctx, cl); err != nil {
		return err
	}
	if s.Queue.Mode() == QueueModeAsynchronous {
		if err = s.Queue.Synchronize(ctx, ctxDev.config.SubmitTimeout); err != nil {
			return err
		}
	}
	klog.V(1).Infof("sgemm %dx%dx%d done on device (%s tiles)", m, n, k, opts.Strategy)
	return nil
}

func checkShapes(a, b, c *Matrix) error {
	for _, mat := range []*Matrix{a, b, c} {
		if mat == nil || mat.Released() {
			return newError(ErrInvalidArgument, "Offload", "operand matrix is nil or released")
		}
	}
	if a.Cols != b.Rows || a.Rows != c.Rows || b.Cols != c.Cols {
		return newError(ErrInvalidArgument, "Offload", "shape mismatch: A %dx%d, B %dx%d, C %dx%d",
			a.Rows, a.Cols, b.Rows, b.Cols, c.Rows, c.Cols)
	}
	return nil
}
