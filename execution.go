package zegemm

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Dim3 represents 3D dimensions for grid and work-group configurations.
type Dim3 struct {
	X, Y, Z int
}

// Size returns the total number of elements
func (d Dim3) Size() int {
	return d.X * d.Y * d.Z
}

// String formats the dimensions as (x, y, z)
func (d Dim3) String() string {
	return fmt.Sprintf("(%d, %d, %d)", d.X, d.Y, d.Z)
}

// ThreadID identifies an invocation within a launch: its work-group in the
// grid and its thread within the work-group.
type ThreadID struct {
	BlockIdx  Dim3 // Work-group index within the grid
	ThreadIdx Dim3 // Thread index within the work-group
	BlockDim  Dim3 // Dimensions of the work-group
	GridDim   Dim3 // Dimensions of the grid

	printer *kernelPrinter
}

// GroupID returns the work-group index along dim (0, 1 or 2).
func (tid ThreadID) GroupID(dim int) int {
	return pick(tid.BlockIdx, dim)
}

// GroupCount returns the number of work-groups along dim.
func (tid ThreadID) GroupCount(dim int) int {
	return pick(tid.GridDim, dim)
}

// LocalID returns the thread index within the work-group along dim.
func (tid ThreadID) LocalID(dim int) int {
	return pick(tid.ThreadIdx, dim)
}

// LocalSize returns the work-group size along dim.
func (tid ThreadID) LocalSize(dim int) int {
	return pick(tid.BlockDim, dim)
}

// LinearGlobalID returns the row-major index of the thread across the launch.
func (tid ThreadID) LinearGlobalID() int {
	group := (tid.BlockIdx.Z*tid.GridDim.Y+tid.BlockIdx.Y)*tid.GridDim.X + tid.BlockIdx.X
	local := (tid.ThreadIdx.Z*tid.BlockDim.Y+tid.ThreadIdx.Y)*tid.BlockDim.X + tid.ThreadIdx.X
	return group*tid.BlockDim.Size() + local
}

// Printf writes kernel output to the device printf stream.
func (tid ThreadID) Printf(format string, args ...interface{}) {
	if tid.printer != nil {
		tid.printer.printf(format, args...)
	}
}

func pick(d Dim3, dim int) int {
	switch dim {
	case 0:
		return d.X
	case 1:
		return d.Y
	case 2:
		return d.Z
	}
	exceptions.Panicf("dimension %d out of range [0, 2]", dim)
	return 0
}

// KernelFunc is the native implementation of a device kernel. It receives
// the invocation's identification and the bound arguments in order.
type KernelFunc func(tid ThreadID, args ...interface{})

// kernelPrinter serializes printf output of concurrent invocations.
type kernelPrinter struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *kernelPrinter) printf(format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}

// launchGrid runs kernelFunc for every thread of every work-group in the
// grid, spreading work-groups across up to workers goroutines. Work-groups
// are independent; threads within a work-group run sequentially.
//
// A panic inside the kernel is returned as an error and stops the launch.
func launchGrid(
	ctx context.Context,
	kernelFunc KernelFunc,
	grid, block Dim3,
	workers int,
	printer *kernelPrinter,
	args ...interface{},
) error {
	gridSize := grid.Size()
	blockSize := block.Size()
	if gridSize == 0 || blockSize == 0 {
		return nil
	}

	numWorkers := min(workers, gridSize)
	blocksPerWorker := (gridSize + numWorkers - 1) / numWorkers

	g, gctx := errgroup.WithContext(ctx)
	for workerID := 0; workerID < numWorkers; workerID++ {
		startBlock := workerID * blocksPerWorker
		endBlock := min(startBlock+blocksPerWorker, gridSize)
		if startBlock >= endBlock {
			break
		}
		g.Go(func() error {
			var err error
			exception := exceptions.Try(func() {
				for blockID := startBlock; blockID < endBlock; blockID++ {
					if err = gctx.Err(); err != nil {
						return
					}
					blockIdx := linearTo3D(blockID, grid)
					for threadID := 0; threadID < blockSize; threadID++ {
						kernelFunc(ThreadID{
							BlockIdx:  blockIdx,
							ThreadIdx: linearTo3D(threadID, block),
							BlockDim:  block,
							GridDim:   grid,
							printer:   printer,
						}, args...)
					}
				}
			})
			if exception != nil {
				if e, ok := exception.(error); ok {
					return &kernelFault{cause: e}
				}
				return &kernelFault{cause: errors.Errorf("%v", exception)}
			}
			return err
		})
	}
	return g.Wait()
}

// kernelFault is a panic raised by kernel code.
type kernelFault struct {
	cause error
}

func (f *kernelFault) Error() string {
	return fmt.Sprintf("kernel fault: %v", f.cause)
}

func (f *kernelFault) Unwrap() error {
	return f.cause
}

// linearTo3D converts a linear index to 3D coordinates
func linearTo3D(linear int, dim Dim3) Dim3 {
	z := linear / (dim.X * dim.Y)
	y := (linear % (dim.X * dim.Y)) / dim.X
	x := linear % dim.X
	return Dim3{X: x, Y: y, Z: z}
}
