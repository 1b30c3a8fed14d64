// Package zegemm configuration constants
package zegemm

import (
	"io"
	"os"
	"runtime"
	"time"
)

// Tiling geometry shared by the host planner and the device kernels.
const (
	// TileSize is the edge of the square output tile owned by one work-group.
	TileSize = 16

	// ReadGranularity is the widest surface block read the device supports,
	// in float32 elements.
	ReadGranularity = 8

	// SurfaceAlignment is the row and column alignment of every matrix
	// operand and of the surfaces backing them.
	SurfaceAlignment = 16
)

// Memory parameters
const (
	// ElementSize is the byte size of one surface element.
	ElementSize = 4

	// MemoryAlignment for device allocations, in bytes.
	MemoryAlignment = 64

	// FreeListThreshold bounds the number of released blocks kept for reuse.
	FreeListThreshold = 100
)

// Verification constants
const (
	// CorrectnessThreshold is the maximum relative error accepted per cell.
	CorrectnessThreshold = 2e-5
)

// Kernel entry points provided by the device.
const (
	KernelSGEMM         = "sgemm_kernel"
	KernelSGEMMHostLoop = "sgemm_kernel_am"
	KernelHelloWorld    = "hello_world"
)

// DefaultBuildFlags are passed to the device compiler when loading a module.
const DefaultBuildFlags = "-vc-codegen"

// DeviceConfig tunes how the emulated device executes submitted work.
type DeviceConfig struct {
	// Workers is the number of goroutines a single launch fans out to.
	Workers int

	// CommandConcurrency bounds how many commands between two barriers
	// may be in flight at once.
	CommandConcurrency int

	// SubmitTimeout bounds how long a synchronous submission waits for
	// completion. Zero waits forever.
	SubmitTimeout time.Duration

	// QueueMode is the mode used by Session when it creates its queue.
	QueueMode QueueMode

	// PrintfWriter receives kernel printf output.
	PrintfWriter io.Writer
}

// DefaultDeviceConfig returns the configuration used when none is given.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		Workers:            runtime.NumCPU(),
		CommandConcurrency: runtime.NumCPU(),
		QueueMode:          QueueModeSynchronous,
		PrintfWriter:       os.Stdout,
	}
}

// normalize fills unset fields with defaults.
func (c DeviceConfig) normalize() DeviceConfig {
	def := DefaultDeviceConfig()
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.CommandConcurrency <= 0 {
		c.CommandConcurrency = def.CommandConcurrency
	}
	if c.PrintfWriter == nil {
		c.PrintfWriter = def.PrintfWriter
	}
	return c
}

// AlignUp rounds n up to the next multiple of align. align must be a power of two.
func AlignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}
