package zegemm

import (
	"fmt"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"
)

// ImageFormat is the element format of a surface.
type ImageFormat int

const (
	// FormatFloat32 is a single-channel 32-bit float layout.
	FormatFloat32 ImageFormat = iota + 1
)

// String returns the format name
func (f ImageFormat) String() string {
	switch f {
	case FormatFloat32:
		return "R32_FLOAT"
	default:
		return fmt.Sprintf("ImageFormat(%d)", int(f))
	}
}

// SurfaceFlags modify how kernels may access a surface.
type SurfaceFlags uint32

const (
	// SurfaceKernelWrite allows kernels to write the surface.
	SurfaceKernelWrite SurfaceFlags = 1 << iota
)

// SurfaceDesc describes a 2-D surface. Width counts columns and Height rows;
// both are element counts.
type SurfaceDesc struct {
	Width  int
	Height int
	Format ImageFormat
	Flags  SurfaceFlags
}

// Surface is a device-resident 2-D image. Kernels address it by
// (x byte offset, y row); rows are Width elements long.
type Surface struct {
	ctx       *Context
	desc      SurfaceDesc
	alloc     *allocation
	destroyed atomic.Bool
}

func (s *Surface) kind() string { return "surface" }

// NewSurface allocates a surface on the context's device.
func (ctx *Context) NewSurface(desc SurfaceDesc) (*Surface, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, newError(ErrInvalidSurface, "NewSurface", "invalid extent %dx%d", desc.Width, desc.Height)
	}
	if desc.Format != FormatFloat32 {
		return nil, newError(ErrInvalidSurface, "NewSurface", "unsupported format %s", desc.Format)
	}
	alloc, err := ctx.memory.Allocate(desc.Width * desc.Height * ElementSize)
	if err != nil {
		return nil, err
	}
	s := &Surface{ctx: ctx, desc: desc, alloc: alloc}
	if err := ctx.track("NewSurface", s); err != nil {
		_ = ctx.memory.Free(alloc)
		return nil, err
	}
	klog.V(2).Infof("surface %dx%d %s created (%s)", desc.Width, desc.Height, desc.Format,
		humanize.IBytes(uint64(alloc.size)))
	return s, nil
}

// Desc returns the surface description.
func (s *Surface) Desc() SurfaceDesc {
	return s.desc
}

// Destroy releases the surface memory. Commands referencing the surface
// must have completed.
func (s *Surface) Destroy() error {
	if !s.destroyed.CompareAndSwap(false, true) {
		return newError(ErrResourceDestroyed, "Surface.Destroy", "surface already destroyed")
	}
	s.ctx.untrack(s)
	return s.ctx.memory.Free(s.alloc)
}

func (s *Surface) alive() bool {
	return !s.destroyed.Load()
}

// elements is the number of elements a host buffer must provide to fill the surface.
func (s *Surface) elements() int {
	return s.desc.Width * s.desc.Height
}

// copyFrom fills the surface from host memory laid out row-major with a
// row pitch of Width.
func (s *Surface) copyFrom(host []float32) {
	copy(s.alloc.data, host[:s.elements()])
}

// copyTo writes the surface into host memory.
func (s *Surface) copyTo(host []float32) {
	copy(host[:s.elements()], s.alloc.data)
}

// readBlock reads a rows x cols block whose top-left element is at byte
// offset x of row y into dst, row-major. Elements outside the surface read
// as zero.
func (s *Surface) readBlock(x, y, rows, cols int, dst []float32) {
	col := s.column(x)
	data := s.alloc.data
	for r := 0; r < rows; r++ {
		row := y + r
		for c := 0; c < cols; c++ {
			cc := col + c
			if row < 0 || row >= s.desc.Height || cc < 0 || cc >= s.desc.Width {
				dst[r*cols+c] = 0
				continue
			}
			dst[r*cols+c] = data[row*s.desc.Width+cc]
		}
	}
}

// writeBlock is the inverse of readBlock. Elements outside the surface are dropped.
func (s *Surface) writeBlock(x, y, rows, cols int, src []float32) {
	if s.desc.Flags&SurfaceKernelWrite == 0 {
		exceptions.Panicf("write to surface %dx%d created without SurfaceKernelWrite", s.desc.Width, s.desc.Height)
	}
	col := s.column(x)
	data := s.alloc.data
	for r := 0; r < rows; r++ {
		row := y + r
		if row < 0 || row >= s.desc.Height {
			continue
		}
		for c := 0; c < cols; c++ {
			cc := col + c
			if cc < 0 || cc >= s.desc.Width {
				continue
			}
			data[row*s.desc.Width+cc] = src[r*cols+c]
		}
	}
}

func (s *Surface) column(x int) int {
	if x%ElementSize != 0 {
		exceptions.Panicf("surface x offset %d is not aligned to %d-byte elements", x, ElementSize)
	}
	return x / ElementSize
}
