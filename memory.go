package zegemm

import (
	"sync"

	"github.com/dustin/go-humanize"
	"k8s.io/klog/v2"
)

// defaultSystemMemory is assumed when the platform cannot report its memory.
const defaultSystemMemory = 16 * 1024 * 1024 * 1024

// MemoryPool manages device memory allocation with efficient reuse.
// It maintains a free list of previously allocated blocks to reduce
// allocation overhead, and refuses allocations beyond the device budget.
type MemoryPool struct {
	mu         sync.Mutex
	budget     int64
	freeList   []*allocation
	totalAlloc int64
	peakAlloc  int64
}

type allocation struct {
	data []float32
	size int // aligned size in bytes
	used bool
}

// NewMemoryPool creates a pool that hands out at most budget bytes.
func NewMemoryPool(budget uint64) *MemoryPool {
	return &MemoryPool{budget: int64(budget)}
}

// Allocate returns a zeroed block able to hold size bytes of float32 data.
func (mp *MemoryPool) Allocate(size int) (*allocation, error) {
	if size <= 0 {
		return nil, newError(ErrOutOfDeviceMemory, "Malloc", "size must be positive, got %d", size)
	}
	mp.mu.Lock()
	defer mp.mu.Unlock()

	alignedSize := AlignUp(size, MemoryAlignment)
	elems := size / ElementSize

	// Try to reuse from free list
	for i, alloc := range mp.freeList {
		if alloc.size >= alignedSize {
			mp.freeList = append(mp.freeList[:i], mp.freeList[i+1:]...)
			alloc.used = true
			mp.track(int64(alloc.size))
			alloc.data = alloc.data[:cap(alloc.data)]
			clear(alloc.data)
			alloc.data = alloc.data[:elems]
			return alloc, nil
		}
	}

	if mp.totalAlloc+int64(alignedSize) > mp.budget {
		return nil, newError(ErrOutOfDeviceMemory, "Malloc",
			"cannot allocate %s: %s of %s in use", humanize.IBytes(uint64(alignedSize)),
			humanize.IBytes(uint64(mp.totalAlloc)), humanize.IBytes(uint64(mp.budget)))
	}
	alloc := &allocation{
		data: make([]float32, alignedSize/ElementSize)[:elems],
		size: alignedSize,
		used: true,
	}
	mp.track(int64(alignedSize))
	return alloc, nil
}

func (mp *MemoryPool) track(n int64) {
	mp.totalAlloc += n
	if mp.totalAlloc > mp.peakAlloc {
		mp.peakAlloc = mp.totalAlloc
	}
}

// Free returns memory to the pool
func (mp *MemoryPool) Free(alloc *allocation) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if alloc == nil || !alloc.used {
		return newError(ErrResourceDestroyed, "Free", "double free detected")
	}
	alloc.used = false
	mp.totalAlloc -= int64(alloc.size)
	if len(mp.freeList) < FreeListThreshold {
		mp.freeList = append(mp.freeList, alloc)
	} else {
		klog.V(2).Infof("memory pool free list full, dropping %s block", humanize.IBytes(uint64(alloc.size)))
	}
	return nil
}

// GetStats returns memory pool statistics
func (mp *MemoryPool) GetStats() (allocated, peak int64) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.totalAlloc, mp.peakAlloc
}
