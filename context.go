package zegemm

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"k8s.io/klog/v2"
)

// Context represents an execution context on a device.
// It owns device memory and tracks every surface, module, kernel, queue and
// command list created on it. All of them must be destroyed before the
// context is.
type Context struct {
	id     uuid.UUID
	device *Device
	config DeviceConfig
	memory *MemoryPool

	mu        sync.Mutex
	resources map[resource]struct{}
	destroyed bool
}

// resource is any object scoped to a Context.
type resource interface {
	kind() string
}

// NewContext creates an execution context on dev with the default configuration.
func NewContext(dev *Device) (*Context, error) {
	return NewContextWithConfig(dev, DefaultDeviceConfig())
}

// NewContextWithConfig creates an execution context on dev.
func NewContextWithConfig(dev *Device, cfg DeviceConfig) (*Context, error) {
	if dev == nil {
		return nil, newError(ErrContextCreationFailed, "NewContext", "nil device")
	}
	if dev.Lost() {
		return nil, wrapError(ErrContextCreationFailed, "NewContext", ErrDeviceLost, "device %q is lost", dev.props.Name)
	}
	if dev.props.TotalMem == 0 {
		return nil, newError(ErrContextCreationFailed, "NewContext", "device %q has no memory", dev.props.Name)
	}
	ctx := &Context{
		id:        uuid.New(),
		device:    dev,
		config:    cfg.normalize(),
		memory:    NewMemoryPool(dev.props.TotalMem),
		resources: make(map[resource]struct{}),
	}
	klog.V(1).Infof("context %s created on %s", ctx.id, dev)
	return ctx, nil
}

// ID returns the unique context identifier.
func (ctx *Context) ID() string {
	return ctx.id.String()
}

// Device returns the device the context was created on.
func (ctx *Context) Device() *Device {
	return ctx.device
}

// Config returns the device configuration of the context.
func (ctx *Context) Config() DeviceConfig {
	return ctx.config
}

// MemoryStats returns the bytes of device memory in use and the peak.
func (ctx *Context) MemoryStats() (allocated, peak int64) {
	return ctx.memory.GetStats()
}

func (ctx *Context) track(op string, r resource) error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if ctx.destroyed {
		return newError(ErrResourceDestroyed, op, "context %s already destroyed", ctx.id)
	}
	ctx.resources[r] = struct{}{}
	return nil
}

func (ctx *Context) untrack(r resource) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	delete(ctx.resources, r)
}

func (ctx *Context) owns(r resource) bool {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	_, ok := ctx.resources[r]
	return ok
}

// Destroy releases the context. It fails while any resource created on the
// context is still alive.
func (ctx *Context) Destroy() error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if ctx.destroyed {
		return newError(ErrResourceDestroyed, "Context.Destroy", "context %s already destroyed", ctx.id)
	}
	if len(ctx.resources) > 0 {
		counts := make(map[string]int)
		for r := range ctx.resources {
			counts[r.kind()]++
		}
		parts := make([]string, 0, len(counts))
		for k, n := range counts {
			parts = append(parts, fmt.Sprintf("%d %s", n, k))
		}
		sort.Strings(parts)
		return newError(ErrResourceInUse, "Context.Destroy", "context %s still owns %s", ctx.id, strings.Join(parts, ", "))
	}
	ctx.destroyed = true
	klog.V(1).Infof("context %s destroyed", ctx.id)
	return nil
}
