package zegemm

import (
	"math"
	"sync/atomic"

	"k8s.io/klog/v2"
)

// Kernel is a resolved entry point with its positional argument state.
//
// Binding is additive: SetArgumentValue overwrites one slot and every launch
// appended afterwards captures the slots as they are at that moment. A
// Kernel is not safe for concurrent use.
type Kernel struct {
	module    *Module
	def       *KernelDef
	args      []interface{}
	bound     []bool
	groupSize Dim3
	destroyed atomic.Bool
}

func (k *Kernel) kind() string { return "kernel" }

// Name returns the entry point name.
func (k *Kernel) Name() string {
	return k.def.Name
}

// Params returns the kinds of the positional parameters.
func (k *Kernel) Params() []ParamKind {
	return append([]ParamKind(nil), k.def.Params...)
}

// SetArgumentValue binds value to parameter index. size is the byte size
// of the value as the host sees it and must match the parameter kind.
// Scalars accept int32, uint32, int and *int32; surfaces accept *Surface.
func (k *Kernel) SetArgumentValue(index, size int, value interface{}) error {
	const op = "SetArgumentValue"
	if k.destroyed.Load() {
		return newError(ErrResourceDestroyed, op, "kernel %q already destroyed", k.def.Name)
	}
	if index < 0 || index >= len(k.def.Params) {
		return newError(ErrInvalidArgument, op, "kernel %q has no argument %d (takes %d)", k.def.Name, index, len(k.def.Params))
	}
	kind := k.def.Params[index]
	if size != kind.Size() {
		return newError(ErrInvalidArgument, op, "kernel %q argument %d is %s of %d bytes, got size %d",
			k.def.Name, index, kind, kind.Size(), size)
	}
	var v interface{}
	switch kind {
	case ParamInt32:
		i, ok := toInt32(value)
		if !ok {
			return newError(ErrInvalidArgument, op, "kernel %q argument %d wants int32, got %T(%v)", k.def.Name, index, value, value)
		}
		v = i
	case ParamSurface:
		s, ok := value.(*Surface)
		if !ok || s == nil {
			return newError(ErrInvalidArgument, op, "kernel %q argument %d wants a surface, got %T", k.def.Name, index, value)
		}
		if !s.alive() {
			return newError(ErrInvalidArgument, op, "kernel %q argument %d is a destroyed surface", k.def.Name, index)
		}
		if s.ctx != k.module.ctx {
			return newError(ErrInvalidArgument, op, "kernel %q argument %d is a surface from another context", k.def.Name, index)
		}
		v = s
	}
	k.args[index] = v
	k.bound[index] = true
	return nil
}

func toInt32(value interface{}) (int32, bool) {
	switch x := value.(type) {
	case int32:
		return x, true
	case *int32:
		if x == nil {
			return 0, false
		}
		return *x, true
	case uint32:
		if x > math.MaxInt32 {
			return 0, false
		}
		return int32(x), true
	case int:
		if x < math.MinInt32 || x > math.MaxInt32 {
			return 0, false
		}
		return int32(x), true
	}
	return 0, false
}

// snapshot returns a copy of the bound arguments, failing if any is unset.
func (k *Kernel) snapshot() ([]interface{}, error) {
	for i, ok := range k.bound {
		if !ok {
			return nil, newError(ErrInvalidArgument, "AppendLaunchKernel", "kernel %q argument %d not set", k.def.Name, i)
		}
	}
	return append([]interface{}(nil), k.args...), nil
}

// SetGroupSize sets the work-group size used by launches appended afterwards.
func (k *Kernel) SetGroupSize(x, y, z int) error {
	props := k.module.ctx.device.props
	if x < 1 || y < 1 || z < 1 ||
		x > props.MaxGroupSize.X || y > props.MaxGroupSize.Y || z > props.MaxGroupSize.Z ||
		x*y*z > props.MaxGroupThreads {
		return newError(ErrInvalidGroupSize, "SetGroupSize", "group size (%d, %d, %d) exceeds device limits %s/%d",
			x, y, z, props.MaxGroupSize, props.MaxGroupThreads)
	}
	k.groupSize = Dim3{X: x, Y: y, Z: z}
	return nil
}

// GroupSize returns the current work-group size.
func (k *Kernel) GroupSize() Dim3 {
	return k.groupSize
}

// SuggestGroupSize proposes a work-group size for a global size of
// (globalX, globalY, globalZ): per dimension the largest divisor of the
// global size within the device limits. A zero global size suggests 1.
func (k *Kernel) SuggestGroupSize(globalX, globalY, globalZ int) (Dim3, error) {
	if globalX < 0 || globalY < 0 || globalZ < 0 {
		return Dim3{}, newError(ErrInvalidGroupSize, "SuggestGroupSize", "negative global size (%d, %d, %d)",
			globalX, globalY, globalZ)
	}
	props := k.module.ctx.device.props
	remaining := props.MaxGroupThreads
	suggest := func(global, limit int) int {
		g := largestDivisor(global, min(limit, remaining))
		remaining /= g
		return g
	}
	d := Dim3{
		X: suggest(globalX, props.MaxGroupSize.X),
		Y: suggest(globalY, props.MaxGroupSize.Y),
		Z: suggest(globalZ, props.MaxGroupSize.Z),
	}
	klog.V(2).Infof("kernel %q suggested group size %s for global size (%d, %d, %d)", k.def.Name, d, globalX, globalY, globalZ)
	return d, nil
}

// largestDivisor returns the largest divisor of n not above limit, or 1.
func largestDivisor(n, limit int) int {
	if n <= 0 || limit <= 1 {
		return 1
	}
	for g := min(n, limit); g > 1; g-- {
		if n%g == 0 {
			return g
		}
	}
	return 1
}

// Destroy releases the kernel. Launches already appended keep their
// captured arguments.
func (k *Kernel) Destroy() error {
	if !k.destroyed.CompareAndSwap(false, true) {
		return newError(ErrResourceDestroyed, "Kernel.Destroy", "kernel %q already destroyed", k.def.Name)
	}
	k.module.ctx.untrack(k)
	k.module.kernelDestroyed()
	return nil
}
