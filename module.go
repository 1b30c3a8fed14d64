package zegemm

import (
	"sync"

	"github.com/LynnColeArt/zegemm/spirv"
	"k8s.io/klog/v2"
)

// Module is a device program loaded into a context.
type Module struct {
	ctx        *Context
	ir         *spirv.Module
	buildFlags string

	mu        sync.Mutex
	kernels   int
	destroyed bool
}

func (m *Module) kind() string { return "module" }

// LoadModule loads a SPIR-V program image. Anything that is not a valid
// SPIR-V kernel module fails with ErrInvalidProgramImage.
func (ctx *Context) LoadModule(blob []byte, buildFlags string) (*Module, error) {
	ir, err := spirv.Parse(blob)
	if err != nil {
		return nil, wrapError(ErrInvalidProgramImage, "LoadModule", err, "cannot parse %d-byte program image", len(blob))
	}
	if !ir.HasCapability(spirv.CapabilityKernel) {
		return nil, newError(ErrInvalidProgramImage, "LoadModule", "program image does not declare the Kernel capability")
	}
	m := &Module{ctx: ctx, ir: ir, buildFlags: buildFlags}
	if err := ctx.track("LoadModule", m); err != nil {
		return nil, err
	}
	klog.V(1).Infof("module loaded: SPIR-V %s, %d entry points, flags %q", ir.VersionString(), len(ir.EntryPoints), buildFlags)
	return m, nil
}

// EntryPoints returns the names of the kernels the module declares.
func (m *Module) EntryPoints() []string {
	names := make([]string, len(m.ir.EntryPoints))
	for i, ep := range m.ir.EntryPoints {
		names[i] = ep.Name
	}
	return names
}

// BuildFlags returns the flags the module was loaded with.
func (m *Module) BuildFlags() string {
	return m.buildFlags
}

// Kernel resolves the named entry point. It fails with ErrSymbolNotFound
// when the module does not declare it or the device has no code for it.
func (m *Module) Kernel(name string) (*Kernel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return nil, newError(ErrResourceDestroyed, "Kernel", "module already destroyed")
	}
	if _, ok := m.ir.EntryPoint(name); !ok {
		return nil, newError(ErrSymbolNotFound, "Kernel", "module has no entry point %q", name)
	}
	def, ok := lookupKernel(name)
	if !ok {
		return nil, newError(ErrSymbolNotFound, "Kernel", "device %q has no code for entry point %q",
			m.ctx.device.props.Name, name)
	}
	k := &Kernel{
		module:    m,
		def:       def,
		args:      make([]interface{}, len(def.Params)),
		bound:     make([]bool, len(def.Params)),
		groupSize: Dim3{X: 1, Y: 1, Z: 1},
	}
	if err := m.ctx.track("Kernel", k); err != nil {
		return nil, err
	}
	m.kernels++
	return k, nil
}

func (m *Module) kernelDestroyed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kernels--
}

// Destroy unloads the module. All kernels created from it must be destroyed first.
func (m *Module) Destroy() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return newError(ErrResourceDestroyed, "Module.Destroy", "module already destroyed")
	}
	if m.kernels > 0 {
		return newError(ErrResourceInUse, "Module.Destroy", "%d kernels still alive", m.kernels)
	}
	m.destroyed = true
	m.ctx.untrack(m)
	return nil
}
