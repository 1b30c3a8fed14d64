package zegemm

import (
	"fmt"
	"sort"
	"sync"

	"github.com/LynnColeArt/zegemm/spirv"
	"github.com/pkg/errors"
)

// ParamKind is the type of a positional kernel parameter.
type ParamKind int

const (
	// ParamInt32 is a 32-bit signed scalar.
	ParamInt32 ParamKind = iota + 1
	// ParamSurface is a surface handle.
	ParamSurface
)

// Size returns the byte size a host must pass when binding the parameter.
func (k ParamKind) Size() int {
	switch k {
	case ParamInt32:
		return 4
	case ParamSurface:
		return 8
	default:
		return 0
	}
}

// String returns the parameter type name
func (k ParamKind) String() string {
	switch k {
	case ParamInt32:
		return "int32"
	case ParamSurface:
		return "surface"
	default:
		return fmt.Sprintf("ParamKind(%d)", int(k))
	}
}

// KernelDef is the native code the device runs for an entry point.
type KernelDef struct {
	Name   string
	Params []ParamKind
	Fn     KernelFunc
}

var (
	kernelLibraryMu sync.RWMutex
	kernelLibrary   = make(map[string]*KernelDef)
)

// RegisterKernel adds native code for an entry point name. Modules whose
// entry point table lists the name can then resolve it.
func RegisterKernel(def KernelDef) error {
	if def.Name == "" || def.Fn == nil {
		return errors.Errorf("RegisterKernel: kernel needs a name and a function")
	}
	for i, p := range def.Params {
		if p.Size() == 0 {
			return errors.Errorf("RegisterKernel(%q): parameter %d has unknown kind %s", def.Name, i, p)
		}
	}
	kernelLibraryMu.Lock()
	defer kernelLibraryMu.Unlock()
	if _, found := kernelLibrary[def.Name]; found {
		return errors.Errorf("RegisterKernel(%q): kernel already registered", def.Name)
	}
	def.Params = append([]ParamKind(nil), def.Params...)
	kernelLibrary[def.Name] = &def
	return nil
}

func lookupKernel(name string) (*KernelDef, bool) {
	kernelLibraryMu.RLock()
	defer kernelLibraryMu.RUnlock()
	def, ok := kernelLibrary[name]
	return def, ok
}

// RegisteredKernels returns the sorted names of all registered kernels.
func RegisteredKernels() []string {
	kernelLibraryMu.RLock()
	defer kernelLibraryMu.RUnlock()
	names := make([]string, 0, len(kernelLibrary))
	for name := range kernelLibrary {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuiltinProgram returns a program image exposing the built-in kernels.
func BuiltinProgram() []byte {
	return spirv.Assemble(KernelSGEMM, KernelSGEMMHostLoop, KernelHelloWorld)
}

func mustRegister(def KernelDef) {
	if err := RegisterKernel(def); err != nil {
		panic(err)
	}
}

func init() {
	mustRegister(KernelDef{
		Name:   KernelSGEMM,
		Params: []ParamKind{ParamInt32, ParamInt32, ParamInt32, ParamSurface, ParamSurface, ParamSurface},
		Fn:     sgemmKernel,
	})
	mustRegister(KernelDef{
		Name: KernelSGEMMHostLoop,
		Params: []ParamKind{ParamInt32, ParamInt32, ParamInt32, ParamInt32, ParamInt32,
			ParamSurface, ParamSurface, ParamSurface},
		Fn: sgemmKernelHostLoop,
	})
	mustRegister(KernelDef{
		Name:   KernelHelloWorld,
		Params: []ParamKind{ParamInt32},
		Fn:     helloWorldKernel,
	})
}
