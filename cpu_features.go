package zegemm

import (
	"strings"

	"golang.org/x/sys/cpu"
)

// Features is a bit set of capabilities a device exposes.
type Features uint32

const (
	// FeatureFloat32 means the device computes in IEEE single precision.
	FeatureFloat32 Features = 1 << iota
	// FeatureImage2D means the device supports 2-D image surfaces.
	FeatureImage2D
	// FeatureBlockRead means surfaces can be read in 8-element blocks.
	FeatureBlockRead
	FeatureSSE4
	FeatureAVX
	FeatureAVX2
	FeatureFMA
	FeatureAVX512
	FeatureNEON
)

// RequiredFeatures is the feature set the SGEMM kernels need.
const RequiredFeatures = FeatureFloat32 | FeatureImage2D | FeatureBlockRead

var featureNames = []struct {
	f    Features
	name string
}{
	{FeatureFloat32, "FP32"},
	{FeatureImage2D, "Image2D"},
	{FeatureBlockRead, "BlockRead"},
	{FeatureSSE4, "SSE4"},
	{FeatureAVX, "AVX"},
	{FeatureAVX2, "AVX2"},
	{FeatureFMA, "FMA"},
	{FeatureAVX512, "AVX512F"},
	{FeatureNEON, "NEON"},
}

// Has reports whether every feature in want is present.
func (f Features) Has(want Features) bool {
	return f&want == want
}

// String lists the feature names
func (f Features) String() string {
	var names []string
	for _, fn := range featureNames {
		if f.Has(fn.f) {
			names = append(names, fn.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}

// hostFeatures returns the features of the emulated device, which always
// supports the compute features and inherits the SIMD extensions of the host.
func hostFeatures() Features {
	f := FeatureFloat32 | FeatureImage2D | FeatureBlockRead
	if cpu.X86.HasSSE41 || cpu.X86.HasSSE42 {
		f |= FeatureSSE4
	}
	if cpu.X86.HasAVX {
		f |= FeatureAVX
	}
	if cpu.X86.HasAVX2 {
		f |= FeatureAVX2
	}
	if cpu.X86.HasFMA {
		f |= FeatureFMA
	}
	if cpu.X86.HasAVX512F {
		f |= FeatureAVX512
	}
	if cpu.ARM64.HasASIMD {
		f |= FeatureNEON
	}
	return f
}
