package zegemm

import (
	"fmt"

	"k8s.io/klog/v2"
)

// TileStrategy selects where kernel invocations get their tile coordinates.
type TileStrategy int

const (
	// TilesFromGroupID launches the whole grid at once; each work-group
	// derives its tile from its group id. Uses KernelSGEMM.
	TilesFromGroupID TileStrategy = iota
	// TilesFromHostLoop launches one single-invocation dispatch per tile and
	// binds the tile origin as arguments. Uses KernelSGEMMHostLoop.
	TilesFromHostLoop
)

// String returns the strategy name
func (s TileStrategy) String() string {
	switch s {
	case TilesFromGroupID:
		return "group-id"
	case TilesFromHostLoop:
		return "host-loop"
	default:
		return fmt.Sprintf("TileStrategy(%d)", int(s))
	}
}

// ParseTileStrategy parses the names returned by TileStrategy.String.
func ParseTileStrategy(name string) (TileStrategy, error) {
	for _, s := range []TileStrategy{TilesFromGroupID, TilesFromHostLoop} {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, newError(ErrInvalidArgument, "ParseTileStrategy", "unknown tile strategy %q", name)
}

// DispatchDescriptor is the immutable record of one kernel launch: the
// kernel, its grid and work-group size, and the argument values captured
// when the launch was appended.
type DispatchDescriptor struct {
	Kernel string
	Grid   Dim3
	Block  Dim3
	Args   []interface{}
}

// String formats the descriptor for logs
func (d DispatchDescriptor) String() string {
	return fmt.Sprintf("%s<<<%s, %s>>>", d.Kernel, d.Grid, d.Block)
}

// DispatchPlan is the launch geometry for C(MxN) += A(MxK) * B(KxN).
type DispatchPlan struct {
	M, N, K  int
	Grid     Dim3
	Block    Dim3
	Strategy TileStrategy
}

// PlanSGEMM computes the tile grid for an m x n x k multiplication: one
// TileSize x TileSize tile of C per work-group, ceil(n/16) groups along x
// and ceil(m/16) along y, one invocation per group.
func PlanSGEMM(m, n, k int, strategy TileStrategy) (*DispatchPlan, error) {
	if m <= 0 || n <= 0 || k <= 0 {
		return nil, newError(ErrInvalidTileAlignment, "PlanSGEMM", "invalid problem size m=%d n=%d k=%d", m, n, k)
	}
	if strategy != TilesFromGroupID && strategy != TilesFromHostLoop {
		return nil, newError(ErrInvalidArgument, "PlanSGEMM", "unknown tile strategy %s", strategy)
	}
	p := &DispatchPlan{
		M: m, N: n, K: k,
		Grid:     Dim3{X: ceilDiv(n, TileSize), Y: ceilDiv(m, TileSize), Z: 1},
		Block:    Dim3{X: 1, Y: 1, Z: 1},
		Strategy: strategy,
	}
	klog.V(1).Infof("planned sgemm m=%d n=%d k=%d: grid %s, %s tiles", m, n, k, p.Grid, strategy)
	return p, nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// KernelName returns the entry point the plan's strategy requires.
func (p *DispatchPlan) KernelName() string {
	if p.Strategy == TilesFromHostLoop {
		return KernelSGEMMHostLoop
	}
	return KernelSGEMM
}

// Tiles enumerates the tile regions of C in row-major tile order. Tiles
// are pairwise disjoint and together cover the aligned C.
func (p *DispatchPlan) Tiles() []TileRegion {
	tiles := make([]TileRegion, 0, p.Grid.X*p.Grid.Y)
	for ty := 0; ty < p.Grid.Y; ty++ {
		for tx := 0; tx < p.Grid.X; tx++ {
			tiles = append(tiles, TileRegion{Row: ty * TileSize, Col: tx * TileSize})
		}
	}
	return tiles
}

// Record binds the operands to kernel and appends the plan's launches to
// cl. The kernel must be the one named by KernelName. With
// TilesFromHostLoop the tile origin is rebound before every launch; each
// launch captures the values current at its append.
func (p *DispatchPlan) Record(cl *CommandList, kernel *Kernel, a, b, c *Surface) error {
	const op = "DispatchPlan.Record"
	if kernel.Name() != p.KernelName() {
		return newError(ErrInvalidArgument, op, "%s tiles need kernel %q, got %q", p.Strategy, p.KernelName(), kernel.Name())
	}
	if err := p.checkOperands(a, b, c); err != nil {
		return err
	}
	if err := kernel.SetGroupSize(p.Block.X, p.Block.Y, p.Block.Z); err != nil {
		return err
	}

	int32Size, surfaceSize := ParamInt32.Size(), ParamSurface.Size()
	bind := func(values ...interface{}) error {
		for i, v := range values {
			size := int32Size
			if _, ok := v.(*Surface); ok {
				size = surfaceSize
			}
			if err := kernel.SetArgumentValue(i, size, v); err != nil {
				return err
			}
		}
		return nil
	}

	switch p.Strategy {
	case TilesFromGroupID:
		if err := bind(p.M, p.N, p.K, a, b, c); err != nil {
			return err
		}
		return cl.AppendLaunchKernel(kernel, p.Grid)

	case TilesFromHostLoop:
		single := Dim3{X: 1, Y: 1, Z: 1}
		for _, t := range p.Tiles() {
			if err := bind(p.M, p.N, p.K, t.Row, t.Col, a, b, c); err != nil {
				return err
			}
			if err := cl.AppendLaunchKernel(kernel, single); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

// checkOperands verifies the surfaces are aligned and large enough for
// the plan's operand shapes.
func (p *DispatchPlan) checkOperands(a, b, c *Surface) error {
	operands := []struct {
		name          string
		s             *Surface
		rows, columns int
	}{
		{"A", a, p.M, p.K},
		{"B", b, p.K, p.N},
		{"C", c, p.M, p.N},
	}
	for _, o := range operands {
		if o.s == nil {
			return newError(ErrInvalidArgument, "DispatchPlan.Record", "operand %s is nil", o.name)
		}
		d := o.s.Desc()
		if d.Width%SurfaceAlignment != 0 || d.Height%SurfaceAlignment != 0 {
			return newError(ErrInvalidTileAlignment, "DispatchPlan.Record",
				"operand %s surface %dx%d is not aligned to %d", o.name, d.Width, d.Height, SurfaceAlignment)
		}
		if d.Width < o.columns || d.Height < o.rows {
			return newError(ErrInvalidTileAlignment, "DispatchPlan.Record",
				"operand %s surface %dx%d cannot hold %dx%d", o.name, d.Width, d.Height, o.rows, o.columns)
		}
	}
	return nil
}
