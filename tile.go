package zegemm

import "fmt"

// TileRegion is the block of C owned by one kernel invocation: rows
// [Row, Row+TileSize) and columns [Col, Col+TileSize), clipped to the
// matrix by the surface bounds.
type TileRegion struct {
	Row, Col int
}

// String formats the tile origin as [row, col]
func (t TileRegion) String() string {
	return fmt.Sprintf("[%d, %d]", t.Row, t.Col)
}

// TileCoordinateSource tells a kernel invocation which tile of C it owns.
// A dispatch uses exactly one source for all of its invocations.
type TileCoordinateSource interface {
	Tile(tid ThreadID) TileRegion
}

// groupTileCoordinates derives the tile from the work-group id: group id 1
// selects the tile row, group id 0 the tile column.
type groupTileCoordinates struct{}

func (groupTileCoordinates) Tile(tid ThreadID) TileRegion {
	return TileRegion{Row: tid.GroupID(1) * TileSize, Col: tid.GroupID(0) * TileSize}
}

// hostTileCoordinates carries the tile origin the host bound as kernel
// arguments. The launch grid is a single invocation.
type hostTileCoordinates struct {
	row, col int
}

func (h hostTileCoordinates) Tile(ThreadID) TileRegion {
	return TileRegion{Row: h.row, Col: h.col}
}
