package zegemm

// Fixed-width register types used by device kernels. Widths match the
// tile edge and the surface read granularity.
type (
	vec8  [ReadGranularity]float32
	vec16 [TileSize]float32
)

// readRow fills v from row y of s starting at byte offset x, using two
// ReadGranularity-wide block reads.
func (v *vec16) readRow(s *Surface, x, y int) {
	s.readBlock(x, y, 1, ReadGranularity, v[:ReadGranularity])
	s.readBlock(x+ReadGranularity*ElementSize, y, 1, ReadGranularity, v[ReadGranularity:])
}

// readColumn fills v from the column at byte offset x starting at row y,
// using two ReadGranularity x 1 block reads.
func (v *vec16) readColumn(s *Surface, x, y int) {
	s.readBlock(x, y, ReadGranularity, 1, v[:ReadGranularity])
	s.readBlock(x, y+ReadGranularity, ReadGranularity, 1, v[ReadGranularity:])
}

// writeRow is the inverse of readRow.
func (v *vec16) writeRow(s *Surface, x, y int) {
	s.writeBlock(x, y, 1, ReadGranularity, v[:ReadGranularity])
	s.writeBlock(x+ReadGranularity*ElementSize, y, 1, ReadGranularity, v[ReadGranularity:])
}

// mul returns the element-wise product a*b.
func (a vec16) mul(b vec16) vec16 {
	var out vec16
	for i := range out {
		out[i] = a[i] * b[i]
	}
	return out
}

// cmSum reduces v by pairwise halving. The association order is fixed,
// so equal inputs always give bit-identical sums.
func cmSum(v vec16) float32 {
	var h vec8
	for i := range h {
		h[i] = v[i] + v[i+ReadGranularity]
	}
	for w := ReadGranularity / 2; w > 0; w /= 2 {
		for i := 0; i < w; i++ {
			h[i] += h[i+w]
		}
	}
	return h[0]
}
