package zegemm

// Device kernels. Each receives its arguments in the order declared by its
// KernelDef; a malformed argument list panics, which the launcher reports
// as a kernel fault.

// sgemmKernel computes C += A*B for the tile selected by the work-group id.
// Arguments: M, N, K int32; A, B, C *Surface.
func sgemmKernel(tid ThreadID, args ...interface{}) {
	m, n, k := args[0].(int32), args[1].(int32), args[2].(int32)
	a, b, c := args[3].(*Surface), args[4].(*Surface), args[5].(*Surface)
	sgemmTile(groupTileCoordinates{}, tid, int(m), int(n), int(k), a, b, c)
}

// sgemmKernelHostLoop computes C += A*B for the tile at (ic, jc) bound by
// the host. Arguments: M, N, K, ic, jc int32; A, B, C *Surface.
func sgemmKernelHostLoop(tid ThreadID, args ...interface{}) {
	m, n, k := args[0].(int32), args[1].(int32), args[2].(int32)
	ic, jc := args[3].(int32), args[4].(int32)
	a, b, c := args[5].(*Surface), args[6].(*Surface), args[7].(*Surface)
	src := hostTileCoordinates{row: int(ic), col: int(jc)}
	sgemmTile(src, tid, int(m), int(n), int(k), a, b, c)
}

// sgemmTile is the blocked body shared by both kernels. The 16x16
// accumulation tile starts from the current C tile and is written back
// once. For every K block, each cell adds the pairwise sum of the
// element-wise product of its A row panel and B column panel.
func sgemmTile(src TileCoordinateSource, tid ThreadID, m, n, k int, a, b, c *Surface) {
	tile := src.Tile(tid)
	if tile.Row >= m || tile.Col >= n {
		return
	}
	x := tile.Col * ElementSize

	var acc [TileSize]vec16
	for i := range acc {
		acc[i].readRow(c, x, tile.Row+i)
	}

	var aPanel, bPanel [TileSize]vec16
	for kb := 0; kb < k; kb += TileSize {
		kx := kb * ElementSize
		for i := range aPanel {
			aPanel[i].readRow(a, kx, tile.Row+i)
		}
		for j := range bPanel {
			bPanel[j].readColumn(b, x+j*ElementSize, kb)
		}
		for i := range acc {
			for j := range acc[i] {
				acc[i][j] += cmSum(aPanel[i].mul(bPanel[j]))
			}
		}
	}

	for i := range acc {
		acc[i].writeRow(c, x, tile.Row+i)
	}
}

// helloWorldKernel prints one greeting per invocation. Argument:
// threadwidth int32, the row width used to number the invocations.
func helloWorldKernel(tid ThreadID, args ...interface{}) {
	width := int(args[0].(int32))
	id := tid.LinearGlobalID()
	row, col := 0, id
	if width > 0 {
		row, col = id/width, id%width
	}
	tid.Printf("Hello from GPU thread (%d, %d): group (%d, %d, %d) local (%d, %d, %d)\n",
		col, row, tid.GroupID(0), tid.GroupID(1), tid.GroupID(2),
		tid.LocalID(0), tid.LocalID(1), tid.LocalID(2))
}
