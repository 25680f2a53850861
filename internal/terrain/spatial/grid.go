// Package spatial provides neighbor lookup over the terrain vertex field.
//
// Vertices are referenced by integer indices (not pointers) to minimize GC
// pressure; positions never move after field generation, so the index is
// rebuilt wholesale when the field is regenerated and never incrementally.
package spatial

import (
	"math"

	"github.com/rknm-cell/peters-world-sub000/internal/geom"
)

// NeighborSource is the query interface shared by the grid index and the
// brute-force fallback. Results are a superset of the vertices within the
// exact radius; callers must re-filter by distance (narrow phase).
type NeighborSource interface {
	// VerticesInRadius returns candidate vertex indices near center.
	// The returned slice may be reused on subsequent calls.
	VerticesInRadius(center geom.Vec3, radius float64) []int32
	// Len reports how many vertices are indexed.
	Len() int
}

// CellKey identifies one fixed-size cubic cell of the grid.
type CellKey struct {
	X, Y, Z int32
}

// Grid buckets vertex indices into fixed-size 3D cells for O(1) average
// radius queries. Keys derive only from immutable vertex positions, so
// terraform edits never invalidate the index.
type Grid struct {
	cellSize    float64
	invCellSize float64
	cells       map[CellKey][]int32
	scratch     []int32
	count       int
}

// NewGrid creates an empty grid. cellSize should be on the order of the
// vertex spacing; queries touch every cell overlapping the query cube.
func NewGrid(cellSize float64) *Grid {
	return &Grid{
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		cells:       make(map[CellKey][]int32),
		scratch:     make([]int32, 0, 64),
	}
}

// keyFor maps a position to its containing cell.
func (g *Grid) keyFor(p geom.Vec3) CellKey {
	return CellKey{
		X: int32(math.Floor(p.X * g.invCellSize)),
		Y: int32(math.Floor(p.Y * g.invCellSize)),
		Z: int32(math.Floor(p.Z * g.invCellSize)),
	}
}

// Partition builds the cell map for the given positions in O(n), replacing
// any prior map in one assignment so readers see either the old index or
// the new one, never a half-built state.
func (g *Grid) Partition(positions []geom.Vec3) {
	cells := make(map[CellKey][]int32, len(positions)/4+1)
	for i, p := range positions {
		key := g.keyFor(p)
		cells[key] = append(cells[key], int32(i))
	}
	g.cells = cells
	g.count = len(positions)
}

// VerticesInRadius returns the union of indices from every cell whose
// cell-aligned bounding cube intersects the query sphere's bounding cube.
//
// IMPORTANT: the returned slice is reused on subsequent calls. Copy the
// results if you need to persist them.
func (g *Grid) VerticesInRadius(center geom.Vec3, radius float64) []int32 {
	g.scratch = g.scratch[:0]
	if radius <= 0 || len(g.cells) == 0 {
		return g.scratch
	}

	min := g.keyFor(geom.Vec3{X: center.X - radius, Y: center.Y - radius, Z: center.Z - radius})
	max := g.keyFor(geom.Vec3{X: center.X + radius, Y: center.Y + radius, Z: center.Z + radius})

	for x := min.X; x <= max.X; x++ {
		for y := min.Y; y <= max.Y; y++ {
			for z := min.Z; z <= max.Z; z++ {
				if bucket, ok := g.cells[CellKey{x, y, z}]; ok {
					g.scratch = append(g.scratch, bucket...)
				}
			}
		}
	}
	return g.scratch
}

// Len reports how many vertices are indexed.
func (g *Grid) Len() int {
	return g.count
}

// CellSize returns the fixed cell edge length.
func (g *Grid) CellSize() float64 {
	return g.cellSize
}

// Stats returns grid statistics for debugging/profiling.
func (g *Grid) Stats() GridStats {
	var total, maxInCell int
	for _, bucket := range g.cells {
		n := len(bucket)
		total += n
		if n > maxInCell {
			maxInCell = n
		}
	}
	avg := 0.0
	if len(g.cells) > 0 {
		avg = float64(total) / float64(len(g.cells))
	}
	return GridStats{
		OccupiedCells:  len(g.cells),
		TotalVertices:  total,
		MaxInCell:      maxInCell,
		AvgPerOccupied: avg,
	}
}

// GridStats contains grid statistics for debugging.
type GridStats struct {
	OccupiedCells  int
	TotalVertices  int
	MaxInCell      int
	AvgPerOccupied float64
}
