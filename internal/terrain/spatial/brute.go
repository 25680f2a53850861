package spatial

import "github.com/rknm-cell/peters-world-sub000/internal/geom"

// BruteForce is the fallback NeighborSource used before an index has been
// partitioned, or for fields too small to be worth bucketing. It scans
// every vertex per query. Kept as an explicit strategy behind the same
// interface as Grid so either can be swapped in (or replaced by an octree
// later) without touching callers.
type BruteForce struct {
	positions []geom.Vec3
	scratch   []int32
}

// NewBruteForce creates a scanner over the given positions. The slice is
// retained, not copied; positions are immutable after field generation.
func NewBruteForce(positions []geom.Vec3) *BruteForce {
	return &BruteForce{
		positions: positions,
		scratch:   make([]int32, 0, 64),
	}
}

// VerticesInRadius scans all positions and returns those within the exact
// radius. The returned slice is reused on subsequent calls.
func (b *BruteForce) VerticesInRadius(center geom.Vec3, radius float64) []int32 {
	b.scratch = b.scratch[:0]
	if radius <= 0 {
		return b.scratch
	}
	rsq := radius * radius
	for i, p := range b.positions {
		if p.DistanceSqTo(center) <= rsq {
			b.scratch = append(b.scratch, int32(i))
		}
	}
	return b.scratch
}

// Len reports how many vertices are scanned per query.
func (b *BruteForce) Len() int {
	return len(b.positions)
}
