package terrain

import (
	"math"

	"github.com/rknm-cell/peters-world-sub000/internal/geom"
	"github.com/rknm-cell/peters-world-sub000/internal/terrain/spatial"
)

// BrushMode selects the terraform operation applied inside the brush radius.
type BrushMode string

const (
	BrushRaise  BrushMode = "raise"
	BrushLower  BrushMode = "lower"
	BrushWater  BrushMode = "water"
	BrushSmooth BrushMode = "smooth"
)

// Per-mode strength multipliers. Water gets a larger multiplier because the
// level range [0,1] is much narrower than the height range.
const (
	heightBrushScale = 2.0
	waterBrushScale  = 3.0
)

// BrushOp describes one brush application.
type BrushOp struct {
	Mode     BrushMode `json:"mode"`
	Center   geom.Vec3 `json:"center"`
	Radius   float64   `json:"radius"`
	Strength float64   `json:"strength"`
	// Erase inverts the water brush to remove water instead of adding it.
	Erase bool `json:"erase,omitempty"`
}

// cubicFalloff decays fast, carving a natural mound shape for height edits.
func cubicFalloff(dist, radius float64) float64 {
	t := 1 - dist/radius
	if t < 0 {
		return 0
	}
	return t * t * t
}

// linearFalloff gives water and smoothing a softer, wider-reaching edge.
func linearFalloff(dist, radius float64) float64 {
	t := 1 - dist/radius
	if t < 0 {
		return 0
	}
	return t
}

// ApplyBrush applies a terraform edit to every vertex within op.Radius of
// op.Center. Candidates come from a cheap over-approximating index query at
// radius*1.5 and are re-filtered by exact distance. Mutation is per-vertex
// and independent; there is no transaction spanning the whole pass. An empty
// candidate set (e.g. a reset field) is a no-op.
//
// Negative radius and strength are documented preconditions of the caller,
// not runtime-checked, to keep this path branch-light.
func (f *Field) ApplyBrush(src spatial.NeighborSource, op BrushOp) {
	if len(f.vertices) == 0 || src == nil {
		return
	}

	candidates := src.VerticesInRadius(op.Center, op.Radius*1.5)
	if len(candidates) == 0 {
		return
	}

	if op.Mode == BrushSmooth {
		// Smoothing issues nested index queries, which would clobber the
		// shared scratch buffer holding our candidate list.
		owned := make([]int32, len(candidates))
		copy(owned, candidates)
		f.applySmooth(src, op, owned)
		return
	}

	for _, idx := range candidates {
		i := int(idx)
		dist := f.positions[i].DistanceTo(op.Center)
		if dist > op.Radius {
			continue
		}

		switch op.Mode {
		case BrushRaise:
			f.AddHeight(i, op.Strength*cubicFalloff(dist, op.Radius)*heightBrushScale)
		case BrushLower:
			f.AddHeight(i, -op.Strength*cubicFalloff(dist, op.Radius)*heightBrushScale)
		case BrushWater:
			delta := op.Strength * linearFalloff(dist, op.Radius) * waterBrushScale
			if op.Erase {
				delta = -delta
			}
			f.AddWater(i, delta)
		}
	}
}

// applySmooth moves each vertex toward the average of its neighbors within
// half the brush radius. Height moves a strength·falloff fraction toward the
// average; water moves at half that fraction so painted water resists
// erasure more than terrain.
//
// Neighbor values are read live, so vertices smoothed earlier in the pass
// influence later ones. This order dependence matches the source behavior
// and avoids a pre-pass snapshot buffer (see DESIGN.md).
func (f *Field) applySmooth(src spatial.NeighborSource, op BrushOp, candidates []int32) {
	neighborRadius := op.Radius * 0.5

	for _, idx := range candidates {
		i := int(idx)
		dist := f.positions[i].DistanceTo(op.Center)
		if dist > op.Radius {
			continue
		}

		avgHeight, avgWater, ok := f.neighborAverage(src, f.positions[i], neighborRadius)
		if !ok {
			continue
		}

		t := op.Strength * linearFalloff(dist, op.Radius)
		f.SetHeight(i, f.vertices[i].Height+(avgHeight-f.vertices[i].Height)*t)
		f.SetWater(i, f.vertices[i].WaterLevel+(avgWater-f.vertices[i].WaterLevel)*t*0.5)
	}
}

// neighborAverage averages height and water over the vertices within radius
// of p. Returns ok=false when no vertex qualifies.
func (f *Field) neighborAverage(src spatial.NeighborSource, p geom.Vec3, radius float64) (avgHeight, avgWater float64, ok bool) {
	rsq := radius * radius
	count := 0
	for _, idx := range src.VerticesInRadius(p, radius) {
		i := int(idx)
		if f.positions[i].DistanceSqTo(p) > rsq {
			continue
		}
		avgHeight += f.vertices[i].Height
		avgWater += f.vertices[i].WaterLevel
		count++
	}
	if count == 0 {
		return 0, 0, false
	}
	inv := 1.0 / float64(count)
	return avgHeight * inv, avgWater * inv, true
}

// HorizontalDistance returns the distance between two points projected onto
// the sphere surface, i.e. the arc length between their directions at the
// base radius. Used by movement validation to derive slope angles.
func HorizontalDistance(a, b geom.Vec3) float64 {
	da := a.Normalized()
	db := b.Normalized()
	dot := clamp(da.Dot(db), -1, 1)
	return math.Acos(dot) * BaseRadius
}
