// Package movement gates agent displacement across the terrain. It samples
// height, slope and water at a proposed destination and approves, denies or
// redirects the move. Pure query layer: it never mutates the vertex field.
package movement

import (
	"math"

	"github.com/rknm-cell/peters-world-sub000/internal/geom"
	"github.com/rknm-cell/peters-world-sub000/internal/terrain"
	"github.com/rknm-cell/peters-world-sub000/internal/terrain/spatial"
)

const (
	// MinWaterDepth is the interpolated water level above which a
	// destination counts as water and is denied.
	MinWaterDepth = 0.5
	// MaxSlopeAngle is the steepest climbable slope.
	MaxSlopeAngle = 45.0 * math.Pi / 180.0

	// waterDepthFactor sinks the walkable ground under standing water.
	waterDepthFactor = 0.4

	sampleCount    = 8  // vertices blended per ground sample
	ringDirections = 16 // directions probed per ring in the dry-land scan
	maxRings       = 6
	ringStep       = 0.5

	// initialSearchRadius starts the expanding nearest-vertex query; it
	// doubles until enough candidates are found.
	initialSearchRadius = 0.75
	maxSearchDoublings  = 4
)

// Result is the verdict for one proposed displacement.
type Result struct {
	CanMove      bool    `json:"canMove"`
	GroundHeight float64 `json:"groundHeight"`
	SlopeAngle   float64 `json:"slopeAngle"`
	IsWater      bool    `json:"isWater"`
	// AdjustedPosition suggests where to go instead when the move is
	// denied: the nearest-found dry point for water, a sideways detour for
	// slope, or the unchanged origin when no alternative validates.
	AdjustedPosition *geom.Vec3 `json:"adjustedPosition,omitempty"`
}

// Validator samples the vertex field through a neighbor source. When no
// index has been partitioned the caller may pass nil and the validator
// falls back to a brute-force scan over the field's positions.
type Validator struct {
	field *terrain.Field
	src   spatial.NeighborSource
}

// NewValidator creates a validator over the given field. src may be nil.
func NewValidator(field *terrain.Field, src spatial.NeighborSource) *Validator {
	return &Validator{field: field, src: src}
}

// SetSource swaps the neighbor source, e.g. after the index is rebuilt for
// a regenerated field.
func (v *Validator) SetSource(src spatial.NeighborSource) {
	v.src = src
}

// source returns the configured neighbor source or a brute-force scan over
// the current field.
func (v *Validator) source() spatial.NeighborSource {
	if v.src != nil && v.src.Len() == v.field.Len() {
		return v.src
	}
	return spatial.NewBruteForce(v.field.Positions())
}

// CheckMovement validates a displacement from one point to another.
// Degenerate inputs (empty field, zero horizontal distance, no nearby
// vertices) resolve to permissive defaults, never errors: terrain may
// legitimately be queried before initialization completes.
func (v *Validator) CheckMovement(from, to geom.Vec3) Result {
	return v.check(from, to, 0)
}

func (v *Validator) check(from, to geom.Vec3, depth int) Result {
	permissive := Result{CanMove: true, GroundHeight: terrain.BaseRadius}
	if v.field == nil || v.field.Len() == 0 {
		return permissive
	}

	height, waterLevel, ok := v.sampleAt(to)
	if !ok {
		return permissive
	}
	groundHeight := terrain.BaseRadius + height - waterLevel*waterDepthFactor

	horizontal := terrain.HorizontalDistance(from, to)
	if horizontal < 1e-9 {
		// Identity or radial-only movement: nothing to climb, nothing to
		// wade into.
		return Result{CanMove: true, GroundHeight: groundHeight}
	}

	if waterLevel > MinWaterDepth {
		res := Result{
			CanMove:      false,
			GroundHeight: groundHeight,
			IsWater:      true,
		}
		if dry, found := v.findDryPosition(to); found {
			res.AdjustedPosition = &dry
		}
		return res
	}

	fromHeight, fromWater, ok := v.sampleAt(from)
	if !ok {
		return Result{CanMove: true, GroundHeight: groundHeight}
	}
	fromGround := terrain.BaseRadius + fromHeight - fromWater*waterDepthFactor

	slope := math.Atan(math.Abs(groundHeight-fromGround) / horizontal)
	if slope > MaxSlopeAngle {
		res := Result{
			CanMove:      false,
			GroundHeight: groundHeight,
			SlopeAngle:   slope,
		}
		// One alternate attempt at +/-90 degrees from the blocked bearing,
		// same travel distance. Single recursion level, no backtracking.
		if depth == 0 {
			if alt, found := v.sidestep(from, to); found {
				res.AdjustedPosition = &alt
			} else {
				origin := from
				res.AdjustedPosition = &origin
			}
		}
		return res
	}

	return Result{CanMove: true, GroundHeight: groundHeight, SlopeAngle: slope}
}

// sampleAt inverse-distance-weights the heights and water levels of the
// nearest vertices (by direction on the unit sphere) around p.
func (v *Validator) sampleAt(p geom.Vec3) (height, waterLevel float64, ok bool) {
	dir := p.Normalized()
	if dir == (geom.Vec3{}) {
		return 0, 0, false
	}
	surface := dir.Scale(terrain.BaseRadius)
	src := v.source()

	var candidates []int32
	radius := initialSearchRadius
	for attempt := 0; attempt <= maxSearchDoublings; attempt++ {
		candidates = src.VerticesInRadius(surface, radius)
		if len(candidates) >= sampleCount {
			break
		}
		radius *= 2
	}
	if len(candidates) == 0 {
		return 0, 0, false
	}

	// Keep the sampleCount nearest candidates by chord distance to the
	// surface point.
	var nearest [sampleCount]int32
	var nearestDist [sampleCount]float64
	n := 0
	positions := v.field.Positions()
	for _, idx := range candidates {
		d := positions[idx].DistanceSqTo(surface)
		if n < sampleCount {
			nearest[n] = idx
			nearestDist[n] = d
			n++
			continue
		}
		// Replace the current farthest if this one is closer.
		worst := 0
		for k := 1; k < sampleCount; k++ {
			if nearestDist[k] > nearestDist[worst] {
				worst = k
			}
		}
		if d < nearestDist[worst] {
			nearest[worst] = idx
			nearestDist[worst] = d
		}
	}

	totalWeight := 0.0
	for k := 0; k < n; k++ {
		i := int(nearest[k])
		d := math.Sqrt(nearestDist[k])
		if d < 1e-9 {
			// Exactly on a vertex: use it directly.
			return v.field.Height(i), v.field.WaterLevel(i), true
		}
		w := 1.0 / d
		height += v.field.Height(i) * w
		waterLevel += v.field.WaterLevel(i) * w
		totalWeight += w
	}
	if totalWeight == 0 {
		return 0, 0, false
	}
	return height / totalWeight, waterLevel / totalWeight, true
}

// tangentBasis returns two orthonormal vectors spanning the tangent plane
// at the given surface direction.
func tangentBasis(dir geom.Vec3) (geom.Vec3, geom.Vec3) {
	ref := geom.Vec3{Y: 1}
	if math.Abs(dir.Y) > 0.99 {
		ref = geom.Vec3{X: 1}
	}
	u := dir.Cross(ref).Normalized()
	w := dir.Cross(u)
	return u, w
}

// findDryPosition scans expanding rings around p, 16 directions per ring,
// and returns the first sampled point whose water level sits below the
// water threshold. First-found rather than globally nearest: a deliberate
// cheap approximation.
func (v *Validator) findDryPosition(p geom.Vec3) (geom.Vec3, bool) {
	dir := p.Normalized()
	if dir == (geom.Vec3{}) {
		return geom.Vec3{}, false
	}
	u, w := tangentBasis(dir)

	for ring := 1; ring <= maxRings; ring++ {
		dist := ringStep * float64(ring)
		for step := 0; step < ringDirections; step++ {
			angle := 2 * math.Pi * float64(step) / ringDirections
			sin, cos := math.Sincos(angle)
			offset := u.Scale(cos * dist).Add(w.Scale(sin * dist))
			probeDir := dir.Scale(terrain.BaseRadius).Add(offset).Normalized()
			if probeDir == (geom.Vec3{}) {
				continue
			}
			probe := probeDir.Scale(terrain.BaseRadius)
			height, waterLevel, ok := v.sampleAt(probe)
			if !ok || waterLevel >= MinWaterDepth {
				continue
			}
			ground := terrain.BaseRadius + height - waterLevel*waterDepthFactor
			return probeDir.Scale(ground), true
		}
	}
	return geom.Vec3{}, false
}

// sidestep tries the two alternates at +/-90 degrees from the from->to
// bearing at equal travel distance, returning the first that validates.
func (v *Validator) sidestep(from, to geom.Vec3) (geom.Vec3, bool) {
	travel := to.Sub(from)
	dist := travel.Length()
	if dist < 1e-9 {
		return geom.Vec3{}, false
	}
	normal := from.Normalized()
	// Project the travel vector onto the tangent plane at from so the
	// sideways bearing stays on the surface.
	lateral := travel.Sub(normal.Scale(travel.Dot(normal)))
	if lateral.Length() < 1e-9 {
		return geom.Vec3{}, false
	}
	side := normal.Cross(lateral.Normalized())

	for _, sign := range [2]float64{1, -1} {
		altDir := from.Add(side.Scale(sign * dist)).Normalized()
		if altDir == (geom.Vec3{}) {
			continue
		}
		alt := altDir.Scale(from.Length())
		if res := v.check(from, alt, 1); res.CanMove {
			return alt, true
		}
	}
	return geom.Vec3{}, false
}
