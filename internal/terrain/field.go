// Package terrain holds the canonical per-vertex height/water dataset over
// the sphere surface and the brush engine that edits it.
package terrain

import (
	"math"

	"github.com/rknm-cell/peters-world-sub000/internal/geom"
)

// Field value bounds. Height is a signed offset from the base sphere
// radius; water level is a normalized fill fraction.
const (
	BaseRadius = 6.0
	MinHeight  = -4.0
	MaxHeight  = 6.0
	MinWater   = 0.0
	MaxWater   = 1.0
)

// Vertex is one point of the terrain field. X, Y, Z lie approximately on a
// sphere of BaseRadius, are set once at field creation and never reassigned;
// Height and WaterLevel mutate in place via the brush engine and the water
// simulator. The slice index is the vertex's stable identity.
type Vertex struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Height     float64 `json:"height"`
	WaterLevel float64 `json:"waterLevel"`
}

// Position returns the fixed base position of the vertex.
func (v Vertex) Position() geom.Vec3 {
	return geom.Vec3{X: v.X, Y: v.Y, Z: v.Z}
}

// Field is the fixed-length ordered sequence of terrain vertices. Vertex
// order never changes after generation; a reset clears the sequence and a
// subsequent Generate repopulates it from a fresh tessellation.
type Field struct {
	vertices []Vertex
	// positions mirrors the immutable vertex coordinates for the spatial
	// index, which only needs geometry, never height or water.
	positions  []geom.Vec3
	resolution int
}

// NewField generates a field from a UV-sphere tessellation at the given
// resolution (number of latitude bands; longitude steps are doubled).
// Resolution 128 yields roughly 32k vertices.
func NewField(resolution int) *Field {
	f := &Field{}
	f.Generate(resolution)
	return f
}

// Generate replaces the field contents with a fresh tessellation.
// Callers must re-partition any spatial index afterwards, since vertex
// identity changes wholesale.
func (f *Field) Generate(resolution int) {
	if resolution < 2 {
		resolution = 2
	}
	latBands := resolution
	lonSteps := resolution * 2

	n := (latBands-1)*lonSteps + 2
	f.vertices = make([]Vertex, 0, n)
	f.positions = make([]geom.Vec3, 0, n)
	f.resolution = resolution

	f.appendVertex(geom.Vec3{X: 0, Y: BaseRadius, Z: 0}) // north pole

	for lat := 1; lat < latBands; lat++ {
		theta := math.Pi * float64(lat) / float64(latBands)
		sinT, cosT := math.Sincos(theta)
		for lon := 0; lon < lonSteps; lon++ {
			phi := 2 * math.Pi * float64(lon) / float64(lonSteps)
			sinP, cosP := math.Sincos(phi)
			f.appendVertex(geom.Vec3{
				X: BaseRadius * sinT * cosP,
				Y: BaseRadius * cosT,
				Z: BaseRadius * sinT * sinP,
			})
		}
	}

	f.appendVertex(geom.Vec3{X: 0, Y: -BaseRadius, Z: 0}) // south pole
}

func (f *Field) appendVertex(p geom.Vec3) {
	f.vertices = append(f.vertices, Vertex{X: p.X, Y: p.Y, Z: p.Z})
	f.positions = append(f.positions, p)
}

// Reset clears the field to an empty sequence. Queries against an empty
// field resolve to permissive defaults rather than errors.
func (f *Field) Reset() {
	f.vertices = nil
	f.positions = nil
	f.resolution = 0
}

// Len returns the number of vertices.
func (f *Field) Len() int {
	return len(f.vertices)
}

// Resolution returns the tessellation resolution the field was generated
// with, or 0 after a reset.
func (f *Field) Resolution() int {
	return f.resolution
}

// At returns the vertex at index i. Out-of-range indices return the zero
// vertex; hot-path callers index Positions directly.
func (f *Field) At(i int) Vertex {
	if i < 0 || i >= len(f.vertices) {
		return Vertex{}
	}
	return f.vertices[i]
}

// Positions exposes the immutable vertex coordinates for spatial
// partitioning. The slice must not be mutated.
func (f *Field) Positions() []geom.Vec3 {
	return f.positions
}

// Height returns the height offset at index i, or 0 if out of range.
func (f *Field) Height(i int) float64 {
	if i < 0 || i >= len(f.vertices) {
		return 0
	}
	return f.vertices[i].Height
}

// WaterLevel returns the water level at index i, or 0 if out of range.
func (f *Field) WaterLevel(i int) float64 {
	if i < 0 || i >= len(f.vertices) {
		return 0
	}
	return f.vertices[i].WaterLevel
}

// AddHeight offsets the height at index i, clamped to [MinHeight, MaxHeight].
// Out-of-range indices silently no-op.
func (f *Field) AddHeight(i int, delta float64) {
	if i < 0 || i >= len(f.vertices) {
		return
	}
	f.vertices[i].Height = clamp(f.vertices[i].Height+delta, MinHeight, MaxHeight)
}

// SetHeight sets the height at index i, clamped to [MinHeight, MaxHeight].
func (f *Field) SetHeight(i int, h float64) {
	if i < 0 || i >= len(f.vertices) {
		return
	}
	f.vertices[i].Height = clamp(h, MinHeight, MaxHeight)
}

// AddWater offsets the water level at index i, clamped to [MinWater, MaxWater].
func (f *Field) AddWater(i int, delta float64) {
	if i < 0 || i >= len(f.vertices) {
		return
	}
	f.vertices[i].WaterLevel = clamp(f.vertices[i].WaterLevel+delta, MinWater, MaxWater)
}

// SetWater sets the water level at index i, clamped to [MinWater, MaxWater].
func (f *Field) SetWater(i int, w float64) {
	if i < 0 || i >= len(f.vertices) {
		return
	}
	f.vertices[i].WaterLevel = clamp(w, MinWater, MaxWater)
}

// Vertices returns a copy of the full vertex sequence for the external
// persistence layer and the render layer.
func (f *Field) Vertices() []Vertex {
	out := make([]Vertex, len(f.vertices))
	copy(out, f.vertices)
	return out
}

// SetVertices replaces the field contents from persisted data. Values are
// re-clamped defensively since they arrive from outside this process.
func (f *Field) SetVertices(vs []Vertex) {
	f.vertices = make([]Vertex, len(vs))
	f.positions = make([]geom.Vec3, len(vs))
	for i, v := range vs {
		v.Height = clamp(v.Height, MinHeight, MaxHeight)
		v.WaterLevel = clamp(v.WaterLevel, MinWater, MaxWater)
		f.vertices[i] = v
		f.positions[i] = geom.Vec3{X: v.X, Y: v.Y, Z: v.Z}
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
