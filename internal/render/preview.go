// Package render produces equirectangular PNG previews of the terrain
// field: longitude maps to X, latitude to Y, vertex color encodes height
// and painted water. Meant for quick visual inspection, not the client's
// real 3D view.
package render

import (
	"image/color"
	"io"
	"math"

	"github.com/fogleman/gg"

	"github.com/rknm-cell/peters-world-sub000/internal/creature"
	"github.com/rknm-cell/peters-world-sub000/internal/terrain"
)

// Preview renders terrain vertices and creatures onto a fixed-size canvas.
type Preview struct {
	width  int
	height int
}

// NewPreview returns a renderer with the given canvas size. Zero or
// negative dimensions fall back to 1024x512 (2:1 equirectangular).
func NewPreview(width, height int) *Preview {
	if width <= 0 || height <= 0 {
		width, height = 1024, 512
	}
	return &Preview{width: width, height: height}
}

// RenderPNG draws the field and creatures and encodes the result as PNG.
func (p *Preview) RenderPNG(w io.Writer, vertices []terrain.Vertex, creatures []creature.Snapshot) error {
	dc := gg.NewContext(p.width, p.height)

	p.drawBackground(dc)
	p.drawVertices(dc, vertices)
	p.drawCreatures(dc, creatures)

	return dc.EncodePNG(w)
}

func (p *Preview) drawBackground(dc *gg.Context) {
	dc.SetColor(color.RGBA{12, 12, 28, 255})
	dc.DrawRectangle(0, 0, float64(p.width), float64(p.height))
	dc.Fill()
}

// project maps a sphere position to equirectangular pixel coordinates.
func (p *Preview) project(x, y, z float64) (float64, float64) {
	r := math.Sqrt(x*x + y*y + z*z)
	if r < 1e-12 {
		return 0, 0
	}
	lat := math.Acos(clamp(y/r, -1, 1)) // 0 at north pole, pi at south
	lon := math.Atan2(z, x) + math.Pi   // [0, 2pi)

	px := lon / (2 * math.Pi) * float64(p.width)
	py := lat / math.Pi * float64(p.height)
	return px, py
}

func (p *Preview) drawVertices(dc *gg.Context, vertices []terrain.Vertex) {
	if len(vertices) == 0 {
		return
	}

	// Dot size shrinks as tessellation density grows so dense fields
	// read as a continuous surface instead of overlapping blobs.
	radius := 3.0
	if len(vertices) > 20000 {
		radius = 1.5
	}

	for i := range vertices {
		v := &vertices[i]
		px, py := p.project(v.X, v.Y, v.Z)

		dc.SetColor(vertexColor(v))
		dc.DrawCircle(px, py, radius)
		dc.Fill()
	}
}

// vertexColor blends a terrain ramp (deep brown through green to white
// peaks) toward blue as painted water deepens.
func vertexColor(v *terrain.Vertex) color.RGBA {
	t := (v.Height - terrain.MinHeight) / (terrain.MaxHeight - terrain.MinHeight)
	t = clamp(t, 0, 1)

	var r, g, b float64
	switch {
	case t < 0.4: // below sea level: browns
		k := t / 0.4
		r, g, b = 80+60*k, 50+50*k, 30+20*k
	case t < 0.8: // midlands: greens
		k := (t - 0.4) / 0.4
		r, g, b = 60-20*k, 120+40*k, 50
	default: // peaks: toward white
		k := (t - 0.8) / 0.2
		r, g, b = 40+215*k, 160+95*k, 50+205*k
	}

	if v.WaterLevel > 0 {
		wt := clamp(v.WaterLevel/terrain.MaxWater, 0, 1)
		r = r*(1-wt) + 30*wt
		g = g*(1-wt) + 90*wt
		b = b*(1-wt) + 200*wt
	}

	return color.RGBA{uint8(r), uint8(g), uint8(b), 255}
}

func (p *Preview) drawCreatures(dc *gg.Context, creatures []creature.Snapshot) {
	for i := range creatures {
		c := &creatures[i]
		px, py := p.project(c.Position.X, c.Position.Y, c.Position.Z)

		// Shadow
		dc.SetColor(color.RGBA{0, 0, 0, 128})
		dc.DrawCircle(px, py+2, 5)
		dc.Fill()

		dc.SetColor(color.RGBA{255, 210, 80, 255})
		dc.DrawCircle(px, py, 4)
		dc.Fill()
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
