package spatial

import (
	"math"
	"testing"

	"github.com/rknm-cell/peters-world-sub000/internal/geom"
)

// spherePositions builds a small test cloud on a sphere of radius 6.
func spherePositions(n int) []geom.Vec3 {
	positions := make([]geom.Vec3, 0, n)
	for i := 0; i < n; i++ {
		theta := math.Pi * float64(i+1) / float64(n+1)
		phi := 2 * math.Pi * float64(i*7%n) / float64(n)
		positions = append(positions, geom.Vec3{
			X: 6 * math.Sin(theta) * math.Cos(phi),
			Y: 6 * math.Cos(theta),
			Z: 6 * math.Sin(theta) * math.Sin(phi),
		})
	}
	return positions
}

// TestGridEmptyQuery tests querying an unpartitioned grid
func TestGridEmptyQuery(t *testing.T) {
	g := NewGrid(0.5)

	result := g.VerticesInRadius(geom.Vec3{X: 1, Y: 2, Z: 3}, 2.0)
	if len(result) != 0 {
		t.Errorf("Expected no candidates from empty grid, got %d", len(result))
	}
	if g.Len() != 0 {
		t.Errorf("Expected Len 0, got %d", g.Len())
	}
}

// TestGridContainsAllInRadius tests that the grid query is a superset of the
// exact result: every vertex within the radius must appear among candidates.
func TestGridContainsAllInRadius(t *testing.T) {
	positions := spherePositions(500)
	g := NewGrid(0.5)
	g.Partition(positions)

	center := positions[42]
	radius := 1.5

	candidates := g.VerticesInRadius(center, radius)
	seen := make(map[int32]bool, len(candidates))
	for _, idx := range candidates {
		seen[idx] = true
	}

	for i, p := range positions {
		if p.DistanceTo(center) <= radius && !seen[int32(i)] {
			t.Errorf("Vertex %d within radius %.2f missing from candidates", i, radius)
		}
	}
}

// TestGridMatchesBruteForce tests grid results against the exact reference
// after filtering candidates by true distance.
func TestGridMatchesBruteForce(t *testing.T) {
	positions := spherePositions(300)
	g := NewGrid(0.5)
	g.Partition(positions)
	bf := NewBruteForce(positions)

	center := geom.Vec3{X: 0, Y: 6, Z: 0}
	radius := 2.0

	exact := make(map[int32]bool)
	for _, idx := range bf.VerticesInRadius(center, radius) {
		exact[idx] = true
	}

	filtered := make(map[int32]bool)
	for _, idx := range g.VerticesInRadius(center, radius) {
		if positions[idx].DistanceTo(center) <= radius {
			filtered[idx] = true
		}
	}

	if len(filtered) != len(exact) {
		t.Fatalf("Expected %d exact matches, got %d", len(exact), len(filtered))
	}
	for idx := range exact {
		if !filtered[idx] {
			t.Errorf("Vertex %d in brute-force result but not in filtered grid result", idx)
		}
	}
}

// TestGridRepartition tests that repartitioning replaces stale buckets
func TestGridRepartition(t *testing.T) {
	g := NewGrid(0.5)
	g.Partition(spherePositions(100))
	if g.Len() != 100 {
		t.Fatalf("Expected 100 vertices, got %d", g.Len())
	}

	g.Partition(nil)
	if g.Len() != 0 {
		t.Errorf("Expected empty grid after nil partition, got %d", g.Len())
	}
	if got := g.VerticesInRadius(geom.Vec3{X: 0, Y: 6, Z: 0}, 3.0); len(got) != 0 {
		t.Errorf("Expected no candidates after nil partition, got %d", len(got))
	}
}

// TestGridScratchReuse tests that consecutive queries reuse the scratch
// buffer rather than returning stale results.
func TestGridScratchReuse(t *testing.T) {
	positions := spherePositions(200)
	g := NewGrid(0.5)
	g.Partition(positions)

	wide := g.VerticesInRadius(positions[0], 3.0)
	wideCount := len(wide)

	narrow := g.VerticesInRadius(geom.Vec3{X: 100, Y: 100, Z: 100}, 0.1)
	if len(narrow) != 0 {
		t.Errorf("Expected no candidates far from the sphere, got %d", len(narrow))
	}

	again := g.VerticesInRadius(positions[0], 3.0)
	if len(again) != wideCount {
		t.Errorf("Expected %d candidates on repeat query, got %d", wideCount, len(again))
	}
}

// TestGridStats tests cell occupancy reporting
func TestGridStats(t *testing.T) {
	g := NewGrid(0.5)
	g.Partition(spherePositions(100))

	stats := g.Stats()
	if stats.TotalVertices != 100 {
		t.Errorf("Expected 100 vertices in buckets, got %d", stats.TotalVertices)
	}
	if stats.OccupiedCells == 0 {
		t.Error("Expected at least one occupied cell")
	}
	if stats.MaxInCell < 1 {
		t.Errorf("Expected max cell occupancy >= 1, got %d", stats.MaxInCell)
	}
}

// TestBruteForceExact tests the reference implementation filters exactly
func TestBruteForceExact(t *testing.T) {
	positions := []geom.Vec3{
		{X: 0, Y: 6, Z: 0},
		{X: 0, Y: 6.4, Z: 0},
		{X: 0, Y: -6, Z: 0},
	}
	bf := NewBruteForce(positions)

	got := bf.VerticesInRadius(geom.Vec3{X: 0, Y: 6, Z: 0}, 0.5)
	if len(got) != 2 {
		t.Fatalf("Expected 2 vertices within 0.5, got %d", len(got))
	}
}
