package world

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rknm-cell/peters-world-sub000/internal/geom"
	"github.com/rknm-cell/peters-world-sub000/internal/terrain"
	"github.com/rknm-cell/peters-world-sub000/internal/water"
)

func testWorldConfig() Config {
	cfg := DefaultConfig()
	cfg.Resolution = 16
	cfg.Seed = 1
	cfg.Water = water.Config{
		Cols:              16,
		Rows:              16,
		FlowRate:          4.0,
		MaxOutflow:        0.25,
		GravityBias:       0.02,
		Dampening:         0.998,
		EvaporationRate:   0.999,
		ActivityThreshold: 1e-4,
	}
	return cfg
}

// TestNewWorldInitializesField tests construction with an initial resolution
func TestNewWorldInitializesField(t *testing.T) {
	w := New(testWorldConfig())

	vs := w.Vertices()
	if len(vs) == 0 {
		t.Fatal("Expected an initialized field")
	}
	expected := (16-1)*32 + 2
	if len(vs) != expected {
		t.Errorf("Expected %d vertices at resolution 16, got %d", expected, len(vs))
	}
}

// TestInitializeFieldRebuildsIndex tests that queries work after regeneration
func TestInitializeFieldRebuildsIndex(t *testing.T) {
	w := New(testWorldConfig())
	w.InitializeField(8)

	surface := geom.Vec3{X: 0, Y: terrain.BaseRadius, Z: 0}
	indices := w.QueryRadius(surface, 2.0)
	if len(indices) == 0 {
		t.Error("Expected index candidates near the pole after re-initialization")
	}
}

// TestApplyBrushRaisesTerrain tests the brush path through the world
func TestApplyBrushRaisesTerrain(t *testing.T) {
	w := New(testWorldConfig())
	center := geom.Vec3{X: 0, Y: terrain.BaseRadius, Z: 0}

	w.ApplyBrush(terrain.BrushOp{
		Mode:     terrain.BrushRaise,
		Center:   center,
		Radius:   1.5,
		Strength: 0.5,
	})

	raised := false
	for _, v := range w.Vertices() {
		if v.Height > 0 {
			raised = true
			break
		}
	}
	if !raised {
		t.Error("Expected at least one vertex raised by the brush")
	}
}

// TestWaterBrushSeedsSimulation tests that painted water enters the sim grid
func TestWaterBrushSeedsSimulation(t *testing.T) {
	w := New(testWorldConfig())
	center := geom.Vec3{X: terrain.BaseRadius, Y: 0, Z: 0}

	w.ApplyBrush(terrain.BrushOp{
		Mode:     terrain.BrushWater,
		Center:   center,
		Radius:   2.0,
		Strength: 0.8,
	})

	if w.TotalWater() == 0 {
		t.Error("Expected water brush to seed the simulation grid")
	}
}

// TestResetField tests clearing the world
func TestResetField(t *testing.T) {
	w := New(testWorldConfig())
	w.ApplyBrush(terrain.BrushOp{
		Mode:     terrain.BrushWater,
		Center:   geom.Vec3{X: terrain.BaseRadius, Y: 0, Z: 0},
		Radius:   2.0,
		Strength: 0.8,
	})

	w.ResetField()

	if len(w.Vertices()) != 0 {
		t.Error("Expected empty field after reset")
	}
	if w.TotalWater() != 0 {
		t.Error("Expected water simulation cleared after reset")
	}
	if len(w.QueryRadius(geom.Vec3{X: 0, Y: 6, Z: 0}, 3.0)) != 0 {
		t.Error("Expected no index candidates after reset")
	}

	// Queries against the reset world stay permissive.
	res := w.CheckMovement(geom.Vec3{X: 6}, geom.Vec3{Y: 6})
	if !res.CanMove {
		t.Error("Expected permissive movement verdicts on an empty world")
	}
}

// TestBrushOnResetWorldIsNoop tests edit behavior before re-initialization
func TestBrushOnResetWorldIsNoop(t *testing.T) {
	w := New(testWorldConfig())
	w.ResetField()

	w.ApplyBrush(terrain.BrushOp{
		Mode:     terrain.BrushRaise,
		Center:   geom.Vec3{X: 0, Y: 6, Z: 0},
		Radius:   1.0,
		Strength: 1.0,
	})
	if len(w.Vertices()) != 0 {
		t.Error("Brush on a reset world must not resurrect vertices")
	}
}

// TestSetVerticesRoundTrip tests persistence export/import
func TestSetVerticesRoundTrip(t *testing.T) {
	w := New(testWorldConfig())
	w.ApplyBrush(terrain.BrushOp{
		Mode:     terrain.BrushRaise,
		Center:   geom.Vec3{X: 0, Y: terrain.BaseRadius, Z: 0},
		Radius:   1.5,
		Strength: 0.5,
	})

	saved := w.Vertices()

	other := New(testWorldConfig())
	other.SetVertices(saved)

	restored := other.Vertices()
	if len(restored) != len(saved) {
		t.Fatalf("Expected %d vertices after import, got %d", len(saved), len(restored))
	}
	for i := range saved {
		if restored[i] != saved[i] {
			t.Fatalf("Vertex %d differs after round trip", i)
		}
	}

	// The imported world must answer spatial queries over the new data.
	if len(other.QueryRadius(geom.Vec3{X: 0, Y: 6, Z: 0}, 2.0)) == 0 {
		t.Error("Expected index rebuilt after SetVertices")
	}
}

// TestQueryRadiusReturnsCopy tests that callers can't corrupt the scratch buffer
func TestQueryRadiusReturnsCopy(t *testing.T) {
	w := New(testWorldConfig())
	center := geom.Vec3{X: 0, Y: terrain.BaseRadius, Z: 0}

	first := w.QueryRadius(center, 2.0)
	if len(first) == 0 {
		t.Fatal("Expected candidates near the pole")
	}
	first[0] = -999

	second := w.QueryRadius(center, 2.0)
	for _, idx := range second {
		if idx == -999 {
			t.Fatal("QueryRadius result aliases internal state")
		}
	}
}

// TestSpawnAndRemoveCreature tests the creature surface
func TestSpawnAndRemoveCreature(t *testing.T) {
	cfg := testWorldConfig()
	cfg.Limits.MaxCreatures = 2
	w := New(cfg)

	a := w.SpawnCreature("wanderer")
	b := w.SpawnCreature("wanderer")
	if a == nil || b == nil {
		t.Fatal("Spawns below the cap must succeed")
	}
	if w.SpawnCreature("wanderer") != nil {
		t.Error("Spawn above the cap must return nil")
	}

	if !w.RemoveCreature(a.ID) {
		t.Error("Expected removal to succeed")
	}
	if w.RemoveCreature("creature-does-not-exist") {
		t.Error("Removing an unknown creature should fail")
	}
}

// TestZeroSeedGetsRandomized tests that an unset seed does not pin the
// creature RNG to source 0 across restarts
func TestZeroSeedGetsRandomized(t *testing.T) {
	cfg := testWorldConfig()
	cfg.Seed = 0
	w := New(cfg)

	if w.seed == 0 {
		t.Error("Expected a time-based seed when the config leaves it zero")
	}
}

// TestTickLoopAdvances tests the background loop and snapshot production
func TestTickLoopAdvances(t *testing.T) {
	cfg := testWorldConfig()
	cfg.TickRate = 100 // fast ticks keep the test short
	w := New(cfg)
	w.SpawnCreature("wanderer")

	w.Start()
	defer w.Stop()

	deadline := time.After(2 * time.Second)
	for w.TickCount() < 20 {
		select {
		case <-deadline:
			t.Fatal("Tick loop did not advance in time")
		case <-time.After(10 * time.Millisecond):
		}
	}

	snap := w.GetSnapshot()
	if snap.VertexCount == 0 {
		t.Error("Expected snapshot to carry the vertex count")
	}
	if snap.TickNumber == 0 {
		t.Error("Expected snapshot produced at the resync cadence")
	}
}

// TestSetTickObserverWhileRunning tests late observer registration against a
// live loop: main starts the world before the API layer wires metrics, so the
// write must be safe against concurrent tick reads (run with -race).
func TestSetTickObserverWhileRunning(t *testing.T) {
	cfg := testWorldConfig()
	cfg.TickRate = 100
	w := New(cfg)

	w.Start()
	defer w.Stop()

	var fired atomic.Uint64
	for w.TickCount() < 2 {
		time.Sleep(time.Millisecond)
	}
	w.SetTickObserver(func(d time.Duration) {
		if d < 0 {
			t.Error("Negative tick duration")
		}
		fired.Add(1)
	})

	deadline := time.After(2 * time.Second)
	for fired.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("Observer registered mid-run was never invoked")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// TestStopIsIdempotent tests double-stop safety
func TestStopIsIdempotent(t *testing.T) {
	w := New(testWorldConfig())
	w.Start()
	w.Stop()
	w.Stop()
}

// TestProduceSnapshotOnDemand tests the forced snapshot path
func TestProduceSnapshotOnDemand(t *testing.T) {
	w := New(testWorldConfig())
	w.SpawnCreature("wanderer")
	w.ProduceSnapshot()

	snap := w.GetSnapshot()
	if snap.CreatureCount != 1 {
		t.Errorf("Expected 1 creature in the snapshot, got %d", snap.CreatureCount)
	}
	if snap.Resolution != 16 {
		t.Errorf("Expected resolution 16 in the snapshot, got %d", snap.Resolution)
	}
}
