package api

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rknm-cell/peters-world-sub000/internal/water"
	"github.com/rknm-cell/peters-world-sub000/internal/world"
)

func testWorld() *world.World {
	cfg := world.DefaultConfig()
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
	return world.New(cfg)
}

// TestObserveTickRefreshesGauges tests that the per-tick observer pushes the
// world aggregates into the vertex, water and creature gauges
func TestObserveTickRefreshesGauges(t *testing.T) {
	w := testWorld()
	w.SpawnCreature("wanderer")
	w.ProduceSnapshot()

	s := NewServer(w)
	s.observeTick(time.Millisecond)

	snap := w.GetSnapshot()
	if snap.VertexCount == 0 {
		t.Fatal("Snapshot missing vertex count; cannot assert gauges")
	}
	if got := testutil.ToFloat64(vertexCount); got != float64(snap.VertexCount) {
		t.Errorf("Expected vertex gauge %d, got %v", snap.VertexCount, got)
	}
	if got := testutil.ToFloat64(creatureCount); got != float64(snap.CreatureCount) {
		t.Errorf("Expected creature gauge %d, got %v", snap.CreatureCount, got)
	}
	if got := testutil.ToFloat64(totalWaterGauge); got != snap.TotalWater {
		t.Errorf("Expected water gauge %v, got %v", snap.TotalWater, got)
	}
}
