// Package world owns one terrain session: the vertex field, its spatial
// index, the water simulator, the movement validator and the creatures.
// All mutation runs on a single per-frame tick pass; edits applied earlier
// in a pass are visible to later queries in the same pass.
package world

import (
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/rknm-cell/peters-world-sub000/internal/creature"
	"github.com/rknm-cell/peters-world-sub000/internal/geom"
	"github.com/rknm-cell/peters-world-sub000/internal/movement"
	"github.com/rknm-cell/peters-world-sub000/internal/terrain"
	"github.com/rknm-cell/peters-world-sub000/internal/terrain/spatial"
	"github.com/rknm-cell/peters-world-sub000/internal/water"
)

// Config bundles everything needed to construct a world.
type Config struct {
	TickRate   int // physics ticks per second
	Resolution int // initial tessellation resolution; 0 starts empty
	CellSize   float64
	Seed       int64
	Water      water.Config
	Limits     ResourceLimits
}

// DefaultConfig returns the production cadences: physics at 30 Hz, visual
// resync at 10 Hz and authoritative water write-back at 2 Hz (derived from
// the tick rate inside New).
func DefaultConfig() Config {
	return Config{
		TickRate:   30,
		Resolution: 128,
		CellSize:   0.5,
		Seed:       time.Now().UnixNano(),
		Water:      water.DefaultConfig(),
		Limits:     DefaultLimits,
	}
}

// World is one explicitly constructed terrain session. Each instance owns
// its services outright; nothing here is process-global, so parallel tests
// and parallel worlds never share state.
type World struct {
	mu sync.RWMutex

	field     *terrain.Field
	index     *spatial.Grid
	sim       *water.Simulator
	validator *movement.Validator
	creatures *creature.Manager

	tickRate int
	running  bool
	ticker   *time.Ticker
	stopChan chan struct{}

	tickCount uint64
	// Cadence divisors: visual resync every resyncEvery ticks, water
	// write-back every writeBackEvery ticks.
	resyncEvery    uint64
	writeBackEvery uint64

	snapshotPool *SnapshotPool
	eventLog     *EventLog

	rng  *rand.Rand
	seed int64

	limits ResourceLimits

	// onTick observes tick wall time; wired to metrics by the API layer.
	onTick func(time.Duration)
}

// New creates a world and, when cfg.Resolution > 0, generates its initial
// field. The spatial index is partitioned immediately so the first queries
// never fall back to brute force on a production-size field.
func New(cfg Config) *World {
	if cfg.TickRate <= 0 {
		cfg.TickRate = 30
	}
	if cfg.CellSize <= 0 {
		cfg.CellSize = 0.5
	}
	if cfg.Limits.MaxCreatures == 0 {
		cfg.Limits = DefaultLimits
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	resyncEvery := uint64(cfg.TickRate / 10)
	if resyncEvery == 0 {
		resyncEvery = 1
	}
	writeBackEvery := uint64(cfg.TickRate / 2)
	if writeBackEvery == 0 {
		writeBackEvery = 1
	}

	w := &World{
		field:          &terrain.Field{},
		index:          spatial.NewGrid(cfg.CellSize),
		sim:            water.New(cfg.Water),
		tickRate:       cfg.TickRate,
		stopChan:       make(chan struct{}),
		resyncEvery:    resyncEvery,
		writeBackEvery: writeBackEvery,
		snapshotPool:   NewSnapshotPool(cfg.Limits),
		eventLog:       NewEventLog(),
		rng:            rand.New(rand.NewSource(cfg.Seed)),
		seed:           cfg.Seed,
		limits:         cfg.Limits,
	}
	w.validator = movement.NewValidator(w.field, w.index)
	w.creatures = creature.NewManager(w.validator, cfg.Limits.MaxCreatures, cfg.Seed)

	if cfg.Resolution > 0 {
		w.initializeFieldLocked(cfg.Resolution)
	}
	return w
}

// Start begins the tick loop.
func (w *World) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	w.ticker = time.NewTicker(time.Second / time.Duration(w.tickRate))

	go func() {
		for {
			select {
			case <-w.ticker.C:
				w.tick()
			case <-w.stopChan:
				return
			}
		}
	}()

	log.Printf("world started at %d TPS (resync /%d, write-back /%d)",
		w.tickRate, w.resyncEvery, w.writeBackEvery)
}

// Stop stops the tick loop. Safe to call twice.
func (w *World) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	w.running = false
	if w.ticker != nil {
		w.ticker.Stop()
	}
	close(w.stopChan)
	log.Println("world stopped")
}

// SetTickObserver registers a callback receiving each tick's wall time.
func (w *World) SetTickObserver(fn func(time.Duration)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onTick = fn
}

// tick runs one per-frame update pass: water physics every tick, creature
// decisions every tick, visual snapshot at the resync cadence, and the
// authoritative field write-back at the slowest cadence.
func (w *World) tick() {
	start := time.Now()

	w.mu.Lock()
	w.tickCount++
	dt := 1.0 / float64(w.tickRate)

	w.sim.Step(dt)
	w.creatures.Update(dt)

	if w.tickCount%w.writeBackEvery == 0 && w.field.Len() > 0 {
		w.sim.WriteBackToField(w.field)
		w.eventLog.EmitSimple(EventTypeWaterWriteBack, w.tickCount, "",
			WaterWriteBackPayload{TotalWater: w.sim.TotalWater(), Peak: w.sim.Peak()})
	}

	if w.tickCount%w.resyncEvery == 0 {
		w.produceSnapshotLocked()
	}
	// Copy the observer under the lock; SetTickObserver may run while the
	// loop is live.
	onTick := w.onTick
	w.mu.Unlock()

	if onTick != nil {
		onTick(time.Since(start))
	}
}

// initializeFieldLocked regenerates the field and everything derived from
// it. Caller holds the write lock (or is the constructor).
func (w *World) initializeFieldLocked(resolution int) {
	w.field.Generate(resolution)
	w.index.Partition(w.field.Positions())
	w.sim.SeedFromField(w.field)
	w.validator.SetSource(w.index)

	w.eventLog.EmitSimple(EventTypeFieldInit, w.tickCount, "",
		FieldInitPayload{Resolution: resolution, VertexCount: w.field.Len()})
	log.Printf("field initialized: resolution %d, %d vertices", resolution, w.field.Len())
}

// InitializeField (re)generates the terrain at the given resolution and
// rebuilds the spatial index and water grid.
func (w *World) InitializeField(resolution int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.initializeFieldLocked(resolution)
}

// ResetField clears the field to an empty sequence. Queries against the
// empty field return permissive defaults until the next InitializeField.
func (w *World) ResetField() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.field.Reset()
	w.index.Partition(nil)
	w.sim.Reinitialize(w.sim.Cols(), w.sim.Rows())
	w.eventLog.EmitSimple(EventTypeFieldReset, w.tickCount, "", nil)
}

// ApplyBrush applies one terraform edit. Water brushes re-seed the
// simulation grid so the painted water starts flowing immediately; height
// brushes refresh only the simulator's terrain resample.
func (w *World) ApplyBrush(op terrain.BrushOp) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.field.Len() == 0 {
		return // silently no-op, matching brush semantics on empty fields
	}

	w.field.ApplyBrush(w.index, op)

	switch op.Mode {
	case terrain.BrushWater:
		w.sim.SeedFromField(w.field)
	case terrain.BrushRaise, terrain.BrushLower, terrain.BrushSmooth:
		w.sim.RefreshTerrain(w.field)
	}

	w.eventLog.EmitSimple(EventTypeBrush, w.tickCount, "", BrushPayload{
		Mode:     string(op.Mode),
		X:        op.Center.X,
		Y:        op.Center.Y,
		Z:        op.Center.Z,
		Radius:   op.Radius,
		Strength: op.Strength,
		Erase:    op.Erase,
	})
}

// TickWater advances the water simulation by dt seconds outside the
// internal loop, for headless/manual stepping.
func (w *World) TickWater(dt float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sim.Step(dt)
}

// CheckMovement validates a proposed displacement. Pure query.
func (w *World) CheckMovement(from, to geom.Vec3) movement.Result {
	w.mu.RLock()
	result := w.validator.CheckMovement(from, to)
	tick := w.tickCount
	w.mu.RUnlock()

	if !result.CanMove {
		w.eventLog.EmitSimple(EventTypeMovementDenied, tick, "", MovementDeniedPayload{
			IsWater:    result.IsWater,
			SlopeAngle: result.SlopeAngle,
		})
	}
	return result
}

// QueryRadius returns a copy of the candidate vertex indices near center.
// The result is a superset of the vertices within the exact radius.
func (w *World) QueryRadius(center geom.Vec3, radius float64) []int32 {
	w.mu.RLock()
	defer w.mu.RUnlock()

	candidates := w.index.VerticesInRadius(center, radius)
	out := make([]int32, len(candidates))
	copy(out, candidates)
	return out
}

// Vertices returns a copy of the full field for persistence or rendering.
func (w *World) Vertices() []terrain.Vertex {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.field.Vertices()
}

// SetVertices replaces the field from persisted data and rebuilds all
// derived state, exactly as a fresh generation would.
func (w *World) SetVertices(vs []terrain.Vertex) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.field.SetVertices(vs)
	w.index.Partition(w.field.Positions())
	w.sim.SeedFromField(w.field)
	w.validator.SetSource(w.index)
}

// SpawnCreature adds a wandering creature at a random surface point.
// Returns nil when the creature cap is reached.
func (w *World) SpawnCreature(kind string) *creature.Creature {
	w.mu.Lock()
	defer w.mu.Unlock()

	c := w.creatures.SpawnRandom(kind)
	if c == nil {
		log.Printf("creature limit reached (%d), rejecting spawn of %q", w.limits.MaxCreatures, kind)
		return nil
	}
	w.eventLog.EmitSimple(EventTypeCreatureSpawn, w.tickCount, c.ID, CreatureSpawnPayload{
		CreatureID: c.ID,
		Kind:       c.Kind,
		X:          c.Position.X,
		Y:          c.Position.Y,
		Z:          c.Position.Z,
	})
	return c
}

// RemoveCreature despawns a creature by ID.
func (w *World) RemoveCreature(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	removed := w.creatures.Remove(id)
	if removed {
		w.eventLog.EmitSimple(EventTypeCreatureRemove, w.tickCount, id, nil)
	}
	return removed
}

// produceSnapshotLocked publishes an immutable snapshot for lock-free
// readers. Caller holds the write lock.
func (w *World) produceSnapshotLocked() {
	snap := w.snapshotPool.AcquireWrite()
	snap.TickNumber = w.tickCount
	snap.VertexCount = w.field.Len()
	snap.Resolution = w.field.Resolution()
	snap.TotalWater = w.sim.TotalWater()
	snap.WaterPeak = w.sim.Peak()
	snap.Creatures = w.creatures.Snapshots(snap.Creatures)
	snap.CreatureCount = w.creatures.Len()
	w.snapshotPool.PublishWrite()
}

// GetSnapshot returns the latest immutable snapshot. Preferred read path
// for the API and websocket broadcasters.
func (w *World) GetSnapshot() *Snapshot {
	return w.snapshotPool.AcquireRead()
}

// ProduceSnapshot forces an immediate snapshot, for callers that cannot
// wait for the resync cadence (tests, first websocket frame).
func (w *World) ProduceSnapshot() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.produceSnapshotLocked()
}

// StartEventLog initializes the event logging system
func (w *World) StartEventLog(filePath string) error {
	return w.eventLog.Start(filePath)
}

// StopEventLog gracefully stops the event logging system
func (w *World) StopEventLog() {
	w.eventLog.Stop()
}

// GetEventLogStats returns event log statistics for monitoring
func (w *World) GetEventLogStats() map[string]interface{} {
	return w.eventLog.GetStats()
}

// GetLimits returns the current resource limits
func (w *World) GetLimits() ResourceLimits {
	return w.limits
}

// IndexStats exposes spatial grid statistics for the stats endpoint.
func (w *World) IndexStats() spatial.GridStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.index.Stats()
}

// CreatureStats exposes creature step outcome counters.
func (w *World) CreatureStats() map[string]uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.creatures.Stats()
}

// TotalWater sums the simulation grid's water levels.
func (w *World) TotalWater() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.sim.TotalWater()
}

// TickCount returns the number of completed tick passes.
func (w *World) TickCount() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.tickCount
}
