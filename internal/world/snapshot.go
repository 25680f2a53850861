package world

import (
	"sync/atomic"
	"time"

	"github.com/rknm-cell/peters-world-sub000/internal/creature"
)

// ResourceLimits defines hard caps on world contents and snapshot sizes.
type ResourceLimits struct {
	MaxCreatures         int // Hard cap on live creatures
	MaxSnapshotCreatures int // Hard cap on creatures copied per snapshot
}

// DefaultLimits provides production-safe default limits
var DefaultLimits = ResourceLimits{
	MaxCreatures:         200,
	MaxSnapshotCreatures: 200,
}

// Snapshot is an immutable copy of the observable world state for the
// render layer and the API. Per-vertex data is deliberately excluded: the
// full field travels through the bulk accessors instead, so snapshots stay
// small enough to produce at the visual cadence.
type Snapshot struct {
	Sequence   uint64    `json:"sequence"`  // Monotonic sequence for ordering
	Timestamp  time.Time `json:"timestamp"` // When snapshot was created
	TickNumber uint64    `json:"tickNumber"`

	VertexCount int `json:"vertexCount"`
	Resolution  int `json:"resolution"`

	TotalWater float64 `json:"totalWater"` // Sum over the simulation grid
	WaterPeak  float64 `json:"waterPeak"`  // Highest cell level last step

	Creatures     []creature.Snapshot `json:"creatures"`
	CreatureCount int                 `json:"creatureCount"`
}

// SnapshotPool pre-allocates snapshots to avoid GC pressure.
// Uses triple buffering for lock-free producer/consumer.
type SnapshotPool struct {
	snapshots [3]Snapshot // Triple buffer
	limits    ResourceLimits
	writeIdx  uint32 // atomic - producer index
	readIdx   uint32 // atomic - consumer index
	sequence  uint64 // atomic - monotonic sequence
}

// NewSnapshotPool creates a pool with pre-allocated slices
func NewSnapshotPool(limits ResourceLimits) *SnapshotPool {
	pool := &SnapshotPool{limits: limits}
	for i := 0; i < 3; i++ {
		pool.snapshots[i] = Snapshot{
			Creatures: make([]creature.Snapshot, 0, limits.MaxSnapshotCreatures),
		}
	}
	return pool
}

// AcquireWrite gets the next write slot (producer only, called from the
// world tick). Returns a snapshot with reset slices but preserved capacity.
func (p *SnapshotPool) AcquireWrite() *Snapshot {
	idx := atomic.AddUint32(&p.writeIdx, 1) % 3
	snap := &p.snapshots[idx]

	snap.Creatures = snap.Creatures[:0]
	snap.Sequence = atomic.AddUint64(&p.sequence, 1)
	snap.Timestamp = time.Now()

	return snap
}

// PublishWrite marks write complete and advances the read pointer.
func (p *SnapshotPool) PublishWrite() {
	atomic.StoreUint32(&p.readIdx, atomic.LoadUint32(&p.writeIdx))
}

// AcquireRead gets the latest complete snapshot (consumer side).
func (p *SnapshotPool) AcquireRead() *Snapshot {
	idx := atomic.LoadUint32(&p.readIdx) % 3
	return &p.snapshots[idx]
}

// GetLimits returns the resource limits
func (p *SnapshotPool) GetLimits() ResourceLimits {
	return p.limits
}
