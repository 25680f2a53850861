// Package creature drives the autonomous agents wandering the sphere.
// Creatures own their target selection and idling; terrain only gates each
// proposed displacement through the movement validator.
package creature

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/rknm-cell/peters-world-sub000/internal/geom"
	"github.com/rknm-cell/peters-world-sub000/internal/movement"
	"github.com/rknm-cell/peters-world-sub000/internal/terrain"
)

// State is the creature's current behavior.
type State string

const (
	StateIdle    State = "idle"
	StateWalking State = "walking"
)

// Gate validates one proposed displacement. Satisfied by
// *movement.Validator.
type Gate interface {
	CheckMovement(from, to geom.Vec3) movement.Result
}

// Creature is one wandering agent. Positions stay on the terrain surface;
// the manager re-projects after every approved step.
type Creature struct {
	ID       string    `json:"id"`
	Kind     string    `json:"kind"`
	Position geom.Vec3 `json:"position"`
	State    State     `json:"state"`
	Speed    float64   `json:"speed"`

	// bearing is the walk direction as an angle in the tangent plane at
	// the current position.
	bearing float64
	// ticksLeft counts down the current idle or walk phase.
	ticksLeft int
}

// Manager owns all creatures of one world and updates them on the world's
// tick pass. Not thread-safe on its own; the world serializes access.
type Manager struct {
	creatures []*Creature
	gate      Gate
	rng       *rand.Rand
	max       int
	nextID    int

	// Step outcome counters for stats and tests.
	approved uint64
	denied   uint64
	adjusted uint64
}

// NewManager creates a manager with a deterministic RNG so wander paths
// replay under a fixed seed.
func NewManager(gate Gate, maxCreatures int, seed int64) *Manager {
	return &Manager{
		gate: gate,
		rng:  rand.New(rand.NewSource(seed)),
		max:  maxCreatures,
	}
}

// Spawn adds a creature at the given surface position. Returns nil when the
// creature cap is reached.
func (m *Manager) Spawn(kind string, pos geom.Vec3) *Creature {
	if len(m.creatures) >= m.max {
		return nil
	}
	m.nextID++
	dir := pos.Normalized()
	if dir == (geom.Vec3{}) {
		dir = geom.Vec3{Y: 1}
	}
	c := &Creature{
		ID:        fmt.Sprintf("creature-%d", m.nextID),
		Kind:      kind,
		Position:  dir.Scale(terrain.BaseRadius),
		State:     StateIdle,
		Speed:     0.5 + m.rng.Float64()*0.5,
		ticksLeft: m.idleDuration(),
	}
	m.creatures = append(m.creatures, c)
	return c
}

// SpawnRandom places a creature at a uniformly random point on the sphere.
func (m *Manager) SpawnRandom(kind string) *Creature {
	z := m.rng.Float64()*2 - 1
	phi := m.rng.Float64() * 2 * math.Pi
	r := math.Sqrt(1 - z*z)
	dir := geom.Vec3{X: r * math.Cos(phi), Y: z, Z: r * math.Sin(phi)}
	return m.Spawn(kind, dir.Scale(terrain.BaseRadius))
}

// Remove despawns a creature by ID.
func (m *Manager) Remove(id string) bool {
	for i, c := range m.creatures {
		if c.ID == id {
			m.creatures = append(m.creatures[:i], m.creatures[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the live creature count.
func (m *Manager) Len() int {
	return len(m.creatures)
}

func (m *Manager) idleDuration() int {
	return 15 + m.rng.Intn(45)
}

func (m *Manager) walkDuration() int {
	return 30 + m.rng.Intn(90)
}

// Update advances every creature by one decision tick. Idle creatures count
// down and then pick a fresh bearing; walking creatures propose one step
// and apply the gate's verdict.
func (m *Manager) Update(dt float64) {
	for _, c := range m.creatures {
		c.ticksLeft--
		switch c.State {
		case StateIdle:
			if c.ticksLeft <= 0 {
				c.State = StateWalking
				c.bearing = m.rng.Float64() * 2 * math.Pi
				c.ticksLeft = m.walkDuration()
			}
		case StateWalking:
			m.step(c, dt)
			if c.ticksLeft <= 0 {
				c.State = StateIdle
				c.ticksLeft = m.idleDuration()
			}
		}
	}
}

// step proposes one displacement along the creature's bearing and applies
// the movement verdict.
func (m *Manager) step(c *Creature, dt float64) {
	dir := c.Position.Normalized()
	if dir == (geom.Vec3{}) {
		return
	}
	u, w := tangentBasis(dir)
	sin, cos := math.Sincos(c.bearing)
	offset := u.Scale(cos).Add(w.Scale(sin)).Scale(c.Speed * dt)

	toDir := c.Position.Add(offset).Normalized()
	if toDir == (geom.Vec3{}) {
		return
	}
	to := toDir.Scale(c.Position.Length())

	res := m.gate.CheckMovement(c.Position, to)
	switch {
	case res.CanMove:
		m.approved++
		c.Position = toDir.Scale(res.GroundHeight)
	case res.AdjustedPosition != nil && *res.AdjustedPosition != c.Position:
		m.adjusted++
		c.Position = *res.AdjustedPosition
		// Face away from whatever blocked the straight path.
		c.bearing = m.rng.Float64() * 2 * math.Pi
	default:
		m.denied++
		c.State = StateIdle
		c.ticksLeft = m.idleDuration()
	}
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

// Snapshot is an immutable copy of one creature for rendering.
type Snapshot struct {
	ID       string    `json:"id"`
	Kind     string    `json:"kind"`
	Position geom.Vec3 `json:"position"`
	State    State     `json:"state"`
}

// Snapshots copies the current creatures into the provided slice, which is
// reset and returned (snapshot-pool friendly: no allocation past capacity).
func (m *Manager) Snapshots(out []Snapshot) []Snapshot {
	out = out[:0]
	for _, c := range m.creatures {
		if len(out) == cap(out) && cap(out) > 0 {
			break
		}
		out = append(out, Snapshot{
			ID:       c.ID,
			Kind:     c.Kind,
			Position: c.Position,
			State:    c.State,
		})
	}
	return out
}

// Stats returns step outcome counters.
func (m *Manager) Stats() map[string]uint64 {
	return map[string]uint64{
		"approved": m.approved,
		"denied":   m.denied,
		"adjusted": m.adjusted,
	}
}
