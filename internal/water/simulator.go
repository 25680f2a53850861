// Package water implements the cellular water-flow simulation. Water lives
// on a fixed-resolution longitude/latitude grid resampled from the terrain
// vertex field, advances independently of it, and is flushed back on a
// slower cadence so per-frame cost stays bounded.
package water

import (
	"math"

	"github.com/rknm-cell/peters-world-sub000/internal/terrain"
)

// Config holds the tuning constants of the simulation. All rates are
// per-second and scaled by dt inside Step.
type Config struct {
	Cols int // longitude cells
	Rows int // latitude cells

	// FlowRate scales how much of a positive surface-height difference
	// moves to a neighbor per second.
	FlowRate float64
	// MaxOutflow caps the total fraction of a cell's own water that can
	// leave in one step, so a cell cannot go negative.
	MaxOutflow float64
	// GravityBias is a small constant drain applied to cells whose terrain
	// sits above the base radius, pulling water downhill over time.
	GravityBias float64
	// Dampening and EvaporationRate are two sub-1 constants combined into
	// one per-tick decay factor.
	Dampening       float64
	EvaporationRate float64
	// ActivityThreshold is the near-zero water level below which per-cell
	// work is skipped, and below which (as a global peak) the entire tick
	// is skipped.
	ActivityThreshold float64
	// LowPerformance doubles the iteration stride and strengthens the
	// decay to compensate for the skipped cells.
	LowPerformance bool
}

// DefaultConfig returns the stylized-approximation constants.
func DefaultConfig() Config {
	return Config{
		Cols:              128,
		Rows:              64,
		FlowRate:          4.0,
		MaxOutflow:        0.25,
		GravityBias:       0.02,
		Dampening:         0.998,
		EvaporationRate:   0.999,
		ActivityThreshold: 1e-4,
	}
}

// Simulator advances water levels across the 2D grid. The current and
// previous buffers are a fixed-size ping-pong pair, swapped by reference
// each tick and never reallocated; only a resolution change reinitializes.
//
// Not thread-safe: the owning world serializes Step, seeding and
// write-back on its single tick pass.
type Simulator struct {
	cfg  Config
	cols int
	rows int

	water []float64 // current water level per cell
	prev  []float64 // previous-tick water level, read during a step
	// Net per-axis flow from the last step. Scratch for the visual layer;
	// carries no simulation state between ticks.
	velX []float64
	velY []float64

	terrain []float64 // resampled terrain height per cell

	// generation increments on every reinitialization so work computed
	// against a stale resolution can be detected and dropped.
	generation uint64
	peak       float64 // max water level seen last step, for the global early exit
	ticks      uint64
}

// New allocates a simulator at the configured resolution.
func New(cfg Config) *Simulator {
	s := &Simulator{cfg: cfg}
	s.Reinitialize(cfg.Cols, cfg.Rows)
	return s
}

// Reinitialize reallocates all buffers for a new grid resolution. There is
// no incremental resize; any in-flight state is discarded.
func (s *Simulator) Reinitialize(cols, rows int) {
	if cols < 4 {
		cols = 4
	}
	if rows < 4 {
		rows = 4
	}
	s.cols = cols
	s.rows = rows
	n := cols * rows
	s.water = make([]float64, n)
	s.prev = make([]float64, n)
	s.velX = make([]float64, n)
	s.velY = make([]float64, n)
	s.terrain = make([]float64, n)
	s.generation++
	s.peak = 0
}

// Cols returns the longitude cell count.
func (s *Simulator) Cols() int { return s.cols }

// Rows returns the latitude cell count.
func (s *Simulator) Rows() int { return s.rows }

// Generation identifies the current resolution epoch.
func (s *Simulator) Generation() uint64 { return s.generation }

// cellFor maps a vertex position to its grid cell, or ok=false for
// degenerate positions.
func (s *Simulator) cellFor(v terrain.Vertex) (int, bool) {
	p := v.Position()
	r := p.Length()
	if r == 0 {
		return 0, false
	}
	// lat in [0, pi], lon in [0, 2pi].
	lat := math.Acos(clamp(p.Y/r, -1, 1))
	lon := math.Atan2(p.Z, p.X) + math.Pi
	row := int(lat / math.Pi * float64(s.rows))
	col := int(lon / (2 * math.Pi) * float64(s.cols))
	if row >= s.rows {
		row = s.rows - 1
	}
	if col >= s.cols {
		col = s.cols - 1
	}
	return row*s.cols + col, true
}

// SeedFromField resamples the vertex field's current water levels and
// terrain heights into the grid. Cells covered by multiple vertices take
// the average; uncovered cells stay at zero.
func (s *Simulator) SeedFromField(f *terrain.Field) {
	n := s.cols * s.rows
	counts := make([]int, n)
	for i := range s.water {
		s.water[i] = 0
		s.terrain[i] = 0
	}
	for i := 0; i < f.Len(); i++ {
		v := f.At(i)
		cell, ok := s.cellFor(v)
		if !ok || cell >= n {
			continue
		}
		s.water[cell] += v.WaterLevel
		s.terrain[cell] += v.Height
		counts[cell]++
	}
	s.peak = 0
	for i, c := range counts {
		if c > 1 {
			inv := 1.0 / float64(c)
			s.water[i] *= inv
			s.terrain[i] *= inv
		}
		if s.water[i] > s.peak {
			s.peak = s.water[i]
		}
	}
}

// RefreshTerrain resamples only the terrain heights from the field, leaving
// in-flight water untouched. Called after height brushes so flow direction
// tracks the new relief without resetting the simulation.
func (s *Simulator) RefreshTerrain(f *terrain.Field) {
	n := s.cols * s.rows
	counts := make([]int, n)
	for i := range s.terrain {
		s.terrain[i] = 0
	}
	for i := 0; i < f.Len(); i++ {
		v := f.At(i)
		cell, ok := s.cellFor(v)
		if !ok || cell >= n {
			continue
		}
		s.terrain[cell] += v.Height
		counts[cell]++
	}
	for i, c := range counts {
		if c > 1 {
			s.terrain[i] /= float64(c)
		}
	}
}

// surface returns terrain height plus water level, the quantity that
// determines flow direction.
func (s *Simulator) surface(buf []float64, i int) float64 {
	return s.terrain[i] + buf[i]
}

// Step advances the simulation by dt seconds. Water flows to each of the
// four axis neighbors proportionally to the positive difference in surface
// height, capped so a cell cannot shed more than MaxOutflow of its own
// water in one step. Flow terms read only the previous buffer, so transfers
// are symmetric and total water never increases within a step.
func (s *Simulator) Step(dt float64) {
	if dt <= 0 {
		return
	}
	// Global early exit: a world with no standing water costs nothing.
	if s.peak < s.cfg.ActivityThreshold {
		s.ticks++
		return
	}

	gen := s.generation

	// Ping-pong: last tick's current becomes this tick's previous.
	s.water, s.prev = s.prev, s.water
	copy(s.water, s.prev)

	stride := 1
	decay := s.cfg.Dampening * s.cfg.EvaporationRate
	if s.cfg.LowPerformance {
		stride = 2
		decay *= decay // stronger damping compensates the skipped cells
	}

	flowScale := s.cfg.FlowRate * dt
	perNeighborCap := s.cfg.MaxOutflow / 4

	// Interior cells only; the one-cell border is skipped to avoid
	// wraparound artifacts at the grid seam.
	for row := 1; row < s.rows-1; row += stride {
		for col := 1; col < s.cols-1; col += stride {
			if s.generation != gen {
				// Reinitialized mid-step by a reentrant caller; a single
				// stale tick is imperceptible, drop the rest of the pass.
				return
			}
			i := row*s.cols + col
			s.velX[i] = 0
			s.velY[i] = 0
			if s.prev[i] < s.cfg.ActivityThreshold {
				continue
			}

			mySurface := s.surface(s.prev, i)
			myCap := s.prev[i] * perNeighborCap

			// Outflow to lower neighbors; the matching inflow is applied
			// to the neighbor in the same expression, keeping transfers
			// symmetric.
			// Neighbor order: west, east, north, south.
			for _, nb := range [4][3]int{
				{i - 1, -1, 0},
				{i + 1, +1, 0},
				{i - s.cols, 0, -1},
				{i + s.cols, 0, +1},
			} {
				j := nb[0]
				diff := mySurface - s.surface(s.prev, j)
				if diff <= 0 {
					continue
				}
				flow := diff * flowScale
				if flow > myCap {
					flow = myCap
				}
				s.water[i] -= flow
				s.water[j] += flow
				s.velX[i] += flow * float64(nb[1])
				s.velY[i] += flow * float64(nb[2])
			}
		}
	}

	// Gravity bias and decay. Elevated cells drain a little extra toward
	// the base radius each tick; everything evaporates slowly.
	s.peak = 0
	for i := range s.water {
		if s.terrain[i] > 0 && s.water[i] > 0 {
			s.water[i] -= s.cfg.GravityBias * dt
		}
		s.water[i] *= decay
		if s.water[i] < 0 {
			s.water[i] = 0
		}
		if s.water[i] > terrain.MaxWater {
			s.water[i] = terrain.MaxWater
		}
		if s.water[i] > s.peak {
			s.peak = s.water[i]
		}
	}
	s.ticks++
}

// WriteBackToField flushes grid water levels into the vertex field. This is
// the authoritative, deliberately low-cadence sync; the field is allowed to
// lag the grid by up to one write-back interval.
func (s *Simulator) WriteBackToField(f *terrain.Field) {
	n := s.cols * s.rows
	for i := 0; i < f.Len(); i++ {
		cell, ok := s.cellFor(f.At(i))
		if !ok || cell >= n {
			// Stale-resolution cell: recoverable no-op.
			continue
		}
		f.SetWater(i, s.water[cell])
	}
}

// TotalWater sums all water levels over the grid.
func (s *Simulator) TotalWater() float64 {
	total := 0.0
	for _, w := range s.water {
		total += w
	}
	return total
}

// Peak returns the highest water level seen at the end of the last step.
func (s *Simulator) Peak() float64 { return s.peak }

// Ticks returns how many Step calls have run (including early-exited ones).
func (s *Simulator) Ticks() uint64 { return s.ticks }

// Level returns the water level of the cell at (col, row), or 0 when out of
// range.
func (s *Simulator) Level(col, row int) float64 {
	if col < 0 || col >= s.cols || row < 0 || row >= s.rows {
		return 0
	}
	return s.water[row*s.cols+col]
}

// TerrainHeight returns the resampled terrain height of the cell at
// (col, row), or 0 when out of range.
func (s *Simulator) TerrainHeight(col, row int) float64 {
	if col < 0 || col >= s.cols || row < 0 || row >= s.rows {
		return 0
	}
	return s.terrain[row*s.cols+col]
}

// SetLevel writes a water level directly into a cell, clamped to the valid
// range. Used by tests and by the world when seeding scripted scenes.
func (s *Simulator) SetLevel(col, row int, level float64) {
	if col < 0 || col >= s.cols || row < 0 || row >= s.rows {
		return
	}
	level = clamp(level, terrain.MinWater, terrain.MaxWater)
	s.water[row*s.cols+col] = level
	if level > s.peak {
		s.peak = level
	}
}

// SetTerrainHeight writes a terrain height directly into a cell. Used by
// tests to build scripted slopes without a full field.
func (s *Simulator) SetTerrainHeight(col, row int, h float64) {
	if col < 0 || col >= s.cols || row < 0 || row >= s.rows {
		return
	}
	s.terrain[row*s.cols+col] = h
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
