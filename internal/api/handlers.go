package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rknm-cell/peters-world-sub000/internal/geom"
	"github.com/rknm-cell/peters-world-sub000/internal/terrain"
)

// Handler methods for routerHandlers
// These are used by both the standalone router (for testing) and the full Server.

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	// OPTIMIZATION: lock-free snapshot instead of locking the world.
	// This avoids RWMutex contention on every poll request.
	snap := h.world.GetSnapshot()
	writeJSON(w, map[string]interface{}{
		"tick":          snap.TickNumber,
		"vertexCount":   snap.VertexCount,
		"resolution":    snap.Resolution,
		"totalWater":    snap.TotalWater,
		"waterPeak":     snap.WaterPeak,
		"creatures":     snap.Creatures,
		"creatureCount": snap.CreatureCount,
	})
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	snap := h.world.GetSnapshot()
	writeJSON(w, map[string]interface{}{
		"tick":        snap.TickNumber,
		"vertexCount": snap.VertexCount,
		"totalWater":  h.world.TotalWater(),
		"creatures":   h.world.CreatureStats(),
		"eventLog":    h.world.GetEventLogStats(),
	})
}

func (h *routerHandlers) handleTerrainInit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Resolution int `json:"resolution"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if req.Resolution < 2 || req.Resolution > 512 {
		writeError(w, "Resolution must be between 2 and 512", http.StatusBadRequest)
		return
	}

	h.world.InitializeField(req.Resolution)
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleTerrainReset(w http.ResponseWriter, r *http.Request) {
	h.world.ResetField()
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleTerrainBrush(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode     string  `json:"mode"`
		X        float64 `json:"x"`
		Y        float64 `json:"y"`
		Z        float64 `json:"z"`
		Radius   float64 `json:"radius"`
		Strength float64 `json:"strength"`
		Erase    bool    `json:"erase"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	mode := terrain.BrushMode(req.Mode)
	switch mode {
	case terrain.BrushRaise, terrain.BrushLower, terrain.BrushWater, terrain.BrushSmooth:
	default:
		writeError(w, "Unknown brush mode", http.StatusBadRequest)
		return
	}

	if req.Radius <= 0 || req.Radius > h.maxBrushRadius {
		writeError(w, "Radius out of range", http.StatusBadRequest)
		return
	}
	if req.Strength <= 0 || req.Strength > 1.0 {
		writeError(w, "Strength out of range", http.StatusBadRequest)
		return
	}

	h.world.ApplyBrush(terrain.BrushOp{
		Mode:     mode,
		Center:   geom.Vec3{X: req.X, Y: req.Y, Z: req.Z},
		Radius:   req.Radius,
		Strength: req.Strength,
		Erase:    req.Erase,
	})
	RecordBrushOp(req.Mode)
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleGetVertices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"vertices": h.world.Vertices(),
	})
}

func (h *routerHandlers) handleSetVertices(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Vertices []terrain.Vertex `json:"vertices"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	h.world.SetVertices(req.Vertices)
	writeJSON(w, map[string]interface{}{
		"success": true,
		"count":   len(req.Vertices),
	})
}

func (h *routerHandlers) handleMovementCheck(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From geom.Vec3 `json:"from"`
		To   geom.Vec3 `json:"to"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	result := h.world.CheckMovement(req.From, req.To)
	RecordMovementCheck(result.CanMove, result.AdjustedPosition != nil)
	writeJSON(w, result)
}

func (h *routerHandlers) handleQueryRadius(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	x, errX := strconv.ParseFloat(q.Get("x"), 64)
	y, errY := strconv.ParseFloat(q.Get("y"), 64)
	z, errZ := strconv.ParseFloat(q.Get("z"), 64)
	radius, errR := strconv.ParseFloat(q.Get("radius"), 64)

	if errX != nil || errY != nil || errZ != nil || errR != nil {
		writeError(w, "x, y, z and radius query parameters are required", http.StatusBadRequest)
		return
	}
	if radius <= 0 || radius > h.maxQueryRadius {
		writeError(w, "Radius out of range", http.StatusBadRequest)
		return
	}

	indices := h.world.QueryRadius(geom.Vec3{X: x, Y: y, Z: z}, radius)
	writeJSON(w, map[string]interface{}{
		"indices": indices,
		"count":   len(indices),
	})
}

func (h *routerHandlers) handleCreatureSpawn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind string `json:"kind"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if req.Kind == "" {
		req.Kind = "wanderer"
	}

	c := h.world.SpawnCreature(req.Kind)

	// Handle creature limit reached (DoS protection)
	if c == nil {
		writeError(w, "Creature limit reached", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, map[string]interface{}{
		"id":       c.ID,
		"kind":     c.Kind,
		"position": c.Position,
	})
}

func (h *routerHandlers) handleCreatureRemove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, "Creature ID is required", http.StatusBadRequest)
		return
	}

	if !h.world.RemoveCreature(id) {
		writeError(w, "Creature not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
