package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rknm-cell/peters-world-sub000/internal/creature"
	"github.com/rknm-cell/peters-world-sub000/internal/geom"
	"github.com/rknm-cell/peters-world-sub000/internal/movement"
	"github.com/rknm-cell/peters-world-sub000/internal/terrain"
	"github.com/rknm-cell/peters-world-sub000/internal/world"
)

// mockWorld records calls and returns scripted values.
type mockWorld struct {
	snapshot    world.Snapshot
	brushOps    []terrain.BrushOp
	initCalls   []int
	resetCalls  int
	moveResult  movement.Result
	queryResult []int32
	vertices    []terrain.Vertex
	spawned     *creature.Creature
	removedOK   bool
	setVertices [][]terrain.Vertex
}

func (m *mockWorld) GetSnapshot() *world.Snapshot          { return &m.snapshot }
func (m *mockWorld) InitializeField(res int)               { m.initCalls = append(m.initCalls, res) }
func (m *mockWorld) ResetField()                           { m.resetCalls++ }
func (m *mockWorld) ApplyBrush(op terrain.BrushOp)         { m.brushOps = append(m.brushOps, op) }
func (m *mockWorld) CheckMovement(from, to geom.Vec3) movement.Result {
	return m.moveResult
}
func (m *mockWorld) QueryRadius(center geom.Vec3, radius float64) []int32 {
	return m.queryResult
}
func (m *mockWorld) Vertices() []terrain.Vertex       { return m.vertices }
func (m *mockWorld) SetVertices(vs []terrain.Vertex)  { m.setVertices = append(m.setVertices, vs) }
func (m *mockWorld) SpawnCreature(kind string) *creature.Creature { return m.spawned }
func (m *mockWorld) RemoveCreature(id string) bool    { return m.removedOK }
func (m *mockWorld) TotalWater() float64              { return 3.5 }
func (m *mockWorld) CreatureStats() map[string]uint64 { return map[string]uint64{"approved": 1} }
func (m *mockWorld) GetEventLogStats() map[string]interface{} {
	return map[string]interface{}{"total": 0}
}

func testRouter(m *mockWorld) http.Handler {
	return NewRouter(RouterConfig{
		World: m,
		RateLimitConfig: &RateLimitConfig{
			RequestsPerSecond: 1000, // High limit for tests
			Burst:             1000,
		},
		DisableLogging: true,
	})
}

func postJSON(t *testing.T, ts *httptest.Server, path string, body interface{}) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

// TestGetState tests the snapshot endpoint
func TestGetState(t *testing.T) {
	m := &mockWorld{snapshot: world.Snapshot{TickNumber: 42, VertexCount: 100}}
	ts := httptest.NewServer(testRouter(m))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/state")
	if err != nil {
		t.Fatalf("GET /api/state: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body["tick"].(float64) != 42 {
		t.Errorf("Expected tick 42, got %v", body["tick"])
	}
	if body["vertexCount"].(float64) != 100 {
		t.Errorf("Expected vertexCount 100, got %v", body["vertexCount"])
	}
}

// TestTerrainBrushValidation tests parameter rejection
func TestTerrainBrushValidation(t *testing.T) {
	m := &mockWorld{}
	ts := httptest.NewServer(testRouter(m))
	defer ts.Close()

	cases := []struct {
		name string
		body map[string]interface{}
	}{
		{"unknown mode", map[string]interface{}{"mode": "explode", "radius": 1.0, "strength": 0.5}},
		{"zero radius", map[string]interface{}{"mode": "raise", "radius": 0.0, "strength": 0.5}},
		{"oversized radius", map[string]interface{}{"mode": "raise", "radius": 99.0, "strength": 0.5}},
		{"zero strength", map[string]interface{}{"mode": "raise", "radius": 1.0, "strength": 0.0}},
		{"oversized strength", map[string]interface{}{"mode": "raise", "radius": 1.0, "strength": 2.0}},
	}

	for _, tc := range cases {
		resp := postJSON(t, ts, "/api/terrain/brush", tc.body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tc.name, resp.StatusCode)
		}
	}

	if len(m.brushOps) != 0 {
		t.Errorf("Invalid requests reached the world: %d ops", len(m.brushOps))
	}
}

// TestTerrainBrushApplies tests a valid brush request
func TestTerrainBrushApplies(t *testing.T) {
	m := &mockWorld{}
	ts := httptest.NewServer(testRouter(m))
	defer ts.Close()

	resp := postJSON(t, ts, "/api/terrain/brush", map[string]interface{}{
		"mode": "water", "x": 6.0, "y": 0.0, "z": 0.0,
		"radius": 1.5, "strength": 0.4, "erase": true,
	})
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if len(m.brushOps) != 1 {
		t.Fatalf("Expected 1 brush op, got %d", len(m.brushOps))
	}
	op := m.brushOps[0]
	if op.Mode != terrain.BrushWater || !op.Erase || op.Radius != 1.5 {
		t.Errorf("Brush op not forwarded faithfully: %+v", op)
	}
}

// TestTerrainInitValidation tests resolution bounds
func TestTerrainInitValidation(t *testing.T) {
	m := &mockWorld{}
	ts := httptest.NewServer(testRouter(m))
	defer ts.Close()

	resp := postJSON(t, ts, "/api/terrain/init", map[string]interface{}{"resolution": 1})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for resolution 1, got %d", resp.StatusCode)
	}

	resp = postJSON(t, ts, "/api/terrain/init", map[string]interface{}{"resolution": 64})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 for resolution 64, got %d", resp.StatusCode)
	}
	if len(m.initCalls) != 1 || m.initCalls[0] != 64 {
		t.Errorf("Expected one init at 64, got %v", m.initCalls)
	}
}

// TestMovementCheck tests the validation endpoint
func TestMovementCheck(t *testing.T) {
	m := &mockWorld{moveResult: movement.Result{CanMove: false, IsWater: true}}
	ts := httptest.NewServer(testRouter(m))
	defer ts.Close()

	resp := postJSON(t, ts, "/api/movement/check", map[string]interface{}{
		"from": map[string]float64{"x": 6, "y": 0, "z": 0},
		"to":   map[string]float64{"x": 0, "y": 6, "z": 0},
	})
	defer resp.Body.Close()

	var res movement.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if res.CanMove || !res.IsWater {
		t.Errorf("Verdict not forwarded: %+v", res)
	}
}

// TestQueryRadiusParams tests query parameter validation
func TestQueryRadiusParams(t *testing.T) {
	m := &mockWorld{queryResult: []int32{1, 2, 3}}
	ts := httptest.NewServer(testRouter(m))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/query?x=0&y=6&z=0") // radius missing
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 without radius, got %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/query?x=0&y=6&z=0&radius=99")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for oversized radius, got %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/query?x=0&y=6&z=0&radius=2")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Indices []int32 `json:"indices"`
		Count   int     `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Count != 3 {
		t.Errorf("Expected 3 candidates, got %d", body.Count)
	}
}

// TestCreatureSpawnLimit tests the 503 at the creature cap
func TestCreatureSpawnLimit(t *testing.T) {
	m := &mockWorld{spawned: nil} // world at capacity
	ts := httptest.NewServer(testRouter(m))
	defer ts.Close()

	resp := postJSON(t, ts, "/api/creature/spawn", map[string]string{"kind": "wanderer"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 at the creature cap, got %d", resp.StatusCode)
	}
}

// TestCreatureRemoveNotFound tests 404 on unknown creatures
func TestCreatureRemoveNotFound(t *testing.T) {
	m := &mockWorld{removedOK: false}
	ts := httptest.NewServer(testRouter(m))
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/creature/creature-7", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown creature, got %d", resp.StatusCode)
	}
}

// TestEditorAuthGuardsDestructiveRoutes tests the session gate
func TestEditorAuthGuardsDestructiveRoutes(t *testing.T) {
	m := &mockWorld{}
	sm := NewSessionManager("secret-token")
	router := NewRouter(RouterConfig{
		World:            m,
		SessionManager:   sm,
		EnableEditorAuth: true,
		RateLimitConfig:  &RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		DisableLogging:   true,
	})
	ts := httptest.NewServer(router)
	defer ts.Close()

	// Unauthenticated reset must be rejected.
	resp := postJSON(t, ts, "/api/terrain/reset", map[string]string{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected 401 without a session, got %d", resp.StatusCode)
	}
	if m.resetCalls != 0 {
		t.Fatal("Unauthenticated reset reached the world")
	}

	// Brushing stays open: it is rate-limited but not session-gated.
	resp = postJSON(t, ts, "/api/terrain/brush", map[string]interface{}{
		"mode": "raise", "radius": 1.0, "strength": 0.5,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected brush without auth to pass, got %d", resp.StatusCode)
	}
}

// TestRateLimiterRejects tests burst exhaustion
func TestRateLimiterRejects(t *testing.T) {
	m := &mockWorld{}
	router := NewRouter(RouterConfig{
		World:           m,
		RateLimitConfig: &RateLimitConfig{RequestsPerSecond: 1, Burst: 2},
		DisableLogging:  true,
	})
	ts := httptest.NewServer(router)
	defer ts.Close()

	limited := false
	for i := 0; i < 10; i++ {
		resp, err := http.Get(ts.URL + "/api/state")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Error("Expected the rate limiter to reject the burst")
	}
}

// TestLoginFlow tests token login and the authorized path
func TestLoginFlow(t *testing.T) {
	m := &mockWorld{}
	sm := NewSessionManager("secret-token")
	router := NewRouter(RouterConfig{
		World:            m,
		SessionManager:   sm,
		EnableEditorAuth: true,
		RateLimitConfig:  &RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		DisableLogging:   true,
	})
	ts := httptest.NewServer(router)
	defer ts.Close()

	// Wrong token rejected.
	resp := postJSON(t, ts, "/api/auth/login", map[string]string{"token": "nope"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected 401 for a bad token, got %d", resp.StatusCode)
	}

	// Correct token yields a session cookie.
	resp = postJSON(t, ts, "/api/auth/login", map[string]string{"token": "secret-token"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 for the correct token, got %d", resp.StatusCode)
	}
	var session *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookieName {
			session = c
		}
	}
	if session == nil {
		t.Fatal("Login did not set the session cookie")
	}

	// The cookie authorizes destructive routes.
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/terrain/reset", bytes.NewReader([]byte("{}")))
	req.AddCookie(session)
	authed, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST with session: %v", err)
	}
	authed.Body.Close()
	if authed.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 with a session, got %d", authed.StatusCode)
	}
	if m.resetCalls != 1 {
		t.Errorf("Expected 1 reset call, got %d", m.resetCalls)
	}
}

// TestRequestMetricsRecorded tests that routed requests hit the HTTP
// counters, labeled by route pattern rather than raw URL
func TestRequestMetricsRecorded(t *testing.T) {
	m := &mockWorld{}
	ts := httptest.NewServer(testRouter(m))
	defer ts.Close()

	counter := requestTotal.WithLabelValues("GET", "/api/state", http.StatusText(http.StatusOK))
	before := testutil.ToFloat64(counter)

	resp, err := http.Get(ts.URL + "/api/state")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()

	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Errorf("Expected request counter %v, got %v", before+1, got)
	}
}

// TestGetStats tests the stats endpoint aggregation
func TestGetStats(t *testing.T) {
	m := &mockWorld{snapshot: world.Snapshot{TickNumber: 7}}
	ts := httptest.NewServer(testRouter(m))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/stats")
	if err != nil {
		t.Fatalf("GET /api/stats: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if fmt.Sprintf("%v", body["totalWater"]) != "3.5" {
		t.Errorf("Expected totalWater 3.5, got %v", body["totalWater"])
	}
}
