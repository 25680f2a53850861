package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/rknm-cell/peters-world-sub000/internal/creature"
	"github.com/rknm-cell/peters-world-sub000/internal/geom"
	"github.com/rknm-cell/peters-world-sub000/internal/movement"
	"github.com/rknm-cell/peters-world-sub000/internal/terrain"
	"github.com/rknm-cell/peters-world-sub000/internal/world"
)

// WorldInterface defines the world methods used by the API.
// This interface enables mocking for tests without spinning up the full tick loop.
// Keep this minimal - only include methods the API layer actually calls.
type WorldInterface interface {
	// GetSnapshot returns the latest lock-free immutable snapshot (preferred for API stats)
	GetSnapshot() *world.Snapshot
	// InitializeField (re)generates the terrain at the given resolution
	InitializeField(resolution int)
	// ResetField clears the field
	ResetField()
	// ApplyBrush applies one terraform edit
	ApplyBrush(op terrain.BrushOp)
	// CheckMovement validates a proposed displacement
	CheckMovement(from, to geom.Vec3) movement.Result
	// QueryRadius returns candidate vertex indices near a point
	QueryRadius(center geom.Vec3, radius float64) []int32
	// Vertices returns a copy of the field for persistence
	Vertices() []terrain.Vertex
	// SetVertices replaces the field from persisted data
	SetVertices(vs []terrain.Vertex)
	// SpawnCreature adds a wandering creature (nil when at the cap)
	SpawnCreature(kind string) *creature.Creature
	// RemoveCreature despawns a creature by ID
	RemoveCreature(id string) bool
	// IndexStats, CreatureStats and TotalWater feed the stats endpoint
	TotalWater() float64
	CreatureStats() map[string]uint64
	GetEventLogStats() map[string]interface{}
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
// This struct is designed for dependency injection and testability.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    World: mockWorld,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000, // High limit for tests
//	        Burst:             1000,
//	    },
//	}
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// World is the terrain session (required)
	World WorldInterface

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is optional configuration for the rate limiter.
	// Only used if RateLimiter is nil. If both are nil, uses DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, uses the default production origins.
	CORSOrigins []string

	// StaticFilesDir is the directory to serve the editor frontend from.
	// If empty, defaults to "./editor".
	StaticFilesDir string

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool

	// SessionManager guards destructive endpoints when EnableEditorAuth is set.
	SessionManager *SessionManager

	// EnableEditorAuth requires an editor session on reset and bulk-replace routes.
	EnableEditorAuth bool

	// MaxBrushRadius and MaxQueryRadius cap request parameters; zero means
	// the production defaults.
	MaxBrushRadius float64
	MaxQueryRadius float64
}

// routerHandlers holds the handler functions for the router.
// This is used internally to pass handlers to route setup.
type routerHandlers struct {
	world          WorldInterface
	maxBrushRadius float64
	maxQueryRadius float64
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// IMPORTANT: This function is PURE - it has no side effects:
//   - No goroutines are started
//   - No network listeners are opened
//   - No background workers are launched
//
// This makes it safe to use in tests with httptest.NewServer.
//
// Example:
//
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
//	defer ts.Close()
//	resp, _ := http.Get(ts.URL + "/api/state")
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)

	// Rate limiting (BEFORE CORS to reject early and save CPU)
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	// CORS configuration
	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	// Create handlers struct
	h := &routerHandlers{
		world:          cfg.World,
		maxBrushRadius: cfg.MaxBrushRadius,
		maxQueryRadius: cfg.MaxQueryRadius,
	}
	if h.maxBrushRadius <= 0 {
		h.maxBrushRadius = 6.0
	}
	if h.maxQueryRadius <= 0 {
		h.maxQueryRadius = 12.0
	}

	// Destructive routes optionally sit behind editor auth.
	guard := func(next http.HandlerFunc) http.HandlerFunc {
		if cfg.EnableEditorAuth && cfg.SessionManager != nil {
			return func(w http.ResponseWriter, r *http.Request) {
				cfg.SessionManager.EditorAuthMiddleware(next).ServeHTTP(w, r)
			}
		}
		return next
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		// World state
		r.Get("/state", h.handleGetState)
		r.Get("/stats", h.handleGetStats)

		// Terrain editing
		r.Post("/terrain/init", guard(h.handleTerrainInit))
		r.Post("/terrain/brush", h.handleTerrainBrush)
		r.Post("/terrain/reset", guard(h.handleTerrainReset))
		r.Get("/terrain/vertices", h.handleGetVertices)
		r.Put("/terrain/vertices", guard(h.handleSetVertices))

		// Queries
		r.Post("/movement/check", h.handleMovementCheck)
		r.Get("/query", h.handleQueryRadius)

		// Creatures
		r.Post("/creature/spawn", h.handleCreatureSpawn)
		r.Delete("/creature/{id}", h.handleCreatureRemove)

		// Editor auth surface
		if cfg.SessionManager != nil {
			r.Post("/auth/login", cfg.SessionManager.HandleLogin)
			r.Post("/auth/logout", cfg.SessionManager.HandleLogout)
			r.Get("/auth/status", cfg.SessionManager.HandleAuthStatus)
		}
	})

	// Serve static files for the editor frontend
	staticDir := cfg.StaticFilesDir
	if staticDir == "" {
		staticDir = "./editor"
	}
	r.Handle("/editor/*", http.StripPrefix("/editor/", http.FileServer(http.Dir(staticDir))))
	r.Get("/editor", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/editor/", http.StatusMovedPermanently)
	})

	// Default route
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/editor/", http.StatusFound)
	})

	return r
}
