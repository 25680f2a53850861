package api

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rknm-cell/peters-world-sub000/internal/render"
	"github.com/rknm-cell/peters-world-sub000/internal/world"
)

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with WebSocket hub for real-time updates.
type Server struct {
	world       *world.World
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
	preview     *render.Preview
	sessions    *SessionManager
}

// NewServer creates a new API server with default production configuration.
//
// IMPORTANT: Background workers do NOT start until Start() is called.
// This enables testing by allowing the server to be constructed without
// starting goroutines or opening network listeners.
//
// For testing HTTP endpoints without WebSocket support, use NewRouter() directly.
func NewServer(w *world.World) *Server {
	return NewServerWithAuth(w, nil, false)
}

// NewServerWithAuth creates a new API server with editor authentication
// guarding the destructive routes.
func NewServerWithAuth(w *world.World, sessionMgr *SessionManager, enableAuth bool) *Server {
	s := &Server{
		world:    w,
		wsHub:    NewWebSocketHub(),
		preview:  render.NewPreview(1024, 512),
		sessions: sessionMgr,
	}

	// Create rate limiter (we track it for potential cleanup)
	s.rateLimiter = NewIPRateLimiter(DefaultRateLimitConfig)

	// Build router using the factory
	s.router = NewRouter(RouterConfig{
		World:            w,
		RateLimiter:      s.rateLimiter,
		SessionManager:   sessionMgr,
		EnableEditorAuth: enableAuth,
	})

	// Add WebSocket and preview routes (these need server-owned state)
	s.setupExtraRoutes()

	return s
}

// setupExtraRoutes adds routes that need access to server-owned instances
// (the websocket hub and the preview renderer), so they can't be part of
// the generic NewRouter factory.
func (s *Server) setupExtraRoutes() {
	s.router.Get("/ws", s.handleWS)
	s.router.Get("/api/preview.png", s.handlePreview)
}

// Start begins the HTTP server AND starts background workers.
// This is the ONLY method that starts goroutines or opens network listeners.
//
// Call this method only once. To stop the server, signal the process.
func (s *Server) Start(addr string) error {
	// Start background workers NOW, not in constructor
	// This is critical for testability - tests can construct the server
	// and use Router() without these workers running.
	go s.wsHub.Run()
	s.wsHub.StartBroadcastLoop(s.world)

	// Feed tick timings and world gauges into the metrics registry.
	s.world.SetTickObserver(s.observeTick)

	log.Printf("API server starting on %s", addr)
	log.Printf("editor frontend: http://localhost%s/editor", addr)

	return http.ListenAndServe(addr, s.router)
}

// Router returns the HTTP handler for use with httptest.
// Use this in integration tests instead of calling Start().
//
// Example:
//
//	server := api.NewServer(world)
//	ts := httptest.NewServer(server.Router())
//	defer ts.Close()
//	resp, _ := http.Get(ts.URL + "/api/state")
func (s *Server) Router() http.Handler {
	return s.router
}

// Stop performs graceful shutdown of background workers.
// Call this before process exit to ensure clean cleanup.
func (s *Server) Stop() {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	// Note: WebSocket hub doesn't have a Stop method yet,
	// connections will be closed when the process exits.
}

// observeTick runs after every world tick. The snapshot read is lock-free,
// so refreshing the gauges here adds no contention to the tick itself.
func (s *Server) observeTick(d time.Duration) {
	RecordTick(d)

	snap := s.world.GetSnapshot()
	UpdateVertexCount(snap.VertexCount)
	UpdateTotalWater(snap.TotalWater)
	UpdateCreatureCount(snap.CreatureCount)
}

// WebSocket handler - needs access to wsHub

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	s.wsHub.HandleWebSocket(w, r)
}

// handlePreview renders an equirectangular PNG of the field
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	snap := s.world.GetSnapshot()

	w.Header().Set("Content-Type", "image/png")
	if err := s.preview.RenderPNG(w, s.world.Vertices(), snap.Creatures); err != nil {
		log.Printf("preview render error: %v", err)
	}
}
