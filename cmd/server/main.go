package main

import (
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/rknm-cell/peters-world-sub000/internal/api"
	"github.com/rknm-cell/peters-world-sub000/internal/config"
	"github.com/rknm-cell/peters-world-sub000/internal/water"
	"github.com/rknm-cell/peters-world-sub000/internal/world"
)

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("no .env file found, using environment variables only")
		}
	} else {
		log.Println("loaded environment from ../.env")
	}

	// Load centralized configuration (SSOT - Single Source of Truth)
	appConfig := config.Load()
	terrainCfg := appConfig.Terrain
	serverCfg := appConfig.Server

	port := strconv.Itoa(serverCfg.Port)

	log.Printf("config: resolution %d, %d TPS, water grid %dx%d",
		terrainCfg.Resolution, terrainCfg.TickRate, appConfig.Water.Cols, appConfig.Water.Rows)

	// Create the world with centralized config
	w := world.New(world.Config{
		TickRate:   terrainCfg.TickRate,
		Resolution: terrainCfg.Resolution,
		CellSize:   appConfig.Spatial.CellSize,
		Seed:       terrainCfg.Seed,
		Water: water.Config{
			Cols:              appConfig.Water.Cols,
			Rows:              appConfig.Water.Rows,
			FlowRate:          appConfig.Water.FlowRate,
			MaxOutflow:        appConfig.Water.MaxOutflow,
			GravityBias:       appConfig.Water.GravityBias,
			Dampening:         appConfig.Water.Dampening,
			EvaporationRate:   appConfig.Water.EvaporationRate,
			ActivityThreshold: appConfig.Water.ActivityThreshold,
			LowPerformance:    appConfig.Water.LowPerformance,
		},
		Limits: world.ResourceLimits{
			MaxCreatures:         appConfig.Limits.MaxCreatures,
			MaxSnapshotCreatures: appConfig.Limits.MaxSnapshotCreatures,
		},
	})

	limits := w.GetLimits()
	log.Printf("resource limits: %d creatures, %d per snapshot",
		limits.MaxCreatures, limits.MaxSnapshotCreatures)

	// Start event log
	if serverCfg.EventLogPath != "" {
		if err := w.StartEventLog(serverCfg.EventLogPath); err != nil {
			log.Printf("event log disabled: %v", err)
		} else {
			log.Printf("event log: %s", serverCfg.EventLogPath)
		}
	}

	// Start debug server (pprof + prometheus on localhost)
	if os.Getenv("DISABLE_DEBUG_SERVER") != "true" {
		if err := api.StartDebugServer(api.DefaultObservabilityConfig()); err != nil {
			log.Printf("debug server disabled: %v", err)
		}
	}

	// Editor authentication setup
	editorAuthEnabled := os.Getenv("EDITOR_AUTH_ENABLED") == "true"
	var sessionManager *api.SessionManager
	if editorAuthEnabled {
		token := os.Getenv("EDITOR_TOKEN")
		if token == "" {
			log.Fatal("EDITOR_AUTH_ENABLED=true requires EDITOR_TOKEN to be set")
		}
		sessionManager = api.NewSessionManager(token)
		log.Println("editor authentication ENABLED")
	} else {
		log.Println("editor authentication DISABLED (set EDITOR_AUTH_ENABLED=true to enable)")
	}

	server := api.NewServerWithAuth(w, sessionManager, editorAuthEnabled)

	// Start the world tick loop
	w.Start()

	// Start API server in goroutine
	go func() {
		addr := ":" + port
		if err := server.Start(addr); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("shutting down...")
	server.Stop()
	w.Stop()
	w.StopEventLog()
}
