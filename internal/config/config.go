// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for all terrain and server settings.
//
// IMPORTANT: When changing values, only modify this file.
// All other parts of the codebase should reference these values.
package config

import (
	"os"
	"strconv"
)

// =============================================================================
// TERRAIN CONFIGURATION
// =============================================================================

// TerrainConfig holds field tessellation and tick settings.
type TerrainConfig struct {
	Resolution int   // Sphere tessellation resolution (latitude bands)
	TickRate   int   // Physics ticks per second
	Seed       int64 // Creature RNG seed; 0 picks a time-based seed
}

// DefaultTerrain returns the default terrain configuration.
func DefaultTerrain() TerrainConfig {
	return TerrainConfig{
		Resolution: 128,
		TickRate:   30,
	}
}

// TerrainFromEnv returns terrain configuration with environment variable
// overrides. Environment variables take precedence over defaults.
func TerrainFromEnv() TerrainConfig {
	cfg := DefaultTerrain()

	if r := getEnvInt("TERRAIN_RESOLUTION", 0); r > 0 {
		cfg.Resolution = r
	}
	if t := getEnvInt("TICK_RATE", 0); t > 0 {
		cfg.TickRate = t
	}
	if s := os.Getenv("SEED"); s != "" {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			cfg.Seed = v
		}
	}

	return cfg
}

// =============================================================================
// WATER SIMULATION CONFIGURATION
// =============================================================================

// WaterConfig holds water flow simulation settings.
type WaterConfig struct {
	Cols              int     // Simulation grid columns (longitude)
	Rows              int     // Simulation grid rows (latitude)
	FlowRate          float64 // Flow speed multiplier
	MaxOutflow        float64 // Fraction of a cell's water allowed out per step
	GravityBias       float64 // Drain rate on elevated terrain
	Dampening         float64 // Per-step velocity/level decay
	EvaporationRate   float64 // Per-step evaporation multiplier
	ActivityThreshold float64 // Below this peak level the sim sleeps
	LowPerformance    bool    // Halve the update stride on weak hosts
}

// DefaultWater returns the default water simulation configuration.
func DefaultWater() WaterConfig {
	return WaterConfig{
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

// WaterFromEnv returns water configuration with environment variable overrides.
func WaterFromEnv() WaterConfig {
	cfg := DefaultWater()

	if c := getEnvInt("WATER_COLS", 0); c > 0 {
		cfg.Cols = c
	}
	if r := getEnvInt("WATER_ROWS", 0); r > 0 {
		cfg.Rows = r
	}
	if f := getEnvFloat("WATER_FLOW_RATE", -1); f > 0 {
		cfg.FlowRate = f
	}
	if e := getEnvFloat("WATER_EVAPORATION", -1); e > 0 {
		cfg.EvaporationRate = e
	}
	if os.Getenv("LOW_PERFORMANCE") == "true" {
		cfg.LowPerformance = true
	}

	return cfg
}

// =============================================================================
// RESOURCE LIMITS
// =============================================================================

// ResourceLimits controls DoS protection and performance limits.
type ResourceLimits struct {
	MaxCreatures         int // Hard cap on spawned creatures
	MaxSnapshotCreatures int // Per-snapshot creature limit
	MaxResolution        int // Hard cap on field tessellation
	MaxBrushRadius       float64
	MaxBrushStrength     float64
	MaxQueryRadius       float64
}

// DefaultLimits returns the default resource limits.
func DefaultLimits() ResourceLimits {
	return ResourceLimits{
		MaxCreatures:         200,
		MaxSnapshotCreatures: 200,
		MaxResolution:        512,
		MaxBrushRadius:       6.0,
		MaxBrushStrength:     1.0,
		MaxQueryRadius:       12.0,
	}
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int
	EventLogPath string // Empty disables the JSONL event log
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:         3000,
		EventLogPath: "",
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if path := os.Getenv("EVENT_LOG_PATH"); path != "" {
		cfg.EventLogPath = path
	}

	return cfg
}

// =============================================================================
// SPATIAL CONFIGURATION
// =============================================================================

// SpatialConfig holds spatial indexing settings.
type SpatialConfig struct {
	CellSize float64 // Spatial grid cell size in world units
}

// DefaultSpatial returns the default spatial configuration.
func DefaultSpatial() SpatialConfig {
	return SpatialConfig{
		CellSize: 0.5,
	}
}

// SpatialFromEnv returns spatial configuration with environment variable overrides.
func SpatialFromEnv() SpatialConfig {
	cfg := DefaultSpatial()

	if c := getEnvFloat("SPATIAL_CELL_SIZE", -1); c > 0 {
		cfg.CellSize = c
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Terrain TerrainConfig
	Water   WaterConfig
	Server  ServerConfig
	Limits  ResourceLimits
	Spatial SpatialConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Terrain: TerrainFromEnv(),
		Water:   WaterFromEnv(),
		Server:  ServerFromEnv(),
		Limits:  DefaultLimits(),
		Spatial: SpatialFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
