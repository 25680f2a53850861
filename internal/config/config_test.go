package config

import "testing"

// TestTerrainDefaults tests the production defaults
func TestTerrainDefaults(t *testing.T) {
	cfg := DefaultTerrain()
	if cfg.Resolution != 128 {
		t.Errorf("Expected resolution 128, got %d", cfg.Resolution)
	}
	if cfg.TickRate != 30 {
		t.Errorf("Expected 30 TPS, got %d", cfg.TickRate)
	}
	if cfg.Seed != 0 {
		t.Errorf("Expected seed 0 (time-based downstream), got %d", cfg.Seed)
	}
}

// TestTerrainEnvOverrides tests environment variable precedence
func TestTerrainEnvOverrides(t *testing.T) {
	t.Setenv("TERRAIN_RESOLUTION", "64")
	t.Setenv("TICK_RATE", "60")
	t.Setenv("SEED", "12345")

	cfg := TerrainFromEnv()
	if cfg.Resolution != 64 {
		t.Errorf("Expected resolution 64, got %d", cfg.Resolution)
	}
	if cfg.TickRate != 60 {
		t.Errorf("Expected 60 TPS, got %d", cfg.TickRate)
	}
	if cfg.Seed != 12345 {
		t.Errorf("Expected seed 12345, got %d", cfg.Seed)
	}
}

// TestSeedEnvIgnoresGarbage tests that a malformed SEED keeps the default
func TestSeedEnvIgnoresGarbage(t *testing.T) {
	t.Setenv("SEED", "not-a-number")

	cfg := TerrainFromEnv()
	if cfg.Seed != 0 {
		t.Errorf("Expected malformed SEED to be ignored, got %d", cfg.Seed)
	}
}
