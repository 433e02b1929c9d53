package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  name: "jarvis"
llm:
  provider: "gemini"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Orchestrator.RouterThreshold != 0.75 {
		t.Errorf("routerThreshold = %v, expected the 0.75 default", cfg.Orchestrator.RouterThreshold)
	}
	if cfg.Orchestrator.CacheTTLEmail != 60 {
		t.Errorf("cacheTTLEmail = %d, expected 60", cfg.Orchestrator.CacheTTLEmail)
	}
	if cfg.Worker.StaleTimeoutMinutes != 30 {
		t.Errorf("staleTimeoutMinutes = %d, expected 30", cfg.Worker.StaleTimeoutMinutes)
	}
	if cfg.Logger.Level != "info" {
		t.Errorf("logger level = %q, expected info", cfg.Logger.Level)
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
orchestrator:
  routerThreshold: 0.9
  cacheTTLWeb: 120
worker:
  workerID: "w-test"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Orchestrator.RouterThreshold != 0.9 {
		t.Errorf("routerThreshold = %v", cfg.Orchestrator.RouterThreshold)
	}
	if cfg.Orchestrator.CacheTTLWeb != 120 {
		t.Errorf("cacheTTLWeb = %d", cfg.Orchestrator.CacheTTLWeb)
	}
	// untouched defaults survive partial overrides
	if cfg.Orchestrator.PlannerMaxSteps != 3 {
		t.Errorf("plannerMaxSteps = %d, expected 3", cfg.Orchestrator.PlannerMaxSteps)
	}
	if cfg.Worker.WorkerID != "w-test" {
		t.Errorf("workerID = %q", cfg.Worker.WorkerID)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadConfig() succeeded on a missing file")
	}
}
