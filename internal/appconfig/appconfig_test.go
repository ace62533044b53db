package appconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("Load of missing file = %+v, want Default()", cfg)
	}
}

func TestStoreThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tonwalk.toml")
	cfg := Default()
	cfg.LogLevel = "debug"
	cfg.ControlDialAddr = "10.0.0.5:3030"

	if err := Store(path, cfg); err != nil {
		t.Fatalf("Store: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reloaded != cfg {
		t.Fatalf("reloaded = %+v, want %+v", reloaded, cfg)
	}
}

func TestLoadOverlaysPartialFileOnDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tonwalk.toml")
	// Only one field set; the rest should come from Default().
	content := []byte("log_level = \"warn\"\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write partial config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("LogLevel = %q, want %q", cfg.LogLevel, "warn")
	}
	if cfg.DataDir != Default().DataDir {
		t.Fatalf("DataDir = %q, want default %q", cfg.DataDir, Default().DataDir)
	}
}
