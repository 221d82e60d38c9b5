package config_test

import (
	"testing"

	"github.com/repolens-dev/repolens/internal/config"
)

func TestReadWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Backend.URL = "http://localhost:9999"
	cfg.Storage.Backend = "sqlite"
	cfg.Mirror.Enabled = false

	if err := config.WriteConfig(dir, cfg); err != nil {
		t.Fatalf("WriteConfig failed: %v", err)
	}

	got, err := config.ReadConfig(dir)
	if err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}
	if got.Version != cfg.Version {
		t.Errorf("Version = %d, want %d", got.Version, cfg.Version)
	}
	if got.Backend.URL != "http://localhost:9999" {
		t.Errorf("Backend.URL = %q", got.Backend.URL)
	}
	if got.Storage.Backend != "sqlite" {
		t.Errorf("Storage.Backend = %q", got.Storage.Backend)
	}
	if got.Mirror.Enabled {
		t.Error("Mirror.Enabled = true, want false")
	}
}

func TestReadConfigMissing(t *testing.T) {
	if _, err := config.ReadConfig(t.TempDir()); err == nil {
		t.Error("ReadConfig of an empty dir succeeded")
	}
}

func TestLoadDefaultsWhenMissing(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backend.URL != "http://127.0.0.1:5000" {
		t.Errorf("Backend.URL = %q, want default", cfg.Backend.URL)
	}
	if cfg.Backend.TimeoutSeconds != 300 || cfg.Backend.RetryMax != 3 {
		t.Errorf("Backend = %+v, want defaults", cfg.Backend)
	}
	if cfg.Storage.Backend != "file" {
		t.Errorf("Storage.Backend = %q, want file", cfg.Storage.Backend)
	}
	if !cfg.Mirror.Enabled {
		t.Error("Mirror.Enabled = false, want true by default")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	if err := config.WriteConfig(dir, config.DefaultConfig()); err != nil {
		t.Fatalf("WriteConfig failed: %v", err)
	}

	t.Setenv("REPOLENS_BACKEND_URL", "http://override:8080")
	t.Setenv("REPOLENS_STORAGE_BACKEND", "sqlite")

	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backend.URL != "http://override:8080" {
		t.Errorf("Backend.URL = %q, want env override", cfg.Backend.URL)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("Storage.Backend = %q, want env override", cfg.Storage.Backend)
	}
	// Values without overrides keep the file's settings.
	if cfg.Backend.TimeoutSeconds != 300 {
		t.Errorf("Backend.TimeoutSeconds = %d, want 300", cfg.Backend.TimeoutSeconds)
	}
}

func TestDirHonorsHomeOverride(t *testing.T) {
	t.Setenv("REPOLENS_HOME", "/tmp/custom-repolens")

	dir, err := config.Dir()
	if err != nil {
		t.Fatalf("Dir failed: %v", err)
	}
	if dir != "/tmp/custom-repolens" {
		t.Errorf("Dir = %q, want /tmp/custom-repolens", dir)
	}
}
