package config

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Downloads.Parallelism != 2 {
		t.Errorf("Parallelism = %d, want 2", cfg.Downloads.Parallelism)
	}
	if cfg.Downloads.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.Downloads.MaxRetries)
	}
	if cfg.Downloads.RetryBaseMS != 500 {
		t.Errorf("RetryBaseMS = %d, want 500", cfg.Downloads.RetryBaseMS)
	}
	if cfg.Disk.WarnFreeGB != 10 || cfg.Disk.LowFreeGB != 50 || cfg.Disk.WarnUsedPercent != 90 {
		t.Errorf("Disk thresholds = %+v, want 10/50/90", cfg.Disk)
	}
	if cfg.Security.InsecureSkipTLSVerify {
		t.Error("TLS verification disabled by default")
	}
	if len(cfg.Features) != 2 || cfg.Features[0] != "backup" || cfg.Features[1] != "sweep" {
		t.Errorf("Features = %v, want [backup sweep]", cfg.Features)
	}
	if cfg.Paths.Models == "" || cfg.Paths.Backup == "" || cfg.Paths.Catalog == "" {
		t.Errorf("Paths has empty entries: %+v", cfg.Paths)
	}
}

func TestConfigYAMLRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Paths.Models = "/srv/models"
	cfg.Downloads.Parallelism = 4
	cfg.Security.InsecureSkipTLSVerify = true
	cfg.Features = []string{"backup"}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}

	var got Config
	if err := yaml.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Paths.Models != "/srv/models" {
		t.Errorf("Paths.Models = %q", got.Paths.Models)
	}
	if got.Downloads.Parallelism != 4 {
		t.Errorf("Parallelism = %d, want 4", got.Downloads.Parallelism)
	}
	if !got.Security.InsecureSkipTLSVerify {
		t.Error("Security.InsecureSkipTLSVerify lost in round trip")
	}
	if len(got.Features) != 1 || got.Features[0] != "backup" {
		t.Errorf("Features = %v, want [backup]", got.Features)
	}
}

func TestPartialConfigKeepsDefaults(t *testing.T) {
	cfg := DefaultConfig()
	partial := []byte("downloads:\n  parallelism: 8\n")
	if err := yaml.Unmarshal(partial, cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Downloads.Parallelism != 8 {
		t.Errorf("Parallelism = %d, want 8", cfg.Downloads.Parallelism)
	}
	if cfg.Disk.WarnFreeGB != 10 {
		t.Errorf("WarnFreeGB = %d, want default 10 untouched", cfg.Disk.WarnFreeGB)
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{}
	cfg.Paths.Models = filepath.Join(dir, "models")
	cfg.Paths.Backup = filepath.Join(dir, "backup")

	if err := EnsureDirectories(cfg); err != nil {
		t.Fatalf("EnsureDirectories() error = %v", err)
	}
	for _, p := range []string{cfg.Paths.Models, cfg.Paths.Backup} {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			t.Errorf("%s not created as a directory: %v", p, err)
		}
	}

	// Idempotent on existing directories.
	if err := EnsureDirectories(cfg); err != nil {
		t.Errorf("second EnsureDirectories() error = %v", err)
	}
}
