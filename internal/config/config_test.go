package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.RoundTimeLimit() != 30*time.Minute {
		t.Errorf("round limit = %v, want 30m", cfg.RoundTimeLimit())
	}
	if cfg.RemoteUTCOffsetMinutes != 330 || cfg.SyncQueueSize != 256 {
		t.Errorf("offset/queue = %d/%d", cfg.RemoteUTCOffsetMinutes, cfg.SyncQueueSize)
	}
	if cfg.AdminUser != "admin" || cfg.AdminPasswordHash != "" {
		t.Errorf("admin = %q/%q, want admin with no hash", cfg.AdminUser, cfg.AdminPasswordHash)
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("ROUND_TIME_LIMIT", "45")
	t.Setenv("CORS_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("ADMIN_PASSWORD_HASH", "$2a$10$hash")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RoundTimeLimit() != 45*time.Minute {
		t.Errorf("round limit = %v, want 45m", cfg.RoundTimeLimit())
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.test" {
		t.Errorf("cors origins = %v", cfg.CORSOrigins)
	}
	if cfg.AdminPasswordHash != "$2a$10$hash" {
		t.Errorf("admin hash = %q", cfg.AdminPasswordHash)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("SYNC_QUEUE_SIZE=8\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SYNC_QUEUE_SIZE", "")
	os.Unsetenv("SYNC_QUEUE_SIZE")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SyncQueueSize != 8 {
		t.Errorf("queue size = %d, want 8", cfg.SyncQueueSize)
	}
}

func TestLoadRejectsBadLimit(t *testing.T) {
	t.Setenv("ROUND_TIME_LIMIT", "0")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("expected error for zero round limit")
	}
}

func TestLoadSeedDemoNeedsPassword(t *testing.T) {
	t.Setenv("SEED_DEMO", "true")
	t.Setenv("DEMO_PASSWORD", "")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatal("expected error for SEED_DEMO without DEMO_PASSWORD")
	}

	t.Setenv("DEMO_PASSWORD", "open-sesame")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.SeedDemo || cfg.DemoPassword != "open-sesame" {
		t.Errorf("seed = %v, password = %q", cfg.SeedDemo, cfg.DemoPassword)
	}
}
