package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("OCR_POLL_INTERVAL", "")
	t.Setenv("OCR_MAX_POLL_ATTEMPTS", "")
	t.Setenv("OBJECT_STORE", "")

	cfg := Load()
	if cfg.Env != "dev" {
		t.Fatalf("expected env dev, got %q", cfg.Env)
	}
	if cfg.OCRPollInterval != 3*time.Second {
		t.Fatalf("expected 3s poll interval, got %s", cfg.OCRPollInterval)
	}
	if cfg.OCRMaxPollAttempts != 60 {
		t.Fatalf("expected 60 attempts, got %d", cfg.OCRMaxPollAttempts)
	}
	if cfg.ObjectStoreType != "local" {
		t.Fatalf("expected local store, got %q", cfg.ObjectStoreType)
	}
}

func TestLoadYAMLOverlayDoesNotOverrideEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "OCR_MAX_POLL_ATTEMPTS: 10\nOBJECT_STORE: minio\nCORS_ALLOW_ORIGINS:\n  - http://a.test\n  - http://b.test\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("OBJECT_STORE", "s3")
	// Registered so the overlay's os.Setenv calls are restored after the test.
	t.Setenv("OCR_MAX_POLL_ATTEMPTS", "")
	t.Setenv("CORS_ALLOW_ORIGINS", "")
	os.Unsetenv("OCR_MAX_POLL_ATTEMPTS")
	os.Unsetenv("CORS_ALLOW_ORIGINS")

	cfg := Load()
	if cfg.OCRMaxPollAttempts != 10 {
		t.Fatalf("expected yaml attempts 10, got %d", cfg.OCRMaxPollAttempts)
	}
	if cfg.ObjectStoreType != "s3" {
		t.Fatalf("expected env to win, got %q", cfg.ObjectStoreType)
	}
	if len(cfg.CORSAllowOrigin) != 2 || cfg.CORSAllowOrigin[1] != "http://b.test" {
		t.Fatalf("unexpected origins: %v", cfg.CORSAllowOrigin)
	}
}

func TestNormalizeEnv(t *testing.T) {
	t.Parallel()
	cases := map[string]string{"prod": "production", "Staging": "staging", "": "dev", "local": "local"}
	for in, want := range cases {
		if got := normalizeEnv(in); got != want {
			t.Fatalf("normalizeEnv(%q) = %q, want %q", in, got, want)
		}
	}
}
