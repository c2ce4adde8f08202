package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.ListenAddr != ":3000" {
		t.Errorf("expected listen addr ':3000', got %q", cfg.ListenAddr)
	}
	if cfg.HistoryLimit != 100 {
		t.Errorf("expected history limit 100, got %d", cfg.HistoryLimit)
	}
	if cfg.RefreshInterval.Std() != 5*time.Second {
		t.Errorf("expected refresh interval 5s, got %v", cfg.RefreshInterval.Std())
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
listen_addr: ":9090"
allowed_origin: "http://example.com"
users_file: "accounts.txt"
refresh_interval: 10s
history_limit: 50
redis_addr: "localhost:6379"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Errorf("expected listen addr ':9090', got %q", cfg.ListenAddr)
	}
	if cfg.AllowedOrigin != "http://example.com" {
		t.Errorf("expected origin 'http://example.com', got %q", cfg.AllowedOrigin)
	}
	if cfg.UsersFile != "accounts.txt" {
		t.Errorf("expected users file 'accounts.txt', got %q", cfg.UsersFile)
	}
	if cfg.RefreshInterval.Std() != 10*time.Second {
		t.Errorf("expected refresh interval 10s, got %v", cfg.RefreshInterval.Std())
	}
	if cfg.HistoryLimit != 50 {
		t.Errorf("expected history limit 50, got %d", cfg.HistoryLimit)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("expected redis addr 'localhost:6379', got %q", cfg.RedisAddr)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `listen_addr: ":9090"`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Errorf("expected listen addr ':9090', got %q", cfg.ListenAddr)
	}
	if cfg.UsersFile != "users.txt" {
		t.Errorf("expected default users file, got %q", cfg.UsersFile)
	}
	if cfg.HistoryLimit != 100 {
		t.Errorf("expected default history limit, got %d", cfg.HistoryLimit)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	path := writeConfig(t, `refresh_interval: "often"`)
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty listen addr", `listen_addr: ""`},
		{"empty users file", `users_file: ""`},
		{"zero history limit", `history_limit: 0`},
		{"negative refresh interval", `refresh_interval: -1s`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := Load(path); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":8888")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg := Default()
	cfg.ApplyEnv()

	if cfg.ListenAddr != ":8888" {
		t.Errorf("expected listen addr ':8888', got %q", cfg.ListenAddr)
	}
	if cfg.RedisAddr != "redis:6379" {
		t.Errorf("expected redis addr 'redis:6379', got %q", cfg.RedisAddr)
	}
	// Unset variables leave defaults alone.
	if cfg.UsersFile != "users.txt" {
		t.Errorf("expected default users file, got %q", cfg.UsersFile)
	}
}
