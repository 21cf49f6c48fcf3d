package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoader_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.App.Name != "personacore" {
		t.Errorf("expected default app name, got %s", cfg.App.Name)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
}

func TestLoader_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `app:
  name: file-app
server:
  port: 9000
storage:
  type: memory
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.App.Name != "file-app" {
		t.Errorf("expected app name 'file-app', got %s", cfg.App.Name)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("expected storage type 'memory', got %s", cfg.Storage.Type)
	}
	// Untouched keys keep their defaults.
	if cfg.Log.Level != "info" {
		t.Errorf("expected default log level, got %s", cfg.Log.Level)
	}
}

func TestLoader_JSONFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{"app": {"name": "json-app"}, "log": {"level": "debug"}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.App.Name != "json-app" {
		t.Errorf("expected app name 'json-app', got %s", cfg.App.Name)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Log.Level)
	}
}

func TestLoader_UnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("x = 1"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := Load(path, nil); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestLoader_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoader_EnvOverrides(t *testing.T) {
	t.Setenv("PERSONACORE_SERVER__PORT", "9999")
	t.Setenv("PERSONACORE_LOG__LEVEL", "warn")
	t.Setenv("PERSONACORE_SERVER__RATE_LIMIT", "25")

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("expected env port 9999, got %d", cfg.Server.Port)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("expected env log level 'warn', got %s", cfg.Log.Level)
	}
	if cfg.Server.RateLimit != 25 {
		t.Errorf("expected env rate limit 25, got %f", cfg.Server.RateLimit)
	}
}

func TestLoader_OverridesBeatEnv(t *testing.T) {
	t.Setenv("PERSONACORE_SERVER__PORT", "9999")

	cfg, err := Load("", map[string]interface{}{"server.port": 7777})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 7777 {
		t.Errorf("expected override port 7777, got %d", cfg.Server.Port)
	}
}

func TestLoader_InvalidConfigRejected(t *testing.T) {
	_, err := Load("", map[string]interface{}{"log.level": "trace"})
	if err == nil {
		t.Fatal("expected validation error for bad log level")
	}
	if _, ok := err.(ValidationErrors); !ok {
		t.Errorf("expected ValidationErrors, got %T", err)
	}
}

func TestLoader_GetSet(t *testing.T) {
	loader := NewLoader()
	if _, err := loader.Load("", nil); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if val := loader.Get("app.name"); val == nil {
		t.Error("expected non-nil value for app.name")
	}

	if err := loader.Set("app.name", "custom"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if got := loader.Get("app.name"); got != "custom" {
		t.Errorf("expected 'custom', got %v", got)
	}
}
