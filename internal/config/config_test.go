package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	log "github.com/sirupsen/logrus"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"BACKEND", "DB_PATH", "FILE_DIR", "REDIS_URL", "REDIS_PREFIX", "SLOT_KEY", "SNAPSHOT_PATH", "PORT", "LOG_LEVEL"} {
		key := "TASKBOARD_" + name
		if v, ok := os.LookupEnv(key); ok {
			os.Unsetenv(key)
			t.Cleanup(func() { os.Setenv(key, v) })
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if *cfg != *DefaultConfig() {
		t.Errorf("Expected defaults, got %+v", cfg)
	}
	if cfg.Level() != log.InfoLevel {
		t.Errorf("Expected info level, got %v", cfg.Level())
	}
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := ConfigPath(dir)
	os.MkdirAll(filepath.Dir(path), 0755)
	content := "backend: file\nfile_dir: data\nport: \"9000\"\nlog_level: debug\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backend != BackendFile || cfg.FileDir != "data" || cfg.Port != "9000" {
		t.Errorf("YAML not applied: %+v", cfg)
	}
	if cfg.SlotKey != "tasks" {
		t.Errorf("Expected unset fields to keep defaults, got slot key %q", cfg.SlotKey)
	}
	if cfg.Level() != log.DebugLevel {
		t.Errorf("Expected debug level, got %v", cfg.Level())
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := ConfigPath(dir)
	os.MkdirAll(filepath.Dir(path), 0755)
	os.WriteFile(path, []byte("port: \"9000\"\n"), 0644)
	t.Setenv("TASKBOARD_PORT", "9100")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "9100" {
		t.Errorf("Expected env port 9100, got %s", cfg.Port)
	}
}

func TestDotEnvFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, ".env"), []byte("TASKBOARD_SLOT_KEY=board\n"), 0644)
	// godotenv sets process env; restore it after the test.
	t.Cleanup(func() { os.Unsetenv("TASKBOARD_SLOT_KEY") })

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SlotKey != "board" {
		t.Errorf("Expected slot key from .env, got %q", cfg.SlotKey)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Backend = "mongo" }},
		{"redis without url", func(c *Config) { c.Backend = BackendRedis }},
		{"empty slot key", func(c *Config) { c.SlotKey = "" }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mod(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}

	cfg := DefaultConfig()
	cfg.Backend = " SQLite "
	if err := cfg.Validate(); err != nil || cfg.Backend != BackendSQLite {
		t.Errorf("Expected normalized backend, got %q, %v", cfg.Backend, err)
	}
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("sqlite", func(t *testing.T) {
		cfg := DefaultConfig()
		st, err := cfg.OpenStore(ctx, dir)
		if err != nil {
			t.Fatalf("OpenStore failed: %v", err)
		}
		defer st.Close()
		if _, err := os.Stat(filepath.Join(dir, cfg.DBPath)); err != nil {
			t.Errorf("Expected database under dir: %v", err)
		}
	})

	t.Run("file", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Backend = BackendFile
		st, err := cfg.OpenStore(ctx, dir)
		if err != nil {
			t.Fatalf("OpenStore failed: %v", err)
		}
		defer st.Close()
		if err := st.Save(ctx, "tasks", []byte("[]")); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, cfg.FileDir, "tasks.json")); err != nil {
			t.Errorf("Expected slot file: %v", err)
		}
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := DefaultConfig()
		cfg.Backend = BackendRedis
		cfg.RedisURL = "redis://" + mr.Addr()
		st, err := cfg.OpenStore(ctx, dir)
		if err != nil {
			t.Fatalf("OpenStore failed: %v", err)
		}
		defer st.Close()
		if err := st.Save(ctx, "tasks", []byte("[]")); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if got, _ := mr.Get("taskboard:tasks"); got != "[]" {
			t.Errorf("Expected prefixed key in redis, got %q", got)
		}
	})
}

func TestWriteDefault(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	if err := WriteDefault(ConfigPath(dir)); err != nil {
		t.Fatalf("WriteDefault failed: %v", err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load of written default failed: %v", err)
	}
	if *cfg != *DefaultConfig() {
		t.Errorf("Written default differs from DefaultConfig: %+v", cfg)
	}
}
