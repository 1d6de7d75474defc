// Package config loads board settings from defaults, an optional YAML file,
// an optional .env file and TASKBOARD_* environment variables, in that
// order of precedence (later wins).
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/ldi/taskboard/internal/storage"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Dir is the per-project directory holding the database and config.
const Dir = ".taskboard"

type Config struct {
	Backend      string `yaml:"backend"`
	DBPath       string `yaml:"db_path"`
	FileDir      string `yaml:"file_dir"`
	RedisURL     string `yaml:"redis_url"`
	RedisPrefix  string `yaml:"redis_prefix"`
	SlotKey      string `yaml:"slot_key"`
	SnapshotPath string `yaml:"snapshot_path"`
	Port         string `yaml:"port"`
	LogLevel     string `yaml:"log_level"`
}

func DefaultConfig() *Config {
	return &Config{
		Backend:     BackendSQLite,
		DBPath:      filepath.Join(Dir, "taskboard.db"),
		FileDir:     filepath.Join(Dir, "slots"),
		RedisPrefix: "taskboard:",
		SlotKey:     "tasks",
		Port:        "8000",
		LogLevel:    "info",
	}
}

// ConfigPath returns the YAML config location inside dir.
func ConfigPath(dir string) string {
	return filepath.Join(dir, Dir, "config.yaml")
}

// Load reads configuration rooted at dir. Missing files are not errors.
func Load(dir string) (*Config, error) {
	cfg := DefaultConfig()

	if err := loadFile(ConfigPath(dir), cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	envPath := filepath.Join(dir, ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
	}
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	set := func(name string, dst *string) {
		if v, ok := os.LookupEnv("TASKBOARD_" + name); ok && v != "" {
			*dst = v
		}
	}
	set("BACKEND", &cfg.Backend)
	set("DB_PATH", &cfg.DBPath)
	set("FILE_DIR", &cfg.FileDir)
	set("REDIS_URL", &cfg.RedisURL)
	set("REDIS_PREFIX", &cfg.RedisPrefix)
	set("SLOT_KEY", &cfg.SlotKey)
	set("SNAPSHOT_PATH", &cfg.SnapshotPath)
	set("PORT", &cfg.Port)
	set("LOG_LEVEL", &cfg.LogLevel)
}

func (c *Config) Validate() error {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	switch c.Backend {
	case BackendSQLite, BackendFile:
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("redis backend requires redis_url")
		}
	default:
		return fmt.Errorf("unknown backend: %q", c.Backend)
	}
	if c.SlotKey == "" {
		return fmt.Errorf("slot_key must not be empty")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	return nil
}

// Level returns the parsed log level; Validate has already checked it.
func (c *Config) Level() log.Level {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// WriteDefault writes a commented default config file.
func WriteDefault(path string) error {
	content := `# taskboard configuration
# backend: sqlite | file | redis
backend: sqlite
db_path: .taskboard/taskboard.db
# file_dir: .taskboard/slots
# redis_url: redis://localhost:6379/0
# redis_prefix: "taskboard:"
slot_key: tasks
# snapshot_path: .taskboard/tasks.json
port: "8000"
log_level: info
`
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(content), 0644)
}

// OpenStore opens the storage backend selected by the config. Relative
// paths are resolved against dir.
func (c *Config) OpenStore(ctx context.Context, dir string) (storage.Store, error) {
	switch c.Backend {
	case BackendFile:
		st, err := storage.NewFileStore(resolve(dir, c.FileDir))
		if err != nil {
			return nil, err
		}
		return st, nil
	case BackendRedis:
		st, err := storage.OpenRedis(ctx, c.RedisURL, c.RedisPrefix)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		st, err := storage.OpenSQLite(ctx, resolve(dir, c.DBPath))
		if err != nil {
			return nil, err
		}
		return st, nil
	}
}

func resolve(dir, path string) string {
	if path == ":memory:" || filepath.IsAbs(path) || dir == "" {
		return path
	}
	return filepath.Join(dir, path)
}
