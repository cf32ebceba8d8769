package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds everything the friends app can be tuned with.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
	UI      UIConfig      `yaml:"ui"`
	Seed    SeedConfig    `yaml:"seed"`
}

// StorageConfig picks where the feed is persisted.
type StorageConfig struct {
	Backend    string `yaml:"backend"`     // json, sqlite, memory
	Dir        string `yaml:"dir"`         // data directory
	SQLitePath string `yaml:"sqlite_path"` // defaults to <dir>/friends.db
	Key        string `yaml:"key"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
	File   string `yaml:"file"`   // empty = stderr
}

type UIConfig struct {
	Theme string `yaml:"theme"` // classic, neon, mono
}

// SeedConfig optionally points at a YAML feed used instead of the built-in one.
type SeedConfig struct {
	File string `yaml:"file"`
}

const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

var themes = map[string]bool{"classic": true, "neon": true, "mono": true}

// DefaultConfig is what runs when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: BackendJSON,
			Dir:     defaultDataDir(),
			Key:     "friends",
		},
		Logging: LoggingConfig{Level: "info", Format: "console"},
		UI:      UIConfig{Theme: "classic"},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".friends"
	}
	return filepath.Join(home, ".friends")
}

// DefaultPath is $FRIENDS_CONFIG or <user config dir>/friends/config.yaml.
func DefaultPath() string {
	if p := strings.TrimSpace(os.Getenv("FRIENDS_CONFIG")); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "friends", "config.yaml")
}

// Load reads path over the defaults, then applies env overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(b, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	cfg.applyEnv()
	cfg.fillDerived()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	set := func(dst *string, name string) {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			*dst = v
		}
	}
	set(&c.Storage.Backend, "FRIENDS_STORAGE")
	set(&c.Storage.Dir, "FRIENDS_DATA_DIR")
	set(&c.Storage.Key, "FRIENDS_KEY")
	set(&c.Logging.Level, "FRIENDS_LOG_LEVEL")
	set(&c.UI.Theme, "FRIENDS_THEME")
}

func (c *Config) fillDerived() {
	c.Storage.Backend = strings.ToLower(c.Storage.Backend)
	c.UI.Theme = strings.ToLower(c.UI.Theme)
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = filepath.Join(c.Storage.Dir, "friends.db")
	}
}

// Validate rejects values nothing downstream understands.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendJSON, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend %q (want json, sqlite or memory)", c.Storage.Backend)
	}
	if c.Storage.Backend != BackendMemory && c.Storage.Dir == "" {
		return fmt.Errorf("storage dir is empty")
	}
	if strings.TrimSpace(c.Storage.Key) == "" {
		return fmt.Errorf("storage key is empty")
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging level: %w", err)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unknown logging format %q", c.Logging.Format)
	}
	if !themes[c.UI.Theme] {
		return fmt.Errorf("unknown theme %q", c.UI.Theme)
	}
	return nil
}

// Save writes the config as YAML, creating the directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("yaml marshal: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
