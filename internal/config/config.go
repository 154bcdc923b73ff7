// Package config loads and validates tillsync configuration.
//
// Precedence, lowest to highest: built-in defaults, the YAML config file,
// TILLSYNC_* environment variables. The merged result is validated against
// an embedded CUE schema; constraint violations fail startup with the
// offending path in the message.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Config is the full runtime configuration.
type Config struct {
	DBPath   string         `yaml:"db_path" json:"db_path"`
	Register RegisterConfig `yaml:"register" json:"register"`
	Backend  BackendConfig  `yaml:"backend" json:"backend"`
	Sync     SyncConfig     `yaml:"sync" json:"sync"`
	API      APIConfig      `yaml:"api" json:"api"`
	Log      LogConfig      `yaml:"log" json:"log"`
}

// RegisterConfig identifies this till within the fleet.
type RegisterConfig struct {
	RegisterID string `yaml:"register_id" json:"register_id"`
	StoreID    string `yaml:"store_id" json:"store_id"`
	LocationID string `yaml:"location_id" json:"location_id"`
}

// BackendConfig points at the remote POS backend.
type BackendConfig struct {
	BaseURL        string `yaml:"base_url" json:"base_url"`
	APIKey         string `yaml:"api_key" json:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// SyncConfig tunes the drain scheduler and retry schedule.
type SyncConfig struct {
	IntervalSeconds    int `yaml:"interval_seconds" json:"interval_seconds"`
	MaxAttempts        int `yaml:"max_attempts" json:"max_attempts"`
	BackoffBaseSeconds int `yaml:"backoff_base_seconds" json:"backoff_base_seconds"`
	BackoffMaxSeconds  int `yaml:"backoff_max_seconds" json:"backoff_max_seconds"`
	LockStaleSeconds   int `yaml:"lock_stale_seconds" json:"lock_stale_seconds"`
}

// APIConfig configures the localhost HTTP API served by `tillsync serve`.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DBPath: "tillsync.db",
		Backend: BackendConfig{
			TimeoutSeconds: 10,
		},
		Sync: SyncConfig{
			IntervalSeconds:    900,
			MaxAttempts:        8,
			BackoffBaseSeconds: 2,
			BackoffMaxSeconds:  300,
			LockStaleSeconds:   120,
		},
		API: APIConfig{
			ListenAddr: "127.0.0.1:7373",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if it
// exists; pass "" to skip), and environment overrides, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overlays TILLSYNC_* variables. Only string-valued settings are
// overridable this way; numeric tuning belongs in the file.
func applyEnv(cfg *Config) {
	set := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set("TILLSYNC_DB_PATH", &cfg.DBPath)
	set("TILLSYNC_REGISTER_ID", &cfg.Register.RegisterID)
	set("TILLSYNC_STORE_ID", &cfg.Register.StoreID)
	set("TILLSYNC_LOCATION_ID", &cfg.Register.LocationID)
	set("TILLSYNC_BACKEND_URL", &cfg.Backend.BaseURL)
	set("TILLSYNC_API_KEY", &cfg.Backend.APIKey)
	set("TILLSYNC_LISTEN_ADDR", &cfg.API.ListenAddr)
	set("TILLSYNC_LOG_LEVEL", &cfg.Log.Level)
}

// Validate checks the configuration against the embedded CUE schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("lookup config schema: %w", err)
	}

	val := ctx.Encode(c)
	if err := val.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := def.Unify(val).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// BackendTimeout returns the per-attempt dispatch timeout.
func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// SyncInterval returns the periodic drain cadence.
func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.Sync.IntervalSeconds) * time.Second
}

// BackoffBase returns the initial retry delay.
func (c *Config) BackoffBase() time.Duration {
	return time.Duration(c.Sync.BackoffBaseSeconds) * time.Second
}

// BackoffMax returns the retry delay cap.
func (c *Config) BackoffMax() time.Duration {
	return time.Duration(c.Sync.BackoffMaxSeconds) * time.Second
}

// LockStaleAfter returns how long a drain lock claim stays valid.
func (c *Config) LockStaleAfter() time.Duration {
	return time.Duration(c.Sync.LockStaleSeconds) * time.Second
}
