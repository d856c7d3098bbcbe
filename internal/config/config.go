// Package config loads citycycle.yaml.
//
// Loading applies defaults, then the file, then environment overrides, and
// finally validates the result against the embedded CUE schema
// (schema.cue) followed by the semantic checks CUE cannot express.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/citycycle/internal/arc"
	"github.com/roach88/citycycle/internal/cooldown"
	"github.com/roach88/citycycle/internal/hook"
	"github.com/roach88/citycycle/internal/ledger"
)

// DefaultPath is the config file the CLI looks for in the working directory.
const DefaultPath = "citycycle.yaml"

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Config is the top-level citycycle.yaml.
type Config struct {
	Version     string            `yaml:"version" json:"version"`
	Store       StoreConfig       `yaml:"store" json:"store"`
	Collections CollectionsConfig `yaml:"collections" json:"collections"`
	Arcs        ArcsConfig        `yaml:"arcs" json:"arcs"`
	Hooks       HooksConfig       `yaml:"hooks" json:"hooks"`
	Cooldowns   CooldownsConfig   `yaml:"cooldowns" json:"cooldowns"`
	Executor    ExecutorConfig    `yaml:"executor" json:"executor"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
}

// StoreConfig selects and configures the table store.
type StoreConfig struct {
	Driver string      `yaml:"driver" json:"driver"`
	Path   string      `yaml:"path,omitempty" json:"path,omitempty"`
	Redis  RedisConfig `yaml:"redis,omitempty" json:"redis"`
}

// RedisConfig configures the Redis store.
type RedisConfig struct {
	Addr      string `yaml:"addr,omitempty" json:"addr,omitempty"`
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	DB        int    `yaml:"db,omitempty" json:"db,omitempty"`

	// Password is never written to logs or the validated document.
	Password string `yaml:"password,omitempty" json:"-"`
}

// CollectionsConfig names the stored collections.
type CollectionsConfig struct {
	ArcLedger   string `yaml:"arc_ledger" json:"arc_ledger"`
	Hooks       string `yaml:"hooks" json:"hooks"`
	HookArchive string `yaml:"hook_archive" json:"hook_archive"`
	Cooldowns   string `yaml:"cooldowns" json:"cooldowns"`
	CycleLog    string `yaml:"cycle_log" json:"cycle_log"`
}

// ArcsConfig holds the arc phase thresholds.
type ArcsConfig struct {
	Thresholds arc.Thresholds               `yaml:"thresholds" json:"thresholds"`
	ByType     map[string]ThresholdOverride `yaml:"by_type,omitempty" json:"by_type,omitempty"`
}

// ThresholdOverride replaces selected default thresholds for one arc type.
type ThresholdOverride struct {
	RisingAt     *float64 `yaml:"rising_at,omitempty" json:"rising_at,omitempty"`
	PeakAt       *float64 `yaml:"peak_at,omitempty" json:"peak_at,omitempty"`
	DeclineBelow *float64 `yaml:"decline_below,omitempty" json:"decline_below,omitempty"`
	PeakHold     *int     `yaml:"peak_hold,omitempty" json:"peak_hold,omitempty"`
	ResolveAt    *float64 `yaml:"resolve_at,omitempty" json:"resolve_at,omitempty"`
	MaxDelta     *float64 `yaml:"max_delta,omitempty" json:"max_delta,omitempty"`
}

// Apply returns base with the override's fields replaced.
func (o ThresholdOverride) Apply(base arc.Thresholds) arc.Thresholds {
	if o.RisingAt != nil {
		base.RisingAt = *o.RisingAt
	}
	if o.PeakAt != nil {
		base.PeakAt = *o.PeakAt
	}
	if o.DeclineBelow != nil {
		base.DeclineBelow = *o.DeclineBelow
	}
	if o.PeakHold != nil {
		base.PeakHold = *o.PeakHold
	}
	if o.ResolveAt != nil {
		base.ResolveAt = *o.ResolveAt
	}
	if o.MaxDelta != nil {
		base.MaxDelta = *o.MaxDelta
	}
	return base
}

// HooksConfig configures hook expiry and archival.
type HooksConfig struct {
	ExpiresAfter int  `yaml:"expires_after" json:"expires_after"`
	Archive      bool `yaml:"archive" json:"archive"`
}

// CooldownsConfig lists domain classes and calendar rules.
type CooldownsConfig struct {
	PriorityDomains []string        `yaml:"priority_domains,omitempty" json:"priority_domains,omitempty"`
	LongDomains     []string        `yaml:"long_domains,omitempty" json:"long_domains,omitempty"`
	Rules           []cooldown.Rule `yaml:"rules,omitempty" json:"rules,omitempty"`
}

// ExecutorConfig configures the flush.
type ExecutorConfig struct {
	Strict     bool `yaml:"strict" json:"strict"`
	MaxIntents int  `yaml:"max_intents" json:"max_intents"`
}

// LoggingConfig configures the CLI logger.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty"`
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Version: "1",
		Store: StoreConfig{
			Driver: DriverSQLite,
			Path:   "citycycle.db",
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				Namespace: "default",
			},
		},
		Collections: CollectionsConfig{
			ArcLedger:   ledger.ArcLedgerCollection,
			Hooks:       ledger.HooksCollection,
			HookArchive: ledger.HookArchiveCollection,
			Cooldowns:   ledger.CooldownsCollection,
			CycleLog:    ledger.CycleLogCollection,
		},
		Arcs: ArcsConfig{
			Thresholds: arc.DefaultThresholds(),
		},
		Hooks: HooksConfig{
			ExpiresAfter: hook.DefaultExpiresAfter,
			Archive:      true,
		},
		Executor: ExecutorConfig{
			MaxIntents: 5000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path, or DefaultPath when it does not
// exist, yields the defaults.
func Load(path string) (*Config, error) {
	config := Default()

	if path == "" {
		path = DefaultPath
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if config, err = Parse(data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// Parse decodes YAML over the defaults without validating. Unknown keys
// are rejected.
func Parse(data []byte) (*Config, error) {
	config := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return config, nil
}

// Validate checks the configuration against the CUE schema, then checks
// threshold ordering.
func (c *Config) Validate() error {
	if err := validateSchema(c); err != nil {
		return err
	}
	if err := c.ThresholdSet().Validate(); err != nil {
		return fmt.Errorf("arcs: %w", err)
	}
	return nil
}

// ThresholdSet returns the arc thresholds with per-type overrides applied
// over the defaults.
func (c *Config) ThresholdSet() arc.ThresholdSet {
	set := arc.ThresholdSet{Default: c.Arcs.Thresholds}
	if len(c.Arcs.ByType) > 0 {
		set.ByType = make(map[string]arc.Thresholds, len(c.Arcs.ByType))
		for typ, o := range c.Arcs.ByType {
			set.ByType[typ] = o.Apply(c.Arcs.Thresholds)
		}
	}
	return set
}

// ArchiveCollection returns the hook archive collection, or "" when
// archival is disabled.
func (c *Config) ArchiveCollection() string {
	if !c.Hooks.Archive {
		return ""
	}
	return c.Collections.HookArchive
}

// applyEnvOverrides applies CITYCYCLE_* environment overrides.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("CITYCYCLE_STORE_DRIVER"); v != "" {
		config.Store.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("CITYCYCLE_STORE_PATH"); v != "" {
		config.Store.Path = v
	}
	if v := os.Getenv("CITYCYCLE_REDIS_ADDR"); v != "" {
		config.Store.Redis.Addr = v
	}
	if v := os.Getenv("CITYCYCLE_REDIS_PASSWORD"); v != "" {
		config.Store.Redis.Password = v
	}
	if v := os.Getenv("CITYCYCLE_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("CITYCYCLE_STRICT"); v != "" {
		config.Executor.Strict = v == "true" || v == "1"
	}
}
