// Package config loads the fsindex configuration file.
//
// The file is YAML. Before it is decoded into Config it is checked against
// an embedded CUE schema, which rejects unknown keys, wrong types and out of
// range values with the offending path in the message.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Defaults applied to fields the file leaves unset.
const (
	DefaultKind           = "sqlite"
	DefaultPath           = "fsindex.db"
	DefaultBatchThreshold = 1000
	DefaultCommitRetries  = 20
	DefaultZone           = "UTC"
	DefaultAddr           = "127.0.0.1:8080"
	DefaultLogLevel       = "info"
)

type StorageConfig struct {
	Kind string `yaml:"kind"`
	Path string `yaml:"path"`
}

type RetryConfig struct {
	Attempts int `yaml:"attempts"`
	DelayMS  int `yaml:"delay_ms"`
}

type LakeConfig struct {
	CommitRetries int `yaml:"commit_retries"`
}

type WalkConfig struct {
	Zone      string `yaml:"zone"`
	FilesOnly bool   `yaml:"files_only"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type Config struct {
	Storage StorageConfig `yaml:"storage"`

	// BatchThreshold is the number of buffered records above which the
	// writer commits.
	BatchThreshold int         `yaml:"batch_threshold"`
	Retry          RetryConfig `yaml:"retry"`
	Lake           LakeConfig  `yaml:"lake"`
	Walk           WalkConfig  `yaml:"walk"`
	HTTP           HTTPConfig  `yaml:"http"`
	Log            LogConfig   `yaml:"log"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads, validates and decodes the file at path. A relative storage
// path is resolved against the file's directory.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if !filepath.IsAbs(cfg.Storage.Path) && !strings.Contains(cfg.Storage.Path, "://") {
		cfg.Storage.Path = filepath.Join(filepath.Dir(absPath), cfg.Storage.Path)
	}
	return cfg, nil
}

// Parse validates and decodes YAML config data. Paths are left as written.
func Parse(data []byte) (*Config, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	if err := checkSchema(raw); err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func checkSchema(raw any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	v := def.Unify(ctx.Encode(raw))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Storage.Kind == "" {
		c.Storage.Kind = DefaultKind
	}
	if c.Storage.Path == "" {
		c.Storage.Path = DefaultPath
	}
	if c.BatchThreshold == 0 {
		c.BatchThreshold = DefaultBatchThreshold
	}
	if c.Lake.CommitRetries == 0 {
		c.Lake.CommitRetries = DefaultCommitRetries
	}
	if c.Walk.Zone == "" {
		c.Walk.Zone = DefaultZone
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultAddr
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

// Validate checks what the schema cannot: that the zone resolves.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Walk.Zone); err != nil {
		return fmt.Errorf("invalid config: walk.zone: %w", err)
	}
	return nil
}

// RetryDelay returns the configured pause between commit attempts.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Retry.DelayMS) * time.Millisecond
}

// LogLevel maps the configured level name to a slog level.
func (c *Config) LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}
