// Package config loads, saves and resolves the mnemo configuration.
//
// Values come from config.toml in the .mnemo/ directory, MNEMO_* environment
// variables and command flags, merged through viper. NewDefaultConfig is the
// single source of defaults for all three.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/mnemo/pkg/dotdir"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

type Configer struct {
	ddm        *dotdir.Manager
	targetDir  string
	targetPath string
}

func NewConfiger(override string) (*Configer, error) {
	cfger := &Configer{}

	cfger.ddm = dotdir.NewManager()
	target, err := cfger.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	// If no .mnemo/ directory was resolved, targetPath stays empty;
	// LoadConfig will return defaults and SaveConfig will error clearly.
	if target == "" {
		return cfger, nil
	}

	path := filepath.Join(target, configFile)
	_, err = os.Stat(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfger.targetDir = target
	cfger.targetPath = path

	return cfger, nil
}

// ValidConfigKeys returns all supported configuration key names in TOML
// section order.
func ValidConfigKeys() []string {
	return append([]string(nil), orderedKeys...)
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// ResolvePath anchors a relative data file path (e.g. storage.sqlite_path) in
// the .mnemo/ directory. Absolute paths, ":memory:" and empty strings are
// returned unchanged.
func (c *Configer) ResolvePath(p string) string {
	if p == "" || p == ":memory:" || filepath.IsAbs(p) || c.targetDir == "" {
		return p
	}
	return filepath.Join(c.targetDir, p)
}

// LoadConfig loads the configuration from config.toml in the target .mnemo/
// directory. If the file does not exist, returns NewDefaultConfig() so callers
// always receive a fully-populated Config. Fields explicitly set in the file
// override the defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return parseOnto(NewDefaultConfig(), data)
}

// SaveConfig persists the configuration to config.toml in the target .mnemo/ directory.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetConfigValue loads the config, sets the given key to the given value, and saves it.
// Returns an error if the key is not a valid config key.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string representation of the given key.
// Returns an error if the key is not a valid config key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// Get returns the string form of key on cfg, or "" for an unknown key.
func (cfg *Config) Get(key string) string {
	info, ok := configKeys[key]
	if !ok {
		return ""
	}
	return info.get(cfg)
}

// Set parses value into key on cfg.
func (cfg *Config) Set(key, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}
	return info.set(cfg, value)
}

var (
	validBackends        = []string{"inmemory", "sqlite", "postgres"}
	validVectorProviders = []string{"chromem", "qdrant", "sqlitevec"}
	validAuditProviders  = []string{"log", "kafka", "nop"}
)

// Validate checks enumerated fields and cross-field requirements.
func (cfg *Config) Validate() error {
	if !oneOf(cfg.Storage.Backend, validBackends) {
		return fmt.Errorf("storage.backend %q must be one of %s",
			cfg.Storage.Backend, strings.Join(validBackends, ", "))
	}
	if cfg.Storage.Backend == "postgres" && cfg.Storage.PostgresDSN == "" {
		return errors.New("storage.postgres_dsn is required for the postgres backend")
	}

	if cfg.VectorStore.Enabled && !oneOf(cfg.VectorStore.Provider, validVectorProviders) {
		return fmt.Errorf("vector_store.provider %q must be one of %s",
			cfg.VectorStore.Provider, strings.Join(validVectorProviders, ", "))
	}

	if !oneOf(cfg.Audit.Provider, validAuditProviders) {
		return fmt.Errorf("audit.provider %q must be one of %s",
			cfg.Audit.Provider, strings.Join(validAuditProviders, ", "))
	}
	if cfg.Audit.Provider == "kafka" && len(cfg.Audit.Brokers) == 0 {
		return errors.New("audit.brokers is required for the kafka audit provider")
	}

	if cfg.Memory.DefaultPageSize > cfg.Memory.MaxPageSize {
		return fmt.Errorf("memory.default_page_size %d exceeds memory.max_page_size %d",
			cfg.Memory.DefaultPageSize, cfg.Memory.MaxPageSize)
	}

	return nil
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// ParseConfigTOML parses raw TOML bytes into a Config on top of the defaults.
// Returns an error if the version field is present and not equal to CurrentV.
func ParseConfigTOML(data []byte) (*Config, error) {
	return parseOnto(NewDefaultConfig(), data)
}

func parseOnto(cfg *Config, data []byte) (*Config, error) {
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, nil
}
