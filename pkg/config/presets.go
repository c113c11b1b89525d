package config

import (
	"fmt"
	"sort"
	"strings"
)

// presets adjust a default config for a common deployment shape.
var presets = map[string]func(c *Config){
	// local keeps everything in the .mnemo/ directory.
	"local": func(*Config) {},

	// semantic adds an embedded chromem index with Ollama embeddings.
	"semantic": func(c *Config) {
		c.VectorStore.Enabled = true
		c.VectorStore.Provider = "chromem"
	},

	// cluster points at shared services: PostgreSQL, Qdrant and Kafka.
	"cluster": func(c *Config) {
		c.Storage.Backend = "postgres"
		c.Storage.PostgresDSN = "postgres://localhost:5432/mnemo?sslmode=disable"
		c.VectorStore.Enabled = true
		c.VectorStore.Provider = "qdrant"
		c.VectorStore.Host = "localhost"
		c.Audit.Provider = "kafka"
		c.Audit.Brokers = []string{"localhost:9092"}
	},
}

// PresetNames returns the known preset names, sorted.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewPresetConfig returns the default config adjusted by the named preset.
// An empty name is the same as "local".
func NewPresetConfig(name string) (*Config, error) {
	if name == "" {
		name = "local"
	}
	apply, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q (valid: %s)", name, strings.Join(PresetNames(), ", "))
	}

	cfg := NewDefaultConfig()
	apply(cfg)
	return cfg, nil
}
