package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent mnemo configuration stored as config.toml
// in the .mnemo/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Memory      MemoryConfig      `toml:"memory"`
	Session     SessionConfig     `toml:"session"`
	Injector    InjectorConfig    `toml:"injector"`
	Audit       AuditConfig       `toml:"audit"`
	API         APIConfig         `toml:"api"`
	Client      ClientConfig      `toml:"client"`
}

// StorageConfig selects the keyword store backend.
type StorageConfig struct {
	// Backend is one of "inmemory", "sqlite" or "postgres".
	Backend     string `toml:"backend,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// VectorStoreConfig holds vector index settings. When Enabled is false every
// scope uses the keyword store alone.
type VectorStoreConfig struct {
	Enabled    bool   `toml:"enabled"`
	Provider   string `toml:"provider,omitempty"`
	Collection string `toml:"collection,omitempty"`
	Host       string `toml:"host,omitempty"`
	Port       uint   `toml:"port,omitempty"`
	TLS        bool   `toml:"tls,omitempty"`
	APIKey     string `toml:"api_key,omitempty"`
	Path       string `toml:"path,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
	CacheSize  uint   `toml:"cache_size,omitempty"`
}

// MemoryConfig holds CRUD and pruning limits.
type MemoryConfig struct {
	DefaultPageSize        uint `toml:"default_page_size,omitempty"`
	MaxPageSize            uint `toml:"max_page_size,omitempty"`
	BulkLimit              uint `toml:"bulk_limit,omitempty"`
	MaxEntriesPerNamespace uint `toml:"max_entries_per_namespace,omitempty"`
}

// SessionConfig holds session recording and reflection settings.
type SessionConfig struct {
	MaxLogChars               uint `toml:"max_log_chars,omitempty"`
	CompactionThreshold       uint `toml:"compaction_threshold,omitempty"`
	ReflectionIntervalSeconds uint `toml:"reflection_interval_seconds,omitempty"`
	ReflectionMaxChars        uint `toml:"reflection_max_chars,omitempty"`
}

// InjectorConfig holds prompt injection budgets, measured in characters.
type InjectorConfig struct {
	MaxChars         uint `toml:"max_chars,omitempty"`
	PerEntryMaxChars uint `toml:"per_entry_max_chars,omitempty"`
}

// AuditConfig selects the audit sink.
type AuditConfig struct {
	// Provider is one of "log", "kafka" or "nop".
	Provider  string   `toml:"provider,omitempty"`
	Brokers   []string `toml:"brokers,omitempty"`
	Topic     string   `toml:"topic,omitempty"`
	Workers   uint     `toml:"workers,omitempty"`
	QueueSize uint     `toml:"queue_size,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that talk to a running API
// server. APITarget is a full URL (scheme + host + port).
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func boolKey(name string, field func(c *Config) *bool) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = b
			return nil
		},
	}
}

// listKey stores a comma separated list.
func listKey(field func(c *Config) *[]string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strings.Join(*field(c), ",") },
		set: func(c *Config, v string) error {
			var out []string
			for _, item := range strings.Split(v, ",") {
				if item = strings.TrimSpace(item); item != "" {
					out = append(out, item)
				}
			}
			*field(c) = out
			return nil
		},
	}
}

// orderedKeys lists every supported key in TOML section order.
var orderedKeys = []string{
	"storage.backend",
	"storage.sqlite_path",
	"storage.postgres_dsn",
	"vector_store.enabled",
	"vector_store.provider",
	"vector_store.collection",
	"vector_store.host",
	"vector_store.port",
	"vector_store.tls",
	"vector_store.api_key",
	"vector_store.path",
	"embedding.provider",
	"embedding.target",
	"embedding.model",
	"embedding.dimensions",
	"embedding.cache_size",
	"memory.default_page_size",
	"memory.max_page_size",
	"memory.bulk_limit",
	"memory.max_entries_per_namespace",
	"session.max_log_chars",
	"session.compaction_threshold",
	"session.reflection_interval_seconds",
	"session.reflection_max_chars",
	"injector.max_chars",
	"injector.per_entry_max_chars",
	"audit.provider",
	"audit.brokers",
	"audit.topic",
	"audit.workers",
	"audit.queue_size",
	"api.listen",
	"client.api_target",
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.backend":      stringKey(func(c *Config) *string { return &c.Storage.Backend }),
	"storage.sqlite_path":  stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn": stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),

	"vector_store.enabled":    boolKey("vector_store.enabled", func(c *Config) *bool { return &c.VectorStore.Enabled }),
	"vector_store.provider":   stringKey(func(c *Config) *string { return &c.VectorStore.Provider }),
	"vector_store.collection": stringKey(func(c *Config) *string { return &c.VectorStore.Collection }),
	"vector_store.host":       stringKey(func(c *Config) *string { return &c.VectorStore.Host }),
	"vector_store.port":       uintKey("vector_store.port", func(c *Config) *uint { return &c.VectorStore.Port }),
	"vector_store.tls":        boolKey("vector_store.tls", func(c *Config) *bool { return &c.VectorStore.TLS }),
	"vector_store.api_key":    stringKey(func(c *Config) *string { return &c.VectorStore.APIKey }),
	"vector_store.path":       stringKey(func(c *Config) *string { return &c.VectorStore.Path }),

	"embedding.provider":   stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":     stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":      stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.dimensions": uintKey("embedding.dimensions", func(c *Config) *uint { return &c.Embedding.Dimensions }),
	"embedding.cache_size": uintKey("embedding.cache_size", func(c *Config) *uint { return &c.Embedding.CacheSize }),

	"memory.default_page_size":         uintKey("memory.default_page_size", func(c *Config) *uint { return &c.Memory.DefaultPageSize }),
	"memory.max_page_size":             uintKey("memory.max_page_size", func(c *Config) *uint { return &c.Memory.MaxPageSize }),
	"memory.bulk_limit":                uintKey("memory.bulk_limit", func(c *Config) *uint { return &c.Memory.BulkLimit }),
	"memory.max_entries_per_namespace": uintKey("memory.max_entries_per_namespace", func(c *Config) *uint { return &c.Memory.MaxEntriesPerNamespace }),

	"session.max_log_chars":               uintKey("session.max_log_chars", func(c *Config) *uint { return &c.Session.MaxLogChars }),
	"session.compaction_threshold":        uintKey("session.compaction_threshold", func(c *Config) *uint { return &c.Session.CompactionThreshold }),
	"session.reflection_interval_seconds": uintKey("session.reflection_interval_seconds", func(c *Config) *uint { return &c.Session.ReflectionIntervalSeconds }),
	"session.reflection_max_chars":        uintKey("session.reflection_max_chars", func(c *Config) *uint { return &c.Session.ReflectionMaxChars }),

	"injector.max_chars":           uintKey("injector.max_chars", func(c *Config) *uint { return &c.Injector.MaxChars }),
	"injector.per_entry_max_chars": uintKey("injector.per_entry_max_chars", func(c *Config) *uint { return &c.Injector.PerEntryMaxChars }),

	"audit.provider":   stringKey(func(c *Config) *string { return &c.Audit.Provider }),
	"audit.brokers":    listKey(func(c *Config) *[]string { return &c.Audit.Brokers }),
	"audit.topic":      stringKey(func(c *Config) *string { return &c.Audit.Topic }),
	"audit.workers":    uintKey("audit.workers", func(c *Config) *uint { return &c.Audit.Workers }),
	"audit.queue_size": uintKey("audit.queue_size", func(c *Config) *uint { return &c.Audit.QueueSize }),

	"api.listen":        stringKey(func(c *Config) *string { return &c.API.Listen }),
	"client.api_target": stringKey(func(c *Config) *string { return &c.Client.APITarget }),
}
