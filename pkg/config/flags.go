package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --backend
// on both "mnemo serve" and "mnemo memory").
type Flag struct {
	// Name is the long flag name (e.g. "backend").
	Name string

	// Shorthand is the one-letter short flag (e.g. "b"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "storage.backend").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag, AddBoolFlag
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagListen          = "listen"
	FlagBackend         = "backend"
	FlagSQLite          = "sqlite"
	FlagPostgresDSN     = "postgres-dsn"
	FlagVectorEnabled   = "vector"
	FlagVectorProvider  = "vector-provider"
	FlagVectorHost      = "vector-host"
	FlagVectorPath      = "vector-path"
	FlagEmbeddingProv   = "embedding-provider"
	FlagEmbeddingTgt    = "embedding-target"
	FlagEmbeddingModel  = "embedding-model"
	FlagEmbeddingDims   = "embedding-dimensions"
	FlagAuditProvider   = "audit-provider"
	FlagAuditBrokers    = "audit-brokers"
	FlagAPITarget       = "api-target"
	FlagMaxEntries      = "max-entries"
	FlagInjectorMaxChar = "inject-max-chars"
)

// Flags is the registry shared by every mnemo command.
var Flags = FlagSet{
	FlagListen:          {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagBackend:         {Name: "backend", Shorthand: "b", ViperKey: "storage.backend", Description: "Keyword store backend (inmemory, sqlite, postgres)"},
	FlagSQLite:          {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to the SQLite database"},
	FlagPostgresDSN:     {Name: "postgres-dsn", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string"},
	FlagVectorEnabled:   {Name: "vector", ViperKey: "vector_store.enabled", Description: "Enable the vector index"},
	FlagVectorProvider:  {Name: "vector-provider", ViperKey: "vector_store.provider", Description: "Vector store provider (chromem, qdrant, sqlitevec)"},
	FlagVectorHost:      {Name: "vector-host", ViperKey: "vector_store.host", Description: "Vector store host (qdrant)"},
	FlagVectorPath:      {Name: "vector-path", ViperKey: "vector_store.path", Description: "Vector store path (chromem, sqlitevec)"},
	FlagEmbeddingProv:   {Name: "embedding-provider", ViperKey: "embedding.provider", Description: "Embedding provider"},
	FlagEmbeddingTgt:    {Name: "embedding-target", ViperKey: "embedding.target", Description: "Embedding provider URL"},
	FlagEmbeddingModel:  {Name: "embedding-model", ViperKey: "embedding.model", Description: "Embedding model"},
	FlagEmbeddingDims:   {Name: "embedding-dimensions", ViperKey: "embedding.dimensions", Description: "Embedding dimensions"},
	FlagAuditProvider:   {Name: "audit-provider", ViperKey: "audit.provider", Description: "Audit sink (log, kafka, nop)"},
	FlagAuditBrokers:    {Name: "audit-brokers", ViperKey: "audit.brokers", Description: "Comma separated Kafka brokers for the audit sink"},
	FlagAPITarget:       {Name: "api-target", Shorthand: "a", ViperKey: "client.api_target", Description: "mnemo API server URL"},
	FlagMaxEntries:      {Name: "max-entries", ViperKey: "memory.max_entries_per_namespace", Description: "Maximum entries kept per namespace when pruning"},
	FlagInjectorMaxChar: {Name: "inject-max-chars", ViperKey: "injector.max_chars", Description: "Total character budget for injected memory"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddBoolFlag registers a bool flag on cmd from the given FlagSet.
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *bool) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultBool(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().BoolVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().BoolVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}

// defaultBool returns the default bool value for a viper key from NewDefaultConfig.
func defaultBool(viperKey string) bool {
	v := viper.New()
	setViperDefaults(v)
	return v.GetBool(viperKey)
}

// Load resolves the effective configuration for cmd. The .mnemo/ directory
// comes from the persistent config-dir flag; the registered flags named by
// registryKeys take precedence over env, file and defaults. The returned
// Configer anchors relative data paths.
func Load(cmd *cobra.Command, registryKeys []string) (*Config, *Configer, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	cfger, err := NewConfiger(configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	v, err := InitViper(configDir)
	if err != nil {
		return nil, nil, err
	}
	BindRegisteredFlags(v, cmd, Flags, registryKeys)

	cfg, err := FromViper(v)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, cfger, nil
}
