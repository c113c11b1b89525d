package config

const (
	defaultStorageBackend = "sqlite"
	defaultSQLiteFile     = "mnemo.db"

	defaultVectorProvider   = "chromem"
	defaultVectorCollection = "mnemo_memory"
	defaultQdrantPort       = 6334

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "embeddinggemma"
	defaultEmbeddingDimensions = 768
	defaultEmbeddingCacheSize  = 4096

	defaultPageSize               = 20
	defaultMaxPageSize            = 100
	defaultBulkLimit              = 10
	defaultMaxEntriesPerNamespace = 1000

	defaultMaxLogChars               = 2000
	defaultCompactionThreshold       = 8000
	defaultReflectionIntervalSeconds = 3600
	defaultReflectionMaxChars        = 2000

	defaultInjectorMaxChars         = 1200
	defaultInjectorPerEntryMaxChars = 400

	defaultAuditProvider  = "log"
	defaultAuditTopic     = "mnemo.memory.audit"
	defaultAuditWorkers   = 3
	defaultAuditQueueSize = 256

	defaultAPIListen       = ":8082"
	defaultClientAPITarget = "http://localhost:8082"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Backend:    defaultStorageBackend,
			SQLitePath: defaultSQLiteFile,
		},
		VectorStore: VectorStoreConfig{
			Enabled:    false,
			Provider:   defaultVectorProvider,
			Collection: defaultVectorCollection,
			Port:       defaultQdrantPort,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
			CacheSize:  defaultEmbeddingCacheSize,
		},
		Memory: MemoryConfig{
			DefaultPageSize:        defaultPageSize,
			MaxPageSize:            defaultMaxPageSize,
			BulkLimit:              defaultBulkLimit,
			MaxEntriesPerNamespace: defaultMaxEntriesPerNamespace,
		},
		Session: SessionConfig{
			MaxLogChars:               defaultMaxLogChars,
			CompactionThreshold:       defaultCompactionThreshold,
			ReflectionIntervalSeconds: defaultReflectionIntervalSeconds,
			ReflectionMaxChars:        defaultReflectionMaxChars,
		},
		Injector: InjectorConfig{
			MaxChars:         defaultInjectorMaxChars,
			PerEntryMaxChars: defaultInjectorPerEntryMaxChars,
		},
		Audit: AuditConfig{
			Provider:  defaultAuditProvider,
			Topic:     defaultAuditTopic,
			Workers:   defaultAuditWorkers,
			QueueSize: defaultAuditQueueSize,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
	}
}
