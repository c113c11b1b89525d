package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/mnemo/pkg/config"
	"github.com/papercomputeco/mnemo/pkg/embeddings"
	embeddingutils "github.com/papercomputeco/mnemo/pkg/embeddings/utils"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/storage/hybrid"
	"github.com/papercomputeco/mnemo/pkg/storage/inmemory"
	"github.com/papercomputeco/mnemo/pkg/storage/postgres"
	"github.com/papercomputeco/mnemo/pkg/storage/sqlite"
	"github.com/papercomputeco/mnemo/pkg/vector"
	vectorutils "github.com/papercomputeco/mnemo/pkg/vector/utils"
)

// Storage backends accepted in storage.backend.
const (
	BackendInMemory = "inmemory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

const (
	defaultChromemDir  = "vectors"
	defaultSQLiteVecDB = "vectors.db"
	inMemorySQLitePath = ":memory:"
)

// FactoryOptions configures NewFromConfig.
type FactoryOptions struct {
	Config *config.Config

	// ResolvePath anchors relative data paths, typically
	// (*config.Configer).ResolvePath. Nil leaves paths untouched.
	ResolvePath func(string) string

	// Embedder overrides the embedder built from the [embedding] section.
	Embedder embeddings.Embedder

	// VectorDriver overrides the driver built from the [vector_store] section.
	VectorDriver vector.VectorDriver

	Logger *slog.Logger
}

// NewFromConfig builds one keyword store from [storage], wraps it in a
// hybrid store when [vector_store] is enabled and registers it for every
// scope.
func NewFromConfig(ctx context.Context, o FactoryOptions) (*Registry, error) {
	if o.Config == nil {
		return nil, errors.New("config is required")
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.ResolvePath == nil {
		o.ResolvePath = func(p string) string { return p }
	}

	cfg := o.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := newKeywordStore(ctx, cfg, o)
	if err != nil {
		return nil, err
	}

	if cfg.VectorStore.Enabled {
		index, err := newIndex(ctx, cfg, o)
		if err != nil {
			return nil, errors.Join(err, store.Close())
		}

		store, err = hybrid.New(hybrid.Config{
			Store:  store,
			Index:  index,
			Logger: o.Logger,
		})
		if err != nil {
			return nil, err
		}
	}

	stores := make(map[memory.Scope]memory.Store, len(memory.Scopes))
	for _, scope := range memory.Scopes {
		stores[scope] = store
	}

	return New(stores)
}

func newKeywordStore(ctx context.Context, cfg *config.Config, o FactoryOptions) (memory.Store, error) {
	switch cfg.Storage.Backend {
	case BackendInMemory:
		o.Logger.Info("using in-memory storage")
		return inmemory.NewStore(), nil

	case BackendSQLite:
		path := o.ResolvePath(cfg.Storage.SQLitePath)
		if path == "" {
			path = inMemorySQLitePath
		}

		store, err := sqlite.NewStore(ctx, path, o.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite store: %w", err)
		}
		o.Logger.Info("using SQLite storage", "path", path)
		return store, nil

	case BackendPostgres:
		store, err := postgres.NewStore(ctx, cfg.Storage.PostgresDSN, o.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL store: %w", err)
		}
		o.Logger.Info("using PostgreSQL storage")
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported storage backend: %q", cfg.Storage.Backend)
	}
}

func newIndex(ctx context.Context, cfg *config.Config, o FactoryOptions) (vector.Index, error) {
	embedder := o.Embedder
	if embedder == nil {
		var err error
		embedder, err = embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
			ProviderType: cfg.Embedding.Provider,
			TargetURL:    cfg.Embedding.Target,
			Model:        cfg.Embedding.Model,
			Dimensions:   cfg.Embedding.Dimensions,
			CacheSize:    int(cfg.Embedding.CacheSize),
		})
		if err != nil {
			return nil, fmt.Errorf("creating embedder: %w", err)
		}
	}

	driver := o.VectorDriver
	if driver == nil {
		path := cfg.VectorStore.Path
		if path == "" {
			switch cfg.VectorStore.Provider {
			case vectorutils.ProviderChromem:
				path = defaultChromemDir
			case vectorutils.ProviderSQLiteVec:
				path = defaultSQLiteVecDB
			}
		}

		var err error
		driver, err = vectorutils.NewVectorDriver(ctx, &vectorutils.NewVectorDriverOpts{
			ProviderType: cfg.VectorStore.Provider,
			Collection:   cfg.VectorStore.Collection,
			Host:         cfg.VectorStore.Host,
			Port:         int(cfg.VectorStore.Port),
			UseTLS:       cfg.VectorStore.TLS,
			APIKey:       cfg.VectorStore.APIKey,
			Path:         o.ResolvePath(path),
			Dimensions:   cfg.Embedding.Dimensions,
			Logger:       o.Logger,
		})
		if err != nil {
			return nil, errors.Join(fmt.Errorf("creating vector driver: %w", err), embedder.Close())
		}
	}

	o.Logger.Info("vector index enabled",
		"provider", cfg.VectorStore.Provider,
		"embedding_model", cfg.Embedding.Model,
	)

	return vector.NewEmbeddingIndex(vector.EmbeddingIndexConfig{
		Driver:   driver,
		Embedder: embedder,
		Logger:   o.Logger,
	})
}
