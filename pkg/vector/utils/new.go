// Package vectorutils builds vector drivers from configuration.
package vectorutils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/mnemo/pkg/vector"
	"github.com/papercomputeco/mnemo/pkg/vector/chromem"
	"github.com/papercomputeco/mnemo/pkg/vector/qdrant"
	"github.com/papercomputeco/mnemo/pkg/vector/sqlitevec"
)

const (
	ProviderChromem   = "chromem"
	ProviderQdrant    = "qdrant"
	ProviderSQLiteVec = "sqlitevec"
)

type NewVectorDriverOpts struct {
	ProviderType string

	// Collection names the chromem or qdrant collection.
	Collection string

	// Host, Port, UseTLS and APIKey address a qdrant server.
	Host   string
	Port   int
	UseTLS bool
	APIKey string

	// Path is the chromem persistence directory or the sqlite-vec database.
	Path string

	Dimensions uint
	Logger     *slog.Logger
}

func NewVectorDriver(ctx context.Context, o *NewVectorDriverOpts) (vector.VectorDriver, error) {
	switch o.ProviderType {
	case ProviderChromem:
		return chromem.NewDriver(chromem.Config{
			Path:       o.Path,
			Collection: o.Collection,
		}, o.Logger)
	case ProviderQdrant:
		return qdrant.NewDriver(ctx, qdrant.Config{
			Host:       o.Host,
			Port:       o.Port,
			UseTLS:     o.UseTLS,
			APIKey:     o.APIKey,
			Collection: o.Collection,
			Dimensions: o.Dimensions,
		}, o.Logger)
	case ProviderSQLiteVec:
		return sqlitevec.NewDriver(sqlitevec.Config{
			DBPath:     o.Path,
			Dimensions: o.Dimensions,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
