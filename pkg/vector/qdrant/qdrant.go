// Package qdrant provides a vector driver backed by a remote Qdrant server.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	qc "github.com/qdrant/go-client/qdrant"

	"github.com/papercomputeco/mnemo/pkg/vector"
)

const (
	// DefaultCollection is the collection name used when none is configured.
	DefaultCollection = "mnemo_memory"

	// DefaultPort is the Qdrant gRPC port.
	DefaultPort = 6334

	payloadDocID     = "doc_id"
	payloadEntryID   = "entry_id"
	payloadScope     = "scope"
	payloadNamespace = "namespace"
)

// Driver implements vector.VectorDriver using Qdrant over gRPC.
type Driver struct {
	client     *qc.Client
	collection string
	logger     *slog.Logger
}

// Config holds configuration for the Qdrant driver.
type Config struct {
	Host   string
	Port   int
	UseTLS bool
	APIKey string

	// Collection is created on first use with cosine distance.
	Collection string

	// Dimensions is the vector size of the collection.
	Dimensions uint
}

// NewDriver connects to Qdrant and ensures the collection exists.
func NewDriver(ctx context.Context, c Config, logger *slog.Logger) (*Driver, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("qdrant: %w", vector.ErrDimensions)
	}
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Collection == "" {
		c.Collection = DefaultCollection
	}

	client, err := qc.NewClient(&qc.Config{
		Host:   c.Host,
		Port:   c.Port,
		UseTLS: c.UseTLS,
		APIKey: c.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vector.ErrConnection, err)
	}

	exists, err := client.CollectionExists(ctx, c.Collection)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: checking collection: %v", vector.ErrConnection, err)
	}

	if !exists {
		err := client.CreateCollection(ctx, &qc.CreateCollection{
			CollectionName: c.Collection,
			VectorsConfig: qc.NewVectorsConfig(&qc.VectorParams{
				Size:     uint64(c.Dimensions),
				Distance: qc.Distance_Cosine,
			}),
		})
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("creating collection %s: %w", c.Collection, err)
		}
	}

	logger.Info("qdrant vector driver initialized",
		"host", c.Host,
		"port", c.Port,
		"collection", c.Collection,
		"created", !exists,
	)

	return &Driver{
		client:     client,
		collection: c.Collection,
		logger:     logger,
	}, nil
}

// PointID maps a document ID onto the UUID point id Qdrant requires.
func PointID(docID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(docID)).String()
}

// Add upserts documents as points.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qc.PointStruct, 0, len(docs))
	for _, doc := range docs {
		points = append(points, &qc.PointStruct{
			Id:      qc.NewIDUUID(PointID(doc.ID)),
			Vectors: qc.NewVectors(doc.Embedding...),
			Payload: qc.NewValueMap(map[string]any{
				payloadDocID:     doc.ID,
				payloadEntryID:   doc.EntryID,
				payloadScope:     doc.Scope,
				payloadNamespace: doc.Namespace,
			}),
		})
	}

	_, err := d.client.Upsert(ctx, &qc.UpsertPoints{
		CollectionName: d.collection,
		Wait:           qc.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	d.logger.Debug("added documents to qdrant", "count", len(docs))
	return nil
}

// Query finds the topK nearest points within the filter.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int, filter vector.Filter) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	req := &qc.QueryPoints{
		CollectionName: d.collection,
		Query:          qc.NewQuery(embedding...),
		Limit:          qc.PtrOf(uint64(topK)),
		WithPayload:    qc.NewWithPayload(true),
	}

	var must []*qc.Condition
	if filter.Scope != "" {
		must = append(must, qc.NewMatch(payloadScope, filter.Scope))
	}
	if filter.Namespace != "" {
		must = append(must, qc.NewMatch(payloadNamespace, filter.Namespace))
	}
	if len(must) > 0 {
		req.Filter = &qc.Filter{Must: must}
	}

	points, err := d.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("querying points: %w", err)
	}

	results := make([]vector.QueryResult, 0, len(points))
	for _, p := range points {
		results = append(results, vector.QueryResult{
			Document: fromPayload(p.GetPayload()),
			Score:    p.GetScore(),
		})
	}

	return results, nil
}

// Get retrieves documents by their IDs. Embeddings are not returned.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	pointIDs := make([]*qc.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qc.NewIDUUID(PointID(id)))
	}

	points, err := d.client.Get(ctx, &qc.GetPoints{
		CollectionName: d.collection,
		Ids:            pointIDs,
		WithPayload:    qc.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("getting points: %w", err)
	}

	docs := make([]vector.Document, 0, len(points))
	for _, p := range points {
		docs = append(docs, fromPayload(p.GetPayload()))
	}

	return docs, nil
}

// Delete removes points by document ID.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qc.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qc.NewIDUUID(PointID(id)))
	}

	_, err := d.client.Delete(ctx, &qc.DeletePoints{
		CollectionName: d.collection,
		Wait:           qc.PtrOf(true),
		Points:         qc.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("deleting points: %w", err)
	}

	return nil
}

// Close closes the gRPC connections.
func (d *Driver) Close() error {
	if d.client == nil {
		return errors.New("qdrant client not initialized")
	}
	return d.client.Close()
}

func fromPayload(payload map[string]*qc.Value) vector.Document {
	return vector.Document{
		ID:        payload[payloadDocID].GetStringValue(),
		EntryID:   payload[payloadEntryID].GetStringValue(),
		Scope:     payload[payloadScope].GetStringValue(),
		Namespace: payload[payloadNamespace].GetStringValue(),
	}
}

var _ vector.VectorDriver = (*Driver)(nil)
