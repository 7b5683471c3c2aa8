// Package vectorstore adapts Milvus to the retrieval pipeline. Points carry
// chunk ids and filter metadata only; chunk text stays in PostgreSQL.
package vectorstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/kart-io/logger"
	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"github.com/kart-io/cortex-x/internal/pkg/model"
	"github.com/kart-io/cortex-x/pkg/errors"
)

// Point is one vector-store entry. The id is "{chunk_id}:{profile}" so
// re-embedding a chunk overwrites its points instead of duplicating them.
type Point struct {
	ID           string
	Vector       []float32
	ChunkID      uuid.UUID
	SourceItemID string
	TenantID     string
	Profile      string
	SourceType   string
	Language     string
	Timestamp    int64
}

// Hit is one search result.
type Hit struct {
	PointID      string
	ChunkID      uuid.UUID
	SourceItemID string
	Profile      string
	SourceType   string
	Language     string
	Timestamp    int64
	Score        float32
}

// Store defines the vector persistence interface.
type Store interface {
	// EnsureCollection creates the collection and index when absent.
	EnsureCollection(ctx context.Context, collection string, dimension int) error

	// Upsert writes points, overwriting existing ids. Every vector must
	// match the collection dimension.
	Upsert(ctx context.Context, collection string, dimension int, points []Point) error

	// Search runs a similarity query constrained by the filter.
	Search(ctx context.Context, collection string, vector []float32, topK int, filter Filter) ([]Hit, error)

	// DeleteByFilter removes all points matching the filter.
	DeleteByFilter(ctx context.Context, collection string, filter Filter) error
}

type milvusStore struct {
	client *milvusclient.Client
}

// New creates a vector store backed by the given Milvus client.
func New(client *milvusclient.Client) Store {
	return &milvusStore{client: client}
}

const (
	fieldID           = "id"
	fieldEmbedding    = "embedding"
	fieldChunkID      = "chunk_id"
	fieldSourceItemID = "source_item_id"
	fieldTenantID     = "tenant_id"
	fieldProfile      = "profile"
	fieldSourceType   = "source_type"
	fieldLanguage     = "language"
	fieldTimestamp    = "timestamp"
)

var outputFields = []string{fieldChunkID, fieldSourceItemID, fieldProfile, fieldSourceType, fieldLanguage, fieldTimestamp}

func (s *milvusStore) EnsureCollection(ctx context.Context, collection string, dimension int) error {
	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(collection))
	if err != nil {
		return errors.ErrVectorStore.WithCause(err)
	}
	if exists {
		return nil
	}

	schema := entity.NewSchema().
		WithName(collection).
		WithDescription("chunk embeddings keyed by chunk id and profile")

	schema.WithField(entity.NewField().
		WithName(fieldID).
		WithDataType(entity.FieldTypeVarChar).
		WithMaxLength(128).
		WithIsPrimaryKey(true))
	schema.WithField(entity.NewField().
		WithName(fieldEmbedding).
		WithDataType(entity.FieldTypeFloatVector).
		WithDim(int64(dimension)))
	schema.WithField(entity.NewField().
		WithName(fieldChunkID).
		WithDataType(entity.FieldTypeVarChar).
		WithMaxLength(64))
	schema.WithField(entity.NewField().
		WithName(fieldSourceItemID).
		WithDataType(entity.FieldTypeVarChar).
		WithMaxLength(255))
	schema.WithField(entity.NewField().
		WithName(fieldTenantID).
		WithDataType(entity.FieldTypeVarChar).
		WithMaxLength(128))
	schema.WithField(entity.NewField().
		WithName(fieldProfile).
		WithDataType(entity.FieldTypeVarChar).
		WithMaxLength(32))
	schema.WithField(entity.NewField().
		WithName(fieldSourceType).
		WithDataType(entity.FieldTypeVarChar).
		WithMaxLength(32))
	schema.WithField(entity.NewField().
		WithName(fieldLanguage).
		WithDataType(entity.FieldTypeVarChar).
		WithMaxLength(32))
	schema.WithField(entity.NewField().
		WithName(fieldTimestamp).
		WithDataType(entity.FieldTypeInt64))

	if err := s.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(collection, schema)); err != nil {
		return errors.ErrVectorStore.WithCause(err)
	}

	idx := index.NewIvfFlatIndex(entity.COSINE, 128)
	createIdxTask, err := s.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(collection, fieldEmbedding, idx))
	if err != nil {
		return errors.ErrVectorStore.WithCause(err)
	}
	if err := createIdxTask.Await(ctx); err != nil {
		return errors.ErrVectorStore.WithCause(err)
	}

	loadTask, err := s.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(collection))
	if err != nil {
		return errors.ErrVectorStore.WithCause(err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return errors.ErrVectorStore.WithCause(err)
	}

	logger.Infow("vector collection created", "collection", collection, "dimension", dimension)
	return nil
}

func (s *milvusStore) Upsert(ctx context.Context, collection string, dimension int, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	ids := make([]string, len(points))
	vectors := make([][]float32, len(points))
	chunkIDs := make([]string, len(points))
	sourceItemIDs := make([]string, len(points))
	tenantIDs := make([]string, len(points))
	profiles := make([]string, len(points))
	sourceTypes := make([]string, len(points))
	languages := make([]string, len(points))
	timestamps := make([]int64, len(points))

	for i, p := range points {
		if len(p.Vector) != dimension {
			return errors.ErrDimensionMismatch.WithMessagef(
				"point %s has dimension %d, collection expects %d", p.ID, len(p.Vector), dimension)
		}
		ids[i] = p.ID
		vectors[i] = p.Vector
		chunkIDs[i] = p.ChunkID.String()
		sourceItemIDs[i] = p.SourceItemID
		tenantIDs[i] = p.TenantID
		profiles[i] = p.Profile
		sourceTypes[i] = p.SourceType
		languages[i] = p.Language
		timestamps[i] = p.Timestamp
	}

	columns := []column.Column{
		column.NewColumnVarChar(fieldID, ids),
		column.NewColumnFloatVector(fieldEmbedding, dimension, vectors),
		column.NewColumnVarChar(fieldChunkID, chunkIDs),
		column.NewColumnVarChar(fieldSourceItemID, sourceItemIDs),
		column.NewColumnVarChar(fieldTenantID, tenantIDs),
		column.NewColumnVarChar(fieldProfile, profiles),
		column.NewColumnVarChar(fieldSourceType, sourceTypes),
		column.NewColumnVarChar(fieldLanguage, languages),
		column.NewColumnInt64(fieldTimestamp, timestamps),
	}

	if _, err := s.client.Upsert(ctx, milvusclient.NewColumnBasedInsertOption(collection, columns...)); err != nil {
		return errors.ErrVectorStore.WithCause(err)
	}

	flushTask, err := s.client.Flush(ctx, milvusclient.NewFlushOption(collection))
	if err != nil {
		return errors.ErrVectorStore.WithCause(err)
	}
	if err := flushTask.Await(ctx); err != nil {
		return errors.ErrVectorStore.WithCause(err)
	}
	return nil
}

func (s *milvusStore) Search(ctx context.Context, collection string, vector []float32, topK int, filter Filter) ([]Hit, error) {
	opt := milvusclient.NewSearchOption(collection, topK, []entity.Vector{entity.FloatVector(vector)}).
		WithANNSField(fieldEmbedding).
		WithSearchParam("nprobe", "16").
		WithOutputFields(outputFields...)

	if expr := filter.Expr(); expr != "" {
		opt = opt.WithFilter(expr)
	}

	results, err := s.client.Search(ctx, opt)
	if err != nil {
		return nil, errors.ErrVectorStore.WithCause(err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	rs := results[0]
	hits := make([]Hit, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		hit := Hit{Score: rs.Scores[i]}

		if idCol, ok := rs.IDs.(*column.ColumnVarChar); ok {
			hit.PointID = idCol.Data()[i]
		}
		for _, field := range rs.Fields {
			switch col := field.(type) {
			case *column.ColumnVarChar:
				val := col.Data()[i]
				switch col.Name() {
				case fieldChunkID:
					hit.ChunkID, _ = uuid.Parse(val)
				case fieldSourceItemID:
					hit.SourceItemID = val
				case fieldProfile:
					hit.Profile = val
				case fieldSourceType:
					hit.SourceType = val
				case fieldLanguage:
					hit.Language = val
				}
			case *column.ColumnInt64:
				if col.Name() == fieldTimestamp {
					hit.Timestamp = col.Data()[i]
				}
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (s *milvusStore) DeleteByFilter(ctx context.Context, collection string, filter Filter) error {
	expr := filter.Expr()
	if expr == "" {
		return errors.ErrInvalidParam.WithMessage("refusing to delete with an empty filter")
	}

	if _, err := s.client.Delete(ctx, milvusclient.NewDeleteOption(collection).WithExpr(expr)); err != nil {
		return errors.ErrVectorStore.WithCause(err)
	}
	return nil
}

// PointFromEmbedding builds the vector-store point for an embedding and its
// owning source item. The point timestamp comes from the item's "timestamp"
// metadata (unix seconds) when present, else the embedding creation time.
func PointFromEmbedding(emb *model.Embedding, item *model.SourceItem) Point {
	ts := emb.CreatedAt.Unix()
	if item.Metadata != nil {
		switch v := item.Metadata["timestamp"].(type) {
		case int64:
			ts = v
		case float64:
			ts = int64(v)
		}
	}

	return Point{
		ID:           emb.PointID(),
		Vector:       emb.Vector,
		ChunkID:      emb.ChunkID,
		SourceItemID: item.ID,
		TenantID:     item.TenantID,
		Profile:      emb.Profile,
		SourceType:   string(item.ContentType),
		Language:     item.ContentType.Language(),
		Timestamp:    ts,
	}
}
