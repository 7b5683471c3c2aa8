// Package chunkstore persists chunk text in PostgreSQL. It is the system of
// record for chunk content: vector hits carry ids only, and the query path
// hydrates text from here.
package chunkstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kart-io/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kart-io/cortex-x/internal/pkg/model"
	"github.com/kart-io/cortex-x/pkg/errors"
	"github.com/kart-io/cortex-x/pkg/store"
)

// Store defines the chunk persistence interface.
type Store interface {
	// UpsertChunks writes chunks transactionally. Re-ingesting the same
	// source item overwrites rows in place because chunk ids are
	// deterministic.
	UpsertChunks(ctx context.Context, chunks []model.Chunk) error

	// FetchByIDs returns the stored text for the given chunk ids. Missing
	// ids are logged and skipped; the caller decides whether partial
	// hydration is acceptable.
	FetchByIDs(ctx context.Context, ids []uuid.UUID) ([]model.ChunkText, error)

	// CountBySource returns the number of chunks stored for a source item.
	CountBySource(ctx context.Context, sourceItemID string) (int64, error)

	// DeleteBySource removes all chunks of a source item.
	DeleteBySource(ctx context.Context, sourceItemID string) error
}

// chunkRow is the gorm row model for the chunks table.
type chunkRow struct {
	ChunkID      string        `gorm:"column:chunk_id;type:uuid;primaryKey"`
	SourceItemID string        `gorm:"column:source_item_id;type:varchar(255);index:idx_chunks_source"`
	ChunkIndex   int           `gorm:"column:chunk_index"`
	Content      string        `gorm:"column:content;type:text"`
	StartOffset  int           `gorm:"column:start_offset"`
	EndOffset    int           `gorm:"column:end_offset"`
	BlockType    string        `gorm:"column:block_type;type:varchar(32)"`
	Language     string        `gorm:"column:language;type:varchar(64)"`
	Metadata     store.JSONMap `gorm:"column:metadata"`
	CreatedAt    time.Time     `gorm:"column:created_at"`
	UpdatedAt    time.Time     `gorm:"column:updated_at"`
}

// TableName sets the table name for gorm.
func (chunkRow) TableName() string {
	return "chunks"
}

type chunkStore struct {
	db *gorm.DB
}

// New creates a chunk store backed by the given database.
func New(db *gorm.DB) Store {
	return &chunkStore{db: db}
}

// AutoMigrate creates or updates the chunks table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&chunkRow{})
}

func toRow(c model.Chunk) chunkRow {
	return chunkRow{
		ChunkID:      c.ChunkID.String(),
		SourceItemID: c.SourceItemID,
		ChunkIndex:   c.ChunkIndex,
		Content:      c.Content,
		StartOffset:  c.StartOffset,
		EndOffset:    c.EndOffset,
		BlockType:    string(c.BlockType),
		Language:     c.Language,
		Metadata:     store.JSONMap(c.Metadata),
	}
}

func (r chunkRow) toText() model.ChunkText {
	id, _ := uuid.Parse(r.ChunkID)
	return model.ChunkText{
		ChunkID:   id,
		Content:   r.Content,
		BlockType: model.BlockType(r.BlockType),
		Language:  r.Language,
		Metadata:  map[string]any(r.Metadata),
	}
}

func (s *chunkStore) UpsertChunks(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	rows := make([]chunkRow, len(chunks))
	for i, c := range chunks {
		rows[i] = toRow(c)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "chunk_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"content", "start_offset", "end_offset", "block_type", "language", "metadata", "updated_at",
			}),
		}).Create(&rows).Error
	})
	if err != nil {
		return errors.ErrChunkPersistFailed.WithCause(err)
	}
	return nil
}

func (s *chunkStore) FetchByIDs(ctx context.Context, ids []uuid.UUID) ([]model.ChunkText, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}

	var rows []chunkRow
	if err := s.db.WithContext(ctx).Where("chunk_id IN ?", strIDs).Find(&rows).Error; err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}

	if len(rows) < len(ids) {
		found := make(map[string]bool, len(rows))
		for _, r := range rows {
			found[r.ChunkID] = true
		}
		for _, id := range strIDs {
			if !found[id] {
				logger.Warnw("chunk missing from store", "chunk_id", id)
			}
		}
	}

	texts := make([]model.ChunkText, len(rows))
	for i, r := range rows {
		texts[i] = r.toText()
	}
	return texts, nil
}

func (s *chunkStore) CountBySource(ctx context.Context, sourceItemID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&chunkRow{}).
		Where("source_item_id = ?", sourceItemID).
		Count(&count).Error
	if err != nil {
		return 0, errors.ErrDatabase.WithCause(err)
	}
	return count, nil
}

func (s *chunkStore) DeleteBySource(ctx context.Context, sourceItemID string) error {
	err := s.db.WithContext(ctx).
		Where("source_item_id = ?", sourceItemID).
		Delete(&chunkRow{}).Error
	if err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}
