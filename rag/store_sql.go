package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/BaSui01/agentswarm/internal/database"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type collectionRow struct {
	Fingerprint string `gorm:"primaryKey;size:80"`
	Model       string `gorm:"size:128"`
	Dimensions  int
	ChunkCount  int
	BuiltAt     time.Time
}

func (collectionRow) TableName() string { return "retrieval_collections" }

type chunkRow struct {
	Fingerprint string `gorm:"primaryKey;size:80"`
	ChunkIndex  int    `gorm:"primaryKey;autoIncrement:false"`
	Text        string `gorm:"type:text"`
	StartPos    int
	EndPos      int
	TokenCount  int
	Embedding   string `gorm:"type:text"` // JSON array
}

func (chunkRow) TableName() string { return "retrieval_chunks" }

// SQLCollectionStore stores collections in two tables. The collection row and
// all chunk rows are inserted in one transaction.
type SQLCollectionStore struct {
	pool   *database.PoolManager
	logger *zap.Logger
}

// NewSQLCollectionStore migrates the schema on the shared pool.
func NewSQLCollectionStore(pool *database.PoolManager, logger *zap.Logger) (*SQLCollectionStore, error) {
	if pool == nil {
		return nil, errors.New("database pool is required")
	}
	if err := pool.DB().AutoMigrate(&collectionRow{}, &chunkRow{}); err != nil {
		return nil, fmt.Errorf("migrate collection tables: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLCollectionStore{
		pool:   pool,
		logger: logger.With(zap.String("component", "collection_store"), zap.String("backend", "sql")),
	}, nil
}

func (s *SQLCollectionStore) Get(ctx context.Context, fingerprint string) (*Collection, error) {
	db := s.pool.DB().WithContext(ctx)

	var row collectionRow
	if err := db.Where("fingerprint = ?", fingerprint).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCollectionNotFound
		}
		return nil, fmt.Errorf("load collection: %w", err)
	}

	var rows []chunkRow
	if err := db.Where("fingerprint = ?", fingerprint).Order("chunk_index").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}

	col := &Collection{
		Fingerprint: row.Fingerprint,
		Model:       row.Model,
		Dimensions:  row.Dimensions,
		BuiltAt:     row.BuiltAt,
		Chunks:      make([]Chunk, 0, len(rows)),
	}
	for _, r := range rows {
		var emb []float64
		if err := json.Unmarshal([]byte(r.Embedding), &emb); err != nil {
			return nil, fmt.Errorf("decode chunk %d embedding: %w", r.ChunkIndex, err)
		}
		col.Chunks = append(col.Chunks, Chunk{
			Index:      r.ChunkIndex,
			Text:       r.Text,
			StartPos:   r.StartPos,
			EndPos:     r.EndPos,
			TokenCount: r.TokenCount,
			Embedding:  emb,
		})
	}
	return col, nil
}

func (s *SQLCollectionStore) Exists(ctx context.Context, fingerprint string) (bool, error) {
	var n int64
	err := s.pool.DB().WithContext(ctx).Model(&collectionRow{}).
		Where("fingerprint = ?", fingerprint).Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check collection: %w", err)
	}
	return n > 0, nil
}

func (s *SQLCollectionStore) Put(ctx context.Context, c *Collection) error {
	if err := c.Validate(); err != nil {
		return err
	}

	chunks := make([]chunkRow, len(c.Chunks))
	for i, ch := range c.Chunks {
		emb, err := json.Marshal(ch.Embedding)
		if err != nil {
			return fmt.Errorf("encode chunk %d embedding: %w", i, err)
		}
		chunks[i] = chunkRow{
			Fingerprint: c.Fingerprint,
			ChunkIndex:  ch.Index,
			Text:        ch.Text,
			StartPos:    ch.StartPos,
			EndPos:      ch.EndPos,
			TokenCount:  ch.TokenCount,
			Embedding:   string(emb),
		}
	}

	return s.pool.WithTransactionRetry(ctx, 3, func(tx *gorm.DB) error {
		row := collectionRow{
			Fingerprint: c.Fingerprint,
			Model:       c.Model,
			Dimensions:  c.Dimensions,
			ChunkCount:  len(c.Chunks),
			BuiltAt:     c.BuiltAt,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return fmt.Errorf("insert collection: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrCollectionExists
		}
		if err := tx.CreateInBatches(chunks, 100).Error; err != nil {
			return fmt.Errorf("insert chunks: %w", err)
		}
		return nil
	})
}

func (s *SQLCollectionStore) List(ctx context.Context) ([]CollectionInfo, error) {
	var rows []collectionRow
	if err := s.pool.DB().WithContext(ctx).Order("built_at, fingerprint").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	out := make([]CollectionInfo, len(rows))
	for i, r := range rows {
		out[i] = CollectionInfo{
			Fingerprint: r.Fingerprint,
			Model:       r.Model,
			Dimensions:  r.Dimensions,
			ChunkCount:  r.ChunkCount,
			BuiltAt:     r.BuiltAt,
		}
	}
	return out, nil
}

// Close is a no-op; the pool is shared and closed by its owner.
func (s *SQLCollectionStore) Close() error { return nil }
