package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/agentswarm/internal/database"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type conversationRow struct {
	ID              string `gorm:"primaryKey;size:255"`
	ActiveResponder string `gorm:"size:128"`
	Version         int64  `gorm:"not null"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (conversationRow) TableName() string { return "conversations" }

type turnRow struct {
	ConversationID string `gorm:"primaryKey;size:255"`
	Seq            int64  `gorm:"primaryKey;autoIncrement:false"`
	TurnID         string `gorm:"size:64"`
	Question       string `gorm:"type:text"`
	Answer         string `gorm:"type:text"`
	Responder      string `gorm:"size:128"`
	Steps          string `gorm:"type:text"` // JSON array
	CreatedAt      time.Time
}

func (turnRow) TableName() string { return "conversation_turns" }

// SQLConversationStore stores conversations in two tables. The version-guarded
// update and the turn insert run in one transaction.
type SQLConversationStore struct {
	pool   *database.PoolManager
	logger *zap.Logger
	now    func() time.Time

	mu     sync.RWMutex
	closed bool
}

// NewSQLConversationStore migrates the schema on the shared pool.
func NewSQLConversationStore(pool *database.PoolManager, logger *zap.Logger) (*SQLConversationStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("%w: database pool is required", ErrInvalidInput)
	}
	if err := pool.DB().AutoMigrate(&conversationRow{}, &turnRow{}); err != nil {
		return nil, fmt.Errorf("migrate conversation tables: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLConversationStore{
		pool:   pool,
		logger: logger.With(zap.String("component", "conversation_store"), zap.String("backend", "sql")),
		now:    time.Now,
	}, nil
}

// Close marks the store closed; the pool is shared and closed by its owner.
func (s *SQLConversationStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *SQLConversationStore) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Ping checks the database connection
func (s *SQLConversationStore) Ping(ctx context.Context) error {
	if s.isClosed() {
		return ErrStoreClosed
	}
	return s.pool.Ping(ctx)
}

// Load reads the conversation row and its turns
func (s *SQLConversationStore) Load(ctx context.Context, conversationID string) (*Conversation, error) {
	if err := validateID(conversationID); err != nil {
		return nil, err
	}
	if s.isClosed() {
		return nil, ErrStoreClosed
	}
	return loadConversation(s.pool.DB().WithContext(ctx), conversationID)
}

func loadConversation(db *gorm.DB, conversationID string) (*Conversation, error) {
	var row conversationRow
	if err := db.Where("id = ?", conversationID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NewConversation(conversationID), nil
		}
		return nil, fmt.Errorf("load conversation: %w", err)
	}

	var rows []turnRow
	if err := db.Where("conversation_id = ?", conversationID).Order("seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load turns: %w", err)
	}

	conv := &Conversation{
		ID:              row.ID,
		ActiveResponder: row.ActiveResponder,
		Version:         row.Version,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
		Turns:           make([]Turn, 0, len(rows)),
	}
	for _, r := range rows {
		var steps []Step
		if err := json.Unmarshal([]byte(r.Steps), &steps); err != nil {
			return nil, fmt.Errorf("decode turn %d steps: %w", r.Seq, err)
		}
		conv.Turns = append(conv.Turns, Turn{
			ID:        r.TurnID,
			Question:  r.Question,
			Steps:     steps,
			Answer:    r.Answer,
			Responder: r.Responder,
			CreatedAt: r.CreatedAt,
		})
	}
	return conv, nil
}

// Commit appends a turn when the stored version equals expectedVersion
func (s *SQLConversationStore) Commit(ctx context.Context, conversationID string, expectedVersion int64, turn Turn, activeResponder string) (*Conversation, error) {
	if err := validateCommit(conversationID, expectedVersion, turn, activeResponder); err != nil {
		return nil, err
	}
	if s.isClosed() {
		return nil, ErrStoreClosed
	}

	steps, err := json.Marshal(turn.Steps)
	if err != nil {
		return nil, fmt.Errorf("encode turn steps: %w", err)
	}
	now := s.now().UTC()
	next := expectedVersion + 1

	var committed *Conversation
	err = s.pool.WithTransactionRetry(ctx, 3, func(tx *gorm.DB) error {
		var res *gorm.DB
		if expectedVersion == 0 {
			res = tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&conversationRow{
				ID:              conversationID,
				ActiveResponder: activeResponder,
				Version:         next,
				CreatedAt:       now,
				UpdatedAt:       now,
			})
		} else {
			res = tx.Model(&conversationRow{}).
				Where("id = ? AND version = ?", conversationID, expectedVersion).
				Updates(map[string]any{
					"version":          next,
					"active_responder": activeResponder,
					"updated_at":       now,
				})
		}
		if res.Error != nil {
			return fmt.Errorf("update conversation: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}

		if err := tx.Create(&turnRow{
			ConversationID: conversationID,
			Seq:            next,
			TurnID:         turn.ID,
			Question:       turn.Question,
			Answer:         turn.Answer,
			Responder:      turn.Responder,
			Steps:          string(steps),
			CreatedAt:      turn.CreatedAt,
		}).Error; err != nil {
			return fmt.Errorf("insert turn: %w", err)
		}

		conv, err := loadConversation(tx, conversationID)
		if err != nil {
			return err
		}
		committed = conv
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("conversation committed",
		zap.String("conversation_id", conversationID),
		zap.Int64("version", next))
	return committed, nil
}
