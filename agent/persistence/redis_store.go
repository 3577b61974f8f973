package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/agentswarm/internal/cache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisConversationStore is a Redis-based implementation of ConversationStore.
// Suitable for distributed deployments. Each conversation is one JSON value;
// Commit runs as a WATCH/MULTI transaction on that key.
type RedisConversationStore struct {
	redis     *cache.Manager
	keyPrefix string
	retry     RetryConfig
	logger    *zap.Logger
	now       func() time.Time

	mu     sync.RWMutex
	closed bool
}

// NewRedisConversationStore creates a store on a shared Redis manager.
func NewRedisConversationStore(mgr *cache.Manager, config StoreConfig, logger *zap.Logger) (*RedisConversationStore, error) {
	if mgr == nil {
		return nil, fmt.Errorf("%w: redis manager is required", ErrInvalidInput)
	}
	keyPrefix := config.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "agentswarm:"
	}
	retry := config.Retry
	if retry.MaxRetries <= 0 {
		retry = DefaultRetryConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisConversationStore{
		redis:     mgr,
		keyPrefix: keyPrefix + "conversation:",
		retry:     retry,
		logger:    logger.With(zap.String("component", "conversation_store"), zap.String("backend", "redis")),
		now:       time.Now,
	}, nil
}

// conversationKey returns the Redis key for a conversation
func (s *RedisConversationStore) conversationKey(conversationID string) string {
	return s.keyPrefix + conversationID
}

// Close marks the store closed; the shared manager stays open
func (s *RedisConversationStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ping checks if the store is healthy
func (s *RedisConversationStore) Ping(ctx context.Context) error {
	if s.isClosed() {
		return ErrStoreClosed
	}
	return s.redis.Ping(ctx)
}

func (s *RedisConversationStore) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Load retrieves a conversation
func (s *RedisConversationStore) Load(ctx context.Context, conversationID string) (*Conversation, error) {
	if err := validateID(conversationID); err != nil {
		return nil, err
	}
	if s.isClosed() {
		return nil, ErrStoreClosed
	}
	data, err := s.redis.Get(ctx, s.conversationKey(conversationID))
	if cache.IsCacheMiss(err) {
		return NewConversation(conversationID), nil
	}
	if err != nil {
		return nil, err
	}
	return decodeConversation(conversationID, data)
}

// Commit appends a turn inside an optimistic Redis transaction
func (s *RedisConversationStore) Commit(ctx context.Context, conversationID string, expectedVersion int64, turn Turn, activeResponder string) (*Conversation, error) {
	if err := validateCommit(conversationID, expectedVersion, turn, activeResponder); err != nil {
		return nil, err
	}
	if s.isClosed() {
		return nil, ErrStoreClosed
	}

	key := s.conversationKey(conversationID)
	var committed *Conversation

	txf := func(tx *redis.Tx) error {
		current := NewConversation(conversationID)
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return fmt.Errorf("redis get failed: %w", err)
		default:
			if current, err = decodeConversation(conversationID, data); err != nil {
				return err
			}
		}

		if current.Version != expectedVersion {
			return ErrVersionConflict
		}

		next := current.WithTurn(turn, activeResponder, s.now().UTC())
		payload, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to marshal conversation: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		if err == nil {
			committed = next
		}
		return err
	}

	for attempt := 0; ; attempt++ {
		err := s.redis.Client().Watch(ctx, txf, key)
		if err == nil {
			return committed, nil
		}
		if !errors.Is(err, redis.TxFailedErr) || attempt >= s.retry.MaxRetries {
			return nil, err
		}

		// 键在 WATCH 之后被修改，重新读取以判断是否版本冲突
		backoff := s.retry.CalculateBackoff(attempt)
		s.logger.Warn("conversation transaction aborted, retrying",
			zap.String("conversation_id", conversationID),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func decodeConversation(conversationID string, data []byte) (*Conversation, error) {
	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation %s: %w", conversationID, err)
	}
	if conv.Turns == nil {
		conv.Turns = []Turn{}
	}
	return &conv, nil
}
