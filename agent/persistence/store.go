package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/BaSui01/agentswarm/internal/cache"
	"github.com/BaSui01/agentswarm/internal/database"
	"go.uber.org/zap"
)

// Common errors
var (
	ErrVersionConflict = errors.New("conversation version conflict")
	ErrStoreClosed     = errors.New("store is closed")
	ErrInvalidInput    = errors.New("invalid input")
)

// StoreType represents the type of storage backend
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeFile   StoreType = "file"
	StoreTypeRedis  StoreType = "redis"
	StoreTypeSQL    StoreType = "sql"
)

// RetryConfig defines retry behavior for optimistic transactions that were
// interrupted without a version change (Redis WATCH aborts).
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (default: 3)
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// InitialBackoff is the initial backoff duration (default: 10ms)
	InitialBackoff time.Duration `json:"initial_backoff" yaml:"initial_backoff"`

	// MaxBackoff is the maximum backoff duration (default: 200ms)
	MaxBackoff time.Duration `json:"max_backoff" yaml:"max_backoff"`

	// BackoffMultiplier is the multiplier for exponential backoff (default: 2.0)
	BackoffMultiplier float64 `json:"backoff_multiplier" yaml:"backoff_multiplier"`
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    10 * time.Millisecond,
		MaxBackoff:        200 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

// CalculateBackoff calculates the backoff duration for a given retry attempt
func (c RetryConfig) CalculateBackoff(attempt int) time.Duration {
	if attempt <= 0 {
		return c.InitialBackoff
	}

	backoff := c.InitialBackoff
	for i := 0; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * c.BackoffMultiplier)
		if backoff > c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	return backoff
}

// StoreConfig is the configuration for all store implementations
type StoreConfig struct {
	// Type is the storage backend type
	Type StoreType `json:"type" yaml:"type"`

	// BaseDir is the base directory for file-based storage
	BaseDir string `json:"base_dir" yaml:"base_dir"`

	// KeyPrefix is the prefix for all Redis keys
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`

	// Retry configuration
	Retry RetryConfig `json:"retry" yaml:"retry"`
}

// DefaultStoreConfig returns the default store configuration
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type:      StoreTypeMemory,
		BaseDir:   "./data/conversations",
		KeyPrefix: "agentswarm:",
		Retry:     DefaultRetryConfig(),
	}
}

// Dependencies are the shared connections a store may need. The caller owns
// them; stores never close them.
type Dependencies struct {
	Redis  *cache.Manager
	DB     *database.PoolManager
	Logger *zap.Logger
}

// Store is the base interface for all persistent stores
type Store interface {
	// Close closes the store and releases resources
	Close() error

	// Ping checks if the store is healthy
	Ping(ctx context.Context) error
}

// ConversationStore persists conversations with optimistic concurrency.
type ConversationStore interface {
	Store

	// Load returns the conversation, or an empty one at version 0 when the id
	// has never been committed.
	Load(ctx context.Context, conversationID string) (*Conversation, error)

	// Commit appends turn and sets the active responder, only if the stored
	// version equals expectedVersion. On mismatch nothing changes and
	// ErrVersionConflict is returned.
	Commit(ctx context.Context, conversationID string, expectedVersion int64, turn Turn, activeResponder string) (*Conversation, error)
}
