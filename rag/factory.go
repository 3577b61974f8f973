package rag

import (
	"fmt"

	"github.com/BaSui01/agentswarm/internal/cache"
	"github.com/BaSui01/agentswarm/internal/database"
	"go.uber.org/zap"
)

// StoreType selects a collection store backend.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeFile   StoreType = "file"
	StoreTypeRedis  StoreType = "redis"
	StoreTypeSQL    StoreType = "sql"
)

// StoreOptions configures NewCollectionStore. Redis and DB are shared
// connections owned by the caller.
type StoreOptions struct {
	Type      StoreType
	Dir       string
	KeyPrefix string
	Redis     *cache.Manager
	DB        *database.PoolManager
	Logger    *zap.Logger
}

// NewCollectionStore creates a CollectionStore based on the configuration.
func NewCollectionStore(opts StoreOptions) (CollectionStore, error) {
	switch opts.Type {
	case StoreTypeMemory:
		return NewMemoryCollectionStore(), nil
	case StoreTypeFile:
		return NewFileCollectionStore(opts.Dir, opts.Logger)
	case StoreTypeRedis:
		return NewRedisCollectionStore(opts.Redis, opts.KeyPrefix, opts.Logger)
	case StoreTypeSQL:
		return NewSQLCollectionStore(opts.DB, opts.Logger)
	default:
		return nil, fmt.Errorf("unsupported collection store type: %s", opts.Type)
	}
}
