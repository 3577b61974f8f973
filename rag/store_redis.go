package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/BaSui01/agentswarm/internal/cache"
	"go.uber.org/zap"
)

// RedisCollectionStore stores each collection as one JSON value. SET NX makes
// the write atomic and exclusive across processes.
type RedisCollectionStore struct {
	redis  *cache.Manager
	prefix string
	logger *zap.Logger
}

// NewRedisCollectionStore uses a shared Redis manager; Close does not close it.
func NewRedisCollectionStore(mgr *cache.Manager, keyPrefix string, logger *zap.Logger) (*RedisCollectionStore, error) {
	if mgr == nil {
		return nil, errors.New("redis manager is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCollectionStore{
		redis:  mgr,
		prefix: keyPrefix + "collection:",
		logger: logger.With(zap.String("component", "collection_store"), zap.String("backend", "redis")),
	}, nil
}

func (s *RedisCollectionStore) key(fingerprint string) string {
	return s.prefix + fingerprint
}

func (s *RedisCollectionStore) Get(ctx context.Context, fingerprint string) (*Collection, error) {
	data, err := s.redis.Get(ctx, s.key(fingerprint))
	if cache.IsCacheMiss(err) {
		return nil, ErrCollectionNotFound
	}
	if err != nil {
		return nil, err
	}
	var f collectionFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode collection %s: %w", fingerprint, err)
	}
	return &Collection{
		Fingerprint: f.Fingerprint,
		Model:       f.Model,
		Dimensions:  f.Dimensions,
		Chunks:      f.Chunks,
		BuiltAt:     f.BuiltAt,
	}, nil
}

func (s *RedisCollectionStore) Exists(ctx context.Context, fingerprint string) (bool, error) {
	return s.redis.Exists(ctx, s.key(fingerprint))
}

func (s *RedisCollectionStore) Put(ctx context.Context, c *Collection) error {
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(collectionFile{CollectionInfo: c.Info(), Chunks: c.Chunks})
	if err != nil {
		return fmt.Errorf("encode collection: %w", err)
	}
	ok, err := s.redis.SetNX(ctx, s.key(c.Fingerprint), data, 0)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCollectionExists
	}
	s.logger.Debug("collection written", zap.String("fingerprint", c.Fingerprint), zap.Int("bytes", len(data)))
	return nil
}

func (s *RedisCollectionStore) List(ctx context.Context) ([]CollectionInfo, error) {
	keys, err := s.redis.Keys(ctx, s.prefix+"*")
	if err != nil {
		return nil, err
	}
	out := make([]CollectionInfo, 0, len(keys))
	for _, k := range keys {
		data, err := s.redis.Get(ctx, k)
		if cache.IsCacheMiss(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var info CollectionInfo
		if err := json.Unmarshal(data, &info); err != nil {
			s.logger.Warn("skipping unreadable collection", zap.String("key", k), zap.Error(err))
			continue
		}
		if info.Fingerprint == "" {
			info.Fingerprint = strings.TrimPrefix(k, s.prefix)
		}
		out = append(out, info)
	}
	sortInfos(out)
	return out, nil
}

func (s *RedisCollectionStore) Close() error { return nil }
