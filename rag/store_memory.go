package rag

import (
	"context"
	"sort"
	"sync"
)

// MemoryCollectionStore keeps collections in process memory.
// It is durable only for the lifetime of the process.
type MemoryCollectionStore struct {
	mu          sync.RWMutex
	collections map[string]*Collection
	closed      bool
}

// NewMemoryCollectionStore creates an empty in-memory store.
func NewMemoryCollectionStore() *MemoryCollectionStore {
	return &MemoryCollectionStore{collections: make(map[string]*Collection)}
}

func (s *MemoryCollectionStore) Get(ctx context.Context, fingerprint string) (*Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	c, ok := s.collections[fingerprint]
	if !ok {
		return nil, ErrCollectionNotFound
	}
	return c.clone(), nil
}

func (s *MemoryCollectionStore) Exists(ctx context.Context, fingerprint string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, ErrStoreClosed
	}
	_, ok := s.collections[fingerprint]
	return ok, nil
}

func (s *MemoryCollectionStore) Put(ctx context.Context, c *Collection) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if _, ok := s.collections[c.Fingerprint]; ok {
		return ErrCollectionExists
	}
	s.collections[c.Fingerprint] = c.clone()
	return nil
}

func (s *MemoryCollectionStore) List(ctx context.Context) ([]CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	out := make([]CollectionInfo, 0, len(s.collections))
	for _, c := range s.collections {
		out = append(out, c.Info())
	}
	sortInfos(out)
	return out, nil
}

func (s *MemoryCollectionStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func sortInfos(infos []CollectionInfo) {
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].BuiltAt.Equal(infos[j].BuiltAt) {
			return infos[i].BuiltAt.Before(infos[j].BuiltAt)
		}
		return infos[i].Fingerprint < infos[j].Fingerprint
	})
}
