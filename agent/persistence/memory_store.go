package persistence

import (
	"context"
	"sync"
	"time"
)

// MemoryConversationStore is an in-memory implementation of ConversationStore.
// Suitable for development and testing. Data is lost on restart.
type MemoryConversationStore struct {
	conversations map[string]*Conversation
	mu            sync.RWMutex
	closed        bool
	now           func() time.Time
}

// NewMemoryConversationStore creates a new in-memory conversation store
func NewMemoryConversationStore() *MemoryConversationStore {
	return &MemoryConversationStore{
		conversations: make(map[string]*Conversation),
		now:           time.Now,
	}
}

// Close closes the store
func (s *MemoryConversationStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ping checks if the store is healthy
func (s *MemoryConversationStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Load returns a copy of the stored conversation
func (s *MemoryConversationStore) Load(ctx context.Context, conversationID string) (*Conversation, error) {
	if err := validateID(conversationID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	conv, ok := s.conversations[conversationID]
	if !ok {
		return NewConversation(conversationID), nil
	}
	return conv.Clone(), nil
}

// Commit appends a turn under the version check
func (s *MemoryConversationStore) Commit(ctx context.Context, conversationID string, expectedVersion int64, turn Turn, activeResponder string) (*Conversation, error) {
	if err := validateCommit(conversationID, expectedVersion, turn, activeResponder); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	current, ok := s.conversations[conversationID]
	if !ok {
		current = NewConversation(conversationID)
	}
	if current.Version != expectedVersion {
		return nil, ErrVersionConflict
	}

	next := current.WithTurn(turn, activeResponder, s.now().UTC())
	s.conversations[conversationID] = next
	return next.Clone(), nil
}
