package persistence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// FileConversationStore 基于文件的 ConversationStore 实现，每个会话一个 JSON 文件。
// 适合单节点部署：版本检查由进程内的按会话互斥锁保证。
type FileConversationStore struct {
	baseDir string
	logger  *zap.Logger

	mu     sync.RWMutex // 保护 closed
	closed bool
	locks  sync.Map // conversationID -> *sync.Mutex
	now    func() time.Time
}

// NewFileConversationStore 创建文件会话存储
func NewFileConversationStore(config StoreConfig, logger *zap.Logger) (*FileConversationStore, error) {
	if config.BaseDir == "" {
		return nil, fmt.Errorf("%w: base_dir is required for the file store", ErrInvalidInput)
	}
	baseDir := filepath.Join(config.BaseDir, "conversations")
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create conversation store directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileConversationStore{
		baseDir: baseDir,
		logger:  logger.With(zap.String("component", "conversation_store"), zap.String("backend", "file")),
		now:     time.Now,
	}, nil
}

// 会话 ID 是不透明的，文件名使用其摘要
func (s *FileConversationStore) path(conversationID string) string {
	sum := sha256.Sum256([]byte(conversationID))
	return filepath.Join(s.baseDir, hex.EncodeToString(sum[:])+".json")
}

func (s *FileConversationStore) lock(conversationID string) *sync.Mutex {
	m, _ := s.locks.LoadOrStore(conversationID, &sync.Mutex{})
	return m.(*sync.Mutex)
}

// Close 关闭存储
func (s *FileConversationStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ping 检查目录是否可访问
func (s *FileConversationStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	_, err := os.Stat(s.baseDir)
	return err
}

// Load 从磁盘读取会话
func (s *FileConversationStore) Load(ctx context.Context, conversationID string) (*Conversation, error) {
	if err := validateID(conversationID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	return s.read(conversationID)
}

func (s *FileConversationStore) read(conversationID string) (*Conversation, error) {
	data, err := os.ReadFile(s.path(conversationID))
	if errors.Is(err, fs.ErrNotExist) {
		return NewConversation(conversationID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read conversation: %w", err)
	}
	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("decode conversation %s: %w", conversationID, err)
	}
	if conv.Turns == nil {
		conv.Turns = []Turn{}
	}
	return &conv, nil
}

// Commit 在版本匹配时追加轮次，写临时文件后原子重命名
func (s *FileConversationStore) Commit(ctx context.Context, conversationID string, expectedVersion int64, turn Turn, activeResponder string) (*Conversation, error) {
	if err := validateCommit(conversationID, expectedVersion, turn, activeResponder); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	l := s.lock(conversationID)
	l.Lock()
	defer l.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	current, err := s.read(conversationID)
	if err != nil {
		return nil, err
	}
	if current.Version != expectedVersion {
		return nil, ErrVersionConflict
	}

	next := current.WithTurn(turn, activeResponder, s.now().UTC())
	if err := s.write(next); err != nil {
		return nil, err
	}

	s.logger.Debug("conversation committed",
		zap.String("conversation_id", conversationID),
		zap.Int64("version", next.Version))
	return next, nil
}

func (s *FileConversationStore) write(conv *Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}

	tmp, err := os.CreateTemp(s.baseDir, ".commit-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write conversation: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync conversation: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close conversation: %w", err)
	}

	// 原子写: 写入临时文件后重命名
	if err := os.Rename(tmpName, s.path(conv.ID)); err != nil {
		return fmt.Errorf("publish conversation: %w", err)
	}
	return nil
}
