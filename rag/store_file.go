package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// FileCollectionStore stores one JSON file per collection under a directory.
// A collection file appears atomically: it is written to a temp file and
// then hard-linked into place, which fails if the target already exists.
type FileCollectionStore struct {
	dir    string
	logger *zap.Logger
	mu     sync.RWMutex
	closed bool
}

// collectionFile is the on-disk layout; the summary fields precede the chunks.
type collectionFile struct {
	CollectionInfo
	Chunks []Chunk `json:"chunks"`
}

// NewFileCollectionStore creates the directory if needed.
func NewFileCollectionStore(dir string, logger *zap.Logger) (*FileCollectionStore, error) {
	if dir == "" {
		return nil, errors.New("collection directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create collection directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileCollectionStore{
		dir:    dir,
		logger: logger.With(zap.String("component", "collection_store"), zap.String("backend", "file")),
	}, nil
}

func (s *FileCollectionStore) path(fingerprint string) (string, error) {
	digest := fingerprintDigest(fingerprint)
	if digest == "" || strings.ContainsAny(digest, `/\.`) {
		return "", fmt.Errorf("invalid fingerprint %q", fingerprint)
	}
	return filepath.Join(s.dir, digest+".json"), nil
}

func (s *FileCollectionStore) Get(ctx context.Context, fingerprint string) (*Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	p, err := s.path(fingerprint)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrCollectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read collection: %w", err)
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

func (s *FileCollectionStore) Exists(ctx context.Context, fingerprint string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, ErrStoreClosed
	}
	p, err := s.path(fingerprint)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *FileCollectionStore) Put(ctx context.Context, c *Collection) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	final, err := s.path(c.Fingerprint)
	if err != nil {
		return err
	}

	data, err := json.Marshal(collectionFile{CollectionInfo: c.Info(), Chunks: c.Chunks})
	if err != nil {
		return fmt.Errorf("encode collection: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".build-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write collection: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync collection: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close collection: %w", err)
	}

	if err := os.Link(tmpName, final); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ErrCollectionExists
		}
		return fmt.Errorf("publish collection: %w", err)
	}

	s.logger.Debug("collection written", zap.String("path", final), zap.Int("bytes", len(data)))
	return nil
}

func (s *FileCollectionStore) List(ctx context.Context) ([]CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read collection directory: %w", err)
	}

	out := make([]CollectionInfo, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := os.Open(filepath.Join(s.dir, name))
		if err != nil {
			return nil, err
		}
		var info CollectionInfo
		err = json.NewDecoder(f).Decode(&info)
		f.Close()
		if err != nil {
			s.logger.Warn("skipping unreadable collection file", zap.String("file", name), zap.Error(err))
			continue
		}
		out = append(out, info)
	}
	sortInfos(out)
	return out, nil
}

func (s *FileCollectionStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
