package rag

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Store errors
var (
	ErrCollectionNotFound = errors.New("collection not found")
	ErrCollectionExists   = errors.New("collection already exists")
	ErrStoreClosed        = errors.New("collection store is closed")
)

// Chunk is one span of a source document together with its embedding.
// Chunks are immutable once their collection is stored.
type Chunk struct {
	Index      int       `json:"index"`
	Text       string    `json:"text"`
	StartPos   int       `json:"start_pos"`
	EndPos     int       `json:"end_pos"`
	TokenCount int       `json:"token_count"`
	Embedding  []float64 `json:"embedding,omitempty"`
}

// ScoredChunk is a retrieval hit.
type ScoredChunk struct {
	Chunk
	Score float64 `json:"score"`
}

// Collection is the embedded form of one source document, keyed by its
// fingerprint. It is built once and never modified afterwards.
type Collection struct {
	Fingerprint string    `json:"fingerprint"`
	Model       string    `json:"model"`
	Dimensions  int       `json:"dimensions"`
	Chunks      []Chunk   `json:"chunks"`
	BuiltAt     time.Time `json:"built_at"`
}

// CollectionInfo summarizes a stored collection.
type CollectionInfo struct {
	Fingerprint string    `json:"fingerprint"`
	Model       string    `json:"model"`
	Dimensions  int       `json:"dimensions"`
	ChunkCount  int       `json:"chunk_count"`
	BuiltAt     time.Time `json:"built_at"`
}

// Info returns the collection summary.
func (c *Collection) Info() CollectionInfo {
	return CollectionInfo{
		Fingerprint: c.Fingerprint,
		Model:       c.Model,
		Dimensions:  c.Dimensions,
		ChunkCount:  len(c.Chunks),
		BuiltAt:     c.BuiltAt,
	}
}

// Validate checks that the collection is complete: every chunk is embedded
// with the declared dimensions and indexed by position.
func (c *Collection) Validate() error {
	if c == nil {
		return errors.New("collection is nil")
	}
	if c.Fingerprint == "" {
		return errors.New("collection fingerprint is required")
	}
	if len(c.Chunks) == 0 {
		return errors.New("collection has no chunks")
	}
	if c.Dimensions <= 0 {
		return errors.New("collection dimensions must be positive")
	}
	for i, ch := range c.Chunks {
		if ch.Index != i {
			return fmt.Errorf("chunk %d has index %d", i, ch.Index)
		}
		if len(ch.Embedding) != c.Dimensions {
			return fmt.Errorf("chunk %d embedding has %d dimensions, want %d", i, len(ch.Embedding), c.Dimensions)
		}
	}
	return nil
}

// clone copies the chunk slice; embeddings are shared since they are never mutated.
func (c *Collection) clone() *Collection {
	out := *c
	out.Chunks = append([]Chunk(nil), c.Chunks...)
	return &out
}

// CollectionStore durably holds built collections.
//
// Put is all-or-nothing and never overwrites: if a collection with the same
// fingerprint already exists it returns ErrCollectionExists and changes nothing.
type CollectionStore interface {
	// Get returns the collection or ErrCollectionNotFound.
	Get(ctx context.Context, fingerprint string) (*Collection, error)

	// Exists reports whether a complete collection is stored.
	Exists(ctx context.Context, fingerprint string) (bool, error)

	// Put stores a complete collection.
	Put(ctx context.Context, c *Collection) error

	// List summarizes the stored collections, oldest first.
	List(ctx context.Context) ([]CollectionInfo, error)

	// Close releases resources held by the store.
	Close() error
}
