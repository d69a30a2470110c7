package settings

import (
	"context"
	"sync"
)

// MemoryBackend keeps the last saved document in memory
type MemoryBackend struct {
	mu    sync.Mutex
	doc   *Document
	saves int
}

// NewMemoryBackend returns a backend seeded with doc, which may be nil
func NewMemoryBackend(doc *Document) *MemoryBackend {
	return &MemoryBackend{doc: doc}
}

func (b *MemoryBackend) Load(ctx context.Context) (*Document, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.doc == nil {
		return NewDocument(), nil
	}
	return b.doc.Clone(), nil
}

func (b *MemoryBackend) Save(ctx context.Context, doc *Document) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.doc = doc.Clone()
	b.saves++
	return nil
}

func (b *MemoryBackend) Close() error {
	return nil
}

// Saves returns how many times Save was called
func (b *MemoryBackend) Saves() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}
