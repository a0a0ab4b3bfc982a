package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store. It backs tests and throwaway local runs;
// nothing written to it survives a restart.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (ms *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	data, ok := ms.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (ms *MemoryStore) Put(ctx context.Context, key string, data []byte) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)
	ms.blobs[key] = stored
	return nil
}

func (ms *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	_, ok := ms.blobs[key]
	return ok, nil
}

func (ms *MemoryStore) List(ctx context.Context, prefix string) ([]string, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var keys []string
	for key := range ms.blobs {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (ms *MemoryStore) Close() error {
	return nil
}
