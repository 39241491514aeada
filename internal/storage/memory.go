package storage

import (
	"context"

	"github.com/patrickmn/go-cache"
)

// MemoryBackend keeps state for the lifetime of the process only
type MemoryBackend struct {
	cache  *cache.Cache
	origin string
}

// NewMemoryBackend returns an empty in-process store
func NewMemoryBackend(origin string) *MemoryBackend {
	return &MemoryBackend{
		cache:  cache.New(cache.NoExpiration, 0),
		origin: origin,
	}
}

func (b *MemoryBackend) key(key string) string {
	return b.origin + "\x00" + key
}

func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	x, found := b.cache.Get(b.key(key))
	if !found {
		return nil, ErrNotFound
	}
	stored := x.([]byte)
	value := make([]byte, len(stored))
	copy(value, stored)
	return value, nil
}

func (b *MemoryBackend) Set(_ context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	b.cache.Set(b.key(key), stored, cache.NoExpiration)
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.cache.Delete(b.key(key))
	return nil
}

func (b *MemoryBackend) Close() error {
	return nil
}
