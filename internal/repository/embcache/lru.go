package embcache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kailas-cloud/revdex/internal/db"
)

// LRU is an in-process store for deployments whose vector store has no
// key-value commands (postgres, memory). Entries expire after the TTL given
// to NewLRU; the per-call ttl is ignored.
type LRU struct {
	cache *expirable.LRU[string, []byte]
}

// NewLRU creates a bounded cache. ttl 0 disables expiry.
func NewLRU(size int, ttl time.Duration) *LRU {
	if size <= 0 {
		size = 10000
	}
	return &LRU{cache: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

// Get returns db.ErrKeyNotFound on a miss.
func (l *LRU) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := l.cache.Get(key)
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

// SetWithTTL stores value under key.
func (l *LRU) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	l.cache.Add(key, value)
	return nil
}

// Len returns the number of cached entries.
func (l *LRU) Len() int { return l.cache.Len() }
