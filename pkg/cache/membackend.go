package cache

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MemBackend is an in-process Backend with real TTL expiry, used in
// tests and cache-less local runs.
type MemBackend struct {
	mu      sync.Mutex
	entries map[string]memEntry
	clock   func() time.Time
}

type memEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// NewMemBackend creates an empty in-memory backend.
func NewMemBackend() *MemBackend {
	return &MemBackend{
		entries: make(map[string]memEntry),
		clock:   time.Now,
	}
}

func (b *MemBackend) Get(ctx context.Context, key string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[key]
	if !ok {
		return "", false, nil
	}
	if !e.expiresAt.IsZero() && !b.clock().Before(e.expiresAt) {
		delete(b.entries, key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (b *MemBackend) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := memEntry{value: value}
	if ttl > 0 {
		e.expiresAt = b.clock().Add(ttl)
	}
	b.entries[key] = e
	return nil
}

func (b *MemBackend) Delete(ctx context.Context, keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, key := range keys {
		delete(b.entries, key)
	}
	return nil
}

func (b *MemBackend) Incr(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := int64(0)
	if e, ok := b.entries[key]; ok {
		n, _ = strconv.ParseInt(e.value, 10, 64)
	}
	b.entries[key] = memEntry{value: strconv.FormatInt(n+1, 10)}
	return nil
}

func (b *MemBackend) Scan(ctx context.Context, prefix string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.clock()
	var keys []string
	for key, e := range b.entries {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// TTL reports the remaining lifetime of a key. Test helper.
func (b *MemBackend) TTL(key string) (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[key]
	if !ok {
		return 0, false
	}
	if e.expiresAt.IsZero() {
		return 0, true
	}
	return e.expiresAt.Sub(b.clock()), true
}
