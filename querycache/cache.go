package querycache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/contenox/chatstate/chattypes"
	"github.com/contenox/chatstate/libkvstore"
)

// Invalidator marks a key stale. Errors must reach the caller.
type Invalidator interface {
	Invalidate(ctx context.Context, key Key) error
}

// Cache stores fetched lists. found is false on a miss.
type Cache interface {
	Invalidator
	Load(ctx context.Context, key Key) (msgs []chattypes.Message, found bool, err error)
	Store(ctx context.Context, key Key, msgs []chattypes.Message) error
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[Key][]chattypes.Message
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[Key][]chattypes.Message)}
}

func (c *MemoryCache) Load(_ context.Context, key Key) ([]chattypes.Message, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	msgs, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	return chattypes.CloneMessages(msgs), true, nil
}

func (c *MemoryCache) Store(_ context.Context, key Key, msgs []chattypes.Message) error {
	c.mu.Lock()
	c.entries[key] = chattypes.CloneMessages(msgs)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Invalidate(ctx context.Context, key Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// KVCache keeps entries in valkey so several processes share them.
type KVCache struct {
	kv     libkvstore.KVManager
	prefix string
	ttl    time.Duration
}

// NewKVCache stores entries under prefix+key. A zero ttl keeps entries
// until they are invalidated.
func NewKVCache(kv libkvstore.KVManager, prefix string, ttl time.Duration) *KVCache {
	return &KVCache{kv: kv, prefix: prefix, ttl: ttl}
}

func (c *KVCache) storageKey(key Key) string {
	return c.prefix + key.String()
}

func (c *KVCache) Load(ctx context.Context, key Key) ([]chattypes.Message, bool, error) {
	exec, err := c.kv.Executor(ctx)
	if err != nil {
		return nil, false, err
	}
	raw, err := exec.Get(ctx, c.storageKey(key))
	if errors.Is(err, libkvstore.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var msgs []chattypes.Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, false, fmt.Errorf("querycache: decode %s: %w", key, err)
	}
	return msgs, true, nil
}

func (c *KVCache) Store(ctx context.Context, key Key, msgs []chattypes.Message) error {
	if msgs == nil {
		msgs = []chattypes.Message{}
	}
	raw, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("querycache: encode %s: %w", key, err)
	}
	exec, err := c.kv.Executor(ctx)
	if err != nil {
		return err
	}
	if c.ttl > 0 {
		return exec.SetWithTTL(ctx, c.storageKey(key), raw, c.ttl)
	}
	return exec.Set(ctx, c.storageKey(key), raw)
}

func (c *KVCache) Invalidate(ctx context.Context, key Key) error {
	exec, err := c.kv.Executor(ctx)
	if err != nil {
		return err
	}
	return exec.Delete(ctx, c.storageKey(key))
}

// Chain invalidates through every member in order and stops at the first
// error.
type Chain []Invalidator

func (c Chain) Invalidate(ctx context.Context, key Key) error {
	for _, inv := range c {
		if inv == nil {
			continue
		}
		if err := inv.Invalidate(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

var (
	_ Cache       = (*MemoryCache)(nil)
	_ Cache       = (*KVCache)(nil)
	_ Invalidator = Chain(nil)
)
