package client

import (
	"context"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/timada-org/todos/pkg/topic"
)

// Cache stores fetched values under topic names. Concurrent fetches of the
// same key share one call and failures are never stored.
type Cache struct {
	mux     sync.RWMutex
	entries map[string]any
	epoch   uint64
	group   singleflight.Group
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]any)}
}

// Fetch returns the cached value of key or calls load to fill it. A value
// loaded while the key was invalidated is returned but not stored. load runs
// without the caller's cancellation, as other callers may share it.
func (c *Cache) Fetch(ctx context.Context, key string, load func(ctx context.Context) (any, error)) (any, error) {
	name, err := topic.NewName(key)
	if err != nil {
		return nil, err
	}

	c.mux.RLock()
	value, ok := c.entries[name.Value]
	epoch := c.epoch
	c.mux.RUnlock()

	if ok {
		return value, nil
	}

	flight := name.Value + "@" + strconv.FormatUint(epoch, 10)

	loadCtx := context.WithoutCancel(ctx)

	ch := c.group.DoChan(flight, func() (any, error) {
		value, err := load(loadCtx)
		if err != nil {
			return nil, err
		}

		c.mux.Lock()
		if c.epoch == epoch {
			c.entries[name.Value] = value
		}
		c.mux.Unlock()

		return value, nil
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops every key matched by filter.
func (c *Cache) Invalidate(filter *topic.TopicFilter) {
	c.mux.Lock()
	defer c.mux.Unlock()

	c.epoch++

	for key := range c.entries {
		if filter.Match(topic.MustName(key)) {
			delete(c.entries, key)
		}
	}
}

func (c *Cache) Clear() {
	c.mux.Lock()
	defer c.mux.Unlock()

	c.epoch++
	c.entries = make(map[string]any)
}

func (c *Cache) Len() int {
	c.mux.RLock()
	defer c.mux.RUnlock()

	return len(c.entries)
}

// Fetch is Cache.Fetch for a typed loader.
func Fetch[T any](ctx context.Context, c *Cache, key string, load func(ctx context.Context) (T, error)) (T, error) {
	value, err := c.Fetch(ctx, key, func(ctx context.Context) (any, error) {
		return load(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}

	return value.(T), nil
}
