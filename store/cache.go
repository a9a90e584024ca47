// store/cache.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package store

import (
	"context"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cached keeps recently used objects in memory in front of another
// Store. It assumes that it is the only writer to the underlying store.
type Cached struct {
	s     Store
	cache *expirable.LRU[string, []byte]
}

// NewCached wraps s with an LRU cache of the given size; entries expire
// after ttl, or never if ttl is zero.
func NewCached(s Store, size int, ttl time.Duration) *Cached {
	return &Cached{s: s, cache: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (c *Cached) Get(ctx context.Context, name string) ([]byte, error) {
	if b, ok := c.cache.Get(name); ok {
		return slices.Clone(b), nil
	}
	b, err := c.s.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	c.cache.Add(name, slices.Clone(b))
	return b, nil
}

func (c *Cached) Put(ctx context.Context, name string, data []byte) error {
	if err := c.s.Put(ctx, name, data); err != nil {
		c.cache.Remove(name)
		return err
	}
	c.cache.Add(name, slices.Clone(data))
	return nil
}

func (c *Cached) List(ctx context.Context, prefix string) ([]string, error) {
	return c.s.List(ctx, prefix)
}

func (c *Cached) Delete(ctx context.Context, name string) error {
	c.cache.Remove(name)
	return c.s.Delete(ctx, name)
}

func (c *Cached) Close() error {
	c.cache.Purge()
	return c.s.Close()
}
