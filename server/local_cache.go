// Copyright 2020 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"github.com/gorse-io/gorse-movies/config"
	"github.com/gorse-io/gorse-movies/dataset"
	"github.com/jellydator/ttlcache/v3"
)

// cacheKey identifies a result computed on a snapshot.
type cacheKey struct {
	snapshot    *dataset.Dataset
	recommender string
	id          string
	n           int
}

// LocalCache keeps recent recommendations in memory. A nil cache stores nothing.
type LocalCache struct {
	cache *ttlcache.Cache[cacheKey, []string]
}

// NewLocalCache creates a cache, or returns nil if the TTL is zero.
func NewLocalCache(cfg config.CacheConfig) *LocalCache {
	if cfg.TTL <= 0 {
		return nil
	}
	opts := []ttlcache.Option[cacheKey, []string]{
		ttlcache.WithTTL[cacheKey, []string](cfg.TTL),
		ttlcache.WithDisableTouchOnHit[cacheKey, []string](),
	}
	if cfg.Size > 0 {
		opts = append(opts, ttlcache.WithCapacity[cacheKey, []string](cfg.Size))
	}
	c := &LocalCache{cache: ttlcache.New[cacheKey, []string](opts...)}
	go c.cache.Start()
	return c
}

func (c *LocalCache) Get(key cacheKey) ([]string, bool) {
	if c == nil {
		return nil, false
	}
	item := c.cache.Get(key)
	if item == nil {
		CacheRequestsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	CacheRequestsTotal.WithLabelValues("hit").Inc()
	return item.Value(), true
}

func (c *LocalCache) Set(key cacheKey, value []string) {
	if c != nil {
		c.cache.Set(key, value, ttlcache.DefaultTTL)
	}
}

func (c *LocalCache) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.Len()
}

// Clear drops all entries.
func (c *LocalCache) Clear() {
	if c != nil {
		c.cache.DeleteAll()
	}
}

// Stop stops the expiration loop.
func (c *LocalCache) Stop() {
	if c != nil {
		c.cache.Stop()
	}
}
