// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package client

import (
	"encoding/json"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/dotehq/dote/internal/item"
)

// Cache is a sparse, id-keyed local copy of the server's item set. Every
// fetch refreshes it; every entry is stored under the item's id, so a
// removed id leaves a hole rather than shifting neighbors.
type Cache struct {
	mu    sync.Mutex
	items map[int]*item.Item
	ctime int64 // unix millis of the last cache write

	path string // optional on-disk mirror
}

type cacheFile struct {
	CTime int64        `json:"ctime"`
	Items []*item.Item `json:"items"`
}

// NewCache creates an empty in-memory cache
func NewCache() *Cache {
	return &Cache{items: make(map[int]*item.Item)}
}

// NewFileCache creates a cache mirrored to path, loading any existing
// contents. A missing or corrupt file yields an empty cache.
func NewFileCache(path string) *Cache {
	c := &Cache{items: make(map[int]*item.Item), path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		return c
	}

	var file cacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		return c
	}

	c.ctime = file.CTime
	for _, it := range file.Items {
		if it != nil {
			c.items[it.ID] = it
		}
	}
	return c
}

// Trusted reports whether the cache ctime is within tolerance of the
// server-reported ctime
func (c *Cache) Trusted(remoteCtime int64, tolerance time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	skew := c.ctime - remoteCtime
	if skew < 0 {
		skew = -skew
	}
	return skew < tolerance.Milliseconds()
}

// Get returns the cached item with the given id, nil on a miss
func (c *Cache) Get(id int) *item.Item {
	c.mu.Lock()
	defer c.mu.Unlock()

	if it, ok := c.items[id]; ok {
		return it.Clone()
	}
	return nil
}

// FindByUUID scans the cache for an item with the given uuid
func (c *Cache) FindByUUID(uuid string) *item.Item {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, it := range c.items {
		if it.UUID == uuid {
			return it.Clone()
		}
	}
	return nil
}

// Items returns all cached items ordered by id
func (c *Cache) Items() []*item.Item {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*item.Item, 0, len(c.items))
	for _, it := range c.items {
		out = append(out, it.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of cached items
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Update assigns each item into its id slot and bumps the cache ctime
func (c *Cache) Update(items []*item.Item) {
	c.mu.Lock()
	for _, it := range items {
		if it != nil {
			c.items[it.ID] = it.Clone()
		}
	}
	c.ctime = time.Now().UnixMilli()
	c.persistLocked()
	c.mu.Unlock()
}

// Reset discards all cached items
func (c *Cache) Reset() {
	c.mu.Lock()
	c.items = make(map[int]*item.Item)
	c.ctime = time.Now().UnixMilli()
	c.persistLocked()
	c.mu.Unlock()
}

// persistLocked mirrors the cache to disk when a path is configured.
// Callers must hold mu. Write errors are swallowed: the cache file is an
// optimization, not a source of truth.
func (c *Cache) persistLocked() {
	if c.path == "" {
		return
	}

	file := cacheFile{CTime: c.ctime, Items: make([]*item.Item, 0, len(c.items))}
	for _, it := range c.items {
		file.Items = append(file.Items, it)
	}
	sort.Slice(file.Items, func(i, j int) bool { return file.Items[i].ID < file.Items[j].ID })

	data, err := json.Marshal(&file)
	if err != nil {
		return
	}
	_ = os.WriteFile(c.path, data, 0644)
}
