/*
DESCRIPTION
  Key-value cache for derived values.

LICENSE
  Copyright (C) 2026 the OpenConf project.

  This is free software: you can redistribute it and/or modify it
  under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.

  It is distributed in the hope that it will be useful,
  but WITHOUT ANY WARRANTY; without even the implied warranty of
  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
  GNU General Public License for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see http://www.gnu.org/licenses/.
*/

// Package cache provides a small key-value cache for derived string
// values such as announcements. The cache is an explicit dependency
// of its consumers, populated by recomputation triggers and read by
// query operations; there are no global singletons.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// cleanupInterval is how often expired entries are purged.
const cleanupInterval = 10 * time.Minute

// Cache defines the cache interface.
type Cache interface {
	// Set adds or updates a value that does not expire.
	Set(key, value string)

	// SetFor adds or updates a value that expires after d.
	SetFor(key, value string, d time.Duration)

	// Get retrieves a value, reporting whether the key was present.
	Get(key string) (string, bool)

	// Delete removes a value. Deleting an absent key is a no-op.
	Delete(key string)
}

// MemCache implements Cache in process memory.
type MemCache struct {
	cache *gocache.Cache
}

// NewMemCache returns a new MemCache.
func NewMemCache() *MemCache {
	return &MemCache{cache: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

// Set adds or updates a value that does not expire.
func (c *MemCache) Set(key, value string) {
	c.cache.Set(key, value, gocache.NoExpiration)
}

// SetFor adds or updates a value that expires after d.
func (c *MemCache) SetFor(key, value string, d time.Duration) {
	c.cache.Set(key, value, d)
}

// Get retrieves a value, reporting whether the key was present.
func (c *MemCache) Get(key string) (string, bool) {
	v, ok := c.cache.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Delete removes a value.
func (c *MemCache) Delete(key string) {
	c.cache.Delete(key)
}
