/*
DESCRIPTION
  Cache tests.

LICENSE
  Copyright (C) 2026 the OpenConf project.

  This file is free software: you can redistribute it and/or modify it
  under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.

  This is distributed in the hope that it will be useful, but WITHOUT
  ANY WARRANTY; without even the implied warranty of MERCHANTABILITY
  or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU General Public
  License for more details.

  You should have received a copy of the GNU General Public License in
  gpl.txt. If not, see http://www.gnu.org/licenses/.
*/

package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemCache(t *testing.T) {
	c := NewMemCache()

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("greeting", "hello")
	v, ok := c.Get("greeting")
	assert.True(t, ok)
	assert.Equal(t, "hello", v)

	// Overwrites replace the value.
	c.Set("greeting", "goodbye")
	v, _ = c.Get("greeting")
	assert.Equal(t, "goodbye", v)

	c.Delete("greeting")
	_, ok = c.Get("greeting")
	assert.False(t, ok)

	// Deleting a missing key is fine.
	c.Delete("greeting")
}

func TestMemCacheExpiry(t *testing.T) {
	c := NewMemCache()

	c.SetFor("fleeting", "value", 20*time.Millisecond)
	v, ok := c.Get("fleeting")
	assert.True(t, ok)
	assert.Equal(t, "value", v)

	time.Sleep(30 * time.Millisecond)
	_, ok = c.Get("fleeting")
	assert.False(t, ok)

	// Entries set without a duration do not expire.
	c.Set("lasting", "value")
	time.Sleep(30 * time.Millisecond)
	_, ok = c.Get("lasting")
	assert.True(t, ok)
}
