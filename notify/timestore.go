/*
DESCRIPTION
  Notification persistence for rate limiting repeat messages.

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

package notify

import (
	"context"
	"time"

	"github.com/openconf/cloud/cache"
)

// TimeStore is an interface for notification persistence.
type TimeStore interface {
	Sendable(context.Context, string) (bool, error) // Returns true if a message is sendable.
	Sent(context.Context, string) error             // Records the time a message was sent.
}

// timeStore implements a TimeStore that uses an expiring cache entry
// per message key. While the entry lives, messages with that key are
// suppressed.
type timeStore struct {
	cache  cache.Cache
	period time.Duration
}

// NewCacheStore returns a TimeStore that suppresses repeat messages
// within the given period of an earlier send.
func NewCacheStore(c cache.Cache, period time.Duration) TimeStore {
	return &timeStore{cache: c, period: period}
}

func (ts *timeStore) Sendable(ctx context.Context, key string) (bool, error) {
	_, ok := ts.cache.Get("sent." + key)
	return !ok, nil
}

func (ts *timeStore) Sent(ctx context.Context, key string) error {
	ts.cache.SetFor("sent."+key, time.Now().UTC().Format(time.RFC3339), ts.period)
	return nil
}
