/*
DESCRIPTION
  Recomputation of derived cache values: the nearly-sold-out
  announcement and per-conference featured speakers.

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

// Package recompute maintains derived cache values from datastore
// state. Recomputations are triggered asynchronously, may run more
// than once for the same event, and are idempotent. Readers never
// block on recomputation and may observe stale values between a
// mutating event and the trigger that follows it.
package recompute

import (
	"context"
	"strings"

	"github.com/openconf/cloud/cache"
	"github.com/openconf/cloud/datastore"
	"github.com/openconf/cloud/model"
)

// Cache keys. The featured speaker key is per conference, suffixed
// with the conference's websafe key.
const (
	announcementKey       = "recentAnnouncements"
	featuredSpeakerPrefix = "featuredSpeaker."
)

const announcementIntro = "Last chance to attend! The following conferences are nearly sold out: "

// featuredSpeakerMin is the session count from which a speaker is
// considered featured in a conference.
const featuredSpeakerMin = 2

// Recomputer recomputes derived cache values from the datastore.
type Recomputer struct {
	store datastore.Store
	cache cache.Cache
}

// NewRecomputer returns a new Recomputer reading from store and
// writing to cache.
func NewRecomputer(store datastore.Store, cache cache.Cache) *Recomputer {
	return &Recomputer{store: store, cache: cache}
}

// RefreshAnnouncement recomputes the nearly-sold-out announcement:
// conferences with seats remaining but five or fewer are named in a
// single announcement string, which replaces the previous one. When
// no conference qualifies the announcement is cleared. The composed
// announcement is returned.
func (r *Recomputer) RefreshAnnouncement(ctx context.Context) (string, error) {
	confs, err := model.NearlySoldOutConferences(ctx, r.store)
	if err != nil {
		return "", err
	}
	if len(confs) == 0 {
		r.cache.Delete(announcementKey)
		return "", nil
	}
	names := make([]string, len(confs))
	for i, c := range confs {
		names[i] = c.Name
	}
	announcement := announcementIntro + strings.Join(names, ", ")
	r.cache.Set(announcementKey, announcement)
	return announcement, nil
}

// Announcement returns the cached announcement, or an empty string
// when unset.
func (r *Recomputer) Announcement(ctx context.Context) string {
	announcement, _ := r.cache.Get(announcementKey)
	return announcement
}

// CheckFeaturedSpeaker recomputes the featured speaker for the
// conference referenced by wsck in response to a session creation by
// the given speaker. A speaker giving two or more sessions in the
// conference becomes the featured speaker. The promotion is one-way:
// with fewer than two sessions nothing is written and any previously
// featured speaker is left untouched. Duplicate deliveries of the
// same trigger recompute the same value.
func (r *Recomputer) CheckFeaturedSpeaker(ctx context.Context, wsck, speaker string) error {
	_, err := model.GetConference(ctx, r.store, wsck)
	if err != nil {
		return err
	}
	sessions, err := model.GetSpeakerSessionsInConference(ctx, r.store, wsck, speaker)
	if err != nil {
		return err
	}
	if len(sessions) >= featuredSpeakerMin {
		r.cache.Set(featuredSpeakerPrefix+wsck, speaker)
	}
	return nil
}

// FeaturedSpeaker returns the featured speaker cached for the
// conference referenced by wsck, or an empty string when none is
// set. Conference existence is re-validated, so a stale key for a
// deleted conference yields ErrNoSuchEntity rather than a value.
func (r *Recomputer) FeaturedSpeaker(ctx context.Context, wsck string) (string, error) {
	_, err := model.GetConference(ctx, r.store, wsck)
	if err != nil {
		return "", err
	}
	speaker, _ := r.cache.Get(featuredSpeakerPrefix + wsck)
	return speaker, nil
}
