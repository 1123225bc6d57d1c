/*
DESCRIPTION
  Session wishlist membership and reverse lookups.

LICENSE
  Copyright (C) 2026 the OpenConf project.

  This is free software: you can redistribute it and/or modify it
  under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.

  This is distributed in the hope that it will be useful, but WITHOUT
  ANY WARRANTY; without even the implied warranty of MERCHANTABILITY
  or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU General Public
  License for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see http://www.gnu.org/licenses/.
*/

package model

import (
	"context"

	"github.com/openconf/cloud/datastore"
)

// AddSessionToWishlist adds the session referenced by the websafe key
// wssk to the user's wishlist and returns the session. The key must
// genuinely reference an existing session. The operation is
// idempotent: adding an already-present key is a no-op success.
func AddSessionToWishlist(ctx context.Context, store datastore.Store, userID, email, wssk string) (*Session, error) {
	s, err := GetSession(ctx, store, wssk)
	if err != nil {
		return nil, err
	}
	_, err = GetOrCreateProfile(ctx, store, userID, "", email)
	if err != nil {
		return nil, err
	}
	var p Profile
	err = store.Update(ctx, ProfileKey(store, userID), func(e datastore.Entity) {
		prof := e.(*Profile)
		for _, k := range prof.Wishlist {
			if k == wssk {
				return
			}
		}
		prof.Wishlist = append(prof.Wishlist, wssk)
	}, &p)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetSessionsInWishlist returns the sessions currently referenced by
// the user's wishlist, resolved by bulk lookup. Keys of deleted
// sessions are simply omitted.
func GetSessionsInWishlist(ctx context.Context, store datastore.Store, userID string) ([]Session, []*datastore.Key, error) {
	p, err := GetProfile(ctx, store, userID)
	if err == datastore.ErrNoSuchEntity {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	var keys []*datastore.Key
	for _, wssk := range p.Wishlist {
		key, err := sessionKey(wssk)
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	dst := make([]datastore.Entity, len(keys))
	for i := range dst {
		dst[i] = new(Session)
	}
	merr, err := resolveMulti(ctx, store, keys, dst)
	if err != nil {
		return nil, nil, err
	}
	var sessions []Session
	var found []*datastore.Key
	for i, e := range dst {
		if merr != nil && merr[i] != nil {
			continue
		}
		sessions = append(sessions, *e.(*Session))
		found = append(found, keys[i])
	}
	return sessions, found, nil
}

// AttendersOfConference returns the profiles registered for the
// conference referenced by wsck. This scans every profile and is
// O(number of profiles); a secondary index would remove the scan
// without changing observable behavior.
func AttendersOfConference(ctx context.Context, store datastore.Store, wsck string) ([]Profile, error) {
	return attenders(ctx, store, wsck, func(p *Profile) []string { return p.Attending })
}

// AttendersOfSession returns the profiles with the session referenced
// by wssk on their wishlist. Like AttendersOfConference, this is
// O(number of profiles).
func AttendersOfSession(ctx context.Context, store datastore.Store, wssk string) ([]Profile, error) {
	return attenders(ctx, store, wssk, func(p *Profile) []string { return p.Wishlist })
}

func attenders(ctx context.Context, store datastore.Store, wsk string, set func(*Profile) []string) ([]Profile, error) {
	profiles, err := GetAllProfiles(ctx, store)
	if err != nil {
		return nil, err
	}
	var matched []Profile
	for i := range profiles {
		for _, k := range set(&profiles[i]) {
			if k == wsk {
				matched = append(matched, profiles[i])
				break
			}
		}
	}
	return matched, nil
}
