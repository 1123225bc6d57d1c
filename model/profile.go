/*
DESCRIPTION
  Datastore profile type and functions.

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
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/openconf/cloud/datastore"
)

// typeProfile is the name of the datastore profile type.
const typeProfile = "Profile"

// Profile represents a user of the conference service. One profile
// exists per user identity and is created lazily on first access.
// The Attending and Wishlist sets hold websafe keys of conferences
// the user is registered for and sessions the user is interested in.
// Profiles are mutated by the registration ledger and the wishlist,
// so they are not cached.
type Profile struct {
	UserID      string    // Opaque user identity.
	DisplayName string    // Display name shown to other users.
	MainEmail   string    // Contact email address.
	Attending   []string  // Websafe keys of conferences registered for.
	Wishlist    []string  // Websafe keys of wishlisted sessions.
	Created     time.Time // Date/time created.
}

// GetCache returns nil, indicating no caching.
func (p *Profile) GetCache() datastore.Cache {
	return nil
}

// Encode serializes a Profile into tab-separated values. The key
// sets are comma-separated; websafe keys contain neither tabs nor
// commas.
func (p *Profile) Encode() []byte {
	return []byte(fmt.Sprintf("%s\t%s\t%s\t%s\t%s\t%d",
		p.UserID, p.DisplayName, p.MainEmail,
		strings.Join(p.Attending, ","), strings.Join(p.Wishlist, ","),
		p.Created.Unix()))
}

// Decode deserializes a Profile from tab-separated values.
func (p *Profile) Decode(b []byte) error {
	f := strings.Split(string(b), "\t")
	if len(f) != 6 {
		return datastore.ErrDecoding
	}
	p.UserID = f[0]
	p.DisplayName = f[1]
	p.MainEmail = f[2]
	p.Attending = splitList(f[3])
	p.Wishlist = splitList(f[4])
	ts, err := strconv.ParseInt(f[5], 10, 64)
	if err != nil {
		return datastore.ErrDecoding
	}
	p.Created = time.Unix(ts, 0)
	return nil
}

// Copy copies a profile to dst, or returns a copy of the profile when dst is nil.
func (p *Profile) Copy(dst datastore.Entity) (datastore.Entity, error) {
	var p2 *Profile
	if dst == nil {
		p2 = new(Profile)
	} else {
		var ok bool
		p2, ok = dst.(*Profile)
		if !ok {
			return nil, datastore.ErrWrongType
		}
	}
	*p2 = *p
	p2.Attending = append([]string(nil), p.Attending...)
	p2.Wishlist = append([]string(nil), p.Wishlist...)
	return p2, nil
}

// splitList splits a comma-separated list, returning nil for the
// empty string rather than a single empty element.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// ProfileKey returns the name key for the given user identity.
func ProfileKey(store datastore.Store, userID string) *datastore.Key {
	return store.NameKey(typeProfile, userID)
}

// PutProfile creates or updates a profile.
func PutProfile(ctx context.Context, store datastore.Store, p *Profile) error {
	_, err := store.Put(ctx, ProfileKey(store, p.UserID), p)
	return err
}

// GetProfile returns a profile by its user identity.
func GetProfile(ctx context.Context, store datastore.Store, userID string) (*Profile, error) {
	var p Profile
	err := store.Get(ctx, ProfileKey(store, userID), &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetOrCreateProfile returns the profile for the given user identity,
// lazily creating it on first access. The display name defaults to
// the local part of the email address when empty.
func GetOrCreateProfile(ctx context.Context, store datastore.Store, userID, displayName, email string) (*Profile, error) {
	p, err := GetProfile(ctx, store, userID)
	if err == nil {
		return p, nil
	}
	if err != datastore.ErrNoSuchEntity {
		return nil, err
	}
	if displayName == "" {
		displayName = email
		if i := strings.Index(email, "@"); i > 0 {
			displayName = email[:i]
		}
	}
	p = &Profile{UserID: userID, DisplayName: displayName, MainEmail: email, Created: time.Now()}
	err = PutProfile(ctx, store, p)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// SaveProfile updates the user-modifiable fields of a profile,
// creating the profile if need be, and returns the updated profile.
func SaveProfile(ctx context.Context, store datastore.Store, userID, displayName, email string) (*Profile, error) {
	p, err := GetOrCreateProfile(ctx, store, userID, "", email)
	if err != nil {
		return nil, err
	}
	if displayName == "" || displayName == p.DisplayName {
		return p, nil
	}
	var updated Profile
	err = store.Update(ctx, ProfileKey(store, userID), func(e datastore.Entity) {
		e.(*Profile).DisplayName = displayName
	}, &updated)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// GetAllProfiles returns all profiles.
func GetAllProfiles(ctx context.Context, store datastore.Store) ([]Profile, error) {
	q := store.NewQuery(typeProfile, false)
	var profiles []Profile
	_, err := store.GetAll(ctx, q, &profiles)
	return profiles, err
}
