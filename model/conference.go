/*
DESCRIPTION
  Datastore conference type and functions.

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

// typeConference is the name of the datastore conference type.
const typeConference = "Conference"

// Defaults applied upon conference creation.
const DefaultCity = "Default City"

var defaultTopics = []string{"Default", "Topic"}

// Conference represents a conference published by an organizer. A
// MaxAttendees of zero means the conference is uncapped and
// SeatsAvailable is not a binding constraint. Otherwise the invariant
// 0 <= SeatsAvailable <= MaxAttendees holds at all times; it is
// maintained by the registration ledger. Conferences are mutated
// transactionally, so they are not cached.
type Conference struct {
	Name           string    // Conference name.
	Description    string    `datastore:",noindex"` // Description.
	Organizer      string    // User identity of the organizer.
	City           string    // Host city.
	Topics         []string  // Topics covered, a datastore list property.
	StartDate      time.Time // Date the conference starts.
	EndDate        time.Time // Date the conference ends.
	Month          int       // Month of StartDate, or 0 when unscheduled.
	MaxAttendees   int       // Seat capacity, 0 for uncapped.
	SeatsAvailable int       // Seats remaining.
	Created        time.Time // Date/time created.
}

// Encode serializes a Conference into tab-separated values.
func (c *Conference) Encode() []byte {
	return []byte(fmt.Sprintf("%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d",
		c.Name, c.Description, c.Organizer, c.City,
		strings.Join(c.Topics, ","),
		c.StartDate.Unix(), c.EndDate.Unix(), c.Month,
		c.MaxAttendees, c.SeatsAvailable, c.Created.Unix()))
}

// Decode deserializes a Conference from tab-separated values.
func (c *Conference) Decode(b []byte) error {
	f := strings.Split(string(b), "\t")
	if len(f) != 11 {
		return datastore.ErrDecoding
	}
	c.Name = f[0]
	c.Description = f[1]
	c.Organizer = f[2]
	c.City = f[3]
	c.Topics = splitList(f[4])
	var n [6]int64
	for i, s := range f[5:] {
		var err error
		n[i], err = strconv.ParseInt(s, 10, 64)
		if err != nil {
			return datastore.ErrDecoding
		}
	}
	c.StartDate = time.Unix(n[0], 0)
	c.EndDate = time.Unix(n[1], 0)
	c.Month = int(n[2])
	c.MaxAttendees = int(n[3])
	c.SeatsAvailable = int(n[4])
	c.Created = time.Unix(n[5], 0)
	return nil
}

// Copy copies a conference to dst, or returns a copy of the conference when dst is nil.
func (c *Conference) Copy(dst datastore.Entity) (datastore.Entity, error) {
	var c2 *Conference
	if dst == nil {
		c2 = new(Conference)
	} else {
		var ok bool
		c2, ok = dst.(*Conference)
		if !ok {
			return nil, datastore.ErrWrongType
		}
	}
	*c2 = *c
	c2.Topics = append([]string(nil), c.Topics...)
	return c2, nil
}

// GetCache returns nil, indicating no caching.
func (c *Conference) GetCache() datastore.Cache {
	return nil
}

// CreateConference creates a new conference owned by the given
// organizer, applying field defaults, deriving Month from StartDate
// and mirroring MaxAttendees into SeatsAvailable when positive. It
// returns the allocated key.
func CreateConference(ctx context.Context, store datastore.Store, organizer string, c *Conference) (*datastore.Key, error) {
	if c.Name == "" {
		return nil, ErrNameRequired
	}
	c.Organizer = organizer
	if c.City == "" {
		c.City = DefaultCity
	}
	if len(c.Topics) == 0 {
		c.Topics = append([]string(nil), defaultTopics...)
	}
	if c.StartDate.IsZero() {
		c.Month = 0
	} else {
		c.Month = int(c.StartDate.Month())
	}
	if c.MaxAttendees < 0 {
		return nil, ErrInvalidCapacity
	}
	if c.MaxAttendees > 0 {
		c.SeatsAvailable = c.MaxAttendees
	}
	c.Created = time.Now()
	return store.Put(ctx, store.IncompleteKey(typeConference), c)
}

// conferenceKey decodes a websafe conference key, checking the kind.
func conferenceKey(wsck string) (*datastore.Key, error) {
	key, err := datastore.DecodeKey(wsck)
	if err != nil {
		return nil, ErrInvalidKey
	}
	if key.Kind != typeConference {
		return nil, ErrInvalidKey
	}
	return key, nil
}

// GetConference returns a conference by its websafe key.
func GetConference(ctx context.Context, store datastore.Store, wsck string) (*Conference, error) {
	key, err := conferenceKey(wsck)
	if err != nil {
		return nil, err
	}
	var c Conference
	err = store.Get(ctx, key, &c)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetConferencesCreated returns the conferences organized by the
// given user, with their keys.
func GetConferencesCreated(ctx context.Context, store datastore.Store, userID string) ([]Conference, []*datastore.Key, error) {
	q := store.NewQuery(typeConference, false)
	err := q.Filter("Organizer =", userID)
	if err != nil {
		return nil, nil, err
	}
	q.Order("Name")
	var confs []Conference
	keys, err := store.GetAll(ctx, q, &confs)
	return confs, keys, err
}

// GetConferencesToAttend returns the conferences referenced by the
// profile's attending set, resolved by bulk lookup. Dangling keys are
// omitted.
func GetConferencesToAttend(ctx context.Context, store datastore.Store, p *Profile) ([]Conference, []*datastore.Key, error) {
	var keys []*datastore.Key
	for _, wsck := range p.Attending {
		key, err := conferenceKey(wsck)
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	dst := make([]datastore.Entity, len(keys))
	for i := range dst {
		dst[i] = new(Conference)
	}
	merr, err := resolveMulti(ctx, store, keys, dst)
	if err != nil {
		return nil, nil, err
	}
	var confs []Conference
	var found []*datastore.Key
	for i, e := range dst {
		if merr != nil && merr[i] != nil {
			continue
		}
		confs = append(confs, *e.(*Conference))
		found = append(found, keys[i])
	}
	return confs, found, nil
}

// NearlySoldOutConferences returns conferences with seats remaining
// but five or fewer, ordered by seats remaining then name.
func NearlySoldOutConferences(ctx context.Context, store datastore.Store) ([]Conference, error) {
	q := store.NewQuery(typeConference, false)
	err := q.FilterField("SeatsAvailable", ">", 0)
	if err != nil {
		return nil, err
	}
	err = q.FilterField("SeatsAvailable", "<=", sellOutThreshold)
	if err != nil {
		return nil, err
	}
	q.Order("SeatsAvailable")
	q.Order("Name")
	var confs []Conference
	_, err = store.GetAll(ctx, q, &confs)
	return confs, err
}

// sellOutThreshold is the seat count at or below which a conference
// is announced as nearly sold out.
const sellOutThreshold = 5

// resolveMulti performs a bulk lookup, separating per-key errors from
// operational errors so that callers can tolerate dangling keys.
func resolveMulti(ctx context.Context, store datastore.Store, keys []*datastore.Key, dst []datastore.Entity) (datastore.MultiError, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	err := store.GetMulti(ctx, keys, dst)
	if err == nil {
		return nil, nil
	}
	merr, ok := err.(datastore.MultiError)
	if !ok {
		return nil, err
	}
	for _, e := range merr {
		if e != nil && e != datastore.ErrNoSuchEntity {
			return nil, e
		}
	}
	return merr, nil
}
