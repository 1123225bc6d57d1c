/*
DESCRIPTION
  Datastore session type and functions.

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

// typeSession is the name of the datastore session type.
const typeSession = "Session"

// Session represents a single session within a conference, such as a
// lecture, keynote or workshop. A session is owned by exactly one
// conference and may only be created by that conference's organizer.
// StartTime is minutes after midnight.
type Session struct {
	Name          string    // Session name.
	ConfKey       string    // Websafe key of the owning conference.
	Highlights    string    `datastore:",noindex"` // Highlights.
	Speaker       string    // Speaker name.
	Duration      int       // Duration in minutes.
	TypeOfSession string    // Classification, e.g., lecture, keynote, workshop.
	Date          time.Time // Date the session is held.
	StartTime     int       // Start time in minutes after midnight.
}

// Encode serializes a Session into tab-separated values.
func (s *Session) Encode() []byte {
	return []byte(fmt.Sprintf("%s\t%s\t%s\t%s\t%d\t%s\t%d\t%d",
		s.Name, s.ConfKey, s.Highlights, s.Speaker, s.Duration,
		s.TypeOfSession, s.Date.Unix(), s.StartTime))
}

// Decode deserializes a Session from tab-separated values.
func (s *Session) Decode(b []byte) error {
	f := strings.Split(string(b), "\t")
	if len(f) != 8 {
		return datastore.ErrDecoding
	}
	s.Name = f[0]
	s.ConfKey = f[1]
	s.Highlights = f[2]
	s.Speaker = f[3]
	d, err := strconv.Atoi(f[4])
	if err != nil {
		return datastore.ErrDecoding
	}
	s.Duration = d
	s.TypeOfSession = f[5]
	ts, err := strconv.ParseInt(f[6], 10, 64)
	if err != nil {
		return datastore.ErrDecoding
	}
	s.Date = time.Unix(ts, 0)
	st, err := strconv.Atoi(f[7])
	if err != nil {
		return datastore.ErrDecoding
	}
	s.StartTime = st
	return nil
}

// Copy copies a session to dst, or returns a copy of the session when dst is nil.
func (s *Session) Copy(dst datastore.Entity) (datastore.Entity, error) {
	var s2 *Session
	if dst == nil {
		s2 = new(Session)
	} else {
		var ok bool
		s2, ok = dst.(*Session)
		if !ok {
			return nil, datastore.ErrWrongType
		}
	}
	*s2 = *s
	return s2, nil
}

// Sessions are write-once, so caching them is safe; deletion goes
// through the store, which evicts cache entries.
var sessionCache datastore.Cache = datastore.NewEntityCache()

// GetCache returns the session cache.
func (s *Session) GetCache() datastore.Cache {
	return sessionCache
}

// CreateSession creates a new session within the given conference.
// Only the conference organizer may create sessions; anyone else gets
// ErrNotOrganizer. It returns the allocated key.
func CreateSession(ctx context.Context, store datastore.Store, userID, wsck string, s *Session) (*datastore.Key, error) {
	if s.Name == "" {
		return nil, ErrNameRequired
	}
	conf, err := GetConference(ctx, store, wsck)
	if err != nil {
		return nil, err
	}
	if conf.Organizer != userID {
		return nil, ErrNotOrganizer
	}
	s.ConfKey = wsck
	return store.Put(ctx, store.IncompleteKey(typeSession), s)
}

// sessionKey decodes a websafe session key, checking that it
// genuinely references a session.
func sessionKey(wssk string) (*datastore.Key, error) {
	key, err := datastore.DecodeKey(wssk)
	if err != nil {
		return nil, ErrInvalidKey
	}
	if key.Kind != typeSession {
		return nil, ErrInvalidKey
	}
	return key, nil
}

// GetSession returns a session by its websafe key.
func GetSession(ctx context.Context, store datastore.Store, wssk string) (*Session, error) {
	key, err := sessionKey(wssk)
	if err != nil {
		return nil, err
	}
	var s Session
	err = store.Get(ctx, key, &s)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetConferenceSessions returns all sessions of the given conference.
func GetConferenceSessions(ctx context.Context, store datastore.Store, wsck string) ([]Session, []*datastore.Key, error) {
	return getConferenceSessions(ctx, store, wsck, "")
}

// GetConferenceSessionsByType returns the sessions of the given
// conference with the given type.
func GetConferenceSessionsByType(ctx context.Context, store datastore.Store, wsck, typeOfSession string) ([]Session, []*datastore.Key, error) {
	return getConferenceSessions(ctx, store, wsck, typeOfSession)
}

func getConferenceSessions(ctx context.Context, store datastore.Store, wsck, typeOfSession string) ([]Session, []*datastore.Key, error) {
	_, err := GetConference(ctx, store, wsck)
	if err != nil {
		return nil, nil, err
	}
	q := store.NewQuery(typeSession, false)
	err = q.Filter("ConfKey =", wsck)
	if err != nil {
		return nil, nil, err
	}
	if typeOfSession != "" {
		err = q.Filter("TypeOfSession =", typeOfSession)
		if err != nil {
			return nil, nil, err
		}
	}
	var sessions []Session
	keys, err := store.GetAll(ctx, q, &sessions)
	return sessions, keys, err
}

// GetSessionsBySpeaker returns all sessions given by the speaker,
// across all conferences.
func GetSessionsBySpeaker(ctx context.Context, store datastore.Store, speaker string) ([]Session, []*datastore.Key, error) {
	q := store.NewQuery(typeSession, false)
	err := q.Filter("Speaker =", speaker)
	if err != nil {
		return nil, nil, err
	}
	var sessions []Session
	keys, err := store.GetAll(ctx, q, &sessions)
	return sessions, keys, err
}

// GetSpeakerSessionsInConference returns the sessions the speaker
// gives in the given conference, ordered by date then start time.
func GetSpeakerSessionsInConference(ctx context.Context, store datastore.Store, wsck, speaker string) ([]Session, error) {
	q := store.NewQuery(typeSession, false)
	err := q.Filter("ConfKey =", wsck)
	if err != nil {
		return nil, err
	}
	err = q.Filter("Speaker =", speaker)
	if err != nil {
		return nil, err
	}
	q.Order("Date")
	q.Order("StartTime")
	var sessions []Session
	_, err = store.GetAll(ctx, q, &sessions)
	return sessions, err
}
