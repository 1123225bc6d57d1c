/*
DESCRIPTION
  Conference registration ledger.

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

// RegisterForConference registers the user for the conference
// referenced by the websafe key wsck. The profile's attending set and
// the conference's seat counter are updated in a single transaction
// spanning both entities; the transaction re-reads current state, so
// a concurrent registration racing for the last seat either retries
// or fails with ErrNoSeatsAvailable, and the counter never goes
// negative. Registering twice fails with ErrAlreadyRegistered.
// Uncapped conferences (MaxAttendees == 0) have no seat accounting.
func RegisterForConference(ctx context.Context, store datastore.Store, userID, email, wsck string) error {
	// Ensure the profile exists before entering the transaction.
	_, err := GetOrCreateProfile(ctx, store, userID, "", email)
	if err != nil {
		return err
	}
	ckey, err := conferenceKey(wsck)
	if err != nil {
		return err
	}

	var p Profile
	var c Conference
	return store.UpdatePair(ctx, ProfileKey(store, userID), &p, ckey, &c,
		func(e1, e2 datastore.Entity) error {
			prof := e1.(*Profile)
			conf := e2.(*Conference)
			for _, k := range prof.Attending {
				if k == wsck {
					return ErrAlreadyRegistered
				}
			}
			if conf.MaxAttendees > 0 {
				if conf.SeatsAvailable <= 0 {
					return ErrNoSeatsAvailable
				}
				conf.SeatsAvailable--
			}
			prof.Attending = append(prof.Attending, wsck)
			return nil
		})
}

// UnregisterFromConference removes the user's registration for the
// conference referenced by wsck, returning the seat to the pool. It
// reports whether anything changed; unregistering from a conference
// the user never registered for is a no-op, not an error.
func UnregisterFromConference(ctx context.Context, store datastore.Store, userID, email, wsck string) (bool, error) {
	_, err := GetOrCreateProfile(ctx, store, userID, "", email)
	if err != nil {
		return false, err
	}
	ckey, err := conferenceKey(wsck)
	if err != nil {
		return false, err
	}

	changed := false
	var p Profile
	var c Conference
	err = store.UpdatePair(ctx, ProfileKey(store, userID), &p, ckey, &c,
		func(e1, e2 datastore.Entity) error {
			prof := e1.(*Profile)
			conf := e2.(*Conference)
			for i, k := range prof.Attending {
				if k == wsck {
					prof.Attending = append(prof.Attending[:i], prof.Attending[i+1:]...)
					if conf.MaxAttendees > 0 {
						conf.SeatsAvailable++
					}
					changed = true
					return nil
				}
			}
			changed = false
			return nil
		})
	return changed, err
}
