/*
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

	"golang.org/x/sync/errgroup"

	"github.com/openconf/cloud/datastore"
)

// ClearAllData deletes every session and conference and clears every
// profile's attending and wishlist sets. Profiles themselves are
// retained. Intended for test and maintenance use; idempotent.
func ClearAllData(ctx context.Context, store datastore.Store) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return deleteKind(ctx, store, typeSession) })
	g.Go(func() error { return deleteKind(ctx, store, typeConference) })
	err := g.Wait()
	if err != nil {
		return err
	}

	profiles, err := GetAllProfiles(ctx, store)
	if err != nil {
		return err
	}
	for i := range profiles {
		var p Profile
		err = store.Update(ctx, ProfileKey(store, profiles[i].UserID), func(e datastore.Entity) {
			prof := e.(*Profile)
			prof.Attending = nil
			prof.Wishlist = nil
		}, &p)
		if err != nil {
			return err
		}
	}
	return nil
}

// deleteKind deletes all entities of the given kind.
func deleteKind(ctx context.Context, store datastore.Store, kind string) error {
	q := store.NewQuery(kind, true)
	keys, err := store.GetAll(ctx, q, nil)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return store.DeleteMulti(ctx, keys)
}
