/*
DESCRIPTION
  Datastore entity registrations.

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
	"github.com/openconf/cloud/datastore"
)

// RegisterEntities is a convenience function that registers all of
// the datastore entities in one go.
func RegisterEntities() {
	datastore.RegisterEntity(typeProfile, func() datastore.Entity { return new(Profile) })
	datastore.RegisterEntity(typeConference, func() datastore.Entity { return new(Conference) })
	datastore.RegisterEntity(typeSession, func() datastore.Entity { return new(Session) })
}
