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

import "errors"

// Errors returned by model operations. Callers map these onto their
// transport's error taxonomy; ErrAlreadyRegistered and
// ErrNoSeatsAvailable are business-rule rejections that may succeed
// on retry after state changes, the rest are terminal for a request.
var (
	ErrNameRequired             = errors.New("name field required")
	ErrInvalidCapacity          = errors.New("maxAttendees must not be negative")
	ErrInvalidKey               = errors.New("invalid websafe key")
	ErrNotOrganizer             = errors.New("caller is not the conference organizer")
	ErrAlreadyRegistered        = errors.New("already registered for this conference")
	ErrNoSeatsAvailable         = errors.New("no seats available")
	ErrInvalidFilter            = errors.New("filter contains invalid field or operator")
	ErrMultipleInequalityFields = errors.New("inequality filter is allowed on only one field")
)
