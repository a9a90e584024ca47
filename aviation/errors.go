// aviation/errors.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import "errors"

var (
	ErrInvalidWaypointString = errors.New("Invalid waypoint")
	ErrMissingIdent          = errors.New("Missing ident")
	ErrMissingOffset         = errors.New("Missing radial/offset distance")
	ErrMissingPosition       = errors.New("Missing longitude/latitude")
	ErrNavaidTooFar          = errors.New("Navaid is too far from the stored position")
	ErrNoPrecedingWaypoint   = errors.New("No preceding waypoint")
	ErrNotOnAirway           = errors.New("Waypoint is not on the airway")
	ErrUnknownAirport        = errors.New("Unknown airport")
	ErrUnknownAirway         = errors.New("Unknown airway")
	ErrUnknownNavaid         = errors.New("Unknown navaid")
	ErrUnknownNavdataFormat  = errors.New("Unknown navigation data format")
	ErrUnknownRunway         = errors.New("Unknown runway")
	ErrUnknownWaypointType   = errors.New("Unknown waypoint type")
)
