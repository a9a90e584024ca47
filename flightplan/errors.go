// flightplan/errors.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package flightplan

import "errors"

var (
	ErrAirportMismatch      = errors.New("Route begins with an airport that is not the departure airport")
	ErrDuplicateFactory     = errors.New("Delegate factory is already registered")
	ErrEmptyRoute           = errors.New("Empty route")
	ErrInvalidCategory      = errors.New("Invalid ICAO aircraft category")
	ErrInvalidIndex         = errors.New("Invalid leg index")
	ErrIsRoute              = errors.New("Operation is not valid for a route")
	ErrLooksLikeXML         = errors.New("File contains XML")
	ErrMissingAnchor        = errors.New("Initial airway needs an anchor point from a SID")
	ErrMissingRouteToken    = errors.New("Route token is missing its waypoint")
	ErrNoDestinationForSTAR = errors.New("STAR requires a destination airport")
	ErrNoRoute              = errors.New("No route found")
	ErrUnknownAirway        = errors.New("Unknown airway")
	ErrUnknownWaypoint      = errors.New("Waypoint not found")
	ErrUnsupportedVersion   = errors.New("Unsupported flight plan version")
	ErrWrongProcedureType   = errors.New("Transition does not belong to the expected kind of procedure")
)
