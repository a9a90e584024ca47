// aviation/resolve.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mmp/fms/math"
)

// WaypointFromString resolves a free-form waypoint token of the kind found
// in plain-text route files:
//
//	-73.78,40.64     decimal longitude,latitude
//	4038N07346W      ICAO coordinate literal
//	KENNY@5000       any of the forms here with an "at" altitude restriction
//	DPK/090/10       navaid, magnetic radial and distance in nm
//	KJFK/04L         airport runway
//	DPK              the database item with that ident closest to vicinity
func WaypointFromString(db NavDB, s string, vicinity math.Point2LL) (Waypoint, error) {
	target := strings.ToUpper(strings.TrimSpace(s))
	if target == "" {
		return nil, ErrInvalidWaypointString
	}

	var altFt float32
	if ident, alt, ok := strings.Cut(target, "@"); ok {
		a, err := strconv.ParseFloat(alt, 32)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s, ErrInvalidWaypointString)
		}
		target, altFt = ident, float32(a)
	}

	w, err := waypointFromString(db, target, vicinity)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s, err)
	}
	if altFt != 0 {
		w.SetAltitude(altFt, RestrictAt)
	}
	return w, nil
}

func waypointFromString(db NavDB, target string, vicinity math.Point2LL) (Waypoint, error) {
	if lon, lat, ok := strings.Cut(target, ","); ok {
		x, errx := strconv.ParseFloat(strings.TrimSpace(lon), 32)
		y, erry := strconv.ParseFloat(strings.TrimSpace(lat), 32)
		if errx != nil || erry != nil || y < -90 || y > 90 || x < -180 || x > 180 {
			return nil, ErrInvalidWaypointString
		}
		return NewBasicWaypoint(math.Point2LL{float32(x), float32(y)}, target, nil), nil
	}

	if p, ok := math.ParseICAOLatLong(target); ok {
		return NewBasicWaypoint(p, target, nil), nil
	}

	if fields := strings.Split(target, "/"); len(fields) > 1 {
		switch len(fields) {
		case 2:
			ap := db.FindAirport(fields[0])
			if ap == nil {
				return nil, ErrUnknownAirport
			}
			rwy := ap.Runway(fields[1])
			if rwy == nil {
				return nil, ErrUnknownRunway
			}
			return NewRunwayWaypoint(rwy, nil), nil

		case 3:
			nav := db.FindClosestWithIdent(fields[0], vicinity)
			if nav == nil {
				return nil, ErrUnknownNavaid
			}
			radial, err := strconv.ParseFloat(fields[1], 32)
			if err != nil {
				return nil, ErrInvalidWaypointString
			}
			dist, err := strconv.ParseFloat(fields[2], 32)
			if err != nil || dist < 0 {
				return nil, ErrInvalidWaypointString
			}
			magvar := db.MagneticVariation(nav.Position(), time.Now())
			trueRadial := math.NormalizeHeading(float32(radial) + magvar)
			return NewOffsetNavaidWaypoint(nav, nil, trueRadial, float32(dist)), nil

		default:
			return nil, ErrInvalidWaypointString
		}
	}

	p := db.FindClosestWithIdent(target, vicinity)
	if p == nil {
		return nil, ErrUnknownNavaid
	}
	return NewNavaidWaypoint(p, nil), nil
}
