// aviation/restriction.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"strings"

	"github.com/mmp/fms/props"
)

// RouteRestriction is the kind of an altitude or speed constraint at a
// waypoint.
type RouteRestriction int

const (
	RestrictNone RouteRestriction = iota
	RestrictAt
	RestrictAbove
	RestrictBelow
	RestrictMach
	RestrictDelete
	RestrictCompute
	RestrictComputeMach
)

var restrictionNames = [...]string{
	RestrictNone:        "none",
	RestrictAt:          "at",
	RestrictAbove:       "above",
	RestrictBelow:       "below",
	RestrictMach:        "mach",
	RestrictDelete:      "delete",
	RestrictCompute:     "computed",
	RestrictComputeMach: "computed-mach",
}

func (r RouteRestriction) String() string {
	if r < 0 || int(r) >= len(restrictionNames) {
		return "none"
	}
	return restrictionNames[r]
}

// ParseRouteRestriction returns RestrictNone for unknown strings.
func ParseRouteRestriction(s string) RouteRestriction {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range restrictionNames {
		if n == s {
			return RouteRestriction(i)
		}
	}
	return RestrictNone
}

func (r RouteRestriction) IsMachRestrict() bool {
	return r == RestrictMach || r == RestrictComputeMach
}

// Speeds are stored as a single number; Mach values are kept as
// -(mach*100) so that they can't be confused with knots.
func encodeSpeed(v float32, r RouteRestriction) float32 {
	if r.IsMachRestrict() && v > 0 {
		return -v * 100
	}
	return v
}

func speedKnots(raw float32, r RouteRestriction) float32 {
	if r.IsMachRestrict() || r == RestrictNone {
		return 0
	}
	return raw
}

func speedMach(raw float32, r RouteRestriction) float32 {
	if !r.IsMachRestrict() {
		return 0
	}
	return -raw / 100
}

// WriteRestrictions stores the given restrictions in the waypoint record
// n; restrictions of kind RestrictNone are not written.
func WriteRestrictions(n *props.Node, alt float32, altRestrict RouteRestriction, speed float32,
	speedRestrict RouteRestriction) {
	if speedRestrict != RestrictNone {
		n.SetString("speed-restrict", speedRestrict.String())
		if speedRestrict.IsMachRestrict() {
			n.SetFloat32("speed", speedMach(speed, speedRestrict))
		} else {
			n.SetFloat32("speed", speed)
		}
	}
	if altRestrict != RestrictNone {
		n.SetString("alt-restrict", altRestrict.String())
		n.SetFloat32("altitude-ft", alt)
	}
}

///////////////////////////////////////////////////////////////////////////
// WaypointFlags

type WaypointFlags uint32

const (
	WaypointFlagMAP WaypointFlags = 1 << iota // missed approach point
	WaypointFlagOverflight
	WaypointFlagTransition
	WaypointFlagMiss // part of the missed approach
	WaypointFlagIAF
	WaypointFlagFAF
	WaypointFlagVia
	WaypointFlagGenerated
	WaypointFlagDeparture
	WaypointFlagArrival
	WaypointFlagApproach
	WaypointFlagDynamic
	WaypointFlagHidden
)

// Stored records write each flag as a named boolean.
var waypointFlagNames = []struct {
	flag WaypointFlags
	name string
}{
	{WaypointFlagMAP, "map"},
	{WaypointFlagOverflight, "overflight"},
	{WaypointFlagTransition, "transition"},
	{WaypointFlagMiss, "miss"},
	{WaypointFlagIAF, "iaf"},
	{WaypointFlagFAF, "faf"},
	{WaypointFlagVia, "via"},
	{WaypointFlagGenerated, "generated"},
	{WaypointFlagDeparture, "departure"},
	{WaypointFlagArrival, "arrival"},
	{WaypointFlagApproach, "approach"},
	{WaypointFlagDynamic, "dynamic"},
	{WaypointFlagHidden, "hidden"},
}

func (f WaypointFlags) String() string {
	var s []string
	for _, fn := range waypointFlagNames {
		if f&fn.flag != 0 {
			s = append(s, fn.name)
		}
	}
	return strings.Join(s, "|")
}

func ParseWaypointFlag(name string) (WaypointFlags, bool) {
	for _, fn := range waypointFlagNames {
		if fn.name == name {
			return fn.flag, true
		}
	}
	return 0, false
}
