// aviation/airway.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/mmp/fms/math"
	"github.com/mmp/fms/util"
)

type AirwayLevel int

const (
	AirwayLevelAll AirwayLevel = iota
	AirwayLevelLow
	AirwayLevelHigh
)

func (l AirwayLevel) String() string {
	switch l {
	case AirwayLevelLow:
		return "low"
	case AirwayLevelHigh:
		return "high"
	default:
		return "all"
	}
}

func (l AirwayLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *AirwayLevel) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "low", "l":
		*l = AirwayLevelLow
	case "high", "h":
		*l = AirwayLevelHigh
	case "all", "both", "b", "":
		*l = AirwayLevelAll
	default:
		return fmt.Errorf("%s: unknown airway level", string(b))
	}
	return nil
}

// includes reports whether an airway at level l should be returned for
// a search at level search.
func (l AirwayLevel) includes(search AirwayLevel) bool {
	return search == AirwayLevelAll || l == AirwayLevelAll || l == search
}

type AirwayFix struct {
	Fix string `json:"fix"`
	// Location may be left unset in navigation data files, in which case
	// the fix is resolved by ident near the preceding fix.
	Location math.Point2LL `json:"location"`

	source Positioned
}

// Source returns the database item for the fix; it is nil for fixes that
// couldn't be resolved.
func (f AirwayFix) Source() Positioned { return f.source }

type Airway struct {
	Name  string      `json:"name"`
	Level AirwayLevel `json:"level"`
	Fixes []AirwayFix `json:"fixes"`
}

func (a *Airway) Ident() string { return a.Name }

func (a *Airway) String() string {
	return a.Name + " (" + a.Level.String() + ")"
}

const airwayMatchMeters = 1852

func (a *Airway) indexOf(ident string, p math.Point2LL, src Positioned) int {
	return slices.IndexFunc(a.Fixes, func(f AirwayFix) bool {
		if src != nil && f.source != nil && f.source == src {
			return true
		}
		if f.Fix != ident {
			return false
		}
		return !p.IsValid() || math.MetersDistance2LL(f.Location, p) < airwayMatchMeters
	})
}

// Contains reports whether p is one of the airway's fixes.
func (a *Airway) Contains(p Positioned) bool {
	return p != nil && a.indexOf(p.Ident(), p.Position(), p) != -1
}

func (a *Airway) indexOfWaypoint(w Waypoint) int {
	return a.indexOf(w.Ident(), w.Position(), w.Source())
}

// Via returns the waypoints flown along the airway from from to to,
// exclusive of from and inclusive of to. The returned waypoints are
// owned by the airway and flagged as generated via points.
func (a *Airway) Via(from, to Waypoint) ([]Waypoint, error) {
	start, end := a.indexOfWaypoint(from), a.indexOfWaypoint(to)
	if start == -1 {
		return nil, fmt.Errorf("%s: %s: %w", a.Name, from.Ident(), ErrNotOnAirway)
	}
	if end == -1 {
		return nil, fmt.Errorf("%s: %s: %w", a.Name, to.Ident(), ErrNotOnAirway)
	}
	if start == end {
		return nil, fmt.Errorf("%s: %s: entry and exit are the same fix", a.Name, from.Ident())
	}

	var wps []Waypoint
	delta := util.Select(start < end, 1, -1)
	for i := start + delta; ; i += delta {
		f := a.Fixes[i]
		var w Waypoint
		if f.source != nil {
			w = NewNavaidWaypoint(f.source, a)
		} else {
			w = NewBasicWaypoint(f.Location, f.Fix, a)
		}
		w.SetFlag(WaypointFlagGenerated|WaypointFlagVia, true)
		wps = append(wps, w)
		if i == end {
			break
		}
	}
	return wps, nil
}
