// flightplan/json.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package flightplan

import (
	"encoding/json"

	av "github.com/mmp/fms/aviation"

	"github.com/iancoleman/orderedmap"
)

func identOrEmpty(p interface{ Ident() string }, isNil bool) string {
	if isNil {
		return ""
	}
	return p.Ident()
}

// MarshalJSON summarizes the flight plan for export. Keys are written in
// a fixed order so that the output reads like the flight plan.
func (fp *FlightPlan) MarshalJSON() ([]byte, error) {
	o := orderedmap.New()
	o.Set("ident", fp.ident)
	o.Set("is_route", fp.isRoute)
	o.Set("flight_rules", fp.flightRules.String())
	o.Set("flight_type", fp.flightType.String())
	if fp.callsign != "" {
		o.Set("callsign", fp.callsign)
	}
	if fp.aircraftType != "" {
		o.Set("aircraft_type", fp.aircraftType)
	}

	dep := orderedmap.New()
	dep.Set("airport", identOrEmpty(fp.departure, fp.departure == nil))
	dep.Set("runway", identOrEmpty(fp.departureRunway, fp.departureRunway == nil))
	dep.Set("sid", identOrEmpty(fp.sid, fp.sid == nil))
	dep.Set("sid_transition", fp.sidTransition)
	o.Set("departure", dep)

	dst := orderedmap.New()
	dst.Set("airport", identOrEmpty(fp.destination, fp.destination == nil))
	dst.Set("runway", identOrEmpty(fp.destinationRunway, fp.destinationRunway == nil))
	dst.Set("star", identOrEmpty(fp.star, fp.star == nil))
	dst.Set("star_transition", fp.starTransition)
	dst.Set("approach", identOrEmpty(fp.approach, fp.approach == nil))
	dst.Set("approach_transition", fp.approachTransition)
	o.Set("destination", dst)
	if fp.alternate != nil {
		o.Set("alternate", fp.alternate.Ident())
	}

	crs := orderedmap.New()
	switch {
	case fp.cruiseFlightLevel > 0:
		crs.Set("flight_level", fp.cruiseFlightLevel)
	case fp.cruiseAltitudeFt > 0:
		crs.Set("altitude_ft", fp.cruiseAltitudeFt)
	case fp.cruiseAltitudeM > 0:
		crs.Set("altitude_m", fp.cruiseAltitudeM)
	}
	switch {
	case fp.cruiseMach > 0:
		crs.Set("mach", fp.cruiseMach)
	case fp.cruiseKnots > 0:
		crs.Set("knots", fp.cruiseKnots)
	case fp.cruiseKPH > 0:
		crs.Set("kph", fp.cruiseKPH)
	}
	o.Set("cruise", crs)
	if fp.estimatedDuration > 0 {
		o.Set("estimated_duration_minutes", fp.estimatedDuration)
	}

	o.Set("current_index", fp.currentIndex)
	o.Set("total_distance_nm", fp.totalDistanceNM)
	o.Set("route", fp.ICAORouteString())

	legs := make([]*orderedmap.OrderedMap, len(fp.legs))
	for i, l := range fp.legs {
		legs[i] = l.jsonSummary()
	}
	o.Set("legs", legs)

	return json.Marshal(o)
}

func (l *Leg) jsonSummary() *orderedmap.OrderedMap {
	wp := l.waypoint
	m := orderedmap.New()
	m.Set("ident", wp.Ident())
	m.Set("type", wp.Type())
	if p := wp.Position(); p.IsValid() {
		m.Set("position", p)
	}
	if f := wp.Flags(); f != 0 {
		m.Set("flags", f.String())
	}
	if r := l.AltitudeRestriction(); r != av.RestrictNone {
		m.Set("alt_restrict", r.String())
		m.Set("altitude_ft", l.AltitudeFt())
	}
	if r := l.SpeedRestriction(); r != av.RestrictNone {
		m.Set("speed_restrict", r.String())
		if r.IsMachRestrict() {
			m.Set("mach", l.SpeedMach())
		} else {
			m.Set("speed_kts", l.SpeedKnots())
		}
	}
	if l.holdCount > 0 {
		m.Set("hold_count", l.holdCount)
	}
	m.Set("course", l.courseDeg)
	m.Set("distance_nm", l.distanceNM)
	m.Set("distance_along_route_nm", l.distanceAlongRoute)
	return m
}
