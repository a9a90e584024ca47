// flightplan/native.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package flightplan

import (
	"fmt"
	"log/slog"

	av "github.com/mmp/fms/aviation"
	"github.com/mmp/fms/math"
	"github.com/mmp/fms/props"
	"github.com/mmp/fms/util"
)

// Native flight plans are property lists. Version 2 stores each
// waypoint's full record; version 1 is the legacy format that only
// stores idents and positions.
const nativeVersion = 2

// v1 files use this altitude to mean that there's no restriction.
const v1NoAltitude = -9999.9

// toProperties returns the version 2 record for the flight plan.
func (fp *FlightPlan) toProperties() *props.Node {
	d := props.New(props.RootElement)
	d.SetInt("version", nativeVersion)

	if fp.isRoute {
		d.SetBool("is-route", true)
	}
	d.SetString("flight-rules", fp.flightRules.String())
	d.SetString("flight-type", fp.flightType.String())
	if fp.callsign != "" {
		d.SetString("callsign", fp.callsign)
	}
	if fp.remarks != "" {
		d.SetString("remarks", fp.remarks)
	}
	if fp.aircraftType != "" {
		d.SetString("aircraft-type", fp.aircraftType)
	}
	d.SetInt("estimated-duration-minutes", fp.estimatedDuration)

	if fp.departure != nil {
		d.SetString("departure/airport", fp.departure.Ident())
		if fp.sid != nil {
			d.SetString("departure/sid", fp.sid.Ident())
			if fp.sidTransition != "" {
				d.SetString("departure/sid_trans", fp.sidTransition)
			}
		}
		if fp.departureRunway != nil {
			d.SetString("departure/runway", fp.departureRunway.Ident())
		}
	}

	if fp.destination != nil {
		d.SetString("destination/airport", fp.destination.Ident())
		if fp.star != nil {
			d.SetString("destination/star", fp.star.Ident())
			if fp.starTransition != "" {
				d.SetString("destination/star_trans", fp.starTransition)
			}
		}
		if fp.approach != nil {
			d.SetString("destination/approach", fp.approach.Ident())
			if fp.approachTransition != "" {
				d.SetString("destination/approach_trans", fp.approachTransition)
			}
		}
		if fp.destinationRunway != nil {
			d.SetString("destination/runway", fp.destinationRunway.Ident())
		}
	}

	if fp.alternate != nil {
		d.SetString("alternate", fp.alternate.Ident())
	}

	switch {
	case fp.cruiseFlightLevel > 0:
		d.SetInt("cruise/flight-level", fp.cruiseFlightLevel)
	case fp.cruiseAltitudeFt > 0:
		d.SetInt("cruise/altitude-ft", fp.cruiseAltitudeFt)
	case fp.cruiseAltitudeM > 0:
		d.SetInt("cruise/altitude-m", fp.cruiseAltitudeM)
	}
	switch {
	case fp.cruiseMach > 0:
		d.SetFloat32("cruise/mach", fp.cruiseMach)
	case fp.cruiseKnots > 0:
		d.SetInt("cruise/knots", fp.cruiseKnots)
	case fp.cruiseKPH > 0:
		d.SetInt("cruise/kph", fp.cruiseKPH)
	}

	route := d.AddChild("route")
	for _, l := range fp.legs {
		wp := route.AddChild("wp")
		l.waypoint.WriteProperties(wp)
		l.writeProperties(wp)
	}
	return d
}

// readProperties loads a version 1 or version 2 record. It must be
// called inside a change batch.
func (fp *FlightPlan) readProperties(d *props.Node) error {
	switch v := d.Int("version", 1); v {
	case 1:
		return fp.readVersion1(d)
	case nativeVersion:
		return fp.readVersion2(d)
	default:
		return fmt.Errorf("version %d: %w", v, ErrUnsupportedVersion)
	}
}

func (fp *FlightPlan) readHeader(d *props.Node) {
	rules, ok := ParseFlightRules(d.String("flight-rules", "V"))
	if !ok {
		fp.lg.Warn("unknown flight rules in flight plan", slog.String("flight_rules", d.String("flight-rules", "")))
	}
	fp.flightRules = rules
	ft, ok := ParseFlightType(d.String("flight-type", "X"))
	if !ok {
		fp.lg.Warn("unknown flight type in flight plan", slog.String("flight_type", d.String("flight-type", "")))
	}
	fp.flightType = ft

	fp.callsign = d.String("callsign", "")
	fp.remarks = d.String("remarks", "")
	fp.aircraftType = d.String("aircraft-type", "")
	fp.estimatedDuration = d.Int("estimated-duration-minutes", 0)

	if d.HasValue("is-route") && d.Bool("is-route", false) != fp.isRoute {
		// Vias are expanded after loading, so this is fine.
		fp.lg.Info("loading a flight plan stored with a different is-route setting",
			slog.Bool("is_route", fp.isRoute))
	}

	if dep := d.Child("departure"); dep != nil {
		fp.SetDeparture(fp.findAirport(dep.String("airport", "")))
		if fp.departure != nil {
			if rwy := fp.departure.Runway(dep.String("runway", "")); rwy != nil {
				fp.SetDepartureRunway(rwy)
			}
			if dep.HasChild("sid") {
				fp.setProcedure(fp.SetSID, fp.departure.SID(dep.String("sid", "")), dep.String("sid_trans", ""))
			}
		}
	}

	if dst := d.Child("destination"); dst != nil {
		fp.SetDestination(fp.findAirport(dst.String("airport", "")))
		if fp.destination != nil {
			if rwy := fp.destination.Runway(dst.String("runway", "")); rwy != nil {
				fp.SetDestinationRunway(rwy)
			}
			if dst.HasChild("star") {
				fp.setProcedure(fp.SetSTAR, fp.destination.STAR(dst.String("star", "")), dst.String("star_trans", ""))
			}
			if dst.HasChild("approach") {
				fp.setProcedure(fp.SetApproach, fp.destination.Approach(dst.String("approach", "")),
					dst.String("approach_trans", ""))
			}
		}
	}

	if d.HasChild("alternate") {
		fp.SetAlternate(fp.findAirport(d.String("alternate", "")))
	}

	if crs := d.Child("cruise"); crs != nil {
		// The setters keep a single altitude and a single speed form set.
		switch {
		case crs.HasChild("flight-level"):
			fp.SetCruiseFlightLevel(crs.Int("flight-level", 0))
		case crs.HasChild("altitude-ft"):
			fp.SetCruiseAltitudeFt(crs.Int("altitude-ft", 0))
		case crs.HasChild("altitude-m"):
			fp.SetCruiseAltitudeM(crs.Int("altitude-m", 0))
		}
		switch {
		case crs.HasChild("mach"):
			fp.SetCruiseSpeedMach(float32(crs.Float("mach", 0)))
		case crs.HasChild("knots"):
			fp.SetCruiseSpeedKnots(crs.Int("knots", 0))
		case crs.HasChild("kph"):
			fp.SetCruiseSpeedKPH(crs.Int("kph", 0))
		}
	}
}

func (fp *FlightPlan) findAirport(ident string) *av.Airport {
	if ident == "" {
		return nil
	}
	apt := fp.db.FindAirport(ident)
	if apt == nil {
		fp.lg.Warn("unknown airport in flight plan", slog.String("airport", ident))
	}
	return apt
}

// setProcedure applies a stored procedure binding, which may name a
// procedure the navigation data no longer has.
func (fp *FlightPlan) setProcedure(set func(*av.Procedure, string) error, proc *av.Procedure, trans string) {
	if proc == nil {
		fp.lg.Warn("unknown procedure in flight plan")
		return
	}
	if err := set(proc, trans); err != nil {
		fp.lg.Warn("unable to set procedure", slog.String("procedure", proc.Ident()), slog.Any("error", err))
	}
}

func (fp *FlightPlan) readVersion2(d *props.Node) error {
	route := d.Child("route")
	if route == nil {
		return ErrNoRoute
	}
	fp.readHeader(d)

	fp.replaceLegs(nil)
	for i, wpn := range route.Children("wp") {
		wp, err := av.WaypointFromProperties(fp.db, fp, wpn)
		if err != nil {
			fp.lg.Warn("skipping flight plan waypoint", slog.Int("index", i), slog.Any("error", err))
			continue
		}

		l := newLeg(fp, wp)
		fp.legs = append(fp.legs, l)
		if r := wp.SpeedRestriction(); r != av.RestrictNone {
			l.SetSpeed(util.Select(r.IsMachRestrict(), wp.SpeedMach(), wp.Speed()), r)
		}
		if r := wp.AltitudeRestriction(); r != av.RestrictNone {
			l.SetAltitude(wp.AltitudeFt(), r)
		}
		if wpn.HasChild("hold-count") {
			l.SetHoldCount(wpn.Int("hold-count", 0))
		}
	}
	fp.dirty.waypoints = true
	return nil
}

func (fp *FlightPlan) readVersion1(d *props.Node) error {
	route := d.Child("route")
	if route == nil {
		return ErrNoRoute
	}
	fp.readHeader(d)

	fp.replaceLegs(nil)
	for _, wpn := range route.Children("wp") {
		fp.legs = append(fp.legs, newLeg(fp, fp.readVersion1Waypoint(wpn)))
	}
	fp.dirty.waypoints = true
	return nil
}

func (fp *FlightPlan) readVersion1Waypoint(n *props.Node) av.Waypoint {
	last := math.InvalidPoint2LL()
	if len(fp.legs) > 0 {
		last = fp.legs[len(fp.legs)-1].waypoint.Position()
	} else if fp.departure != nil {
		last = fp.departure.Location
	}

	lonlat := func() math.Point2LL {
		return math.Point2LL{float32(n.Float("longitude-deg", 0)), float32(n.Float("latitude-deg", 0))}
	}

	ident := n.String("ident", "")
	var pos math.Point2LL
	if n.HasChild("longitude-deg") {
		pos = lonlat()
	} else {
		navid := n.String("navid", ident)
		if p := fp.db.FindClosestWithIdent(navid, last); p != nil {
			pos = p.Position()
		} else {
			fp.lg.Warn("unknown navaid in flight plan", slog.String("navid", navid))
			pos = lonlat()
		}

		if n.HasChild("offset-nm") && n.HasChild("offset-radial") {
			// Radials are magnetic.
			radial := float32(n.Float("offset-radial", 0)) + fp.db.MagneticVariation(pos, fp.now())
			pos = math.Offset2LL(pos, math.NormalizeHeading(radial), float32(n.Float("offset-nm", 0)))
		}
	}

	w := av.NewBasicWaypoint(pos, ident, fp)
	if alt := n.Float("altitude-ft", v1NoAltitude); alt > -9990 {
		w.SetAltitude(float32(alt), av.RestrictAt)
	}
	return w
}

// replaceLegs swaps in a new leg sequence, orphaning the old legs.
func (fp *FlightPlan) replaceLegs(legs []*Leg) {
	for _, l := range fp.legs {
		l.parent = nil
	}
	fp.legs = legs
	if fp.currentIndex >= len(fp.legs) {
		fp.currentIndex = -1
		fp.dirty.currentWaypoint = true
	}
	fp.dirty.waypoints = true
}
