// flightplan/clone.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package flightplan

// Clone returns a copy of the flight plan with the given ident, or the
// same ident if newIdent is empty. Cloning is the only way to turn a
// route into a flight plan that can be activated: pass true for
// convertToFlightPlan. The copy has the same delegate factories but none
// of the original's other delegates, and no current leg.
func (fp *FlightPlan) Clone(newIdent string, convertToFlightPlan bool) *FlightPlan {
	c := newFlightPlan(fp.db, fp.registry, fp.lg, fp.isRoute && !convertToFlightPlan)
	c.ident = fp.ident
	if newIdent != "" {
		c.ident = newIdent
	}
	c.now, c.pathBuilder = fp.now, fp.pathBuilder
	c.flightRules, c.flightType = fp.flightRules, fp.flightType
	c.callsign, c.remarks = fp.callsign, fp.remarks
	c.aircraftType, c.aircraftCategory = fp.aircraftType, fp.aircraftCategory
	c.estimatedDuration = fp.estimatedDuration
	c.followLegTrackToFix, c.maxFlyByTurnAngle = fp.followLegTrackToFix, fp.maxFlyByTurnAngle

	c.lockDelegates()
	defer c.unlockDelegates()

	c.SetDeparture(fp.departure)
	c.SetDepartureRunway(fp.departureRunway)
	switch {
	case fp.approach != nil:
		_ = c.SetApproach(fp.approach, fp.approachTransition)
	case fp.destinationRunway != nil:
		c.SetDestinationRunway(fp.destinationRunway)
	case fp.destination != nil:
		c.SetDestination(fp.destination)
	}
	_ = c.SetSTAR(fp.star, fp.starTransition)
	_ = c.SetSID(fp.sid, fp.sidTransition)
	c.alternate = fp.alternate

	// It's a new flight plan, so there's no change to report.
	c.dirty.arrival, c.dirty.departure = false, false

	switch {
	case fp.cruiseFlightLevel > 0:
		c.SetCruiseFlightLevel(fp.cruiseFlightLevel)
	case fp.cruiseAltitudeFt > 0:
		c.SetCruiseAltitudeFt(fp.cruiseAltitudeFt)
	case fp.cruiseAltitudeM > 0:
		c.SetCruiseAltitudeM(fp.cruiseAltitudeM)
	}
	switch {
	case fp.cruiseMach > 0:
		c.SetCruiseSpeedMach(fp.cruiseMach)
	case fp.cruiseKnots > 0:
		c.SetCruiseSpeedKnots(fp.cruiseKnots)
	case fp.cruiseKPH > 0:
		c.SetCruiseSpeedKPH(fp.cruiseKPH)
	}

	c.dirty.loaded, c.dirty.waypoints = true, true
	c.legs = make([]*Leg, len(fp.legs))
	for i, l := range fp.legs {
		c.legs[i] = l.cloneFor(c)
	}
	if !c.isRoute {
		c.expandVias()
	}
	return c
}
