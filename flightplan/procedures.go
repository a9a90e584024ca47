// flightplan/procedures.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package flightplan

import (
	av "github.com/mmp/fms/aviation"
)

///////////////////////////////////////////////////////////////////////////
// Departure

func (fp *FlightPlan) Departure() *av.Airport      { return fp.departure }
func (fp *FlightPlan) DepartureRunway() *av.Runway { return fp.departureRunway }
func (fp *FlightPlan) SID() *av.Procedure          { return fp.sid }

// departureMoved records that the start of the first leg has changed.
func (fp *FlightPlan) departureMoved() {
	fp.dirty.departure = true
	if len(fp.legs) > 0 {
		fp.dirty.waypoints = true
	}
}

// SetDeparture sets the departure airport, clearing the departure runway
// and SID.
func (fp *FlightPlan) SetDeparture(apt *av.Airport) {
	if apt == fp.departure {
		return
	}

	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.departureMoved()
	fp.departure = apt
	fp.departureRunway = nil
	fp.ClearSID()
}

// SetDepartureRunway sets the departure runway and, if it's at a
// different airport, the departure airport as well.
func (fp *FlightPlan) SetDepartureRunway(rwy *av.Runway) {
	if rwy == fp.departureRunway {
		return
	}

	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.departureMoved()
	fp.departureRunway = rwy
	if rwy != nil && rwy.Airport() != fp.departure {
		fp.departure = rwy.Airport()
		fp.ClearSID()
	}
}

func (fp *FlightPlan) ClearDeparture() {
	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.departureMoved()
	fp.departure = nil
	fp.departureRunway = nil
	fp.ClearSID()
}

// SetSID sets the SID and the name of its enroute transition, which may
// be empty. A nil sid clears the SID.
func (fp *FlightPlan) SetSID(sid *av.Procedure, transition string) error {
	if sid != nil && sid.Kind() != av.ProcedureSID {
		return ErrWrongProcedureType
	}
	if sid == fp.sid && transition == fp.sidTransition {
		return nil
	}

	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.dirty.departure = true
	fp.sid, fp.sidTransition = sid, transition
	return nil
}

// SetSIDTransition sets the SID from one of its transitions.
func (fp *FlightPlan) SetSIDTransition(t *av.Transition) error {
	if t == nil {
		return fp.SetSID(nil, "")
	}
	if t.Procedure() == nil {
		return ErrWrongProcedureType
	}
	return fp.SetSID(t.Procedure(), t.Ident())
}

func (fp *FlightPlan) ClearSID() {
	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.dirty.departure = true
	fp.sid, fp.sidTransition = nil, ""
}

// SIDTransition returns the selected SID transition, or nil if there is
// none or it isn't part of the SID.
func (fp *FlightPlan) SIDTransition() *av.Transition {
	if fp.sid == nil || fp.sidTransition == "" {
		return nil
	}
	return fp.sid.Transition(fp.sidTransition)
}

// sidEnrouteFix returns where the SID, through its transition if one is
// set, joins the enroute structure.
func (fp *FlightPlan) sidEnrouteFix() av.Positioned {
	return enrouteFix(fp.sid, fp.sidTransition)
}

func enrouteFix(sid *av.Procedure, transition string) av.Positioned {
	if sid == nil {
		return nil
	}
	if t := sid.Transition(transition); t != nil {
		return t.Enroute()
	}
	return sid.EnrouteFix()
}

///////////////////////////////////////////////////////////////////////////
// Arrival

func (fp *FlightPlan) Destination() *av.Airport      { return fp.destination }
func (fp *FlightPlan) DestinationRunway() *av.Runway { return fp.destinationRunway }
func (fp *FlightPlan) STAR() *av.Procedure           { return fp.star }
func (fp *FlightPlan) Approach() *av.Procedure       { return fp.approach }
func (fp *FlightPlan) Alternate() *av.Airport        { return fp.alternate }

// SetDestination sets the destination airport, clearing the destination
// runway, STAR and approach.
func (fp *FlightPlan) SetDestination(apt *av.Airport) {
	if apt == fp.destination {
		return
	}

	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.dirty.arrival = true
	fp.destination = apt
	fp.destinationRunway = nil
	fp.ClearSTAR()
	fp.clearApproach()
}

// SetDestinationRunway sets the destination runway and, if it's at a
// different airport, the destination airport as well, clearing the STAR
// and approach.
func (fp *FlightPlan) SetDestinationRunway(rwy *av.Runway) {
	if rwy == fp.destinationRunway {
		return
	}

	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.dirty.arrival = true
	fp.destinationRunway = rwy
	if rwy != nil && rwy.Airport() != fp.destination {
		fp.destination = rwy.Airport()
		fp.ClearSTAR()
		fp.clearApproach()
	}
}

func (fp *FlightPlan) ClearDestination() {
	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.dirty.arrival = true
	fp.destination = nil
	fp.destinationRunway = nil
	fp.ClearSTAR()
	fp.clearApproach()
}

func (fp *FlightPlan) SetAlternate(apt *av.Airport) {
	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.alternate = apt
	fp.dirty.arrival = true
}

// SetSTAR sets the STAR and the name of its enroute transition, which
// may be empty. A nil star clears the STAR.
func (fp *FlightPlan) SetSTAR(star *av.Procedure, transition string) error {
	if star != nil && star.Kind() != av.ProcedureSTAR {
		return ErrWrongProcedureType
	}
	if star == fp.star && transition == fp.starTransition {
		return nil
	}

	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.dirty.arrival = true
	fp.star, fp.starTransition = star, transition
	return nil
}

func (fp *FlightPlan) SetSTARTransition(t *av.Transition) error {
	if t == nil {
		return fp.SetSTAR(nil, "")
	}
	if t.Procedure() == nil {
		return ErrWrongProcedureType
	}
	return fp.SetSTAR(t.Procedure(), t.Ident())
}

func (fp *FlightPlan) ClearSTAR() {
	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.dirty.arrival = true
	fp.star, fp.starTransition = nil, ""
}

func (fp *FlightPlan) STARTransition() *av.Transition {
	if fp.star == nil || fp.starTransition == "" {
		return nil
	}
	return fp.star.Transition(fp.starTransition)
}

// SetApproach sets the approach and its transition. The destination
// runway and airport follow the approach's runway.
func (fp *FlightPlan) SetApproach(app *av.Procedure, transition string) error {
	if app != nil && app.Kind() != av.ProcedureApproach {
		return ErrWrongProcedureType
	}
	if app == fp.approach && transition == fp.approachTransition {
		return nil
	}

	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.dirty.arrival = true
	fp.approach, fp.approachTransition = app, transition
	if app != nil {
		if rwy := app.Runway(); rwy != nil {
			fp.destinationRunway = rwy
			if rwy.Airport() != nil {
				fp.destination = rwy.Airport()
			}
		} else if app.Airport() != nil {
			fp.destination = app.Airport()
		}
	}
	return nil
}

func (fp *FlightPlan) SetApproachTransition(t *av.Transition) error {
	if t == nil {
		return fp.SetApproach(nil, "")
	}
	if t.Procedure() == nil {
		return ErrWrongProcedureType
	}
	return fp.SetApproach(t.Procedure(), t.Ident())
}

func (fp *FlightPlan) clearApproach() {
	// Can't fail with a nil approach.
	_ = fp.SetApproach(nil, "")
}

func (fp *FlightPlan) ApproachTransition() *av.Transition {
	if fp.approach == nil || fp.approachTransition == "" {
		return nil
	}
	return fp.approach.Transition(fp.approachTransition)
}
